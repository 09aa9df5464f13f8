package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF")
	gifHeader  = []byte("GIF89a\x01\x00\x01\x00")
	webpHeader = []byte("RIFF\x24\x00\x00\x00WEBPVP8 ")
)

func TestValidateAcceptsImages(t *testing.T) {
	cases := []struct {
		body []byte
		ct   string
		ext  string
	}{
		{pngHeader, "image/png", ".png"},
		{jpegHeader, "image/jpeg", ".jpg"},
		{gifHeader, "image/gif", ".gif"},
		{webpHeader, "image/webp", ".webp"},
	}
	for _, c := range cases {
		ct, ext, err := Validate(c.body, 0)
		require.NoError(t, err, c.ct)
		assert.Equal(t, c.ct, ct)
		assert.Equal(t, c.ext, ext)
	}
}

func TestValidateRejects(t *testing.T) {
	_, _, err := Validate(nil, 0)
	assert.ErrorIs(t, err, ErrEmpty)

	_, _, err = Validate([]byte("%PDF-1.7 not an image"), 0)
	assert.ErrorIs(t, err, ErrUnsupportedType)

	big := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, DefaultMaxBytes)...)
	_, _, err = Validate(big, 0)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, _, err = Validate(pngHeader, 4)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestLocalStoreSaveAndDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(filepath.Join(dir, "images"), "/uploads/images/")
	require.NoError(t, err)

	url, err := Upload(context.Background(), s, pngHeader, 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/images/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	stored := filepath.Join(dir, "images", filepath.Base(url))
	got, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, got)

	require.NoError(t, s.Delete(context.Background(), url))
	_, err = os.Stat(stored)
	assert.True(t, os.IsNotExist(err))

	// already removed and foreign URLs are both no-ops
	assert.NoError(t, s.Delete(context.Background(), url))
	assert.NoError(t, s.Delete(context.Background(), "https://cdn.example.com/a.png"))
	assert.NoError(t, s.Delete(context.Background(), "/uploads/images/.."))
}

func TestS3StoreUsesConfiguredBucket(t *testing.T) {
	origLoad, origPut, origDelete := loadDefaultAWSConfig, putObject, deleteObject
	t.Cleanup(func() {
		loadDefaultAWSConfig, putObject, deleteObject = origLoad, origPut, origDelete
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "eu-central-1", lo.Region)
		return aws.Config{Region: lo.Region}, nil
	}

	var (
		putKey, putType, deletedKey string
		putBody                     []byte
	)
	putObject = func(_ *s3.Client, _ context.Context, in *s3.PutObjectInput) error {
		assert.Equal(t, "love", aws.ToString(in.Bucket))
		putKey = aws.ToString(in.Key)
		putType = aws.ToString(in.ContentType)
		putBody, _ = io.ReadAll(in.Body)
		return nil
	}
	deleteObject = func(_ *s3.Client, _ context.Context, in *s3.DeleteObjectInput) error {
		deletedKey = aws.ToString(in.Key)
		return nil
	}

	s, err := NewS3Store(context.Background(), S3Options{
		Bucket:    "love",
		Region:    "eu-central-1",
		Endpoint:  "http://127.0.0.1:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
	})
	require.NoError(t, err)

	url, err := Upload(context.Background(), s, gifHeader, 0)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9000/love/"+putKey, url)
	assert.Equal(t, "image/gif", putType)
	assert.Equal(t, gifHeader, putBody)

	require.NoError(t, s.Delete(context.Background(), url))
	assert.Equal(t, putKey, deletedKey)
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Options{Region: "us-east-1"})
	assert.Error(t, err)
}
