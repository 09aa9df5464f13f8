// Package storage validates image uploads and persists them to local disk or S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

var (
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmpty           = errors.New("empty file")
)

// DefaultMaxBytes is the upload cap when none is configured.
const DefaultMaxBytes = 1 << 20

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Store persists uploaded objects and resolves them back by public URL.
type Store interface {
	Save(ctx context.Context, name, contentType string, body []byte) (string, error)
	Delete(ctx context.Context, url string) error
}

// Validate sniffs body and returns its content type and file extension.
func Validate(body []byte, maxBytes int64) (contentType, ext string, err error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if len(body) == 0 {
		return "", "", ErrEmpty
	}
	if int64(len(body)) > maxBytes {
		return "", "", fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(body), maxBytes)
	}

	contentType = http.DetectContentType(body)
	ext, ok := extensions[contentType]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	return contentType, ext, nil
}

// Upload validates body and stores it under a random name.
func Upload(ctx context.Context, s Store, body []byte, maxBytes int64) (string, error) {
	contentType, ext, err := Validate(body, maxBytes)
	if err != nil {
		return "", err
	}
	return s.Save(ctx, uuid.NewString()+ext, contentType, body)
}
