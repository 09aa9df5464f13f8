package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastParams = &Argon2Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := CreateHash("hunter22", fastParams)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$"))

	ok, err := VerifyPassword("hunter22", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("hunter23", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashesAreSalted(t *testing.T) {
	a, err := CreateHash("same", fastParams)
	require.NoError(t, err)
	b, err := CreateHash("same", fastParams)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecodeHashRejectsGarbage(t *testing.T) {
	_, _, _, err := DecodeHash("plaintext")
	assert.ErrorIs(t, err, ErrInvalidHash)

	_, _, _, err = DecodeHash("$argon2id$v=18$m=1,t=1,p=1$c2FsdA$a2V5")
	assert.ErrorIs(t, err, ErrIncompatibleVersion)

	_, err = VerifyPassword("x", "$bcrypt$whatever")
	assert.Error(t, err)
}

func TestSessionRoundTrip(t *testing.T) {
	s, err := NewSessions("", time.Hour)
	require.NoError(t, err)

	id := uuid.New()
	tok, err := s.Issue(id)
	require.NoError(t, err)

	got, err := s.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.Equal(t, 3600, s.MaxAge())
}

func TestSessionSecretIsDeterministic(t *testing.T) {
	a, err := NewSessions("shared-secret", time.Hour)
	require.NoError(t, err)
	b, err := NewSessions("shared-secret", time.Hour)
	require.NoError(t, err)
	other, err := NewSessions("different", time.Hour)
	require.NoError(t, err)

	tok, err := a.Issue(uuid.New())
	require.NoError(t, err)

	_, err = b.Verify(tok)
	assert.NoError(t, err)
	_, err = other.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionExpiry(t *testing.T) {
	s, err := NewSessions("k", time.Hour)
	require.NoError(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{
		"sub": uuid.NewString(),
		"exp": time.Now().Add(-time.Minute).Unix(),
	})
	tok, err := expired.SignedString(s.privateKey)
	require.NoError(t, err)

	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionRejectsOtherAlgorithms(t *testing.T) {
	s, err := NewSessions("k", 0)
	require.NoError(t, err)

	hs := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": uuid.NewString()})
	tok, err := hs.SignedString([]byte("k"))
	require.NoError(t, err)

	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionWithoutTTLHasNoExpiry(t *testing.T) {
	s, err := NewSessions("k", 0)
	require.NoError(t, err)
	tok, err := s.Issue(uuid.New())
	require.NoError(t, err)

	parsed, _, err := jwt.NewParser().ParseUnverified(tok, jwt.MapClaims{})
	require.NoError(t, err)
	_, hasExp := parsed.Claims.(jwt.MapClaims)["exp"]
	assert.False(t, hasExp)
	assert.Zero(t, s.MaxAge())
}

func TestContextUserID(t *testing.T) {
	_, ok := UserID(context.Background())
	assert.False(t, ok)

	id := uuid.New()
	got, ok := UserID(WithUserID(context.Background(), id))
	assert.True(t, ok)
	assert.Equal(t, id, got)
}

func TestGoogleAuthCodeURL(t *testing.T) {
	g := NewGoogleProvider("client-id", "secret", "http://localhost:8080/auth/google/callback")
	u := g.AuthCodeURL("xyz")
	assert.Contains(t, u, "accounts.google.com")
	assert.Contains(t, u, "client_id=client-id")
	assert.Contains(t, u, "state=xyz")
}
