// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName is the cookie that carries the session token.
const CookieName = "auth_token"

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// Sessions signs and verifies ed25519 JWT session tokens.
type Sessions struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// TTL is the token lifetime; zero means tokens carry no exp claim.
	TTL time.Duration
}

// NewSessions builds a Sessions. A non-empty secret deterministically seeds
// the key pair so tokens survive restarts and work across instances; an empty
// secret generates a fresh pair.
func NewSessions(secret string, ttl time.Duration) (*Sessions, error) {
	s := &Sessions{TTL: ttl}
	if secret != "" {
		seed := sha256.Sum256([]byte(secret))
		s.privateKey = ed25519.NewKeyFromSeed(seed[:])
		s.publicKey = s.privateKey.Public().(ed25519.PublicKey)
		return s, nil
	}

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	s.privateKey, s.publicKey = priv, pub
	return s, nil
}

// Issue creates a signed token with sub = userID.
func (s *Sessions) Issue(userID uuid.UUID) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"iat": now.Unix(),
	}
	if s.TTL > 0 {
		claims["exp"] = now.Add(s.TTL).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(s.privateKey)
}

// Verify checks the signature and expiry of tokenString and returns its subject.
func (s *Sessions) Verify(tokenString string) (uuid.UUID, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.publicKey, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !t.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, ErrInvalidToken
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}

	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed sub", ErrInvalidToken)
	}
	return userID, nil
}

// MaxAge is the cookie max-age matching TTL (0 leaves it a session cookie).
func (s *Sessions) MaxAge() int {
	return int(s.TTL.Seconds())
}
