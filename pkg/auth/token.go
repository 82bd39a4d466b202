// Package auth provides session token signing and password handling.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired means the token was valid but its lifetime has passed
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed means the token could not be parsed
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenSignature means the token signature did not verify
	ErrTokenSignature = errors.New("token signature invalid")
)

// Claims binds a token to a session id
type Claims struct {
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// TokenService issues and validates signed session tokens. It is a
// pure cryptographic function plus a wall-clock read; it never touches
// the session store.
type TokenService struct {
	secret   []byte
	duration time.Duration
}

// NewTokenService creates a token service with the given signing secret
// and token validity duration
func NewTokenService(secret string, duration time.Duration) *TokenService {
	return &TokenService{
		secret:   []byte(secret),
		duration: duration,
	}
}

// Issue produces a signed token embedding the session id with an
// absolute expiration instant
func (s *TokenService) Issue(sessionID string) (string, error) {
	now := time.Now()
	claims := Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.duration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate verifies signature and expiration and returns the embedded
// session id. Expired, malformed and forged tokens are distinguished
// error kinds so clients can tell "re-login" from "client bug".
func (s *TokenService) Validate(tokenString string) (string, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "", ErrTokenSignature
	default:
		return "", ErrTokenMalformed
	}

	if claims.SessionID == "" {
		return "", ErrTokenMalformed
	}
	return claims.SessionID, nil
}
