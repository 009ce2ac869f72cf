// Package auth verifies the identity of dashboard callers.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"familycal/internal/model"
)

// Identity is a verified caller.
type Identity struct {
	Subject string
	Email   string
}

// Verifier checks a bearer token and returns the caller it identifies.
// Failures are *model.AuthError.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

type claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier accepts HS256 tokens signed with a shared secret. Tokens must
// carry a subject and an expiry.
type JWTVerifier struct {
	key []byte
}

var _ Verifier = (*JWTVerifier)(nil)

func NewJWTVerifier(secret string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("auth: jwt secret is empty")
	}
	return &JWTVerifier{key: []byte(secret)}, nil
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, &model.AuthError{Err: errors.New("authorization token not provided")}
	}

	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.key, nil
	}, jwt.WithExpirationRequired(), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, &model.AuthError{Err: fmt.Errorf("invalid or expired token: %w", err)}
	}
	if c.Subject == "" {
		return Identity{}, &model.AuthError{Err: errors.New("token has no subject")}
	}

	return Identity{Subject: c.Subject, Email: c.Email}, nil
}

// BearerToken extracts the token of an "Authorization: Bearer <token>"
// header value. It returns "" if the header has another form.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Sign issues a token accepted by a JWTVerifier with the same secret.
func Sign(secret, subject, email string, issuedAt time.Time, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("auth: jwt secret is empty")
	}
	c := claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}
