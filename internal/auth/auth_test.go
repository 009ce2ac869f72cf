package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"familycal/internal/model"
)

func TestJWTVerifier(t *testing.T) {
	t.Parallel()

	const secret = "s3cret"
	v, err := NewJWTVerifier(secret)
	if err != nil {
		t.Fatal(err)
	}

	valid, err := Sign(secret, "user-1", "parent@example.com", time.Now(), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	expired, _ := Sign(secret, "user-1", "", time.Now().Add(-2*time.Hour), time.Hour)
	wrongKey, _ := Sign("other", "user-1", "", time.Now(), time.Hour)
	noSubject, _ := Sign(secret, "", "", time.Now(), time.Hour)
	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user-1"}).SignedString([]byte(secret))
	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{name: "valid", token: valid},
		{name: "empty", token: "", wantErr: true},
		{name: "garbage", token: "not.a.jwt", wantErr: true},
		{name: "expired", token: expired, wantErr: true},
		{name: "wrong key", token: wrongKey, wantErr: true},
		{name: "no subject", token: noSubject, wantErr: true},
		{name: "no expiry", token: noExpiry, wantErr: true},
		{name: "alg none", token: unsigned, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			id, err := v.Verify(context.Background(), tt.token)
			if tt.wantErr {
				if !errors.Is(err, model.ErrAuth) {
					t.Fatalf("err = %v, want ErrAuth", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if id.Subject != "user-1" || id.Email != "parent@example.com" {
				t.Errorf("identity = %+v", id)
			}
		})
	}
}

func TestNewJWTVerifier_EmptySecret(t *testing.T) {
	t.Parallel()

	if _, err := NewJWTVerifier(""); err == nil {
		t.Fatal("expected error")
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"abc":          "",
		"":             "",
	}
	for in, want := range tests {
		if got := BearerToken(in); got != want {
			t.Errorf("BearerToken(%q) = %q, want %q", in, got, want)
		}
	}
}
