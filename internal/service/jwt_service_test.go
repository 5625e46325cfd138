package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signTestClaims(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestJWTService_IssueParseAccess(t *testing.T) {
	svc := NewJWTService("secret", 15*time.Minute)

	token, err := svc.IssueAccessToken("u1")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	claims, err := svc.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if claims.UserID != "u1" || claims.Subject != "u1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestJWTService_RejectsEmptySecret(t *testing.T) {
	svc := NewJWTService("", 15*time.Minute)
	if _, err := svc.IssueAccessToken("u1"); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid on empty secret, got %v", err)
	}
	if _, err := svc.ParseAccessToken("x.y.z"); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid on empty secret, got %v", err)
	}
}

func TestJWTService_RejectsBadClaims(t *testing.T) {
	svc := NewJWTService("secret", 15*time.Minute)
	now := time.Now().UTC()
	base := func() Claims {
		return Claims{
			UserID:    "u1",
			TokenType: tokenTypeAccess,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    jwtIssuer,
				Subject:   "u1",
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
			},
		}
	}

	cases := []struct {
		name   string
		mutate func(*Claims)
		secret string
		want   error
	}{
		{"wrong issuer", func(c *Claims) { c.Issuer = "other-issuer" }, "secret", ErrJWTInvalid},
		{"refresh type", func(c *Claims) { c.TokenType = "refresh" }, "secret", ErrJWTInvalid},
		{"subject mismatch", func(c *Claims) { c.Subject = "u2" }, "secret", ErrJWTInvalid},
		{"wrong secret", func(*Claims) {}, "other", ErrJWTInvalid},
		{"expired", func(c *Claims) { c.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute)) }, "secret", ErrJWTExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			claims := base()
			tc.mutate(&claims)
			_, err := svc.ParseAccessToken(signTestClaims(t, tc.secret, claims))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
