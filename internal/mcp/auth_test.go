package mcp

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestBearerTokenEmptyWithoutSigningKey(t *testing.T) {
	cfg := &ServerConfig{ID: "srv1"}
	token, err := cfg.bearerToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "" {
		t.Fatalf("expected no token without a signing key, got %q", token)
	}
}

func TestBearerTokenSignsClaims(t *testing.T) {
	cfg := &ServerConfig{ID: "srv1", JWTSigningKey: "secret", JWTIssuer: "nexusactor"}
	signed, err := cfg.bearerToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if signed == "" {
		t.Fatal("expected a signed token")
	}

	parsed, err := jwt.ParseWithClaims(signed, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return []byte("secret"), nil
	})
	if err != nil {
		t.Fatalf("parse signed token: %v", err)
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject != "srv1" || claims.Issuer != "nexusactor" {
		t.Fatalf("unexpected claims: %+v", parsed.Claims)
	}
}
