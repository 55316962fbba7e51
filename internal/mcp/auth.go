package mcp

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// bearerToken mints a short-lived HS256 token for an HTTP MCP server
// configured with a JWTSigningKey, matching the bearer-token convention
// several MCP HTTP servers use in place of a static API key header.
func (c *ServerConfig) bearerToken() (string, error) {
	if c.JWTSigningKey == "" {
		return "", nil
	}

	ttl := c.JWTTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    c.JWTIssuer,
		Subject:   c.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(c.JWTSigningKey))
	if err != nil {
		return "", fmt.Errorf("mcp: sign jwt for server %s: %w", c.ID, err)
	}
	return signed, nil
}
