package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoToken is returned when no token was configured.
	ErrNoToken = errors.New("no token")
	// ErrTokenExpired is returned for a token whose exp claim has passed.
	ErrTokenExpired = errors.New("token expired")
)

// Claims represents the WireChat claims the client cares about.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	IsGuest  bool   `json:"is_guest"`
	jwt.RegisteredClaims
}

// Inspect decodes a server-issued token without verifying its signature; the client
// never holds the signing secret. It rejects malformed and expired tokens so the user
// gets a clear error before dialing.
func Inspect(tokenString string, now time.Time) (*Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrNoToken
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
		return claims, fmt.Errorf("%w at %s", ErrTokenExpired, claims.ExpiresAt.Time.Format(time.RFC3339))
	}
	return claims, nil
}

// Name returns the username carried by the token, falling back to sub.
func (c *Claims) Name() string {
	if c.Username != "" {
		return c.Username
	}
	return c.RegisteredClaims.Subject
}
