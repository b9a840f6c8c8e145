// internal/common/utils/jwt.go
// Claims inspection for the server-issued session token. The client never
// verifies signatures (it has no secret); it only peeks at expiry and
// identity claims before dialing so a dead token fails fast and loudly.

package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var ErrTokenExpired = errors.New("session token is expired")

// TokenClaims is the subset of the session token the client cares about.
type TokenClaims struct {
	Username  string
	ExpiresAt time.Time
}

// InspectToken decodes a JWT without verifying it and returns the claims
// the client uses. Returns ErrTokenExpired when exp has passed.
func InspectToken(tokenString string) (*TokenClaims, error) {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("unexpected claims format")
	}

	out := &TokenClaims{
		Username: getStringClaim(claims, "username"),
	}
	if exp := getInt64Claim(claims, "exp"); exp > 0 {
		out.ExpiresAt = time.Unix(exp, 0)
		if time.Now().After(out.ExpiresAt) {
			return out, ErrTokenExpired
		}
	}
	return out, nil
}

// Helper functions to safely extract claims
func getStringClaim(claims jwt.MapClaims, key string) string {
	if val, ok := claims[key].(string); ok {
		return val
	}
	return ""
}

func getInt64Claim(claims jwt.MapClaims, key string) int64 {
	if val, ok := claims[key].(float64); ok {
		return int64(val)
	}
	return 0
}
