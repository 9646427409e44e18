package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenMissing = errors.New("api token is not configured")
	ErrTokenExpired = errors.New("api token has expired")
)

// TokenInfo describes a bearer token without verifying its signature; the
// commerce API remains the authority on whether it is valid.
type TokenInfo struct {
	// Opaque is set for tokens that are not JWTs. Nothing is known about them.
	Opaque    bool
	UserID    string
	ExpiresAt *time.Time
}

// Expired reports whether the token expires at or before now+skew.
func (t TokenInfo) Expired(now time.Time, skew time.Duration) bool {
	if t.ExpiresAt == nil {
		return false
	}
	return !t.ExpiresAt.After(now.Add(skew))
}

// InspectToken reads the claims of a bearer token.
func InspectToken(token string) (TokenInfo, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return TokenInfo{}, ErrTokenMissing
	}
	if strings.Count(token, ".") != 2 {
		return TokenInfo{Opaque: true}, nil
	}

	claims := &StorefrontClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenInfo{Opaque: true}, nil
	}

	info := TokenInfo{UserID: claims.userID()}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time.UTC()
		info.ExpiresAt = &exp
	}
	return info, nil
}

// RequireUsable fails when the token is missing or already expired.
func RequireUsable(token string, now time.Time, skew time.Duration) (TokenInfo, error) {
	info, err := InspectToken(token)
	if err != nil {
		return info, err
	}
	if info.Expired(now, skew) {
		return info, ErrTokenExpired
	}
	return info, nil
}
