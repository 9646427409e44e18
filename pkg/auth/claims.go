package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// StorefrontClaims are the claims the commerce API puts in its access tokens.
// user_id is numeric or a string depending on the backend.
type StorefrontClaims struct {
	UserID    any    `json:"user_id,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	jwt.RegisteredClaims
}

func (c StorefrontClaims) userID() string {
	switch v := c.UserID.(type) {
	case nil:
		return c.Subject
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprint(v)
	}
}
