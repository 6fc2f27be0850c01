package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/profilekeeper/internal/common"
)

// Claims are the ID-token fields the client relies on.
type Claims struct {
	jwt.RegisteredClaims
	UserID        string  `json:"user_id"`
	Email         string  `json:"email"`
	EmailVerified bool    `json:"email_verified"`
	AuthTime      float64 `json:"auth_time"`
}

var parser = jwt.NewParser()

// ParseClaims decodes an ID token without checking its signature; the
// backend verifies tokens on every call.
func ParseClaims(idToken string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(idToken, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: no subject", common.ErrInvalidToken)
	}
	return claims, nil
}

// Expiry returns the exp claim, or the zero time.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// AuthenticatedAt returns the auth_time claim, or the zero time.
func (c *Claims) AuthenticatedAt() time.Time {
	if c.AuthTime == 0 {
		return time.Time{}
	}
	return time.Unix(int64(c.AuthTime), 0).UTC()
}
