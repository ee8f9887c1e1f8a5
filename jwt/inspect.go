package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Inspect decodes the claims of tokenStr WITHOUT verifying its signature.
// Opaque (non-JWT) tokens return ErrTokenMalformed.
func Inspect(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	return claims, nil
}

// Expiry returns the exp claim, if present.
func (c *Claims) Expiry() (time.Time, bool) {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}, false
	}
	return c.ExpiresAt.Time, true
}

// Expired reports whether exp is before now minus leeway. Tokens without exp never expire.
func (c *Claims) Expired(now time.Time, leeway time.Duration) bool {
	exp, ok := c.Expiry()
	if !ok {
		return false
	}
	return exp.Add(leeway).Before(now)
}
