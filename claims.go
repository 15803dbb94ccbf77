package accounts

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthClaims represents structured session credential claims
type AuthClaims interface {
	Subject() string
	UserID() string
	Username() string
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims. The credential is
// fully self-describing: once signed, no server-side session table exists,
// so revocation before natural expiry is only possible by rotating the
// signing secret.
type JWTClaims struct {
	jwt.RegisteredClaims
	UID   string `json:"uid,omitempty"`
	Uname string `json:"username,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Username returns the username claim
func (c *JWTClaims) Username() string {
	return c.Uname
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// ensureTokenID backfills a jti so individual credentials stay
// distinguishable in logs.
func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims == nil {
		return
	}
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
