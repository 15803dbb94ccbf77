package accounts

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TokenPurpose tags a lifecycle token with the single flow it may redeem.
type TokenPurpose string

const (
	// PurposeVerify is the email verification flow
	PurposeVerify TokenPurpose = "VERIFY"
	// PurposeReset is the password reset flow
	PurposeReset TokenPurpose = "RESET"
)

// VerificationTokenTTL bounds both verification and reset tokens. Expiry is
// checked lazily at redemption time; there is no sweeper.
const VerificationTokenTTL = 120 * time.Second

// User is the account record. Each user carries at most one outstanding
// token per purpose; issuing a new one overwrites the previous value.
type User struct {
	bun.BaseModel     `bun:"table:users,alias:usr"`
	ID                uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username          string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email             string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash      string     `bun:"password_hash" json:"-"`
	EmailVerified     bool       `bun:"is_email_verified" json:"is_email_verified"`
	VerifyToken       string     `bun:"verify_token,nullzero" json:"-"`
	VerifyTokenExp    *time.Time `bun:"verify_token_expiry,nullzero" json:"-"`
	ResetToken        string     `bun:"reset_token,nullzero" json:"-"`
	ResetTokenExp     *time.Time `bun:"reset_token_expiry,nullzero" json:"-"`
	LoginAttempts     int        `bun:"login_attempts" json:"-"`
	LoginAttemptAt    *time.Time `bun:"login_attempt_at" json:"-"`
	LoggedInAt        *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	PasswordChangedAt *time.Time `bun:"password_changed_at,nullzero" json:"-"`
	CreatedAt         *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt         *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt         *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"-"`
}

// ActiveToken returns the stored token value and expiry for a purpose.
func (u *User) ActiveToken(purpose TokenPurpose) (string, *time.Time) {
	switch purpose {
	case PurposeVerify:
		return u.VerifyToken, u.VerifyTokenExp
	case PurposeReset:
		return u.ResetToken, u.ResetTokenExp
	}
	return "", nil
}

// HasActiveToken reports whether a non-expired token of the given purpose
// is outstanding at the reference instant.
func (u *User) HasActiveToken(purpose TokenPurpose, now time.Time) bool {
	value, expiry := u.ActiveToken(purpose)
	if value == "" || expiry == nil {
		return false
	}
	return expiry.After(now)
}

// IssuedToken is the user facing result of issuing a lifecycle token.
type IssuedToken struct {
	Value     string       `json:"token"`
	Purpose   TokenPurpose `json:"purpose"`
	Email     string       `json:"email"`
	ExpiresAt time.Time    `json:"expires_at"`
	// Delivered is false when the token landed in the store but the mail
	// dispatch failed. The token stays redeemable either way.
	Delivered bool `json:"delivered"`
}
