package accounts

import (
	"strings"
	"time"

	"github.com/goliatone/go-errors"
)

const (
	// TextCodeInvalidCreds flags generic credential failures
	TextCodeInvalidCreds = "INVALID_CREDENTIALS"
	// TextCodeTokenInvalid flags unknown, consumed, or expired lifecycle tokens
	TextCodeTokenInvalid = "TOKEN_INVALID_OR_EXPIRED"
	// TextCodeTokenExpired flags expired session credentials
	TextCodeTokenExpired = "TOKEN_EXPIRED"
	// TextCodeTokenMalformed flags undecodable session credentials
	TextCodeTokenMalformed = "TOKEN_MALFORMED"
	// TextCodeEmailNotVerified flags login attempts against unverified accounts
	TextCodeEmailNotVerified = "EMAIL_NOT_VERIFIED"
	// TextCodeTooManyAttempts flags the login cooldown
	TextCodeTooManyAttempts = "TOO_MANY_LOGIN_ATTEMPTS"
	// TextCodeSessionNotFound flags requests carrying no session cookie
	TextCodeSessionNotFound = "SESSION_NOT_FOUND"
	// TextCodeEmptyPassword flags empty password input
	TextCodeEmptyPassword = "EMPTY_PASSWORD"
	// TextCodeMailNotDelivered flags the persisted-token-but-mail-failed state
	TextCodeMailNotDelivered = "MAIL_NOT_DELIVERED"
)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound)

// ErrMismatchedHashAndPassword covers both unknown identifiers and wrong
// passwords so the error surface does not leak which one failed.
var ErrMismatchedHashAndPassword = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeInvalidCreds)

// ErrTokenInvalidOrExpired covers unknown, already consumed, and expired
// lifecycle tokens uniformly.
var ErrTokenInvalidOrExpired = errors.New("invalid or expired token", errors.CategoryAuth).
	WithCode(errors.CodeBadRequest).
	WithTextCode(TextCodeTokenInvalid)

// ErrTokenExpired is the structured variant of jwt's expiration error
var ErrTokenExpired = errors.New("authentication token has expired", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeTokenExpired)

// ErrTokenMalformed is the structured variant of jwt's malformed error
var ErrTokenMalformed = errors.New("invalid authentication token", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeTokenMalformed)

// ErrTooManyLoginAttempts is returned when the cooldown window is active
var ErrTooManyLoginAttempts = errors.New("too many login attempts", errors.CategoryRateLimit).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeTooManyAttempts)

// ErrUnableToFindSession is the error when our request has no cookie
var ErrUnableToFindSession = errors.New("unable to find session", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeSessionNotFound)

// ErrUnableToDecodeSession unable to decode JWT from session cookie
var ErrUnableToDecodeSession = errors.New("unable to decode session", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToParseData unable to read standard claims from the token
var ErrUnableToParseData = errors.New("unable to parse session data", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToMapClaims unable to get claims from token
var ErrUnableToMapClaims = errors.New("unable to map claims", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyString rejects empty passwords before hashing
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest).
	WithTextCode(TextCodeEmptyPassword)

// NewEmailNotVerifiedError builds the login rejection for unverified
// accounts. The email rides along as metadata so the session issuer can
// reissue a verification token without a second store lookup.
func NewEmailNotVerifiedError(email string) *errors.Error {
	return errors.New("email address has not been verified", errors.CategoryAuth).
		WithCode(errors.CodeForbidden).
		WithTextCode(TextCodeEmailNotVerified).
		WithMetadata(map[string]any{"email": email})
}

// IsEmailNotVerifiedError checks for the unverified-account rejection
func IsEmailNotVerifiedError(err error) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodeEmailNotVerified
}

// VerificationExpiry extracts the reissued token expiry attached to an
// unverified-account rejection, when present.
func VerificationExpiry(err error) (time.Time, bool) {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return time.Time{}, false
	}
	expiry, ok := richErr.Metadata["token_expires_at"].(time.Time)
	return expiry, ok
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode == TextCodeTokenExpired {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode == TextCodeTokenMalformed {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
