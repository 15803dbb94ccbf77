package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// TokenStore is the slice of the user store the lifecycle manager needs.
// Every mutation must be atomic at the store level; the manager holds no
// in-process state and never guards tokens with its own locks.
type TokenStore interface {
	GetByResetToken(ctx context.Context, value string) (*User, error)
	SetTokenFields(ctx context.Context, email string, purpose TokenPurpose, value string, expiry time.Time) (*User, error)
	RedeemVerifyToken(ctx context.Context, value string, now time.Time) (*User, error)
	RedeemResetToken(ctx context.Context, value, passwordHash string, now time.Time) (*User, error)
}

// TokenManager owns the verification and reset token fields on user
// records: it is the only component that writes them.
type TokenManager struct {
	store    TokenStore
	source   TokenSource
	mailer   Mailer
	ttl      time.Duration
	logger   Logger
	activity ActivitySink
	now      func() time.Time
}

// NewTokenManager returns a manager with the default TTL and token source.
func NewTokenManager(store TokenStore) *TokenManager {
	return &TokenManager{
		store:    store,
		source:   NewRandomTokenSource(),
		mailer:   noopMailer{},
		ttl:      VerificationTokenTTL,
		logger:   defLogger{},
		activity: noopActivitySink{},
		now:      time.Now,
	}
}

func (m *TokenManager) WithMailer(mailer Mailer) *TokenManager {
	m.mailer = normalizeMailer(mailer)
	return m
}

func (m *TokenManager) WithLogger(logger Logger) *TokenManager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

func (m *TokenManager) WithTTL(ttl time.Duration) *TokenManager {
	if ttl > 0 {
		m.ttl = ttl
	}
	return m
}

func (m *TokenManager) WithTokenSource(source TokenSource) *TokenManager {
	if source != nil {
		m.source = source
	}
	return m
}

func (m *TokenManager) WithActivitySink(sink ActivitySink) *TokenManager {
	m.activity = normalizeActivitySink(sink)
	return m
}

// WithClock overrides the time source. Expiry tests use this.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	if now != nil {
		m.now = now
	}
	return m
}

// Issue persists a fresh token of the given purpose for the user matching
// email, overwriting any outstanding token of that purpose.
func (m *TokenManager) Issue(ctx context.Context, email string, purpose TokenPurpose) (*IssuedToken, error) {
	value, err := m.source.NewToken()
	if err != nil {
		return nil, err
	}

	expiresAt := m.now().Add(m.ttl)

	user, err := m.store.SetTokenFields(ctx, email, purpose, value, expiresAt)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, goerrors.New("no account matches the given email", goerrors.CategoryNotFound).
				WithCode(goerrors.CodeNotFound)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist lifecycle token")
	}

	m.record(ctx, ActivityEventTokenIssued, user, map[string]any{
		"purpose":    string(purpose),
		"expires_at": expiresAt,
	})

	return &IssuedToken{
		Value:     value,
		Purpose:   purpose,
		Email:     user.Email,
		ExpiresAt: expiresAt,
		Delivered: false,
	}, nil
}

// IssueAndDeliver issues a token and hands it to the mailer. A mail failure
// after the token has been persisted is a recognized partial failure: the
// token stays redeemable, Delivered reports false, and no error surfaces.
func (m *TokenManager) IssueAndDeliver(ctx context.Context, email string, purpose TokenPurpose) (*IssuedToken, error) {
	issued, err := m.Issue(ctx, email, purpose)
	if err != nil {
		return nil, err
	}

	if err := m.mailer.Send(ctx, issued.Email, purpose, issued.Value, issued.ExpiresAt); err != nil {
		m.logger.Warn("token delivery failed", "email", issued.Email, "purpose", purpose, "error", err)
		m.record(ctx, ActivityEventMailDeliveryFailed, nil, map[string]any{
			"email":   issued.Email,
			"purpose": string(purpose),
			"error":   err.Error(),
		})
		return issued, nil
	}

	issued.Delivered = true
	return issued, nil
}

// RedeemVerification consumes a verification token: the matched user is
// flagged verified and the token fields are cleared in the same store
// operation. A second redemption of the same value, or a redemption after
// expiry, fails with ErrTokenInvalidOrExpired.
func (m *TokenManager) RedeemVerification(ctx context.Context, value string) (*User, error) {
	user, err := m.store.RedeemVerifyToken(ctx, value, m.now())
	if err != nil {
		return nil, err
	}

	m.record(ctx, ActivityEventTokenRedeemed, user, map[string]any{
		"purpose": string(PurposeVerify),
	})

	return user, nil
}

// RedeemReset consumes a reset token and applies the new password hash in
// a single store operation, so a racing redemption cannot observe the old
// password with a still-valid token.
func (m *TokenManager) RedeemReset(ctx context.Context, value, newPassword string) (*User, error) {
	passwordHash, err := HashPassword(newPassword)
	if err != nil {
		return nil, err
	}

	user, err := m.store.RedeemResetToken(ctx, value, passwordHash, m.now())
	if err != nil {
		return nil, err
	}

	m.record(ctx, ActivityEventPasswordResetSuccess, user, map[string]any{
		"purpose": string(PurposeReset),
	})

	return user, nil
}

// CheckReset validates a reset token without consuming it. The reset form
// uses it to decide whether to show the password fields; the actual
// consumption happens in RedeemReset.
func (m *TokenManager) CheckReset(ctx context.Context, value string) (*User, error) {
	if value == "" {
		return nil, ErrTokenInvalidOrExpired
	}

	// No conditional update here: a user whose stored reset token matches
	// and is unexpired is simply read back.
	user, err := m.store.GetByResetToken(ctx, value)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrTokenInvalidOrExpired
		}
		return nil, err
	}

	if !user.HasActiveToken(PurposeReset, m.now()) || user.ResetToken != value {
		return nil, ErrTokenInvalidOrExpired
	}

	return user, nil
}

func (m *TokenManager) record(ctx context.Context, eventType ActivityEventType, user *User, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		Actor:      ActorRef{Type: "system"},
		Metadata:   metadata,
		OccurredAt: m.now(),
	}

	if user != nil {
		event.UserID = user.ID.String()
	}

	if err := normalizeActivitySink(m.activity).Record(ctx, event); err != nil {
		m.logger.Warn("activity sink record error: %v", err)
	}
}
