package accounts

import (
	"context"
	"time"
)

// mailSubjects keyed by token purpose
var mailSubjects = map[TokenPurpose]string{
	PurposeVerify: "Verify your email",
	PurposeReset:  "Reset your password",
}

// mailPaths are the client routes a delivered link points at
var mailPaths = map[TokenPurpose]string{
	PurposeVerify: "/pending-verification",
	PurposeReset:  "/reset-password",
}

// DevMailer prints delivery links instead of dispatching mail. It is the
// default sink in development and in tests.
type DevMailer struct {
	BaseURL string
	Logger  Logger
}

func NewDevMailer(baseURL string) *DevMailer {
	return &DevMailer{
		BaseURL: baseURL,
		Logger:  defLogger{},
	}
}

func (m *DevMailer) Send(ctx context.Context, email string, purpose TokenPurpose, token string, expiresAt time.Time) error {
	logger := m.Logger
	if logger == nil {
		logger = defLogger{}
	}

	logger.Info("====== SENDING EMAIL NOTIFICATION =======")
	logger.Info("to: %s", email)
	logger.Info("subject: %s", mailSubjects[purpose])
	logger.Info(
		"link: %s%s?token=%s&expiresAt=%d",
		m.BaseURL,
		mailPaths[purpose],
		token,
		expiresAt.UnixMilli(),
	)

	return nil
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, email string, purpose TokenPurpose, token string, expiresAt time.Time) error

func (f MailerFunc) Send(ctx context.Context, email string, purpose TokenPurpose, token string, expiresAt time.Time) error {
	if f == nil {
		return nil
	}
	return f(ctx, email, purpose, token, expiresAt)
}

type noopMailer struct{}

func (noopMailer) Send(context.Context, string, TokenPurpose, string, time.Time) error {
	return nil
}

func normalizeMailer(m Mailer) Mailer {
	if m == nil {
		return noopMailer{}
	}
	return m
}

var _ Mailer = (*DevMailer)(nil)
