package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

type InitializePasswordResetResponse struct {
	Token   *IssuedToken
	Success bool
}

// InitializePasswordResetHandler issues a reset token for the account
// matching the given email. Unlike verification, an unknown email is
// reported to the caller: the reset form asks for an address the user
// already claims to own.
type InitializePasswordResetHandler struct {
	tokens *TokenManager
}

func NewInitializePasswordResetHandler(tokens *TokenManager) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{tokens: tokens}
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	issued, err := h.tokens.IssueAndDeliver(ctx, event.Email, PurposeReset)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	if event.OnResponse != nil {
		event.OnResponse(&InitializePasswordResetResponse{
			Token:   issued,
			Success: true,
		})
	}

	return nil
}
