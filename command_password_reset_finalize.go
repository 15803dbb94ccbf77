package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type FinalizePasswordResetMessage struct {
	Token      string `json:"token"`
	Password   string `json:"password"`
	OnResponse func(resp *FinalizePasswordResetResponse)
}

func (p FinalizePasswordResetMessage) Type() string { return "user.password_reset_finalize" }

type FinalizePasswordResetResponse struct {
	User *User
}

// FinalizePasswordResetHandler consumes a reset token and installs the new
// password. Both happen in one store operation: if the token loses the
// race it was already spent and the password is untouched.
type FinalizePasswordResetHandler struct {
	tokens *TokenManager
}

func NewFinalizePasswordResetHandler(tokens *TokenManager) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{tokens: tokens}
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Token == "" {
		return ErrTokenInvalidOrExpired
	}

	user, err := h.tokens.RedeemReset(ctx, event.Token, event.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	if event.OnResponse != nil {
		event.OnResponse(&FinalizePasswordResetResponse{User: user})
	}

	return nil
}
