package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type VerifyEmailMessage struct {
	Token      string `json:"token"`
	OnResponse func(resp *VerifyEmailResponse)
}

func (e VerifyEmailMessage) Type() string { return "user.verify_email" }

type VerifyEmailResponse struct {
	User *User
}

// VerifyEmailHandler redeems a verification token. Redemption is single
// use: the matched account is flagged verified and the token cleared in
// one store operation.
type VerifyEmailHandler struct {
	tokens *TokenManager
}

func NewVerifyEmailHandler(tokens *TokenManager) *VerifyEmailHandler {
	return &VerifyEmailHandler{tokens: tokens}
}

func (h *VerifyEmailHandler) Execute(ctx context.Context, event VerifyEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyEmailHandler) execute(ctx context.Context, event VerifyEmailMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Token == "" {
		return ErrTokenInvalidOrExpired
	}

	user, err := h.tokens.RedeemVerification(ctx, event.Token)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to redeem verification token")
	}

	if event.OnResponse != nil {
		event.OnResponse(&VerifyEmailResponse{User: user})
	}

	return nil
}
