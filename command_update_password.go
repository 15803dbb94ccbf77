package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type UpdatePasswordMessage struct {
	UserID          string `json:"user_id"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	OnResponse      func(resp *UpdatePasswordResponse)
}

func (p UpdatePasswordMessage) Type() string { return "user.update_password" }

type UpdatePasswordResponse struct {
	User *User
}

// UpdatePasswordHandler changes the password of an authenticated user.
// The current password must check out first; this is a session-holder
// operation, not a token redemption.
type UpdatePasswordHandler struct {
	repo   RepositoryManager
	logger Logger
}

func NewUpdatePasswordHandler(repo RepositoryManager) *UpdatePasswordHandler {
	return &UpdatePasswordHandler{repo: repo, logger: defLogger{}}
}

func (h *UpdatePasswordHandler) WithLogger(logger Logger) *UpdatePasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *UpdatePasswordHandler) Execute(ctx context.Context, event UpdatePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdatePasswordHandler) execute(ctx context.Context, event UpdatePasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetByID(ctx, event.UserID)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryNotFound, "failed to retrieve user for password update")
	}

	if err := ComparePasswordAndHash(event.CurrentPassword, user.PasswordHash); err != nil {
		return ErrMismatchedHashAndPassword
	}

	hash, err := HashPassword(event.NewPassword)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	updated, err := h.repo.Users().UpdatePassword(ctx, user.ID, hash)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password")
	}

	if event.OnResponse != nil {
		event.OnResponse(&UpdatePasswordResponse{User: updated})
	}

	return nil
}
