package accounts

import (
	"context"
	"net/mail"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SetVerifyTokenSQL overwrites any outstanding verification token on the
// matched user; superseded values become unredeemable immediately.
var SetVerifyTokenSQL = `UPDATE "users" AS "usr"
SET
	"verify_token" = ?,
	"verify_token_expiry" = ?,
	"updated_at" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND LOWER("usr"."email") = LOWER(?)
RETURNING *;`

var SetResetTokenSQL = `UPDATE "users" AS "usr"
SET
	"reset_token" = ?,
	"reset_token_expiry" = ?,
	"updated_at" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND LOWER("usr"."email") = LOWER(?)
RETURNING *;`

// RedeemVerifyTokenSQL is the compare-and-swap for verification redemption:
// the WHERE clause is keyed on the token value and its expiry, so two racing
// redemptions resolve to exactly one affected row.
var RedeemVerifyTokenSQL = `UPDATE "users" AS "usr"
SET
	"is_email_verified" = TRUE,
	"verify_token" = NULL,
	"verify_token_expiry" = NULL,
	"updated_at" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND "usr"."verify_token" = ?
AND "usr"."verify_token_expiry" > ?
RETURNING *;`

// RedeemResetTokenSQL clears the token and applies the new password hash in
// one statement, closing the window where a concurrent reset could reuse a
// token that looks valid but is about to be consumed. Redeeming a reset
// token also proves mailbox ownership, so the verified flag comes along.
var RedeemResetTokenSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?,
	"is_email_verified" = TRUE,
	"reset_token" = NULL,
	"reset_token_expiry" = NULL,
	"password_changed_at" = ?,
	"updated_at" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND "usr"."reset_token" = ?
AND "usr"."reset_token_expiry" > ?
RETURNING *;`

var UpdatePasswordSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?,
	"password_changed_at" = ?,
	"updated_at" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND "usr"."id" = ?
RETURNING *;`

type Users interface {
	repository.Repository[*User]

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)

	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByResetToken(ctx context.Context, value string) (*User, error)

	SetTokenFields(ctx context.Context, email string, purpose TokenPurpose, value string, expiry time.Time) (*User, error)
	RedeemVerifyToken(ctx context.Context, value string, now time.Time) (*User, error)
	RedeemResetToken(ctx context.Context, value, passwordHash string, now time.Time) (*User, error)

	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) (*User, error)

	TrackAttemptedLogin(ctx context.Context, user *User) error
	TrackSuccessfulLogin(ctx context.Context, user *User) error
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user)
	return a.Repository.CreateTx(ctx, tx, user)
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.getByColumn(ctx, "email", email)
}

func (a *users) GetByUsername(ctx context.Context, username string) (*User, error) {
	return a.getByColumn(ctx, "username", username)
}

func (a *users) GetByResetToken(ctx context.Context, value string) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.reset_token = ?", value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}

	return record, nil
}

// getByColumn performs a case-insensitive lookup against a unique column.
func (a *users) getByColumn(ctx context.Context, column, value string) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		Where("LOWER(?TableAlias."+column+") = LOWER(?)", strings.TrimSpace(value)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{column: value})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	for _, opt := range resolveUserIdentifier(identifier) {
		record, err := a.getByColumn(ctx, opt.column, opt.value)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, err
		}
		return record, nil
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

func (a *users) SetTokenFields(ctx context.Context, email string, purpose TokenPurpose, value string, expiry time.Time) (*User, error) {
	stmt := SetVerifyTokenSQL
	if purpose == PurposeReset {
		stmt = SetResetTokenSQL
	}

	res, err := a.Repository.RawTx(ctx, a.db, stmt, value, expiry, time.Now(), email)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"email": email})
	}

	return res[0], nil
}

func (a *users) RedeemVerifyToken(ctx context.Context, value string, now time.Time) (*User, error) {
	if value == "" {
		return nil, ErrTokenInvalidOrExpired
	}

	res, err := a.Repository.RawTx(ctx, a.db, RedeemVerifyTokenSQL, now, value, now)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to redeem verification token")
	}

	if len(res) == 0 {
		return nil, ErrTokenInvalidOrExpired
	}

	return res[0], nil
}

func (a *users) RedeemResetToken(ctx context.Context, value, passwordHash string, now time.Time) (*User, error) {
	if value == "" || passwordHash == "" {
		return nil, ErrTokenInvalidOrExpired
	}

	res, err := a.Repository.RawTx(ctx, a.db, RedeemResetTokenSQL, passwordHash, now, now, value, now)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to redeem reset token")
	}

	if len(res) == 0 {
		return nil, ErrTokenInvalidOrExpired
	}

	return res[0], nil
}

func (a *users) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) (*User, error) {
	now := time.Now()
	res, err := a.Repository.RawTx(ctx, a.db, UpdatePasswordSQL, passwordHash, now, now, id.String())
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return res[0], nil
}

func (a *users) TrackSuccessfulLogin(ctx context.Context, user *User) error {
	// NOTE: Updating using the ORM fails due to a bug, it wont reset
	// login_attempt_at, login_attempts fields.
	loggedInAt := time.Now()
	_, err := a.db.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"loggedin_at" = ?,
			"login_attempt_at" = NULL,
			"login_attempts" = 0
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, loggedInAt, user.ID).Exec(ctx)

	return err
}

func (a *users) TrackAttemptedLogin(ctx context.Context, user *User) error {
	criteria := []repository.UpdateCriteria{
		repository.UpdateByID(user.ID.String()),
	}

	record := &User{}
	record.ID = user.ID
	record.LoginAttempts = user.LoginAttempts + 1
	now := time.Now()
	record.LoginAttemptAt = &now

	_, err := a.Repository.UpdateTx(ctx, a.db, record, criteria...)

	return err
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	record.Email = strings.ToLower(strings.TrimSpace(record.Email))
	record.Username = strings.TrimSpace(record.Username)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

type identifierOption struct {
	column string
	value  string
}

func resolveUserIdentifier(identifier string) []identifierOption {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil
	}

	options := make([]identifierOption, 0, 2)

	if isEmail(trimmed) {
		options = append(options, identifierOption{
			column: "email",
			value:  trimmed,
		})
	}

	options = append(options, identifierOption{
		column: "username",
		value:  trimmed,
	})

	return options
}

func isEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}
