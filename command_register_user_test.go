package accounts_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	accounts "github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type MockRepositoryManager struct {
	mock.Mock
}

func (m *MockRepositoryManager) Validate() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRepositoryManager) MustValidate() {
	m.Called()
}

// RunInTx invokes the transaction function so its error propagates the way
// a real transaction rollback would.
func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	args := m.Called(ctx, opts, f)
	if err := args.Error(0); err != nil {
		return err
	}
	var tx bun.Tx
	return f(ctx, tx)
}

func (m *MockRepositoryManager) Users() accounts.Users {
	args := m.Called()
	users, _ := args.Get(0).(accounts.Users)
	return users
}

// MockUsers embeds the interface so only the methods a test exercises need
// mock implementations.
type MockUsers struct {
	mock.Mock
	accounts.Users
}

func (m *MockUsers) RegisterTx(ctx context.Context, tx bun.IDB, user *accounts.User) (*accounts.User, error) {
	args := m.Called(ctx, tx, user)
	created, _ := args.Get(0).(*accounts.User)
	return created, args.Error(1)
}

func expectRunInTx(t *testing.T, repo *MockRepositoryManager) {
	t.Helper()
	repo.On("RunInTx", mock.Anything, (*sql.TxOptions)(nil), mock.Anything).
		Return(nil).Once()
}

func TestRegisterUserHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the account and issues a verification token", func(t *testing.T) {
		created := testUser("pepe@example.com")
		created.EmailVerified = false

		store := newMemoryTokenStore(created)
		mailer := &captureMailer{}
		tokens := accounts.NewTokenManager(store).WithMailer(mailer)

		repo := &MockRepositoryManager{}
		users := &MockUsers{}
		repo.On("Users").Return(users).Once()
		users.On("RegisterTx", mock.Anything, mock.Anything, mock.MatchedBy(func(u *accounts.User) bool {
			return u.Email == "pepe@example.com" && u.Username == "pepe" && u.PasswordHash != ""
		})).Return(created, nil).Once()
		expectRunInTx(t, repo)

		var resp *accounts.RegisterUserResponse
		handler := accounts.NewRegisterUserHandler(repo, tokens)
		err := handler.Execute(ctx, accounts.RegisterUserMessage{
			Email:    "pepe@example.com",
			Password: "secret-password",
			OnResponse: func(r *accounts.RegisterUserResponse) {
				resp = r
			},
		})
		require.NoError(t, err)

		require.NotNil(t, resp)
		assert.Equal(t, created, resp.User)
		require.NotNil(t, resp.Token)
		assert.True(t, resp.Token.Delivered)
		assert.Equal(t, accounts.PurposeVerify, resp.Token.Purpose)

		// the token landed on the account row
		assert.Equal(t, resp.Token.Value, created.VerifyToken)

		sends := mailer.sent()
		require.Len(t, sends, 1)
		assert.Equal(t, resp.Token.Value, sends[0].Token)

		repo.AssertExpectations(t)
		users.AssertExpectations(t)
	})

	t.Run("mail failure does not unwind the account", func(t *testing.T) {
		created := testUser("pepe@example.com")
		created.EmailVerified = false

		store := newMemoryTokenStore(created)
		mailer := &captureMailer{err: errors.New("smtp unavailable")}
		tokens := accounts.NewTokenManager(store).WithMailer(mailer)

		repo := &MockRepositoryManager{}
		users := &MockUsers{}
		repo.On("Users").Return(users).Once()
		users.On("RegisterTx", mock.Anything, mock.Anything, mock.Anything).
			Return(created, nil).Once()
		expectRunInTx(t, repo)

		var resp *accounts.RegisterUserResponse
		handler := accounts.NewRegisterUserHandler(repo, tokens)
		err := handler.Execute(ctx, accounts.RegisterUserMessage{
			Email:    "pepe@example.com",
			Password: "secret-password",
			OnResponse: func(r *accounts.RegisterUserResponse) {
				resp = r
			},
		})
		require.NoError(t, err)

		require.NotNil(t, resp)
		require.NotNil(t, resp.Token)
		assert.False(t, resp.Token.Delivered)

		// token is live even though delivery failed
		assert.Equal(t, resp.Token.Value, created.VerifyToken)
	})

	t.Run("explicit username wins over the email local part", func(t *testing.T) {
		created := testUser("pepe@example.com")
		store := newMemoryTokenStore(created)
		tokens := accounts.NewTokenManager(store).WithMailer(&captureMailer{})

		repo := &MockRepositoryManager{}
		users := &MockUsers{}
		repo.On("Users").Return(users).Once()
		users.On("RegisterTx", mock.Anything, mock.Anything, mock.MatchedBy(func(u *accounts.User) bool {
			return u.Username == "el_pepe"
		})).Return(created, nil).Once()
		expectRunInTx(t, repo)

		handler := accounts.NewRegisterUserHandler(repo, tokens)
		err := handler.Execute(ctx, accounts.RegisterUserMessage{
			Username: "el_pepe",
			Email:    "pepe@example.com",
			Password: "secret-password",
		})
		require.NoError(t, err)

		users.AssertExpectations(t)
	})

	t.Run("duplicate account surfaces a conflict", func(t *testing.T) {
		tokens := accounts.NewTokenManager(newMemoryTokenStore()).WithMailer(&captureMailer{})

		repo := &MockRepositoryManager{}
		users := &MockUsers{}
		repo.On("Users").Return(users).Once()
		users.On("RegisterTx", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("UNIQUE constraint failed: users.email")).Once()
		expectRunInTx(t, repo)

		handler := accounts.NewRegisterUserHandler(repo, tokens)
		err := handler.Execute(ctx, accounts.RegisterUserMessage{
			Email:    "pepe@example.com",
			Password: "secret-password",
		})

		require.Error(t, err)
		var richErr *goerrors.Error
		require.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, goerrors.CategoryConflict, richErr.Category)
	})

	t.Run("cancelled context aborts before any work", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		repo := &MockRepositoryManager{}
		tokens := accounts.NewTokenManager(newMemoryTokenStore())

		handler := accounts.NewRegisterUserHandler(repo, tokens)
		err := handler.Execute(cancelled, accounts.RegisterUserMessage{
			Email:    "pepe@example.com",
			Password: "secret-password",
		})

		require.Error(t, err)
		var richErr *goerrors.Error
		require.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, goerrors.CategoryOperation, richErr.Category)
	})
}
