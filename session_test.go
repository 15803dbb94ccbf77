package accounts_test

import (
	"testing"
	"time"

	accounts "github.com/goliatone/go-accounts"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionObjectGetters(t *testing.T) {
	id := uuid.New()
	issuedAt := time.Now()
	expiresAt := issuedAt.Add(24 * time.Hour)

	session := &accounts.SessionObject{
		UserID:         id.String(),
		Username:       "pepe",
		Issuer:         "accounts-test",
		IssuedAt:       &issuedAt,
		ExpirationDate: &expiresAt,
	}

	assert.Equal(t, id.String(), session.GetUserID())
	assert.Equal(t, "pepe", session.GetUsername())
	assert.Equal(t, "accounts-test", session.GetIssuer())
	assert.Equal(t, &issuedAt, session.GetIssuedAt())
	assert.Equal(t, &expiresAt, session.GetExpiration())

	parsed, err := session.GetUserUUID()
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestSessionObjectGetUserUUIDInvalid(t *testing.T) {
	session := &accounts.SessionObject{UserID: "not-a-uuid"}
	_, err := session.GetUserUUID()
	assert.Error(t, err)
}

func TestGetRouterSession(t *testing.T) {
	t.Run("no cookie in locals", func(t *testing.T) {
		ctx := &MockContext{}
		ctx.On("Locals", "user").Return(nil)

		_, err := accounts.GetRouterSession(ctx, "user")
		assert.Equal(t, accounts.ErrUnableToFindSession, err)
	})

	t.Run("locals holds something other than a token", func(t *testing.T) {
		ctx := &MockContext{}
		ctx.On("Locals", "user").Return("a string")

		_, err := accounts.GetRouterSession(ctx, "user")
		assert.Equal(t, accounts.ErrUnableToDecodeSession, err)
	})

	t.Run("claims stored by the gate middleware", func(t *testing.T) {
		svc := newTestTokenService()
		raw, err := svc.Generate(stubIdentity{id: "user-1", username: "pepe"})
		require.NoError(t, err)

		claims, err := svc.Validate(raw)
		require.NoError(t, err)

		ctx := &MockContext{}
		ctx.On("Locals", "token").Return(claims)

		session, err := accounts.GetRouterSession(ctx, "token")
		require.NoError(t, err)
		assert.Equal(t, "user-1", session.GetUserID())
		assert.Equal(t, "pepe", session.GetUsername())
	})

	t.Run("token with map claims", func(t *testing.T) {
		now := time.Now()
		token := &jwt.Token{
			Claims: jwt.MapClaims{
				"sub":      "user-1",
				"iss":      "accounts-test",
				"username": "pepe",
				"iat":      float64(now.Unix()),
				"exp":      float64(now.Add(time.Hour).Unix()),
			},
		}

		ctx := &MockContext{}
		ctx.On("Locals", "user").Return(token)

		session, err := accounts.GetRouterSession(ctx, "user")
		require.NoError(t, err)
		assert.Equal(t, "user-1", session.GetUserID())
		assert.Equal(t, "pepe", session.GetUsername())
		assert.Equal(t, "accounts-test", session.GetIssuer())
	})
}
