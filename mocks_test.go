package accounts_test

import (
	"context"
	"sync"
	"time"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

// memoryTokenStore is a mutex-guarded TokenStore whose redemptions follow
// the same compare-and-clear rule as the SQL implementation: the token must
// match and be unexpired inside the critical section, and winning clears it.
type memoryTokenStore struct {
	mu    sync.Mutex
	users map[string]*accounts.User
}

func newMemoryTokenStore(users ...*accounts.User) *memoryTokenStore {
	s := &memoryTokenStore{users: map[string]*accounts.User{}}
	for _, u := range users {
		s.users[u.Email] = u
	}
	return s
}

func (s *memoryTokenStore) user(email string) *accounts.User {
	return s.users[email]
}

func (s *memoryTokenStore) GetByResetToken(ctx context.Context, value string) (*accounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ResetToken == value && value != "" {
			return u, nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

func (s *memoryTokenStore) SetTokenFields(ctx context.Context, email string, purpose accounts.TokenPurpose, value string, expiry time.Time) (*accounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[email]
	if !ok {
		return nil, repository.NewRecordNotFound()
	}

	switch purpose {
	case accounts.PurposeVerify:
		u.VerifyToken = value
		u.VerifyTokenExp = &expiry
	case accounts.PurposeReset:
		u.ResetToken = value
		u.ResetTokenExp = &expiry
	}
	return u, nil
}

func (s *memoryTokenStore) RedeemVerifyToken(ctx context.Context, value string, now time.Time) (*accounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.VerifyToken == value && value != "" && u.VerifyTokenExp != nil && u.VerifyTokenExp.After(now) {
			u.EmailVerified = true
			u.VerifyToken = ""
			u.VerifyTokenExp = nil
			return u, nil
		}
	}
	return nil, accounts.ErrTokenInvalidOrExpired
}

func (s *memoryTokenStore) RedeemResetToken(ctx context.Context, value, passwordHash string, now time.Time) (*accounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ResetToken == value && value != "" && u.ResetTokenExp != nil && u.ResetTokenExp.After(now) {
			u.PasswordHash = passwordHash
			u.EmailVerified = true
			u.ResetToken = ""
			u.ResetTokenExp = nil
			return u, nil
		}
	}
	return nil, accounts.ErrTokenInvalidOrExpired
}

// captureMailer records every send and can be told to fail.
type captureMailer struct {
	mu    sync.Mutex
	sends []capturedMail
	err   error
}

type capturedMail struct {
	Email     string
	Purpose   accounts.TokenPurpose
	Token     string
	ExpiresAt time.Time
}

func (m *captureMailer) Send(ctx context.Context, email string, purpose accounts.TokenPurpose, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.sends = append(m.sends, capturedMail{Email: email, Purpose: purpose, Token: token, ExpiresAt: expiresAt})
	return nil
}

func (m *captureMailer) sent() []capturedMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]capturedMail{}, m.sends...)
}

// MockActivitySink implements accounts.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event accounts.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockIdentityProvider implements accounts.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) VerifyIdentity(ctx context.Context, identifier, password string) (accounts.Identity, error) {
	args := m.Called(ctx, identifier, password)
	identity, _ := args.Get(0).(accounts.Identity)
	return identity, args.Error(1)
}

func (m *MockIdentityProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (accounts.Identity, error) {
	args := m.Called(ctx, identifier)
	identity, _ := args.Get(0).(accounts.Identity)
	return identity, args.Error(1)
}

type mockConfig struct {
	signingKey string
	expiration int
	issuer     string
	audience   []string
	contextKey string
}

func (m *mockConfig) GetSigningKey() string    { return m.signingKey }
func (m *mockConfig) GetSigningMethod() string { return "HS256" }
func (m *mockConfig) GetContextKey() string {
	if m.contextKey == "" {
		return "token"
	}
	return m.contextKey
}
func (m *mockConfig) GetTokenExpiration() int         { return m.expiration }
func (m *mockConfig) GetExtendedTokenDuration() int   { return m.expiration * 7 }
func (m *mockConfig) GetTokenLookup() string          { return "cookie:token" }
func (m *mockConfig) GetAuthScheme() string           { return "Bearer" }
func (m *mockConfig) GetIssuer() string               { return m.issuer }
func (m *mockConfig) GetAudience() []string           { return m.audience }
func (m *mockConfig) GetRejectedRouteKey() string     { return "rejected_route" }
func (m *mockConfig) GetRejectedRouteDefault() string { return "/profile" }

func testUser(email string) *accounts.User {
	now := time.Now()
	hash, _ := accounts.HashPassword("secret-password")
	return &accounts.User{
		ID:            uuid.New(),
		Username:      "tester",
		Email:         email,
		PasswordHash:  hash,
		EmailVerified: true,
		CreatedAt:     &now,
		UpdatedAt:     &now,
	}
}

// MockContext mocks router.Context
type MockContext struct {
	mock.Mock
	NextCalled bool
}

func (m *MockContext) Next() error {
	m.NextCalled = true
	return nil
}

func (m *MockContext) Context() context.Context {
	args := m.Called()
	c, ok := args.Get(0).(context.Context)
	if !ok {
		panic("arg needs to be context.Context")
	}
	return c
}

func (m *MockContext) SetContext(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockContext) Path() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Method() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Body() []byte {
	args := m.Called()
	return args.Get(0).([]byte)
}

func (m *MockContext) Status(code int) router.Context {
	m.Called(code)
	return m
}

func (m *MockContext) SendString(s string) error {
	args := m.Called(s)
	return args.Error(0)
}

func (m *MockContext) Send(b []byte) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockContext) JSON(code int, val any) error {
	args := m.Called(code, val)
	return args.Error(0)
}

func (m *MockContext) NoContent(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) Render(name string, bind any, layout ...string) error {
	if len(layout) > 0 {
		args := m.Called(name, bind, layout[0])
		return args.Error(0)
	}
	args := m.Called(name, bind)
	return args.Error(0)
}

func (m *MockContext) Redirect(path string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(path, status)
		return args.Error(0)
	}
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockContext) RedirectToRoute(name string, data router.ViewContext, status ...int) error {
	if len(status) > 0 {
		args := m.Called(name, data, status[0])
		return args.Error(0)
	}
	args := m.Called(name, data)
	return args.Error(0)
}

func (m *MockContext) RedirectBack(fallback string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(fallback, status)
		return args.Error(0)
	}
	args := m.Called(fallback)
	return args.Error(0)
}

func (m *MockContext) SetHeader(key, val string) router.Context {
	m.Called(key, val)
	return m
}

func (m *MockContext) Header(key string) string {
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Get(key string, defaultValue any) any {
	args := m.Called(key, defaultValue)
	return args.Get(0)
}

func (m *MockContext) GetBool(key string, defaultValue bool) bool {
	args := m.Called(key, defaultValue)
	return args.Bool(0)
}

func (m *MockContext) GetInt(key string, def int) int {
	args := m.Called(key, def)
	return args.Int(0)
}

func (m *MockContext) Set(key string, val any) {
	m.Called(key, val)
}

func (m *MockContext) Bind(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindJSON(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindXML(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindQuery(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) CookieParser(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) Cookie(cookie *router.Cookie) {
	m.Called(cookie)
}

func (m *MockContext) Cookies(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Param(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) ParamsInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Query(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) QueryInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Queries() map[string]string {
	args := m.Called()
	return args.Get(0).(map[string]string)
}

func (m *MockContext) GetString(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		m.Called(key, value[0])
		return nil
	}
	args := m.Called(key)
	return args.Get(0)
}

func (m *MockContext) OriginalURL() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) OnNext(callback func() error) {
	m.Called(callback)
}

func (m *MockContext) Referer() string {
	args := m.Called()
	return args.String(0)
}
