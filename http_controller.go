package accounts

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// GetRouterSession reads the session the gate middleware stashed in Locals.
// Raw *jwt.Token values from generic JWT middleware decode as well.
func GetRouterSession(c router.Context, key string) (*SessionObject, error) {
	cookie := c.Locals(key)
	if cookie == nil {
		return nil, ErrUnableToFindSession
	}

	switch v := cookie.(type) {
	case AuthClaims:
		return sessionFromAuthClaims(v)
	case *jwt.Token:
		claims, ok := v.Claims.(jwt.MapClaims)
		if claims == nil || !ok {
			return nil, ErrUnableToMapClaims
		}
		return sessionFromClaims(claims)
	default:
		return nil, ErrUnableToDecodeSession
	}
}

// RegisterAccountRoutes mounts the account API on the given router.
func RegisterAccountRoutes[T any](app router.Router[T], opts ...AccountControllerOption) {

	controller := NewAccountController(opts...)

	app.Post(controller.Routes.Register, controller.Register).
		SetName("users.register.post")

	app.Post(controller.Routes.Login, controller.Login).
		SetName("users.login.post")

	app.Get(controller.Routes.Logout, controller.Logout).
		SetName("users.logout.get")

	app.Post(controller.Routes.VerifyMail, controller.VerifyMail).
		SetName("users.verifymail.post")

	app.Post(controller.Routes.ForgotPassword, controller.ForgotPassword).
		SetName("users.forgotpassword.post")

	app.Post(controller.Routes.ResetPassword, controller.ResetPassword).
		SetName("users.resetpassword.post")

	app.Put(controller.Routes.UpdatePassword, controller.UpdatePassword).
		SetName("users.updatepassword.put")

	app.Get(controller.Routes.Me, controller.Me).
		SetName("users.me.get")

	app.Get(controller.Routes.Status, controller.Status).
		SetName("auth.status.get")
}

type AccountControllerRoutes struct {
	Register       string
	Login          string
	Logout         string
	VerifyMail     string
	ForgotPassword string
	ResetPassword  string
	UpdatePassword string
	Me             string
	Status         string
}

type AccountController struct {
	Debug   bool
	Logger  Logger
	Repo    RepositoryManager
	Tokens  *TokenManager
	Routes  *AccountControllerRoutes
	Auther  HTTPAuthenticator
	Signer  TokenService
	Config  Config
	Session SessionConfig
}

// SessionConfig is the slice of Config the controller reads cookies with.
type SessionConfig interface {
	GetContextKey() string
}

type AccountControllerOption func(*AccountController) *AccountController

func WithControllerDebug(debug bool) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Debug = debug
		return c
	}
}

func WithControllerLogger(logger Logger) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerRepo(repo RepositoryManager) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Repo = repo
		return c
	}
}

func WithControllerTokens(tokens *TokenManager) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Tokens = tokens
		return c
	}
}

func WithControllerAuther(auther HTTPAuthenticator) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Auther = auther
		return c
	}
}

func WithControllerSigner(signer TokenService) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Signer = signer
		return c
	}
}

func WithControllerConfig(cfg Config) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Config = cfg
		c.Session = cfg
		return c
	}
}

func NewAccountController(opts ...AccountControllerOption) *AccountController {
	c := &AccountController{
		Logger: defLogger{},
		Routes: &AccountControllerRoutes{
			Register:       "/api/users/register",
			Login:          "/api/users/login",
			Logout:         "/api/users/logout",
			VerifyMail:     "/api/users/verifymail",
			ForgotPassword: "/api/users/forgotpassword",
			ResetPassword:  "/api/users/resetpassword",
			UpdatePassword: "/api/users/updatepassword",
			Me:             "/api/users/me",
			Status:         "/api/auth/status",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in account controller...")
	}

	if c.Tokens == nil {
		panic("Missing TokenManager in account controller...")
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in account controller...")
	}

	if c.Config == nil {
		panic("Missing Config in account controller...")
	}

	return c
}

// RegistrationCreatePayload is the registration body
type RegistrationCreatePayload struct {
	Username string `form:"username" json:"username"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Length(0, 100)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
	)
}

func (a *AccountController) Register(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register user parse payload: ", "error", err)
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": "failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register user validate payload: ", "error", err)
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "invalid registration payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	var res *RegisterUserResponse
	req := RegisterUserMessage{
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
		OnResponse: func(resp *RegisterUserResponse) {
			res = resp
		},
	}

	registerUser := NewRegisterUserHandler(a.Repo, a.Tokens)
	if err := registerUser.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("register user error: ", "error", err)
		return a.respondError(ctx, err, router.StatusBadRequest)
	}

	if a.Debug {
		a.Logger.Debug("registered user: %s", print.MaybePrettyJSON(res.User))
	}

	return ctx.JSON(router.StatusCreated, map[string]any{
		"message":        "account created, verification pending",
		"user":           publicUser(res.User),
		"mail_delivered": res.Token.Delivered,
	})
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
	RememberMe bool   `form:"remember_me" json:"remember_me"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Identifier
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// GetExtendedSession reports the remember-me flag
func (r LoginRequest) GetExtendedSession() bool {
	return r.RememberMe
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Identifier,
			validation.Required,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AccountController) Login(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": "failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "invalid login payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if err := a.Auther.Login(ctx, payload); err != nil {
		if IsEmailNotVerifiedError(err) {
			body := map[string]any{
				"error": "email address has not been verified",
			}
			// a fresh verification token was issued during this attempt;
			// surface its expiry so clients can show a countdown
			if expiry, ok := VerificationExpiry(err); ok {
				body["verification_expires_at"] = expiry.UnixMilli()
			}
			return ctx.JSON(router.StatusForbidden, body)
		}

		return a.respondError(ctx, err, router.StatusUnauthorized)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"message": "login successful",
	})
}

func (a *AccountController) Logout(ctx router.Context) error {
	a.Auther.Logout(ctx)
	return ctx.JSON(router.StatusOK, map[string]any{
		"message": "logged out",
	})
}

// VerifyMailPayload carries the verification token
type VerifyMailPayload struct {
	Token string `form:"token" json:"token"`
}

// Validate will validate the payload
func (r VerifyMailPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}

func (a *AccountController) VerifyMail(ctx router.Context) error {
	payload := new(VerifyMailPayload)

	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": "failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": "missing verification token",
		})
	}

	var res *VerifyEmailResponse
	req := VerifyEmailMessage{
		Token: payload.Token,
		OnResponse: func(resp *VerifyEmailResponse) {
			res = resp
		},
	}

	verifyEmail := NewVerifyEmailHandler(a.Tokens)
	if err := verifyEmail.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("verify email error: ", "error", err)
		return a.respondError(ctx, err, router.StatusBadRequest)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"message": "email verified",
		"user":    publicUser(res.User),
	})
}

// ForgotPasswordPayload starts a password reset
type ForgotPasswordPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r ForgotPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AccountController) ForgotPassword(ctx router.Context) error {
	payload := new(ForgotPasswordPayload)

	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": "failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "invalid email",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	var res *InitializePasswordResetResponse
	req := InitializePasswordResetMessage{
		Email: payload.Email,
		OnResponse: func(resp *InitializePasswordResetResponse) {
			res = resp
		},
	}

	initPwdReset := NewInitializePasswordResetHandler(a.Tokens)
	if err := initPwdReset.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("forgot password error: ", "error", err)
		return a.respondError(ctx, err, router.StatusNotFound)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"message":        "password reset mail sent",
		"mail_delivered": res.Token.Delivered,
	})
}

// ResetPasswordPayload finalizes a password reset
type ResetPasswordPayload struct {
	Token           string `form:"token" json:"token"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r ResetPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AccountController) ResetPassword(ctx router.Context) error {
	payload := new(ResetPasswordPayload)

	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": "failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "invalid reset payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	req := FinalizePasswordResetMessage{
		Token:    payload.Token,
		Password: payload.Password,
	}

	finalizePwdReset := NewFinalizePasswordResetHandler(a.Tokens)
	if err := finalizePwdReset.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("reset password error: ", "error", err)
		return a.respondError(ctx, err, router.StatusBadRequest)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"message": "password updated",
	})
}

// UpdatePasswordPayload changes the password of the session holder
type UpdatePasswordPayload struct {
	CurrentPassword string `form:"current_password" json:"current_password"`
	NewPassword     string `form:"new_password" json:"new_password"`
}

// Validate will validate the payload
func (r UpdatePasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(6, 100)),
	)
}

func (a *AccountController) UpdatePassword(ctx router.Context) error {
	claims, ok := a.sessionClaims(ctx)
	if !ok {
		return ctx.JSON(router.StatusUnauthorized, map[string]any{
			"error": "authentication required",
		})
	}

	payload := new(UpdatePasswordPayload)

	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": "failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "invalid password payload",
			"validation": FormatValidationErrorToMap(err),
		})
	}

	req := UpdatePasswordMessage{
		UserID:          claims.UserID(),
		CurrentPassword: payload.CurrentPassword,
		NewPassword:     payload.NewPassword,
	}

	updatePassword := NewUpdatePasswordHandler(a.Repo)
	if err := updatePassword.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("update password error: ", "error", err)
		return a.respondError(ctx, err, router.StatusBadRequest)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"message": "password updated",
	})
}

func (a *AccountController) Me(ctx router.Context) error {
	claims, ok := a.sessionClaims(ctx)
	if !ok {
		return ctx.JSON(router.StatusUnauthorized, map[string]any{
			"error": "authentication required",
		})
	}

	user, err := a.Repo.Users().GetByID(ctx.Context(), claims.UserID())
	if err != nil {
		a.Logger.Error("me lookup error: ", "error", err)
		return ctx.JSON(router.StatusUnauthorized, map[string]any{
			"error": "authentication required",
		})
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"user": publicUser(user),
	})
}

func (a *AccountController) Status(ctx router.Context) error {
	_, ok := a.sessionClaims(ctx)
	return ctx.JSON(router.StatusOK, map[string]any{
		"isLoggedIn": ok,
	})
}

// sessionClaims resolves the caller's claims, preferring what the gate
// middleware stashed and falling back to validating the cookie directly so
// routes work without the gate mounted.
func (a *AccountController) sessionClaims(ctx router.Context) (AuthClaims, bool) {
	if claims, ok := GetRouterClaims(ctx, a.Session.GetContextKey()); ok {
		return claims, true
	}

	if a.Signer == nil {
		return nil, false
	}

	raw := ctx.Cookies(a.Session.GetContextKey())
	if raw == "" {
		return nil, false
	}

	claims, err := a.Signer.Validate(raw)
	if err != nil {
		return nil, false
	}

	return claims, true
}

func (a *AccountController) respondError(ctx router.Context, err error, fallback int) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return ctx.JSON(router.StatusInternalServerError, map[string]any{
			"error": "an unexpected error occurred",
		})
	}

	code := richErr.Code
	if code == 0 {
		code = fallback
	}

	body := map[string]any{
		"error": richErr.Message,
	}
	if richErr.TextCode != "" {
		body["code"] = richErr.TextCode
	}

	return ctx.JSON(code, body)
}

func publicUser(u *User) map[string]any {
	if u == nil {
		return nil
	}
	return map[string]any{
		"id":                u.ID.String(),
		"username":          u.Username,
		"email":             u.Email,
		"is_email_verified": u.EmailVerified,
		"created_at":        u.CreatedAt,
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field-to-message map.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			out[field] = ferr.Error()
		}
		return out
	}

	out["error"] = err.Error()
	return out
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}
