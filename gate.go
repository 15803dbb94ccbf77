package accounts

import (
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-router"
)

// Decision is the outcome of gating a single request.
type Decision int

const (
	// DecisionAllow lets the request through unchanged
	DecisionAllow Decision = iota
	// DecisionRedirectLogin bounces an unauthenticated caller to login
	DecisionRedirectLogin
	// DecisionRedirectHome bounces an authenticated caller away from
	// auth-only pages (login, register, verification, reset)
	DecisionRedirectHome
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionRedirectLogin:
		return "redirect-login"
	case DecisionRedirectHome:
		return "redirect-home"
	}
	return "unknown"
}

// PathClass buckets request paths for the gate.
type PathClass int

const (
	// PathPublic is reachable by anyone
	PathPublic PathClass = iota
	// PathProtected requires a valid session credential
	PathProtected
	// PathAuthOnly is only meaningful to unauthenticated callers
	PathAuthOnly
)

// Gate classifies request paths and decides, per request, whether the
// caller may proceed. Decide is a pure function: no store lookups, no
// side effects, evaluated fresh on every request.
type Gate struct {
	protected []string
	authOnly  []string
	loginPath string
	homePath  string
}

type GateOption func(*Gate)

// WithProtectedPaths replaces the protected prefix list.
func WithProtectedPaths(paths ...string) GateOption {
	return func(g *Gate) {
		g.protected = paths
	}
}

// WithAuthOnlyPaths replaces the auth-only prefix list.
func WithAuthOnlyPaths(paths ...string) GateOption {
	return func(g *Gate) {
		g.authOnly = paths
	}
}

// WithLoginPath overrides where unauthenticated callers are sent.
func WithLoginPath(path string) GateOption {
	return func(g *Gate) {
		g.loginPath = path
	}
}

// WithHomePath overrides the authenticated landing area.
func WithHomePath(path string) GateOption {
	return func(g *Gate) {
		g.homePath = path
	}
}

// NewGate returns a gate with the default path map.
func NewGate(opts ...GateOption) *Gate {
	g := &Gate{
		protected: []string{"/profile", "/settings"},
		authOnly: []string{
			"/login",
			"/register",
			"/pending-verification",
			"/forgot-password",
			"/reset-password",
		},
		loginPath: "/login",
		homePath:  "/profile",
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g
}

// Classify buckets a path. Auth-only wins over protected when prefixes
// overlap, so misconfiguration fails toward the less surprising redirect.
func (g *Gate) Classify(path string) PathClass {
	if matchesAny(path, g.authOnly) {
		return PathAuthOnly
	}
	if matchesAny(path, g.protected) {
		return PathProtected
	}
	return PathPublic
}

// Decide maps (path, credential validity) to a gating decision.
func (g *Gate) Decide(path string, credentialValid bool) Decision {
	switch g.Classify(path) {
	case PathProtected:
		if !credentialValid {
			return DecisionRedirectLogin
		}
	case PathAuthOnly:
		if credentialValid {
			return DecisionRedirectHome
		}
	}
	return DecisionAllow
}

// Middleware applies the gate to every request. Credential validity is a
// signature and expiry check only; the store is never consulted here.
func (g *Gate) Middleware(tokens TokenService, cfg Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			raw := ctx.Cookies(cfg.GetContextKey())

			var claims AuthClaims
			valid := false
			if raw != "" {
				if c, err := tokens.Validate(raw); err == nil {
					claims = c
					valid = true
				}
			}

			switch g.Decide(ctx.Path(), valid) {
			case DecisionRedirectLogin:
				g.rememberRejectedRoute(ctx, cfg)
				return ctx.Redirect(g.loginPath, redirectStatus(ctx))
			case DecisionRedirectHome:
				return ctx.Redirect(g.homePath, redirectStatus(ctx))
			}

			if valid {
				ctx.Locals(cfg.GetContextKey(), claims)
				ctx.SetContext(WithClaimsContext(ctx.Context(), claims))
			}

			return ctx.Next()
		}
	}
}

// rememberRejectedRoute stores the original URL so the login flow can send
// the caller back after authenticating.
func (g *Gate) rememberRejectedRoute(ctx router.Context, cfg Config) {
	key := cfg.GetRejectedRouteKey()
	if key == "" {
		return
	}

	ctx.Cookie(&router.Cookie{
		Name:     key,
		Value:    ctx.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func redirectStatus(ctx router.Context) int {
	if ctx.Method() == string(router.GET) {
		return http.StatusFound
	}
	return http.StatusSeeOther
}

func matchesAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p == "" {
			continue
		}
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
