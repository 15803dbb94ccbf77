package accounts

// SimpleConfig is a plain struct implementation of Config. Zero values
// fall back to working defaults through NewSimpleConfig.
type SimpleConfig struct {
	SigningKey            string
	SigningMethod         string
	ContextKey            string
	TokenExpiration       int
	ExtendedTokenDuration int
	TokenLookup           string
	AuthScheme            string
	Issuer                string
	Audience              []string
	RejectedRouteKey      string
	RejectedRouteDefault  string
}

// NewSimpleConfig fills defaults for everything but the signing key. The
// session cookie is named "token" and single sessions last one day.
func NewSimpleConfig(signingKey string) *SimpleConfig {
	return &SimpleConfig{
		SigningKey:            signingKey,
		SigningMethod:         "HS256",
		ContextKey:            "token",
		TokenExpiration:       24,
		ExtendedTokenDuration: 24 * 7,
		TokenLookup:           "cookie:token",
		AuthScheme:            "Bearer",
		Issuer:                "accounts",
		Audience:              []string{"accounts"},
		RejectedRouteKey:      "rejected_route",
		RejectedRouteDefault:  "/profile",
	}
}

func (c *SimpleConfig) GetSigningKey() string           { return c.SigningKey }
func (c *SimpleConfig) GetSigningMethod() string        { return c.SigningMethod }
func (c *SimpleConfig) GetContextKey() string           { return c.ContextKey }
func (c *SimpleConfig) GetTokenExpiration() int         { return c.TokenExpiration }
func (c *SimpleConfig) GetExtendedTokenDuration() int   { return c.ExtendedTokenDuration }
func (c *SimpleConfig) GetTokenLookup() string          { return c.TokenLookup }
func (c *SimpleConfig) GetAuthScheme() string           { return c.AuthScheme }
func (c *SimpleConfig) GetIssuer() string               { return c.Issuer }
func (c *SimpleConfig) GetAudience() []string           { return c.Audience }
func (c *SimpleConfig) GetRejectedRouteKey() string     { return c.RejectedRouteKey }
func (c *SimpleConfig) GetRejectedRouteDefault() string { return c.RejectedRouteDefault }

var _ Config = (*SimpleConfig)(nil)
