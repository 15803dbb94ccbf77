package accounts_test

import (
	"testing"

	accounts "github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
)

func TestGateClassify(t *testing.T) {
	gate := accounts.NewGate()

	tests := []struct {
		path     string
		expected accounts.PathClass
	}{
		{"/", accounts.PathPublic},
		{"/about", accounts.PathPublic},
		{"/api/users/register", accounts.PathPublic},
		{"/profile", accounts.PathProtected},
		{"/profile/settings", accounts.PathProtected},
		{"/settings", accounts.PathProtected},
		{"/login", accounts.PathAuthOnly},
		{"/register", accounts.PathAuthOnly},
		{"/pending-verification", accounts.PathAuthOnly},
		{"/forgot-password", accounts.PathAuthOnly},
		{"/reset-password", accounts.PathAuthOnly},
		{"/reset-password/abc123", accounts.PathAuthOnly},
		{"/profiler", accounts.PathPublic},
		{"/loginx", accounts.PathPublic},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.expected, gate.Classify(tc.path))
		})
	}
}

func TestGateDecide(t *testing.T) {
	gate := accounts.NewGate()

	tests := []struct {
		name     string
		path     string
		valid    bool
		expected accounts.Decision
	}{
		{"protected with valid credential", "/profile", true, accounts.DecisionAllow},
		{"protected without credential", "/profile", false, accounts.DecisionRedirectLogin},
		{"nested protected without credential", "/settings/security", false, accounts.DecisionRedirectLogin},
		{"auth-only with valid credential", "/login", true, accounts.DecisionRedirectHome},
		{"auth-only without credential", "/login", false, accounts.DecisionAllow},
		{"register while logged in", "/register", true, accounts.DecisionRedirectHome},
		{"public with valid credential", "/", true, accounts.DecisionAllow},
		{"public without credential", "/", false, accounts.DecisionAllow},
		{"unknown path without credential", "/pricing", false, accounts.DecisionAllow},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, gate.Decide(tc.path, tc.valid))
		})
	}
}

func TestGateDecideIsStateless(t *testing.T) {
	gate := accounts.NewGate()

	// same path, different credential per call: each request is judged on
	// its own, nothing is remembered between calls
	assert.Equal(t, accounts.DecisionRedirectLogin, gate.Decide("/profile", false))
	assert.Equal(t, accounts.DecisionAllow, gate.Decide("/profile", true))
	assert.Equal(t, accounts.DecisionRedirectLogin, gate.Decide("/profile", false))
}

func TestGateCustomPaths(t *testing.T) {
	gate := accounts.NewGate(
		accounts.WithProtectedPaths("/admin"),
		accounts.WithAuthOnlyPaths("/signin"),
	)

	assert.Equal(t, accounts.PathProtected, gate.Classify("/admin"))
	assert.Equal(t, accounts.PathAuthOnly, gate.Classify("/signin"))
	assert.Equal(t, accounts.PathPublic, gate.Classify("/profile"))
	assert.Equal(t, accounts.PathPublic, gate.Classify("/login"))
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "allow", accounts.DecisionAllow.String())
	assert.Equal(t, "redirect-login", accounts.DecisionRedirectLogin.String())
	assert.Equal(t, "redirect-home", accounts.DecisionRedirectHome.String())
}
