package auth_test

import (
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gatehouse/internal/auth/app"
	"github.com/aussiebroadwan/gatehouse/pkg/authsdk"
)

/*
 * End-to-end tests run the fully wired application in process: sqlite on
 * disk, the in-memory fast store, the log mailer and production password
 * hashing. Only the listener is replaced by httptest.
 */

const (
	adminEmail    = "admin@example.com"
	adminPassword = "Admin-Password-123"
	userPassword  = "User-Password-123"
)

// testConfig mirrors what LoadConfig would produce, with rate limits raised
// so tests can hammer endpoints.
func testConfig(t *testing.T) app.Config {
	t.Helper()
	dir := t.TempDir()

	return app.Config{
		Env:                  "test",
		LogLevel:             "error",
		LogFormat:            "json",
		Port:                 8080,
		ShutdownGracePeriod:  5 * time.Second,
		HousekeepingInterval: time.Hour,
		Auth: app.AuthConfig{
			Issuer:             "gatehouse-e2e",
			AccessSecret:       strings.Repeat("a", 32),
			RefreshSecret:      strings.Repeat("r", 32),
			ResetSecret:        strings.Repeat("p", 32),
			AccessTTL:          15 * time.Minute,
			RefreshIdleTTL:     24 * time.Hour,
			RefreshAbsoluteTTL: 48 * time.Hour,
			ResetTTL:           time.Hour,
			PermissionCacheTTL: time.Minute,
			StoreTimeout:       2 * time.Second,
			RetentionPeriod:    24 * time.Hour,
			PepperFile:         filepath.Join(dir, "pepper"),
		},
		Database:  app.DatabaseConfig{Driver: "sqlite", File: filepath.Join(dir, "auth.db")},
		FastStore: app.FastStoreConfig{Driver: "memory"},
		Mailer:    app.MailerConfig{Driver: "log", ResetURL: "https://app.example.com/reset"},
		Bootstrap: app.BootstrapConfig{AdminEmail: adminEmail, AdminPassword: adminPassword},
		RateLimit: app.RateLimitConfig{
			StrictRequests: 1000, StrictWindow: time.Minute, StrictBurst: 1000,
			ModerateRequests: 1000, ModerateWindow: time.Minute, ModerateBurst: 1000,
		},
	}
}

// setupAuthService starts the application and returns a client pointed at it.
func setupAuthService(t *testing.T, mutate ...func(*app.Config)) *authsdk.SDKClient {
	t.Helper()

	cfg := testConfig(t)
	for _, m := range mutate {
		m(&cfg)
	}
	require.NoError(t, cfg.Validate())

	a, err := app.New(cfg)
	require.NoError(t, err)

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(func() {
		srv.Close()
		require.NoError(t, a.Shutdown())
	})

	return authsdk.NewSDKClient(srv.URL)
}

// adminSession logs in as the bootstrap administrator.
func adminSession(t *testing.T, client *authsdk.SDKClient) *authsdk.Session {
	t.Helper()
	session, err := client.AuthenticateWithPassword(t.Context(), adminEmail, adminPassword)
	require.NoError(t, err)
	return session
}

// registerAndLogin creates a fresh account and opens a session for it.
func registerAndLogin(t *testing.T, client *authsdk.SDKClient, email string) (*authsdk.User, *authsdk.Session) {
	t.Helper()

	user, err := client.Register(t.Context(), email, userPassword)
	require.NoError(t, err)
	require.Equal(t, email, user.Email)

	session, err := client.AuthenticateWithPassword(t.Context(), email, userPassword)
	require.NoError(t, err)
	return user, session
}

// findRoleByName searches for a role by name and returns its ID.
func findRoleByName(t *testing.T, session *authsdk.Session, roleName string) int64 {
	t.Helper()

	rolesResp, err := session.ListRoles(t.Context())
	require.NoError(t, err)
	require.NotEmpty(t, rolesResp.Roles, "Should have at least one role")

	for _, role := range rolesResp.Roles {
		if role.Name == roleName {
			return role.ID
		}
	}

	t.Fatalf("Role '%s' not found", roleName)
	return 0
}

// assertTokenResponse verifies a token response has all required fields.
func assertTokenResponse(t *testing.T, resp *authsdk.TokenResponse) {
	t.Helper()
	require.NotNil(t, resp)
	require.NotEmpty(t, resp.AccessToken, "Access token should not be empty")
	require.NotEmpty(t, resp.RefreshToken, "Refresh token should not be empty")
	require.Equal(t, "Bearer", resp.TokenType, "Token type should be Bearer")
	require.Positive(t, resp.ExpiresIn)
}

// assertCode checks the error is an API error with the given code.
func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.True(t, authsdk.IsCode(err, code), "want %s, got: %v", code, err)
}
