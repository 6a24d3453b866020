package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-core/internal/app"
	"github.com/jrsteele09/go-auth-core/internal/config"
	"github.com/jrsteele09/go-auth-core/token"
	"github.com/jrsteele09/go-auth-core/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setupEnv(t *testing.T, backend string) {
	t.Helper()
	t.Setenv("ENV", "test")
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("JWT_KEY_FILE", "")
	t.Setenv("STORE_BACKEND", backend)
	t.Setenv("NOTIFY_BACKEND", "log")
	t.Setenv("RATE_LIMIT_ENABLED", "true")
}

func buildApp(t *testing.T) *app.App {
	t.Helper()
	a, err := app.Build(context.Background(), config.New())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func registerAndLogin(t *testing.T, a *app.App) {
	t.Helper()
	ctx := context.Background()
	u, err := a.Auth.Register(ctx, "jane@example.com", "Password123")
	require.NoError(t, err)
	require.Equal(t, users.StatusPending, u.Status)

	_, err = a.Auth.Login(ctx, "jane@example.com", "Password123", "127.0.0.1|jane@example.com")
	require.Error(t, err)
}

func TestBuild_MemoryBackend(t *testing.T) {
	setupEnv(t, "memory")
	a := buildApp(t)
	registerAndLogin(t, a)

	rec := httptest.NewRecorder()
	a.Server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/favicon.ico", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// the revocation record of the verification token is purged once it expires
	assert.GreaterOrEqual(t, a.Cleanup(context.Background(), time.Now().Add(24*time.Hour)), 1)
}

func TestBuild_SQLiteBackend(t *testing.T) {
	setupEnv(t, "sqlite")
	t.Setenv("DATABASE_URL", filepath.Join(t.TempDir(), "data", "auth.db"))
	a := buildApp(t)
	registerAndLogin(t, a)
	assert.GreaterOrEqual(t, a.Cleanup(context.Background(), time.Now().Add(24*time.Hour)), 1)
}

func TestBuild_BoltBackend(t *testing.T) {
	setupEnv(t, "bolt")
	dir := t.TempDir()
	t.Setenv("DATABASE_URL", filepath.Join(dir, "auth.db"))
	t.Setenv("BOLT_PATH", filepath.Join(dir, "auth.bolt"))
	a := buildApp(t)
	registerAndLogin(t, a)
}

func TestBuild_KeyFilePublishesJWKS(t *testing.T) {
	setupEnv(t, "memory")
	kp, err := token.GenerateECDSAKeyPair()
	require.NoError(t, err)
	pem, err := kp.ExportPrivateKeyPEM()
	require.NoError(t, err)
	keyFile := filepath.Join(t.TempDir(), "jwt.pem")
	require.NoError(t, os.WriteFile(keyFile, pem, 0o600))
	t.Setenv("JWT_KEY_FILE", keyFile)
	t.Setenv("JWT_ALGORITHM", "")

	a := buildApp(t)
	rec := httptest.NewRecorder()
	a.Server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), kp.KeyID)
}

func TestBuild_Errors(t *testing.T) {
	t.Run("unknown backend", func(t *testing.T) {
		setupEnv(t, "cassandra")
		_, err := app.Build(context.Background(), config.New())
		require.ErrorContains(t, err, "unknown STORE_BACKEND")
	})
	t.Run("missing secret", func(t *testing.T) {
		setupEnv(t, "memory")
		t.Setenv("JWT_SECRET", "")
		_, err := app.Build(context.Background(), config.New())
		require.ErrorContains(t, err, "JWT_SECRET or JWT_KEY_FILE is required")
	})
	t.Run("unknown notifier", func(t *testing.T) {
		setupEnv(t, "memory")
		t.Setenv("NOTIFY_BACKEND", "pigeon")
		_, err := app.Build(context.Background(), config.New())
		require.ErrorContains(t, err, "unknown NOTIFY_BACKEND")
	})
}

func TestIsPostgresURL(t *testing.T) {
	assert.True(t, app.IsPostgresURL("postgres://u:p@localhost/auth"))
	assert.True(t, app.IsPostgresURL("postgresql://localhost/auth"))
	assert.False(t, app.IsPostgresURL("./data/auth.db"))
}
