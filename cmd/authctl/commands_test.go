package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-auth-core/internal/config"
	apperrors "github.com/jrsteele09/go-auth-core/internal/errors"
	"github.com/jrsteele09/go-auth-core/storage/sqlstore"
	"github.com/jrsteele09/go-auth-core/token"
	"github.com/jrsteele09/go-auth-core/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	orig := readPassword
	readPassword = func() ([]byte, error) { return []byte(pw), nil }
	t.Cleanup(func() { readPassword = orig })
}

func TestUserAdd(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "data", "auth.db")
	t.Setenv("DATABASE_URL", dsn)
	stubPassword(t, "Password123")

	var out bytes.Buffer
	require.NoError(t, run(ctx, config.New(), []string{"useradd", "-email", "Admin@Example.com"}, &out))
	assert.Contains(t, out.String(), "created user admin@example.com")

	err := run(ctx, config.New(), []string{"useradd", "-email", "admin@example.com"}, &out)
	require.ErrorIs(t, err, apperrors.ErrEmailTaken)

	store, err := sqlstore.Open(ctx, sqlstore.DialectSQLite, dsn)
	require.NoError(t, err)
	defer store.Close()
	u, err := store.Users().GetByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, users.StatusActive, u.Status)
	assert.True(t, users.CheckPasswordHash("Password123", u.PasswordHash))
}

func TestUserAdd_Validation(t *testing.T) {
	t.Setenv("DATABASE_URL", filepath.Join(t.TempDir(), "auth.db"))
	stubPassword(t, "weak")
	var out bytes.Buffer

	require.Error(t, run(context.Background(), config.New(), []string{"useradd"}, &out))
	require.Error(t, run(context.Background(), config.New(), []string{"useradd", "-email", "a@b.c", "-status", "disabled"}, &out))
	err := run(context.Background(), config.New(), []string{"useradd", "-email", "a@b.c"}, &out)
	require.ErrorContains(t, err, "at least 8 characters")
}

func TestKeygen(t *testing.T) {
	for _, alg := range []string{"RS256", "ES256"} {
		t.Run(alg, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "jwt.pem")
			var out bytes.Buffer
			require.NoError(t, run(context.Background(), config.New(), []string{"keygen", "-alg", alg, "-out", path}, &out))

			kp, err := token.LoadKeyPairFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, alg, kp.Algorithm)
			assert.Contains(t, out.String(), kp.KeyID)
		})
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	var out bytes.Buffer
	require.Error(t, run(context.Background(), config.New(), []string{"frobnicate"}, &out))
	require.NoError(t, run(context.Background(), config.New(), nil, &out))
	assert.Contains(t, out.String(), "Usage:")
}
