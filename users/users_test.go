package users_test

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/go-auth-core/internal/errors"
	"github.com/jrsteele09/go-auth-core/users"
	fakeuserrepo "github.com/jrsteele09/go-auth-core/users/repofake"
	"github.com/stretchr/testify/require"
)

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  string
	}{
		{"valid", "Password123", ""},
		{"too short", "Pa1", "at least 8 characters"},
		{"no upper", "password123", "uppercase"},
		{"no lower", "PASSWORD123", "lowercase"},
		{"no number", "Passwordxx", "number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := users.ValidatePasswordStrength(tt.password)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := users.HashPassword("Password123")
	require.NoError(t, err)
	require.NotEqual(t, "Password123", hash)

	require.True(t, users.CheckPasswordHash("Password123", hash))
	require.False(t, users.CheckPasswordHash("Password124", hash))
}

func TestNormalizeEmail(t *testing.T) {
	require.Equal(t, "john.doe@example.com", users.NormalizeEmail("  John.Doe@Example.COM "))
}

func TestFakeUserRepo(t *testing.T) {
	ctx := context.Background()
	repo := fakeuserrepo.NewFakeUserRepo()

	u := &users.User{Email: "Jane@Example.com", Status: users.StatusPending}
	require.NoError(t, repo.Upsert(ctx, u))
	require.NotEmpty(t, u.ID)

	got, err := repo.GetByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	require.NoError(t, repo.SetStatus(ctx, u.ID, users.StatusActive))
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SetLastLogin(ctx, u.ID, now))

	got, err = repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, got.IsActive())
	require.Equal(t, now, got.LastLogin)

	require.NoError(t, repo.Delete(ctx, u.ID))
	_, err = repo.GetByEmail(ctx, "jane@example.com")
	require.ErrorIs(t, err, apperrors.ErrUserNotFound)
	require.ErrorIs(t, repo.SetStatus(ctx, u.ID, users.StatusActive), apperrors.ErrUserNotFound)
}

func TestFakeUserRepo_EmailBelongsToOneUser(t *testing.T) {
	ctx := context.Background()
	repo := fakeuserrepo.NewFakeUserRepo()

	first := &users.User{Email: "dup@example.com", Status: users.StatusPending}
	require.NoError(t, repo.Upsert(ctx, first))

	second := &users.User{Email: "DUP@example.com", Status: users.StatusPending}
	require.ErrorIs(t, repo.Upsert(ctx, second), apperrors.ErrEmailTaken)

	got, err := repo.GetByEmail(ctx, "dup@example.com")
	require.NoError(t, err)
	require.Equal(t, first.ID, got.ID)

	first.Status = users.StatusActive
	require.NoError(t, repo.Upsert(ctx, first))
}
