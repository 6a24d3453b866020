package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jrsteele09/go-auth-core/auth"
	apperrors "github.com/jrsteele09/go-auth-core/internal/errors"
	"github.com/jrsteele09/go-auth-core/users"
	fakeuserrepo "github.com/jrsteele09/go-auth-core/users/repofake"
	"github.com/stretchr/testify/require"
)

type outcome struct {
	key     string
	success bool
}

type recordingReporter struct {
	outcomes []outcome
	err      error
}

func (r *recordingReporter) ReportOutcome(_ context.Context, key string, success bool) error {
	r.outcomes = append(r.outcomes, outcome{key, success})
	return r.err
}

func setupVerifier(t *testing.T) (*auth.CredentialVerifier, *recordingReporter, users.UserRepo) {
	t.Helper()

	repo := fakeuserrepo.NewFakeUserRepo()
	reporter := &recordingReporter{}
	cv, err := auth.NewCredentialVerifier(repo, reporter)
	require.NoError(t, err)

	for email, status := range map[string]users.Status{
		"active@example.com":   users.StatusActive,
		"pending@example.com":  users.StatusPending,
		"disabled@example.com": users.StatusDisabled,
	} {
		hash, err := users.HashPassword(testUserPassword)
		require.NoError(t, err)
		require.NoError(t, repo.Upsert(context.Background(), &users.User{Email: email, PasswordHash: hash, Status: status}))
	}
	return cv, reporter, repo
}

func TestCredentialVerifier_Outcomes(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"match", "active@example.com", testUserPassword, nil},
		{"wrong secret", "active@example.com", "Password124", apperrors.ErrInvalidCredentials},
		{"absent", "ghost@example.com", testUserPassword, apperrors.ErrCredentialNotFound},
		{"disabled", "disabled@example.com", testUserPassword, apperrors.ErrCredentialNotFound},
		{"pending", "pending@example.com", testUserPassword, apperrors.ErrAccountInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cv, reporter, _ := setupVerifier(t)

			user, err := cv.Verify(context.Background(), tt.email, tt.password, "key-1")
			if tt.wantErr == nil {
				require.NoError(t, err)
				require.Equal(t, tt.email, user.Email)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
				require.Nil(t, user)
			}
			require.Equal(t, []outcome{{"key-1", tt.wantErr == nil}}, reporter.outcomes)
		})
	}
}

func TestCredentialVerifier_ReportFailureIsReturned(t *testing.T) {
	cv, reporter, _ := setupVerifier(t)
	reporter.err = apperrors.ErrStoreTimeout

	_, err := cv.Verify(context.Background(), "active@example.com", testUserPassword, "key-1")
	require.ErrorIs(t, err, apperrors.ErrStoreTimeout)
}

type brokenRepo struct {
	users.UserRepo
}

func (brokenRepo) GetByEmail(context.Context, string) (*users.User, error) {
	return nil, errors.New("db unavailable")
}

func TestCredentialVerifier_StoreErrorIsInternal(t *testing.T) {
	reporter := &recordingReporter{}
	cv, err := auth.NewCredentialVerifier(brokenRepo{}, reporter)
	require.NoError(t, err)

	_, err = cv.Verify(context.Background(), "active@example.com", testUserPassword, "key-1")
	require.Error(t, err)
	require.Equal(t, 500, apperrors.Normalize(err).Code)
	require.Empty(t, reporter.outcomes)
}
