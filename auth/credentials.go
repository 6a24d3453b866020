package auth

import (
	"context"

	apperrors "github.com/jrsteele09/go-auth-core/internal/errors"
	"github.com/jrsteele09/go-auth-core/users"
	"github.com/pkg/errors"
)

// OutcomeReporter receives the result of every credential check.
type OutcomeReporter interface {
	ReportOutcome(ctx context.Context, clientKey string, success bool) error
}

// CredentialVerifier checks an identifier and secret against the user store.
type CredentialVerifier struct {
	users    users.UserRepo
	reporter OutcomeReporter
}

func NewCredentialVerifier(userRepo users.UserRepo, reporter OutcomeReporter) (*CredentialVerifier, error) {
	if userRepo == nil {
		return nil, errors.New("[NewCredentialVerifier] users repo is required")
	}
	if reporter == nil {
		return nil, errors.New("[NewCredentialVerifier] outcome reporter is required")
	}
	return &CredentialVerifier{users: userRepo, reporter: reporter}, nil
}

// Verify returns the matching user. Absent and disabled accounts fail with
// ErrCredentialNotFound, a wrong secret with ErrInvalidCredentials and a
// correct secret on a pending account with ErrAccountInactive.
func (cv *CredentialVerifier) Verify(ctx context.Context, identifier, secret, clientKey string) (*users.User, error) {
	user, err := cv.users.GetByEmail(ctx, users.NormalizeEmail(identifier))
	if err != nil && !apperrors.Is(err, apperrors.ErrUserNotFound) {
		return nil, errors.Wrap(err, "[CredentialVerifier.Verify] lookup")
	}

	if user == nil || user.IsDisabled() {
		users.BurnPasswordCheck(secret)
		return nil, cv.report(ctx, clientKey, apperrors.ErrCredentialNotFound)
	}
	if !users.CheckPasswordHash(secret, user.PasswordHash) {
		return nil, cv.report(ctx, clientKey, apperrors.ErrInvalidCredentials)
	}
	if !user.IsActive() {
		return nil, cv.report(ctx, clientKey, apperrors.ErrAccountInactive)
	}

	if err := cv.report(ctx, clientKey, nil); err != nil {
		return nil, err
	}
	return user, nil
}

// report passes the outcome to the reporter and returns outcome, unless
// reporting itself failed.
func (cv *CredentialVerifier) report(ctx context.Context, clientKey string, outcome error) error {
	if err := cv.reporter.ReportOutcome(ctx, clientKey, outcome == nil); err != nil {
		return err
	}
	return outcome
}
