package auth

import (
	"context"

	apperrors "github.com/jrsteele09/go-auth-core/internal/errors"
	"github.com/jrsteele09/go-auth-core/notify"
	"github.com/jrsteele09/go-auth-core/token"
	"github.com/jrsteele09/go-auth-core/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Register stores a pending account and sends the verification email. The
// account cannot log in until the email is verified.
func (as *AuthService) Register(ctx context.Context, email, password string) (*users.User, error) {
	email = users.NormalizeEmail(email)
	if err := validate.Var(email, "required,email"); err != nil {
		return nil, apperrors.ErrInvalidEmail
	}
	if err := checkPassword(password); err != nil {
		return nil, err
	}

	_, err := as.users.GetByEmail(ctx, email)
	if err == nil {
		return nil, apperrors.ErrEmailTaken
	}
	if !apperrors.Is(err, apperrors.ErrUserNotFound) {
		return nil, errors.Wrap(err, "[AuthService.Register] lookup")
	}

	hash, err := users.HashPassword(password)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthService.Register] hash password")
	}
	user := &users.User{
		Email:        email,
		PasswordHash: hash,
		Status:       users.StatusPending,
		DateJoined:   as.nowTime(),
	}
	if err := as.users.Upsert(ctx, user); err != nil {
		if apperrors.Is(err, apperrors.ErrEmailTaken) {
			// lost a race with a concurrent registration
			return nil, apperrors.ErrEmailTaken
		}
		return nil, errors.Wrap(err, "[AuthService.Register] store user")
	}

	if err := as.sendVerification(ctx, user); err != nil {
		log.Err(err).Str("user_id", user.ID).Msg("verification email not sent after registration")
	}
	return user, nil
}

// SendVerificationEmail issues a fresh verification token for the user.
func (as *AuthService) SendVerificationEmail(ctx context.Context, subjectID string) error {
	user, err := as.subjectUser(ctx, subjectID)
	if err != nil {
		return err
	}
	return as.sendVerification(ctx, user)
}

func (as *AuthService) sendVerification(ctx context.Context, user *users.User) error {
	tok, err := as.issuer.Issue(ctx, user.ID, token.KindVerifyEmail)
	if err != nil {
		return errors.Wrap(err, "[AuthService.sendVerification] issue token")
	}
	as.send(ctx, notify.VerificationEmail(as.baseURL, user.Email, tok.Raw))
	return nil
}

// VerifyEmail consumes a verification token and activates the account.
func (as *AuthService) VerifyEmail(ctx context.Context, verifyToken string) error {
	if verifyToken == "" {
		return apperrors.ErrMissingArgument
	}
	claims, err := as.verifier.Verify(ctx, verifyToken, token.KindVerifyEmail)
	if err != nil {
		return err
	}
	if _, err := as.subjectUser(ctx, claims.Subject); err != nil {
		return err
	}
	if err := as.verifier.Consume(ctx, claims); err != nil {
		return err
	}
	if err := as.users.SetStatus(ctx, claims.Subject, users.StatusActive); err != nil {
		return errors.Wrap(err, "[AuthService.VerifyEmail] activate")
	}
	return nil
}

// ForgotPassword emails a reset link when the account exists. Unknown
// addresses succeed silently so the endpoint cannot probe for accounts.
func (as *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = users.NormalizeEmail(email)
	if err := validate.Var(email, "required,email"); err != nil {
		return apperrors.ErrInvalidEmail
	}

	user, err := as.users.GetByEmail(ctx, email)
	if apperrors.Is(err, apperrors.ErrUserNotFound) {
		log.Debug().Str("email", email).Msg("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "[AuthService.ForgotPassword] lookup")
	}
	if user.IsDisabled() {
		return nil
	}

	tok, err := as.issuer.Issue(ctx, user.ID, token.KindResetPassword)
	if err != nil {
		return errors.Wrap(err, "[AuthService.ForgotPassword] issue token")
	}
	as.send(ctx, notify.ResetPasswordEmail(as.baseURL, user.Email, tok.Raw))
	return nil
}

// ResetPassword consumes a reset token and stores the new password hash.
func (as *AuthService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if resetToken == "" {
		return apperrors.ErrMissingArgument
	}
	if err := checkPassword(newPassword); err != nil {
		return err
	}

	claims, err := as.verifier.Verify(ctx, resetToken, token.KindResetPassword)
	if err != nil {
		return err
	}
	if _, err := as.subjectUser(ctx, claims.Subject); err != nil {
		return err
	}
	if err := as.verifier.Consume(ctx, claims); err != nil {
		return err
	}

	hash, err := users.HashPassword(newPassword)
	if err != nil {
		return errors.Wrap(err, "[AuthService.ResetPassword] hash password")
	}
	if err := as.users.SetPassword(ctx, claims.Subject, hash); err != nil {
		return errors.Wrap(err, "[AuthService.ResetPassword] store password")
	}
	return nil
}

func checkPassword(password string) error {
	if err := users.ValidatePasswordStrength(password); err != nil {
		return &apperrors.Error{
			Kind:    apperrors.KindValidationFailed,
			Message: err.Error(),
			Err:     apperrors.ErrWeakPassword,
		}
	}
	return nil
}
