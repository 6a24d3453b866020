package auth_test

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	apperrors "github.com/jrsteele09/go-auth-core/internal/errors"
	"github.com/jrsteele09/go-auth-core/notify"
	"github.com/jrsteele09/go-auth-core/users"
	"github.com/stretchr/testify/require"
)

// tokenFromMessage pulls the token query parameter out of an email body.
func tokenFromMessage(t *testing.T, msg notify.Message) string {
	t.Helper()
	idx := strings.Index(msg.Body, "https://")
	require.GreaterOrEqual(t, idx, 0)
	link := strings.Fields(msg.Body[idx:])[0]
	u, err := url.Parse(link)
	require.NoError(t, err)
	tok := u.Query().Get("token")
	require.NotEmpty(t, tok)
	return tok
}

func TestRegister_VerifyThenLogin(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	u, err := f.service.Register(ctx, " Jane@Example.com ", testUserPassword)
	require.NoError(t, err)
	require.Equal(t, "jane@example.com", u.Email)
	require.Equal(t, users.StatusPending, u.Status)
	require.Equal(t, f.clock.Now(), u.DateJoined)

	_, err = f.service.Login(ctx, "jane@example.com", testUserPassword, clientKey("jane@example.com"))
	require.ErrorIs(t, err, apperrors.ErrAccountInactive)

	msg := f.sender.last(t)
	require.Equal(t, notify.KindVerifyEmail, msg.Kind)
	require.Equal(t, "jane@example.com", msg.To)

	verifyToken := tokenFromMessage(t, msg)
	require.NoError(t, f.service.VerifyEmail(ctx, verifyToken))
	require.ErrorIs(t, f.service.VerifyEmail(ctx, verifyToken), apperrors.ErrTokenRevoked, "verification tokens are single use")

	_, err = f.service.Login(ctx, "jane@example.com", testUserPassword, clientKey("jane@example.com"))
	require.NoError(t, err)
}

func TestRegister_Validation(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	f.createTestUser(t, testUserEmail, testUserPassword, users.StatusActive)

	_, err := f.service.Register(ctx, "not-an-email", testUserPassword)
	require.ErrorIs(t, err, apperrors.ErrInvalidEmail)

	_, err = f.service.Register(ctx, "new@example.com", "weak")
	require.ErrorIs(t, err, apperrors.ErrWeakPassword)
	n := apperrors.Normalize(err)
	require.Equal(t, 400, n.Code)
	require.Contains(t, n.Message, "at least 8 characters")

	_, err = f.service.Register(ctx, strings.ToUpper(testUserEmail), testUserPassword)
	require.ErrorIs(t, err, apperrors.ErrEmailTaken)
}

func TestRegister_NotificationFailureDoesNotFailRegistration(t *testing.T) {
	f := setupTestFixture(t)
	f.sender.err = errors.New("smtp down")

	u, err := f.service.Register(context.Background(), "jane@example.com", testUserPassword)
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)
}

func TestSendVerificationEmail(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	u := f.createTestUser(t, "jane@example.com", testUserPassword, users.StatusPending)

	require.NoError(t, f.service.SendVerificationEmail(ctx, u.ID))
	require.NoError(t, f.service.VerifyEmail(ctx, tokenFromMessage(t, f.sender.last(t))))

	got, err := f.userRepo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, got.IsActive())

	require.ErrorIs(t, f.service.SendVerificationEmail(ctx, "missing"), apperrors.ErrUnauthenticated)
}

func TestForgotAndResetPassword(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	f.createTestUser(t, testUserEmail, testUserPassword, users.StatusActive)

	require.NoError(t, f.service.ForgotPassword(ctx, testUserEmail))
	msg := f.sender.last(t)
	require.Equal(t, notify.KindResetPassword, msg.Kind)
	resetToken := tokenFromMessage(t, msg)

	err := f.service.ResetPassword(ctx, resetToken, "weak")
	require.ErrorIs(t, err, apperrors.ErrWeakPassword)

	require.NoError(t, f.service.ResetPassword(ctx, resetToken, "NewPassword456"))
	require.ErrorIs(t, f.service.ResetPassword(ctx, resetToken, "OtherPassword789"), apperrors.ErrTokenRevoked)

	_, err = f.service.Login(ctx, testUserEmail, testUserPassword, "k1")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	_, err = f.service.Login(ctx, testUserEmail, "NewPassword456", "k2")
	require.NoError(t, err)
}

func TestForgotPassword_UnknownEmailSucceedsWithoutSending(t *testing.T) {
	f := setupTestFixture(t)

	require.NoError(t, f.service.ForgotPassword(context.Background(), "nobody@example.com"))
	require.Empty(t, f.sender.sent)
}

func TestResetPassword_RejectsVerificationToken(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	u := f.createTestUser(t, "jane@example.com", testUserPassword, users.StatusPending)

	require.NoError(t, f.service.SendVerificationEmail(ctx, u.ID))
	verifyToken := tokenFromMessage(t, f.sender.last(t))

	err := f.service.ResetPassword(ctx, verifyToken, "NewPassword456")
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}
