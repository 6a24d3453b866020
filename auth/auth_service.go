package auth

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/jrsteele09/go-auth-core/internal/errors"
	"github.com/jrsteele09/go-auth-core/notify"
	"github.com/jrsteele09/go-auth-core/ratelimit"
	"github.com/jrsteele09/go-auth-core/token"
	"github.com/jrsteele09/go-auth-core/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const defaultNotifyTimeout = 5 * time.Second

var validate = validator.New()

// Repos holds the repository dependencies of the AuthService
type Repos struct {
	Users users.UserRepo
}

// Tokens holds the token issuer and verifier sharing one signer and store.
type Tokens struct {
	Issuer   *token.Issuer
	Verifier *token.Verifier
}

// Session is what a successful login returns.
type Session struct {
	User   *users.User `json:"user"`
	Tokens *token.Pair `json:"tokens"`
}

// AuthService composes the rate limiter, credential verifier and token
// issuer/verifier into the login, refresh, verify and logout flows.
type AuthService struct {
	users         users.UserRepo
	credentials   *CredentialVerifier
	issuer        *token.Issuer
	verifier      *token.Verifier
	limiter       *ratelimit.Limiter
	notifier      notify.Sender
	baseURL       string
	notifyTimeout time.Duration
	nowTime       func() time.Time
}

// AuthServiceOption defines a function type to modify the AuthService instance.
type AuthServiceOption func(*AuthService)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) AuthServiceOption {
	return func(as *AuthService) {
		as.nowTime = nowFunc
	}
}

// WithNotifier sets where verification and reset emails go.
func WithNotifier(sender notify.Sender) AuthServiceOption {
	return func(as *AuthService) {
		as.notifier = sender
	}
}

// WithBaseURL sets the public URL links in emails point at.
func WithBaseURL(baseURL string) AuthServiceOption {
	return func(as *AuthService) {
		as.baseURL = baseURL
	}
}

func NewAuthService(repos Repos, tokens Tokens, limiter *ratelimit.Limiter, options ...AuthServiceOption) (*AuthService, error) {
	if repos.Users == nil {
		return nil, errors.New("[NewAuthService] Users repo is required")
	}
	if tokens.Issuer == nil {
		return nil, errors.New("[NewAuthService] token issuer is required")
	}
	if tokens.Verifier == nil {
		return nil, errors.New("[NewAuthService] token verifier is required")
	}
	if limiter == nil {
		return nil, errors.New("[NewAuthService] rate limiter is required")
	}

	credentials, err := NewCredentialVerifier(repos.Users, limiter)
	if err != nil {
		return nil, errors.Wrap(err, "[NewAuthService] credential verifier")
	}

	as := &AuthService{
		users:         repos.Users,
		credentials:   credentials,
		issuer:        tokens.Issuer,
		verifier:      tokens.Verifier,
		limiter:       limiter,
		notifier:      notify.LogSender{},
		baseURL:       "http://localhost:8080",
		notifyTimeout: defaultNotifyTimeout,
		nowTime:       time.Now,
	}
	for _, opt := range options {
		opt(as)
	}
	return as, nil
}

// Login gates the attempt, checks the credentials and issues a token pair.
// Unknown and disabled accounts fail exactly like a wrong password.
func (as *AuthService) Login(ctx context.Context, identifier, secret, clientKey string) (*Session, error) {
	if identifier == "" || secret == "" {
		return nil, apperrors.ErrMissingArgument
	}
	if err := as.limiter.CheckAndConsume(ctx, clientKey); err != nil {
		return nil, err
	}

	user, err := as.credentials.Verify(ctx, identifier, secret, clientKey)
	if apperrors.Is(err, apperrors.ErrCredentialNotFound) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	now := as.nowTime()
	if err := as.users.SetLastLogin(ctx, user.ID, now); err != nil {
		return nil, errors.Wrap(err, "[AuthService.Login] record last login")
	}
	user.LastLogin = now

	pair, err := as.issuer.IssuePair(ctx, user.ID)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthService.Login] issue tokens")
	}
	return &Session{User: user, Tokens: pair}, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued. Of two concurrent refreshes with one token only one wins.
func (as *AuthService) Refresh(ctx context.Context, refreshToken, clientKey string) (*token.Pair, error) {
	if refreshToken == "" {
		return nil, apperrors.ErrMissingArgument
	}
	if err := as.limiter.CheckAndConsume(ctx, clientKey); err != nil {
		return nil, err
	}

	pair, err := as.rotate(ctx, refreshToken)
	if rerr := as.limiter.ReportOutcome(ctx, clientKey, err == nil); rerr != nil {
		return nil, rerr
	}
	return pair, err
}

func (as *AuthService) rotate(ctx context.Context, refreshToken string) (*token.Pair, error) {
	claims, err := as.verifier.Verify(ctx, refreshToken, token.KindRefresh)
	if err != nil {
		return nil, err
	}
	if err := as.verifier.Consume(ctx, claims); err != nil {
		return nil, err
	}
	if _, err := as.subjectUser(ctx, claims.Subject); err != nil {
		return nil, err
	}

	pair, err := as.issuer.IssuePair(ctx, claims.Subject)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthService.Refresh] issue tokens")
	}
	return pair, nil
}

// VerifyAccess resolves an access token to its subject id.
func (as *AuthService) VerifyAccess(ctx context.Context, accessToken string) (string, error) {
	if accessToken == "" {
		return "", apperrors.ErrUnauthenticated
	}
	claims, err := as.verifier.Verify(ctx, accessToken, token.KindAccess)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Logout revokes a refresh token.
func (as *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return apperrors.ErrMissingArgument
	}
	claims, err := as.verifier.Verify(ctx, refreshToken, token.KindRefresh)
	if err != nil {
		return err
	}
	return as.verifier.Revoke(ctx, claims)
}

// GetUser returns the user behind a verified subject.
func (as *AuthService) GetUser(ctx context.Context, subjectID string) (*users.User, error) {
	user, err := as.users.GetByID(ctx, subjectID)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthService.GetUser] lookup")
	}
	return user, nil
}

// subjectUser loads the subject of a verified token. Vanished and disabled
// accounts can no longer use their tokens.
func (as *AuthService) subjectUser(ctx context.Context, subjectID string) (*users.User, error) {
	user, err := as.users.GetByID(ctx, subjectID)
	if apperrors.Is(err, apperrors.ErrUserNotFound) {
		return nil, apperrors.ErrUnauthenticated
	}
	if err != nil {
		return nil, errors.Wrap(err, "[AuthService] load token subject")
	}
	if user.IsDisabled() {
		return nil, apperrors.ErrUnauthenticated
	}
	return user, nil
}

// send delivers msg on a detached context; failures are logged only.
func (as *AuthService) send(ctx context.Context, msg notify.Message) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), as.notifyTimeout)
	defer cancel()
	if err := as.notifier.Send(sendCtx, msg); err != nil {
		log.Warn().Err(err).Str("kind", string(msg.Kind)).Str("to", msg.To).Msg("failed to send notification")
	}
}
