package server_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-core/auth"
	"github.com/jrsteele09/go-auth-core/internal/config"
	"github.com/jrsteele09/go-auth-core/notify"
	"github.com/jrsteele09/go-auth-core/ratelimit"
	"github.com/jrsteele09/go-auth-core/server"
	"github.com/jrsteele09/go-auth-core/token"
	"github.com/jrsteele09/go-auth-core/users"
	fakeuserrepo "github.com/jrsteele09/go-auth-core/users/repofake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUserEmail    = "john.doe@example.com"
	testUserPassword = "Password123"
)

type outbox struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (o *outbox) Send(_ context.Context, msg notify.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
	return nil
}

func (o *outbox) lastToken(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.msgs)
	body := o.msgs[len(o.msgs)-1].Body
	idx := strings.Index(body, "token=")
	require.GreaterOrEqual(t, idx, 0)
	return strings.Fields(body[idx+len("token="):])[0]
}

type testFixture struct {
	handler  http.Handler
	userRepo *fakeuserrepo.FakeUserRepo
	outbox   *outbox
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	t.Setenv("ENV", "test")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com")

	signer, err := token.NewHMACSigner("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	revocations := token.NewMemoryRevocationStore()
	ttls := token.TTLs{Access: 30 * time.Minute, Refresh: time.Hour, VerifyEmail: 10 * time.Minute, ResetPassword: 10 * time.Minute}
	issuer, err := token.NewIssuer(signer, revocations, ttls)
	require.NoError(t, err)
	verifier, err := token.NewVerifier(signer, revocations)
	require.NoError(t, err)
	limiter, err := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), ratelimit.Config{
		Enabled:   true,
		Threshold: 3,
		Window:    15 * time.Minute,
	})
	require.NoError(t, err)

	ur := fakeuserrepo.NewFakeUserRepo()
	box := &outbox{}
	authService, err := auth.NewAuthService(auth.Repos{Users: ur}, auth.Tokens{Issuer: issuer, Verifier: verifier}, limiter,
		auth.WithNotifier(box), auth.WithBaseURL("https://auth.example.com"))
	require.NoError(t, err)

	srv, err := server.New(config.New(), authService)
	require.NoError(t, err)
	return &testFixture{handler: srv, userRepo: ur, outbox: box}
}

func (f *testFixture) createTestUser(t *testing.T, status users.Status) *users.User {
	t.Helper()
	hash, err := users.HashPassword(testUserPassword)
	require.NoError(t, err)
	u := &users.User{Email: testUserEmail, PasswordHash: hash, Status: status}
	require.NoError(t, f.userRepo.Upsert(context.Background(), u))
	return u
}

func (f *testFixture) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

type sessionBody struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
	Tokens struct {
		Access  struct{ Token string } `json:"access"`
		Refresh struct{ Token string } `json:"refresh"`
	} `json:"tokens"`
}

func (f *testFixture) login(t *testing.T) sessionBody {
	t.Helper()
	rec := f.do(t, http.MethodPost, server.RouteLogin, map[string]string{"email": testUserEmail, "password": testUserPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[sessionBody](t, rec)
}

func TestLoginAndMe(t *testing.T) {
	f := setupTestFixture(t)
	u := f.createTestUser(t, users.StatusActive)

	session := f.login(t)
	assert.Equal(t, u.ID, session.User.ID)
	assert.NotEmpty(t, session.Tokens.Access.Token)
	assert.NotEmpty(t, session.Tokens.Refresh.Token)

	rec := f.do(t, http.MethodGet, server.RouteUsersMe, nil, "Authorization", "Bearer "+session.Tokens.Access.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.Contains(t, rec.Body.String(), testUserEmail)
}

func TestLogin_WrongPasswordAndUnknownUserLookTheSame(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestUser(t, users.StatusActive)

	wrong := f.do(t, http.MethodPost, server.RouteLogin, map[string]string{"email": testUserEmail, "password": "Nope12345"})
	unknown := f.do(t, http.MethodPost, server.RouteLogin, map[string]string{"email": "ghost@example.com", "password": "Nope12345"})

	require.Equal(t, http.StatusUnauthorized, wrong.Code)
	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.JSONEq(t, wrong.Body.String(), unknown.Body.String())
	assert.Equal(t, "Incorrect email or password", decode[errorBody](t, wrong).Message)
}

func TestLogin_MissingFieldIsBadRequest(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(t, http.MethodPost, server.RouteLogin, map[string]string{"email": testUserEmail})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, `"password" is required`, decode[errorBody](t, rec).Message)

	rec = f.do(t, http.MethodPost, server.RouteLogin, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_RateLimitedWithRetryAfter(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestUser(t, users.StatusActive)
	bad := map[string]string{"email": testUserEmail, "password": "Nope12345"}

	for i := 0; i < 3; i++ {
		rec := f.do(t, http.MethodPost, server.RouteLogin, bad, "X-Forwarded-For", "203.0.113.7")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := f.do(t, http.MethodPost, server.RouteLogin, bad, "X-Forwarded-For", "203.0.113.7")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "Too many requests, please try again later", decode[errorBody](t, rec).Message)

	// a different client address is counted separately
	rec = f.do(t, http.MethodPost, server.RouteLogin, bad, "X-Forwarded-For", "198.51.100.1")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshAndLogout(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestUser(t, users.StatusActive)
	session := f.login(t)

	rec := f.do(t, http.MethodPost, server.RouteRefreshTokens, map[string]string{"refreshToken": session.Tokens.Refresh.Token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rotated := decode[sessionBody](t, rec)
	require.NotEmpty(t, rotated.Tokens.Refresh.Token)

	rec = f.do(t, http.MethodPost, server.RouteRefreshTokens, map[string]string{"refreshToken": session.Tokens.Refresh.Token})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token revoked", decode[errorBody](t, rec).Message)

	rec = f.do(t, http.MethodPost, server.RouteLogout, map[string]string{"refreshToken": rotated.Tokens.Refresh.Token})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodPost, server.RouteRefreshTokens, map[string]string{"refreshToken": rotated.Tokens.Refresh.Token})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestUser(t, users.StatusActive)
	session := f.login(t)

	rec := f.do(t, http.MethodGet, server.RouteUsersMe, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Please authenticate", decode[errorBody](t, rec).Message)

	rec = f.do(t, http.MethodGet, server.RouteUsersMe, nil, "Authorization", "Bearer "+session.Tokens.Refresh.Token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, server.RouteUsersMe, nil, "Authorization", "Basic abc")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterVerifyFlow(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(t, http.MethodPost, server.RouteRegister, map[string]string{"email": testUserEmail, "password": testUserPassword})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, server.RouteRegister, map[string]string{"email": testUserEmail, "password": testUserPassword})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email already taken", decode[errorBody](t, rec).Message)

	rec = f.do(t, http.MethodPost, server.RouteVerifyEmail+"?token="+f.outbox.lastToken(t), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	f.login(t)
}

func TestForgotResetFlow(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestUser(t, users.StatusActive)

	rec := f.do(t, http.MethodPost, server.RouteForgotPassword, map[string]string{"email": testUserEmail})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodPost, server.RouteResetPassword, map[string]string{"password": "NewPassword456"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, server.RouteResetPassword+"?token="+f.outbox.lastToken(t), map[string]string{"password": "NewPassword456"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodPost, server.RouteLogin, map[string]string{"email": testUserEmail, "password": "NewPassword456"})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSendVerificationEmail(t *testing.T) {
	f := setupTestFixture(t)
	u := f.createTestUser(t, users.StatusActive)
	session := f.login(t)
	require.NoError(t, f.userRepo.SetStatus(context.Background(), u.ID, users.StatusPending))

	rec := f.do(t, http.MethodPost, server.RouteSendVerificationEmail, nil, "Authorization", "Bearer "+session.Tokens.Access.Token)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, f.outbox.lastToken(t))
}

func TestNotFoundAndFavicon(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(t, http.MethodGet, "/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errorBody{Code: 404, Message: "Not found"}, decode[errorBody](t, rec))

	rec = f.do(t, http.MethodGet, server.RouteFavicon, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSecurityAndCorsHeaders(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(t, http.MethodOptions, server.RouteLogin, nil, "Origin", "https://app.example.com")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = f.do(t, http.MethodOptions, server.RouteLogin, nil, "Origin", "https://evil.example.com")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCompression(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(t, http.MethodGet, "/nope", nil, "Accept-Encoding", "gzip")
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Not found")
}

func TestCompression_SkipsBodilessResponses(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(t, http.MethodGet, server.RouteFavicon, nil, "Accept-Encoding", "gzip")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Zero(t, rec.Body.Len())
}
