package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwaldhauser/loginguard/internal/auth"
	"github.com/mwaldhauser/loginguard/internal/config"
	"github.com/mwaldhauser/loginguard/internal/handlers"
	"github.com/mwaldhauser/loginguard/internal/models"
	"github.com/mwaldhauser/loginguard/internal/session"
	pkglogger "github.com/mwaldhauser/loginguard/pkg/logger"
)

type stubChecker struct {
	result   *models.LoginResult
	username string
	addr     string
}

func (s *stubChecker) CheckLogin(_ context.Context, username, _, clientAddr string) *models.LoginResult {
	s.username = username
	s.addr = clientAddr
	return s.result
}

type stubPersistent struct {
	issued      string
	issueErr    error
	issuedFor   []string
	validUser   *models.User
	validateErr error
	validated   string
}

func (s *stubPersistent) Issue(_ context.Context, userID string) (string, error) {
	s.issuedFor = append(s.issuedFor, userID)
	if s.issueErr != nil {
		return "", s.issueErr
	}
	return s.issued, nil
}

func (s *stubPersistent) Validate(_ context.Context, value string) (*models.User, error) {
	s.validated = value
	if s.validateErr != nil {
		return nil, s.validateErr
	}
	return s.validUser, nil
}

type stubTokens struct {
	token  string
	claims *auth.Claims
	err    error
}

func (s *stubTokens) GenerateAccessToken(_ context.Context, _ *models.User) (string, error) {
	return s.token, s.err
}

func (s *stubTokens) ValidateToken(_ context.Context, _ string) (*auth.Claims, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.claims, nil
}

type noopCaches struct{}

func (noopCaches) Resolve(context.Context, string) ([]string, error) { return []string{"users"}, nil }
func (noopCaches) Flush(context.Context, string) error               { return nil }
func (noopCaches) Evict(string)                                      {}
func (noopCaches) Expire(string)                                     {}

type handlerDeps struct {
	handler    *handlers.AuthHandler
	sessions   *session.Manager
	checker    *stubChecker
	persistent *stubPersistent
	tokens     *stubTokens
}

func newTestHandler(t *testing.T, result *models.LoginResult) *handlerDeps {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	sessions := session.NewManager(
		noopCaches{}, noopCaches{}, noopCaches{}, session.NewRegistry(),
		config.CookieConfig{SameSite: "lax"},
		logger, pkglogger.NewAuditLogger(logger),
	)
	checker := &stubChecker{result: result}
	persistent := &stubPersistent{issued: "u-1:alice:key"}
	tokens := &stubTokens{token: "signed.jwt.token"}
	handler := handlers.NewAuthHandler(checker, sessions, persistent, tokens, nil)
	return &handlerDeps{
		handler:    handler,
		sessions:   sessions,
		checker:    checker,
		persistent: persistent,
		tokens:     tokens,
	}
}

func loginRequest(t *testing.T, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(raw))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func authUser() *models.User {
	return &models.User{ID: "u-1", Username: "alice", Name: "Alice", Email: "alice@example.com", Status: "active"}
}

func TestLogin_Success(t *testing.T) {
	deps := newTestHandler(t, models.SuccessLoginResult(authUser()))

	w := httptest.NewRecorder()
	deps.handler.Login(w, loginRequest(t, handlers.LoginRequest{
		Username: "alice", Password: "correct horse", Redirect: "/projects",
	}))

	require.Equal(t, http.StatusOK, w.Code)

	var resp handlers.LoginResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "alice", resp.User.Username)
	assert.Equal(t, []string{"users"}, resp.User.Groups)
	assert.Equal(t, "signed.jwt.token", resp.AccessToken)
	assert.Equal(t, "/projects", resp.Redirect)

	var sawSession bool
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == auth.SessionCookieName {
			sawSession = true
			assert.True(t, cookie.HttpOnly)
		}
	}
	assert.True(t, sawSession, "session cookie must be issued")
	assert.Equal(t, 1, deps.sessions.SessionCount())
}

func TestLogin_StayLoggedInIssuesCookie(t *testing.T) {
	deps := newTestHandler(t, models.SuccessLoginResult(authUser()))

	w := httptest.NewRecorder()
	deps.handler.Login(w, loginRequest(t, handlers.LoginRequest{
		Username: "alice", Password: "correct horse", StayLoggedIn: true,
	}))

	require.Equal(t, http.StatusOK, w.Code)

	var persistent *http.Cookie
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == auth.StayLoggedInCookieName {
			persistent = cookie
		}
	}
	require.NotNil(t, persistent)
	assert.Equal(t, "u-1:alice:key", persistent.Value)
}

func TestLogin_StayLoggedInSkippedForUserWithoutRecord(t *testing.T) {
	// Master-mode directory logins can succeed for a user that has no
	// persisted record yet. The login still works; only the persistent
	// cookie is withheld.
	user := authUser()
	user.ID = ""
	deps := newTestHandler(t, models.SuccessLoginResult(user))

	w := httptest.NewRecorder()
	deps.handler.Login(w, loginRequest(t, handlers.LoginRequest{
		Username: "alice", Password: "correct horse", StayLoggedIn: true,
	}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, deps.persistent.issuedFor)
	for _, cookie := range w.Result().Cookies() {
		assert.NotEqual(t, auth.StayLoggedInCookieName, cookie.Name)
	}
}

func TestLogin_WithoutStayLoggedInNoCookie(t *testing.T) {
	deps := newTestHandler(t, models.SuccessLoginResult(authUser()))

	w := httptest.NewRecorder()
	deps.handler.Login(w, loginRequest(t, handlers.LoginRequest{
		Username: "alice", Password: "correct horse",
	}))

	require.Equal(t, http.StatusOK, w.Code)
	for _, cookie := range w.Result().Cookies() {
		assert.NotEqual(t, auth.StayLoggedInCookieName, cookie.Name)
	}
}

func TestLogin_LockedOutReturns429(t *testing.T) {
	deps := newTestHandler(t, models.LockedOutLoginResult(4500*time.Millisecond, 5))

	w := httptest.NewRecorder()
	deps.handler.Login(w, loginRequest(t, handlers.LoginRequest{
		Username: "alice", Password: "whatever",
	}))

	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "5", w.Header().Get("Retry-After"))

	var resp handlers.LockoutResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "rate_limited", resp.Error)
	assert.Equal(t, 5, resp.RetryAfterSeconds)
	assert.Equal(t, 5, resp.FailedAttempts)
	assert.Equal(t, 0, deps.sessions.SessionCount())
}

func TestLogin_LockoutKeyComesFromTransportAddress(t *testing.T) {
	deps := newTestHandler(t, models.NewLoginResult(models.LoginFailed))

	r := loginRequest(t, handlers.LoginRequest{Username: "alice", Password: "wrong"})
	r.RemoteAddr = "203.0.113.7:40000"
	r.Header.Set("X-Real-IP", "10.99.99.99")
	r.Header.Set("X-Forwarded-For", "10.88.88.88")
	deps.handler.Login(httptest.NewRecorder(), r)

	assert.Equal(t, "203.0.113.7", deps.checker.addr,
		"forwarding headers from an untrusted sender must not move the lockout key")
}

func TestLogin_BadCredentialsGenericAnswer(t *testing.T) {
	deps := newTestHandler(t, models.NewLoginResult(models.LoginFailed))

	w := httptest.NewRecorder()
	deps.handler.Login(w, loginRequest(t, handlers.LoginRequest{
		Username: "alice", Password: "wrong",
	}))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Authentication failed")
}

func TestLogin_DisabledAccountLooksLikeBadCredentials(t *testing.T) {
	deps := newTestHandler(t, models.NewLoginResult(models.LoginAccountDisabled))

	w := httptest.NewRecorder()
	deps.handler.Login(w, loginRequest(t, handlers.LoginRequest{
		Username: "alice", Password: "correct horse",
	}))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Authentication failed")
	assert.NotContains(t, w.Body.String(), "disabled")
}

func TestLogin_RejectsInvalidBody(t *testing.T) {
	deps := newTestHandler(t, models.SuccessLoginResult(authUser()))

	r := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	deps.handler.Login(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, deps.checker.username, "backend must not be consulted")
}

func TestLogin_RejectsMissingFields(t *testing.T) {
	deps := newTestHandler(t, models.SuccessLoginResult(authUser()))

	w := httptest.NewRecorder()
	deps.handler.Login(w, loginRequest(t, handlers.LoginRequest{Username: "alice"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, deps.checker.username)
}

func TestLogin_RejectsAbsoluteRedirect(t *testing.T) {
	deps := newTestHandler(t, models.SuccessLoginResult(authUser()))

	w := httptest.NewRecorder()
	deps.handler.Login(w, loginRequest(t, handlers.LoginRequest{
		Username: "alice", Password: "correct horse", Redirect: "https://evil.example",
	}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin_MaintenanceModeRedirects(t *testing.T) {
	deps := newTestHandler(t, models.SuccessLoginResult(authUser()))
	deps.sessions.SetMaintenanceMode(true)

	w := httptest.NewRecorder()
	deps.handler.Login(w, loginRequest(t, handlers.LoginRequest{
		Username: "alice", Password: "correct horse", Redirect: "/projects",
	}))

	require.Equal(t, http.StatusOK, w.Code)
	var resp handlers.LoginResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "/maintenance", resp.Redirect)
	assert.Equal(t, 1, deps.sessions.SessionCount(), "maintenance logins still get a session")
}

func TestLogout_Returns204WithoutSession(t *testing.T) {
	deps := newTestHandler(t, nil)

	w := httptest.NewRecorder()
	deps.handler.Logout(w, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestLogout_TearsDownSession(t *testing.T) {
	deps := newTestHandler(t, models.SuccessLoginResult(authUser()))

	login := httptest.NewRecorder()
	deps.handler.Login(login, loginRequest(t, handlers.LoginRequest{
		Username: "alice", Password: "correct horse",
	}))
	require.Equal(t, http.StatusOK, login.Code)

	r := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	for _, cookie := range login.Result().Cookies() {
		r.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	deps.handler.Logout(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, deps.sessions.SessionCount())
}

func TestSession_ResolvesSessionCookie(t *testing.T) {
	deps := newTestHandler(t, models.SuccessLoginResult(authUser()))

	login := httptest.NewRecorder()
	deps.handler.Login(login, loginRequest(t, handlers.LoginRequest{
		Username: "alice", Password: "correct horse",
	}))
	require.Equal(t, http.StatusOK, login.Code)

	r := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	for _, cookie := range login.Result().Cookies() {
		r.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	deps.handler.Session(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var resp handlers.UserResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "alice", resp.Username)
}

func TestSession_StayLoggedInCookieReauthenticates(t *testing.T) {
	deps := newTestHandler(t, nil)
	deps.persistent.validUser = authUser()

	r := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	r.AddCookie(&http.Cookie{Name: auth.StayLoggedInCookieName, Value: "u-1:alice:key"})
	w := httptest.NewRecorder()
	deps.handler.Session(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-1:alice:key", deps.persistent.validated)
	assert.Equal(t, 1, deps.sessions.SessionCount(), "re-auth establishes a fresh session")

	var resp handlers.UserResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "u-1", resp.ID)
}

func TestSession_InvalidStayLoggedInCookieRejected(t *testing.T) {
	deps := newTestHandler(t, nil)
	deps.persistent.validateErr = models.ErrTokenInvalid

	r := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	r.AddCookie(&http.Cookie{Name: auth.StayLoggedInCookieName, Value: "u-1:alice:stale"})
	w := httptest.NewRecorder()
	deps.handler.Session(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, deps.sessions.SessionCount())
}

func TestSession_BearerTokenResolvesClaims(t *testing.T) {
	deps := newTestHandler(t, nil)
	deps.tokens.claims = &auth.Claims{UserID: "u-1", Username: "alice"}

	r := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	r.Header.Set("Authorization", "Bearer signed.jwt.token")
	w := httptest.NewRecorder()
	deps.handler.Session(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var resp handlers.UserResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "u-1", resp.ID)
	assert.Equal(t, "alice", resp.Username)
}

func TestSession_Unauthenticated(t *testing.T) {
	deps := newTestHandler(t, nil)
	deps.tokens.err = errors.New("token is malformed")

	w := httptest.NewRecorder()
	deps.handler.Session(w, httptest.NewRequest(http.MethodGet, "/auth/session", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
