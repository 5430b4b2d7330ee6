package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/mwaldhauser/loginguard/internal/auth"
	"github.com/mwaldhauser/loginguard/internal/models"
	"github.com/mwaldhauser/loginguard/internal/session"
	pkghttp "github.com/mwaldhauser/loginguard/pkg/http"
)

// LoginChecker is the authentication entry point consumed by the handler.
type LoginChecker interface {
	CheckLogin(ctx context.Context, username, password, clientAddr string) *models.LoginResult
}

// PersistentLoginManager issues and validates stay-logged-in tokens.
type PersistentLoginManager interface {
	Issue(ctx context.Context, userID string) (string, error)
	Validate(ctx context.Context, cookieValue string) (*models.User, error)
}

// AccessTokenIssuer mints API access tokens for authenticated users.
type AccessTokenIssuer interface {
	GenerateAccessToken(ctx context.Context, user *models.User) (string, error)
	ValidateToken(ctx context.Context, token string) (*auth.Claims, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service    LoginChecker
	sessions   *session.Manager
	persistent PersistentLoginManager
	tokens     AccessTokenIssuer
	addrCfg    *pkghttp.AddrResolverConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(
	service LoginChecker,
	sessions *session.Manager,
	persistent PersistentLoginManager,
	tokens AccessTokenIssuer,
	addrCfg *pkghttp.AddrResolverConfig,
) *AuthHandler {
	return &AuthHandler{
		service:    service,
		sessions:   sessions,
		persistent: persistent,
		tokens:     tokens,
		addrCfg:    addrCfg,
	}
}

// Request/response DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Username     string `json:"username" validate:"required,max=255"`
	Password     string `json:"password" validate:"required,max=255"`
	StayLoggedIn bool   `json:"stay_logged_in"`
	Redirect     string `json:"redirect,omitempty" validate:"omitempty,startswith=/"`
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Groups   []string `json:"groups"`
}

// LoginResponse is returned on successful authentication
type LoginResponse struct {
	User        *UserResponse `json:"user"`
	AccessToken string        `json:"access_token"`
	Redirect    string        `json:"redirect"`
}

// LockoutResponse is returned while a lockout is active. It reveals
// only the remaining wait and the failure count, never whether the
// supplied password was otherwise correct.
type LockoutResponse struct {
	Error             string `json:"error"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
	FailedAttempts    int    `json:"failed_attempts"`
}

const maintenancePath = "/maintenance"

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	clientAddr := pkghttp.ResolveClientAddr(r, h.addrCfg)

	result := h.service.CheckLogin(r.Context(), req.Username, req.Password, clientAddr)

	switch result.Status {
	case models.LoginSuccess:
		h.completeLogin(w, r, req, result.User)
	case models.LoginTimeOffset:
		w.Header().Set("Retry-After", strconv.Itoa(result.RemainingSeconds()))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(LockoutResponse{
			Error:             "rate_limited",
			RetryAfterSeconds: result.RemainingSeconds(),
			FailedAttempts:    result.FailedAttempts,
		})
	default:
		// One generic answer for bad credentials and disabled accounts,
		// to prevent account enumeration.
		pkghttp.WriteUnauthorized(w, "Authentication failed")
	}
}

func (h *AuthHandler) completeLogin(w http.ResponseWriter, r *http.Request, req LoginRequest, user *models.User) {
	sess, outcome, err := h.sessions.Establish(r.Context(), w, r, user)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	// A user without a persisted record cannot hold a persistent login
	// cookie, so the request still succeeds with the session only.
	if req.StayLoggedIn && user.ID != "" {
		value, err := h.persistent.Issue(r.Context(), user.ID)
		if err != nil {
			pkghttp.WriteInternalError(w, "Internal server error")
			return
		}
		auth.SetStayLoggedInCookie(w, value, h.sessions.CookieConfig())
	}

	accessToken, err := h.tokens.GenerateAccessToken(r.Context(), user)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	redirect := "/"
	switch outcome {
	case session.RedirectToMaintenance:
		redirect = maintenancePath
	case session.ProceedToRequestedDestination:
		if req.Redirect != "" {
			redirect = req.Redirect
		}
	}

	bound := sess.User()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(LoginResponse{
		User:        userToResponse(bound),
		AccessToken: accessToken,
		Redirect:    redirect,
	})
}

// Logout tears down the caller's session and expires a presented
// stay-logged-in cookie. Safe to call without a live session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(r.Context(), w, r)
	w.WriteHeader(http.StatusNoContent)
}

// Session returns the currently authenticated user, resolved from the
// session cookie, a stay-logged-in cookie, or a Bearer token.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	if sess, ok := h.sessions.Lookup(r); ok && sess.LoggedIn() {
		writeUserResponse(w, sess.User())
		return
	}

	// A valid persistent login cookie re-authenticates without a session.
	if value := auth.GetStayLoggedInCookie(r); value != "" {
		if user, err := h.persistent.Validate(r.Context(), value); err == nil {
			sess, _, err := h.sessions.Establish(r.Context(), w, r, user)
			if err == nil {
				writeUserResponse(w, sess.User())
				return
			}
		}
	}

	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		token := strings.TrimPrefix(header, "Bearer ")
		if claims, err := h.tokens.ValidateToken(r.Context(), token); err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(UserResponse{
				ID:       claims.UserID,
				Username: claims.Username,
				Groups:   []string{},
			})
			return
		}
	}

	pkghttp.WriteUnauthorized(w, "Not authenticated")
}

func writeUserResponse(w http.ResponseWriter, user *models.AuthenticatedUser) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(userToResponse(user))
}

func userToResponse(user *models.AuthenticatedUser) *UserResponse {
	groups := user.Groups
	if groups == nil {
		groups = []string{}
	}
	return &UserResponse{
		ID:       user.User.ID,
		Username: user.User.Username,
		Name:     user.User.Name,
		Email:    user.User.Email,
		Groups:   groups,
	}
}
