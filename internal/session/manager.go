package session

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/mwaldhauser/loginguard/internal/auth"
	"github.com/mwaldhauser/loginguard/internal/config"
	"github.com/mwaldhauser/loginguard/internal/models"
	pkglogger "github.com/mwaldhauser/loginguard/pkg/logger"
)

// Outcome tells the caller where to send the user after a session is
// established.
type Outcome int

const (
	// ProceedToRequestedDestination continues to the page the user
	// originally asked for.
	ProceedToRequestedDestination Outcome = iota
	// RedirectToMaintenance sends the user to the maintenance page. The
	// session is established anyway so administrative maintenance flows
	// keep working.
	RedirectToMaintenance
	// RedirectToDefault sends the user to the application's start page.
	RedirectToDefault
)

// GroupResolver builds the authorization context for a user.
type GroupResolver interface {
	Resolve(ctx context.Context, userID string) ([]string, error)
}

// PreferencesFlusher is the slice of the preferences cache logout needs.
type PreferencesFlusher interface {
	Flush(ctx context.Context, userID string) error
	Evict(userID string)
}

// MenuExpirer invalidates a user's cached navigation.
type MenuExpirer interface {
	Expire(userID string)
}

// Manager owns the live sessions of this process. Operations are scoped
// to one session; no cross-session locking is involved beyond the
// session index itself.
type Manager struct {
	groups    GroupResolver
	prefs     PreferencesFlusher
	menu      MenuExpirer
	registry  *Registry
	cookieCfg config.CookieConfig
	logger    *slog.Logger
	audit     *pkglogger.AuditLogger

	maintenance atomic.Bool

	mu       sync.RWMutex
	sessions map[string]*Context
}

func NewManager(
	groups GroupResolver,
	prefs PreferencesFlusher,
	menu MenuExpirer,
	registry *Registry,
	cookieCfg config.CookieConfig,
	logger *slog.Logger,
	audit *pkglogger.AuditLogger,
) *Manager {
	return &Manager{
		groups:    groups,
		prefs:     prefs,
		menu:      menu,
		registry:  registry,
		cookieCfg: cookieCfg,
		logger:    logger,
		audit:     audit,
		sessions:  make(map[string]*Context),
	}
}

// CookieConfig exposes the cookie settings sessions are issued with.
func (m *Manager) CookieConfig() config.CookieConfig {
	return m.cookieCfg
}

// SetMaintenanceMode toggles the system-update-required mode. While
// active, Establish still succeeds but reports RedirectToMaintenance.
func (m *Manager) SetMaintenanceMode(on bool) {
	m.maintenance.Store(on)
}

// MaintenanceMode reports whether maintenance mode is active.
func (m *Manager) MaintenanceMode() bool {
	return m.maintenance.Load()
}

// Establish creates a session for a successfully authenticated user,
// binds the sanitized user with the resolved authorization context,
// registers the login and sets the session cookie.
func (m *Manager) Establish(ctx context.Context, w http.ResponseWriter, r *http.Request, user *models.User) (*Context, Outcome, error) {
	groups, err := m.groups.Resolve(ctx, user.ID)
	if err != nil {
		return nil, RedirectToDefault, err
	}

	sess := newContext()
	sess.bind(models.NewAuthenticatedUser(user, groups))

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	m.registry.Login(user.ID)
	auth.SetSessionCookie(w, sess.ID, m.cookieCfg)

	m.logger.Info("session established",
		slog.String("session_id", sess.ID),
		slog.String("user_id", user.ID))
	m.audit.LogSessionEvent("session_established", user.ID, r.RemoteAddr)

	if m.maintenance.Load() {
		m.logger.Info("login during maintenance mode, redirecting",
			slog.String("user_id", user.ID))
		return sess, RedirectToMaintenance, nil
	}
	return sess, ProceedToRequestedDestination, nil
}

// Lookup resolves the request's session cookie to a live session.
func (m *Manager) Lookup(r *http.Request) (*Context, bool) {
	id, err := auth.GetSessionCookie(r)
	if err != nil || id == "" {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// Logout tears down the request's session: the session's user
// reference is cleared first, then the per-user caches are flushed and
// evicted using the captured user id, and any presented stay-logged-in
// cookie is expired. Calling Logout without a live session is a no-op
// that still expires a presented cookie.
func (m *Manager) Logout(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if sess, ok := m.Lookup(r); ok {
		userID := sess.clearUser()

		m.mu.Lock()
		delete(m.sessions, sess.ID)
		m.mu.Unlock()

		if userID != "" {
			if err := m.prefs.Flush(ctx, userID); err != nil {
				m.logger.Error("failed to flush preferences on logout",
					slog.String("user_id", userID), slog.Any("error", err))
			}
			m.prefs.Evict(userID)
			m.menu.Expire(userID)
			m.registry.Logout(userID)

			m.logger.Info("user logged out", slog.String("user_id", userID))
			m.audit.LogSessionEvent("session_destroyed", userID, r.RemoteAddr)
		}
	}

	auth.ClearSessionCookie(w, m.cookieCfg)
	if auth.GetStayLoggedInCookie(r) != "" {
		auth.ExpireStayLoggedInCookie(w, m.cookieCfg)
	}
}

// SessionCount reports the number of live sessions in this process.
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
