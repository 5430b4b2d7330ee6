// Package session establishes and tears down authenticated sessions
// and owns the dependent-cache invalidation performed on logout.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mwaldhauser/loginguard/internal/models"
)

// Context is the per-session state bound to one authenticated user. A
// Context is owned by exactly one session; concurrent request handlers
// for that session may read it, so access is guarded.
type Context struct {
	ID        string
	CreatedAt time.Time

	mu    sync.RWMutex
	user  *models.AuthenticatedUser
	attrs map[string]any
}

func newContext() *Context {
	return &Context{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		attrs:     make(map[string]any),
	}
}

// User returns the bound user, or nil after logout.
func (c *Context) User() *models.AuthenticatedUser {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// LoggedIn reports whether a user is currently bound.
func (c *Context) LoggedIn() bool {
	return c.User() != nil
}

func (c *Context) bind(user *models.AuthenticatedUser) {
	c.mu.Lock()
	c.user = user
	c.mu.Unlock()
}

// clearUser unbinds the user and returns the previously bound user id
// so callers can invalidate per-user caches after the reference is
// gone.
func (c *Context) clearUser() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return ""
	}
	id := c.user.User.ID
	c.user = nil
	c.attrs = make(map[string]any)
	return id
}

// SetAttr stores a request-scoped attribute on the session.
func (c *Context) SetAttr(key string, value any) {
	c.mu.Lock()
	c.attrs[key] = value
	c.mu.Unlock()
}

// Attr returns a previously stored session attribute.
func (c *Context) Attr(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.attrs[key]
	return value, ok
}
