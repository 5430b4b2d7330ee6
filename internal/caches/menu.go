package caches

import (
	"sync"
)

// MenuEntry is one rendered navigation item for a user.
type MenuEntry struct {
	Title string
	Path  string
}

// MenuCache holds per-user navigation menus built from the user's
// resolved permissions. Expire drops a user's menu so it is rebuilt on
// next render (after logout or permission changes).
type MenuCache struct {
	mu    sync.RWMutex
	menus map[string][]MenuEntry
}

func NewMenuCache() *MenuCache {
	return &MenuCache{
		menus: make(map[string][]MenuEntry),
	}
}

func (c *MenuCache) Put(userID string, entries []MenuEntry) {
	c.mu.Lock()
	c.menus[userID] = entries
	c.mu.Unlock()
}

func (c *MenuCache) Get(userID string) ([]MenuEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entries, ok := c.menus[userID]
	return entries, ok
}

// Expire drops the cached menu for the user. Idempotent.
func (c *MenuCache) Expire(userID string) {
	c.mu.Lock()
	delete(c.menus, userID)
	c.mu.Unlock()
}
