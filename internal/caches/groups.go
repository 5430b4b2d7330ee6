// Package caches holds the per-user caches the session layer depends
// on: resolved group membership, write-behind preferences and rendered
// navigation menus. All caches are safe for concurrent use and their
// eviction operations are idempotent.
package caches

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// GroupSource loads group membership from the backing store.
type GroupSource interface {
	GroupNamesForUser(ctx context.Context, userID string) ([]string, error)
}

// UserGroupCache memoizes resolved group membership per user. Entries
// are filled on first lookup and dropped on Invalidate.
type UserGroupCache struct {
	source GroupSource
	logger *slog.Logger

	mu     sync.RWMutex
	groups map[string][]string
}

func NewUserGroupCache(source GroupSource, logger *slog.Logger) *UserGroupCache {
	return &UserGroupCache{
		source: source,
		logger: logger,
		groups: make(map[string][]string),
	}
}

// Resolve returns the group names for the user, loading them on a miss.
func (c *UserGroupCache) Resolve(ctx context.Context, userID string) ([]string, error) {
	c.mu.RLock()
	cached, ok := c.groups[userID]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	groups, err := c.source.GroupNamesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve groups for user %s: %w", userID, err)
	}

	c.mu.Lock()
	c.groups[userID] = groups
	c.mu.Unlock()

	return groups, nil
}

// Invalidate drops the cached membership for the user.
func (c *UserGroupCache) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.groups, userID)
	c.mu.Unlock()
}
