package caches

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// PreferencesSink persists preference entries. Implemented by the
// preferences repository.
type PreferencesSink interface {
	SaveEntries(ctx context.Context, userID string, entries map[string][]byte) error
}

// PreferencesCache is a write-behind cache for per-user preference
// blobs: writes land in memory and are persisted on Flush (logout or
// periodic checkpoints). Flush and Evict are idempotent and safe for
// users with no cached entries.
type PreferencesCache struct {
	sink   PreferencesSink
	logger *slog.Logger

	mu    sync.Mutex
	users map[string]*userPrefs
}

type userPrefs struct {
	entries map[string][]byte
	dirty   map[string]bool
}

func NewPreferencesCache(sink PreferencesSink, logger *slog.Logger) *PreferencesCache {
	return &PreferencesCache{
		sink:   sink,
		logger: logger,
		users:  make(map[string]*userPrefs),
	}
}

// Put stores a preference value for the user and marks it dirty.
func (c *PreferencesCache) Put(userID, key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefs, ok := c.users[userID]
	if !ok {
		prefs = &userPrefs{
			entries: make(map[string][]byte),
			dirty:   make(map[string]bool),
		}
		c.users[userID] = prefs
	}
	prefs.entries[key] = value
	prefs.dirty[key] = true
}

// Get returns the cached value for the key, if present.
func (c *PreferencesCache) Get(userID, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefs, ok := c.users[userID]
	if !ok {
		return nil, false
	}
	value, ok := prefs.entries[key]
	return value, ok
}

// Flush persists the user's dirty entries. A user with no pending
// writes is a no-op.
func (c *PreferencesCache) Flush(ctx context.Context, userID string) error {
	c.mu.Lock()
	prefs, ok := c.users[userID]
	if !ok || len(prefs.dirty) == 0 {
		c.mu.Unlock()
		return nil
	}
	pending := make(map[string][]byte, len(prefs.dirty))
	for key := range prefs.dirty {
		pending[key] = prefs.entries[key]
	}
	c.mu.Unlock()

	if err := c.sink.SaveEntries(ctx, userID, pending); err != nil {
		return fmt.Errorf("failed to flush preferences for user %s: %w", userID, err)
	}

	// A Put can land while SaveEntries is in flight. Only mark a key
	// clean if it still holds the value that was just persisted,
	// otherwise the newer value stays dirty for the next flush.
	c.mu.Lock()
	if prefs, ok := c.users[userID]; ok {
		for key, flushed := range pending {
			if current, ok := prefs.entries[key]; ok && bytes.Equal(current, flushed) {
				delete(prefs.dirty, key)
			}
		}
	}
	c.mu.Unlock()

	c.logger.Debug("preferences flushed",
		slog.String("user_id", userID),
		slog.Int("entries", len(pending)))
	return nil
}

// Evict drops the user's entries from memory. Pending writes are lost;
// call Flush first if they must survive.
func (c *PreferencesCache) Evict(userID string) {
	c.mu.Lock()
	delete(c.users, userID)
	c.mu.Unlock()
}
