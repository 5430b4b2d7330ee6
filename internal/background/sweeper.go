package background

import (
	"context"
	"log/slog"
	"time"
)

// PrunableStore is a failure-record store that can drop stale entries.
type PrunableStore interface {
	Prune(now time.Time, ttl time.Duration) int
}

// Sweeper periodically removes expired login failure records so
// abandoned (username, address) keys do not accumulate. Only needed for
// the in-memory store; Redis expires its keys itself.
type Sweeper struct {
	store    PrunableStore
	logger   *slog.Logger
	interval time.Duration
	ttl      time.Duration
	stopCh   chan struct{}
}

// NewSweeper creates a new sweeper
func NewSweeper(store PrunableStore, logger *slog.Logger, interval, ttl time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		logger:   logger,
		interval: interval,
		ttl:      ttl,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sweep. Blocks until Stop is called or the
// context is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			s.logger.Info("failure record sweeper stopped")
			return
		case <-ctx.Done():
			s.logger.Info("failure record sweeper context cancelled")
			return
		}
	}
}

func (s *Sweeper) sweep() {
	removed := s.store.Prune(time.Now(), s.ttl)
	if removed > 0 {
		s.logger.Info("pruned stale login failure records", slog.Int("removed", removed))
	}
}

// Stop signals the sweeper to stop
func (s *Sweeper) Stop() {
	close(s.stopCh)
}
