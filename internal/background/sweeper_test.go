package background

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

type countingStore struct {
	sweeps atomic.Int32
}

func (s *countingStore) Prune(_ time.Time, _ time.Duration) int {
	s.sweeps.Add(1)
	return 1
}

func TestSweeper_SweepsOnInterval(t *testing.T) {
	store := &countingStore{}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	sweeper := NewSweeper(store, logger, 10*time.Millisecond, time.Hour)

	done := make(chan struct{})
	go func() {
		sweeper.Start(context.Background())
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for store.sweeps.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("sweeper never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}

	sweeper.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeper_StopsOnContextCancel(t *testing.T) {
	store := &countingStore{}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	sweeper := NewSweeper(store, logger, time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not honor context cancellation")
	}
}
