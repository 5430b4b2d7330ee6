// Package loginprotection tracks failed login attempts per
// (username, client address) pair and computes escalating lockout
// offsets. Every authentication attempt consults this package before a
// login handler is allowed to see the credentials.
package loginprotection

import (
	"context"
	"log/slog"
	"time"
)

// Policy holds the lockout escalation constants. The curve is linear
// and capped: after N consecutive failures the key is locked for
// min(BaseDelay*N, MaxDelay), measured from the most recent failure.
// The offset is monotonically non-decreasing in N.
type Policy struct {
	BaseDelay time.Duration // added per consecutive failure
	MaxDelay  time.Duration // cap on the lockout duration
	RecordTTL time.Duration // idle time after which a record is forgotten
}

// DefaultPolicy matches the defaults historically used for interactive
// logins: one extra second of lockout per failure, capped at four
// hours, with records expiring after a day of inactivity.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay: 1 * time.Second,
		MaxDelay:  4 * time.Hour,
		RecordTTL: 24 * time.Hour,
	}
}

// Protection is the process-wide failed-login tracker. It is safe for
// concurrent use; per-key updates are atomic and distinct keys never
// serialize against each other.
type Protection struct {
	store  Store
	policy Policy
	logger *slog.Logger
	now    func() time.Time
}

func New(store Store, policy Policy, logger *slog.Logger) *Protection {
	return &Protection{
		store:  store,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (p *Protection) SetClock(now func() time.Time) {
	p.now = now
}

// FailedLoginTimeOffset returns the remaining lockout duration for the
// key, or 0 if no lockout is active. Storage errors fail open: a broken
// store must not lock legitimate users out.
func (p *Protection) FailedLoginTimeOffset(ctx context.Context, username, clientAddr string) time.Duration {
	rec, ok, err := p.store.Get(ctx, Key(username, clientAddr))
	if err != nil {
		p.logger.Error("login protection store unavailable", slog.Any("error", err))
		return 0
	}
	if !ok {
		return 0
	}
	now := p.now()
	if p.expired(rec, now) {
		return 0
	}
	remaining := rec.LastFailure.Add(p.lockoutFor(rec.Failures)).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FailedLoginAttempts returns the current consecutive-failure count for
// the key (0 if none recorded or the record has expired).
func (p *Protection) FailedLoginAttempts(ctx context.Context, username, clientAddr string) int {
	rec, ok, err := p.store.Get(ctx, Key(username, clientAddr))
	if err != nil {
		p.logger.Error("login protection store unavailable", slog.Any("error", err))
		return 0
	}
	if !ok || p.expired(rec, p.now()) {
		return 0
	}
	return rec.Failures
}

// IncrementFailedLogins records one more consecutive failure for the
// key and refreshes its failure timestamp.
func (p *Protection) IncrementFailedLogins(ctx context.Context, username, clientAddr string) {
	rec, err := p.store.Increment(ctx, Key(username, clientAddr), p.now())
	if err != nil {
		p.logger.Error("failed to record login failure", slog.Any("error", err))
		return
	}
	p.logger.Warn("failed login recorded",
		slog.String("username", username),
		slog.String("client_addr", clientAddr),
		slog.Int("consecutive_failures", rec.Failures))
}

// ClearLockout resets the key to "no failures". Called after a
// successful authentication.
func (p *Protection) ClearLockout(ctx context.Context, username, clientAddr string) {
	if err := p.store.Clear(ctx, Key(username, clientAddr)); err != nil {
		p.logger.Error("failed to clear login protection record", slog.Any("error", err))
	}
}

func (p *Protection) lockoutFor(failures int) time.Duration {
	d := time.Duration(failures) * p.policy.BaseDelay
	if d > p.policy.MaxDelay {
		d = p.policy.MaxDelay
	}
	return d
}

func (p *Protection) expired(rec Record, now time.Time) bool {
	return p.policy.RecordTTL > 0 && now.Sub(rec.LastFailure) > p.policy.RecordTTL
}
