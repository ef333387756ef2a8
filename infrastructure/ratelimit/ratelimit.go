// Package ratelimit provides a small token-bucket wrapper used to throttle
// the engine pool's discover_slaves path: a flaky bus shouldn't be re-probed
// on every failed scan-task retry.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config bounds a RateLimiter's steady-state rate and burst allowance.
type Config struct {
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig matches spec.md's discover_slaves throttling: roughly one
// probe a second with a small burst allowance.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 1,
		Burst:             2,
	}
}

// RateLimiter wraps a per-second limiter plus a derived per-minute limiter,
// so callers can check either window independently.
type RateLimiter struct {
	limiter   *rate.Limiter
	perMinute *rate.Limiter
	mu        sync.RWMutex
	config    Config
}

// New constructs a RateLimiter from cfg, filling in sane defaults for a
// zero-value RequestsPerSecond/Burst.
func New(cfg Config) *RateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RequestsPerSecond * 2)
		if cfg.Burst == 0 {
			cfg.Burst = 1
		}
	}

	return &RateLimiter{
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		perMinute: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond*60), cfg.Burst*2),
		config:    cfg,
	}
}

// Allow reports whether a call is permitted right now, consuming a token if so.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// AllowN is Allow for n tokens at the given time, for tests with a fake clock.
func (r *RateLimiter) AllowN(now time.Time, n int) bool {
	return r.limiter.AllowN(now, n)
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// LimitExceeded reports whether the per-second budget is currently exhausted.
func (r *RateLimiter) LimitExceeded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.limiter.Allow()
}

// PerMinuteLimitExceeded reports whether the per-minute budget is exhausted.
func (r *RateLimiter) PerMinuteLimitExceeded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.perMinute.Allow()
}

// Reset reinitializes both limiters to a full bucket at the configured rate.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiter = rate.NewLimiter(rate.Limit(r.config.RequestsPerSecond), r.config.Burst)
	r.perMinute = rate.NewLimiter(rate.Limit(r.config.RequestsPerSecond*60), r.config.Burst*2)
}
