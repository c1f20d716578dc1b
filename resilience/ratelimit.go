package resilience

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig configures a RateLimiter.
type RateLimiterConfig struct {
	// Rate is the sustained calls per second. Default: 10.
	Rate float64

	// Burst is the bucket size. Default: 1.
	Burst int

	// WaitOnLimit queues callers instead of rejecting them.
	WaitOnLimit bool

	// MaxWait caps the queueing time when WaitOnLimit is set. Default: 1s.
	MaxWait time.Duration
}

// RateLimiter throttles outbound calls with a token bucket.
type RateLimiter struct {
	cfg RateLimiterConfig
	lim *rate.Limiter
}

// NewRateLimiter creates a RateLimiter with a full bucket.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.Rate <= 0 {
		cfg.Rate = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = time.Second
	}
	return &RateLimiter{cfg: cfg, lim: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst)}
}

// Allow takes a token if one is available.
func (rl *RateLimiter) Allow() bool { return rl.lim.Allow() }

// Execute runs op once a token is taken.
func (rl *RateLimiter) Execute(ctx context.Context, op func(context.Context) error) error {
	if !rl.cfg.WaitOnLimit {
		if !rl.lim.Allow() {
			return ErrRateLimitExceeded
		}
		return op(ctx)
	}

	wctx, cancel := context.WithTimeout(ctx, rl.cfg.MaxWait)
	defer cancel()
	if err := rl.lim.Wait(wctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrRateLimitExceeded
	}
	return op(ctx)
}
