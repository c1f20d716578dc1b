package resilience

import (
	"context"
	"time"
)

// Executor composes the guards around one logical call.
type Executor struct {
	limiter  *RateLimiter
	bulkhead *Bulkhead
	breaker  *CircuitBreaker
	retry    *Retry
	timeout  *Timeout
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates an Executor. With no options Execute just calls op.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func WithRateLimiter(rl *RateLimiter) ExecutorOption {
	return func(e *Executor) { e.limiter = rl }
}

func WithBulkhead(b *Bulkhead) ExecutorOption {
	return func(e *Executor) { e.bulkhead = b }
}

func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) { e.breaker = cb }
}

func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) { e.retry = r }
}

// WithTimeout bounds every attempt by d.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = NewTimeout(d) }
}

// Breaker returns the configured circuit breaker, or nil.
func (e *Executor) Breaker() *CircuitBreaker { return e.breaker }

// Execute runs op through the configured guards.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	call := op
	if e.timeout != nil {
		call = wrap(call, e.timeout.Execute)
	}
	if e.retry != nil {
		call = wrap(call, e.retry.Execute)
	}
	if e.breaker != nil {
		call = wrap(call, e.breaker.Execute)
	}
	if e.bulkhead != nil {
		call = wrap(call, e.bulkhead.Execute)
	}
	if e.limiter != nil {
		call = wrap(call, e.limiter.Execute)
	}
	return call(ctx)
}

type guard func(ctx context.Context, op func(context.Context) error) error

func wrap(inner func(context.Context) error, g guard) func(context.Context) error {
	return func(ctx context.Context) error { return g(ctx, inner) }
}
