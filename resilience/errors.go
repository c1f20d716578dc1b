package resilience

import "errors"

var (
	// ErrCircuitOpen rejects a call while the provider's circuit is open.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrRateLimitExceeded rejects a call that found no token in time.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")

	// ErrBulkheadFull rejects a call that found no concurrency slot in time.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrTimeout reports an attempt that exceeded its deadline.
	ErrTimeout = errors.New("resilience: operation timed out")
)
