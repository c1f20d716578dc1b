package resilience

import (
	"context"
	"errors"
	"time"
)

// Timeout bounds each attempt. The op receives a context carrying the
// deadline and is expected to honor it; Execute returns as soon as the
// deadline passes even if op has not.
type Timeout struct {
	d time.Duration
}

// NewTimeout creates a Timeout. A non-positive d defaults to 30s.
func NewTimeout(d time.Duration) *Timeout {
	if d <= 0 {
		d = 30 * time.Second
	}
	return &Timeout{d: d}
}

// Duration returns the per-attempt limit.
func (t *Timeout) Duration() time.Duration { return t.d }

// Execute runs op under the deadline. Exceeding it yields ErrTimeout
// wrapping context.DeadlineExceeded.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- op(ctx) }()

	select {
	case err := <-done:
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
			return errors.Join(ErrTimeout, err)
		}
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.Join(ErrTimeout, ctx.Err())
		}
		return ctx.Err()
	}
}
