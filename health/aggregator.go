package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/revline/algateway/observe"
)

// DefaultTimeout bounds each check when NewAggregator is given zero.
const DefaultTimeout = 2 * time.Second

// Report is the combined outcome of every registered check.
type Report struct {
	Status Status            `json:"status"`
	Checks map[string]Result `json:"checks"`
}

// Aggregator runs registered checks concurrently and combines them.
type Aggregator struct {
	timeout time.Duration
	logger  observe.Logger

	mu       sync.RWMutex
	checkers map[string]Checker
	order    []string
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithLogger logs every check that is not healthy at warn level.
func WithLogger(l observe.Logger) AggregatorOption {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAggregator creates an aggregator whose checks each get timeout.
func NewAggregator(timeout time.Duration, opts ...AggregatorOption) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	a := &Aggregator{
		timeout:  timeout,
		logger:   observe.NopLogger(),
		checkers: make(map[string]Checker),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register adds or replaces the checker for name.
func (a *Aggregator) Register(name string, c Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.checkers[name]; !ok {
		a.order = append(a.order, name)
	}
	a.checkers[name] = c
}

// Names lists registered components in registration order.
func (a *Aggregator) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]string(nil), a.order...)
}

// Check runs the checker registered under name.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	c, ok := a.checkers[name]
	a.mu.RUnlock()
	if !ok {
		return Result{}, ErrCheckerNotFound
	}
	return a.run(ctx, name, c), nil
}

// CheckAll runs every check. An empty aggregator is healthy.
func (a *Aggregator) CheckAll(ctx context.Context) Report {
	a.mu.RLock()
	names := append([]string(nil), a.order...)
	checkers := make([]Checker, len(names))
	for i, n := range names {
		checkers[i] = a.checkers[n]
	}
	a.mu.RUnlock()

	results := make([]Result, len(names))
	var g errgroup.Group
	for i := range names {
		g.Go(func() error {
			results[i] = a.run(ctx, names[i], checkers[i])
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Status: StatusHealthy, Checks: make(map[string]Result, len(names))}
	for i, n := range names {
		report.Checks[n] = results[i]
		report.Status = report.Status.Worse(results[i].Status)
	}
	return report
}

func (a *Aggregator) run(ctx context.Context, name string, c Checker) Result {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan Result, 1)
	go func() { done <- c.Check(ctx) }()

	var r Result
	select {
	case r = <-done:
	case <-ctx.Done():
		r = Unhealthy("check timed out", ErrCheckTimeout)
	}
	r.Duration = time.Since(start)

	if r.Status != StatusHealthy {
		fields := []observe.Field{
			observe.F("component", name),
			observe.F("status", string(r.Status)),
			observe.F("message", r.Message),
		}
		if r.Error != nil {
			fields = append(fields, observe.F("error", r.Error.Error()))
		}
		a.logger.Warn(ctx, "health check not healthy", fields...)
	}
	return r
}
