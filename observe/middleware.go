package observe

import (
	"context"
	"time"
)

// Execution summarizes one dispatched tool call.
type Execution struct {
	CacheHit      bool
	CacheEligible bool
	Err           error
	ErrKind       string
}

// ExecuteFunc is the signature the dispatcher exposes to Middleware.
type ExecuteFunc func(ctx context.Context, tool ToolMeta) Execution

// Middleware wraps tool execution with observability (tracing, metrics, logging).
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe ExecuteFunc.
//   - Context: Propagates context through tracing spans.
//   - Errors: the wrapped Execution is recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware. Nil components become no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Metrics returns the metrics sink shared with other components.
func (m *Middleware) Metrics() Metrics {
	return m.metrics
}

// Logger returns the middleware logger.
func (m *Middleware) Logger() Logger {
	return m.logger
}

// Wrap wraps an ExecuteFunc with tracing, metrics, and logging.
// Each call emits exactly one log line carrying tool.name, cache.hit,
// duration_ms and, on failure, error.
func (m *Middleware) Wrap(fn ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context, tool ToolMeta) Execution {
		ctx, span := m.tracer.StartSpan(ctx, tool)
		start := time.Now()

		exec := fn(ctx, tool)

		duration := time.Since(start)
		m.tracer.EndSpan(span, exec)
		m.metrics.RecordExecution(ctx, tool, duration, exec)
		if exec.CacheEligible {
			m.metrics.RecordCacheLookup(ctx, tool.Name, exec.CacheHit)
		}

		fields := []Field{
			{Key: "cache.hit", Value: exec.CacheHit},
			{Key: "duration_ms", Value: float64(duration.Microseconds()) / 1000},
		}
		toolLogger := m.logger.WithTool(tool)
		if exec.Err != nil {
			fields = append(fields,
				Field{Key: "error", Value: exec.Err.Error()},
				Field{Key: "error.kind", Value: exec.ErrKind},
			)
			toolLogger.Warn(ctx, "tool execution failed", fields...)
		} else {
			toolLogger.Info(ctx, "tool execution completed", fields...)
		}

		return exec
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
