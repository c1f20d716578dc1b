package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records gateway metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordExecution records a tool execution with duration and outcome.
	RecordExecution(ctx context.Context, meta ToolMeta, duration time.Duration, exec Execution)

	// RecordCacheLookup records a tool cache hit or miss.
	RecordCacheLookup(ctx context.Context, tool string, hit bool)

	// RecordStepDown records a fallback chain moving to a lower tier.
	RecordStepDown(ctx context.Context, pattern, tier string)
}

type metricsImpl struct {
	calls     metric.Int64Counter
	errors    metric.Int64Counter
	duration  metric.Float64Histogram
	lookups   metric.Int64Counter
	stepDowns metric.Int64Counter
}

// NewMetrics creates the gateway instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	calls, err := meter.Int64Counter(
		"al.tool.calls",
		metric.WithDescription("Total number of tool dispatches"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errs, err := meter.Int64Counter(
		"al.tool.errors",
		metric.WithDescription("Tool dispatches that produced an error result"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"al.tool.duration_ms",
		metric.WithDescription("Tool dispatch duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	lookups, err := meter.Int64Counter(
		"al.cache.lookups",
		metric.WithDescription("Tool cache lookups by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	stepDowns, err := meter.Int64Counter(
		"al.fallback.stepdowns",
		metric.WithDescription("Fallback chains that used a lower tier"),
		metric.WithUnit("{stepdown}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		calls:     calls,
		errors:    errs,
		duration:  duration,
		lookups:   lookups,
		stepDowns: stepDowns,
	}, nil
}

// RecordExecution records metrics for a tool execution.
func (m *metricsImpl) RecordExecution(ctx context.Context, meta ToolMeta, duration time.Duration, exec Execution) {
	opt := metric.WithAttributes(attribute.String("tool.name", meta.Name))

	m.calls.Add(ctx, 1, opt)
	if exec.Err != nil {
		m.errors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool.name", meta.Name),
			attribute.String("error.kind", exec.ErrKind),
		))
	}
	m.duration.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

func (m *metricsImpl) RecordCacheLookup(ctx context.Context, tool string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool.name", tool),
		attribute.String("result", result),
	))
}

func (m *metricsImpl) RecordStepDown(ctx context.Context, pattern, tier string) {
	m.stepDowns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pattern", pattern),
		attribute.String("tier", tier),
	))
}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics {
	return noopMetrics{}
}

type noopMetrics struct{}

func (noopMetrics) RecordExecution(context.Context, ToolMeta, time.Duration, Execution) {}
func (noopMetrics) RecordCacheLookup(context.Context, string, bool)                     {}
func (noopMetrics) RecordStepDown(context.Context, string, string)                      {}
