package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ToolMeta identifies a tool in spans, metrics and log lines.
type ToolMeta struct {
	Name      string
	Category  string // cars, knowledge, garage, builds, web or events
	Cacheable bool   // the tool has a positive TTL
}

// SpanName is "al.tool.<name>".
func (m ToolMeta) SpanName() string {
	return "al.tool." + m.Name
}

func (m ToolMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("tool.name", m.Name),
		attribute.Bool("tool.cacheable", m.Cacheable),
	}
	if m.Category != "" {
		attrs = append(attrs, attribute.String("tool.category", m.Category))
	}
	return attrs
}

// Tracer opens one span per dispatch.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - EndSpan never panics.
type Tracer interface {
	StartSpan(ctx context.Context, meta ToolMeta) (context.Context, trace.Span)
	EndSpan(span trace.Span, exec Execution)
}

// NewTracer wraps an OpenTelemetry tracer. Nil yields NopTracer.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		return NopTracer()
	}
	return otelTracer{t: t}
}

type otelTracer struct {
	t trace.Tracer
}

func (o otelTracer) StartSpan(ctx context.Context, meta ToolMeta) (context.Context, trace.Span) {
	return o.t.Start(ctx, meta.SpanName(),
		trace.WithAttributes(meta.attributes()...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpan records the cache outcome and, for failures, the error kind. Tool
// errors are results rather than Go errors, so the span status carries the
// kind and the message goes into the recorded error event.
func (o otelTracer) EndSpan(span trace.Span, exec Execution) {
	span.SetAttributes(
		attribute.Bool("cache.hit", exec.CacheHit),
		attribute.Bool("cache.eligible", exec.CacheEligible),
	)
	if exec.Err == nil {
		span.SetStatus(codes.Ok, "")
		span.End()
		return
	}
	span.SetAttributes(
		attribute.Bool("tool.error", true),
		attribute.String("tool.error_kind", exec.ErrKind),
	)
	span.RecordError(exec.Err)
	span.SetStatus(codes.Error, exec.ErrKind)
	span.End()
}

// NopTracer creates spans that record nothing but still carry any parent
// span context found in ctx.
func NopTracer() Tracer {
	return nopTracer{}
}

type nopTracer struct{}

func (nopTracer) StartSpan(ctx context.Context, _ ToolMeta) (context.Context, trace.Span) {
	return ctx, trace.SpanFromContext(ctx)
}

func (nopTracer) EndSpan(trace.Span, Execution) {}
