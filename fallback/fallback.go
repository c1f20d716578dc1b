package fallback

import (
	"context"
	"errors"

	"github.com/revline/algateway/observe"
)

// ErrNoData is returned by a remote source step that succeeded but found
// nothing, so the local tier should answer instead.
var ErrNoData = errors.New("fallback: no data")

// Step is one tier of a fallback chain.
type Step[T any] func(ctx context.Context) (T, error)

// Pattern names used in logs and metrics.
const (
	PatternProcedure = "procedure"
	PatternSearch    = "search"
	PatternAccess    = "access"
	PatternSource    = "source"
)

// Reporter logs and counts step-downs. A nil Reporter is valid and silent.
type Reporter struct {
	logger  observe.Logger
	metrics observe.Metrics
}

// NewReporter creates a Reporter. Nil arguments become no-ops.
func NewReporter(logger observe.Logger, metrics observe.Metrics) *Reporter {
	if logger == nil {
		logger = observe.NopLogger()
	}
	if metrics == nil {
		metrics = observe.NopMetrics()
	}
	return &Reporter{logger: logger, metrics: metrics}
}

func (r *Reporter) stepDown(ctx context.Context, pattern, name, tier string, cause error) {
	if r == nil {
		return
	}
	fields := []observe.Field{
		observe.F("fallback.pattern", pattern),
		observe.F("fallback.name", name),
		observe.F("fallback.tier", tier),
	}
	if cause != nil {
		fields = append(fields, observe.F("cause", cause.Error()))
	}
	r.logger.Warn(ctx, "fallback step-down", fields...)
	r.metrics.RecordStepDown(ctx, pattern, tier)
}
