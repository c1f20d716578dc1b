package observe

import (
	"fmt"
	"io"
	"slices"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
)

// Config selects exporters for the gateway's traces, metrics and logs.
type Config struct {
	ServiceName string        `yaml:"service_name"`
	Version     string        `yaml:"version"`
	Tracing     TracingConfig `yaml:"tracing"`
	Metrics     MetricsConfig `yaml:"metrics"`
	Logging     LoggingConfig `yaml:"logging"`

	// Registerer receives the Prometheus collector when Metrics.Exporter is
	// "prometheus". Nil uses the global default registry.
	Registerer promclient.Registerer `yaml:"-"`

	// LogWriter receives JSON log lines. Nil means os.Stderr.
	LogWriter io.Writer `yaml:"-"`
}

type TracingConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Exporter  string  `yaml:"exporter"`   // otlp|stdout|none
	SamplePct float64 `yaml:"sample_pct"` // 0.0-1.0
	// Endpoint is the OTLP collector address. Empty defers to the
	// OTEL_EXPORTER_OTLP_* environment.
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // otlp|prometheus|stdout|none
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
	// Interval is the push period for otlp and stdout. Zero uses the SDK default.
	Interval time.Duration `yaml:"interval"`
}

type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"` // debug|info|warn|error
}

// Validate checks only the sections that are enabled.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return ErrMissingServiceName
	}

	if t := c.Tracing; t.Enabled {
		if !slices.Contains(ValidTracingExporters, t.Exporter) {
			return fmt.Errorf("%w: %q", ErrInvalidTracingExporter, t.Exporter)
		}
		if t.SamplePct < 0 || t.SamplePct > 1.0 {
			return fmt.Errorf("%w: got %f", ErrInvalidSamplePct, t.SamplePct)
		}
	}

	if m := c.Metrics; m.Enabled {
		if !slices.Contains(ValidMetricsExporters, m.Exporter) {
			return fmt.Errorf("%w: %q", ErrInvalidMetricsExporter, m.Exporter)
		}
		if m.Interval < 0 {
			return fmt.Errorf("%w: got %s", ErrInvalidInterval, m.Interval)
		}
	}

	if c.Logging.Enabled && !slices.Contains(ValidLogLevels, c.Logging.Level) {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}
	return nil
}
