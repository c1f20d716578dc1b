package exporters

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	promclient "github.com/prometheus/client_golang/prometheus"
)

func TestExporter_InvalidName(t *testing.T) {
	_, err := NewTracingExporter(context.Background(), "jaeger", Options{})
	if err == nil || !strings.Contains(err.Error(), "unknown exporter") {
		t.Fatalf("NewTracingExporter(jaeger) error = %v", err)
	}
	if _, err := NewMetricsReader(context.Background(), "statsd", Options{}); err == nil {
		t.Fatal("expected error for unknown metrics exporter")
	}
}

func TestExporter_StdoutUsesWriter(t *testing.T) {
	var buf bytes.Buffer
	exp, err := NewTracingExporter(context.Background(), "stdout", Options{Writer: &buf})
	if err != nil || exp == nil {
		t.Fatalf("stdout exporter = %v, %v", exp, err)
	}

	reader, err := NewMetricsReader(context.Background(), "stdout", Options{Writer: &buf})
	if err != nil || reader == nil {
		t.Fatalf("stdout reader = %v, %v", reader, err)
	}
}

func TestExporter_OtlpMissingEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")

	if _, err := NewTracingExporter(context.Background(), "otlp", Options{}); !errors.Is(err, ErrEndpointNotConfigured) {
		t.Errorf("traces error = %v, want ErrEndpointNotConfigured", err)
	}
	if _, err := NewMetricsReader(context.Background(), "otlp", Options{}); !errors.Is(err, ErrEndpointNotConfigured) {
		t.Errorf("metrics error = %v, want ErrEndpointNotConfigured", err)
	}
}

func TestExporter_PrometheusCustomRegistry(t *testing.T) {
	reg := promclient.NewRegistry()
	reader, err := NewMetricsReader(context.Background(), "prometheus", Options{Registerer: reg})
	if err != nil || reader == nil {
		t.Fatalf("prometheus reader = %v, %v", reader, err)
	}
}

func TestExporter_None(t *testing.T) {
	if _, err := NewTracingExporter(context.Background(), "none", Options{}); err != nil {
		t.Errorf("none tracing: %v", err)
	}
	if _, err := NewMetricsReader(context.Background(), "", Options{}); err != nil {
		t.Errorf("empty metrics: %v", err)
	}
}

func TestExporter_OtlpExplicitEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")

	exp, err := NewTracingExporter(context.Background(), "otlp", Options{Endpoint: "localhost:4317", Insecure: true})
	if err != nil || exp == nil {
		t.Fatalf("otlp exporter = %v, %v", exp, err)
	}
	_ = exp.Shutdown(context.Background())
}
