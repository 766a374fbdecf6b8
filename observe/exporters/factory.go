// Package exporters builds OpenTelemetry span exporters and metric readers
// from the exporter names accepted by observe.Config.
package exporters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

var (
	// ErrUnknownExporter indicates an exporter name this package cannot build.
	ErrUnknownExporter = errors.New("exporters: unknown exporter")

	// ErrEndpointNotConfigured indicates a remote exporter was selected
	// without any of its endpoint environment variables set.
	ErrEndpointNotConfigured = errors.New("exporters: endpoint not configured")
)

// Stdout is where the stdout exporters write. Tests may replace it.
var Stdout io.Writer = os.Stdout

// firstEnv returns the first non-empty environment variable among keys.
func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func requireEndpoint(keys ...string) error {
	if firstEnv(keys...) == "" {
		return fmt.Errorf("%w: set one of %v", ErrEndpointNotConfigured, keys)
	}
	return nil
}

// NewTracingExporter returns the span exporter for name.
// "none" and "" yield a nil exporter and no error.
func NewTracingExporter(ctx context.Context, name string) (sdktrace.SpanExporter, error) {
	switch name {
	case "none", "":
		return nil, nil
	case "stdout":
		return stdouttrace.New(stdouttrace.WithWriter(Stdout))
	case "otlp":
		if err := requireEndpoint("OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"); err != nil {
			return nil, err
		}
		return otlptracegrpc.New(ctx)
	case "jaeger":
		// Jaeger ingests OTLP directly.
		if err := requireEndpoint("OTEL_EXPORTER_JAEGER_ENDPOINT"); err != nil {
			return nil, err
		}
		return otlptracegrpc.New(ctx)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownExporter, name)
}

// NewMetricsReader returns the metric reader for name.
// "none" and "" yield a nil reader and no error.
func NewMetricsReader(ctx context.Context, name string) (sdkmetric.Reader, error) {
	var (
		exp sdkmetric.Exporter
		err error
	)
	switch name {
	case "none", "":
		return nil, nil
	case "prometheus":
		reader, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("prometheus exporter: %w", err)
		}
		return reader, nil
	case "stdout":
		exp, err = stdoutmetric.New(stdoutmetric.WithWriter(Stdout))
	case "otlp":
		if err := requireEndpoint("OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"); err != nil {
			return nil, err
		}
		exp, err = otlpmetricgrpc.New(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExporter, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%s metrics exporter: %w", name, err)
	}
	return sdkmetric.NewPeriodicReader(exp), nil
}
