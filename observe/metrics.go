package observe

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records cache operation metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordOperation records one settled operation with its duration and outcome.
	RecordOperation(ctx context.Context, meta OperationMeta, duration time.Duration, err error)
}

type metricsImpl struct {
	totalCount     metric.Int64Counter
	errorCount     metric.Int64Counter
	cancelledCount metric.Int64Counter
	durationHist   metric.Float64Histogram
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	totalCount, err := meter.Int64Counter(
		"cache.op.total",
		metric.WithDescription("Total number of cache item operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"cache.op.errors",
		metric.WithDescription("Total number of failed cache item operations"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	cancelledCount, err := meter.Int64Counter(
		"cache.op.cancelled",
		metric.WithDescription("Total number of superseded or cancelled cache item operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"cache.op.duration_ms",
		metric.WithDescription("Cache item operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		totalCount:     totalCount,
		errorCount:     errorCount,
		cancelledCount: cancelledCount,
		durationHist:   durationHist,
	}, nil
}

func (m *metricsImpl) RecordOperation(ctx context.Context, meta OperationMeta, duration time.Duration, err error) {
	// Item ids are caller-chosen and unbounded; keep them off metric attributes.
	opt := metric.WithAttributes(attribute.String("cache.operation", meta.Operation))

	m.totalCount.Add(ctx, 1, opt)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		m.cancelledCount.Add(ctx, 1, opt)
	default:
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (m *noopMetrics) RecordOperation(ctx context.Context, meta OperationMeta, duration time.Duration, err error) {
}
