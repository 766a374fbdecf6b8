package observe

import (
	"context"
	"errors"
	"time"
)

// OperationFunc is the signature of a cache operation body.
type OperationFunc func(ctx context.Context, meta OperationMeta) error

// Middleware wraps cache operations with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe OperationFunc.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from the wrapped function are recorded and propagated unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given observability components.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// NopMiddleware returns a middleware that records nothing.
func NopMiddleware() *Middleware {
	return NewMiddleware(newNoopTracer(), &noopMetrics{}, &noopLogger{})
}

// Logger returns the logger the middleware writes to.
func (m *Middleware) Logger() Logger {
	return m.logger
}

// Wrap wraps an OperationFunc with tracing, metrics and logging.
func (m *Middleware) Wrap(fn OperationFunc) OperationFunc {
	return func(ctx context.Context, meta OperationMeta) error {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		err := fn(ctx, meta)

		duration := time.Since(start)
		m.tracer.EndSpan(span, err)
		m.metrics.RecordOperation(ctx, meta, duration, err)

		logger := m.logger.WithOperation(meta)
		fields := []Field{
			{Key: "duration_ms", Value: float64(duration.Milliseconds())},
		}

		switch {
		case err == nil:
			logger.Info(ctx, "cache operation completed", fields...)
		case errors.Is(err, context.Canceled):
			logger.Debug(ctx, "cache operation cancelled", fields...)
		default:
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			logger.Error(ctx, "cache operation failed", fields...)
		}

		return err
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(newTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
