package observe

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Operation names used in telemetry.
const (
	OpLoad   = "load"
	OpSave   = "save"
	OpDelete = "delete"
)

// OperationMeta identifies one asynchronous operation on a cache item.
type OperationMeta struct {
	ItemID    string // Item identifier (required)
	Operation string // load|save|delete
	ValueType string // Go type of the item value (optional)
}

// SpanName returns the deterministic span name for this operation.
// Format: cache.<operation>
func (m OperationMeta) SpanName() string {
	return "cache." + m.Operation
}

func (m OperationMeta) fields() []Field {
	fields := []Field{
		{Key: "cache.item.id", Value: m.ItemID},
		{Key: "cache.operation", Value: m.Operation},
	}
	if m.ValueType != "" {
		fields = append(fields, Field{Key: "cache.value.type", Value: m.ValueType})
	}
	return fields
}

func (m OperationMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("cache.item.id", m.ItemID),
		attribute.String("cache.operation", m.Operation),
	}
	if m.ValueType != "" {
		attrs = append(attrs, attribute.String("cache.value.type", m.ValueType))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with operation span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a cache operation.
	StartSpan(ctx context.Context, meta OperationMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// newTracer creates a new Tracer wrapping the given OpenTelemetry tracer.
func newTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta OperationMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(), attribute.Bool("cache.error", false))
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpan ends the span. Cancellation is recorded as an unset status, not an error.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case errors.Is(err, context.Canceled):
		span.SetAttributes(attribute.Bool("cache.cancelled", true))
	default:
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("cache.error", true))
		span.RecordError(err)
	}
	span.End()
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

func newNoopTracer() Tracer {
	return &noopTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta OperationMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
