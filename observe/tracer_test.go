package observe

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestOperationMeta_SpanName(t *testing.T) {
	tests := []struct {
		op   string
		want string
	}{
		{op: OpLoad, want: "cache.load"},
		{op: OpSave, want: "cache.save"},
		{op: OpDelete, want: "cache.delete"},
	}

	for _, tc := range tests {
		t.Run(tc.op, func(t *testing.T) {
			meta := OperationMeta{ItemID: "users", Operation: tc.op}
			if got := meta.SpanName(); got != tc.want {
				t.Errorf("SpanName() = %q, want %q", got, tc.want)
			}
		})
	}
}

func newRecordingTracer() (*tracerImpl, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return &tracerImpl{tracer: tp.Tracer("test")}, recorder
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range s.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	return attrs
}

func TestTracer_SpanAttributes(t *testing.T) {
	tr, recorder := newRecordingTracer()
	meta := OperationMeta{ItemID: "users", Operation: OpLoad, ValueType: "[]string"}

	_, span := tr.StartSpan(context.Background(), meta)
	tr.EndSpan(span, nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]
	if s.Name() != "cache.load" {
		t.Errorf("span name = %q", s.Name())
	}

	attrs := spanAttrs(s)
	want := map[attribute.Key]string{
		"cache.item.id":    "users",
		"cache.operation":  OpLoad,
		"cache.value.type": "[]string",
	}
	for k, v := range want {
		if got := attrs[k].AsString(); got != v {
			t.Errorf("attribute %s = %q, want %q", k, got, v)
		}
	}
	if attrs["cache.error"].AsBool() {
		t.Error("cache.error should be false on success")
	}
	if s.Status().Code != codes.Ok {
		t.Errorf("status = %v, want Ok", s.Status().Code)
	}
}

func TestTracer_OmitsEmptyValueType(t *testing.T) {
	tr, recorder := newRecordingTracer()

	_, span := tr.StartSpan(context.Background(), OperationMeta{ItemID: "x", Operation: OpSave})
	tr.EndSpan(span, nil)

	if _, ok := spanAttrs(recorder.Ended()[0])["cache.value.type"]; ok {
		t.Error("cache.value.type should be omitted when empty")
	}
}

func TestTracer_ErrorRecorded(t *testing.T) {
	tr, recorder := newRecordingTracer()

	_, span := tr.StartSpan(context.Background(), OperationMeta{ItemID: "x", Operation: OpSave})
	tr.EndSpan(span, errors.New("backend down"))

	s := recorder.Ended()[0]
	if s.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", s.Status().Code)
	}
	if s.Status().Description != "backend down" {
		t.Errorf("status description = %q", s.Status().Description)
	}
	if !spanAttrs(s)["cache.error"].AsBool() {
		t.Error("cache.error should be true")
	}
	if len(s.Events()) == 0 {
		t.Error("expected an exception event")
	}
}

func TestTracer_CancellationNotAnError(t *testing.T) {
	tr, recorder := newRecordingTracer()

	_, span := tr.StartSpan(context.Background(), OperationMeta{ItemID: "x", Operation: OpLoad})
	tr.EndSpan(span, fmt.Errorf("superseded: %w", context.Canceled))

	s := recorder.Ended()[0]
	if s.Status().Code == codes.Error {
		t.Error("cancelled span must not carry error status")
	}
	attrs := spanAttrs(s)
	if !attrs["cache.cancelled"].AsBool() {
		t.Error("cache.cancelled should be true")
	}
	if attrs["cache.error"].AsBool() {
		t.Error("cache.error should stay false")
	}
}

func TestTracer_ContextCarriesSpan(t *testing.T) {
	tr, recorder := newRecordingTracer()

	ctx, parent := tr.StartSpan(context.Background(), OperationMeta{ItemID: "x", Operation: OpLoad})
	_, child := tr.StartSpan(ctx, OperationMeta{ItemID: "y", Operation: OpLoad})
	tr.EndSpan(child, nil)
	tr.EndSpan(parent, nil)

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Parent().SpanID() != spans[1].SpanContext().SpanID() {
		t.Error("child span should be parented to the first span")
	}
}

func TestNoopTracer(t *testing.T) {
	tr := newNoopTracer()
	ctx, span := tr.StartSpan(context.Background(), OperationMeta{ItemID: "x", Operation: OpLoad})
	if ctx == nil || span == nil {
		t.Fatal("noop tracer must return a context and span")
	}
	tr.EndSpan(span, errors.New("ignored"))
	if span.IsRecording() {
		t.Error("noop span should not record")
	}
}
