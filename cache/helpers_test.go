package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonwraymond/itemcache/observable"
	"github.com/jonwraymond/itemcache/observe"
	"github.com/jonwraymond/itemcache/store"
)

const waitTimeout = 2 * time.Second

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// testObserver records spans and metrics in memory.
type testObserver struct {
	spans  *tracetest.SpanRecorder
	tracer trace.Tracer
	reader *sdkmetric.ManualReader
	meter  metric.Meter
	logger observe.Logger
}

func newTestObserver() *testObserver {
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return &testObserver{
		spans:  spans,
		tracer: tp.Tracer("cache-test"),
		reader: reader,
		meter:  mp.Meter("cache-test"),
		logger: observe.NopLogger(),
	}
}

func (o *testObserver) Tracer() trace.Tracer           { return o.tracer }
func (o *testObserver) Meter() metric.Meter            { return o.meter }
func (o *testObserver) Logger() observe.Logger         { return o.logger }
func (o *testObserver) Shutdown(context.Context) error { return nil }

type harness struct {
	reg     *Registry
	clock   *fakeClock
	local   *store.Memory
	session *store.Memory
	obs     *testObserver
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:   newFakeClock(),
		local:   store.NewMemory(),
		session: store.NewMemory(),
		obs:     newTestObserver(),
	}
	h.reg = h.registry(t)
	t.Cleanup(h.reg.Clear)
	return h
}

// registry builds another registry over the same stores and clock.
func (h *harness) registry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry(RegistryConfig{
		LocalStore:   h.local,
		SessionStore: h.session,
		Clock:        h.clock,
		Observer:     h.obs,
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func mustConfigure[T any](t *testing.T, r *Registry, cfg Config[T]) *Item[T] {
	t.Helper()
	it, err := Configure(r, cfg)
	if err != nil {
		t.Fatalf("Configure(%q): %v", cfg.ID, err)
	}
	return it
}

// waitFor blocks until src yields a value satisfying pred.
func waitFor[T any](t *testing.T, src observable.Observable[T], pred func(T) bool) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	v, err := observable.Wait(ctx, src, pred)
	if err != nil {
		t.Fatalf("waitFor: %v (last %v)", err, v)
	}
	return v
}

func is[T comparable](want T) func(T) bool {
	return func(v T) bool { return v == want }
}

// eventually polls cond until it holds.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting: %s", msg)
		}
		time.Sleep(time.Millisecond)
	}
}

// gate is a producer that blocks until released or cancelled.
type gate[T any] struct {
	release  chan struct{}
	started  chan struct{}
	canceled chan struct{}
	value    T
	err      error
	once     sync.Once
}

func newGate[T any](v T, err error) *gate[T] {
	return &gate[T]{
		release:  make(chan struct{}),
		started:  make(chan struct{}, 16),
		canceled: make(chan struct{}),
		value:    v,
		err:      err,
	}
}

func (g *gate[T]) produce(ctx context.Context) (T, error) {
	g.started <- struct{}{}
	select {
	case <-g.release:
		var zero T
		if g.err != nil {
			return zero, g.err
		}
		return g.value, nil
	case <-ctx.Done():
		g.once.Do(func() { close(g.canceled) })
		var zero T
		return zero, ctx.Err()
	}
}

func (g *gate[T]) open() { close(g.release) }

func recvSignal(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func constant[T any](v T) func(context.Context) (T, error) {
	return func(context.Context) (T, error) { return v, nil }
}

func failing[T any](err error) func(context.Context) (T, error) {
	return func(context.Context) (T, error) {
		var zero T
		return zero, err
	}
}

var errBackend = errors.New("backend unavailable")

// failingStore fails every call.
type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errBackend
}
func (failingStore) Set(context.Context, string, string) error { return errBackend }
func (failingStore) Remove(context.Context, string) error      { return errBackend }

// blockingStore parks the first Set after arm until release is closed.
type blockingStore struct {
	*store.Memory
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newBlockingStore() *blockingStore {
	return &blockingStore{
		Memory:  store.NewMemory(),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (s *blockingStore) arm() { s.armed.Store(true) }

func (s *blockingStore) Set(ctx context.Context, key, value string) error {
	if s.armed.CompareAndSwap(true, false) {
		s.entered <- struct{}{}
		<-s.release
	}
	return s.Memory.Set(ctx, key, value)
}
