package resilience

import (
	"context"
	"time"

	"github.com/jonwraymond/itemcache/cache"
)

// Policy combines the decorators applied to a hook. Zero fields are
// skipped, so the zero Policy calls the hook unchanged.
//
// Calls flow breaker, then retry, then timeout: the timeout bounds each
// attempt, and the breaker sees one outcome per call after retries.
type Policy struct {
	Timeout time.Duration
	Retry   *Retry
	Breaker *CircuitBreaker
}

func apply[R any](ctx context.Context, p Policy, op func(context.Context) (R, error)) (R, error) {
	call := op

	if p.Timeout > 0 {
		inner := call
		call = func(ctx context.Context) (R, error) { return withDeadline(ctx, p.Timeout, inner) }
	}
	if p.Retry != nil {
		inner := call
		call = func(ctx context.Context) (R, error) { return retryCall(ctx, p.Retry, inner) }
	}
	if p.Breaker != nil {
		inner := call
		call = func(ctx context.Context) (R, error) { return breakerCall(ctx, p.Breaker, inner) }
	}
	return call(ctx)
}

// Producer wraps a Construct hook with p.
func Producer[T any](p Policy, next cache.Producer[T]) cache.Producer[T] {
	return func(ctx context.Context) (T, error) {
		return apply(ctx, p, func(ctx context.Context) (T, error) { return next(ctx) })
	}
}

// Consumer wraps a Save or Delete hook with p.
func Consumer[T any](p Policy, next cache.Consumer[T]) cache.Consumer[T] {
	return func(ctx context.Context, value T) (any, error) {
		return apply(ctx, p, func(ctx context.Context) (any, error) { return next(ctx, value) })
	}
}

// WithTimeout bounds each call of next to d. The cache itself never times
// out a load.
func WithTimeout[T any](d time.Duration, next cache.Producer[T]) cache.Producer[T] {
	return Producer(Policy{Timeout: d}, next)
}
