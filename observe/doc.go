// Package observe provides observability primitives for cache operations.
//
// It is a pure instrumentation library: tracing spans, counters and
// structured logs for every load, save and delete an item performs. The
// cache registry wires an Observer in through MiddlewareFromObserver; a nil
// observer falls back to NopMiddleware.
package observe
