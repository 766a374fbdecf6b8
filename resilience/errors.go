package resilience

import "errors"

// Sentinel errors returned by wrapped producers and consumers.
var (
	// ErrCircuitOpen is returned without calling the hook while the breaker
	// rejects calls.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrRetriesExhausted wraps the last failure once every attempt failed.
	ErrRetriesExhausted = errors.New("resilience: retries exhausted")

	// ErrTimeout is returned when a hook overruns its own deadline.
	ErrTimeout = errors.New("resilience: operation timed out")

	// ErrInvalidConfig is returned by Validate for unusable settings.
	ErrInvalidConfig = errors.New("resilience: invalid config")
)
