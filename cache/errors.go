package cache

import "errors"

// Sentinel errors for registry and item misuse.
var (
	// ErrNilRegistry indicates a nil *Registry was passed to Get or Configure.
	ErrNilRegistry = errors.New("cache: registry is nil")

	// ErrInvalidID indicates an empty or malformed item id.
	ErrInvalidID = errors.New("cache: id is invalid")

	// ErrIDTooLong indicates an item id longer than MaxIDLength.
	ErrIDTooLong = errors.New("cache: id exceeds max length")

	// ErrTypeMismatch indicates an id is already registered with a different value type.
	ErrTypeMismatch = errors.New("cache: item value type mismatch")

	// ErrNegativeExpiry indicates Config.ExpiresAfter is negative.
	ErrNegativeExpiry = errors.New("cache: expiry must not be negative")

	// ErrProducerPanic wraps a panic recovered from a producer or consumer.
	ErrProducerPanic = errors.New("cache: producer panicked")
)
