package cache

import (
	"fmt"
	"time"
)

// Config configures an item. Every field except ID is optional.
//
// When merged into an existing item, set fields replace the item's current
// ones and unset fields (nil hooks, nil flags and durations, empty strings)
// preserve them. A flag set to false turns the behavior off. Load and
// InitialValue act at configure time only and are never stored.
type Config[T any] struct {
	// ID names the item within its registry.
	ID string

	// Construct produces the value on Load.
	Construct Producer[T]

	// Save persists a value; Saved runs after each successful save.
	Save  Consumer[T]
	Saved Callback

	// Delete removes a value remotely; Deleted runs after each successful delete.
	Delete  Consumer[T]
	Deleted Callback

	// Stringify converts a value before it is JSON encoded for storage.
	Stringify func(T) any

	// Parse converts JSON-decoded storage text back into a value.
	Parse func(decoded any) (T, error)

	// Load starts a load right after the configuration is applied.
	Load bool

	// Autoload starts a load when the value is read while nothing is loaded.
	Autoload *bool

	// LocalStorage and SessionStorage mirror the value to the registry's
	// durable and session stores.
	LocalStorage   *bool
	SessionStorage *bool

	// InitialValue seeds an item that holds no value.
	InitialValue *T

	// ExpiresAfter is how long a refreshed value stays valid. Nil or zero
	// never expires.
	ExpiresAfter *time.Duration

	// GenericError is the item's fallback error message.
	GenericError string

	// ErrorHandler formats an operation failure. An empty result defers to
	// GenericError and then to the registry's error policy.
	ErrorHandler func(err error, value T) string
}

// Validate checks the configuration.
func (c Config[T]) Validate() error {
	if err := ValidateID(c.ID); err != nil {
		return err
	}
	if c.ExpiresAfter != nil && *c.ExpiresAfter < 0 {
		return fmt.Errorf("%w: %s", ErrNegativeExpiry, *c.ExpiresAfter)
	}
	return nil
}

// merge returns c with every set field of next applied.
func (c Config[T]) merge(next Config[T]) Config[T] {
	if next.Construct != nil {
		c.Construct = next.Construct
	}
	if next.Save != nil {
		c.Save = next.Save
	}
	if next.Saved != nil {
		c.Saved = next.Saved
	}
	if next.Delete != nil {
		c.Delete = next.Delete
	}
	if next.Deleted != nil {
		c.Deleted = next.Deleted
	}
	if next.Stringify != nil {
		c.Stringify = next.Stringify
	}
	if next.Parse != nil {
		c.Parse = next.Parse
	}
	if next.ErrorHandler != nil {
		c.ErrorHandler = next.ErrorHandler
	}
	if next.GenericError != "" {
		c.GenericError = next.GenericError
	}
	if next.ExpiresAfter != nil {
		c.ExpiresAfter = next.ExpiresAfter
	}
	if next.Autoload != nil {
		c.Autoload = next.Autoload
	}
	if next.LocalStorage != nil {
		c.LocalStorage = next.LocalStorage
	}
	if next.SessionStorage != nil {
		c.SessionStorage = next.SessionStorage
	}

	c.Load = false
	c.InitialValue = nil
	return c
}

func (c Config[T]) ttl() time.Duration {
	if c.ExpiresAfter == nil {
		return 0
	}
	return *c.ExpiresAfter
}

func enabled(flag *bool) bool {
	return flag != nil && *flag
}

// Bool returns a pointer to v, for the optional flags of Config.
func Bool(v bool) *bool {
	return &v
}

// Duration returns a pointer to d, for Config.ExpiresAfter.
func Duration(d time.Duration) *time.Duration {
	return &d
}
