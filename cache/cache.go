package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/itemcache/store"
)

// MaxIDLength is the maximum allowed length for an item id.
const MaxIDLength = store.MaxKeyLength

// Producer yields a fresh value for an item.
// It must honor ctx cancellation; a cancelled load never publishes its result.
type Producer[T any] func(ctx context.Context) (T, error)

// Consumer persists or removes a value remotely and returns the response.
type Consumer[T any] func(ctx context.Context, value T) (any, error)

// Callback receives the response of a successful save or delete.
type Callback func(response any)

// Status is a point-in-time view of an item's flags.
type Status struct {
	ID            string
	Loading       bool
	Loaded        bool
	Saving        bool
	Saved         bool
	Deleting      bool
	Deleted       bool
	HasError      bool
	Error         string
	LastRefreshed time.Time
	Expired       bool
}

// ValidateID checks that id can name an item and its storage entries.
func ValidateID(id string) error {
	err := store.ValidateKey(id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrKeyTooLong):
		return fmt.Errorf("%w: %d bytes", ErrIDTooLong, len(id))
	default:
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
}

func produce[T any](ctx context.Context, p Producer[T]) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrProducerPanic, r)
		}
	}()
	return p(ctx)
}

func consume[T any](ctx context.Context, c Consumer[T], value T) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrProducerPanic, r)
		}
	}()
	return c(ctx, value)
}
