package store

import (
	"context"
	"errors"
	"strings"
)

// MaxKeyLength is the maximum allowed length for a storage key.
const MaxKeyLength = 512

// Undefined is the stored text that is treated as an absent entry.
const Undefined = "undefined"

// Sentinel errors for storage operations.
var (
	ErrNilStore   = errors.New("store: store is nil")
	ErrInvalidKey = errors.New("store: key is invalid")
	ErrKeyTooLong = errors.New("store: key exceeds max length")
	ErrCorrupt    = errors.New("store: document is corrupt")
)

// Store is a string-keyed text store that cache items mirror their values to.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation/deadlines where applicable.
// - Errors: Get returns ("", false, nil) on miss; Remove is idempotent.
// - Writes are last-writer-wins; no read-modify-write coordination is offered.
type Store interface {
	// Get returns the text stored under key.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores text under key, replacing any previous entry.
	Set(ctx context.Context, key, value string) error

	// Remove deletes the entry for key.
	Remove(ctx context.Context, key string) error
}

// ValidateKey checks if a key is valid for storage.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}

// Lookup reads key from s, treating a missing store, a missing entry, an
// empty entry and the literal Undefined the same way.
func Lookup(ctx context.Context, s Store, key string) (string, bool, error) {
	if s == nil {
		return "", false, nil
	}
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}
	if v == "" || v == Undefined {
		return "", false, nil
	}
	return v, true, nil
}
