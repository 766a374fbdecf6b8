package health

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jonwraymond/itemcache/store"
)

// DefaultProbeKey is the key StoreChecker writes and removes.
const DefaultProbeKey = "itemcache:health:probe"

// StoreChecker verifies a storage backend with a set, get and remove of a
// probe key. A failing backend is unhealthy: items still work, but mirrored
// values are being lost.
type StoreChecker struct {
	name string
	s    store.Store
	key  string
	now  func() time.Time
}

// NewStoreChecker returns a checker named name over s.
func NewStoreChecker(name string, s store.Store) *StoreChecker {
	return &StoreChecker{name: name, s: s, key: DefaultProbeKey, now: time.Now}
}

func (c *StoreChecker) Name() string { return c.name }

func (c *StoreChecker) Check(ctx context.Context) Result {
	want := strconv.FormatInt(c.now().UnixNano(), 10)

	if err := c.s.Set(ctx, c.key, want); err != nil {
		return Unhealthy("store write failed", err)
	}
	got, ok, err := c.s.Get(ctx, c.key)
	if err != nil {
		return Unhealthy("store read failed", err)
	}
	if !ok || got != want {
		return Unhealthy("store read back a different value",
			fmt.Errorf("%w: got %q (present %v)", ErrProbeMismatch, got, ok))
	}
	if err := c.s.Remove(ctx, c.key); err != nil {
		return Degraded("store cleanup failed").WithDetails(map[string]any{"error": err.Error()})
	}
	return Healthy("store reachable")
}
