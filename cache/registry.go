package cache

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"sync"

	"github.com/jonwraymond/itemcache/observe"
	"github.com/jonwraymond/itemcache/store"
)

// RegistryConfig configures a Registry. Every field is optional.
type RegistryConfig struct {
	// GenericError is the fallback error message. Defaults to DefaultGenericError.
	GenericError string

	// ErrorHandler formats failures of items without their own handler.
	ErrorHandler ErrorHandler

	// LocalStore is the durable store items mirror to with LocalStorage set.
	// Defaults to an in-memory store; use store.File for durability.
	LocalStore store.Store

	// SessionStore is the session-scoped store items mirror to with
	// SessionStorage set. Defaults to an in-memory store.
	SessionStore store.Store

	// Clock drives expiration. Defaults to SystemClock.
	Clock Clock

	// Observer traces and meters item operations. Nil disables telemetry.
	Observer observe.Observer

	// Logger overrides the observer's logger.
	Logger observe.Logger
}

// environment is what every item of a registry shares.
type environment struct {
	policy     *ErrorPolicy
	local      store.Store
	session    store.Store
	clock      Clock
	middleware *observe.Middleware
	logger     observe.Logger
}

// Registry maps ids to items and owns their lifetime.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Ownership: items are created on first Get or Configure and finished by
//     Delete or Clear. Handles stay valid but inert after that.
type Registry struct {
	mu    sync.Mutex
	items map[string]entry
	env   *environment
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	env := &environment{
		policy:     NewErrorPolicy(cfg.GenericError, cfg.ErrorHandler),
		local:      cfg.LocalStore,
		session:    cfg.SessionStore,
		clock:      cfg.Clock,
		middleware: observe.NopMiddleware(),
		logger:     cfg.Logger,
	}
	if env.local == nil {
		env.local = store.NewMemory()
	}
	if env.session == nil {
		env.session = store.NewMemory()
	}
	if env.clock == nil {
		env.clock = SystemClock
	}
	if cfg.Observer != nil {
		mw, err := observe.MiddlewareFromObserver(cfg.Observer)
		if err != nil {
			return nil, fmt.Errorf("cache: telemetry setup: %w", err)
		}
		env.middleware = mw
		if env.logger == nil {
			env.logger = cfg.Observer.Logger()
		}
	}
	if env.logger == nil {
		env.logger = observe.NopLogger()
	}

	return &Registry{
		items: make(map[string]entry),
		env:   env,
	}, nil
}

// Get returns the item for id, creating an unconfigured one if absent.
func Get[T any](r *Registry, id string) (*Item[T], error) {
	if r == nil {
		return nil, ErrNilRegistry
	}
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	if it, ok, err := lookup[T](r, id); ok || err != nil {
		return it, err
	}
	it, _, err := insert(r, newItem(id, r.env, Config[T]{}))
	return it, err
}

// Configure returns the item for cfg.ID with cfg merged in, creating it
// from cfg if absent. A new item seeds its value from the enabled stores
// before falling back to cfg.InitialValue.
func Configure[T any](r *Registry, cfg Config[T]) (*Item[T], error) {
	if r == nil {
		return nil, ErrNilRegistry
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if it, ok, err := lookup[T](r, cfg.ID); err != nil {
		return nil, err
	} else if ok {
		it.Configure(cfg)
		r.env.logger.Debug(context.Background(), "cache item reconfigured",
			observe.Field{Key: "cache.item.id", Value: cfg.ID})
		return it, nil
	}

	it, created, err := insert(r, newItem(cfg.ID, r.env, cfg))
	if err != nil {
		return nil, err
	}
	if !created {
		it.Configure(cfg)
		return it, nil
	}
	if cfg.Load {
		it.Load()
	}
	return it, nil
}

func lookup[T any](r *Registry, id string) (*Item[T], bool, error) {
	r.mu.Lock()
	e, ok := r.items[id]
	r.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	it, err := assertItem[T](e)
	return it, err == nil, err
}

// insert stores fresh unless another caller registered the id first, in
// which case fresh is discarded and the existing item returned.
func insert[T any](r *Registry, fresh *Item[T]) (*Item[T], bool, error) {
	r.mu.Lock()
	if e, ok := r.items[fresh.id]; ok {
		r.mu.Unlock()
		fresh.Finish()
		it, err := assertItem[T](e)
		return it, false, err
	}
	r.items[fresh.id] = fresh
	r.mu.Unlock()

	r.env.logger.Debug(context.Background(), "cache item created",
		observe.Field{Key: "cache.item.id", Value: fresh.id},
		observe.Field{Key: "cache.value.type", Value: fresh.valueType})
	return fresh, true, nil
}

func assertItem[T any](e entry) (*Item[T], error) {
	it, ok := e.(*Item[T])
	if !ok {
		return nil, fmt.Errorf("%w: %q holds %T, requested %s",
			ErrTypeMismatch, e.ID(), e, reflect.TypeFor[*Item[T]]())
	}
	return it, nil
}

// Exists reports whether id is registered.
func (r *Registry) Exists(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.items[id]
	return ok
}

// Delete finishes and removes the item for id, then removes id from both
// stores whatever the item's storage flags. Unknown ids only clear storage.
// Storage failures are returned joined; the in-memory removal always happens.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}

	r.mu.Lock()
	e, ok := r.items[id]
	delete(r.items, id)
	r.mu.Unlock()

	if ok {
		e.Finish()
	}

	var errs []error
	for _, s := range []store.Store{r.env.local, r.env.session} {
		if err := s.Remove(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)

	fields := []observe.Field{
		{Key: "cache.item.id", Value: id},
		{Key: "existed", Value: ok},
	}
	if err != nil {
		r.env.logger.Warn(ctx, "cache item storage removal failed",
			append(fields, observe.Field{Key: "error", Value: err.Error()})...)
		return fmt.Errorf("cache: delete %q: %w", id, err)
	}
	r.env.logger.Info(ctx, "cache item deleted", fields...)
	return nil
}

// Clear finishes and removes every item. Storage is left untouched.
func (r *Registry) Clear() {
	r.mu.Lock()
	items := r.items
	r.items = make(map[string]entry)
	r.mu.Unlock()

	for _, e := range items {
		e.Finish()
	}
	r.env.logger.Info(context.Background(), "cache cleared",
		observe.Field{Key: "count", Value: len(items)})
}

// SetGenericError sets the fallback error message. Empty restores the default.
func (r *Registry) SetGenericError(msg string) {
	r.env.policy.SetGenericError(msg)
}

// SetErrorHandler sets the registry-level error formatter. Nil removes it.
func (r *Registry) SetErrorHandler(h ErrorHandler) {
	r.env.policy.SetErrorHandler(h)
}

// ErrorPolicy returns the registry's error policy.
func (r *Registry) ErrorPolicy() *ErrorPolicy {
	return r.env.policy
}

// IDs returns every registered id in sorted order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.items))
	for id := range r.items {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	slices.Sort(ids)
	return ids
}

// Len returns the number of registered items.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Snapshot returns the status of every item, sorted by id.
func (r *Registry) Snapshot() []Status {
	r.mu.Lock()
	items := make([]entry, 0, len(r.items))
	for _, e := range r.items {
		items = append(items, e)
	}
	r.mu.Unlock()

	out := make([]Status, 0, len(items))
	for _, e := range items {
		out = append(out, e.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
