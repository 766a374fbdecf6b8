package cache

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/jonwraymond/itemcache/observable"
	"github.com/jonwraymond/itemcache/observe"
	"github.com/jonwraymond/itemcache/store"
)

// slot is what the value subject carries: the value, whether it is
// defined, and when it was last refreshed.
type slot[T any] struct {
	value     T
	ok        bool
	refreshed time.Time
}

// loadToken owns one in-flight load. A load may publish only while its
// token is the item's active token.
type loadToken struct {
	cancel context.CancelFunc
}

// Item is one named cache slot holding a value and its status.
//
// Contract:
//   - Concurrency: every method is safe for concurrent use. Operations return
//     immediately after updating in-progress flags; producers and consumers
//     run on their own goroutines.
//   - Loads are last-caller-wins: a new load, Update, Reset or Unsubscribe
//     cancels the in-flight load and its result is never published.
//   - Failures never surface as return values; they are visible through
//     HasError and Error.
//   - After Finish every stream is complete and every operation is a no-op.
type Item[T any] struct {
	id  string
	env *environment

	ctx  context.Context
	stop context.CancelFunc

	mu        sync.Mutex
	cfg       Config[T]
	current   slot[T]
	active    *loadToken
	finished  bool
	valueType string

	// storeMu serializes storage writes. Lock order is storeMu, then mu.
	// writeSeq numbers in-memory writes; mirrored is the newest one written.
	storeMu  sync.Mutex
	writeSeq uint64
	mirrored uint64

	value    *observable.Subject[slot[T]]
	loading  *observable.Subject[bool]
	loaded   *observable.Subject[bool]
	saving   *observable.Subject[bool]
	saved    *observable.Subject[bool]
	deleting *observable.Subject[bool]
	deleted  *observable.Subject[bool]
	hasError *observable.Subject[bool]
	errText  *observable.Subject[string]
}

// newItem builds an item from cfg, seeding its value from storage or
// cfg.InitialValue. It never starts a load.
func newItem[T any](id string, env *environment, cfg Config[T]) *Item[T] {
	ctx, stop := context.WithCancel(context.Background())
	it := &Item[T]{
		id:        id,
		env:       env,
		ctx:       ctx,
		stop:      stop,
		cfg:       Config[T]{ID: id}.merge(cfg),
		valueType: reflect.TypeFor[T]().String(),
		loading:   observable.NewSubject(false),
		loaded:    observable.NewSubject(false),
		saving:    observable.NewSubject(false),
		saved:     observable.NewSubject(false),
		deleting:  observable.NewSubject(false),
		deleted:   observable.NewSubject(false),
		hasError:  observable.NewSubject(false),
		errText:   observable.NewSubject(""),
	}

	if v, ok := it.readStorage(); ok {
		it.current = slot[T]{value: v, ok: true, refreshed: env.clock.Now()}
	} else if cfg.InitialValue != nil {
		it.current = slot[T]{value: *cfg.InitialValue, ok: true, refreshed: env.clock.Now()}
	}
	it.value = observable.NewSubject(it.current)
	if it.current.ok {
		it.loaded.Next(true)
	}
	return it
}

// ID returns the item id.
func (i *Item[T]) ID() string {
	return i.id
}

// Value returns the current value, or false when there is none or it has
// expired. Reading may start an autoload.
func (i *Item[T]) Value() (T, bool) {
	i.autoload()

	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.current.ok || i.expiredLocked(i.current.refreshed) {
		var zero T
		return zero, false
	}
	return i.current.value, true
}

// ValueStream streams the value, yielding the zero value while it is
// undefined or expired. Subscribing may start an autoload.
func (i *Item[T]) ValueStream() observable.Observable[T] {
	i.autoload()
	return observable.Derive[slot[T], T](i.value, i.visible)
}

// Clone returns a deep copy of the current value.
func (i *Item[T]) Clone() (T, bool) {
	v, ok := i.Value()
	if !ok {
		return v, false
	}
	return Clone(v), true
}

// CloneStream streams deep copies of the value.
func (i *Item[T]) CloneStream() observable.Observable[T] {
	i.autoload()
	return observable.Derive[slot[T], T](i.value, func(s slot[T]) T {
		return Clone(i.visible(s))
	})
}

// visible applies expiration to s. It runs on the pump goroutine of every
// derived stream and takes mu, so code holding mu must never block on a
// derived stream's delivery.
func (i *Item[T]) visible(s slot[T]) T {
	var zero T
	if !s.ok {
		return zero
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.expiredLocked(s.refreshed) {
		return zero
	}
	return s.value
}

// IsLoading reports whether a load is in flight.
func (i *Item[T]) IsLoading() bool { return i.read(i.loading) }

// IsLoaded reports whether a defined, unexpired value is loaded.
func (i *Item[T]) IsLoaded() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.loadedLocked()
}

// IsSaving reports whether a save is in flight.
func (i *Item[T]) IsSaving() bool { return i.read(i.saving) }

// IsSaved reports whether the last save succeeded.
func (i *Item[T]) IsSaved() bool { return i.read(i.saved) }

// IsDeleting reports whether a delete is in flight.
func (i *Item[T]) IsDeleting() bool { return i.read(i.deleting) }

// IsDeleted reports whether the last delete succeeded.
func (i *Item[T]) IsDeleted() bool { return i.read(i.deleted) }

// HasError reports whether the last operation failed.
func (i *Item[T]) HasError() bool { return i.read(i.hasError) }

// Error returns the last error message, or "".
func (i *Item[T]) Error() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.errText.Value()
}

func (i *Item[T]) read(s *observable.Subject[bool]) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return s.Value()
}

// LoadingStream streams the loading flag.
func (i *Item[T]) LoadingStream() observable.Observable[bool] { return i.loading }

// LoadedStream streams the loaded flag with expiration applied at delivery.
func (i *Item[T]) LoadedStream() observable.Observable[bool] {
	return observable.Derive[bool, bool](i.loaded, func(loaded bool) bool {
		if !loaded {
			return false
		}
		i.mu.Lock()
		defer i.mu.Unlock()
		return i.current.ok && !i.expiredLocked(i.current.refreshed)
	})
}

// SavingStream streams the saving flag.
func (i *Item[T]) SavingStream() observable.Observable[bool] { return i.saving }

// SavedStream streams the saved flag.
func (i *Item[T]) SavedStream() observable.Observable[bool] { return i.saved }

// DeletingStream streams the deleting flag.
func (i *Item[T]) DeletingStream() observable.Observable[bool] { return i.deleting }

// DeletedStream streams the deleted flag.
func (i *Item[T]) DeletedStream() observable.Observable[bool] { return i.deleted }

// HasErrorStream streams the error flag.
func (i *Item[T]) HasErrorStream() observable.Observable[bool] { return i.hasError }

// ErrorStream streams the error message.
func (i *Item[T]) ErrorStream() observable.Observable[string] { return i.errText }

// LastRefreshed returns when the value was last loaded or updated.
func (i *Item[T]) LastRefreshed() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.current.refreshed
}

// Expired reports whether the value is older than ExpiresAfter.
func (i *Item[T]) Expired() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.expiredLocked(i.current.refreshed)
}

// Status returns a snapshot of every flag.
func (i *Item[T]) Status() Status {
	i.mu.Lock()
	defer i.mu.Unlock()
	return Status{
		ID:            i.id,
		Loading:       i.loading.Value(),
		Loaded:        i.loadedLocked(),
		Saving:        i.saving.Value(),
		Saved:         i.saved.Value(),
		Deleting:      i.deleting.Value(),
		Deleted:       i.deleted.Value(),
		HasError:      i.hasError.Value(),
		Error:         i.errText.Value(),
		LastRefreshed: i.current.refreshed,
		Expired:       i.expiredLocked(i.current.refreshed),
	}
}

func (i *Item[T]) expiredLocked(refreshed time.Time) bool {
	ttl := i.cfg.ttl()
	if ttl <= 0 || refreshed.IsZero() {
		return false
	}
	return i.env.clock.Now().Sub(refreshed) > ttl
}

func (i *Item[T]) loadedLocked() bool {
	return i.loaded.Value() && i.current.ok && !i.expiredLocked(i.current.refreshed)
}

func (i *Item[T]) autoload() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !enabled(i.cfg.Autoload) || i.cfg.Construct == nil {
		return
	}
	if i.loadedLocked() || i.loading.Value() {
		return
	}
	i.startLoadLocked()
}

// Update replaces the value synchronously, cancelling any in-flight load,
// and mirrors it to the configured stores before returning.
func (i *Item[T]) Update(v T) {
	i.mu.Lock()
	if i.finished {
		i.mu.Unlock()
		return
	}
	i.cancelLoadLocked(false)
	i.setValueLocked(v)
	i.clearErrorLocked()
	i.loaded.Next(true)
	i.loading.Next(false)
	cfg, seq := i.cfg, i.writeSeq
	i.mu.Unlock()

	i.mirror(cfg, v, seq)
}

// Load starts a load with the configured producer. Without one it is a no-op.
func (i *Item[T]) Load() {
	i.LoadWith(nil)
}

// LoadWith replaces the configured producer with p, when non-nil, and
// starts a load.
func (i *Item[T]) LoadWith(p Producer[T]) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.finished {
		return
	}
	if p != nil {
		i.cfg.Construct = p
	}
	i.startLoadLocked()
}

func (i *Item[T]) startLoadLocked() {
	if i.finished || i.cfg.Construct == nil {
		return
	}
	i.cancelLoadLocked(false)

	ctx, cancel := context.WithCancel(i.ctx)
	tok := &loadToken{cancel: cancel}
	i.active = tok

	i.loaded.Next(false)
	i.loading.Next(true)
	i.clearErrorLocked()

	go i.runLoad(ctx, tok, i.cfg.Construct)
}

// cancelLoadLocked drops the active load. settle publishes loading=false
// when a load was actually cancelled.
func (i *Item[T]) cancelLoadLocked(settle bool) {
	if i.active == nil {
		return
	}
	i.active.cancel()
	i.active = nil
	if settle {
		i.loading.Next(false)
	}
}

func (i *Item[T]) runLoad(ctx context.Context, tok *loadToken, p Producer[T]) {
	_ = i.env.middleware.Wrap(func(ctx context.Context, _ observe.OperationMeta) error {
		v, err := produce(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("load %s: %w", i.id, ctx.Err())
			}
			if !i.failLoad(tok, err) {
				return fmt.Errorf("load %s superseded: %w", i.id, context.Canceled)
			}
			return err
		}
		if !i.settleLoad(tok, v) {
			return fmt.Errorf("load %s superseded: %w", i.id, context.Canceled)
		}
		return nil
	})(ctx, i.meta(observe.OpLoad))
}

func (i *Item[T]) settleLoad(tok *loadToken, v T) bool {
	i.mu.Lock()
	if i.finished || i.active != tok {
		i.mu.Unlock()
		return false
	}
	i.active = nil
	tok.cancel()
	i.setValueLocked(v)
	i.loaded.Next(true)
	i.loading.Next(false)
	cfg, seq := i.cfg, i.writeSeq
	i.mu.Unlock()

	i.mirror(cfg, v, seq)
	return true
}

func (i *Item[T]) failLoad(tok *loadToken, err error) bool {
	i.mu.Lock()
	if i.finished || i.active != tok {
		i.mu.Unlock()
		return false
	}
	value, handler, generic := i.current.value, i.cfg.ErrorHandler, i.cfg.GenericError
	i.mu.Unlock()

	// Handlers are caller code and run unlocked; re-check ownership after.
	msg := i.errorMessage(err, value, handler, generic)

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.finished || i.active != tok {
		return false
	}
	i.active = nil
	tok.cancel()
	i.publishErrorLocked(msg, i.loading, i.loaded)
	return true
}

// Save sends the current value to the Save hook. cb, when non-nil, receives
// the response before the configured Saved hook. Without a Save hook it is
// a no-op.
func (i *Item[T]) Save(cb Callback) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.startMutationLocked(observe.OpSave, i.current.value, cb)
}

// SaveValue sends v to the Save hook without changing the cached value.
func (i *Item[T]) SaveValue(v T, cb Callback) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.startMutationLocked(observe.OpSave, v, cb)
}

// Delete sends the current value to the Delete hook. cb, when non-nil,
// receives the response before the configured Deleted hook. Without a
// Delete hook it is a no-op. The cached value is left in place.
func (i *Item[T]) Delete(cb Callback) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.startMutationLocked(observe.OpDelete, i.current.value, cb)
}

// DeleteValue sends v to the Delete hook.
func (i *Item[T]) DeleteValue(v T, cb Callback) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.startMutationLocked(observe.OpDelete, v, cb)
}

// mutation is one save or delete invocation. Concurrent invocations of the
// same kind settle independently and share the busy/done flags.
type mutation[T any] struct {
	op       string
	consumer Consumer[T]
	value    T
	callback Callback
	hook     Callback
	busy     *observable.Subject[bool]
	done     *observable.Subject[bool]
}

func (i *Item[T]) startMutationLocked(op string, v T, cb Callback) {
	if i.finished {
		return
	}
	m := mutation[T]{op: op, value: v, callback: cb}
	switch op {
	case observe.OpSave:
		m.consumer, m.hook, m.busy, m.done = i.cfg.Save, i.cfg.Saved, i.saving, i.saved
	case observe.OpDelete:
		m.consumer, m.hook, m.busy, m.done = i.cfg.Delete, i.cfg.Deleted, i.deleting, i.deleted
	}
	if m.consumer == nil {
		return
	}

	m.done.Next(false)
	m.busy.Next(true)
	i.clearErrorLocked()

	go i.runMutation(m)
}

func (i *Item[T]) runMutation(m mutation[T]) {
	_ = i.env.middleware.Wrap(func(ctx context.Context, _ observe.OperationMeta) error {
		resp, err := consume(ctx, m.consumer, m.value)
		if i.ctx.Err() != nil {
			return fmt.Errorf("%s %s: item finished: %w", m.op, i.id, context.Canceled)
		}
		if err != nil {
			i.failMutation(m, err)
			return err
		}

		if m.callback != nil {
			m.callback(resp)
		}
		if m.hook != nil {
			m.hook(resp)
		}

		i.mu.Lock()
		defer i.mu.Unlock()
		if !i.finished {
			m.done.Next(true)
			m.busy.Next(false)
		}
		return nil
	})(i.ctx, i.meta(m.op))
}

func (i *Item[T]) failMutation(m mutation[T], err error) {
	i.mu.Lock()
	handler, generic := i.cfg.ErrorHandler, i.cfg.GenericError
	i.mu.Unlock()

	msg := i.errorMessage(err, m.value, handler, generic)

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.finished {
		return
	}
	i.publishErrorLocked(msg, m.busy, m.done)
}

// errorMessage resolves the message for err: item handler, item generic,
// then the registry policy.
func (i *Item[T]) errorMessage(err error, value T, handler func(error, T) string, generic string) string {
	if handler != nil {
		if msg := handler(err, value); msg != "" {
			return msg
		}
	}
	if generic != "" {
		return generic
	}
	return i.env.policy.Message(i.id, err, value)
}

func (i *Item[T]) publishErrorLocked(msg string, flags ...*observable.Subject[bool]) {
	i.errText.Next(msg)
	for _, f := range flags {
		f.Next(false)
	}
	i.hasError.Next(true)
}

func (i *Item[T]) clearErrorLocked() {
	i.hasError.Next(false)
	i.errText.Next("")
}

func (i *Item[T]) setValueLocked(v T) {
	i.current = slot[T]{value: v, ok: true, refreshed: i.env.clock.Now()}
	i.writeSeq++
	i.value.Next(i.current)
}

// Reset cancels any in-flight load, clears every flag and leaves the item
// without a value. No hooks run and storage is untouched.
func (i *Item[T]) Reset() {
	var zero T
	i.reset(slot[T]{value: zero})
}

// ResetTo is Reset with v as the new value. The refresh time is kept.
func (i *Item[T]) ResetTo(v T) {
	i.reset(slot[T]{value: v, ok: true})
}

func (i *Item[T]) reset(next slot[T]) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.finished {
		return
	}
	i.cancelLoadLocked(false)

	next.refreshed = i.current.refreshed
	i.current = next
	i.value.Next(next)

	for _, f := range []*observable.Subject[bool]{
		i.loading, i.loaded, i.saving, i.saved, i.deleting, i.deleted,
	} {
		f.Next(false)
	}
	i.clearErrorLocked()
}

// Unsubscribe cancels the in-flight load, if any. The value and settled
// flags are kept; loading drops to false.
func (i *Item[T]) Unsubscribe() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.finished {
		return
	}
	i.cancelLoadLocked(true)
}

// Finish cancels every in-flight operation and completes every stream.
// It returns once no storage write for the item is in progress, so storage
// removed afterwards stays removed. It is safe to call more than once.
func (i *Item[T]) Finish() {
	i.mu.Lock()
	if !i.finished {
		i.finished = true
		i.cancelLoadLocked(false)
		i.stop()

		i.value.Complete()
		for _, s := range []*observable.Subject[bool]{
			i.loading, i.loaded, i.saving, i.saved, i.deleting, i.deleted, i.hasError,
		} {
			s.Complete()
		}
		i.errText.Complete()
	}
	i.mu.Unlock()

	// Wait out a mirror that passed its finished check before this call.
	i.storeMu.Lock()
	i.storeMu.Unlock()
}

// Finished reports whether Finish has been called.
func (i *Item[T]) Finished() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.finished
}

// Configure merges cfg into the item. A new Construct cancels the
// in-flight load; InitialValue seeds an item without a value; Load starts
// a load after the merge.
func (i *Item[T]) Configure(cfg Config[T]) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.finished {
		return
	}

	if cfg.InitialValue != nil && !i.current.ok {
		i.setValueLocked(*cfg.InitialValue)
		i.loaded.Next(true)
	}
	if cfg.Construct != nil {
		i.cancelLoadLocked(!cfg.Load)
	}
	i.cfg = i.cfg.merge(cfg)
	if cfg.Load {
		i.startLoadLocked()
	}
}

func (i *Item[T]) meta(op string) observe.OperationMeta {
	return observe.OperationMeta{ItemID: i.id, Operation: op, ValueType: i.valueType}
}

// readStorage returns the first decodable entry from the enabled stores,
// local before session.
func (i *Item[T]) readStorage() (T, bool) {
	for _, target := range i.storeTargets(i.cfg) {
		text, ok, err := store.Lookup(context.Background(), target.store, i.id)
		if err != nil {
			i.storageWarning("storage read failed", target.name, err)
			continue
		}
		if !ok {
			continue
		}
		v, err := decodeValue(text, i.cfg.Parse)
		if err != nil {
			i.storageWarning("storage entry not decodable", target.name, err)
			continue
		}
		return v, true
	}
	var zero T
	return zero, false
}

// mirror writes v, the in-memory write numbered seq, to every enabled
// store. Writes for finished items and writes older than one already
// mirrored are dropped, so storage ends on the newest value. Failures are
// logged only.
func (i *Item[T]) mirror(cfg Config[T], v T, seq uint64) {
	targets := i.storeTargets(cfg)
	if len(targets) == 0 {
		return
	}

	i.storeMu.Lock()
	defer i.storeMu.Unlock()

	i.mu.Lock()
	stale := i.finished || seq <= i.mirrored
	if !stale {
		i.mirrored = seq
	}
	i.mu.Unlock()
	if stale {
		return
	}

	text, err := encodeValue(v, cfg.Stringify)
	if err != nil {
		i.storageWarning("value not encodable", "", err)
		return
	}
	for _, target := range targets {
		if err := target.store.Set(context.Background(), i.id, text); err != nil {
			i.storageWarning("storage write failed", target.name, err)
		}
	}
}

type storeTarget struct {
	name  string
	store store.Store
}

func (i *Item[T]) storeTargets(cfg Config[T]) []storeTarget {
	var targets []storeTarget
	if enabled(cfg.LocalStorage) && i.env.local != nil {
		targets = append(targets, storeTarget{name: "local", store: i.env.local})
	}
	if enabled(cfg.SessionStorage) && i.env.session != nil {
		targets = append(targets, storeTarget{name: "session", store: i.env.session})
	}
	return targets
}

func (i *Item[T]) storageWarning(msg, target string, err error) {
	fields := []observe.Field{
		{Key: "cache.item.id", Value: i.id},
		{Key: "error", Value: err.Error()},
	}
	if target != "" {
		fields = append(fields, observe.Field{Key: "store", Value: target})
	}
	i.env.logger.Warn(context.Background(), msg, fields...)
}

// entry is the type-erased view the registry keeps of an item.
type entry interface {
	ID() string
	Status() Status
	Finish()
}

var _ entry = (*Item[int])(nil)
