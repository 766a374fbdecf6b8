package observable

import (
	"context"
	"errors"
	"sync"
)

// ErrCompleted is returned by Wait when the source completes before the
// predicate is satisfied.
var ErrCompleted = errors.New("observable: source completed")

// Observable is the read side of a Subject.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Ownership: every Subscription must be released with Unsubscribe unless
// the source completes.
type Observable[T any] interface {
	// Value returns the latest value.
	Value() T

	// Subscribe returns a subscription that replays the latest value.
	Subscribe() *Subscription[T]

	// Done is closed once the source completes.
	Done() <-chan struct{}
}

// Subject is a broadcast value with replay-latest semantics.
type Subject[T any] struct {
	mu     sync.Mutex
	value  T
	subs   map[*Subscription[T]]struct{}
	done   chan struct{}
	closed bool
}

// NewSubject creates a subject holding initial.
func NewSubject[T any](initial T) *Subject[T] {
	return &Subject[T]{
		value: initial,
		subs:  make(map[*Subscription[T]]struct{}),
		done:  make(chan struct{}),
	}
}

// Value returns the latest value. After Complete it is the last value published.
func (s *Subject[T]) Value() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Next publishes v. It reports false if the subject has completed.
func (s *Subject[T]) Next(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.value = v
	for sub := range s.subs {
		sub.push(v)
	}
	return true
}

// Complete ends the subject. It is safe to call more than once.
func (s *Subject[T]) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	for sub := range s.subs {
		sub.finish()
	}
	s.subs = nil
}

// Completed reports whether Complete has been called.
func (s *Subject[T]) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Done is closed once the subject completes.
func (s *Subject[T]) Done() <-chan struct{} {
	return s.done
}

// Subscribe returns a subscription whose channel first yields the current
// value. Subscribing to a completed subject yields a closed channel.
func (s *Subject[T]) Subscribe() *Subscription[T] {
	sub := newSubscription[T](nil)
	sub.cancel = func() { s.remove(sub) }

	s.mu.Lock()
	if s.closed {
		sub.finish()
	} else {
		sub.push(s.value)
		s.subs[sub] = struct{}{}
	}
	s.mu.Unlock()

	go sub.run()
	return sub
}

func (s *Subject[T]) remove(sub *Subscription[T]) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
}

// Subscribers returns the number of live subscriptions.
func (s *Subject[T]) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

var _ Observable[int] = (*Subject[int])(nil)

// Subscription delivers values from a source in publish order.
type Subscription[T any] struct {
	mu      sync.Mutex
	queue   []T
	closing bool

	signal chan struct{}
	stop   chan struct{}
	once   sync.Once
	out    chan T
	cancel func()
}

func newSubscription[T any](cancel func()) *Subscription[T] {
	return &Subscription[T]{
		signal: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		out:    make(chan T),
		cancel: cancel,
	}
}

// C returns the delivery channel. It is closed after the source completes
// and every buffered value was received, or after Unsubscribe.
func (s *Subscription[T]) C() <-chan T {
	return s.out
}

// Unsubscribe stops delivery and releases the subscription. Buffered values
// are discarded. It is safe to call more than once.
func (s *Subscription[T]) Unsubscribe() {
	s.once.Do(func() {
		close(s.stop)
		if s.cancel != nil {
			s.cancel()
		}
	})
}

func (s *Subscription[T]) push(v T) {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, v)
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription[T]) finish() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription[T]) wake() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription[T]) run() {
	defer close(s.out)

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			closing := s.closing
			s.mu.Unlock()
			if closing {
				return
			}
			select {
			case <-s.signal:
				continue
			case <-s.stop:
				return
			}
		}
		v := s.queue[0]
		var zero T
		s.queue[0] = zero
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- v:
		case <-s.stop:
			return
		}
	}
}

// Map returns a subscription that yields fn applied to each value of src.
// Unsubscribing the result unsubscribes src.
func Map[T, U any](src *Subscription[T], fn func(T) U) *Subscription[U] {
	dst := newSubscription[U](src.Unsubscribe)
	go func() {
		for v := range src.C() {
			dst.push(fn(v))
		}
		dst.finish()
	}()
	go dst.run()
	return dst
}

// Derive returns an Observable whose values are fn applied to src's values.
// fn is evaluated at read and delivery time, not at publish time.
func Derive[T, U any](src Observable[T], fn func(T) U) Observable[U] {
	return &derived[T, U]{src: src, fn: fn}
}

type derived[T, U any] struct {
	src Observable[T]
	fn  func(T) U
}

func (d *derived[T, U]) Value() U                    { return d.fn(d.src.Value()) }
func (d *derived[T, U]) Subscribe() *Subscription[U] { return Map(d.src.Subscribe(), d.fn) }
func (d *derived[T, U]) Done() <-chan struct{}       { return d.src.Done() }

// Wait blocks until src yields a value satisfying pred, ctx is done, or src
// completes. The latest value is always checked first.
func Wait[T any](ctx context.Context, src Observable[T], pred func(T) bool) (T, error) {
	sub := src.Subscribe()
	defer sub.Unsubscribe()

	var last T
	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case v, ok := <-sub.C():
			if !ok {
				return last, ErrCompleted
			}
			last = v
			if pred(v) {
				return v, nil
			}
		}
	}
}
