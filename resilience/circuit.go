package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// State is a circuit breaker position.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects calls with ErrCircuitOpen.
	StateOpen
	// StateHalfOpen admits a limited number of probe calls.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	// MaxFailures is the run of consecutive failures that opens the
	// circuit. Default: 5
	MaxFailures int

	// Cooldown is how long the circuit stays open before probing.
	// Default: 30s
	Cooldown time.Duration

	// HalfOpenProbes is how many calls may run while half-open. Default: 1
	HalfOpenProbes int

	// IsFailure decides which errors count. Default: every error except
	// cancellation, since a superseded load says nothing about the backend.
	IsFailure func(err error) bool

	OnStateChange func(from, to State)

	// Now defaults to time.Now.
	Now func() time.Time
}

// Validate reports settings that cannot be defaulted away.
func (c CircuitBreakerConfig) Validate() error {
	if c.MaxFailures < 0 || c.HalfOpenProbes < 0 {
		return fmt.Errorf("%w: negative breaker threshold", ErrInvalidConfig)
	}
	if c.Cooldown < 0 {
		return fmt.Errorf("%w: negative Cooldown %s", ErrInvalidConfig, c.Cooldown)
	}
	return nil
}

// CircuitBreaker stops calling a hook that keeps failing. One breaker is
// usually shared by every item backed by the same remote service.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probes   int
	rejected int64
}

// NewCircuitBreaker validates config and applies defaults.
func NewCircuitBreaker(config CircuitBreakerConfig) (*CircuitBreaker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.MaxFailures == 0 {
		config.MaxFailures = 5
	}
	if config.Cooldown == 0 {
		config.Cooldown = 30 * time.Second
	}
	if config.HalfOpenProbes == 0 {
		config.HalfOpenProbes = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil && Retryable(err) }
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &CircuitBreaker{config: config}, nil
}

func breakerCall[R any](ctx context.Context, cb *CircuitBreaker, op func(context.Context) (R, error)) (R, error) {
	if err := cb.admit(); err != nil {
		var zero R
		return zero, err
	}
	v, err := op(ctx)
	cb.record(err)
	return v, err
}

// State returns the current position, moving open to half-open once the
// cooldown has elapsed.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.refreshLocked()
}

// Reset closes the circuit and forgets past failures.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionLocked(StateClosed)
}

// Stats is a point-in-time view of a breaker.
type Stats struct {
	State    State
	Failures int
	OpenedAt time.Time
	Rejected int64
}

// Stats returns the current counters.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Stats{
		State:    cb.refreshLocked(),
		Failures: cb.failures,
		OpenedAt: cb.openedAt,
		Rejected: cb.rejected,
	}
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.refreshLocked() {
	case StateOpen:
		cb.rejected++
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.probes >= cb.config.HalfOpenProbes {
			cb.rejected++
			return ErrCircuitOpen
		}
		cb.probes++
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	failed := cb.config.IsFailure(err)

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		if !failed {
			cb.failures = 0
			return
		}
		cb.failures++
		if cb.failures >= cb.config.MaxFailures {
			cb.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		if failed {
			cb.transitionLocked(StateOpen)
		} else if err == nil {
			cb.transitionLocked(StateClosed)
		} else {
			// Ignored errors give the probe slot back.
			cb.probes--
		}
	}
}

func (cb *CircuitBreaker) refreshLocked() State {
	if cb.state == StateOpen && cb.config.Now().Sub(cb.openedAt) >= cb.config.Cooldown {
		cb.transitionLocked(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) transitionLocked(to State) {
	from := cb.state
	cb.state = to
	switch to {
	case StateOpen:
		cb.openedAt = cb.config.Now()
	case StateHalfOpen:
		cb.probes = 0
	case StateClosed:
		cb.failures = 0
		cb.probes = 0
	}
	if from != to && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, to)
	}
}
