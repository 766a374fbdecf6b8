package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy selects how the wait grows between attempts.
type BackoffStrategy int

const (
	// BackoffExponential multiplies the wait by Multiplier each attempt.
	BackoffExponential BackoffStrategy = iota
	// BackoffLinear grows the wait by InitialDelay each attempt.
	BackoffLinear
	// BackoffConstant waits InitialDelay between every attempt.
	BackoffConstant
)

// RetryConfig configures retries of a failing hook.
type RetryConfig struct {
	// MaxAttempts counts the first call. Default: 3
	MaxAttempts int

	// InitialDelay is the wait before the second attempt. Default: 100ms
	InitialDelay time.Duration

	// MaxDelay caps any single wait. Default: 10s
	MaxDelay time.Duration

	// Multiplier applies to BackoffExponential. Default: 2.0
	Multiplier float64

	Strategy BackoffStrategy

	// Jitter adds up to 25% to each wait.
	Jitter bool

	// RetryIf reports whether err is worth another attempt.
	// Default: every error except cancellation and an open circuit.
	RetryIf func(err error) bool

	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Validate reports settings that cannot be defaulted away.
func (c RetryConfig) Validate() error {
	if c.MaxAttempts < 0 {
		return fmt.Errorf("%w: negative MaxAttempts %d", ErrInvalidConfig, c.MaxAttempts)
	}
	if c.InitialDelay < 0 || c.MaxDelay < 0 {
		return fmt.Errorf("%w: negative delay", ErrInvalidConfig)
	}
	if c.MaxDelay > 0 && c.InitialDelay > c.MaxDelay {
		return fmt.Errorf("%w: InitialDelay %s exceeds MaxDelay %s", ErrInvalidConfig, c.InitialDelay, c.MaxDelay)
	}
	return nil
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	if c.RetryIf == nil {
		c.RetryIf = Retryable
	}
	return c
}

// Retryable is the default RetryIf. Cancellation means the cache no longer
// wants the result, and an open circuit will not close within a backoff.
func Retryable(err error) bool {
	return err != nil &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, ErrCircuitOpen)
}

// Retry reruns a failing operation with backoff.
type Retry struct {
	config RetryConfig
	sleep  func(context.Context, time.Duration) error
}

// NewRetry validates config and applies defaults.
func NewRetry(config RetryConfig) (*Retry, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Retry{config: config.withDefaults(), sleep: sleepContext}, nil
}

// Config returns the effective configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

func retryCall[R any](ctx context.Context, r *Retry, op func(context.Context) (R, error)) (R, error) {
	var zero R
	for attempt := 1; ; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if !r.config.RetryIf(err) {
			return zero, err
		}
		if attempt >= r.config.MaxAttempts {
			return zero, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, err)
		}

		delay := r.delay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}
		if serr := r.sleep(ctx, delay); serr != nil {
			return zero, serr
		}
	}
}

func (r *Retry) delay(attempt int) time.Duration {
	var d time.Duration
	switch r.config.Strategy {
	case BackoffConstant:
		d = r.config.InitialDelay
	case BackoffLinear:
		d = r.config.InitialDelay * time.Duration(attempt)
	default:
		d = time.Duration(float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt-1)))
	}
	if d > r.config.MaxDelay || d < 0 {
		d = r.config.MaxDelay
	}
	if r.config.Jitter && d >= 4 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		d += time.Duration(rand.Int64N(int64(d / 4)))
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
