package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type outcome[R any] struct {
	value R
	err   error
}

// withDeadline runs op with a deadline d from now. The call returns once
// the deadline passes even if op ignores its context; op's late result is
// discarded.
//
// Errors from the parent context are returned unchanged, so a superseded
// cache load still reads as cancelled rather than timed out.
func withDeadline[R any](parent context.Context, d time.Duration, op func(context.Context) (R, error)) (R, error) {
	if d <= 0 {
		return op(parent)
	}

	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()

	done := make(chan outcome[R], 1)
	go func() {
		v, err := op(ctx)
		done <- outcome[R]{value: v, err: err}
	}()

	var res outcome[R]
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}

	var zero R
	switch {
	case res.err == nil:
		return res.value, nil
	case parent.Err() != nil:
		return zero, parent.Err()
	case errors.Is(res.err, context.DeadlineExceeded) && ctx.Err() != nil:
		return zero, fmt.Errorf("%w after %s", ErrTimeout, d)
	default:
		return zero, res.err
	}
}
