package cache

import "time"

// Clock provides the current time for expiration checks.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now returns f().
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads time.Now.
var SystemClock Clock = realClock{}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}
