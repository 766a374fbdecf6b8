package health

import (
	"context"
	"time"
)

// Status is the health of one component.
type Status int

const (
	StatusHealthy Status = iota
	// StatusDegraded means the component serves requests with problems,
	// such as cache items stuck in an error state.
	StatusDegraded
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Result is the outcome of one check.
type Result struct {
	Status    Status
	Message   string
	Details   map[string]any
	Duration  time.Duration
	CheckedAt time.Time
	Err       error
}

// Healthy returns a healthy result.
func Healthy(message string) Result {
	return Result{Status: StatusHealthy, Message: message, CheckedAt: time.Now()}
}

// Degraded returns a degraded result.
func Degraded(message string) Result {
	return Result{Status: StatusDegraded, Message: message, CheckedAt: time.Now()}
}

// Unhealthy returns an unhealthy result carrying err.
func Unhealthy(message string, err error) Result {
	return Result{Status: StatusUnhealthy, Message: message, Err: err, CheckedAt: time.Now()}
}

// WithDetails returns r with details attached.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// Checker reports the health of one component.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
}

type funcChecker struct {
	name string
	fn   func(context.Context) Result
}

// CheckerFunc adapts fn into a Checker called name.
func CheckerFunc(name string, fn func(context.Context) Result) Checker {
	return funcChecker{name: name, fn: fn}
}

func (f funcChecker) Name() string                     { return f.name }
func (f funcChecker) Check(ctx context.Context) Result { return f.fn(ctx) }

// Worst returns the most severe status in results. No results is healthy.
func Worst(results map[string]Result) Status {
	worst := StatusHealthy
	for _, r := range results {
		if r.Status > worst {
			worst = r.Status
		}
	}
	return worst
}
