package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultGroupTimeout bounds a CheckAll when no timeout is configured.
const DefaultGroupTimeout = 5 * time.Second

// Group runs a set of named checkers together.
type Group struct {
	timeout time.Duration

	mu       sync.RWMutex
	checkers map[string]Checker
}

// NewGroup returns a Group that gives every CheckAll at most timeout.
// A non-positive timeout uses DefaultGroupTimeout.
func NewGroup(timeout time.Duration, checkers ...Checker) *Group {
	if timeout <= 0 {
		timeout = DefaultGroupTimeout
	}
	g := &Group{timeout: timeout, checkers: make(map[string]Checker, len(checkers))}
	for _, c := range checkers {
		g.Add(c)
	}
	return g
}

// Add registers c under c.Name(), replacing any checker with that name.
func (g *Group) Add(c Checker) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checkers[c.Name()] = c
}

// Remove unregisters name.
func (g *Group) Remove(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.checkers, name)
}

// Check runs the checker registered as name.
func (g *Group) Check(ctx context.Context, name string) (Result, error) {
	g.mu.RLock()
	c, ok := g.checkers[name]
	g.mu.RUnlock()
	if !ok {
		return Result{}, ErrCheckerNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return run(ctx, c), nil
}

// CheckAll runs every checker concurrently and returns results by name.
func (g *Group) CheckAll(ctx context.Context) map[string]Result {
	g.mu.RLock()
	checkers := make([]Checker, 0, len(g.checkers))
	for _, c := range g.checkers {
		checkers = append(checkers, c)
	}
	g.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var mu sync.Mutex
	results := make(map[string]Result, len(checkers))
	var eg errgroup.Group
	for _, c := range checkers {
		eg.Go(func() error {
			r := run(ctx, c)
			mu.Lock()
			results[c.Name()] = r
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

// run returns c's result, or an unhealthy one if ctx ends first.
func run(ctx context.Context, c Checker) Result {
	start := time.Now()
	done := make(chan Result, 1)
	go func() { done <- c.Check(ctx) }()

	var r Result
	select {
	case r = <-done:
	case <-ctx.Done():
		r = Unhealthy("check timed out", ErrCheckTimeout)
	}
	r.Duration = time.Since(start)
	if r.CheckedAt.IsZero() {
		r.CheckedAt = start
	}
	return r
}
