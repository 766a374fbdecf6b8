package health

import "errors"

var (
	// ErrCheckTimeout is attached to results of checks that overran the
	// group deadline.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound is returned by Group.Check for unknown names.
	ErrCheckerNotFound = errors.New("health: checker not found")

	// ErrProbeMismatch means a store returned something other than the
	// probe value it was just given.
	ErrProbeMismatch = errors.New("health: probe value mismatch")
)
