package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/itemcache/cache"
)

// Snapshotter is implemented by *cache.Registry.
type Snapshotter interface {
	Snapshot() []cache.Status
}

// RegistryCheckerConfig configures a RegistryChecker.
type RegistryCheckerConfig struct {
	// Name defaults to "cache".
	Name string

	// UnhealthyRatio is the share of errored items, in (0, 1], at which the
	// registry is reported unhealthy instead of degraded. Zero never
	// escalates.
	UnhealthyRatio float64
}

// RegistryChecker reports degraded while any cache item holds an error.
type RegistryChecker struct {
	reg    Snapshotter
	config RegistryCheckerConfig
}

// NewRegistryChecker returns a checker over reg.
func NewRegistryChecker(reg Snapshotter, config RegistryCheckerConfig) *RegistryChecker {
	if config.Name == "" {
		config.Name = "cache"
	}
	return &RegistryChecker{reg: reg, config: config}
}

// Name returns the configured check name, "cache" by default.
func (c *RegistryChecker) Name() string { return c.config.Name }

// Check summarizes the registry snapshot. Details carry the item count, the
// number loading and expired, and the ids and messages of errored items.
func (c *RegistryChecker) Check(context.Context) Result {
	snap := c.reg.Snapshot()

	var loading, expired int
	errored := map[string]string{}
	for _, s := range snap {
		if s.Loading {
			loading++
		}
		if s.Expired {
			expired++
		}
		if s.HasError {
			errored[s.ID] = s.Error
		}
	}

	details := map[string]any{
		"items":   len(snap),
		"loading": loading,
		"expired": expired,
	}
	if len(errored) == 0 {
		return Healthy(fmt.Sprintf("%d items", len(snap))).WithDetails(details)
	}
	details["errors"] = errored

	msg := fmt.Sprintf("%d of %d items in error", len(errored), len(snap))
	ratio := float64(len(errored)) / float64(len(snap))
	if c.config.UnhealthyRatio > 0 && ratio >= c.config.UnhealthyRatio {
		return Unhealthy(msg, nil).WithDetails(details)
	}
	return Degraded(msg).WithDetails(details)
}
