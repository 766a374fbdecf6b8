// Package resilience decorates cache hooks with timeouts, retries and a
// circuit breaker.
//
// The cache never bounds or repeats a Construct, Save or Delete call on its
// own. Callers that talk to a flaky backend wrap their hooks before handing
// them to cache.Configure:
//
//	breaker, _ := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    MaxFailures: 5,
//	    Cooldown:    time.Minute,
//	})
//	retry, _ := resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 3})
//	policy := resilience.Policy{Timeout: 2 * time.Second, Retry: retry, Breaker: breaker}
//
//	users, _ := cache.Configure(reg, cache.Config[[]User]{
//	    ID:        "users",
//	    Construct: resilience.Producer(policy, fetchUsers),
//	    Save:      resilience.Consumer(policy, storeUsers),
//	})
//
// Cancellation passes through untouched. When the cache supersedes a load,
// the wrapped producer returns the context error, is not retried, and does
// not count against the breaker.
package resilience
