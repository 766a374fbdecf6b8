// Package health reports on a cache registry and its storage backends.
//
// RegistryChecker summarizes a registry snapshot: the registry is degraded
// while any item holds an error, and optionally unhealthy past a share of
// errored items. StoreChecker round-trips a probe key through a store.Store,
// which catches an unreachable memcache server or an unwritable file store.
//
// Checks are collected in a Group and served over HTTP:
//
//	g := health.NewGroup(2*time.Second,
//	    health.NewRegistryChecker(reg, health.RegistryCheckerConfig{UnhealthyRatio: 0.5}),
//	    health.NewStoreChecker("local", localStore),
//	)
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, g)
package health
