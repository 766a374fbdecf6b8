// Package cache provides named, independently-lifecycled cache items.
//
// An Item wraps one value together with observable status: whether it is
// loading, loaded, saving, saved, deleting or deleted, and the last error
// message. Values are produced by caller-supplied producers that run on
// their own goroutine; starting a new load cancels the previous one, so only
// the most recent producer's result is ever published.
//
// A Registry owns items by id. Get and Configure create items on first use
// and merge configuration into existing ones. The registry also carries the
// process-wide error policy used when an item has no error handler of its
// own, and the two key-value stores (durable and session-scoped) items may
// mirror their values to.
//
// Expiration is lazy: an item configured with ExpiresAfter reports no value
// and not loaded once its value is older than the threshold, without any
// background timer touching the stored state.
package cache
