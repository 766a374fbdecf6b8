// Package store provides the key-value text storage that cache items mirror
// their values to.
//
// Three backends are included: Memory for session-scoped mirroring, File for
// a durable JSON document on any go-billy filesystem, and Memcache for a
// memcached-backed store. A stored "undefined" is treated as absent.
package store
