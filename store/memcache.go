package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// memcacheMaxKey is the server-side key length limit.
const memcacheMaxKey = 250

// DefaultMemcachePrefix namespaces keys written by Memcache.
const DefaultMemcachePrefix = "itemcache:"

// MemcacheClient is the subset of *memcache.Client used by Memcache.
type MemcacheClient interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
	Delete(key string) error
}

// MemcacheConfig configures a Memcache store.
type MemcacheConfig struct {
	// Servers lists memcached addresses (host:port).
	Servers []string

	// Prefix is prepended to every key.
	// Default: DefaultMemcachePrefix
	Prefix string

	// Expiration is the server-side lifetime of an entry in seconds.
	// Zero keeps entries until evicted.
	Expiration int32

	// Timeout is the socket read/write timeout.
	// Default: the gomemcache client default
	Timeout time.Duration
}

// Memcache is a Store backed by memcached, for sharing mirrored values
// between processes that address the same servers.
type Memcache struct {
	client     MemcacheClient
	prefix     string
	expiration int32
}

// NewMemcache creates a store connected to config.Servers.
func NewMemcache(config MemcacheConfig) (*Memcache, error) {
	if len(config.Servers) == 0 {
		return nil, errors.New("store: memcache servers are required")
	}
	mc := memcache.New(config.Servers...)
	if config.Timeout > 0 {
		mc.Timeout = config.Timeout
	}
	return NewMemcacheWithClient(mc, config), nil
}

// NewMemcacheWithClient creates a store using an existing client.
func NewMemcacheWithClient(client MemcacheClient, config MemcacheConfig) *Memcache {
	if config.Prefix == "" {
		config.Prefix = DefaultMemcachePrefix
	}
	return &Memcache{
		client:     client,
		prefix:     config.Prefix,
		expiration: config.Expiration,
	}
}

// Key returns the memcached key used for key. Keys that memcached would
// reject are replaced by a SHA-256 digest.
func (m *Memcache) Key(key string) string {
	k := m.prefix + key
	if len(k) <= memcacheMaxKey && legalMemcacheKey(k) {
		return k
	}
	sum := sha256.Sum256([]byte(key))
	return m.prefix + "sha256:" + hex.EncodeToString(sum[:])
}

// Get retrieves the text for key. Returns ("", false, nil) on miss.
func (m *Memcache) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	item, err := m.client.Get(m.Key(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: memcache get: %w", err)
	}
	return string(item.Value), true, nil
}

// Set stores text under key.
func (m *Memcache) Set(ctx context.Context, key, value string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := m.client.Set(&memcache.Item{
		Key:        m.Key(key),
		Value:      []byte(value),
		Expiration: m.expiration,
	})
	if err != nil {
		return fmt.Errorf("store: memcache set: %w", err)
	}
	return nil
}

// Remove deletes key. Idempotent - no error on miss.
func (m *Memcache) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := m.client.Delete(m.Key(key))
	if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return fmt.Errorf("store: memcache delete: %w", err)
	}
	return nil
}

func legalMemcacheKey(k string) bool {
	return !strings.ContainsFunc(k, func(r rune) bool {
		return r <= ' ' || r == 0x7f
	})
}

// Ensure Memcache implements Store
var _ Store = (*Memcache)(nil)
