package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Store. It backs session-scoped mirroring: entries
// live as long as the Memory value does.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]string)}
}

// Get retrieves the text for key. Returns ("", false, nil) on miss.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	v, ok := m.entries[key]
	m.mu.RUnlock()
	return v, ok, nil
}

// Set stores text under key.
func (m *Memory) Set(_ context.Context, key, value string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[key] = value
	m.mu.Unlock()
	return nil
}

// Remove deletes key. Idempotent - no error on miss.
func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Keys returns the stored keys in sorted order.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	m.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Clear removes every entry.
func (m *Memory) Clear() {
	m.mu.Lock()
	m.entries = make(map[string]string)
	m.mu.Unlock()
}

// Ensure Memory implements Store
var _ Store = (*Memory)(nil)
