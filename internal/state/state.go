// Package state provides the durable key/value store used for small pieces of
// synchronization state such as the schedule cursor.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Store persists JSON-encodable values under string keys.
type Store interface {
	// Get decodes the value stored under key into dst. It reports false when
	// the key does not exist.
	Get(ctx context.Context, key string, dst any) (bool, error)
	// Set stores value under key.
	Set(ctx context.Context, key string, value any) error
	// Delete removes key.
	Delete(ctx context.Context, key string) error
}

// MemoryStore is an in-process Store. Values are kept JSON-encoded so that
// callers never share mutable state with the store.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key string, dst any) (bool, error) {
	m.mu.Lock()
	data, ok := m.values[key]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to decode state %q: %w", key, err)
	}
	return true, nil
}

// Set stores value JSON-encoded under key, replacing any previous value.
func (m *MemoryStore) Set(_ context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode state %q: %w", key, err)
	}
	m.mu.Lock()
	m.values[key] = data
	m.mu.Unlock()
	return nil
}

// Delete removes key. Removing a missing key is not an error.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
	return nil
}
