package storage

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process KVStore used by tests and as the graceful
// fallback when no durable backend is configured or reachable. Contents do
// not survive a restart.
type MemoryStore struct {
	mu    sync.RWMutex
	kv    map[string][]byte
	lists map[string][]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		kv:    make(map[string][]byte),
		lists: make(map[string][]string),
	}
}

// Ping always succeeds.
func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// Set stores a JSON-marshaled copy of value at key.
func (m *MemoryStore) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kv[key] = data
	return nil
}

// Get unmarshals the stored value at key into dest.
func (m *MemoryStore) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.RLock()
	data, ok := m.kv[key]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(data, dest)
}

// Delete removes a key.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.kv, key)
	return nil
}

// Keys returns all keys with the given prefix, sorted.
func (m *MemoryStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.kv {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// ListPush prepends a value to the list at key.
func (m *MemoryStore) ListPush(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[key] = append([]string{value}, m.lists[key]...)
	return nil
}

// ListRange returns list entries in [start, stop], newest first.
func (m *MemoryStore) ListRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.lists[key]
	n := int64(len(list))
	if start < 0 {
		start = 0
	}
	if stop < 0 || stop >= n {
		stop = n - 1
	}
	if start >= n || stop < start {
		return nil, nil
	}
	out := make([]string, stop-start+1)
	copy(out, list[start:stop+1])
	return out, nil
}

// ListTrim keeps only the newest max entries of the list at key.
func (m *MemoryStore) ListTrim(ctx context.Context, key string, max int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if max <= 0 {
		delete(m.lists, key)
		return nil
	}
	if list := m.lists[key]; int64(len(list)) > max {
		m.lists[key] = list[:max]
	}
	return nil
}
