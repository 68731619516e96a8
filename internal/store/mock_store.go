// ABOUTME: In-memory Store implementation for tests
// ABOUTME: Mirrors SQLiteStore semantics without touching the filesystem

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store for tests.
type MockStore struct {
	mu     sync.RWMutex
	kv     map[string]map[string]Entry // plugin -> key -> entry
	events map[int]map[string]int64    // shard -> event type -> count
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		kv:     make(map[string]map[string]Entry),
		events: make(map[int]map[string]int64),
	}
}

func (m *MockStore) Get(_ context.Context, plugin, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if e, ok := m.kv[plugin][key]; ok {
		return e.Value, nil
	}
	return "", ErrNotFound
}

func (m *MockStore) Set(_ context.Context, plugin, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.kv[plugin] == nil {
		m.kv[plugin] = make(map[string]Entry)
	}
	m.kv[plugin][key] = Entry{
		Plugin:    plugin,
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}
	return nil
}

func (m *MockStore) Delete(_ context.Context, plugin, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.kv[plugin], key)
	return nil
}

func (m *MockStore) List(_ context.Context, plugin string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]Entry, 0, len(m.kv[plugin]))
	for _, e := range m.kv[plugin] {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

func (m *MockStore) RecordEvent(_ context.Context, shardID int, eventType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.events[shardID] == nil {
		m.events[shardID] = make(map[string]int64)
	}
	m.events[shardID][eventType]++
	return nil
}

func (m *MockStore) EventCounts(_ context.Context, shardID int) ([]EventCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make([]EventCount, 0, len(m.events[shardID]))
	for typ, n := range m.events[shardID] {
		counts = append(counts, EventCount{EventType: typ, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].EventType < counts[j].EventType })
	return counts, nil
}

func (m *MockStore) Close() error { return nil }
