// Package pricecache stores the last successful upstream payload per request key.
package pricecache

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/metalquote/internal/domain"
)

// Memory is a process-local cache. Entries are only ever overwritten.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]domain.CacheEntry
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]domain.CacheEntry)}
}

// Get returns the entry for key, if any.
func (m *Memory) Get(_ context.Context, key domain.RequestKey) (domain.CacheEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key.String()]
	return e, ok
}

// Put stores value as fetched at now, replacing any previous entry.
func (m *Memory) Put(_ context.Context, key domain.RequestKey, value []byte, now time.Time) {
	v := make([]byte, len(value))
	copy(v, value)

	m.mu.Lock()
	m.entries[key.String()] = domain.CacheEntry{Key: key, Value: v, FetchedAt: now}
	m.mu.Unlock()
}

// Len returns the number of cached keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
