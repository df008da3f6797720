package cache

import (
	"context"
	"sync"
	"time"

	"github.com/tablewise/backend/internal/models"
)

// Memory is the default in-process cache. Entries expire a fixed TTL after
// insertion; nothing is evicted before that, which is an accepted tradeoff
// for the small key space of dashboard queries. The clock is a field so
// tests can move time without sleeping.
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value    models.AggregatedMetrics
	storedAt time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (m *Memory) Get(_ context.Context, key string) (models.AggregatedMetrics, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok || m.now().Sub(e.storedAt) >= m.ttl {
		return models.AggregatedMetrics{}, false
	}
	return e.value, true
}

func (m *Memory) Set(_ context.Context, key string, value models.AggregatedMetrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: value, storedAt: m.now()}
}

func (m *Memory) Invalidate(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]memoryEntry)
}
