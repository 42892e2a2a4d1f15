package cache

import (
	"sync"
	"time"
)

type item[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLMap is a typed, mutex-guarded map whose entries expire after ttl. A
// non-positive ttl keeps entries until deleted. When maxEntries is set, a
// full map first drops expired entries and then an arbitrary one.
type TTLMap[V any] struct {
	mu         sync.RWMutex
	items      map[string]item[V]
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func NewTTLMap[V any](ttl time.Duration, maxEntries int) *TTLMap[V] {
	return &TTLMap[V]{
		items:      make(map[string]item[V]),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (m *TTLMap[V]) Get(key string) (V, bool) {
	var zero V

	m.mu.RLock()
	it, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return zero, false
	}
	if m.expired(it) {
		m.mu.Lock()
		if current, still := m.items[key]; still && m.expired(current) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		return zero, false
	}
	return it.value, true
}

func (m *TTLMap[V]) Set(key string, value V) {
	it := item[V]{value: value}
	if m.ttl > 0 {
		it.expiresAt = m.now().Add(m.ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.items[key]; !exists && m.maxEntries > 0 && len(m.items) >= m.maxEntries {
		m.evict()
	}
	m.items[key] = it
}

func (m *TTLMap[V]) Delete(key string) {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
}

// DeleteFunc drops every key for which match returns true and reports how
// many were removed.
func (m *TTLMap[V]) DeleteFunc(match func(key string) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key := range m.items {
		if match(key) {
			delete(m.items, key)
			removed++
		}
	}
	return removed
}

func (m *TTLMap[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// evict runs with mu held.
func (m *TTLMap[V]) evict() {
	for key, it := range m.items {
		if m.expired(it) {
			delete(m.items, key)
		}
	}
	if len(m.items) < m.maxEntries {
		return
	}
	for key := range m.items {
		delete(m.items, key)
		return
	}
}

func (m *TTLMap[V]) expired(it item[V]) bool {
	return m.ttl > 0 && !it.expiresAt.After(m.now())
}
