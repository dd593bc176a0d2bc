package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memEntry struct {
	value   []byte
	expires time.Time
}

// Memory is an in-process LRU cache. Every entry lives at most maxTTL;
// Set may shorten that per entry.
type Memory struct {
	lru *expirable.LRU[string, memEntry]
	now func() time.Time
}

// NewMemory creates a cache holding at most maxEntries values (0 means
// unbounded) for at most maxTTL each (0 means no bound).
func NewMemory(maxEntries int, maxTTL time.Duration) *Memory {
	return &Memory{
		lru: expirable.NewLRU[string, memEntry](maxEntries, nil, maxTTL),
		now: time.Now,
	}
}

// Get returns a copy of the value if present and not expired.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := m.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		m.lru.Remove(key)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

// Set stores a copy of value. A non-positive ttl keeps the cache-wide bound.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.lru.Add(key, e)
	return nil
}

// Len returns the number of stored entries.
func (m *Memory) Len() int { return m.lru.Len() }

var _ Cache = (*Memory)(nil)
