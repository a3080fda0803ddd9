// package cache provides timestamped key/value stores with lazy TTL expiry.
//
// A [Store] only persists entries and their storage time. Expiry is decided at read time by [TTL], so
// expired entries linger until overwritten or pruned and are never returned.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/desertthunder/echoes/internal/metrics"
)

// Entry is a cached value and the epoch millisecond it was written.
type Entry[V any] struct {
	Value    V
	StoredAt int64
}

// Store is a concurrency-safe key/value store. Concurrent Puts to one key are last-writer-wins.
type Store[V any] interface {
	Get(ctx context.Context, key string) (Entry[V], bool, error)
	Put(ctx context.Context, key string, entry Entry[V]) error
}

// Memory is an in-process [Store].
type Memory[V any] struct {
	mu      sync.RWMutex
	entries map[string]Entry[V]
}

// NewMemory creates an empty in-memory store.
func NewMemory[V any]() *Memory[V] {
	return &Memory[V]{entries: make(map[string]Entry[V])}
}

func (m *Memory[V]) Get(_ context.Context, key string) (Entry[V], bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	return e, ok, nil
}

func (m *Memory[V]) Put(_ context.Context, key string, entry Entry[V]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry
	return nil
}

// Len returns the number of stored entries, expired or not.
func (m *Memory[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// TTL wraps a [Store] with a time-to-live checked on read.
type TTL[V any] struct {
	store Store[V]
	ttl   time.Duration
	name  string
	now   func() time.Time
}

// NewTTL wraps store. name labels cache metrics. A nil now uses [time.Now].
func NewTTL[V any](name string, store Store[V], ttl time.Duration, now func() time.Time) *TTL[V] {
	if now == nil {
		now = time.Now
	}
	return &TTL[V]{store: store, ttl: ttl, name: name, now: now}
}

// Get returns the value for key if present and younger than the TTL.
func (c *TTL[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	e, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return zero, false, err
	}
	if !ok {
		metrics.CacheLookups.WithLabelValues(c.name, "miss").Inc()
		return zero, false, nil
	}
	if c.Expired(e) {
		metrics.CacheLookups.WithLabelValues(c.name, "expired").Inc()
		return zero, false, nil
	}
	metrics.CacheLookups.WithLabelValues(c.name, "hit").Inc()
	return e.Value, true, nil
}

// Put stores value stamped with the current time.
func (c *TTL[V]) Put(ctx context.Context, key string, value V) error {
	return c.store.Put(ctx, key, Entry[V]{Value: value, StoredAt: c.now().UnixMilli()})
}

// Expired reports whether now - StoredAt >= TTL.
func (c *TTL[V]) Expired(e Entry[V]) bool {
	return c.now().UnixMilli()-e.StoredAt >= c.ttl.Milliseconds()
}

// Name returns the metrics label of the cache.
func (c *TTL[V]) Name() string {
	return c.name
}
