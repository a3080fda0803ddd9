package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/echoes/internal/cache"
	"github.com/goccy/go-json"
)

// CacheStore is a [cache.Store] persisted in the cache_entries table. Values are stored as JSON.
//
// Each store owns one namespace ("lyrics", "embeddings", "features") so several caches share the table.
type CacheStore[V any] struct {
	db        *sql.DB
	namespace string
}

// NewCacheStore creates a store for namespace.
func NewCacheStore[V any](db *sql.DB, namespace string) *CacheStore[V] {
	return &CacheStore[V]{db: db, namespace: namespace}
}

// Get returns the entry for key. A missing row is not an error.
func (s *CacheStore[V]) Get(ctx context.Context, key string) (cache.Entry[V], bool, error) {
	var (
		entry cache.Entry[V]
		raw   []byte
	)

	query := `SELECT value, stored_at FROM cache_entries WHERE namespace = ? AND key = ?`
	err := s.db.QueryRowContext(ctx, query, s.namespace, key).Scan(&raw, &entry.StoredAt)
	if err == sql.ErrNoRows {
		return entry, false, nil
	}
	if err != nil {
		return entry, false, fmt.Errorf("failed to query %s cache: %w", s.namespace, err)
	}

	if err := json.Unmarshal(raw, &entry.Value); err != nil {
		return entry, false, fmt.Errorf("failed to decode %s cache entry %s: %w", s.namespace, key, err)
	}
	return entry, true, nil
}

// Put upserts the entry for key. Concurrent writers to one key are last-writer-wins.
func (s *CacheStore[V]) Put(ctx context.Context, key string, entry cache.Entry[V]) error {
	raw, err := json.Marshal(entry.Value)
	if err != nil {
		return fmt.Errorf("failed to encode %s cache entry %s: %w", s.namespace, key, err)
	}

	query := `
		INSERT INTO cache_entries (namespace, key, value, stored_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, stored_at = excluded.stored_at
	`
	if _, err := s.db.ExecContext(ctx, query, s.namespace, key, raw, entry.StoredAt); err != nil {
		return fmt.Errorf("failed to write %s cache: %w", s.namespace, err)
	}
	return nil
}

// CacheStats counts stored entries in one namespace.
type CacheStats struct {
	Namespace string
	Entries   int
	Oldest    time.Time
	Newest    time.Time
}

// CacheMaintenance inspects and prunes the cache_entries table across namespaces.
type CacheMaintenance struct {
	db *sql.DB
}

// NewCacheMaintenance creates a new CacheMaintenance with the given database connection
func NewCacheMaintenance(db *sql.DB) *CacheMaintenance {
	return &CacheMaintenance{db: db}
}

// Prune deletes entries stored before cutoff and returns how many were removed.
func (m *CacheMaintenance) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := m.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE stored_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune cache: %w", err)
	}
	return result.RowsAffected()
}

// Purge deletes every entry in namespace, or every entry when namespace is empty.
func (m *CacheMaintenance) Purge(ctx context.Context, namespace string) (int64, error) {
	query := `DELETE FROM cache_entries`
	args := []any{}
	if namespace != "" {
		query += ` WHERE namespace = ?`
		args = append(args, namespace)
	}

	result, err := m.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	return result.RowsAffected()
}

// Stats reports per-namespace entry counts ordered by namespace.
func (m *CacheMaintenance) Stats(ctx context.Context) ([]CacheStats, error) {
	query := `
		SELECT namespace, COUNT(*), MIN(stored_at), MAX(stored_at)
		FROM cache_entries
		GROUP BY namespace
		ORDER BY namespace ASC
	`

	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query cache stats: %w", err)
	}
	defer rows.Close()

	var stats []CacheStats
	for rows.Next() {
		var (
			s              CacheStats
			oldest, newest int64
		)
		if err := rows.Scan(&s.Namespace, &s.Entries, &oldest, &newest); err != nil {
			return nil, fmt.Errorf("failed to scan cache stats: %w", err)
		}
		s.Oldest = time.UnixMilli(oldest)
		s.Newest = time.UnixMilli(newest)
		stats = append(stats, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return stats, nil
}
