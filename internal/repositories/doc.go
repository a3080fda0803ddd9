// Package repositories implements SQLite persistence for echoes.
//
// Key Implementations:
//   - [CacheStore] : namespaced key/value rows backing the lyrics, embedding and audio feature caches
//   - [RecommendationLogRepository] : history of served recommendations
//   - [RecommendationLogAdapter] : records finished recommendations through the repository
//
// Sequence numbers provide stable, human-readable ordering (e.g., log #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
