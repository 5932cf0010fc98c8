// Package repositories implements persistence for users, usage windows, playlist records and the catalog search cache.
//
// SQLite is the default backend. Each table has a repository with atomic sequence generation for
// human-readable ordering, and soft deletes via deleted_at timestamps.
//
// Key Implementations:
//   - [UserRepository] : accounts and subscription tier lookups
//   - [UsageRepository] : monthly usage windows with an atomic increment
//   - [PlaylistRecordRepository] : generated playlists, full or minimal
//   - [SearchCacheRepository] : expiring catalog search results
//   - [PostgresStore] : the same capabilities over a pgx pool
//   - [RedisUsageStore] and [RedisSearchCache] : Redis-backed counters and cache
//
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
