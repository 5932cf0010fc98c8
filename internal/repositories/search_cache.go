package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/mixtape/internal/shared"
)

// SearchCacheRepository stores catalog search results keyed by normalized "title|artist" keys.
type SearchCacheRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSearchCacheRepository creates a new [SearchCacheRepository] with the given database connection
func NewSearchCacheRepository(db *sql.DB) *SearchCacheRepository {
	return &SearchCacheRepository{db: db, now: time.Now}
}

// Get returns the cached catalog URI for key, or [shared.ErrCacheMiss] when absent or expired.
func (r *SearchCacheRepository) Get(ctx context.Context, key string) (string, error) {
	var uri string
	err := r.db.QueryRowContext(ctx,
		`SELECT uri FROM search_cache WHERE query_key = ? AND expires_at > ?`, key, r.now().UTC(),
	).Scan(&uri)
	if errors.Is(err, sql.ErrNoRows) {
		return "", shared.ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("failed to query search cache: %w", err)
	}
	return uri, nil
}

// Put caches uri under key for ttl, replacing any previous entry.
func (r *SearchCacheRepository) Put(ctx context.Context, key, uri string, ttl time.Duration) error {
	now := r.now().UTC()
	query := `
		INSERT INTO search_cache (query_key, uri, expires_at, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(query_key) DO UPDATE SET
			uri = excluded.uri,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at
	`

	if _, err := r.db.ExecContext(ctx, query, key, uri, now.Add(ttl), now); err != nil {
		return fmt.Errorf("failed to write search cache: %w", err)
	}
	return nil
}

// Purge removes expired entries and returns how many were deleted.
func (r *SearchCacheRepository) Purge(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM search_cache WHERE expires_at <= ?`, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge search cache: %w", err)
	}
	return result.RowsAffected()
}

// Count returns the number of unexpired entries.
func (r *SearchCacheRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM search_cache WHERE expires_at > ?`, r.now().UTC()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count search cache: %w", err)
	}
	return n, nil
}
