package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixtape/internal/shared"
)

// CachedCatalog serves repeated searches from a [SearchCache] before asking the wrapped [Catalog].
//
// Only hits are cached. Cache failures are logged and never fail the search.
type CachedCatalog struct {
	next   Catalog
	cache  SearchCache
	ttl    time.Duration
	logger *log.Logger
}

// NewCachedCatalog wraps next with cache.
func NewCachedCatalog(next Catalog, cache SearchCache, ttl time.Duration, logger *log.Logger) *CachedCatalog {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &CachedCatalog{next: next, cache: cache, ttl: ttl, logger: logger}
}

// CacheKey normalizes query so that case and spacing variants share an entry.
func CacheKey(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// SearchTrack implements [Catalog].
func (c *CachedCatalog) SearchTrack(ctx context.Context, token, query string) (string, error) {
	key := CacheKey(query)

	uri, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		c.logger.Debug("search cache hit", "query", key)
		return uri, nil
	case !errors.Is(err, shared.ErrCacheMiss):
		c.logger.Warn("search cache read failed", "query", key, "error", err)
	}

	uri, err = c.next.SearchTrack(ctx, token, query)
	if err != nil {
		return "", err
	}

	if err := c.cache.Put(ctx, key, uri, c.ttl); err != nil {
		c.logger.Warn("search cache write failed", "query", key, "error", err)
	}
	return uri, nil
}
