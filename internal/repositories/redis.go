package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/redis/go-redis/v9"
)

const redisPrefix = "mixtape:"

// RedisUsageStore keeps one counter key per user and monthly period. Keys expire at the period boundary,
// so an expired window reads as zero without a separate reset.
type RedisUsageStore struct {
	rdb redis.Cmdable
}

// NewRedisUsageStore creates a new [RedisUsageStore].
func NewRedisUsageStore(rdb redis.Cmdable) *RedisUsageStore {
	return &RedisUsageStore{rdb: rdb}
}

func usageKey(userID string, resetAt time.Time) string {
	return fmt.Sprintf("%susage:%s:%s", redisPrefix, userID, resetAt.UTC().Format("200601"))
}

// Window returns userID's window for the period containing now.
func (s *RedisUsageStore) Window(ctx context.Context, userID string, now time.Time) (models.UsageWindow, error) {
	w := models.NewUsageWindow(userID, now)
	n, err := s.rdb.Get(ctx, usageKey(userID, w.ResetAt)).Int()
	switch {
	case errors.Is(err, redis.Nil):
		return w, nil
	case err != nil:
		return w, fmt.Errorf("failed to read usage counter: %w", err)
	}
	w.Count = n
	return w, nil
}

// SaveWindow overwrites the counter for w's period.
func (s *RedisUsageStore) SaveWindow(ctx context.Context, w models.UsageWindow) error {
	key := usageKey(w.UserID, w.ResetAt)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, key, w.Count, 0)
		p.ExpireAt(ctx, key, w.ResetAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save usage counter: %w", err)
	}
	return nil
}

// IncrementUsage atomically increments the counter for the period containing now and returns the new count.
func (s *RedisUsageStore) IncrementUsage(ctx context.Context, userID string, now time.Time) (int, error) {
	resetAt := models.NextResetAt(now)
	key := usageKey(userID, resetAt)

	var incr *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		p.ExpireAt(ctx, key, resetAt)
		return nil
	})
	if err != nil {
		if strings.Contains(err.Error(), "unknown command") {
			return 0, fmt.Errorf("%w: %v", shared.ErrAtomicIncrementMissing, err)
		}
		return 0, fmt.Errorf("failed to increment usage counter: %w", err)
	}
	return int(incr.Val()), nil
}

// RedisSearchCache stores catalog search results with a per-entry TTL.
type RedisSearchCache struct {
	rdb redis.Cmdable
}

// NewRedisSearchCache creates a new [RedisSearchCache].
func NewRedisSearchCache(rdb redis.Cmdable) *RedisSearchCache {
	return &RedisSearchCache{rdb: rdb}
}

// Get returns the cached catalog URI for key, or [shared.ErrCacheMiss].
func (c *RedisSearchCache) Get(ctx context.Context, key string) (string, error) {
	uri, err := c.rdb.Get(ctx, redisPrefix+"search:"+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", shared.ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("failed to read search cache: %w", err)
	}
	return uri, nil
}

// Put caches uri under key for ttl.
func (c *RedisSearchCache) Put(ctx context.Context, key, uri string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, redisPrefix+"search:"+key, uri, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write search cache: %w", err)
	}
	return nil
}

// NewRedisClient parses url and returns a connected client.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: redis url: %v", shared.ErrInvalidConfig, err)
	}

	rdb := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}
