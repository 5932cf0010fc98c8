package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/urfave/cli/v3"
)

// CacheStats prints the number of cached catalog searches.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	admin, err := r.cacheAdmin(ctx)
	if err != nil {
		return err
	}

	n, err := admin.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count cache entries: %w", err)
	}
	return r.writePlain("Cached searches: %d\n", n)
}

// CachePurge deletes expired catalog searches.
func (r *Runner) CachePurge(ctx context.Context, cmd *cli.Command) error {
	admin, err := r.cacheAdmin(ctx)
	if err != nil {
		return err
	}

	n, err := admin.Purge(ctx)
	if err != nil {
		return fmt.Errorf("failed to purge cache: %w", err)
	}
	r.logger.Info("purged search cache", "removed", n)
	return r.writePlain("✓ Removed %d expired entries\n", n)
}

func (r *Runner) cacheAdmin(ctx context.Context) (CacheAdmin, error) {
	backend, err := r.storage(ctx)
	if err != nil {
		return nil, err
	}
	if backend.CacheAdmin == nil {
		return nil, fmt.Errorf("%w: cache commands need the sqlite search cache (redis expires entries itself)", shared.ErrNotImplemented)
	}
	return backend.CacheAdmin, nil
}
