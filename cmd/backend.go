package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/repositories"
	"github.com/desertthunder/mixtape/internal/services"
	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/desertthunder/mixtape/internal/tasks"
)

// UserStore creates users and answers the pipeline's user lookups.
type UserStore interface {
	tasks.TierLookup
	tasks.OwnerLookup
	CreateUser(ctx context.Context, user *models.User) error
}

// RecordStore saves and lists playlist records.
type RecordStore interface {
	tasks.RecordStore
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]*models.PlaylistRecord, error)
}

// CacheAdmin inspects and prunes the search cache.
type CacheAdmin interface {
	Count(ctx context.Context) (int, error)
	Purge(ctx context.Context) (int64, error)
}

// Backend bundles the stores selected by [shared.DatabaseConfig] and [shared.RedisConfig].
type Backend struct {
	Users   UserStore
	Usage   tasks.UsageStore
	Records RecordStore
	Cache   services.SearchCache
	// CacheAdmin is nil when the cache lives in Redis.
	CacheAdmin CacheAdmin
	Driver     string
	// SQL is the SQLite handle; nil for Postgres.
	SQL *sql.DB

	closers []func()
}

// Close releases every connection the backend opened.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// sqliteUsers adapts [repositories.UserRepository] to [UserStore].
type sqliteUsers struct {
	*repositories.UserRepository
}

func (u sqliteUsers) CreateUser(ctx context.Context, user *models.User) error {
	return u.Create(ctx, user)
}

// OpenBackend connects the configured database and, when set, Redis.
//
// SQLite databases are migrated on open; Postgres runs its idempotent schema.
func OpenBackend(ctx context.Context, cfg *shared.Config) (*Backend, error) {
	b := &Backend{Driver: cfg.Database.Driver}
	if b.Driver == "" {
		b.Driver = "sqlite"
	}

	switch b.Driver {
	case "sqlite":
		db, err := shared.NewDatabase(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		b.closers = append(b.closers, func() { db.Close() })
		b.SQL = db
		shared.ConfigureDatabase(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)

		if err := shared.RunMigrations(ctx, db); err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		cache := repositories.NewSearchCacheRepository(db)
		b.Users = sqliteUsers{repositories.NewUserRepository(db)}
		b.Usage = repositories.NewUsageRepository(db)
		b.Records = repositories.NewPlaylistRecordRepository(db)
		b.Cache = cache
		b.CacheAdmin = cache

	case "postgres":
		pool, err := shared.NewPostgresPool(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)

		store := repositories.NewPostgresStore(pool)
		if err := store.AutoMigrate(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to migrate postgres: %w", err)
		}
		b.Users = store
		b.Usage = store
		b.Records = store
		b.Cache = store

	default:
		return nil, fmt.Errorf("%w: database.driver %q", shared.ErrInvalidConfig, cfg.Database.Driver)
	}

	if cfg.Redis.URL != "" {
		rdb, err := repositories.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, func() { rdb.Close() })
		b.Usage = repositories.NewRedisUsageStore(rdb)
		b.Cache = repositories.NewRedisSearchCache(rdb)
		b.CacheAdmin = nil
	}

	return b, nil
}

// errNoBackend is returned by commands that need storage when none is configured.
var errNoBackend = errors.New("storage backend not initialized")
