package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB defines the interface for database operations.
// It is implemented by *pgxpool.Pool and can be mocked for testing.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore provides users, usage windows, playlist records and the search cache on PostgreSQL.
type PostgresStore struct {
	db  DB
	now func() time.Time
}

// NewPostgresStore creates a new [PostgresStore] over db
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
	id          text PRIMARY KEY,
	sequence    bigserial UNIQUE,
	email       text NOT NULL UNIQUE,
	name        text NOT NULL,
	external_id text NOT NULL DEFAULT '',
	tier        text NOT NULL DEFAULT 'free' CHECK (tier IN ('free', 'premium')),
	created_at  timestamptz NOT NULL DEFAULT now(),
	updated_at  timestamptz NOT NULL DEFAULT now(),
	deleted_at  timestamptz
)`,
	`CREATE TABLE IF NOT EXISTS usage_windows (
	user_id    text PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	count      integer NOT NULL DEFAULT 0 CHECK (count >= 0),
	reset_at   timestamptz NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS playlist_records (
	id          text PRIMARY KEY,
	sequence    bigserial UNIQUE,
	owner_id    text NOT NULL REFERENCES users(id),
	external_id text NOT NULL,
	name        text NOT NULL,
	description text,
	track_count integer NOT NULL DEFAULT 0,
	image_url   text,
	criteria    jsonb,
	created_at  timestamptz NOT NULL DEFAULT now(),
	deleted_at  timestamptz
)`,
	`CREATE INDEX IF NOT EXISTS idx_playlist_records_owner ON playlist_records(owner_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS search_cache (
	query_key  text PRIMARY KEY,
	uri        text NOT NULL,
	expires_at timestamptz NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now()
)`,
}

// AutoMigrate creates the tables when they do not exist.
func (s *PostgresStore) AutoMigrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate postgres schema: %w", err)
		}
	}
	return nil
}

// CreateUser inserts user and assigns its ID and sequence.
func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	id := shared.GenerateID()
	var sequence int
	err := s.db.QueryRow(ctx,
		`INSERT INTO users (id, email, name, external_id, tier, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING sequence`,
		id, user.Email(), user.Name(), user.ExternalID(), user.Tier().String(), user.CreatedAt(), user.UpdatedAt(),
	).Scan(&sequence)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	user.SetID(id)
	user.SetSequence(sequence)
	return nil
}

// Tier returns the subscription tier for userID.
func (s *PostgresStore) Tier(ctx context.Context, userID string) (models.Tier, error) {
	var tier string
	err := s.db.QueryRow(ctx, `SELECT tier FROM users WHERE id = $1 AND deleted_at IS NULL`, userID).Scan(&tier)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", shared.ErrUserNotFound, userID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query tier: %w", err)
	}
	return models.ParseTier(tier)
}

// ExternalID returns the hosting service account ID linked to userID.
func (s *PostgresStore) ExternalID(ctx context.Context, userID string) (string, error) {
	var externalID string
	err := s.db.QueryRow(ctx, `SELECT external_id FROM users WHERE id = $1 AND deleted_at IS NULL`, userID).Scan(&externalID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", shared.ErrUserNotFound, userID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query external id: %w", err)
	}
	return externalID, nil
}

// Window returns the stored usage window for userID, or an empty one ending at the next period boundary.
func (s *PostgresStore) Window(ctx context.Context, userID string, now time.Time) (models.UsageWindow, error) {
	w := models.UsageWindow{UserID: userID}
	err := s.db.QueryRow(ctx, `SELECT count, reset_at FROM usage_windows WHERE user_id = $1`, userID).Scan(&w.Count, &w.ResetAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.NewUsageWindow(userID, now), nil
	}
	if err != nil {
		return w, fmt.Errorf("failed to query usage window: %w", err)
	}
	w.ResetAt = w.ResetAt.UTC()
	return w, nil
}

// SaveWindow overwrites the stored usage window.
func (s *PostgresStore) SaveWindow(ctx context.Context, w models.UsageWindow) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO usage_windows (user_id, count, reset_at, updated_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id) DO UPDATE SET count = EXCLUDED.count, reset_at = EXCLUDED.reset_at, updated_at = now()`,
		w.UserID, w.Count, w.ResetAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save usage window: %w", err)
	}
	return nil
}

// IncrementUsage adds one generation to userID's window in a single statement and returns the new count.
func (s *PostgresStore) IncrementUsage(ctx context.Context, userID string, now time.Time) (int, error) {
	now = now.UTC()
	var count int
	err := s.db.QueryRow(ctx,
		`INSERT INTO usage_windows (user_id, count, reset_at, updated_at) VALUES ($1, 1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			count = CASE WHEN usage_windows.reset_at <= $3 THEN 1 ELSE usage_windows.count + 1 END,
			reset_at = CASE WHEN usage_windows.reset_at <= $3 THEN EXCLUDED.reset_at ELSE usage_windows.reset_at END,
			updated_at = EXCLUDED.updated_at
		RETURNING count`,
		userID, models.NextResetAt(now), now,
	).Scan(&count)
	if err != nil {
		if pgIncrementUnsupported(err) {
			return 0, fmt.Errorf("%w: %v", shared.ErrAtomicIncrementMissing, err)
		}
		return 0, fmt.Errorf("failed to increment usage: %w", err)
	}
	return count, nil
}

// pgIncrementUnsupported reports whether the server refused the upsert statement itself.
func pgIncrementUnsupported(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "42601", "42883", "42P10", "0A000": // syntax_error, undefined_function, invalid_column_reference, feature_not_supported
		return true
	}
	return false
}

// InsertRecord stores every field of record, assigning its ID and sequence.
func (s *PostgresStore) InsertRecord(ctx context.Context, record *models.PlaylistRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	criteria, err := marshalCriteria(record.Criteria())
	if err != nil {
		return err
	}
	var criteriaArg any
	if criteria.Valid {
		criteriaArg = criteria.String
	}

	id := shared.GenerateID()
	var sequence int
	err = s.db.QueryRow(ctx,
		`INSERT INTO playlist_records (id, owner_id, external_id, name, description, track_count, image_url, criteria, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING sequence`,
		id, record.OwnerID(), record.ExternalID(), record.Name(), record.Description(),
		record.TrackCount(), record.ImageURL(), criteriaArg, record.CreatedAt(),
	).Scan(&sequence)
	if err != nil {
		return fmt.Errorf("failed to insert playlist record: %w", err)
	}

	record.SetID(id)
	record.SetSequence(sequence)
	return nil
}

// InsertMinimalRecord stores only the owner, external ID, name and creation time of record.
func (s *PostgresStore) InsertMinimalRecord(ctx context.Context, record *models.PlaylistRecord) error {
	id := shared.GenerateID()
	var sequence int
	err := s.db.QueryRow(ctx,
		`INSERT INTO playlist_records (id, owner_id, external_id, name, created_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING sequence`,
		id, record.OwnerID(), record.ExternalID(), record.Name(), record.CreatedAt(),
	).Scan(&sequence)
	if err != nil {
		return fmt.Errorf("failed to insert minimal playlist record: %w", err)
	}

	record.SetID(id)
	record.SetSequence(sequence)
	return nil
}

// ListByOwner returns ownerID's records, newest first. A limit of zero or less returns all of them.
func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*models.PlaylistRecord, error) {
	query := `SELECT id, sequence, owner_id, external_id, name, description, track_count, image_url, criteria, created_at
		FROM playlist_records WHERE owner_id = $1 AND deleted_at IS NULL ORDER BY sequence DESC`
	args := []any{ownerID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist records: %w", err)
	}
	defer rows.Close()

	var records []*models.PlaylistRecord
	for rows.Next() {
		var (
			id, owner, externalID, name string
			sequence, trackCount        int
			description, imageURL       *string
			criteria                    []byte
			createdAt                   time.Time
		)
		if err := rows.Scan(&id, &sequence, &owner, &externalID, &name, &description, &trackCount, &imageURL, &criteria, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan playlist record: %w", err)
		}

		record := models.RestorePlaylistRecord(id, sequence, owner, externalID, name, createdAt)
		record.SetTrackCount(trackCount)
		if description != nil {
			record.SetDescription(*description)
		}
		if imageURL != nil {
			record.SetImageURL(*imageURL)
		}
		c, err := unmarshalCriteria(string(criteria))
		if err != nil {
			return nil, err
		}
		record.SetCriteria(c)
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

// Get returns the cached catalog URI for key, or [shared.ErrCacheMiss].
func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	var uri string
	err := s.db.QueryRow(ctx, `SELECT uri FROM search_cache WHERE query_key = $1 AND expires_at > $2`, key, s.now().UTC()).Scan(&uri)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", shared.ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("failed to query search cache: %w", err)
	}
	return uri, nil
}

// Put caches uri under key for ttl.
func (s *PostgresStore) Put(ctx context.Context, key, uri string, ttl time.Duration) error {
	now := s.now().UTC()
	_, err := s.db.Exec(ctx,
		`INSERT INTO search_cache (query_key, uri, expires_at, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (query_key) DO UPDATE SET uri = EXCLUDED.uri, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at`,
		key, uri, now.Add(ttl), now,
	)
	if err != nil {
		return fmt.Errorf("failed to write search cache: %w", err)
	}
	return nil
}
