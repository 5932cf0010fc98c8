package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/mattn/go-sqlite3"
)

// UsageRepository persists one [models.UsageWindow] per user.
type UsageRepository struct {
	db *sql.DB
}

// NewUsageRepository creates a new [UsageRepository] with the given database connection
func NewUsageRepository(db *sql.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// Window returns the stored window for userID, creating an empty one ending at the next period boundary when none exists.
//
// The stored window is returned as-is; callers roll expired windows with [models.UsageWindow.Current].
func (r *UsageRepository) Window(ctx context.Context, userID string, now time.Time) (models.UsageWindow, error) {
	w := models.UsageWindow{UserID: userID}
	err := r.db.QueryRowContext(ctx,
		`SELECT count, reset_at FROM usage_windows WHERE user_id = ?`, userID,
	).Scan(&w.Count, &w.ResetAt)

	switch {
	case err == nil:
		w.ResetAt = w.ResetAt.UTC()
		return w, nil
	case !errors.Is(err, sql.ErrNoRows):
		return w, fmt.Errorf("failed to query usage window: %w", err)
	}

	fresh := models.NewUsageWindow(userID, now)
	_, err = r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO usage_windows (user_id, count, reset_at, updated_at) VALUES (?, 0, ?, ?)`,
		userID, fresh.ResetAt, now.UTC(),
	)
	if err != nil {
		return w, fmt.Errorf("failed to create usage window: %w", err)
	}
	return fresh, nil
}

// SaveWindow overwrites the stored window.
func (r *UsageRepository) SaveWindow(ctx context.Context, w models.UsageWindow) error {
	query := `
		INSERT INTO usage_windows (user_id, count, reset_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			count = excluded.count,
			reset_at = excluded.reset_at,
			updated_at = excluded.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query, w.UserID, w.Count, w.ResetAt.UTC(), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save usage window: %w", err)
	}
	return nil
}

// IncrementUsage adds one generation to userID's window in a single statement and returns the new count.
//
// An expired window is rolled to the period containing now before counting, so the result is 1.
func (r *UsageRepository) IncrementUsage(ctx context.Context, userID string, now time.Time) (int, error) {
	now = now.UTC()
	resetAt := models.NextResetAt(now)

	query := `
		INSERT INTO usage_windows (user_id, count, reset_at, updated_at) VALUES (?, 1, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			count = CASE WHEN usage_windows.reset_at <= ? THEN 1 ELSE usage_windows.count + 1 END,
			reset_at = CASE WHEN usage_windows.reset_at <= ? THEN excluded.reset_at ELSE usage_windows.reset_at END,
			updated_at = excluded.updated_at
		RETURNING count
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, userID, resetAt, now, now, now).Scan(&count); err != nil {
		if incrementUnsupported(err) {
			return 0, fmt.Errorf("%w: %v", shared.ErrAtomicIncrementMissing, err)
		}
		return 0, fmt.Errorf("failed to increment usage: %w", err)
	}
	return count, nil
}

// incrementUnsupported reports whether sqlite rejected the upsert before running it, as older
// versions without RETURNING do.
func incrementUnsupported(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrError
}
