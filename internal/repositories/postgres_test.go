package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresStore(mock), mock
}

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

	t.Run("AutoMigrate", func(t *testing.T) {
		s, mock := setupMockStore(t)
		for _, table := range []string{"users", "usage_windows", "playlist_records"} {
			mock.ExpectExec("CREATE TABLE IF NOT EXISTS " + table).WillReturnResult(pgxmock.NewResult("CREATE", 0))
		}
		mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_playlist_records_owner").WillReturnResult(pgxmock.NewResult("CREATE", 0))
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS search_cache").WillReturnResult(pgxmock.NewResult("CREATE", 0))

		require.NoError(t, s.AutoMigrate(ctx))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("AutoMigrateError", func(t *testing.T) {
		s, mock := setupMockStore(t)
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnError(errors.New("permission denied"))

		assert.Error(t, s.AutoMigrate(ctx))
	})

	t.Run("CreateUser", func(t *testing.T) {
		s, mock := setupMockStore(t)
		user := models.NewUser(0, "test@example.com", "Test User")
		mock.ExpectQuery("INSERT INTO users").
			WithArgs(pgxmock.AnyArg(), "test@example.com", "Test User", "", "free", pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"sequence"}).AddRow(4))

		require.NoError(t, s.CreateUser(ctx, user))
		assert.NotEmpty(t, user.ID())
		assert.Equal(t, 4, user.Sequence())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Tier", func(t *testing.T) {
		s, mock := setupMockStore(t)
		mock.ExpectQuery("SELECT tier FROM users").
			WithArgs("u1").
			WillReturnRows(pgxmock.NewRows([]string{"tier"}).AddRow("premium"))

		tier, err := s.Tier(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, models.TierPremium, tier)
	})

	t.Run("TierUnknownUser", func(t *testing.T) {
		s, mock := setupMockStore(t)
		mock.ExpectQuery("SELECT tier FROM users").WithArgs("u1").WillReturnError(pgx.ErrNoRows)

		_, err := s.Tier(ctx, "u1")
		assert.ErrorIs(t, err, shared.ErrUserNotFound)
	})

	t.Run("WindowMissingIsEmpty", func(t *testing.T) {
		s, mock := setupMockStore(t)
		mock.ExpectQuery("SELECT count, reset_at FROM usage_windows").WithArgs("u1").WillReturnError(pgx.ErrNoRows)

		w, err := s.Window(ctx, "u1", now)
		require.NoError(t, err)
		assert.Equal(t, 0, w.Count)
		assert.Equal(t, models.NextResetAt(now), w.ResetAt)
	})

	t.Run("IncrementUsage", func(t *testing.T) {
		s, mock := setupMockStore(t)
		mock.ExpectQuery("INSERT INTO usage_windows").
			WithArgs("u1", pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

		n, err := s.IncrementUsage(ctx, "u1", now)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("IncrementUsageErrors", func(t *testing.T) {
		tests := []struct {
			name        string
			err         error
			unsupported bool
		}{
			{"UndefinedFunction", &pgconn.PgError{Code: "42883"}, true},
			{"NoConflictTarget", &pgconn.PgError{Code: "42P10"}, true},
			{"Deadlock", &pgconn.PgError{Code: "40P01"}, false},
			{"Timeout", context.DeadlineExceeded, false},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				s, mock := setupMockStore(t)
				mock.ExpectQuery("INSERT INTO usage_windows").WillReturnError(tt.err)

				_, err := s.IncrementUsage(ctx, "u1", now)
				require.Error(t, err)
				assert.Equal(t, tt.unsupported, errors.Is(err, shared.ErrAtomicIncrementMissing))
			})
		}
	})

	t.Run("SaveWindow", func(t *testing.T) {
		s, mock := setupMockStore(t)
		w := models.UsageWindow{UserID: "u1", Count: 2, ResetAt: models.NextResetAt(now)}
		mock.ExpectExec("INSERT INTO usage_windows").
			WithArgs("u1", 2, w.ResetAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, s.SaveWindow(ctx, w))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("InsertRecord", func(t *testing.T) {
		s, mock := setupMockStore(t)
		record := models.NewPlaylistRecord("u1", &models.ExternalPlaylist{
			ExternalID: "pl-1", Name: "Mix", TrackURIs: []string{"spotify:track:1"},
		}, models.PlaylistCriteria{Name: "Mix", TrackCount: 10, Uniqueness: 3})

		mock.ExpectQuery("INSERT INTO playlist_records").
			WithArgs(pgxmock.AnyArg(), "u1", "pl-1", "Mix", "", 1, "", pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"sequence"}).AddRow(9))

		require.NoError(t, s.InsertRecord(ctx, record))
		assert.Equal(t, 9, record.Sequence())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("InsertMinimalRecordError", func(t *testing.T) {
		s, mock := setupMockStore(t)
		record := models.RestorePlaylistRecord("", 0, "u1", "pl-1", "Mix", now)
		mock.ExpectQuery("INSERT INTO playlist_records").WillReturnError(errors.New("connection reset"))

		err := s.InsertMinimalRecord(ctx, record)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "minimal")
	})

	t.Run("SearchCache", func(t *testing.T) {
		s, mock := setupMockStore(t)
		s.now = func() time.Time { return now }

		mock.ExpectExec("INSERT INTO search_cache").
			WithArgs("so what|miles davis", "spotify:track:a", now.Add(time.Hour), now).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectQuery("SELECT uri FROM search_cache").
			WithArgs("so what|miles davis", now).
			WillReturnRows(pgxmock.NewRows([]string{"uri"}).AddRow("spotify:track:a"))
		mock.ExpectQuery("SELECT uri FROM search_cache").
			WithArgs("missing", now).
			WillReturnError(pgx.ErrNoRows)

		require.NoError(t, s.Put(ctx, "so what|miles davis", "spotify:track:a", time.Hour))

		uri, err := s.Get(ctx, "so what|miles davis")
		require.NoError(t, err)
		assert.Equal(t, "spotify:track:a", uri)

		_, err = s.Get(ctx, "missing")
		assert.ErrorIs(t, err, shared.ErrCacheMiss)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
