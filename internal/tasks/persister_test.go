package tasks

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
	th "github.com/desertthunder/mixtape/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord() *models.PlaylistRecord {
	pl := &models.ExternalPlaylist{
		ExternalID:  "pl1",
		Name:        "Chill mix",
		Description: "Lofi beats",
		TrackURIs:   []string{"spotify:track:1", "spotify:track:2"},
	}
	return models.NewPlaylistRecord("u1", pl, validCriteria())
}

// stalledRecords holds every full insert until its deadline passes.
type stalledRecords struct {
	*th.MemoryStore
}

func (s stalledRecords) InsertRecord(ctx context.Context, _ *models.PlaylistRecord) error {
	<-ctx.Done()
	return ctx.Err()
}

// stalledIncrementer reports a missing increment only after its deadline passes.
type stalledIncrementer struct{}

func (stalledIncrementer) IncrementUsage(ctx context.Context, _ string, _ time.Time) (int, error) {
	<-ctx.Done()
	return 0, fmt.Errorf("%w: %v", shared.ErrAtomicIncrementMissing, ctx.Err())
}

// lostReplyIncrementer commits the increment and then fails, like a reply lost to a timeout.
type lostReplyIncrementer struct {
	store *th.MemoryStore
}

func (l lostReplyIncrementer) IncrementUsage(ctx context.Context, userID string, now time.Time) (int, error) {
	if _, err := l.store.IncrementUsage(ctx, userID, now); err != nil {
		return 0, err
	}
	return 0, context.DeadlineExceeded
}

func TestResultPersister_Persist(t *testing.T) {
	t.Run("full insert", func(t *testing.T) {
		store := th.NewMemoryStore()
		rec, warning := NewResultPersister(store, nil, testLogger()).Persist(context.Background(), testRecord())

		require.NotNil(t, rec)
		assert.Empty(t, warning)
		assert.Equal(t, 2, rec.TrackCount())
		assert.NotNil(t, rec.Criteria())
		assert.Zero(t, store.MinimalInserts())
	})

	t.Run("minimal insert after failure", func(t *testing.T) {
		store := th.NewMemoryStore()
		store.InsertErr = errors.New("constraint violation")
		original := testRecord()

		rec, warning := NewResultPersister(store, nil, testLogger()).Persist(context.Background(), original)

		require.NotNil(t, rec)
		assert.Empty(t, warning)
		assert.Equal(t, "u1", rec.OwnerID())
		assert.Equal(t, "pl1", rec.ExternalID())
		assert.Equal(t, "Chill mix", rec.Name())
		assert.Equal(t, original.CreatedAt(), rec.CreatedAt())
		assert.Empty(t, rec.Description())
		assert.Nil(t, rec.Criteria())
		assert.Equal(t, 1, store.MinimalInserts())
	})

	t.Run("minimal insert gets its own deadline", func(t *testing.T) {
		store := th.NewMemoryStore()
		p := NewResultPersister(stalledRecords{store}, nil, testLogger())
		p.timeout = 50 * time.Millisecond

		rec, warning := p.Persist(context.Background(), testRecord())

		require.NotNil(t, rec)
		assert.Empty(t, warning)
		assert.Equal(t, "pl1", rec.ExternalID())
		assert.Equal(t, 1, store.MinimalInserts())
	})

	t.Run("both inserts fail", func(t *testing.T) {
		store := th.NewMemoryStore()
		store.InsertErr = errors.New("constraint violation")
		store.MinimalErr = errors.New("database is locked")

		rec, warning := NewResultPersister(store, nil, testLogger()).Persist(context.Background(), testRecord())

		assert.Nil(t, rec)
		assert.Contains(t, warning, shared.ErrPersistenceFailed.Error())
		assert.Contains(t, warning, "pl1")
		assert.Empty(t, store.Records())
	})
}

func TestUsageAccountants(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	t.Run("atomic increments", func(t *testing.T) {
		store := th.NewMemoryStore()
		a := NewAtomicAccountant(store, nil)

		for want := 1; want <= 3; want++ {
			n, err := a.Account(context.Background(), "u1", now)
			require.NoError(t, err)
			assert.Equal(t, want, n)
		}
		assert.Zero(t, store.Saves())
	})

	t.Run("atomic falls back to read write", func(t *testing.T) {
		store := th.NewMemoryStore()
		store.IncrementErr = fmt.Errorf("%w: no such function", shared.ErrAtomicIncrementMissing)
		a := NewAtomicAccountant(store, NewReadWriteAccountant(store))

		n, err := a.Account(context.Background(), "u1", now)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, 1, store.Saves())
	})

	t.Run("atomic keeps other errors", func(t *testing.T) {
		store := th.NewMemoryStore()
		store.IncrementErr = errors.New("database is locked")
		a := NewAtomicAccountant(store, NewReadWriteAccountant(store))

		_, err := a.Account(context.Background(), "u1", now)
		assert.ErrorIs(t, err, shared.ErrUsageAccountingFailed)
		assert.Zero(t, store.Saves())
	})

	t.Run("committed increment is not counted twice", func(t *testing.T) {
		store := th.NewMemoryStore()
		a := NewAtomicAccountant(lostReplyIncrementer{store}, NewReadWriteAccountant(store))

		_, err := a.Account(context.Background(), "u1", now)
		assert.ErrorIs(t, err, shared.ErrUsageAccountingFailed)
		assert.ErrorContains(t, err, context.DeadlineExceeded.Error())

		w, ok := store.StoredWindow("u1")
		require.True(t, ok)
		assert.Equal(t, 1, w.Count)
		assert.Zero(t, store.Saves())
	})

	t.Run("fallback gets its own deadline", func(t *testing.T) {
		store := th.NewMemoryStore()
		a := NewAtomicAccountant(stalledIncrementer{}, NewReadWriteAccountant(store))
		a.timeout = 50 * time.Millisecond

		n, err := a.Account(context.Background(), "u1", now)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, 1, store.Saves())
	})

	t.Run("atomic without fallback reports failure", func(t *testing.T) {
		store := th.NewMemoryStore()
		store.IncrementErr = errors.New("unsupported")

		_, err := NewAtomicAccountant(store, nil).Account(context.Background(), "u1", now)
		assert.ErrorIs(t, err, shared.ErrUsageAccountingFailed)
	})

	t.Run("no incrementer and no fallback", func(t *testing.T) {
		_, err := NewAtomicAccountant(nil, nil).Account(context.Background(), "u1", now)
		assert.ErrorIs(t, err, shared.ErrAtomicIncrementMissing)
	})

	t.Run("read write rolls an expired window", func(t *testing.T) {
		store := th.NewMemoryStore()
		store.SetWindow(models.UsageWindow{UserID: "u1", Count: 5, ResetAt: now.Add(-time.Hour)})

		n, err := NewReadWriteAccountant(store).Account(context.Background(), "u1", now)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		w, _ := store.StoredWindow("u1")
		assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), w.ResetAt)
	})

	t.Run("read write failure", func(t *testing.T) {
		store := th.NewMemoryStore()
		store.SaveErr = errors.New("readonly")

		_, err := NewReadWriteAccountant(store).Account(context.Background(), "u1", now)
		assert.ErrorIs(t, err, shared.ErrUsageAccountingFailed)
	})

	t.Run("picks by capability", func(t *testing.T) {
		store := th.NewMemoryStore()
		assert.IsType(t, &AtomicAccountant{}, NewUsageAccountant(store))
		assert.IsType(t, &ReadWriteAccountant{}, NewUsageAccountant(th.ReadWriteOnly{Store: store}))
	})
}

func TestResultPersister_AccountUsage(t *testing.T) {
	t.Run("counts one generation", func(t *testing.T) {
		store := th.NewMemoryStore()
		NewResultPersister(store, NewUsageAccountant(store), testLogger()).AccountUsage(context.Background(), "u1")

		w, ok := store.StoredWindow("u1")
		require.True(t, ok)
		assert.Equal(t, 1, w.Count)
	})

	t.Run("swallows failures", func(t *testing.T) {
		store := th.NewMemoryStore()
		store.IncrementErr = errors.New("locked")
		store.SaveErr = errors.New("locked")

		assert.NotPanics(t, func() {
			NewResultPersister(store, NewUsageAccountant(store), testLogger()).AccountUsage(context.Background(), "u1")
		})
		_, ok := store.StoredWindow("u1")
		assert.False(t, ok)
	})

	t.Run("no accountant", func(t *testing.T) {
		assert.NotPanics(t, func() {
			NewResultPersister(th.NewMemoryStore(), nil, testLogger()).AccountUsage(context.Background(), "u1")
		})
	})
}
