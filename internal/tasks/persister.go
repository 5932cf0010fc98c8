package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
)

// RecordStore saves playlist records.
type RecordStore interface {
	// InsertRecord stores every field of the record.
	InsertRecord(ctx context.Context, record *models.PlaylistRecord) error

	// InsertMinimalRecord stores only the identifying fields of the record.
	InsertMinimalRecord(ctx context.Context, record *models.PlaylistRecord) error
}

// UsageAccountant counts one generation against a user's window.
type UsageAccountant interface {
	Account(ctx context.Context, userID string, now time.Time) (int, error)
}

// storeTimeout bounds a single store attempt. Fallback attempts get a fresh one.
const storeTimeout = 10 * time.Second

// withTimeout runs fn under its own deadline derived from ctx.
func withTimeout(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}

// AtomicAccountant counts usage with the store's single-statement increment.
//
// The fallback is tried only when the increment reports [shared.ErrAtomicIncrementMissing]. Any other error
// may follow a committed increment, so it is returned rather than counted a second time.
type AtomicAccountant struct {
	store    UsageIncrementer
	fallback UsageAccountant
	timeout  time.Duration
}

// NewAtomicAccountant creates an [AtomicAccountant]. fallback may be nil.
func NewAtomicAccountant(store UsageIncrementer, fallback UsageAccountant) *AtomicAccountant {
	return &AtomicAccountant{store: store, fallback: fallback, timeout: storeTimeout}
}

func (a *AtomicAccountant) Account(ctx context.Context, userID string, now time.Time) (int, error) {
	err := shared.ErrAtomicIncrementMissing
	var n int
	if a.store != nil {
		err = withTimeout(ctx, a.timeout, func(ctx context.Context) error {
			var incErr error
			n, incErr = a.store.IncrementUsage(ctx, userID, now)
			return incErr
		})
	}

	switch {
	case err == nil:
		return n, nil
	case !errors.Is(err, shared.ErrAtomicIncrementMissing):
		return 0, fmt.Errorf("%w: %v", shared.ErrUsageAccountingFailed, err)
	case a.fallback == nil:
		return 0, err
	}
	return a.fallback.Account(ctx, userID, now)
}

// ReadWriteAccountant counts usage by reading the window, adding one and writing it back.
// Concurrent runs for the same user may lose an increment.
type ReadWriteAccountant struct {
	store   UsageStore
	timeout time.Duration
}

// NewReadWriteAccountant creates a [ReadWriteAccountant].
func NewReadWriteAccountant(store UsageStore) *ReadWriteAccountant {
	return &ReadWriteAccountant{store: store, timeout: storeTimeout}
}

func (a *ReadWriteAccountant) Account(ctx context.Context, userID string, now time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	stored, err := a.store.Window(ctx, userID, now)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrUsageAccountingFailed, err)
	}

	window, _ := stored.Current(now)
	window.UserID = userID
	window.Count++
	if err := a.store.SaveWindow(ctx, window); err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrUsageAccountingFailed, err)
	}
	return window.Count, nil
}

// NewUsageAccountant picks the accountant for store: atomic with a read/write fallback
// when the store supports increments, read/write otherwise.
func NewUsageAccountant(store UsageStore) UsageAccountant {
	rw := NewReadWriteAccountant(store)
	if inc, ok := store.(UsageIncrementer); ok {
		return NewAtomicAccountant(inc, rw)
	}
	return rw
}

// ResultPersister records finished runs.
type ResultPersister struct {
	records    RecordStore
	accountant UsageAccountant
	timeout    time.Duration
	now        func() time.Time
	logger     *log.Logger
}

// NewResultPersister creates a [ResultPersister].
func NewResultPersister(records RecordStore, accountant UsageAccountant, logger *log.Logger) *ResultPersister {
	return &ResultPersister{
		records:    records,
		accountant: accountant,
		timeout:    storeTimeout,
		now:        time.Now,
		logger:     shared.WithLogger(logger, "component", "persister"),
	}
}

// Persist saves record, falling back to a minimal insert. Each insert gets its own timeout.
//
// When both inserts fail it returns a nil record and a warning describing the failure.
func (p *ResultPersister) Persist(ctx context.Context, record *models.PlaylistRecord) (*models.PlaylistRecord, string) {
	err := withTimeout(ctx, p.timeout, func(ctx context.Context) error {
		return p.records.InsertRecord(ctx, record)
	})
	if err == nil {
		p.logger.Debug("record saved", "id", record.ID(), "external_id", record.ExternalID())
		return record, ""
	}
	p.logger.Warn("record insert failed, trying minimal insert", "external_id", record.ExternalID(), "error", err)

	minimal := models.RestorePlaylistRecord("", 0, record.OwnerID(), record.ExternalID(), record.Name(), record.CreatedAt())
	fallbackErr := withTimeout(ctx, p.timeout, func(ctx context.Context) error {
		return p.records.InsertMinimalRecord(ctx, minimal)
	})
	if fallbackErr != nil {
		p.logger.Error("minimal record insert failed", "external_id", record.ExternalID(), "error", fallbackErr)
		return nil, fmt.Sprintf("%v: playlist %s was created but could not be saved: %v",
			shared.ErrPersistenceFailed, record.ExternalID(), fallbackErr)
	}

	p.logger.Debug("minimal record saved", "id", minimal.ID(), "external_id", minimal.ExternalID())
	return minimal, ""
}

// AccountUsage counts one generation for userID. Failures are logged and never returned.
//
// The accountant applies its own per-attempt timeouts, so ctx is passed through unbounded.
func (p *ResultPersister) AccountUsage(ctx context.Context, userID string) {
	if p.accountant == nil {
		p.logger.Warn("usage not counted, no accountant configured", "user", userID)
		return
	}

	count, err := p.accountant.Account(ctx, userID, p.now())
	if err != nil {
		p.logger.Error("usage accounting failed", "user", userID, "error", err)
		return
	}
	p.logger.Debug("usage counted", "user", userID, "count", count)
}
