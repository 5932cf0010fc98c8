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

// TierLookup reports a user's subscription plan.
type TierLookup interface {
	// Tier returns [shared.ErrUserNotFound] for unknown users.
	Tier(ctx context.Context, userID string) (models.Tier, error)
}

// UsageStore reads and writes usage windows.
type UsageStore interface {
	// Window returns the stored window, or an empty one ending at the next period boundary.
	Window(ctx context.Context, userID string, now time.Time) (models.UsageWindow, error)
	SaveWindow(ctx context.Context, w models.UsageWindow) error
}

// UsageIncrementer is a store that can bump a usage window in one statement.
type UsageIncrementer interface {
	// IncrementUsage rolls an expired window and adds one, returning the new count.
	IncrementUsage(ctx context.Context, userID string, now time.Time) (int, error)
}

// QuotaGate decides whether a user may generate another playlist.
type QuotaGate struct {
	tiers  TierLookup
	usage  UsageStore
	limit  int
	now    func() time.Time
	logger *log.Logger
}

// NewQuotaGate creates a [QuotaGate] allowing free users limit generations per period.
func NewQuotaGate(tiers TierLookup, usage UsageStore, limit int, logger *log.Logger) *QuotaGate {
	return &QuotaGate{
		tiers:  tiers,
		usage:  usage,
		limit:  limit,
		now:    time.Now,
		logger: shared.WithLogger(logger, "component", "quota"),
	}
}

// CheckAndReserve reports whether userID may run the pipeline now.
//
// Unknown users return [shared.ErrUserNotFound]. Any other lookup failure denies the request.
// The gate never increments; usage is counted after a playlist is created.
func (g *QuotaGate) CheckAndReserve(ctx context.Context, userID string) (bool, models.Tier, error) {
	tier, err := g.tiers.Tier(ctx, userID)
	if errors.Is(err, shared.ErrUserNotFound) {
		return false, "", err
	}
	if err != nil {
		g.logger.Error("tier lookup failed", "user", userID, "error", err)
		return false, "", fmt.Errorf("%w: %v", shared.ErrTierLookupFailed, err)
	}

	if tier == models.TierPremium {
		g.logger.Debug("premium user allowed", "user", userID)
		return true, tier, nil
	}

	now := g.now()
	stored, err := g.usage.Window(ctx, userID, now)
	if err != nil {
		g.logger.Error("usage lookup failed", "user", userID, "error", err)
		return false, tier, fmt.Errorf("%w: usage window unavailable: %v", shared.ErrTierLookupFailed, err)
	}

	window, rolled := stored.Current(now)
	if rolled {
		g.logger.Debug("usage window reset", "user", userID, "reset_at", window.ResetAt)
	}

	allowed := window.Count < g.limit
	g.logger.Debug("quota checked", "user", userID, "count", window.Count, "limit", g.limit, "allowed", allowed)
	return allowed, tier, nil
}

// Remaining returns the user's window as it applies now together with the plan limit.
// Premium users report a limit of -1.
func (g *QuotaGate) Remaining(ctx context.Context, userID string) (models.UsageWindow, models.Tier, int, error) {
	tier, err := g.tiers.Tier(ctx, userID)
	if err != nil {
		return models.UsageWindow{}, "", 0, err
	}

	now := g.now()
	stored, err := g.usage.Window(ctx, userID, now)
	if err != nil {
		return models.UsageWindow{}, tier, 0, err
	}
	window, _ := stored.Current(now)

	if tier == models.TierPremium {
		return window, tier, -1, nil
	}
	return window, tier, g.limit, nil
}
