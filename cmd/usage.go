package main

import (
	"context"

	"github.com/desertthunder/mixtape/internal/tasks"
	"github.com/urfave/cli/v3"
)

// UsageShow prints the user's generation count for the current period.
func (r *Runner) UsageShow(ctx context.Context, cmd *cli.Command) error {
	userID, err := r.userID(cmd)
	if err != nil {
		return err
	}

	backend, err := r.storage(ctx)
	if err != nil {
		return err
	}

	gate := tasks.NewQuotaGate(backend.Users, backend.Usage, r.config.Quota.FreeMonthlyLimit, r.logger)
	window, tier, limit, err := gate.Remaining(ctx, userID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		remaining := -1
		if limit >= 0 {
			remaining = window.Remaining(limit)
		}
		return r.writeJSON(map[string]any{
			"tier":      tier,
			"count":     window.Count,
			"limit":     limit,
			"remaining": remaining,
			"resetAt":   window.ResetAt,
		}, true)
	}

	r.writePlainHeader("Usage")
	r.writePlain("Tier:      %s\n", tier)
	if limit < 0 {
		r.writePlain("Generated: %d (unlimited)\n", window.Count)
	} else {
		r.writePlain("Generated: %d of %d\n", window.Count, limit)
		r.writePlain("Remaining: %d\n", window.Remaining(limit))
	}
	r.writePlain("Resets:    %s\n", window.ResetAt.UTC().Format("2006-01-02"))
	return nil
}
