package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/mixtape/internal/formatter"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/urfave/cli/v3"
)

// PlaylistsList prints the user's generated playlists.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	records, err := r.records(ctx, cmd)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		data, err := formatter.ExportToJSON(records)
		if err != nil {
			return err
		}
		return r.writePlain("%s\n", data)
	}

	if len(records) == 0 {
		return r.writePlain("No playlists generated yet.\n")
	}
	return formatter.WriteExport(r.output, records, formatter.Text)
}

// PlaylistsExport writes the user's generated playlists in the requested format.
func (r *Runner) PlaylistsExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	records, err := r.records(ctx, cmd)
	if err != nil {
		return err
	}

	if format == formatter.Markdown && cmd.Bool("covers") {
		result, err := formatter.WriteMarkdownExport(ctx, r.httpClient, records, cmd.String("output"))
		if err != nil {
			return err
		}
		for _, skipped := range result.Skipped {
			r.logger.Warn("cover not downloaded", "reason", skipped)
		}
		return r.writePlain("✓ Exported %d playlists to %s (%d covers)\n", len(records), result.Directory, result.Covers)
	}

	path, err := formatter.WriteExportFile(records, format, cmd.String("output"))
	if err != nil {
		return err
	}
	return r.writePlain("✓ Exported %d playlists to %s\n", len(records), path)
}

func (r *Runner) records(ctx context.Context, cmd *cli.Command) ([]*models.PlaylistRecord, error) {
	userID, err := r.userID(cmd)
	if err != nil {
		return nil, err
	}

	backend, err := r.storage(ctx)
	if err != nil {
		return nil, err
	}

	records, err := backend.Records.ListByOwner(ctx, userID, cmd.Int("limit"))
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	r.logger.Debug("loaded playlist records", "user", userID, "count", len(records))
	return records, nil
}
