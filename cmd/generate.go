package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/desertthunder/mixtape/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Generate runs the playlist pipeline for the criteria given on the command line.
func (r *Runner) Generate(ctx context.Context, cmd *cli.Command) error {
	userID, err := r.userID(cmd)
	if err != nil {
		return err
	}

	criteria, err := criteriaFromCommand(cmd)
	if err != nil {
		return err
	}
	if err := criteria.Validate(); err != nil {
		return err
	}

	token, err := r.accessToken(ctx, cmd)
	if err != nil {
		return err
	}

	if cmd.Bool("tui") {
		return r.TUI(ctx, userID, token, criteria)
	}

	engine, _, err := r.pipeline(ctx)
	if err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 64)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for update := range progress {
			r.logger.Debug(update.Message, "phase", update.Phase, "step", update.Step, "total", update.Total)
		}
	}()

	r.logger.Info("generating playlist", "user", userID, "name", criteria.Name, "tracks", criteria.TrackCount)
	result := engine.CreatePlaylist(ctx, userID, criteria, token, progress)
	close(progress)
	<-drained

	if err := r.printResult(result, cmd.Bool("json")); err != nil {
		return err
	}
	if failure, ok := result.(tasks.Failure); ok {
		return failure
	}
	return nil
}

func (r *Runner) printResult(result tasks.Result, asJSON bool) error {
	if asJSON {
		return r.writeJSON(result, true)
	}

	switch v := result.(type) {
	case tasks.Success:
		r.writePlain("✓ %s\n", tasks.Summary(v))
		if v.Playlist != nil && v.Playlist.URL != "" {
			r.writePlain("  %s\n", v.Playlist.URL)
		}
	case tasks.SuccessWithWarning:
		r.writePlain("⚠ %s\n", tasks.Summary(v))
		if v.Playlist != nil && v.Playlist.URL != "" {
			r.writePlain("  %s\n", v.Playlist.URL)
		}
	case tasks.Failure:
		r.writePlain("✗ %s\n", tasks.Summary(v))
		if v.Playlist != nil && v.Playlist.URL != "" {
			r.writePlain("  Partial playlist: %s\n", v.Playlist.URL)
		}
	}
	return nil
}

// criteriaFromCommand loads --from, then applies every flag the user set.
func criteriaFromCommand(cmd *cli.Command) (models.PlaylistCriteria, error) {
	criteria := models.PlaylistCriteria{
		TrackCount: cmd.Int("tracks"),
		Uniqueness: cmd.Int("uniqueness"),
	}

	if path := cmd.String("from"); path != "" {
		if _, err := toml.DecodeFile(path, &criteria); err != nil {
			return criteria, fmt.Errorf("%w: failed to read criteria file %s: %v", shared.ErrInvalidArgument, path, err)
		}
		if criteria.TrackCount == 0 {
			criteria.TrackCount = cmd.Int("tracks")
		}
		if criteria.Uniqueness == 0 {
			criteria.Uniqueness = cmd.Int("uniqueness")
		}
	}

	for flag, dst := range map[string]*[]string{
		"genre":     &criteria.Genres,
		"sub-genre": &criteria.SubGenres,
		"mood":      &criteria.Moods,
		"era":       &criteria.Eras,
		"region":    &criteria.Regions,
		"language":  &criteria.Languages,
	} {
		if cmd.IsSet(flag) {
			*dst = trimAll(cmd.StringSlice(flag))
		}
	}

	if cmd.IsSet("name") {
		criteria.Name = strings.TrimSpace(cmd.String("name"))
	}
	if cmd.IsSet("description") {
		criteria.Description = cmd.String("description")
	}
	if cmd.IsSet("prompt") {
		criteria.Prompt = cmd.String("prompt")
	}
	if cmd.IsSet("tracks") {
		criteria.TrackCount = cmd.Int("tracks")
	}
	if cmd.IsSet("uniqueness") {
		criteria.Uniqueness = cmd.Int("uniqueness")
	}
	if cmd.IsSet("public") {
		criteria.IsPublic = cmd.Bool("public")
	}

	if path := cmd.String("cover"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return criteria, fmt.Errorf("%w: failed to read cover %s: %v", shared.ErrInvalidArgument, path, err)
		}
		criteria.CoverImage = base64.StdEncoding.EncodeToString(data)
	}

	return criteria, nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
