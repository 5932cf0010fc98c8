package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/desertthunder/mixtape/internal/tasks"
	"github.com/desertthunder/mixtape/internal/ui"
)

// TUI runs the pipeline inside the interactive terminal UI.
func (r *Runner) TUI(ctx context.Context, userID, token string, criteria models.PlaylistCriteria) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/mixtape-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	engine, backend, err := r.pipeline(ctx)
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, engine, backend.Records, ui.Request{
		UserID:   userID,
		Token:    token,
		Criteria: criteria,
	})
	if _, err := tea.NewProgram(model).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	if failure, ok := model.Result().(tasks.Failure); ok {
		return failure
	}
	return nil
}
