package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
)

// step is one stage of an ordered run over shared state S.
//
// A fatal step stops the run when it fails. A non-fatal failure becomes a warning.
// Steps whose when func returns false are skipped.
type step[S any] struct {
	name  string
	phase Phase
	fatal bool
	when  func(*S) bool
	run   func(context.Context, *S) error
}

// runSteps executes steps in order against state, returning the warnings collected
// from non-fatal failures and the error of the first fatal failure.
func runSteps[S any](ctx context.Context, state *S, steps []step[S], logger *log.Logger, progress chan<- ProgressUpdate) ([]string, error) {
	var warnings []string
	for i, st := range steps {
		if st.when != nil && !st.when(state) {
			logger.Debug("step skipped", "step", st.name)
			continue
		}

		logger.Debug("step started", "step", st.name, "phase", st.phase)
		sendProgress(progress, stageUpdate(st.phase, i+1, len(steps), stepMessage(st.phase)))

		err := st.run(ctx, state)
		if err == nil {
			continue
		}
		if st.fatal {
			logger.Error("step failed", "step", st.name, "error", err)
			return warnings, err
		}
		logger.Warn("step failed, continuing", "step", st.name, "error", err)
		warnings = append(warnings, fmt.Sprintf("%s: %v", st.name, err))
	}
	return warnings, nil
}

func stepMessage(p Phase) string {
	switch p {
	case CheckQuota:
		return "Checking quota..."
	case GenerateDraft:
		return "Generating playlist ideas..."
	case ParseDraft:
		return "Reading the draft..."
	case ResolveTracks:
		return "Finding tracks in the catalog..."
	case CreatePlaylist:
		return "Creating playlist..."
	case AddTracks:
		return "Adding tracks..."
	case UploadCover:
		return "Uploading cover image..."
	case RefetchPlaylist:
		return "Refreshing playlist details..."
	case PersistRecord:
		return "Saving playlist record..."
	case AccountUsage:
		return "Updating usage..."
	default:
		return ""
	}
}
