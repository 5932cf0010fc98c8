package tasks

import (
	"fmt"

	"github.com/desertthunder/mixtape/internal/models"
)

// ProgressUpdate represents a progress event during a pipeline run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Pipeline stage
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Pipeline stage enumeration
type Phase int

const (
	CheckQuota Phase = iota
	GenerateDraft
	ParseDraft
	ResolveTracks
	CreatePlaylist
	AddTracks
	UploadCover
	RefetchPlaylist
	PersistRecord
	AccountUsage
	Done
)

func (p Phase) String() string {
	switch p {
	case CheckQuota:
		return "check_quota"
	case GenerateDraft:
		return "generate_draft"
	case ParseDraft:
		return "parse_draft"
	case ResolveTracks:
		return "resolve_tracks"
	case CreatePlaylist:
		return "create_playlist"
	case AddTracks:
		return "add_tracks"
	case UploadCover:
		return "upload_cover"
	case RefetchPlaylist:
		return "refetch_playlist"
	case PersistRecord:
		return "persist_record"
	case AccountUsage:
		return "account_usage"
	case Done:
		return "done"
	default:
		return ""
	}
}

// sendProgress sends update through progress without blocking.
// A nil channel disables reporting; a full channel drops the update.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func stageUpdate(phase Phase, step, total int, message string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    step,
		Total:   total,
		Message: message,
	}
}

func draftParsedUpdate(draft models.PlaylistDraft) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ParseDraft,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Parsed %d candidate tracks", len(draft.Candidates)),
		Data:    draft,
	}
}

func searchTrackUpdate(step, total int, c models.CandidateTrack, found bool) ProgressUpdate {
	mark := "✓"
	if !found {
		mark = "✗"
	}
	return ProgressUpdate{
		Phase:   ResolveTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s - %s", step, total, mark, c.Artist, c.Title),
	}
}

func playlistCreatedUpdate(pl *models.ExternalPlaylist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s)", pl.Name, pl.ExternalID),
		Data:    pl,
	}
}

func coverFailedUpdate(err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   UploadCover,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Cover upload failed, keeping default image: %v", err),
	}
}

func doneUpdate(r Result) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Done,
		Step:    1,
		Total:   1,
		Message: Summary(r),
		Data:    r,
	}
}
