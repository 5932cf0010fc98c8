package tasks

import (
	"errors"
	"fmt"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
)

// Result is the outcome of a pipeline run: [Success], [SuccessWithWarning] or [Failure].
type Result interface {
	result()
}

// Success means the playlist exists and its record was saved.
type Success struct {
	Record   *models.PlaylistRecord   `json:"record"`
	Playlist *models.ExternalPlaylist `json:"playlist"`
}

// SuccessWithWarning means the playlist exists but the local bookkeeping did not complete.
type SuccessWithWarning struct {
	Playlist *models.ExternalPlaylist `json:"playlist"`
	Warning  string                   `json:"warning"`
}

// Failure means the run stopped at a fatal stage.
//
// Playlist is set only when the playlist was created before the failing step.
type Failure struct {
	Kind     FailureKind              `json:"kind"`
	Message  string                   `json:"message"`
	Playlist *models.ExternalPlaylist `json:"playlist,omitempty"`
}

func (Success) result()            {}
func (SuccessWithWarning) result() {}
func (Failure) result()            {}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// FailureKind classifies fatal pipeline errors.
type FailureKind int

const (
	Internal FailureKind = iota
	QuotaExceeded
	UnknownUser
	GenerationUnavailable
	NoTracksFound
	PlaylistCreateFailed
	AddTracksFailed
	AuthExpired
	InvalidCriteria
)

func (k FailureKind) String() string {
	switch k {
	case QuotaExceeded:
		return "quota_exceeded"
	case UnknownUser:
		return "unknown_user"
	case GenerationUnavailable:
		return "generation_unavailable"
	case NoTracksFound:
		return "no_tracks_found"
	case PlaylistCreateFailed:
		return "playlist_create_failed"
	case AddTracksFailed:
		return "add_tracks_failed"
	case AuthExpired:
		return "auth_expired"
	case InvalidCriteria:
		return "invalid_criteria"
	default:
		return "internal"
	}
}

// MarshalText renders the kind by name in JSON output.
func (k FailureKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// KindOf maps a pipeline error to its [FailureKind].
//
// Auth failures win over the step that observed them.
func KindOf(err error) FailureKind {
	switch {
	case err == nil:
		return Internal
	case errors.Is(err, shared.ErrAuthExpired):
		return AuthExpired
	case errors.Is(err, shared.ErrInvalidInput):
		return InvalidCriteria
	case errors.Is(err, shared.ErrUserNotFound):
		return UnknownUser
	case errors.Is(err, shared.ErrQuotaExceeded), errors.Is(err, shared.ErrTierLookupFailed):
		return QuotaExceeded
	case errors.Is(err, shared.ErrGenerationUnavailable):
		return GenerationUnavailable
	case errors.Is(err, shared.ErrNoTracksFound):
		return NoTracksFound
	case errors.Is(err, shared.ErrAddTracksFailed):
		return AddTracksFailed
	case errors.Is(err, shared.ErrPlaylistCreateFailed):
		return PlaylistCreateFailed
	default:
		return Internal
	}
}

// Summary renders r as a single line for logs and terminals.
func Summary(r Result) string {
	switch v := r.(type) {
	case Success:
		if v.Record == nil {
			return "playlist created"
		}
		return fmt.Sprintf("Created %q with %d tracks", v.Record.Name(), v.Record.TrackCount())
	case SuccessWithWarning:
		return fmt.Sprintf("Created %q with warning: %s", v.Playlist.Name, v.Warning)
	case Failure:
		return "Failed: " + v.Error()
	default:
		return ""
	}
}
