package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/services"
	"github.com/desertthunder/mixtape/internal/shared"
)

// AssemblerOpts configures playlist hosting calls.
type AssemblerOpts struct {
	Timeout       time.Duration // Per-call timeout (default: 15s)
	MaxCoverBytes int           // Largest JPEG the host accepts (default: 256 KB)
}

// AssembleRequest describes the playlist to materialize on the host.
type AssembleRequest struct {
	OwnerID     string // Host user ID that will own the playlist
	Token       string
	Name        string
	Description string
	Public      bool
	Tracks      []models.ResolvedTrack
	Cover       string // Optional base64 or data URI image
}

// PlaylistAssembler creates the playlist, fills it and applies the cover.
type PlaylistAssembler struct {
	host   services.PlaylistHost
	opts   AssemblerOpts
	steps  []step[assembly]
	logger *log.Logger
}

type assembly struct {
	req           AssembleRequest
	playlist      *models.ExternalPlaylist
	coverUploaded bool
	progress      chan<- ProgressUpdate
}

// NewPlaylistAssembler creates a [PlaylistAssembler], filling unset options with defaults.
func NewPlaylistAssembler(host services.PlaylistHost, opts AssemblerOpts, logger *log.Logger) *PlaylistAssembler {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxCoverBytes <= 0 {
		opts.MaxCoverBytes = 256 << 10
	}

	a := &PlaylistAssembler{
		host:   host,
		opts:   opts,
		logger: shared.WithLogger(logger, "component", "assembler"),
	}
	a.steps = []step[assembly]{
		{name: "create_playlist", phase: CreatePlaylist, fatal: true, run: a.createPlaylist},
		{name: "add_tracks", phase: AddTracks, fatal: true, run: a.addTracks},
		{name: "upload_cover", phase: UploadCover, when: hasCover, run: a.uploadCover},
		{name: "refetch_playlist", phase: RefetchPlaylist, when: coverUploaded, run: a.refetchPlaylist},
	}
	return a
}

// Assemble runs the hosting steps for req.
//
// The returned playlist is non-nil whenever the create step succeeded, including when
// a later fatal step fails. Cover and refetch failures are returned as warnings.
func (a *PlaylistAssembler) Assemble(ctx context.Context, req AssembleRequest, progress chan<- ProgressUpdate) (*models.ExternalPlaylist, []string, error) {
	state := &assembly{req: req, progress: progress}
	warnings, err := runSteps(ctx, state, a.steps, a.logger, progress)
	return state.playlist, warnings, err
}

func hasCover(s *assembly) bool      { return s.req.Cover != "" }
func coverUploaded(s *assembly) bool { return s.coverUploaded }

func (a *PlaylistAssembler) createPlaylist(ctx context.Context, s *assembly) error {
	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	pl, err := a.host.CreatePlaylist(ctx, s.req.Token, s.req.OwnerID, s.req.Name, s.req.Description, s.req.Public)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrPlaylistCreateFailed, err)
	}

	s.playlist = pl
	a.logger.Info("playlist created", "id", pl.ExternalID, "name", pl.Name)
	sendProgress(s.progress, playlistCreatedUpdate(pl))
	return nil
}

func (a *PlaylistAssembler) addTracks(ctx context.Context, s *assembly) error {
	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	uris := models.URIs(s.req.Tracks)
	if err := a.host.AddTracks(ctx, s.req.Token, s.playlist.ExternalID, uris); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAddTracksFailed, err)
	}

	s.playlist.TrackURIs = uris
	a.logger.Debug("tracks added", "id", s.playlist.ExternalID, "count", len(uris))
	return nil
}

func (a *PlaylistAssembler) uploadCover(ctx context.Context, s *assembly) error {
	err := a.sendCover(ctx, s)
	if err != nil {
		sendProgress(s.progress, coverFailedUpdate(err))
	}
	return err
}

func (a *PlaylistAssembler) sendCover(ctx context.Context, s *assembly) error {
	jpeg, err := services.PrepareCover(s.req.Cover, a.opts.MaxCoverBytes)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrCoverUploadFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	if err := a.host.UploadCover(ctx, s.req.Token, s.playlist.ExternalID, jpeg); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrCoverUploadFailed, err)
	}
	s.coverUploaded = true
	return nil
}

func (a *PlaylistAssembler) refetchPlaylist(ctx context.Context, s *assembly) error {
	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	fresh, err := a.host.GetPlaylist(ctx, s.req.Token, s.playlist.ExternalID)
	if err != nil {
		return err
	}
	s.playlist.ImageURL = fresh.ImageURL
	if fresh.URL != "" {
		s.playlist.URL = fresh.URL
	}
	return nil
}
