package tasks

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/services"
	"github.com/desertthunder/mixtape/internal/shared"
)

const maxDescriptionRunes = 300

// OwnerLookup maps a local user to their hosting service user ID.
type OwnerLookup interface {
	ExternalID(ctx context.Context, userID string) (string, error)
}

// Components are the stages a [PlaylistEngine] drives.
type Components struct {
	Gate      *QuotaGate
	Generator *DraftGenerator
	Parser    *DraftParser
	Resolver  *TrackResolver
	Assembler *PlaylistAssembler
	Persister *ResultPersister
	Host      services.PlaylistHost // Resolves the owner from the token when Owners has no ID
	Owners    OwnerLookup           // Optional
}

// PlaylistEngine runs the playlist creation pipeline.
type PlaylistEngine struct {
	c      Components
	steps  []step[pipelineRun]
	logger *log.Logger
}

type pipelineRun struct {
	userID         string
	token          string
	criteria       models.PlaylistCriteria
	progress       chan<- ProgressUpdate
	tier           models.Tier
	raw            string
	draft          models.PlaylistDraft
	tracks         []models.ResolvedTrack
	ownerID        string
	playlist       *models.ExternalPlaylist
	record         *models.PlaylistRecord
	persistWarning string
	warnings       []string
}

// NewPlaylistEngine creates a [PlaylistEngine] over c.
func NewPlaylistEngine(c Components, logger *log.Logger) *PlaylistEngine {
	e := &PlaylistEngine{c: c, logger: shared.WithLogger(logger, "component", "pipeline")}
	e.steps = []step[pipelineRun]{
		{name: "check_quota", phase: CheckQuota, fatal: true, run: e.checkQuota},
		{name: "generate_draft", phase: GenerateDraft, fatal: true, run: e.generateDraft},
		{name: "parse_draft", phase: ParseDraft, fatal: true, run: e.parseDraft},
		{name: "resolve_tracks", phase: ResolveTracks, fatal: true, run: e.resolveTracks},
		{name: "resolve_owner", phase: CreatePlaylist, fatal: true, run: e.resolveOwner},
		{name: "assemble_playlist", phase: CreatePlaylist, fatal: true, run: e.assemblePlaylist},
		{name: "persist_record", phase: PersistRecord, run: e.persistRecord},
		{name: "account_usage", phase: AccountUsage, run: e.accountUsage},
	}
	return e
}

// CreatePlaylist generates a playlist for userID from criteria and publishes it with token.
//
// The run is detached from ctx cancellation once it starts, so a caller that goes away
// never leaves a half-built playlist behind. Each outbound call carries its own timeout.
// progress may be nil; updates are dropped when it is full.
func (e *PlaylistEngine) CreatePlaylist(
	ctx context.Context,
	userID string,
	criteria models.PlaylistCriteria,
	token string,
	progress chan<- ProgressUpdate,
) Result {
	result := e.run(context.WithoutCancel(ctx), userID, criteria, token, progress)
	e.logger.Info("pipeline finished", "user", userID, "result", Summary(result))
	sendProgress(progress, doneUpdate(result))
	return result
}

func (e *PlaylistEngine) run(ctx context.Context, userID string, criteria models.PlaylistCriteria, token string, progress chan<- ProgressUpdate) Result {
	if strings.TrimSpace(userID) == "" {
		return Failure{Kind: UnknownUser, Message: fmt.Errorf("%w: user id is required", shared.ErrMissingArgument).Error()}
	}
	if err := criteria.Validate(); err != nil {
		return Failure{Kind: InvalidCriteria, Message: err.Error()}
	}
	if strings.TrimSpace(token) == "" {
		return Failure{Kind: AuthExpired, Message: fmt.Errorf("%w: no access token supplied", shared.ErrAuthExpired).Error()}
	}

	state := &pipelineRun{userID: userID, token: token, criteria: criteria, progress: progress}
	logger := shared.WithLogger(e.logger, "user", userID)

	warnings, err := runSteps(ctx, state, e.steps, logger, progress)
	if err != nil {
		return Failure{Kind: KindOf(err), Message: err.Error(), Playlist: state.playlist}
	}

	warnings = slices.Concat(state.warnings, warnings)
	if state.record == nil {
		all := append([]string{state.persistWarning}, warnings...)
		return SuccessWithWarning{Playlist: state.playlist, Warning: strings.Join(all, "; ")}
	}
	for _, w := range warnings {
		logger.Warn("run completed with warning", "warning", w)
	}
	return Success{Record: state.record, Playlist: state.playlist}
}

func (e *PlaylistEngine) checkQuota(ctx context.Context, s *pipelineRun) error {
	allowed, tier, err := e.c.Gate.CheckAndReserve(ctx, s.userID)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: user %s on %s plan", shared.ErrQuotaExceeded, s.userID, tier)
	}
	s.tier = tier
	return nil
}

func (e *PlaylistEngine) generateDraft(ctx context.Context, s *pipelineRun) error {
	raw, err := e.c.Generator.Generate(ctx, s.criteria)
	if err != nil {
		return err
	}
	s.raw = raw
	return nil
}

func (e *PlaylistEngine) parseDraft(_ context.Context, s *pipelineRun) error {
	s.draft = e.c.Parser.Parse(s.raw)
	sendProgress(s.progress, draftParsedUpdate(s.draft))
	return nil
}

func (e *PlaylistEngine) resolveTracks(ctx context.Context, s *pipelineRun) error {
	tracks, err := e.c.Resolver.Resolve(ctx, s.draft.Candidates, s.token, s.progress)
	if err != nil {
		return err
	}
	s.tracks = tracks
	return nil
}

// resolveOwner prefers the stored host user ID and asks the host otherwise.
func (e *PlaylistEngine) resolveOwner(ctx context.Context, s *pipelineRun) error {
	if e.c.Owners != nil {
		id, err := e.c.Owners.ExternalID(ctx, s.userID)
		if err == nil && id != "" {
			s.ownerID = id
			return nil
		}
		if err != nil {
			e.logger.Warn("stored owner lookup failed, asking host", "user", s.userID, "error", err)
		}
	}

	id, err := e.c.Host.CurrentUserID(ctx, s.token)
	if err != nil {
		return fmt.Errorf("%w: owner lookup: %w", shared.ErrPlaylistCreateFailed, err)
	}
	s.ownerID = id
	return nil
}

func (e *PlaylistEngine) assemblePlaylist(ctx context.Context, s *pipelineRun) error {
	req := AssembleRequest{
		OwnerID:     s.ownerID,
		Token:       s.token,
		Name:        s.criteria.Name,
		Description: playlistDescription(s.criteria, s.draft),
		Public:      s.criteria.IsPublic,
		Tracks:      s.tracks,
		Cover:       s.criteria.CoverImage,
	}

	pl, warnings, err := e.c.Assembler.Assemble(ctx, req, s.progress)
	s.playlist = pl
	s.warnings = append(s.warnings, warnings...)
	return err
}

func (e *PlaylistEngine) persistRecord(ctx context.Context, s *pipelineRun) error {
	record := models.NewPlaylistRecord(s.userID, s.playlist, s.criteria)
	s.record, s.persistWarning = e.c.Persister.Persist(ctx, record)
	return nil
}

func (e *PlaylistEngine) accountUsage(ctx context.Context, s *pipelineRun) error {
	e.c.Persister.AccountUsage(ctx, s.userID)
	return nil
}

// playlistDescription uses the caller's description when given, the draft's otherwise.
func playlistDescription(c models.PlaylistCriteria, d models.PlaylistDraft) string {
	desc := strings.TrimSpace(c.Description)
	if desc == "" {
		desc = d.Description
	}
	if r := []rune(desc); len(r) > maxDescriptionRunes {
		desc = string(r[:maxDescriptionRunes])
	}
	return desc
}
