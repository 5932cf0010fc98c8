package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/desertthunder/mixtape/internal/tasks"
)

// SpotifyTokenHeader carries the caller's hosting-service access token.
const SpotifyTokenHeader = "X-Spotify-Token"

const (
	maxBodyBytes     = 6 << 20
	defaultListLimit = 20
	maxListLimit     = 100
)

// PlaylistCreator runs the generation pipeline.
type PlaylistCreator interface {
	CreatePlaylist(ctx context.Context, userID string, criteria models.PlaylistCriteria, token string, progress chan<- tasks.ProgressUpdate) tasks.Result
}

// RecordLister lists a user's saved playlists, newest first.
type RecordLister interface {
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]*models.PlaylistRecord, error)
}

// UsageReporter reports a user's usage for the current period.
type UsageReporter interface {
	Remaining(ctx context.Context, userID string) (models.UsageWindow, models.Tier, int, error)
}

// PlaylistAPI serves the /v1 JSON endpoints.
type PlaylistAPI struct {
	creator PlaylistCreator
	records RecordLister
	usage   UsageReporter
	logger  *log.Logger
}

// NewPlaylistAPI creates a [PlaylistAPI].
func NewPlaylistAPI(creator PlaylistCreator, records RecordLister, usage UsageReporter, logger *log.Logger) *PlaylistAPI {
	return &PlaylistAPI{
		creator: creator,
		records: records,
		usage:   usage,
		logger:  shared.WithLogger(logger, "component", "api"),
	}
}

// Register adds the API routes to r.
func (a *PlaylistAPI) Register(r Router) {
	r.Handle(http.MethodPost, "/v1/playlists", http.HandlerFunc(a.createPlaylist))
	r.Handle(http.MethodGet, "/v1/playlists", http.HandlerFunc(a.listPlaylists))
	r.Handle(http.MethodGet, "/v1/usage", http.HandlerFunc(a.getUsage))
}

type usageResponse struct {
	Tier      models.Tier `json:"tier"`
	Count     int         `json:"count"`
	Limit     int         `json:"limit"`
	Remaining int         `json:"remaining"`
	ResetAt   string      `json:"resetAt"`
}

type resultResponse struct {
	Status string       `json:"status"`
	Result tasks.Result `json:"result"`
}

func (a *PlaylistAPI) createPlaylist(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	token := r.Header.Get(SpotifyTokenHeader)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing "+SpotifyTokenHeader+" header")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var criteria models.PlaylistCriteria
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&criteria); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	result := a.creator.CreatePlaylist(r.Context(), userID, criteria, token, nil)
	status, label := statusFor(result)
	if status >= http.StatusInternalServerError {
		a.logger.Warn("playlist request failed", "user", userID, "result", tasks.Summary(result))
	}
	writeJSON(w, status, resultResponse{Status: label, Result: result})
}

// statusFor maps a pipeline result to an HTTP status and a short label.
func statusFor(result tasks.Result) (int, string) {
	switch r := result.(type) {
	case tasks.Success:
		return http.StatusCreated, "success"
	case tasks.SuccessWithWarning:
		return http.StatusAccepted, "success_with_warning"
	case tasks.Failure:
		switch r.Kind {
		case tasks.QuotaExceeded:
			return http.StatusTooManyRequests, r.Kind.String()
		case tasks.AuthExpired:
			return http.StatusUnauthorized, r.Kind.String()
		case tasks.InvalidCriteria:
			return http.StatusBadRequest, r.Kind.String()
		case tasks.UnknownUser:
			return http.StatusNotFound, r.Kind.String()
		case tasks.Internal:
			return http.StatusInternalServerError, r.Kind.String()
		default:
			return http.StatusBadGateway, r.Kind.String()
		}
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (a *PlaylistAPI) listPlaylists(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	records, err := a.records.ListByOwner(r.Context(), userID, limit)
	if err != nil {
		a.logger.Error("list playlists", "user", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not list playlists")
		return
	}
	if records == nil {
		records = []*models.PlaylistRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"playlists": records})
}

func (a *PlaylistAPI) getUsage(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	window, tier, limit, err := a.usage.Remaining(r.Context(), userID)
	switch {
	case errors.Is(err, shared.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found")
		return
	case err != nil:
		a.logger.Error("usage lookup", "user", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not read usage")
		return
	}

	resp := usageResponse{
		Tier:      tier,
		Count:     window.Count,
		Limit:     limit,
		Remaining: -1,
		ResetAt:   window.ResetAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if limit >= 0 {
		resp.Remaining = window.Remaining(limit)
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
