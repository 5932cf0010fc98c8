// Spotify implementation of [Catalog], [PlaylistHost] and [OAuthService]
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// maxTracksPerRequest is the most URIs Spotify accepts in one add-items call.
const maxTracksPerRequest = 100

const trackURIPrefix = "spotify:track:"

// SpotifyService talks to the Spotify Web API with per-call access tokens.
type SpotifyService struct {
	config     *oauth2.Config
	httpClient *http.Client
	baseURL    string
	logger     *log.Logger
}

// SpotifyOption configures a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithBaseURL points the API client at another host. The URL must end with a slash.
func WithBaseURL(u string) SpotifyOption {
	return func(s *SpotifyService) { s.baseURL = u }
}

// WithHTTPClient replaces the retrying base client.
func WithHTTPClient(c *http.Client) SpotifyOption {
	return func(s *SpotifyService) { s.httpClient = c }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *log.Logger) SpotifyOption {
	return func(s *SpotifyService) { s.logger = l }
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string, opts ...SpotifyOption) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			spotifyauth.ScopeUserReadPrivate,
			spotifyauth.ScopeUserReadEmail,
			spotifyauth.ScopePlaylistModifyPublic,
			spotifyauth.ScopePlaylistModifyPrivate,
			spotifyauth.ScopeImageUpload,
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyauth.AuthURL,
			TokenURL: spotifyauth.TokenURL,
		},
	}

	s := &SpotifyService{
		config:     config,
		httpClient: NewRetryClient(3, 15*time.Second),
		logger:     shared.NewLogger(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewRetryClient returns an [http.Client] that retries GET requests on connection errors and 5xx/429 responses.
//
// Writes are never retried so a lost response cannot create a duplicate playlist.
func NewRetryClient(retryMax int, timeout time.Duration) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	rc.Logger = nil
	rc.HTTPClient.Timeout = timeout
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if resp == nil || resp.Request == nil || resp.Request.Method != http.MethodGet {
			return false, nil
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	return rc.StandardClient()
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig returns the OAuth2 configuration.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// client builds an API client that authenticates every request with token.
func (s *SpotifyService) client(ctx context.Context, token string) *spotify.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))

	opts := []spotify.ClientOption{spotify.WithRetry(true)}
	if s.baseURL != "" {
		opts = append(opts, spotify.WithBaseURL(s.baseURL))
	}
	return spotify.New(hc, opts...)
}

// CurrentUserID implements [PlaylistHost].
func (s *SpotifyService) CurrentUserID(ctx context.Context, token string) (string, error) {
	user, err := s.client(ctx, token).CurrentUser(ctx)
	if err != nil {
		return "", wrapSpotifyError(err, "current user")
	}
	return user.ID, nil
}

// SearchTrack implements [Catalog].
func (s *SpotifyService) SearchTrack(ctx context.Context, token, query string) (string, error) {
	result, err := s.client(ctx, token).Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(1))
	if err != nil {
		return "", wrapSpotifyError(err, "search")
	}

	if result.Tracks == nil || len(result.Tracks.Tracks) == 0 {
		return "", fmt.Errorf("%w: %s", shared.ErrTrackNotFound, query)
	}
	return string(result.Tracks.Tracks[0].URI), nil
}

// CreatePlaylist implements [PlaylistHost].
func (s *SpotifyService) CreatePlaylist(ctx context.Context, token, ownerID, name, description string, public bool) (*models.ExternalPlaylist, error) {
	pl, err := s.client(ctx, token).CreatePlaylistForUser(ctx, ownerID, name, description, public, false)
	if err != nil {
		return nil, wrapSpotifyError(err, "create playlist")
	}
	return toExternalPlaylist(pl), nil
}

// AddTracks implements [PlaylistHost].
func (s *SpotifyService) AddTracks(ctx context.Context, token, playlistID string, uris []string) error {
	c := s.client(ctx, token)

	for start := 0; start < len(uris); start += maxTracksPerRequest {
		end := min(start+maxTracksPerRequest, len(uris))

		ids := make([]spotify.ID, 0, end-start)
		for _, uri := range uris[start:end] {
			ids = append(ids, spotify.ID(strings.TrimPrefix(uri, trackURIPrefix)))
		}

		if _, err := c.AddTracksToPlaylist(ctx, spotify.ID(playlistID), ids...); err != nil {
			return wrapSpotifyError(err, fmt.Sprintf("add tracks %d-%d", start, end))
		}
		s.logger.Debug("added tracks", "playlist", playlistID, "from", start, "to", end)
	}
	return nil
}

// UploadCover implements [PlaylistHost]. The client handles base64 encoding.
func (s *SpotifyService) UploadCover(ctx context.Context, token, playlistID string, jpeg []byte) error {
	if err := s.client(ctx, token).SetPlaylistImage(ctx, spotify.ID(playlistID), bytes.NewReader(jpeg)); err != nil {
		return wrapSpotifyError(err, "upload cover")
	}
	return nil
}

// GetPlaylist implements [PlaylistHost].
func (s *SpotifyService) GetPlaylist(ctx context.Context, token, playlistID string) (*models.ExternalPlaylist, error) {
	pl, err := s.client(ctx, token).GetPlaylist(ctx, spotify.ID(playlistID))
	if err != nil {
		return nil, wrapSpotifyError(err, "get playlist")
	}
	return toExternalPlaylist(pl), nil
}

func toExternalPlaylist(pl *spotify.FullPlaylist) *models.ExternalPlaylist {
	out := &models.ExternalPlaylist{
		ExternalID:  string(pl.ID),
		Name:        pl.Name,
		Description: pl.Description,
		URL:         pl.ExternalURLs["spotify"],
		IsPublic:    pl.IsPublic,
	}
	if len(pl.Images) > 0 {
		out.ImageURL = pl.Images[0].URL
	}
	return out
}

// wrapSpotifyError maps 401 responses to [shared.ErrAuthExpired] and 404 to [shared.ErrPlaylistNotFound].
// Everything else wraps [shared.ErrAPIRequest].
func wrapSpotifyError(err error, op string) error {
	status := 0
	var se spotify.Error
	var sp *spotify.Error
	switch {
	case errors.As(err, &se):
		status = se.Status
	case errors.As(err, &sp):
		status = sp.Status
	}

	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s: %v", shared.ErrAuthExpired, op, err)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s: %v", shared.ErrPlaylistNotFound, op, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", shared.ErrTimeout, op, err)
	}
	return fmt.Errorf("%w: %s: %v", shared.ErrAPIRequest, op, err)
}
