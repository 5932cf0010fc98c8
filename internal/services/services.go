package services

import (
	"context"
	"time"

	"github.com/desertthunder/mixtape/internal/models"
	"golang.org/x/oauth2"
)

// TextGenerator produces free text from a system instruction and a user prompt.
type TextGenerator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)

	// Name returns the provider name (e.g., "Claude", "Gemini")
	Name() string
}

// Catalog finds tracks in the hosting service's catalog.
type Catalog interface {
	// SearchTrack returns the URI of the top hit for query, or [shared.ErrTrackNotFound].
	SearchTrack(ctx context.Context, token, query string) (string, error)
}

// PlaylistHost creates and edits playlists on behalf of the owner of token.
type PlaylistHost interface {
	// CurrentUserID returns the hosting service user ID that owns token.
	CurrentUserID(ctx context.Context, token string) (string, error)

	CreatePlaylist(ctx context.Context, token, ownerID, name, description string, public bool) (*models.ExternalPlaylist, error)

	// AddTracks appends uris in order, splitting into as many requests as the service requires.
	AddTracks(ctx context.Context, token, playlistID string, uris []string) error

	// UploadCover replaces the playlist image with a JPEG.
	UploadCover(ctx context.Context, token, playlistID string, jpeg []byte) error

	GetPlaylist(ctx context.Context, token, playlistID string) (*models.ExternalPlaylist, error)
}

// OAuthService extends a provider with the pieces needed for an authorization code flow.
type OAuthService interface {
	// GetAuthURL returns the URL the user visits to grant access.
	GetAuthURL(state string) string

	// GetOAuthConfig returns the OAuth2 configuration used for token exchange.
	GetOAuthConfig() *oauth2.Config
}

// SearchCache maps normalized search queries to catalog URIs.
type SearchCache interface {
	// Get returns the cached URI or [shared.ErrCacheMiss].
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, uri string, ttl time.Duration) error
}
