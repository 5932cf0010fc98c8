package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCredentials = map[string]string{
	"client_id":     "test_client_id",
	"client_secret": "test_client_secret",
}

func newTestSpotify(t *testing.T, mux *http.ServeMux) *SpotifyService {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	s, err := NewSpotifyService(testCredentials, WithBaseURL(srv.URL+"/"), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return s
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

const unauthorizedBody = `{"error":{"status":401,"message":"The access token expired"}}`

func TestSpotifyService(t *testing.T) {
	ctx := context.Background()

	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			srv, err := NewSpotifyService(testCredentials)
			require.NoError(t, err)
			assert.Equal(t, "Spotify", srv.Name())
			assert.Equal(t, "http://127.0.0.1:3000/callback", srv.GetOAuthConfig().RedirectURL)
			assert.Contains(t, srv.GetOAuthConfig().Scopes, "ugc-image-upload")
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_secret": "secret"})
			assert.ErrorIs(t, err, shared.ErrMissingCredentials)
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_id": "id"})
			assert.ErrorIs(t, err, shared.ErrMissingCredentials)
		})
	})

	t.Run("Get AuthURL", func(t *testing.T) {
		srv, err := NewSpotifyService(testCredentials)
		require.NoError(t, err)

		authURL := srv.GetAuthURL("state-123")
		assert.True(t, strings.HasPrefix(authURL, "https://accounts.spotify.com/authorize"))
		assert.Contains(t, authURL, "state=state-123")
		assert.Contains(t, authURL, "client_id=test_client_id")
	})

	t.Run("SearchTrack", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /search", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			assert.Equal(t, "track", r.URL.Query().Get("type"))
			assert.Equal(t, "1", r.URL.Query().Get("limit"))

			if strings.Contains(r.URL.Query().Get("q"), "nothing") {
				writeJSON(w, http.StatusOK, `{"tracks":{"items":[],"total":0}}`)
				return
			}
			writeJSON(w, http.StatusOK, `{"tracks":{"items":[{"id":"abc","name":"So What","uri":"spotify:track:abc"}],"total":1}}`)
		})
		s := newTestSpotify(t, mux)

		uri, err := s.SearchTrack(ctx, "tok", "track:So What artist:Miles Davis")
		require.NoError(t, err)
		assert.Equal(t, "spotify:track:abc", uri)

		_, err = s.SearchTrack(ctx, "tok", "track:nothing artist:nobody")
		assert.ErrorIs(t, err, shared.ErrTrackNotFound)
	})

	t.Run("SearchTrackUnauthorized", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /search", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, unauthorizedBody)
		})
		s := newTestSpotify(t, mux)

		_, err := s.SearchTrack(ctx, "expired", "track:x artist:y")
		assert.ErrorIs(t, err, shared.ErrAuthExpired)
	})

	t.Run("CurrentUserID", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /me", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `{"id":"owner1","display_name":"Owner"}`)
		})
		s := newTestSpotify(t, mux)

		id, err := s.CurrentUserID(ctx, "tok")
		require.NoError(t, err)
		assert.Equal(t, "owner1", id)
	})

	t.Run("CreatePlaylist", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /users/owner1/playlists", func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Late Night", body["name"])
			assert.Equal(t, false, body["public"])

			writeJSON(w, http.StatusCreated, `{"id":"pl1","name":"Late Night","description":"smoky","public":false,
				"external_urls":{"spotify":"https://open.spotify.com/playlist/pl1"},"images":[]}`)
		})
		s := newTestSpotify(t, mux)

		pl, err := s.CreatePlaylist(ctx, "tok", "owner1", "Late Night", "smoky", false)
		require.NoError(t, err)
		assert.Equal(t, "pl1", pl.ExternalID)
		assert.Equal(t, "https://open.spotify.com/playlist/pl1", pl.URL)
		assert.Empty(t, pl.ImageURL)
	})

	t.Run("CreatePlaylistUnauthorized", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /users/owner1/playlists", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, unauthorizedBody)
		})
		s := newTestSpotify(t, mux)

		_, err := s.CreatePlaylist(ctx, "tok", "owner1", "x", "", true)
		assert.ErrorIs(t, err, shared.ErrAuthExpired)
	})

	t.Run("AddTracksChunks", func(t *testing.T) {
		var sizes []int
		mux := http.NewServeMux()
		mux.HandleFunc("POST /playlists/pl1/tracks", func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				URIs []string `json:"uris"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			sizes = append(sizes, len(body.URIs))
			assert.True(t, strings.HasPrefix(body.URIs[0], "spotify:track:"))
			writeJSON(w, http.StatusCreated, `{"snapshot_id":"snap"}`)
		})
		s := newTestSpotify(t, mux)

		uris := make([]string, 150)
		for i := range uris {
			uris[i] = fmt.Sprintf("spotify:track:t%03d", i)
		}

		require.NoError(t, s.AddTracks(ctx, "tok", "pl1", uris))
		assert.Equal(t, []int{100, 50}, sizes)
	})

	t.Run("AddTracksFailure", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /playlists/pl1/tracks", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, `{"error":{"status":400,"message":"Invalid track uri"}}`)
		})
		s := newTestSpotify(t, mux)

		err := s.AddTracks(ctx, "tok", "pl1", []string{"spotify:track:a"})
		assert.ErrorIs(t, err, shared.ErrAPIRequest)
	})

	t.Run("UploadCoverAndRefetch", func(t *testing.T) {
		jpegBytes := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00}
		mux := http.NewServeMux()
		mux.HandleFunc("PUT /playlists/pl1/images", func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			decoded, err := base64.StdEncoding.DecodeString(string(body))
			require.NoError(t, err)
			assert.Equal(t, jpegBytes, decoded)
			w.WriteHeader(http.StatusAccepted)
		})
		mux.HandleFunc("GET /playlists/pl1", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `{"id":"pl1","name":"Late Night","images":[{"url":"https://img/pl1.jpg","height":640,"width":640}]}`)
		})
		s := newTestSpotify(t, mux)

		require.NoError(t, s.UploadCover(ctx, "tok", "pl1", jpegBytes))

		pl, err := s.GetPlaylist(ctx, "tok", "pl1")
		require.NoError(t, err)
		assert.Equal(t, "https://img/pl1.jpg", pl.ImageURL)
	})

	t.Run("GetPlaylistNotFound", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /playlists/missing", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, `{"error":{"status":404,"message":"Not found."}}`)
		})
		s := newTestSpotify(t, mux)

		_, err := s.GetPlaylist(ctx, "tok", "missing")
		assert.ErrorIs(t, err, shared.ErrPlaylistNotFound)
	})
}

func TestNewRetryClient(t *testing.T) {
	t.Run("DoesNotRetryWrites", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := NewRetryClient(3, 5*time.Second)
		resp, err := c.Post(srv.URL, "application/json", strings.NewReader(`{}`))
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("RetriesReads", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		c := NewRetryClient(1, 5*time.Second)
		resp, err := c.Get(srv.URL)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int32(2), calls.Load())
	})
}
