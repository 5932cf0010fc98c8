// Package server provides the HTTP API for playlist generation and the OAuth callback used by the CLI.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [BasicRouter] implements it on a chi mux. Middleware is applied when a route is registered,
// in the order it was added, so public routes are registered before [JWTMiddleware] is added.
//
// # API
//
// [PlaylistAPI] serves:
//   - POST /v1/playlists runs the generation pipeline for the authenticated user
//   - GET /v1/playlists lists saved playlist records (?limit=, default 20, max 100)
//   - GET /v1/usage reports tier, count, limit and reset time for the current period
//
// Requests authenticate with an HS256 bearer token ([IssueToken]) whose "uid" claim names a local user.
// POST requests also carry the caller's Spotify access token in [SpotifyTokenHeader].
//
// Pipeline results map to status codes: 201 success, 202 success with warning, 400 invalid criteria,
// 401 expired hosting token, 404 unknown user, 429 quota exceeded, 500 internal, 502 for upstream failures.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback flow.
// It checks the state parameter, exchanges the code for a token, and sends the result through a channel.
// Only the first callback is processed.
package server
