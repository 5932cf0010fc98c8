// Package services wraps the external collaborators the playlist pipeline talks to.
//
// # Hosting and Catalog
//
// [SpotifyService] implements both [Catalog] and [PlaylistHost] on top of zmb3/spotify. Every call takes
// the caller's access token; a static-token client is built per call over a shared retrying transport.
//
// A 401 from Spotify surfaces as [shared.ErrAuthExpired]. A search with no hits returns [shared.ErrTrackNotFound].
//
// # Text Generation
//
// [ClaudeGenerator] and [GeminiGenerator] implement [TextGenerator]. [NewGenerator] picks one from the LLM config.
//
// # Covers
//
// [PrepareCover] turns a user-supplied base64 image into a JPEG that fits the hosting service's upload limit.
//
// # Search Cache
//
// [CachedCatalog] decorates a [Catalog] with a [SearchCache] keyed by the normalized query.
package services
