// Package models defines domain entities and persistence interfaces for the mixtape playlist generator.
//
// The package contains two categories of types:
//
// 1. Pipeline values: transient structs passed between pipeline stages
//   - [PlaylistCriteria] : Validated user input describing the playlist to generate
//   - [PlaylistDraft] : Description and [CandidateTrack] list recovered from the text generator
//   - [ResolvedTrack] : A candidate matched to a catalog URI
//   - [ExternalPlaylist] : The playlist as it exists on the hosting service
//   - [UsageWindow] : Per-user monthly generation counter
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [User] : Local account with subscription [Tier] and hosting-service user ID
//   - [PlaylistRecord] : Durable record of a generated playlist with its criteria snapshot
//
// Persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
