package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/mixtape/internal/shared"
)

// ExternalPlaylist is a playlist materialized on the hosting service.
type ExternalPlaylist struct {
	ExternalID  string   `json:"externalId"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	URL         string   `json:"url,omitempty"`
	TrackURIs   []string `json:"trackUris"`
	IsPublic    bool     `json:"isPublic"`
}

// PlaylistRecord is the local record of a generated playlist.
//
// A record always references a playlist that exists on the hosting service.
type PlaylistRecord struct {
	entity
	ownerID     string
	externalID  string
	name        string
	description string
	trackCount  int
	imageURL    string
	criteria    *PlaylistCriteria
}

// NewPlaylistRecord builds the record for a playlist created on behalf of ownerID.
func NewPlaylistRecord(ownerID string, pl *ExternalPlaylist, criteria PlaylistCriteria) *PlaylistRecord {
	snapshot := criteria.Snapshot()
	return &PlaylistRecord{
		entity:      newEntity(0),
		ownerID:     ownerID,
		externalID:  pl.ExternalID,
		name:        pl.Name,
		description: pl.Description,
		trackCount:  len(pl.TrackURIs),
		imageURL:    pl.ImageURL,
		criteria:    &snapshot,
	}
}

// RestorePlaylistRecord rebuilds a record from stored columns.
func RestorePlaylistRecord(id string, sequence int, ownerID, externalID, name string, createdAt time.Time) *PlaylistRecord {
	r := &PlaylistRecord{
		entity:     entity{id: id, sequence: sequence, createdAt: createdAt, updatedAt: createdAt},
		ownerID:    ownerID,
		externalID: externalID,
		name:       name,
	}
	return r
}

func (r *PlaylistRecord) OwnerID() string                 { return r.ownerID }
func (r *PlaylistRecord) ExternalID() string              { return r.externalID }
func (r *PlaylistRecord) Name() string                    { return r.name }
func (r *PlaylistRecord) Description() string             { return r.description }
func (r *PlaylistRecord) TrackCount() int                 { return r.trackCount }
func (r *PlaylistRecord) ImageURL() string                { return r.imageURL }
func (r *PlaylistRecord) Criteria() *PlaylistCriteria     { return r.criteria }
func (r *PlaylistRecord) SetDescription(d string)         { r.description = d }
func (r *PlaylistRecord) SetTrackCount(n int)             { r.trackCount = n }
func (r *PlaylistRecord) SetImageURL(u string)            { r.imageURL = u }
func (r *PlaylistRecord) SetCriteria(c *PlaylistCriteria) { r.criteria = c }

// Validate implements [Model].
func (r *PlaylistRecord) Validate() error {
	if r.ownerID == "" {
		return fmt.Errorf("%w: owner is required", shared.ErrInvalidInput)
	}
	if r.externalID == "" {
		return fmt.Errorf("%w: external playlist id is required", shared.ErrInvalidInput)
	}
	if r.name == "" {
		return fmt.Errorf("%w: name is required", shared.ErrInvalidInput)
	}
	if r.trackCount < 0 {
		return fmt.Errorf("%w: track count cannot be negative", shared.ErrInvalidInput)
	}
	return nil
}

type playlistRecordJSON struct {
	ID          string            `json:"id"`
	OwnerID     string            `json:"ownerId"`
	ExternalID  string            `json:"externalId"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	TrackCount  int               `json:"trackCount"`
	ImageURL    string            `json:"imageUrl,omitempty"`
	Criteria    *PlaylistCriteria `json:"criteria,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// MarshalJSON exposes the record's fields for API and CLI output.
func (r *PlaylistRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(playlistRecordJSON{
		ID:          r.id,
		OwnerID:     r.ownerID,
		ExternalID:  r.externalID,
		Name:        r.name,
		Description: r.description,
		TrackCount:  r.trackCount,
		ImageURL:    r.imageURL,
		Criteria:    r.criteria,
		CreatedAt:   r.createdAt,
	})
}
