package models

import (
	"fmt"
	"strings"
)

// CandidateTrack is a title/artist pair proposed by the text generator, not yet matched against the catalog.
type CandidateTrack struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// Query builds a catalog search query using field filters.
func (c CandidateTrack) Query() string {
	return fmt.Sprintf("track:%s artist:%s", strings.TrimSpace(c.Title), strings.TrimSpace(c.Artist))
}

func (c CandidateTrack) String() string {
	return fmt.Sprintf("%s - %s", c.Artist, c.Title)
}

// PlaylistDraft is the structured form of a generator response.
type PlaylistDraft struct {
	Description string           `json:"description"`
	Candidates  []CandidateTrack `json:"songs"`
}

// Valid reports whether the draft has a description and at least one candidate.
func (d PlaylistDraft) Valid() bool {
	return strings.TrimSpace(d.Description) != "" && len(d.Candidates) > 0
}

// ResolvedTrack is a candidate that matched a catalog entry.
type ResolvedTrack struct {
	CatalogURI string         `json:"uri"`
	Candidate  CandidateTrack `json:"candidate"`
}

// URIs extracts the catalog URIs from tracks, preserving order.
func URIs(tracks []ResolvedTrack) []string {
	uris := make([]string, len(tracks))
	for i, t := range tracks {
		uris[i] = t.CatalogURI
	}
	return uris
}
