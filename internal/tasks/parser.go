package tasks

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Jeffail/gabs/v2"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
)

// DefaultDescription is used when no description can be recovered from a response.
const DefaultDescription = "A mix picked just for you."

// FallbackTracks is the fixed set used when a response cannot be parsed at all.
var FallbackTracks = []models.CandidateTrack{
	{Title: "Bohemian Rhapsody", Artist: "Queen"},
	{Title: "Billie Jean", Artist: "Michael Jackson"},
	{Title: "Smells Like Teen Spirit", Artist: "Nirvana"},
	{Title: "Hey Jude", Artist: "The Beatles"},
	{Title: "Superstition", Artist: "Stevie Wonder"},
}

var (
	fencePattern       = regexp.MustCompile("(?s)^\\s*```[\\w+-]*[ \\t]*\\n?(.*?)\\n?\\s*```\\s*$")
	descriptionPattern = regexp.MustCompile(`"description"\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

type attempt struct {
	name string
	fn   func(raw string) (models.PlaylistDraft, bool)
}

// DraftParser turns a raw generator response into a [models.PlaylistDraft].
//
// Parsing runs an ordered chain of attempts and takes the first that succeeds.
// The last attempt always succeeds, so Parse never fails.
type DraftParser struct {
	attempts []attempt
	logger   *log.Logger
}

// NewDraftParser creates a [DraftParser] with the standard three-step recovery chain.
func NewDraftParser(logger *log.Logger) *DraftParser {
	return &DraftParser{
		attempts: []attempt{
			{name: "strict", fn: parseFenced},
			{name: "trimmed", fn: parseTrimmed},
			{name: "fallback", fn: parseFallback},
		},
		logger: shared.WithLogger(logger, "component", "parser"),
	}
}

// Parse returns a draft with a non-empty description and at least one candidate.
func (p *DraftParser) Parse(raw string) models.PlaylistDraft {
	for i, a := range p.attempts {
		draft, ok := a.fn(raw)
		if !ok {
			continue
		}
		if i > 0 {
			p.logger.Warn("draft recovered", "attempt", a.name, "candidates", len(draft.Candidates))
		} else {
			p.logger.Debug("draft parsed", "candidates", len(draft.Candidates))
		}
		return draft
	}
	return fallbackDraft("")
}

// parseFenced strips an optional ```lang fence and parses the rest strictly.
func parseFenced(raw string) (models.PlaylistDraft, bool) {
	body := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(body); m != nil {
		body = m[1]
	}
	return parseStrict(body)
}

// parseTrimmed drops leading and trailing lines that are not part of the JSON object body.
func parseTrimmed(raw string) (models.PlaylistDraft, bool) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	start := -1
	for i, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "{") {
			start = i
			break
		}
	}
	if start < 0 {
		return models.PlaylistDraft{}, false
	}

	end := -1
	for i := len(lines) - 1; i >= start; i-- {
		if strings.HasSuffix(strings.TrimSpace(lines[i]), "}") {
			end = i
			break
		}
	}
	if end < 0 {
		return models.PlaylistDraft{}, false
	}

	return parseStrict(strings.Join(lines[start:end+1], "\n"))
}

// parseFallback recovers the description by pattern and pairs it with [FallbackTracks].
func parseFallback(raw string) (models.PlaylistDraft, bool) {
	var desc string
	if m := descriptionPattern.FindStringSubmatch(raw); m != nil {
		if s, err := strconv.Unquote(`"` + m[1] + `"`); err == nil {
			desc = s
		} else {
			desc = m[1]
		}
	}
	return fallbackDraft(desc), true
}

func fallbackDraft(desc string) models.PlaylistDraft {
	if strings.TrimSpace(desc) == "" {
		desc = DefaultDescription
	}
	candidates := make([]models.CandidateTrack, len(FallbackTracks))
	copy(candidates, FallbackTracks)
	return models.PlaylistDraft{Description: strings.TrimSpace(desc), Candidates: candidates}
}

// parseStrict parses body as a JSON object holding a song list.
// Lists may be keyed "songs" or "tracks"; entries may use "name" for the title and "artists" for the artist.
func parseStrict(body string) (models.PlaylistDraft, bool) {
	parsed, err := gabs.ParseJSON([]byte(body))
	if err != nil {
		return models.PlaylistDraft{}, false
	}
	if _, ok := parsed.Data().(map[string]any); !ok {
		return models.PlaylistDraft{}, false
	}

	var list *gabs.Container
	for _, key := range []string{"songs", "tracks"} {
		if parsed.Exists(key) {
			list = parsed.S(key)
			break
		}
	}
	if list == nil {
		return models.PlaylistDraft{}, false
	}

	seen := make(map[string]bool)
	var candidates []models.CandidateTrack
	for _, child := range list.Children() {
		c := models.CandidateTrack{
			Title:  strings.TrimSpace(firstString(child, "title", "name", "song")),
			Artist: strings.TrimSpace(firstString(child, "artist", "artists")),
		}
		if c.Title == "" || c.Artist == "" {
			continue
		}
		key := shared.NormalizeTrackKey(c.Title, c.Artist)
		if seen[key] {
			continue
		}
		seen[key] = true
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return models.PlaylistDraft{}, false
	}

	desc, _ := parsed.S("description").Data().(string)
	if strings.TrimSpace(desc) == "" {
		desc = DefaultDescription
	}
	return models.PlaylistDraft{Description: strings.TrimSpace(desc), Candidates: candidates}, true
}

// firstString returns the first key of c holding a string, or the first string of an array.
func firstString(c *gabs.Container, keys ...string) string {
	for _, key := range keys {
		switch v := c.S(key).Data().(type) {
		case string:
			if v != "" {
				return v
			}
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok && s != "" {
					return s
				}
				if m, ok := item.(map[string]any); ok {
					if s, ok := m["name"].(string); ok && s != "" {
						return s
					}
				}
			}
		}
	}
	return ""
}
