package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/services"
	"github.com/desertthunder/mixtape/internal/shared"
)

const systemPrompt = `You are a music curator who builds playlists from real, released recordings.
Only suggest songs that exist on major streaming services. Never invent titles or artists.
Respond with a single JSON object and nothing else.`

const outputDirective = `Return JSON in exactly this shape:
{"description": "<one or two sentences describing the playlist>", "songs": [{"title": "<song title>", "artist": "<primary artist>"}]}`

var uniquenessHints = map[int]string{
	1: "Favor well-known hits and staples of the style.",
	2: "Mostly popular songs with a few less obvious picks.",
	3: "Balance familiar songs with deeper cuts.",
	4: "Lean toward deep cuts and lesser-known artists.",
	5: "Choose obscure, rarely playlisted songs and artists.",
}

// DraftGenerator asks the text generator for a playlist draft.
type DraftGenerator struct {
	llm     services.TextGenerator
	timeout time.Duration
	logger  *log.Logger
}

// NewDraftGenerator creates a [DraftGenerator] whose single call is bounded by timeout.
func NewDraftGenerator(llm services.TextGenerator, timeout time.Duration, logger *log.Logger) *DraftGenerator {
	return &DraftGenerator{
		llm:     llm,
		timeout: timeout,
		logger:  shared.WithLogger(logger, "component", "generator"),
	}
}

// Generate returns the raw generator response for criteria.
//
// There is no retry. Errors, timeouts and blank responses wrap [shared.ErrGenerationUnavailable].
func (g *DraftGenerator) Generate(ctx context.Context, criteria models.PlaylistCriteria) (string, error) {
	if g.llm == nil {
		return "", fmt.Errorf("%w: no text generator configured", shared.ErrGenerationUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	started := time.Now()
	raw, err := g.llm.Generate(ctx, systemPrompt, BuildPrompt(criteria))
	if err != nil {
		g.logger.Error("generation failed", "provider", g.llm.Name(), "elapsed", time.Since(started), "error", err)
		return "", fmt.Errorf("%w: %s: %v", shared.ErrGenerationUnavailable, g.llm.Name(), err)
	}
	if strings.TrimSpace(raw) == "" {
		g.logger.Error("generation returned empty response", "provider", g.llm.Name())
		return "", fmt.Errorf("%w: %s returned an empty response", shared.ErrGenerationUnavailable, g.llm.Name())
	}

	g.logger.Debug("draft generated", "provider", g.llm.Name(), "bytes", len(raw), "elapsed", time.Since(started))
	return raw, nil
}

// BuildPrompt renders criteria as a single prompt ending in the JSON output directive.
func BuildPrompt(c models.PlaylistCriteria) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Create a playlist of %d songs.\n", c.TrackCount)
	if c.Name != "" {
		fmt.Fprintf(&b, "Playlist name: %s\n", c.Name)
	}
	if c.Description != "" {
		fmt.Fprintf(&b, "Intended description: %s\n", c.Description)
	}

	writeList(&b, "Genres", c.Genres)
	writeList(&b, "Sub-genres", c.SubGenres)
	writeList(&b, "Moods", c.Moods)
	writeList(&b, "Eras", c.Eras)
	writeList(&b, "Regions", c.Regions)
	writeList(&b, "Languages", c.Languages)

	if hint, ok := uniquenessHints[c.Uniqueness]; ok {
		fmt.Fprintf(&b, "Uniqueness %d/5: %s\n", c.Uniqueness, hint)
	}
	if p := strings.TrimSpace(c.Prompt); p != "" {
		fmt.Fprintf(&b, "Additional request from the listener: %s\n", p)
	}

	fmt.Fprintf(&b, "Do not repeat songs. Return exactly %d songs.\n\n", c.TrackCount)
	b.WriteString(outputDirective)
	return b.String()
}

func writeList(b *strings.Builder, label string, values []string) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, strings.Join(values, ", "))
}
