// package formatter exports generated playlist records to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
)

// Format names an export encoding.
type Format string

const (
	CSV      Format = "csv"
	Markdown Format = "markdown"
	Text     Format = "txt"
	JSON     Format = "json"
)

// ParseFormat accepts csv, markdown (or md), txt (or text) and json.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return CSV, nil
	case "markdown", "md":
		return Markdown, nil
	case "txt", "text":
		return Text, nil
	case "json":
		return JSON, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, s)
	}
}

// Ext returns the file extension for f.
func (f Format) Ext() string {
	if f == Markdown {
		return "md"
	}
	return string(f)
}

// ExportToCSV renders records with columns: ID, Name, ExternalID, Tracks, Genres, Moods, Visibility, Created
func ExportToCSV(records []*models.PlaylistRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Name", "ExternalID", "Tracks", "Genres", "Moods", "Visibility", "Created"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range records {
		c := criteriaOf(r)
		row := []string{
			r.ID(),
			r.Name(),
			r.ExternalID(),
			strconv.Itoa(r.TrackCount()),
			strings.Join(c.Genres, ";"),
			strings.Join(c.Moods, ";"),
			visibility(c.IsPublic),
			r.CreatedAt().UTC().Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders one section per record. covers maps external playlist IDs to local image paths.
func ExportToMarkdown(records []*models.PlaylistRecord, title string, covers map[string]string) ([]byte, error) {
	var buf bytes.Buffer

	if title == "" {
		title = "Playlists"
	}
	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "**Playlists**: %d\n\n", len(records))

	for _, r := range records {
		c := criteriaOf(r)
		fmt.Fprintf(&buf, "## %s\n\n", r.Name())

		if path := covers[r.ExternalID()]; path != "" {
			fmt.Fprintf(&buf, "![Cover](%s)\n\n", path)
		} else if r.ImageURL() != "" {
			fmt.Fprintf(&buf, "![Cover](%s)\n\n", r.ImageURL())
		}

		if r.Description() != "" {
			fmt.Fprintf(&buf, "%s\n\n", r.Description())
		}

		fmt.Fprintf(&buf, "- **Tracks**: %d\n", r.TrackCount())
		fmt.Fprintf(&buf, "- **Visibility**: %s\n", visibility(c.IsPublic))
		if len(c.Genres) > 0 {
			fmt.Fprintf(&buf, "- **Genres**: %s\n", strings.Join(c.Genres, ", "))
		}
		if len(c.Moods) > 0 {
			fmt.Fprintf(&buf, "- **Moods**: %s\n", strings.Join(c.Moods, ", "))
		}
		if c.Prompt != "" {
			fmt.Fprintf(&buf, "- **Prompt**: %s\n", c.Prompt)
		}
		fmt.Fprintf(&buf, "- **Link**: https://open.spotify.com/playlist/%s\n", r.ExternalID())
		fmt.Fprintf(&buf, "- **Created**: %s\n\n", r.CreatedAt().UTC().Format("2006-01-02"))
	}

	return buf.Bytes(), nil
}

// ExportToText renders one line per record
func ExportToText(records []*models.PlaylistRecord) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlists: %d\n\n", len(records))
	for i, r := range records {
		fmt.Fprintf(&buf, "%d. %s (%d tracks) [%s] %s\n",
			i+1, r.Name(), r.TrackCount(), r.ExternalID(), r.CreatedAt().UTC().Format("2006-01-02"))
	}

	return buf.Bytes(), nil
}

// ExportToJSON renders records as an indented JSON array
func ExportToJSON(records []*models.PlaylistRecord) ([]byte, error) {
	if records == nil {
		records = []*models.PlaylistRecord{}
	}
	return shared.MarshalJSON(records, true)
}

// Export renders records in format f.
func Export(records []*models.PlaylistRecord, f Format) ([]byte, error) {
	switch f {
	case CSV:
		return ExportToCSV(records)
	case Markdown:
		return ExportToMarkdown(records, "", nil)
	case Text:
		return ExportToText(records)
	case JSON:
		return ExportToJSON(records)
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, f)
	}
}

// WriteExport renders records in format f to w.
func WriteExport(w io.Writer, records []*models.PlaylistRecord, f Format) error {
	data, err := Export(records, f)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s export: %w", f, err)
	}
	return nil
}

// WriteExportFile writes records to path, defaulting to playlists.{ext} in the working directory.
func WriteExportFile(records []*models.PlaylistRecord, f Format, path string) (string, error) {
	if path == "" {
		path = "playlists." + f.Ext()
	}

	data, err := Export(records, f)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

// DownloadImage fetches url with client and returns the raw bytes
func DownloadImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty URL provided", shared.ErrMissingArgument)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build image request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory string
	Files     []string
	Covers    int
	Skipped   []string
}

// WriteMarkdownExport writes {dir}/README.md and downloads each record's cover into {dir}/covers/{externalID}.jpg.
//
// Directory defaults to "playlists". Cover download failures are reported in Skipped, not returned.
func WriteMarkdownExport(ctx context.Context, client *http.Client, records []*models.PlaylistRecord, outputDir string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = "playlists"
	}

	coverDir := filepath.Join(outputDir, "covers")
	if err := os.MkdirAll(coverDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{Directory: outputDir, Files: []string{}}
	covers := make(map[string]string)

	for _, r := range records {
		if r.ImageURL() == "" {
			continue
		}
		data, err := DownloadImage(ctx, client, r.ImageURL())
		if err != nil {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: %v", r.ExternalID(), err))
			continue
		}

		name := r.ExternalID() + ".jpg"
		path := filepath.Join(coverDir, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: %v", r.ExternalID(), err))
			continue
		}
		covers[r.ExternalID()] = "covers/" + name
		result.Files = append(result.Files, path)
		result.Covers++
	}

	md, err := ExportToMarkdown(records, "", covers)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, md, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}
	result.Files = append(result.Files, mdFile)

	return result, nil
}

func criteriaOf(r *models.PlaylistRecord) models.PlaylistCriteria {
	if c := r.Criteria(); c != nil {
		return *c
	}
	return models.PlaylistCriteria{}
}

func visibility(public bool) string {
	if public {
		return "Public"
	}
	return "Private"
}
