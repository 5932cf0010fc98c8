package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/mixtape/internal/models"
)

var _ list.Item = recordItem{}

// recordItem wraps [models.PlaylistRecord] to implement [list.Item].
type recordItem struct {
	record *models.PlaylistRecord
}

func (i recordItem) FilterValue() string { return i.record.Name() }
func (i recordItem) Title() string       { return i.record.Name() }
func (i recordItem) Description() string {
	desc := fmt.Sprintf("%d tracks • %s", i.record.TrackCount(), i.record.CreatedAt().Format("Jan 2 2006"))
	if c := i.record.Criteria(); c != nil && len(c.Genres) > 0 {
		desc = fmt.Sprintf("%s • %s", desc, c.Genres[0])
	}
	return desc
}

func recordItems(records []*models.PlaylistRecord) []list.Item {
	items := make([]list.Item, len(records))
	for i, r := range records {
		items[i] = recordItem{record: r}
	}
	return items
}
