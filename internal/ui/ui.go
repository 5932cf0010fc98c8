package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ConfirmView ViewState = iota
	RunView
	ResultView
	HistoryView
)

const (
	historyLimit = 50
	recentLines  = 6
)

// Runner runs the generation pipeline.
type Runner interface {
	CreatePlaylist(ctx context.Context, userID string, criteria models.PlaylistCriteria, token string, progress chan<- tasks.ProgressUpdate) tasks.Result
}

// History lists previously generated playlists.
type History interface {
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]*models.PlaylistRecord, error)
}

// Request is what the TUI asks the pipeline to build.
type Request struct {
	UserID   string
	Token    string
	Criteria models.PlaylistCriteria
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	view     ViewState
	runner   Runner
	history  History
	request  Request
	width    int
	height   int
	records  list.Model
	spinner  spinner.Model
	progress chan tasks.ProgressUpdate
	done     chan tasks.Result
	phases   []tasks.ProgressUpdate
	recent   []string
	result   tasks.Result
	err      error
	help     help.Model
	keys     keyMap
}

// NewModel creates a TUI model that confirms req, runs it and shows the outcome.
func NewModel(ctx context.Context, runner Runner, history History, req Request) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.ok

	records := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	records.Title = "Your Playlists"

	return &Model{
		ctx:     ctx,
		view:    ConfirmView,
		runner:  runner,
		history: history,
		request: req,
		records: records,
		spinner: sp,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Result returns the outcome of the last run, or nil if none finished.
func (m *Model) Result() tasks.Result {
	return m.result
}

// Init starts the spinner and loads the user's history.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchHistory())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.records.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case RunView:
			if key.Matches(msg, m.keys.quit) && msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		case HistoryView:
			return m.handleHistoryKeys(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	if m.view == HistoryView {
		var cmd tea.Cmd
		m.records, cmd = m.records.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgHistoryFetched:
		data := msg.data.(historyData)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.err = nil
		return m, m.records.SetItems(recordItems(data.records))

	case MsgProgressUpdate:
		m.track(msg.data.(tasks.ProgressUpdate))
		return m, m.waitForProgress()

	case MsgRunComplete:
		m.result, _ = msg.data.(tasks.Result)
		m.progress = nil
		m.done = nil
		m.view = ResultView
		return m, m.fetchHistory()
	}
	return m, nil
}

// track records update as the current phase, or as a detail line within it.
func (m *Model) track(update tasks.ProgressUpdate) {
	if update.Phase == tasks.Done {
		return
	}
	if n := len(m.phases); n > 0 && m.phases[n-1].Phase == update.Phase {
		m.phases[n-1] = update
	} else {
		m.phases = append(m.phases, update)
	}
	if update.Phase == tasks.ResolveTracks && update.Total > 0 {
		m.recent = append(m.recent, update.Message)
		if len(m.recent) > recentLines {
			m.recent = m.recent[len(m.recent)-recentLines:]
		}
	}
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit), key.Matches(msg, m.keys.no):
		return m, tea.Quit
	case key.Matches(msg, m.keys.yes):
		m.view = RunView
		return m, m.startRun()
	case key.Matches(msg, m.keys.history):
		m.view = HistoryView
		return m, nil
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.reset()
		m.view = ConfirmView
		return m, nil
	case key.Matches(msg, m.keys.history):
		m.view = HistoryView
		return m, nil
	}
	return m, nil
}

func (m *Model) handleHistoryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.records.FilterState() != list.Filtering {
		switch {
		case msg.String() == "q" || msg.String() == "ctrl+c":
			return m, tea.Quit
		case key.Matches(msg, m.keys.generate):
			m.reset()
			m.view = ConfirmView
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.records, cmd = m.records.Update(msg)
	return m, cmd
}

func (m *Model) reset() {
	m.phases = nil
	m.recent = nil
	m.result = nil
}

func (m *Model) fetchHistory() tea.Cmd {
	if m.history == nil {
		return nil
	}
	ctx, history, userID := m.ctx, m.history, m.request.UserID
	return func() tea.Msg {
		records, err := history.ListByOwner(ctx, userID, historyLimit)
		return historyFetchedMsg(records, err)
	}
}

// startRun launches the pipeline. The goroutine owns the progress channel and closes it when the run returns.
func (m *Model) startRun() tea.Cmd {
	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan tasks.Result, 1)
	m.progress, m.done = progress, done

	ctx, runner, req := m.ctx, m.runner, m.request
	go func() {
		result := runner.CreatePlaylist(ctx, req.UserID, req.Criteria, req.Token, progress)
		close(progress)
		done <- result
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progress, m.done
	if progress == nil {
		return nil
	}
	return func() tea.Msg {
		update, ok := <-progress
		if !ok {
			return runCompleteMsg(<-done)
		}
		return progressUpdateMsg(update)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case ConfirmView:
		return m.renderConfirm()
	case RunView:
		return m.renderRun()
	case ResultView:
		return m.renderResult()
	case HistoryView:
		return m.renderHistory()
	default:
		return ""
	}
}

func (m *Model) renderConfirm() string {
	c := m.request.Criteria
	title := styles.title.Render(fmt.Sprintf("Generate '%s'?", c.Name))

	var b strings.Builder
	fmt.Fprintf(&b, "Tracks: %d\n", c.TrackCount)
	fmt.Fprintf(&b, "Uniqueness: %d/5\n", c.Uniqueness)
	for _, row := range []struct {
		label  string
		values []string
	}{
		{"Genres", c.Genres},
		{"Sub-genres", c.SubGenres},
		{"Moods", c.Moods},
		{"Eras", c.Eras},
		{"Regions", c.Regions},
		{"Languages", c.Languages},
	} {
		if len(row.values) > 0 {
			fmt.Fprintf(&b, "%s: %s\n", row.label, strings.Join(row.values, ", "))
		}
	}
	if c.Prompt != "" {
		fmt.Fprintf(&b, "Prompt: %s\n", c.Prompt)
	}
	if c.HasCover() {
		b.WriteString("Cover: yes\n")
	}
	visibility := "private"
	if c.IsPublic {
		visibility = "public"
	}
	fmt.Fprintf(&b, "Visibility: %s", visibility)

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no, m.keys.history})
	return fmt.Sprintf("%s\n%s\n\n%s", title, styles.box.Render(b.String()), helpView)
}

func (m *Model) renderRun() string {
	title := styles.title.Render(fmt.Sprintf("Building '%s'", m.request.Criteria.Name))

	var b strings.Builder
	for i, update := range m.phases {
		if i == len(m.phases)-1 {
			line := update.Message
			if update.Total > 0 && update.Phase == tasks.ResolveTracks {
				line = fmt.Sprintf("Searching tracks (%d/%d)", update.Step, update.Total)
			}
			fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), line)
			continue
		}
		fmt.Fprintf(&b, "%s\n", styles.done.Render("✓ "+update.Phase.String()))
	}
	if len(m.phases) == 0 {
		fmt.Fprintf(&b, "%s Starting...\n", m.spinner.View())
	}
	for _, line := range m.recent {
		fmt.Fprintf(&b, "   %s\n", styles.help.Render(line))
	}
	return fmt.Sprintf("%s\n%s", title, b.String())
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.history, m.keys.quit})

	switch r := m.result.(type) {
	case tasks.Success:
		title := styles.ok.Render("✓ Playlist Created!")
		return fmt.Sprintf("%s\n\n%s\n\n%s", title, playlistInfo(r.Playlist), helpView)
	case tasks.SuccessWithWarning:
		title := styles.ok.Render("✓ Playlist Created")
		warning := styles.warn.Render("Warning: " + r.Warning)
		return fmt.Sprintf("%s\n\n%s\n\n%s\n\n%s", title, playlistInfo(r.Playlist), warning, helpView)
	case tasks.Failure:
		msg := styles.err.Render(fmt.Sprintf("Generation failed (%s)\n%s", r.Kind, r.Message))
		if r.Playlist != nil {
			msg += "\n\n" + styles.warn.Render("A partial playlist was left on Spotify:") + "\n" + playlistInfo(r.Playlist)
		}
		return fmt.Sprintf("%s\n\n%s", msg, helpView)
	default:
		return styles.err.Render("No result available") + "\n\n" + helpView
	}
}

func (m *Model) renderHistory() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.up, m.keys.down, m.keys.generate, m.keys.quit})
	if m.err != nil {
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(fmt.Sprintf("Could not load history: %v", m.err)), helpView)
	}
	return fmt.Sprintf("%s\n\n%s", m.records.View(), helpView)
}

func playlistInfo(pl *models.ExternalPlaylist) string {
	if pl == nil {
		return ""
	}
	info := fmt.Sprintf("Name: %s\nTracks: %d", pl.Name, len(pl.TrackURIs))
	if pl.URL != "" {
		info += "\nLink: " + pl.URL
	}
	return info
}
