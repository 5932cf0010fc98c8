// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
)

// MockGenerator is a test double for [services.TextGenerator] returning a canned response.
type MockGenerator struct {
	Response string
	Err      error
	Delay    time.Duration

	mu      sync.Mutex
	calls   int
	prompts []string
}

func (m *MockGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

func (m *MockGenerator) Name() string { return "mock" }

// Calls returns how many times Generate ran.
func (m *MockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastPrompt returns the most recent prompt, or "".
func (m *MockGenerator) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

// MockCatalog is a test double for [services.Catalog].
//
// Queries found in Tracks resolve to their URI; every other query misses.
// Err, when set, is returned for every query.
type MockCatalog struct {
	Tracks map[string]string
	Err    error

	mu      sync.Mutex
	queries []string
}

// NewMockCatalog builds a catalog where each candidate resolves to spotify:track:<n>.
func NewMockCatalog(found ...models.CandidateTrack) *MockCatalog {
	c := &MockCatalog{Tracks: make(map[string]string, len(found))}
	for i, t := range found {
		c.Tracks[t.Query()] = fmt.Sprintf("spotify:track:%d", i+1)
	}
	return c
}

func (m *MockCatalog) SearchTrack(ctx context.Context, token, query string) (string, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	if uri, ok := m.Tracks[query]; ok {
		return uri, nil
	}
	return "", fmt.Errorf("%w: %s", shared.ErrTrackNotFound, query)
}

// Queries returns every query searched so far.
func (m *MockCatalog) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// MockHost is a test double for [services.PlaylistHost] that keeps playlists in memory.
type MockHost struct {
	UserID    string
	UserErr   error
	CreateErr error
	AddErr    error
	UploadErr error
	GetErr    error
	ImageURL  string
	NextID    string

	mu        sync.Mutex
	creates   int
	adds      [][]string
	uploads   [][]byte
	playlists map[string]*models.ExternalPlaylist
}

func (m *MockHost) CurrentUserID(ctx context.Context, token string) (string, error) {
	if m.UserErr != nil {
		return "", m.UserErr
	}
	if m.UserID == "" {
		return "host-user", nil
	}
	return m.UserID, nil
}

func (m *MockHost) CreatePlaylist(ctx context.Context, token, ownerID, name, description string, public bool) (*models.ExternalPlaylist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.creates++
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	id := m.NextID
	if id == "" {
		id = fmt.Sprintf("pl%d", m.creates)
	}
	pl := &models.ExternalPlaylist{
		ExternalID:  id,
		Name:        name,
		Description: description,
		IsPublic:    public,
		URL:         "https://open.spotify.com/playlist/" + id,
	}
	if m.playlists == nil {
		m.playlists = make(map[string]*models.ExternalPlaylist)
	}
	stored := *pl
	m.playlists[id] = &stored
	return pl, nil
}

func (m *MockHost) AddTracks(ctx context.Context, token, playlistID string, uris []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.AddErr != nil {
		return m.AddErr
	}
	m.adds = append(m.adds, append([]string(nil), uris...))
	if pl, ok := m.playlists[playlistID]; ok {
		pl.TrackURIs = append(pl.TrackURIs, uris...)
	}
	return nil
}

func (m *MockHost) UploadCover(ctx context.Context, token, playlistID string, jpeg []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UploadErr != nil {
		return m.UploadErr
	}
	m.uploads = append(m.uploads, jpeg)
	if pl, ok := m.playlists[playlistID]; ok {
		pl.ImageURL = m.ImageURL
		if pl.ImageURL == "" {
			pl.ImageURL = "https://i.scdn.co/image/" + playlistID
		}
	}
	return nil
}

func (m *MockHost) GetPlaylist(ctx context.Context, token, playlistID string) (*models.ExternalPlaylist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetErr != nil {
		return nil, m.GetErr
	}
	pl, ok := m.playlists[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}
	out := *pl
	return &out, nil
}

// Creates returns the number of CreatePlaylist calls.
func (m *MockHost) Creates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates
}

// Added returns the URIs of every AddTracks call.
func (m *MockHost) Added() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adds
}

// Uploads returns the number of successful UploadCover calls.
func (m *MockHost) Uploads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.uploads)
}

// MemoryStore is an in-memory user, usage and record store.
//
// The *Err fields force the matching operation to fail.
type MemoryStore struct {
	TierErr       error
	WindowErr     error
	SaveErr       error
	IncrementErr  error
	InsertErr     error
	MinimalErr    error
	ExternalIDErr error

	mu       sync.Mutex
	tiers    map[string]models.Tier
	external map[string]string
	windows  map[string]models.UsageWindow
	records  []*models.PlaylistRecord
	minimal  int
	saves    int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tiers:    make(map[string]models.Tier),
		external: make(map[string]string),
		windows:  make(map[string]models.UsageWindow),
	}
}

// AddUser registers userID on tier with an optional host user ID.
func (s *MemoryStore) AddUser(userID string, tier models.Tier, externalID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers[userID] = tier
	s.external[userID] = externalID
}

// SetWindow stores w as-is.
func (s *MemoryStore) SetWindow(w models.UsageWindow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows[w.UserID] = w
}

// StoredWindow returns the window without rolling it.
func (s *MemoryStore) StoredWindow(userID string) (models.UsageWindow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[userID]
	return w, ok
}

func (s *MemoryStore) Tier(ctx context.Context, userID string) (models.Tier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.TierErr != nil {
		return "", s.TierErr
	}
	tier, ok := s.tiers[userID]
	if !ok {
		return "", fmt.Errorf("%w: %s", shared.ErrUserNotFound, userID)
	}
	return tier, nil
}

func (s *MemoryStore) ExternalID(ctx context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ExternalIDErr != nil {
		return "", s.ExternalIDErr
	}
	id, ok := s.external[userID]
	if !ok {
		return "", fmt.Errorf("%w: %s", shared.ErrUserNotFound, userID)
	}
	return id, nil
}

func (s *MemoryStore) Window(ctx context.Context, userID string, now time.Time) (models.UsageWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WindowErr != nil {
		return models.UsageWindow{}, s.WindowErr
	}
	if w, ok := s.windows[userID]; ok {
		return w, nil
	}
	return models.NewUsageWindow(userID, now), nil
}

func (s *MemoryStore) SaveWindow(ctx context.Context, w models.UsageWindow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.saves++
	s.windows[w.UserID] = w
	return nil
}

func (s *MemoryStore) IncrementUsage(ctx context.Context, userID string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.IncrementErr != nil {
		return 0, s.IncrementErr
	}
	w, ok := s.windows[userID]
	if !ok {
		w = models.NewUsageWindow(userID, now)
	}
	w, _ = w.Current(now)
	w.Count++
	s.windows[userID] = w
	return w.Count, nil
}

func (s *MemoryStore) InsertRecord(ctx context.Context, record *models.PlaylistRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertErr != nil {
		return s.InsertErr
	}
	if err := record.Validate(); err != nil {
		return err
	}
	record.SetID(shared.GenerateID())
	record.SetSequence(len(s.records) + 1)
	s.records = append(s.records, record)
	return nil
}

func (s *MemoryStore) InsertMinimalRecord(ctx context.Context, record *models.PlaylistRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MinimalErr != nil {
		return s.MinimalErr
	}
	record.SetID(shared.GenerateID())
	record.SetSequence(len(s.records) + 1)
	s.records = append(s.records, record)
	s.minimal++
	return nil
}

// ListByOwner returns ownerID's records, newest first.
func (s *MemoryStore) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*models.PlaylistRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.PlaylistRecord
	for i := len(s.records) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.records[i].OwnerID() == ownerID {
			out = append(out, s.records[i])
		}
	}
	return out, nil
}

// CreateUser assigns user an ID and registers its tier and host user ID.
func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	user.SetID(shared.GenerateID())
	s.AddUser(user.ID(), user.Tier(), user.ExternalID())
	return nil
}

// Records returns every stored record.
func (s *MemoryStore) Records() []*models.PlaylistRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.PlaylistRecord(nil), s.records...)
}

// MinimalInserts returns how many records went through the minimal insert.
func (s *MemoryStore) MinimalInserts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minimal
}

// Saves returns how many times SaveWindow succeeded.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// ReadWriteOnly hides the atomic increment of the wrapped store.
type ReadWriteOnly struct {
	Store *MemoryStore
}

func (r ReadWriteOnly) Window(ctx context.Context, userID string, now time.Time) (models.UsageWindow, error) {
	return r.Store.Window(ctx, userID, now)
}

func (r ReadWriteOnly) SaveWindow(ctx context.Context, w models.UsageWindow) error {
	return r.Store.SaveWindow(ctx, w)
}

// FixtureJSON renders a fenced generator response with n songs titled "Song 1".."Song n" by "Artist 1".."Artist n".
func FixtureJSON(description string, n int) string {
	songs := make([]string, n)
	for i := range songs {
		songs[i] = fmt.Sprintf(`{"title":"Song %d","artist":"Artist %d"}`, i+1, i+1)
	}
	return fmt.Sprintf("```json\n{\"description\":%q,\"songs\":[%s]}\n```", description, strings.Join(songs, ","))
}

// FixtureCandidates returns the candidates encoded by [FixtureJSON].
func FixtureCandidates(n int) []models.CandidateTrack {
	out := make([]models.CandidateTrack, n)
	for i := range out {
		out[i] = models.CandidateTrack{Title: fmt.Sprintf("Song %d", i+1), Artist: fmt.Sprintf("Artist %d", i+1)}
	}
	return out
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
