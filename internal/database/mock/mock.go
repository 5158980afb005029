// Package mock provides an in-memory implementation of database.Store for testing.
package mock

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rehanbawakhan/vdetection/internal/database"
	"github.com/rehanbawakhan/vdetection/internal/facematch"
)

// Store is a mock implementation of database.Store
type Store struct {
	mu            sync.RWMutex
	faces         map[int64]*database.KnownFace
	history       []database.HistoryEntry
	alerts        []database.Alert
	users         map[string]*database.User
	settings      map[int64]*database.UserSettings
	subscriptions map[string]*database.PushSubscription
	nextID        int64

	// Now returns the clock used for timestamps. Defaults to time.Now.
	Now func() time.Time

	// Error injection
	ListFacesError     error
	CreateFaceError    error
	UpdateFaceError    error
	DeleteFaceError    error
	AddHistoryError    error
	ListHistoryError   error
	ClearHistoryError  error
	AddAlertError      error
	GetUserError       error
	GetSettingsError   error
	UpsertSettingsErr  error
	SubscriptionsError error
	Closed             bool
}

var _ database.Store = (*Store)(nil)

// NewStore creates a new empty mock store
func NewStore() *Store {
	return &Store{
		faces:         make(map[int64]*database.KnownFace),
		users:         make(map[string]*database.User),
		settings:      make(map[int64]*database.UserSettings),
		subscriptions: make(map[string]*database.PushSubscription),
		Now:           time.Now,
	}
}

func (m *Store) id() int64 {
	m.nextID++
	return m.nextID
}

// Backend returns "mock"
func (m *Store) Backend() string { return "mock" }

// Migrate is a no-op
func (m *Store) Migrate(ctx context.Context) error { return nil }

// Close marks the store closed
func (m *Store) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// AddFace seeds a face and returns its ID
func (m *Store) AddFace(face database.KnownFace) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	face.ID = m.id()
	m.faces[face.ID] = &face
	return face.ID
}

// ListFaces returns all faces, newest first
func (m *Store) ListFaces(ctx context.Context) ([]database.KnownFace, error) {
	if m.ListFacesError != nil {
		return nil, m.ListFacesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.KnownFace, 0, len(m.faces))
	for _, f := range m.faces {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// GetFace returns a face by ID
func (m *Store) GetFace(ctx context.Context, id int64) (*database.KnownFace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.faces[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

// GetFacesByName returns faces whose normalized name matches
func (m *Store) GetFacesByName(ctx context.Context, name string) ([]database.KnownFace, error) {
	if m.ListFacesError != nil {
		return nil, m.ListFacesError
	}
	want := facematch.NormalizeName(name)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.KnownFace
	for _, f := range m.faces {
		if facematch.NormalizeName(f.Name) == want {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CountFaces returns the number of faces
func (m *Store) CountFaces(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.faces), nil
}

// CreateFace inserts a face
func (m *Store) CreateFace(ctx context.Context, face *database.KnownFace) (int64, error) {
	if m.CreateFaceError != nil {
		return 0, m.CreateFaceError
	}
	return m.AddFace(*face), nil
}

// UpdateFace applies a partial update
func (m *Store) UpdateFace(ctx context.Context, id int64, update database.KnownFaceUpdate) (*database.KnownFace, error) {
	if m.UpdateFaceError != nil {
		return nil, m.UpdateFaceError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.faces[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	if update.Name != nil {
		f.Name = *update.Name
	}
	if update.Encoding != nil {
		f.Encoding = update.Encoding
	}
	if update.ImageURL != nil {
		f.ImageURL = *update.ImageURL
	}
	if update.Wanted != nil {
		f.Wanted = *update.Wanted
	}
	cp := *f
	return &cp, nil
}

// DeleteFace removes a face
func (m *Store) DeleteFace(ctx context.Context, id int64) error {
	if m.DeleteFaceError != nil {
		return m.DeleteFaceError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.faces, id)
	return nil
}

// AddHistory appends a history entry
func (m *Store) AddHistory(ctx context.Context, name, image string) (*database.HistoryEntry, error) {
	if m.AddHistoryError != nil {
		return nil, m.AddHistoryError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := database.HistoryEntry{
		ID:        m.id(),
		Name:      name,
		Image:     image,
		Timestamp: m.Now().UTC().Truncate(time.Second),
	}
	m.history = append(m.history, entry)
	return &entry, nil
}

// ListHistory filters history the same way the SQL backends do
func (m *Store) ListHistory(ctx context.Context, filter database.HistoryFilter) ([]database.HistoryEntry, error) {
	if m.ListHistoryError != nil {
		return nil, m.ListHistoryError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []database.HistoryEntry
	for _, e := range m.history {
		ts := database.FormatTimestamp(e.Timestamp)
		if filter.Name != "" && !strings.Contains(strings.ToLower(e.Name), strings.ToLower(filter.Name)) {
			continue
		}
		if filter.From != "" && ts < filter.From+" 00:00:00" {
			continue
		}
		if filter.To != "" && ts > filter.To+" 23:59:59" {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	limit := filter.Limit
	if limit <= 0 {
		limit = database.DefaultHistoryLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetHistory returns an entry by ID
func (m *Store) GetHistory(ctx context.Context, id int64) (*database.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.history {
		if e.ID == id {
			cp := e
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

// ClearHistory removes all entries
func (m *Store) ClearHistory(ctx context.Context) error {
	if m.ClearHistoryError != nil {
		return m.ClearHistoryError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = nil
	return nil
}

// PruneHistory removes entries older than before
func (m *Store) PruneHistory(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.history[:0]
	var removed int64
	for _, e := range m.history {
		if e.Timestamp.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.history = kept
	return removed, nil
}

// History returns a copy of all stored history entries in insertion order
func (m *Store) History() []database.HistoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]database.HistoryEntry(nil), m.history...)
}

// AddAlert appends an alert
func (m *Store) AddAlert(ctx context.Context, alert *database.Alert) (int64, error) {
	if m.AddAlertError != nil {
		return 0, m.AddAlertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a := *alert
	a.ID = m.id()
	if a.Timestamp.IsZero() {
		a.Timestamp = m.Now().UTC().Truncate(time.Second)
	}
	m.alerts = append(m.alerts, a)
	return a.ID, nil
}

// ListAlerts returns alerts newest first
func (m *Store) ListAlerts(ctx context.Context, limit int) ([]database.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.Alert, 0, len(m.alerts))
	for i := len(m.alerts) - 1; i >= 0; i-- {
		out = append(out, m.alerts[i])
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetUserByUsername returns a user
func (m *Store) GetUserByUsername(ctx context.Context, username string) (*database.User, error) {
	if m.GetUserError != nil {
		return nil, m.GetUserError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// CreateUser inserts a user
func (m *Store) CreateUser(ctx context.Context, user *database.User) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[user.Username]; exists {
		return 0, database.ErrConflict
	}
	u := *user
	u.ID = m.id()
	m.users[u.Username] = &u
	return u.ID, nil
}

// UpdatePassword replaces a user's password hash
func (m *Store) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return database.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

// UpdatePIN replaces a user's PIN hash
func (m *Store) UpdatePIN(ctx context.Context, username, pinHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return database.ErrNotFound
	}
	u.PINHash = pinHash
	return nil
}

// DeleteUser removes a user (test helper)
func (m *Store) DeleteUser(username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, username)
}

// GetSettings returns stored settings
func (m *Store) GetSettings(ctx context.Context, userID int64) (*database.UserSettings, error) {
	if m.GetSettingsError != nil {
		return nil, m.GetSettingsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.settings[userID]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// UpsertSettings stores settings
func (m *Store) UpsertSettings(ctx context.Context, settings *database.UserSettings) error {
	if m.UpsertSettingsErr != nil {
		return m.UpsertSettingsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := *settings
	s.UpdatedAt = m.Now().UTC().Truncate(time.Second)
	m.settings[s.UserID] = &s
	return nil
}

// UpsertSubscription stores a subscription keyed by endpoint
func (m *Store) UpsertSubscription(ctx context.Context, endpoint, payload string) error {
	if m.SubscriptionsError != nil {
		return m.SubscriptionsError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.subscriptions[endpoint]; ok {
		existing.Payload = payload
		return nil
	}
	m.subscriptions[endpoint] = &database.PushSubscription{ID: m.id(), Endpoint: endpoint, Payload: payload}
	return nil
}

// ListSubscriptions returns all subscriptions ordered by ID
func (m *Store) ListSubscriptions(ctx context.Context) ([]database.PushSubscription, error) {
	if m.SubscriptionsError != nil {
		return nil, m.SubscriptionsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.PushSubscription, 0, len(m.subscriptions))
	for _, s := range m.subscriptions {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteSubscription removes a subscription
func (m *Store) DeleteSubscription(ctx context.Context, endpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, endpoint)
	return nil
}
