package mock

import (
	"context"
	"sync"
	"time"

	"github.com/jon4hz/episweep/internal/engine/stats"
)

var _ stats.HistorySource = (*MockHistorySource)(nil)

// MockHistorySource is a mock implementation of stats.HistorySource for testing.
type MockHistorySource struct {
	mu sync.RWMutex

	name    string
	watches map[string]stats.Watch
	calls   int

	// Delay blocks LastWatched until it elapses or the context ends.
	Delay time.Duration

	// Error simulation
	LastWatchedError error
}

// NewMockHistorySource creates a new MockHistorySource instance.
func NewMockHistorySource(name string) *MockHistorySource {
	return &MockHistorySource{
		name:    name,
		watches: make(map[string]stats.Watch),
	}
}

// Reset clears all data and errors from the mock.
func (m *MockHistorySource) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.watches = make(map[string]stats.Watch)
	m.calls = 0
	m.Delay = 0
	m.LastWatchedError = nil
}

// SetWatch registers the last playback of a title. Lookups use stats.TitlesMatch.
func (m *MockHistorySource) SetWatch(title string, watchedAt time.Time, season, episode int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watches[title] = stats.Watch{WatchedAt: watchedAt, Season: &season, Episode: &episode, Title: title}
}

// SetWatchWithoutPosition registers a playback that carries no episode position.
func (m *MockHistorySource) SetWatchWithoutPosition(title string, watchedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watches[title] = stats.Watch{WatchedAt: watchedAt, Title: title}
}

// Calls returns how often LastWatched was called.
func (m *MockHistorySource) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

func (m *MockHistorySource) Name() string {
	return m.name
}

func (m *MockHistorySource) LastWatched(ctx context.Context, seriesTitle string) (*stats.Watch, error) {
	m.mu.Lock()
	m.calls++
	delay, err := m.Delay, m.LastWatchedError
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for title, w := range m.watches {
		if stats.TitlesMatch(seriesTitle, title) {
			return &w, nil
		}
	}
	return nil, stats.ErrNoHistory
}
