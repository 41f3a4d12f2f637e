package mock

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/jon4hz/episweep/internal/engine/arr"
)

var _ arr.Arrer = (*MockArrer)(nil)

// SeasonSearch is a recorded season search.
type SeasonSearch struct {
	SeriesID     int32
	SeasonNumber int32
}

// MockArrer is a mock implementation of arr.Arrer for testing.
type MockArrer struct {
	mu sync.RWMutex

	series   []arr.Series
	tags     map[int32]string
	episodes map[int32][]arr.Episode

	// Recorded calls
	Monitored      []int32
	Unmonitored    []int32
	SearchedIDs    []int32
	SeasonSearches []SeasonSearch
	DeletedFileIDs []int32

	// Error simulation
	ListSeriesError   error
	GetTagsError      error
	ListEpisodesError error
	SetMonitoredError error
	SearchError       error
	DeleteError       error
	// DeleteErrors fails deletion of specific episode file ids.
	DeleteErrors map[int32]error
}

// NewMockArrer creates a new MockArrer instance.
func NewMockArrer() *MockArrer {
	m := &MockArrer{}
	m.Reset()
	return m
}

// Reset clears all data, recorded calls and errors from the mock.
func (m *MockArrer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.series = nil
	m.tags = make(map[int32]string)
	m.episodes = make(map[int32][]arr.Episode)

	m.Monitored = nil
	m.Unmonitored = nil
	m.SearchedIDs = nil
	m.SeasonSearches = nil
	m.DeletedFileIDs = nil

	m.ListSeriesError = nil
	m.GetTagsError = nil
	m.ListEpisodesError = nil
	m.SetMonitoredError = nil
	m.SearchError = nil
	m.DeleteError = nil
	m.DeleteErrors = make(map[int32]error)
}

// AddSeries registers a series and its episodes.
func (m *MockArrer) AddSeries(series arr.Series, episodes []arr.Episode) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.series = slices.DeleteFunc(m.series, func(s arr.Series) bool { return s.ID == series.ID })
	m.series = append(m.series, series)
	m.episodes[series.ID] = slices.Clone(episodes)
}

// SetTags replaces the tag map.
func (m *MockArrer) SetTags(tags map[int32]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags = tags
}

// Episodes returns the current state of the episodes of a series.
func (m *MockArrer) Episodes(seriesID int32) []arr.Episode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.episodes[seriesID])
}

func (m *MockArrer) ListSeries(_ context.Context, _ bool) ([]arr.Series, error) {
	if m.ListSeriesError != nil {
		return nil, m.ListSeriesError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.series), nil
}

func (m *MockArrer) GetTags(_ context.Context, _ bool) (map[int32]string, error) {
	if m.GetTagsError != nil {
		return nil, m.GetTagsError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	tags := make(map[int32]string, len(m.tags))
	for k, v := range m.tags {
		tags[k] = v
	}
	return tags, nil
}

func (m *MockArrer) ListEpisodes(_ context.Context, seriesID int32) ([]arr.Episode, error) {
	if m.ListEpisodesError != nil {
		return nil, m.ListEpisodesError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.episodes[seriesID]), nil
}

func (m *MockArrer) ListEpisodeFiles(_ context.Context, seriesID int32) ([]arr.EpisodeFile, error) {
	if m.ListEpisodesError != nil {
		return nil, m.ListEpisodesError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var files []arr.EpisodeFile
	for _, e := range m.episodes[seriesID] {
		if e.Downloaded() {
			files = append(files, arr.EpisodeFile{
				ID:           e.EpisodeFileID,
				SeriesID:     seriesID,
				SeasonNumber: e.SeasonNumber,
				Size:         e.Size,
				DateAdded:    e.DateAdded,
			})
		}
	}
	return files, nil
}

func (m *MockArrer) SetMonitored(_ context.Context, episodeIDs []int32, monitored bool) error {
	if m.SetMonitoredError != nil {
		return m.SetMonitoredError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if monitored {
		m.Monitored = append(m.Monitored, episodeIDs...)
	} else {
		m.Unmonitored = append(m.Unmonitored, episodeIDs...)
	}
	for seriesID, episodes := range m.episodes {
		for i := range episodes {
			if slices.Contains(episodeIDs, episodes[i].ID) {
				episodes[i].Monitored = monitored
			}
		}
		m.episodes[seriesID] = episodes
	}
	return nil
}

func (m *MockArrer) SearchEpisodes(_ context.Context, episodeIDs []int32) error {
	if m.SearchError != nil {
		return m.SearchError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.SearchedIDs = append(m.SearchedIDs, episodeIDs...)
	return nil
}

func (m *MockArrer) SearchSeason(_ context.Context, seriesID, seasonNumber int32) error {
	if m.SearchError != nil {
		return m.SearchError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.SeasonSearches = append(m.SeasonSearches, SeasonSearch{SeriesID: seriesID, SeasonNumber: seasonNumber})
	return nil
}

func (m *MockArrer) DeleteEpisodeFile(_ context.Context, episodeFileID int32) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.DeleteErrors[episodeFileID]; ok {
		return err
	}

	for seriesID, episodes := range m.episodes {
		for i := range episodes {
			if episodes[i].EpisodeFileID == episodeFileID {
				episodes[i].HasFile = false
				episodes[i].EpisodeFileID = 0
				m.episodes[seriesID] = episodes
				m.DeletedFileIDs = append(m.DeletedFileIDs, episodeFileID)
				return nil
			}
		}
	}
	return errors.New("episode file not found")
}

// Calls returns copies of the recorded calls.
func (m *MockArrer) Calls() (monitored, unmonitored, searched, deleted []int32) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.Monitored), slices.Clone(m.Unmonitored), slices.Clone(m.SearchedIDs), slices.Clone(m.DeletedFileIDs)
}
