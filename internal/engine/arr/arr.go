package arr

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"
)

// ErrEpisodeNotFound is returned when an episode cannot be located in the catalog.
var ErrEpisodeNotFound = errors.New("episode not found")

// Episode is a single catalog episode together with the state of its file.
type Episode struct {
	ID            int32     `json:"id"`
	SeriesID      int32     `json:"seriesId"`
	SeasonNumber  int32     `json:"seasonNumber"`
	EpisodeNumber int32     `json:"episodeNumber"`
	Title         string    `json:"title"`
	HasFile       bool      `json:"hasFile"`
	Monitored     bool      `json:"monitored"`
	EpisodeFileID int32     `json:"episodeFileId,omitempty"`
	Size          int64     `json:"size,omitempty"`
	DateAdded     time.Time `json:"dateAdded,omitzero"`
}

// Downloaded reports whether the episode has a file that can be deleted.
func (e Episode) Downloaded() bool {
	return e.HasFile && e.EpisodeFileID != 0
}

// Before reports whether e comes strictly before the given position.
func (e Episode) Before(season, episode int32) bool {
	return e.SeasonNumber < season || (e.SeasonNumber == season && e.EpisodeNumber < episode)
}

// After reports whether e comes strictly after the given position.
func (e Episode) After(season, episode int32) bool {
	return e.SeasonNumber > season || (e.SeasonNumber == season && e.EpisodeNumber > episode)
}

// Series is the catalog view of a show.
type Series struct {
	ID    int32   `json:"id"`
	Title string  `json:"title"`
	Year  int32   `json:"year"`
	Tags  []int32 `json:"tags"`
}

// EpisodeFile is a downloaded file of an episode.
type EpisodeFile struct {
	ID           int32     `json:"id"`
	SeriesID     int32     `json:"seriesId"`
	SeasonNumber int32     `json:"seasonNumber"`
	Size         int64     `json:"size"`
	DateAdded    time.Time `json:"dateAdded"`
}

// Arrer is the catalog adapter used by the engine.
type Arrer interface {
	ListSeries(ctx context.Context, forceRefresh bool) ([]Series, error)
	GetTags(ctx context.Context, forceRefresh bool) (map[int32]string, error)

	ListEpisodes(ctx context.Context, seriesID int32) ([]Episode, error)
	ListEpisodeFiles(ctx context.Context, seriesID int32) ([]EpisodeFile, error)

	SetMonitored(ctx context.Context, episodeIDs []int32, monitored bool) error
	SearchEpisodes(ctx context.Context, episodeIDs []int32) error
	SearchSeason(ctx context.Context, seriesID, seasonNumber int32) error

	DeleteEpisodeFile(ctx context.Context, episodeFileID int32) error
}

// SortEpisodes sorts episodes by season and episode number.
func SortEpisodes(episodes []Episode) {
	slices.SortFunc(episodes, func(a, b Episode) int {
		if c := cmp.Compare(a.SeasonNumber, b.SeasonNumber); c != 0 {
			return c
		}
		return cmp.Compare(a.EpisodeNumber, b.EpisodeNumber)
	})
}

// FindEpisode returns the episode at the given position.
func FindEpisode(episodes []Episode, season, episode int32) (Episode, error) {
	for _, e := range episodes {
		if e.SeasonNumber == season && e.EpisodeNumber == episode {
			return e, nil
		}
	}
	return Episode{}, ErrEpisodeNotFound
}

// LatestFileDate returns the newest date a file was added, or the zero time.
func LatestFileDate(files []EpisodeFile) time.Time {
	var latest time.Time
	for _, f := range files {
		if f.DateAdded.After(latest) {
			latest = f.DateAdded
		}
	}
	return latest
}
