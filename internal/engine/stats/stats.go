package stats

import (
	"context"
	"errors"
	"time"
)

// ErrNoHistory is returned when a source has no matching watch history for a series.
var ErrNoHistory = errors.New("no watch history found")

// Watch is the most recent playback of a series as reported by a history source.
type Watch struct {
	// WatchedAt is the time of the playback.
	WatchedAt time.Time
	// Season and Episode are nil when the source only knows the series.
	Season  *int32
	Episode *int32
	// Title is the series title as reported by the source.
	Title string
}

// HasPosition reports whether the watch carries a season and episode.
func (w *Watch) HasPosition() bool {
	return w != nil && w.Season != nil && w.Episode != nil
}

// HistorySource looks up the last watched episode of a series by title.
type HistorySource interface {
	// Name identifies the source in logs and activity records.
	Name() string
	// LastWatched returns the most recent playback of the series or ErrNoHistory.
	LastWatched(ctx context.Context, seriesTitle string) (*Watch, error)
}
