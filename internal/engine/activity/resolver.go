package activity

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/episweep/internal/database"
	"github.com/jon4hz/episweep/internal/engine/arr"
	"github.com/jon4hz/episweep/internal/engine/stats"
	"github.com/jon4hz/episweep/internal/metrics"
	"github.com/mergestat/timediff"
)

// Position is the resolved last watched state of a series.
type Position struct {
	WatchedAt time.Time
	Season    int32
	Episode   int32
	// Known is false when only the time of the activity is known.
	Known  bool
	Source database.ActivitySource
	// Approximate marks positions that were assumed rather than observed.
	Approximate bool
	// Local is set when the position comes from a local activity record.
	Local        bool
	GraceCleaned bool
}

// Resolver derives the last watched position of a series from local records,
// external watch-history sources and finally file dates. It never writes.
type Resolver struct {
	store   *Store
	catalog arr.Arrer
	sources []stats.HistorySource
	timeout time.Duration
}

// NewResolver creates a resolver. Sources are consulted in the given order,
// each call bounded by timeout.
func NewResolver(store *Store, catalog arr.Arrer, sources []stats.HistorySource, timeout time.Duration) *Resolver {
	return &Resolver{
		store:   store,
		catalog: catalog,
		sources: sources,
		timeout: timeout,
	}
}

// Resolve returns the last watched position of a series, or nil when no source knows anything.
// With wantComplete the returned position always carries a season and episode.
func (r *Resolver) Resolve(ctx context.Context, seriesID int32, seriesTitle string, wantComplete bool) *Position {
	logger := log.With("series", seriesID, "title", seriesTitle)

	local, err := r.store.Get(ctx, seriesID, database.SeriesScope)
	if err != nil {
		logger.Error("Failed to read local activity", "error", err)
	}
	if local != nil {
		pos := fromRecord(local)
		if !wantComplete || pos.Known {
			logger.Debug("Using local activity", "watched", timediff.TimeDiff(pos.WatchedAt))
			return pos
		}
		logger.Debug("Local activity has no position, asking external sources")
	}

	if seriesTitle != "" {
		if pos := r.fromSources(ctx, logger, seriesTitle, wantComplete); pos != nil {
			return pos
		}
	}

	if local != nil {
		pos := fromRecord(local)
		pos.Season, pos.Episode, pos.Known, pos.Approximate = 1, 1, true, true
		logger.Debug("Using local activity time with assumed position")
		return pos
	}

	return r.fromFileDates(ctx, logger, seriesID, wantComplete)
}

// ResolveSeason returns the local record of a single season, or nil.
func (r *Resolver) ResolveSeason(ctx context.Context, seriesID, season int32) *Position {
	record, err := r.store.Get(ctx, seriesID, season)
	if err != nil {
		log.Error("Failed to read season activity", "series", seriesID, "season", season, "error", err)
		return nil
	}
	if record == nil {
		return nil
	}
	return fromRecord(record)
}

func (r *Resolver) fromSources(ctx context.Context, logger *log.Logger, title string, wantComplete bool) *Position {
	for _, source := range r.sources {
		watch, err := r.lastWatched(ctx, source, title)
		if err != nil {
			if errors.Is(err, stats.ErrNoHistory) {
				metrics.RecordHistoryLookup(source.Name(), "miss")
				logger.Debug("No watch history", "source", source.Name())
			} else {
				metrics.RecordHistoryLookup(source.Name(), "error")
				logger.Warn("Watch history source failed", "source", source.Name(), "error", err)
			}
			continue
		}
		metrics.RecordHistoryLookup(source.Name(), "hit")
		if wantComplete && !watch.HasPosition() {
			logger.Debug("Watch history has no position", "source", source.Name())
			continue
		}

		pos := &Position{
			WatchedAt: watch.WatchedAt,
			Source:    database.ActivitySource(source.Name()),
		}
		if watch.HasPosition() {
			pos.Season, pos.Episode, pos.Known = *watch.Season, *watch.Episode, true
		}
		logger.Debug("Using external watch history", "source", source.Name(), "watched", timediff.TimeDiff(pos.WatchedAt))
		return pos
	}
	return nil
}

func (r *Resolver) lastWatched(ctx context.Context, source stats.HistorySource, title string) (*stats.Watch, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return source.LastWatched(ctx, title)
}

func (r *Resolver) fromFileDates(ctx context.Context, logger *log.Logger, seriesID int32, wantComplete bool) *Position {
	files, err := r.catalog.ListEpisodeFiles(ctx, seriesID)
	if err != nil {
		logger.Warn("Failed to list episode files", "source", database.ActivitySourceFileDate, "error", err)
		return nil
	}
	latest := arr.LatestFileDate(files)
	if latest.IsZero() {
		logger.Debug("No activity found")
		return nil
	}

	pos := &Position{
		WatchedAt:   latest,
		Source:      database.ActivitySourceFileDate,
		Approximate: true,
	}
	if wantComplete {
		pos.Season, pos.Episode, pos.Known = 1, 1, true
	}
	logger.Debug("Using newest file date", "added", timediff.TimeDiff(latest))
	return pos
}

func fromRecord(record *database.ActivityRecord) *Position {
	pos := &Position{
		WatchedAt:    record.WatchedAt,
		Source:       record.Source,
		Local:        true,
		GraceCleaned: record.GraceCleaned,
	}
	if record.HasPosition() {
		pos.Season, pos.Episode, pos.Known = *record.LastSeason, *record.LastEpisode, true
	}
	return pos
}
