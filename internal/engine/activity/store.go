package activity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/episweep/internal/database"
	"github.com/jon4hz/episweep/internal/engine/rules"
)

// Store guards the activity records of all series.
// Read-modify-write sequences run under a single lock.
type Store struct {
	mu sync.Mutex
	db database.ActivityDB
}

// NewStore creates an activity store on top of the database.
func NewStore(db database.ActivityDB) *Store {
	return &Store{db: db}
}

// Watch is a playback event for a series.
type Watch struct {
	SeriesID  int32
	Season    int32
	Episode   int32
	WatchedAt time.Time
	Source    database.ActivitySource
}

// RecordWatch writes the series-level record and, in season scope, the record of the watched season.
// Every write clears the grace and dormant cleaned flags of the written records.
func (s *Store) RecordWatch(ctx context.Context, w Watch, scope rules.GraceScope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w.WatchedAt.IsZero() {
		w.WatchedAt = time.Now()
	}
	if w.Source == "" {
		w.Source = database.ActivitySourceWebhook
	}

	scopes := []int32{database.SeriesScope}
	if scope == rules.GraceScopeSeason {
		scopes = append(scopes, w.Season)
	}

	for _, season := range scopes {
		record := database.ActivityRecord{
			SeriesID:     w.SeriesID,
			SeasonNumber: season,
			WatchedAt:    w.WatchedAt,
			LastSeason:   &w.Season,
			LastEpisode:  &w.Episode,
			GraceCleaned: false,
			Source:       w.Source,
			UpdatedAt:    time.Now(),
		}
		if err := s.db.UpsertActivity(ctx, record); err != nil {
			return fmt.Errorf("failed to record watch of series %d: %w", w.SeriesID, err)
		}
	}

	log.Debug("Recorded watch", "series", w.SeriesID, "season", w.Season, "episode", w.Episode, "scope", scope)
	return nil
}

// RecordGrab re-arms the grace sweep for a series after new episodes were grabbed.
func (s *Store) RecordGrab(ctx context.Context, seriesID int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.ClearGraceCleaned(ctx, seriesID); err != nil {
		return fmt.Errorf("failed to clear grace flags of series %d: %w", seriesID, err)
	}
	return nil
}

// MarkGraceCleaned sets the grace cleaned flag of a scope that was found stale at pos.
// When there is no local record yet, one is created from pos so the flag has somewhere to live.
// A record that saw activity after pos.WatchedAt is left untouched and false is returned,
// a watch that raced the sweep always keeps its scope armed.
func (s *Store) MarkGraceCleaned(ctx context.Context, seriesID, season int32, pos *Position) (bool, error) {
	return s.markCleaned(ctx, seriesID, season, pos, false)
}

// MarkDormantCleaned is MarkGraceCleaned for the series-level record of a dormant series.
// Both flags are set.
func (s *Store) MarkDormantCleaned(ctx context.Context, seriesID int32, pos *Position) (bool, error) {
	return s.markCleaned(ctx, seriesID, database.SeriesScope, pos, true)
}

func (s *Store) markCleaned(ctx context.Context, seriesID, season int32, pos *Position, dormant bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.db.GetActivity(ctx, seriesID, season)
	if err != nil {
		return false, fmt.Errorf("failed to get activity of series %d: %w", seriesID, err)
	}
	if record != nil {
		if pos != nil && record.WatchedAt.After(pos.WatchedAt) {
			log.Debug("Scope saw new activity, not marking it cleaned",
				"series", seriesID, "season", season, "evaluated", pos.WatchedAt, "watched_at", record.WatchedAt)
			return false, nil
		}
		if dormant {
			err = s.db.SetDormantCleaned(ctx, seriesID)
		} else {
			err = s.db.SetGraceCleaned(ctx, seriesID, season, true)
		}
		if err != nil {
			return false, err
		}
		return true, nil
	}
	if pos == nil {
		return false, fmt.Errorf("no activity record for series %d season %d", seriesID, season)
	}

	created := database.ActivityRecord{
		SeriesID:       seriesID,
		SeasonNumber:   season,
		WatchedAt:      pos.WatchedAt,
		GraceCleaned:   true,
		DormantCleaned: dormant,
		Source:         pos.Source,
		UpdatedAt:      time.Now(),
	}
	if pos.Known && !pos.Approximate {
		created.LastSeason, created.LastEpisode = &pos.Season, &pos.Episode
	}
	if err := s.db.UpsertActivity(ctx, created); err != nil {
		return false, err
	}
	return true, nil
}

// Get returns the record of a scope, or nil.
func (s *Store) Get(ctx context.Context, seriesID, season int32) (*database.ActivityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.GetActivity(ctx, seriesID, season)
}

// List returns all records of a series.
func (s *Store) List(ctx context.Context, seriesID int32) ([]database.ActivityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.ListActivity(ctx, seriesID)
}

// SeasonRecords returns the per-season records of a series.
func (s *Store) SeasonRecords(ctx context.Context, seriesID int32) ([]database.ActivityRecord, error) {
	records, err := s.List(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	seasons := make([]database.ActivityRecord, 0, len(records))
	for _, r := range records {
		if r.SeasonNumber != database.SeriesScope {
			seasons = append(seasons, r)
		}
	}
	return seasons, nil
}

// Reset drops the whole activity history of a series.
func (s *Store) Reset(ctx context.Context, seriesID int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteActivity(ctx, seriesID); err != nil {
		return fmt.Errorf("failed to reset activity of series %d: %w", seriesID, err)
	}
	log.Info("Reset activity history", "series", seriesID)
	return nil
}
