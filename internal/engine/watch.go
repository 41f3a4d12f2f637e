package engine

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/episweep/internal/database"
	"github.com/jon4hz/episweep/internal/engine/activity"
	"github.com/jon4hz/episweep/internal/engine/arr"
	"github.com/jon4hz/episweep/internal/engine/pending"
	"github.com/jon4hz/episweep/internal/engine/rules"
	"github.com/jon4hz/episweep/internal/metrics"
	"github.com/samber/lo"
)

// WatchEvent is a playback of a single episode reported by a webhook.
type WatchEvent struct {
	// SeriesID is the Sonarr series id. When it is 0 the series is looked up by SeriesTitle.
	SeriesID    int32                   `json:"seriesId"`
	SeriesTitle string                  `json:"seriesTitle"`
	Season      int32                   `json:"season"`
	Episode     int32                   `json:"episode"`
	WatchedAt   time.Time               `json:"watchedAt"`
	Source      database.ActivitySource `json:"source"`
}

// WatchResult describes what a watch event changed in the catalog.
type WatchResult struct {
	SeriesID        int32    `json:"seriesId"`
	SeriesTitle     string   `json:"seriesTitle"`
	Rule            string   `json:"rule"`
	Unmonitored     []int32  `json:"unmonitored"`
	Monitored       []int32  `json:"monitored"`
	Searched        []int32  `json:"searched"`
	SeasonsSearched []int32  `json:"seasonsSearched"`
	Deleted         []int32  `json:"deleted"`
	Queued          []int32  `json:"queued"`
	Errors          []string `json:"errors"`
}

func (r *WatchResult) addError(err error) {
	r.Errors = append(r.Errors, err.Error())
}

// ProcessWatch records a watch event and applies the rule of the series:
// the next episodes are monitored (and searched), episodes leaving the keep block are
// deleted or queued. Catalog failures after the activity was recorded are collected in the result.
func (e *Engine) ProcessWatch(ctx context.Context, ev WatchEvent) (*WatchResult, error) {
	series, err := e.findSeries(ctx, ev.SeriesID, ev.SeriesTitle)
	if err != nil {
		metrics.RecordWatchEvent("failed")
		return nil, err
	}

	assignment, rule, err := e.ruleFor(ctx, series.ID)
	if err != nil {
		metrics.RecordWatchEvent("unmanaged")
		return nil, err
	}

	logger := log.With("series", series.Title, "season", ev.Season, "episode", ev.Episode, "rule", rule.Name)

	if ev.WatchedAt.IsZero() {
		ev.WatchedAt = e.now()
	}
	if ev.Source == "" {
		ev.Source = database.ActivitySourceWebhook
	}

	if err := e.store.RecordWatch(ctx, activity.Watch{
		SeriesID:  series.ID,
		Season:    ev.Season,
		Episode:   ev.Episode,
		WatchedAt: ev.WatchedAt,
		Source:    ev.Source,
	}, rules.GraceScope(assignment.GraceScope)); err != nil {
		metrics.RecordWatchEvent("failed")
		return nil, err
	}

	episodes, err := e.sonarr.ListEpisodes(ctx, series.ID)
	if err != nil {
		metrics.RecordWatchEvent("failed")
		return nil, fmt.Errorf("failed to list episodes of %s: %w", series.Title, err)
	}

	current, err := arr.FindEpisode(episodes, ev.Season, ev.Episode)
	if err != nil {
		metrics.RecordWatchEvent("failed")
		return nil, fmt.Errorf("%s S%02dE%02d: %w", series.Title, ev.Season, ev.Episode, err)
	}

	if err := e.CreateWatchedEvent(ctx, current, rule.Name, ev.Source); err != nil {
		logger.Error("Failed to create watched event", "error", err)
	}

	result := &WatchResult{
		SeriesID:    series.ID,
		SeriesTitle: series.Title,
		Rule:        rule.Name,
		Errors:      []string{},
	}

	if !rule.MonitorWatched && current.Monitored {
		if err := e.sonarr.SetMonitored(ctx, []int32{current.ID}, false); err != nil {
			logger.Error("Failed to unmonitor watched episode", "error", err)
			result.addError(err)
		} else {
			result.Unmonitored = append(result.Unmonitored, current.ID)
		}
	}

	e.fetchNext(ctx, logger, series, episodes, current, rule, result)
	e.applyKeepRule(ctx, logger, series, episodes, ev, rule, result)

	logger.Info("Processed watch event",
		"monitored", len(result.Monitored),
		"searched", len(result.Searched)+len(result.SeasonsSearched),
		"deleted", len(result.Deleted),
		"queued", len(result.Queued),
		"errors", len(result.Errors),
	)
	metrics.RecordWatchEvent("processed")
	return result, nil
}

// fetchNext monitors the episodes selected by the get rule and, with the search action, searches them.
func (e *Engine) fetchNext(ctx context.Context, logger *log.Logger, series arr.Series, episodes []arr.Episode, current arr.Episode, rule rules.Rule, result *WatchResult) {
	next := rules.NextEpisodes(episodes, current.SeasonNumber, current.EpisodeNumber, rule.GetType, rule.GetCount)
	if len(next) == 0 {
		logger.Debug("No further episodes to fetch")
		return
	}

	toMonitor := lo.FilterMap(next, func(ep arr.Episode, _ int) (int32, bool) {
		return ep.ID, !ep.Monitored
	})
	if err := e.sonarr.SetMonitored(ctx, toMonitor, true); err != nil {
		logger.Error("Failed to monitor next episodes", "episodes", len(toMonitor), "error", err)
		result.addError(err)
		return
	}
	result.Monitored = toMonitor
	metrics.RecordMonitored(len(toMonitor))

	if rule.Action != rules.ActionSearch {
		return
	}

	missing := lo.Filter(next, func(ep arr.Episode, _ int) bool { return !ep.HasFile })
	if len(missing) == 0 {
		return
	}

	var fullSeasons []int32
	if rule.GetType == rules.TypeSeasons {
		fullSeasons = rules.NextFullSeasons(episodes, current.SeasonNumber, current.EpisodeNumber, rule.GetCount)
	}
	for _, season := range fullSeasons {
		if !lo.ContainsBy(missing, func(ep arr.Episode) bool { return ep.SeasonNumber == season }) {
			continue
		}
		if err := e.sonarr.SearchSeason(ctx, series.ID, season); err != nil {
			logger.Error("Failed to search season", "search_season", season, "error", err)
			result.addError(err)
			continue
		}
		result.SeasonsSearched = append(result.SeasonsSearched, season)
		metrics.RecordSearch("season")
	}

	episodeIDs := lo.FilterMap(missing, func(ep arr.Episode, _ int) (int32, bool) {
		return ep.ID, !slices.Contains(fullSeasons, ep.SeasonNumber)
	})
	if len(episodeIDs) == 0 {
		return
	}
	if err := e.sonarr.SearchEpisodes(ctx, episodeIDs); err != nil {
		logger.Error("Failed to search episodes", "episodes", len(episodeIDs), "error", err)
		result.addError(err)
		return
	}
	result.Searched = episodeIDs
	metrics.RecordSearch("episode")
}

// applyKeepRule deletes the downloaded episodes that left the keep block, or queues them in dry run.
// Episodes under a live rejection are left alone. Deleted episodes are dropped from the queue.
func (e *Engine) applyKeepRule(ctx context.Context, logger *log.Logger, series arr.Series, episodes []arr.Episode, ev WatchEvent, rule rules.Rule, result *WatchResult) {
	leaving := rules.EpisodesLeavingKeepBlock(episodes, rule.KeepType, rule.KeepCount, ev.Season, ev.Episode)
	if len(leaving) == 0 {
		return
	}

	reason := fmt.Sprintf("Keep Rule (%s)", rule.KeepDescription())
	for _, ep := range leaving {
		rejected, err := e.queue.IsRejected(ctx, ep.ID)
		if err != nil {
			logger.Error("Failed to check rejection", "episode_id", ep.ID, "error", err)
			result.addError(err)
			continue
		}
		if rejected {
			logger.Debug("Episode is protected by a rejection, keeping it", "episode_id", ep.ID)
			continue
		}

		if rule.DryRun {
			entry := pending.Entry{
				Episode:     ep,
				SeriesTitle: series.Title,
				Reason:      reason,
				RuleName:    rule.Name,
				DateSource:  string(ev.Source),
				DateValue:   ev.WatchedAt,
			}
			added, err := e.queue.Enqueue(ctx, entry)
			if err != nil {
				result.addError(err)
				continue
			}
			if added {
				result.Queued = append(result.Queued, ep.ID)
				metrics.RecordQueued("keep_rule", 1)
				if err := e.CreateQueuedEvent(ctx, entry, ""); err != nil {
					logger.Error("Failed to create queued event", "error", err)
				}
			}
			continue
		}

		if err := e.deleteEpisode(ctx, ep); err != nil {
			logger.Error("Failed to delete episode", "episode_id", ep.ID, "error", err)
			result.addError(err)
			if err := e.CreateDeleteFailedEvent(ctx, ep, rule.Name, err); err != nil {
				logger.Error("Failed to create delete failed event", "error", err)
			}
			continue
		}
		result.Deleted = append(result.Deleted, ep.ID)
		metrics.RecordDeleted("keep_rule", ep.Size)
		if err := e.CreateDeletedEvent(ctx, ep, rule.Name, reason); err != nil {
			logger.Error("Failed to create deleted event", "error", err)
		}
	}

	// A deleted episode may still sit in the queue from an earlier sweep.
	if _, err := e.queue.Remove(ctx, result.Deleted); err != nil {
		logger.Error("Failed to remove deleted episodes from the queue", "error", err)
		result.addError(err)
	}
	e.refreshPendingGauge(ctx)
}

// deleteEpisode removes the file of an episode and unmonitors it so it is not fetched again.
func (e *Engine) deleteEpisode(ctx context.Context, ep arr.Episode) error {
	if ep.EpisodeFileID == 0 {
		return pending.ErrNoEpisodeFile
	}
	if err := e.sonarr.DeleteEpisodeFile(ctx, ep.EpisodeFileID); err != nil {
		return err
	}
	if err := e.sonarr.SetMonitored(ctx, []int32{ep.ID}, false); err != nil {
		return fmt.Errorf("file deleted but unmonitoring failed: %w", err)
	}
	return nil
}

// ProcessGrab re-arms the grace sweep of a series after Sonarr grabbed new episodes.
func (e *Engine) ProcessGrab(ctx context.Context, seriesID int32) error {
	if _, _, err := e.ruleFor(ctx, seriesID); err != nil {
		return err
	}
	if err := e.store.RecordGrab(ctx, seriesID); err != nil {
		return err
	}
	if err := e.CreateGrabbedEvent(ctx, seriesID); err != nil {
		log.Error("Failed to create grabbed event", "series", seriesID, "error", err)
	}
	log.Debug("Processed grab", "series", seriesID)
	return nil
}

// Activity returns the local activity records of a series together with the resolved position.
func (e *Engine) Activity(ctx context.Context, seriesID int32) ([]database.ActivityRecord, *activity.Position, error) {
	assignment, err := e.db.GetSeriesAssignment(ctx, seriesID)
	if err != nil {
		return nil, nil, err
	}
	title := ""
	if assignment != nil {
		title = assignment.Title
	}

	records, err := e.store.List(ctx, seriesID)
	if err != nil {
		return nil, nil, err
	}
	return records, e.resolver.Resolve(ctx, seriesID, title, false), nil
}
