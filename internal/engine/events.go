package engine

import (
	"context"
	"fmt"

	"github.com/jon4hz/episweep/internal/database"
	"github.com/jon4hz/episweep/internal/engine/arr"
	"github.com/jon4hz/episweep/internal/engine/pending"
)

// CreateWatchedEvent creates a history event when an episode was watched.
func (e *Engine) CreateWatchedEvent(ctx context.Context, episode arr.Episode, ruleName string, source database.ActivitySource) error {
	event := database.HistoryEvent{
		EventType: database.HistoryEventWatched,
		SeriesID:  episode.SeriesID,
		EpisodeID: episode.ID,
		RuleName:  ruleName,
		Detail:    fmt.Sprintf("S%02dE%02d via %s", episode.SeasonNumber, episode.EpisodeNumber, source),
	}
	return e.db.CreateHistoryEvent(ctx, event)
}

// CreateGrabbedEvent creates a history event when Sonarr grabbed a release of a series.
func (e *Engine) CreateGrabbedEvent(ctx context.Context, seriesID int32) error {
	event := database.HistoryEvent{
		EventType: database.HistoryEventGrabbed,
		SeriesID:  seriesID,
	}
	return e.db.CreateHistoryEvent(ctx, event)
}

// CreateQueuedEvent creates a history event when an episode was added to the pending deletion queue.
func (e *Engine) CreateQueuedEvent(ctx context.Context, entry pending.Entry, runID string) error {
	event := database.HistoryEvent{
		EventType: database.HistoryEventQueued,
		SeriesID:  entry.Episode.SeriesID,
		EpisodeID: entry.Episode.ID,
		RuleName:  entry.RuleName,
		Detail:    entry.Reason,
		RunID:     runID,
	}
	return e.db.CreateHistoryEvent(ctx, event)
}

// CreateApprovedEvent creates a history event when a queued deletion was approved.
func (e *Engine) CreateApprovedEvent(ctx context.Context, item pending.Item) error {
	event := database.HistoryEvent{
		EventType: database.HistoryEventApproved,
		SeriesID:  item.SeriesID,
		EpisodeID: item.EpisodeID,
		RuleName:  item.RuleName,
		Detail:    item.Reason,
	}
	return e.db.CreateHistoryEvent(ctx, event)
}

// CreateRejectedEvent creates a history event when a queued deletion was rejected.
func (e *Engine) CreateRejectedEvent(ctx context.Context, item pending.Item) error {
	event := database.HistoryEvent{
		EventType: database.HistoryEventRejected,
		SeriesID:  item.SeriesID,
		EpisodeID: item.EpisodeID,
		RuleName:  item.RuleName,
	}
	return e.db.CreateHistoryEvent(ctx, event)
}

// CreateDeletedEvent creates a history event when an episode file was deleted.
func (e *Engine) CreateDeletedEvent(ctx context.Context, episode arr.Episode, ruleName, reason string) error {
	event := database.HistoryEvent{
		EventType: database.HistoryEventDeleted,
		SeriesID:  episode.SeriesID,
		EpisodeID: episode.ID,
		RuleName:  ruleName,
		Detail:    reason,
	}
	return e.db.CreateHistoryEvent(ctx, event)
}

// CreateDeleteFailedEvent creates a history event when deleting an episode file failed.
func (e *Engine) CreateDeleteFailedEvent(ctx context.Context, episode arr.Episode, ruleName string, cause error) error {
	event := database.HistoryEvent{
		EventType: database.HistoryEventDeleteFailed,
		SeriesID:  episode.SeriesID,
		EpisodeID: episode.ID,
		RuleName:  ruleName,
		Detail:    cause.Error(),
	}
	return e.db.CreateHistoryEvent(ctx, event)
}

// CreateClearedEvent creates a history event when the whole queue was cleared.
func (e *Engine) CreateClearedEvent(ctx context.Context, count int64) error {
	event := database.HistoryEvent{
		EventType: database.HistoryEventCleared,
		Detail:    fmt.Sprintf("%d entries", count),
	}
	return e.db.CreateHistoryEvent(ctx, event)
}

// CreateGraceCleanedEvent creates a history event when the grace sweep processed a stale scope.
func (e *Engine) CreateGraceCleanedEvent(ctx context.Context, seriesID, season int32, ruleName, runID string) error {
	detail := "series"
	if season != database.SeriesScope {
		detail = fmt.Sprintf("season %d", season)
	}
	event := database.HistoryEvent{
		EventType: database.HistoryEventGraceCleaned,
		SeriesID:  seriesID,
		RuleName:  ruleName,
		Detail:    detail,
		RunID:     runID,
	}
	return e.db.CreateHistoryEvent(ctx, event)
}

// CreateDormantCleanedEvent creates a history event when a dormant series was queued.
func (e *Engine) CreateDormantCleanedEvent(ctx context.Context, seriesID int32, ruleName, runID string) error {
	event := database.HistoryEvent{
		EventType: database.HistoryEventDormantCleaned,
		SeriesID:  seriesID,
		RuleName:  ruleName,
		Detail:    "series",
		RunID:     runID,
	}
	return e.db.CreateHistoryEvent(ctx, event)
}

// CreateRuleAssignedEvent creates a history event when a series was assigned to a rule.
func (e *Engine) CreateRuleAssignedEvent(ctx context.Context, assignment database.SeriesAssignment) error {
	event := database.HistoryEvent{
		EventType: database.HistoryEventRuleAssigned,
		SeriesID:  assignment.SeriesID,
		RuleName:  assignment.RuleName,
		Detail:    fmt.Sprintf("%s scope via %s", assignment.GraceScope, assignment.Source),
	}
	return e.db.CreateHistoryEvent(ctx, event)
}

// GetHistory returns a page of history events, newest first.
func (e *Engine) GetHistory(ctx context.Context, filter database.HistoryFilter) ([]database.HistoryEvent, int64, error) {
	return e.db.GetHistoryEvents(ctx, filter)
}
