package engine

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/episweep/internal/engine/pending"
	"github.com/jon4hz/episweep/internal/metrics"
	"github.com/samber/lo"
)

// PendingSummary returns the grouped pending deletion queue.
func (e *Engine) PendingSummary(ctx context.Context) (*pending.Summary, error) {
	summary, err := e.queue.Summary(ctx)
	if err != nil {
		return nil, err
	}
	metrics.SetPending(summary.EpisodeCount, summary.TotalSize)
	return summary, nil
}

// PendingForSeries returns the queued entries of a single series.
func (e *Engine) PendingForSeries(ctx context.Context, seriesID int32) ([]pending.Item, error) {
	items, err := e.queue.Items(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Filter(items, func(i pending.Item, _ int) bool { return i.SeriesID == seriesID }), nil
}

// Approve deletes the files of the given queued episodes.
// Failures are reported per episode and leave the entry queued.
func (e *Engine) Approve(ctx context.Context, episodeIDs []int32) (*pending.Result, error) {
	result, err := e.queue.Approve(ctx, episodeIDs, func(ctx context.Context, item pending.Item) error {
		err := e.deleteEpisode(ctx, item.Episode)
		if err != nil {
			if evErr := e.CreateDeleteFailedEvent(ctx, item.Episode, item.RuleName, err); evErr != nil {
				log.Error("Failed to create delete failed event", "error", evErr)
			}
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, item := range result.Deleted {
		metrics.RecordDeleted("approval", item.FileSize)
		if err := e.CreateApprovedEvent(ctx, item); err != nil {
			log.Error("Failed to create approved event", "episode", item.EpisodeID, "error", err)
		}
		if err := e.CreateDeletedEvent(ctx, item.Episode, item.RuleName, item.Reason); err != nil {
			log.Error("Failed to create deleted event", "episode", item.EpisodeID, "error", err)
		}
	}
	metrics.RecordQueueDecision("approved", result.Processed)
	metrics.RecordQueueDecision("failed", len(result.Errors))
	e.refreshPendingGauge(ctx)
	return result, nil
}

// ApproveSeries approves every queued episode of a series.
func (e *Engine) ApproveSeries(ctx context.Context, seriesID int32) (*pending.Result, error) {
	ids, err := e.queue.EpisodeIDsForSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	return e.Approve(ctx, ids)
}

// ApproveSeason approves every queued episode of a season.
func (e *Engine) ApproveSeason(ctx context.Context, seriesID, season int32) (*pending.Result, error) {
	ids, err := e.queue.EpisodeIDsForSeason(ctx, seriesID, season)
	if err != nil {
		return nil, err
	}
	return e.Approve(ctx, ids)
}

// Reject removes the given episodes from the queue and protects them for the rejection cooldown.
func (e *Engine) Reject(ctx context.Context, episodeIDs []int32) (int64, error) {
	items, err := e.queue.Items(ctx)
	if err != nil {
		return 0, err
	}
	queued := lo.Filter(items, func(i pending.Item, _ int) bool { return lo.Contains(episodeIDs, i.EpisodeID) })

	n, err := e.queue.Reject(ctx, episodeIDs)
	if err != nil {
		return 0, err
	}
	for _, item := range queued {
		if err := e.CreateRejectedEvent(ctx, item); err != nil {
			log.Error("Failed to create rejected event", "episode", item.EpisodeID, "error", err)
		}
	}
	metrics.RecordQueueDecision("rejected", int(n))
	e.refreshPendingGauge(ctx)
	return n, nil
}

// RejectSeries rejects every queued episode of a series.
func (e *Engine) RejectSeries(ctx context.Context, seriesID int32) (int64, error) {
	ids, err := e.queue.EpisodeIDsForSeries(ctx, seriesID)
	if err != nil {
		return 0, err
	}
	return e.Reject(ctx, ids)
}

// ClearPending empties the queue without deleting or rejecting anything.
func (e *Engine) ClearPending(ctx context.Context) (int64, error) {
	n, err := e.queue.ClearAll(ctx)
	if err != nil {
		return 0, err
	}
	if err := e.CreateClearedEvent(ctx, n); err != nil {
		log.Error("Failed to create cleared event", "error", err)
	}
	metrics.RecordQueueDecision("cleared", int(n))
	metrics.SetPending(0, 0)
	return n, nil
}

func (e *Engine) refreshPendingGauge(ctx context.Context) {
	summary, err := e.queue.Summary(ctx)
	if err != nil {
		log.Debug("Failed to refresh pending metrics", "error", err)
		return
	}
	metrics.SetPending(summary.EpisodeCount, summary.TotalSize)
}

// cleanupRejections is the scheduled job that drops expired rejections.
func (e *Engine) cleanupRejections(ctx context.Context) error {
	if _, err := e.queue.CleanupExpiredRejections(ctx); err != nil {
		return fmt.Errorf("failed to clean up rejections: %w", err)
	}
	return nil
}
