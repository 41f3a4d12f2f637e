package engine

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
	"github.com/jon4hz/episweep/internal/scheduler"
)

// Job ids of the scheduled jobs.
const (
	JobGraceSweep       = "grace_sweep"
	JobTagSync          = "tag_sync"
	JobRejectionCleanup = "rejection_cleanup"
	JobHistoryPrune     = "history_prune"
)

// GetScheduler returns the scheduler instance for API access.
func (e *Engine) GetScheduler() *scheduler.Scheduler {
	return e.scheduler
}

// Run syncs the rule assignments, starts the engine and all its background jobs
// and blocks until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := e.SyncRuleTags(ctx); err != nil {
		log.Error("Initial rule assignment sync failed", "error", err)
	}

	e.scheduler.Start()

	<-ctx.Done()
	return nil
}

// Close stops the engine and cleans up resources.
func (e *Engine) Close() error {
	return e.scheduler.Stop()
}

// setupJobs configures all scheduled jobs.
func (e *Engine) setupJobs() error {
	graceSchedule := "0 */6 * * *"
	runOnStart := false
	if e.cfg.Grace != nil {
		if e.cfg.Grace.Schedule != "" {
			graceSchedule = e.cfg.Grace.Schedule
		}
		runOnStart = e.cfg.Grace.RunOnStart
	}

	if err := e.scheduler.AddSingletonJob(
		JobGraceSweep,
		"Grace Sweep",
		"Queues the episodes of series that have not been watched within their grace period",
		graceSchedule,
		gocron.CronJob(graceSchedule, false),
		e.runGraceSweep,
		runOnStart,
	); err != nil {
		return fmt.Errorf("failed to add grace sweep job: %w", err)
	}

	if e.cfg.TagSync != nil && e.cfg.TagSync.Enabled {
		if err := e.scheduler.AddSingletonJob(
			JobTagSync,
			"Rule Tag Sync",
			"Assigns series to rules based on their Sonarr tags",
			e.cfg.TagSync.Schedule,
			gocron.CronJob(e.cfg.TagSync.Schedule, false),
			e.syncRuleTags,
			false,
		); err != nil {
			return fmt.Errorf("failed to add tag sync job: %w", err)
		}
	}

	dailySchedule := "0 3 * * *" // Every day at 3am
	if err := e.scheduler.AddSingletonJob(
		JobRejectionCleanup,
		"Rejection Cleanup",
		"Removes rejections whose cooldown has expired",
		dailySchedule,
		gocron.CronJob(dailySchedule, false),
		e.cleanupRejections,
		false,
	); err != nil {
		return fmt.Errorf("failed to add rejection cleanup job: %w", err)
	}

	if err := e.scheduler.AddSingletonJob(
		JobHistoryPrune,
		"History Prune",
		"Deletes history events older than the retention period",
		dailySchedule,
		gocron.CronJob(dailySchedule, false),
		e.pruneHistory,
		false,
	); err != nil {
		return fmt.Errorf("failed to add history prune job: %w", err)
	}

	log.Info("Scheduled jobs configured successfully")
	return nil
}

// pruneHistory deletes history events older than the retention period.
func (e *Engine) pruneHistory(ctx context.Context) error {
	n, err := e.db.PruneHistoryEvents(ctx, e.now().Add(-e.cfg.GetHistoryRetention()))
	if err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}
	if n > 0 {
		log.Info("Pruned history events", "count", n)
	}
	return nil
}
