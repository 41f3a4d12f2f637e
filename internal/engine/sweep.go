package engine

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/jon4hz/episweep/internal/database"
	"github.com/jon4hz/episweep/internal/engine/activity"
	"github.com/jon4hz/episweep/internal/engine/arr"
	"github.com/jon4hz/episweep/internal/engine/pending"
	"github.com/jon4hz/episweep/internal/engine/rules"
	"github.com/jon4hz/episweep/internal/metrics"
	"github.com/jon4hz/episweep/internal/notify"
	"github.com/mergestat/timediff"
	"github.com/samber/lo"
)

const (
	// GraceReason is the queue reason of episodes queued by the grace sweep.
	GraceReason = "Grace Period"
	// DormantReason is the queue reason of episodes of a series past its dormant threshold.
	DormantReason = "Dormant"
)

// SweepOptions control a single grace sweep pass.
type SweepOptions struct {
	// DryRun computes what would be queued without touching the queue or the activity records.
	DryRun bool
	// IgnoreStorageGate runs the pass even when the storage gate is closed.
	IgnoreStorageGate bool
}

// SweepResult summarizes a grace sweep pass.
type SweepResult struct {
	RunID          string        `json:"runId"`
	DryRun         bool          `json:"dryRun"`
	Skipped        bool          `json:"skipped"`
	SeriesChecked  int           `json:"seriesChecked"`
	SeriesStale    int           `json:"seriesStale"`
	EpisodesQueued int           `json:"episodesQueued"`
	Errors         []string      `json:"errors"`
	Duration       time.Duration `json:"duration"`
}

// staleScope is a series or season whose last activity is older than the grace period,
// or a whole series past the dormant threshold.
type staleScope struct {
	season   int32 // database.SeriesScope for the whole series
	position *activity.Position
	dormant  bool
}

func (s staleScope) reason() string {
	if s.dormant {
		return DormantReason
	}
	return GraceReason
}

// RunGraceSweep walks all managed series and queues the downloaded episodes of every scope
// that has been inactive for longer than the grace period of its rule.
// Each processed scope is flagged grace cleaned so it is only queued once per period of inactivity.
// Series past the dormant threshold of their rule have all their downloaded episodes queued, bookmarks included.
func (e *Engine) RunGraceSweep(ctx context.Context, opts SweepOptions) (*SweepResult, error) {
	start := e.now()
	result := &SweepResult{
		RunID:  uuid.NewString(),
		DryRun: opts.DryRun,
		Errors: []string{},
	}
	logger := log.With("run", result.RunID)

	if !opts.IgnoreStorageGate && e.policy != nil {
		open, err := e.policy.ShouldTriggerSweep(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate storage gate: %w", err)
		}
		if !open {
			logger.Info("Storage gate is closed, skipping grace sweep")
			result.Skipped = true
			return result, nil
		}
	}

	assignments, err := e.db.ListSeriesAssignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list managed series: %w", err)
	}

	logger.Info("Starting grace sweep", "series", len(assignments), "dry_run", opts.DryRun)

	var digest []notify.DigestSeries
	for _, assignment := range assignments {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		_, rule, err := e.ruleFor(ctx, assignment.SeriesID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", assignment.Title, err))
			continue
		}
		if !rule.GraceEnabled() && !rule.DormantEnabled() {
			continue
		}
		result.SeriesChecked++

		entries, stale, err := e.sweepSeries(ctx, logger, result.RunID, assignment, rule, opts)
		if err != nil {
			logger.Error("Grace sweep failed for series", "series", assignment.Title, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", assignment.Title, err))
		}
		if stale {
			result.SeriesStale++
		}
		if len(entries) == 0 {
			continue
		}

		result.EpisodesQueued += len(entries)
		digest = append(digest, notify.DigestSeries{
			Title:    assignment.Title,
			Reason:   entries[0].Reason,
			Seasons:  lo.Uniq(lo.Map(entries, func(en pending.Entry, _ int) int32 { return en.Episode.SeasonNumber })),
			Episodes: len(entries),
			Size:     lo.SumBy(entries, func(en pending.Entry) int64 { return en.Episode.Size }),
		})
	}

	result.Duration = e.now().Sub(start)
	metrics.ObserveGraceSweep(result.Duration, result.SeriesChecked, result.SeriesStale)

	if !opts.DryRun {
		metrics.RecordQueued("grace", result.EpisodesQueued)
		e.refreshPendingGauge(ctx)

		if err := e.notifier.Send(ctx, notify.Digest{
			Kind:   "Grace Sweep",
			RunID:  result.RunID,
			DryRun: e.cfg.DryRun,
			Time:   e.now(),
			Series: digest,
		}); err != nil {
			logger.Warn("Failed to send grace sweep digest", "error", err)
		}
	}

	logger.Info("Grace sweep completed",
		"checked", result.SeriesChecked,
		"stale", result.SeriesStale,
		"queued", result.EpisodesQueued,
		"size", humanize.IBytes(uint64(max(lo.SumBy(digest, func(d notify.DigestSeries) int64 { return d.Size }), 0))),
		"errors", len(result.Errors),
		"took", result.Duration.Round(time.Millisecond),
	)
	return result, nil
}

// sweepSeries processes a single series. It returns the entries that were queued
// (or would be queued in dry run) and whether any scope of the series was stale.
func (e *Engine) sweepSeries(ctx context.Context, logger *log.Logger, runID string, assignment database.SeriesAssignment, rule rules.Rule, opts SweepOptions) ([]pending.Entry, bool, error) {
	logger = logger.With("series", assignment.Title, "rule", rule.Name)

	scopes, err := e.staleScopes(ctx, logger, assignment, rule)
	if err != nil || len(scopes) == 0 {
		return nil, false, err
	}

	episodes, err := e.sonarr.ListEpisodes(ctx, assignment.SeriesID)
	if err != nil {
		return nil, true, fmt.Errorf("failed to list episodes: %w", err)
	}

	var queued []pending.Entry
	for _, scope := range scopes {
		candidates, ok := graceCandidates(episodes, scope, rule.GraceBookmarks && !scope.dormant)
		if !ok {
			logger.Info("Position is approximate, bookmarks cannot be kept, leaving scope for later",
				"scope", scopeName(scope.season), "source", scope.position.Source)
			continue
		}

		if !opts.DryRun {
			// The flag is set before queueing so a watch that arrived since the scope was evaluated
			// wins and nothing of the scope is queued.
			var marked bool
			if scope.dormant {
				marked, err = e.store.MarkDormantCleaned(ctx, assignment.SeriesID, scope.position)
			} else {
				marked, err = e.store.MarkGraceCleaned(ctx, assignment.SeriesID, scope.season, scope.position)
			}
			if err != nil {
				return queued, true, err
			}
			if !marked {
				logger.Info("Scope saw new activity during the sweep, skipping", "scope", scopeName(scope.season))
				continue
			}
		}

		for _, ep := range candidates {
			entry := pending.Entry{
				Episode:     ep,
				SeriesTitle: assignment.Title,
				Reason:      scope.reason(),
				RuleName:    rule.Name,
				DateSource:  string(scope.position.Source),
				DateValue:   scope.position.WatchedAt,
			}
			if opts.DryRun {
				queued = append(queued, entry)
				continue
			}

			added, err := e.queue.Enqueue(ctx, entry)
			if err != nil {
				return queued, true, err
			}
			if !added {
				continue
			}
			queued = append(queued, entry)
			if err := e.CreateQueuedEvent(ctx, entry, runID); err != nil {
				logger.Error("Failed to create queued event", "error", err)
			}
		}

		if opts.DryRun {
			continue
		}
		if scope.dormant {
			err = e.CreateDormantCleanedEvent(ctx, assignment.SeriesID, rule.Name, runID)
		} else {
			err = e.CreateGraceCleanedEvent(ctx, assignment.SeriesID, scope.season, rule.Name, runID)
		}
		if err != nil {
			logger.Error("Failed to create cleaned event", "error", err)
		}
		logger.Info("Scope went stale",
			"scope", scopeName(scope.season),
			"reason", scope.reason(),
			"last_activity", timediff.TimeDiff(scope.position.WatchedAt, timediff.WithStartTime(e.now())),
			"source", scope.position.Source,
			"candidates", len(candidates),
		)
	}
	return queued, true, nil
}

// staleScopes returns the scopes of a series that are due for cleanup.
// The dormant tier is checked first and, when the series is dormant, is the only scope returned.
func (e *Engine) staleScopes(ctx context.Context, logger *log.Logger, assignment database.SeriesAssignment, rule rules.Rule) ([]staleScope, error) {
	if rule.DormantEnabled() {
		local, err := e.store.Get(ctx, assignment.SeriesID, database.SeriesScope)
		if err != nil {
			return nil, err
		}
		if local != nil && local.DormantCleaned {
			return nil, nil
		}
		pos := e.resolver.Resolve(ctx, assignment.SeriesID, assignment.Title, false)
		if pos != nil && e.now().Sub(pos.WatchedAt) > days(rule.DormantDays) {
			return []staleScope{{season: database.SeriesScope, position: pos, dormant: true}}, nil
		}
	}
	if !rule.GraceEnabled() {
		return nil, nil
	}
	return e.graceScopes(ctx, logger, assignment, rule)
}

// graceScopes returns the scopes of a series whose activity is older than the grace period
// and that were not grace cleaned yet. Season scope without any season record falls back to series scope.
func (e *Engine) graceScopes(ctx context.Context, logger *log.Logger, assignment database.SeriesAssignment, rule rules.Rule) ([]staleScope, error) {
	threshold := days(rule.GraceDays)
	now := e.now()

	if rules.GraceScope(assignment.GraceScope) == rules.GraceScopeSeason {
		records, err := e.store.SeasonRecords(ctx, assignment.SeriesID)
		if err != nil {
			return nil, err
		}
		if len(records) > 0 {
			var scopes []staleScope
			for _, record := range records {
				if record.GraceCleaned || now.Sub(record.WatchedAt) <= threshold {
					continue
				}
				if pos := e.resolver.ResolveSeason(ctx, assignment.SeriesID, record.SeasonNumber); pos != nil {
					scopes = append(scopes, staleScope{season: record.SeasonNumber, position: pos})
				}
			}
			return scopes, nil
		}
		logger.Debug("No season activity, falling back to series scope")
	}

	local, err := e.store.Get(ctx, assignment.SeriesID, database.SeriesScope)
	if err != nil {
		return nil, err
	}
	if local != nil && local.GraceCleaned {
		return nil, nil
	}

	pos := e.resolver.Resolve(ctx, assignment.SeriesID, assignment.Title, rule.GraceBookmarks)
	if pos == nil {
		logger.Debug("No activity found, skipping")
		return nil, nil
	}
	if now.Sub(pos.WatchedAt) <= threshold {
		return nil, nil
	}
	return []staleScope{{season: database.SeriesScope, position: pos}}, nil
}

// graceCandidates returns the downloaded episodes of a stale scope.
// With bookmarks the last watched and the first unwatched episode are kept, which needs an exact position.
func graceCandidates(episodes []arr.Episode, scope staleScope, bookmarks bool) ([]arr.Episode, bool) {
	inScope := slices.Clone(episodes)
	if scope.season != database.SeriesScope {
		inScope = lo.Filter(inScope, func(ep arr.Episode, _ int) bool { return ep.SeasonNumber == scope.season })
	}
	arr.SortEpisodes(inScope)

	var keep []int32
	if bookmarks {
		pos := scope.position
		if !pos.Known || pos.Approximate {
			return nil, false
		}
		if watched, err := arr.FindEpisode(inScope, pos.Season, pos.Episode); err == nil {
			keep = append(keep, watched.ID)
		}
		if idx := slices.IndexFunc(inScope, func(ep arr.Episode) bool { return ep.After(pos.Season, pos.Episode) }); idx >= 0 {
			keep = append(keep, inScope[idx].ID)
		}
	}

	return lo.Filter(inScope, func(ep arr.Episode, _ int) bool {
		return ep.Downloaded() && !slices.Contains(keep, ep.ID)
	}), true
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

func scopeName(season int32) string {
	if season == database.SeriesScope {
		return "series"
	}
	return fmt.Sprintf("season %d", season)
}

// runGraceSweep is the scheduled grace sweep job.
func (e *Engine) runGraceSweep(ctx context.Context) error {
	_, err := e.RunGraceSweep(ctx, SweepOptions{})
	return err
}
