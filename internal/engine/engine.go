package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/episweep/internal/cache"
	"github.com/jon4hz/episweep/internal/config"
	"github.com/jon4hz/episweep/internal/database"
	"github.com/jon4hz/episweep/internal/engine/activity"
	"github.com/jon4hz/episweep/internal/engine/arr"
	sonarrImpl "github.com/jon4hz/episweep/internal/engine/arr/sonarr"
	"github.com/jon4hz/episweep/internal/engine/pending"
	"github.com/jon4hz/episweep/internal/engine/rules"
	"github.com/jon4hz/episweep/internal/engine/stats"
	"github.com/jon4hz/episweep/internal/engine/stats/jellyfin"
	"github.com/jon4hz/episweep/internal/engine/stats/tautulli"
	"github.com/jon4hz/episweep/internal/metrics"
	"github.com/jon4hz/episweep/internal/notify"
	"github.com/jon4hz/episweep/internal/notify/email"
	"github.com/jon4hz/episweep/internal/notify/ntfy"
	"github.com/jon4hz/episweep/internal/policy"
	"github.com/jon4hz/episweep/internal/scheduler"
	"github.com/samber/lo"
)

var (
	// ErrSeriesNotManaged indicates that a series has no rule assigned.
	ErrSeriesNotManaged = errors.New("series is not managed")
	// ErrSeriesNotFound indicates that a series is not known to the catalog.
	ErrSeriesNotFound = errors.New("series not found")
	// ErrUnknownRule indicates that a rule name is not configured.
	ErrUnknownRule = errors.New("unknown rule")
)

// Engine wires the catalog, the watch-history sources, the activity store and the
// pending deletion queue together and runs the scheduled jobs.
type Engine struct {
	cfg       *config.Config
	db        database.DB
	sonarr    arr.Arrer
	store     *activity.Store
	resolver  *activity.Resolver
	queue     *pending.Queue
	policy    *policy.Engine
	notifier  *notify.Dispatcher
	scheduler *scheduler.Scheduler
	cache     *cache.EngineCache

	now func() time.Time
}

// New creates a new Engine instance from the configuration.
func New(cfg *config.Config, db database.DB) (*Engine, error) {
	engineCache, err := cache.NewEngineCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine cache: %w", err)
	}

	sonarrClient := sonarrImpl.New(cfg.Sonarr, engineCache)

	var notifiers []notify.Notifier
	if cfg.Ntfy != nil && cfg.Ntfy.Enabled {
		notifiers = append(notifiers, ntfy.NewClient(cfg.Ntfy))
	}
	if cfg.Email != nil && cfg.Email.Enabled {
		notifiers = append(notifiers, email.New(cfg.Email))
	}

	var policies []policy.Policy
	if cfg.StorageGate != nil && cfg.StorageGate.MinFreeGB > 0 {
		policies = append(policies, policy.NewStorageGate(cfg.StorageGate))
	}

	e, err := newEngine(cfg, db, sonarrClient, historySources(cfg), notify.NewDispatcher(notifiers...), policy.NewEngine(policies...))
	if err != nil {
		return nil, err
	}
	e.cache = engineCache
	return e, nil
}

// newEngine assembles an engine from already constructed dependencies.
func newEngine(
	cfg *config.Config,
	db database.DB,
	catalog arr.Arrer,
	sources []stats.HistorySource,
	notifier *notify.Dispatcher,
	gate *policy.Engine,
) (*Engine, error) {
	sched, err := scheduler.New(scheduler.WithResultHook(metrics.ObserveJob))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	store := activity.NewStore(db)
	engine := &Engine{
		cfg:       cfg,
		db:        db,
		sonarr:    catalog,
		store:     store,
		resolver:  activity.NewResolver(store, catalog, sources, cfg.GetHistoryTimeout()),
		queue:     pending.NewQueue(db),
		policy:    gate,
		notifier:  notifier,
		scheduler: sched,
		now:       time.Now,
	}

	if err := engine.setupJobs(); err != nil {
		return nil, fmt.Errorf("failed to setup jobs: %w", err)
	}

	return engine, nil
}

// historySources builds the configured watch-history sources in their configured order.
// Sources without configuration are skipped.
func historySources(cfg *config.Config) []stats.HistorySource {
	var sources []stats.HistorySource
	for _, name := range lo.Uniq(cfg.HistorySources) {
		switch name {
		case config.HistorySourceTautulli:
			if cfg.Tautulli == nil {
				log.Debug("Tautulli is not configured, skipping history source")
				continue
			}
			sources = append(sources, tautulli.New(cfg.Tautulli))
		case config.HistorySourceJellyfin:
			if cfg.Jellyfin == nil {
				log.Debug("Jellyfin is not configured, skipping history source")
				continue
			}
			sources = append(sources, jellyfin.New(cfg.Jellyfin))
		}
	}
	log.Info("Configured watch history sources", "sources", lo.Map(sources, func(s stats.HistorySource, _ int) string { return s.Name() }))
	return sources
}

// Queue returns the pending deletion queue.
func (e *Engine) Queue() *pending.Queue {
	return e.queue
}

// Config returns the engine configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// ruleFor returns the assignment of a managed series and its rule.
// Assignments pointing at a rule that is no longer configured fall back to the default rule.
func (e *Engine) ruleFor(ctx context.Context, seriesID int32) (*database.SeriesAssignment, rules.Rule, error) {
	assignment, err := e.db.GetSeriesAssignment(ctx, seriesID)
	if err != nil {
		return nil, rules.Rule{}, fmt.Errorf("failed to get assignment of series %d: %w", seriesID, err)
	}
	if assignment == nil {
		return nil, rules.Rule{}, fmt.Errorf("series %d: %w", seriesID, ErrSeriesNotManaged)
	}

	rule, ok := e.cfg.GetRule(assignment.RuleName)
	if !ok {
		fallback, found := e.cfg.GetRule(e.cfg.DefaultRule)
		if e.cfg.DefaultRule == "" || !found {
			return nil, rules.Rule{}, fmt.Errorf("series %d uses rule %q: %w", seriesID, assignment.RuleName, ErrUnknownRule)
		}
		log.Warn("Assigned rule is not configured anymore, using the default rule",
			"series", assignment.Title, "rule", assignment.RuleName, "default", e.cfg.DefaultRule)
		rule = fallback
	}
	return assignment, rule, nil
}

// findSeries looks a series up by id or, when the id is unknown, by title.
// A miss in the cached series list is retried once against a fresh list.
func (e *Engine) findSeries(ctx context.Context, seriesID int32, title string) (arr.Series, error) {
	for _, refresh := range []bool{false, true} {
		series, err := e.sonarr.ListSeries(ctx, refresh)
		if err != nil {
			return arr.Series{}, err
		}

		if seriesID != 0 {
			if idx := slices.IndexFunc(series, func(s arr.Series) bool { return s.ID == seriesID }); idx >= 0 {
				return series[idx], nil
			}
			continue
		}

		titles := lo.Map(series, func(s arr.Series, _ int) string { return s.Title })
		if idx := stats.BestMatch(title, titles); idx >= 0 {
			return series[idx], nil
		}
	}

	if seriesID != 0 {
		return arr.Series{}, fmt.Errorf("series %d: %w", seriesID, ErrSeriesNotFound)
	}
	return arr.Series{}, fmt.Errorf("series %q: %w", title, ErrSeriesNotFound)
}

// ClearCache empties the catalog caches.
func (e *Engine) ClearCache(ctx context.Context) {
	if e.cache != nil {
		e.cache.ClearAll(ctx)
	}
}

// CacheStats returns the statistics of the catalog caches.
func (e *Engine) CacheStats() []*cache.Stats {
	if e.cache == nil {
		return nil
	}
	return e.cache.GetStats()
}
