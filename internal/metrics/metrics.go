package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	watchEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "episweep_watch_events_total",
		Help: "Watch events processed by outcome",
	}, []string{"outcome"}) // outcome=processed|unmanaged|failed

	episodesMonitoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "episweep_episodes_monitored_total",
		Help: "Episodes monitored by the get rule",
	})

	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "episweep_searches_total",
		Help: "Search commands sent to the catalog",
	}, []string{"kind"}) // kind=episode|season

	episodesDeletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "episweep_episodes_deleted_total",
		Help: "Episode files deleted by trigger",
	}, []string{"trigger"}) // trigger=keep_rule|approval

	deletedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "episweep_deleted_bytes_total",
		Help: "Bytes freed by deleted episode files",
	})

	episodesQueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "episweep_episodes_queued_total",
		Help: "Episodes added to the pending deletion queue by reason",
	}, []string{"reason"}) // reason=grace|keep_rule

	queueDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "episweep_queue_decisions_total",
		Help: "Decisions on queued episodes",
	}, []string{"decision"}) // decision=approved|rejected|cleared|failed

	pendingEpisodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "episweep_pending_episodes",
		Help: "Episodes currently waiting for approval",
	})

	pendingBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "episweep_pending_bytes",
		Help: "Size of the episodes currently waiting for approval",
	})

	graceSweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "episweep_grace_sweep_duration_seconds",
		Help:    "Duration of grace sweep passes",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	graceSweepSeries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "episweep_grace_sweep_series",
		Help: "Series seen by the last grace sweep",
	}, []string{"state"}) // state=checked|stale

	historySourceRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "episweep_history_source_requests_total",
		Help: "Watch history lookups by source and outcome",
	}, []string{"source", "outcome"}) // outcome=hit|miss|error

	jobRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "episweep_job_runs_total",
		Help: "Scheduled job runs by outcome",
	}, []string{"job", "outcome"}) // outcome=success|failure

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "episweep_job_duration_seconds",
		Help:    "Duration of scheduled job runs",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
)

// RecordWatchEvent counts a processed watch event.
func RecordWatchEvent(outcome string) {
	watchEventsTotal.WithLabelValues(outcome).Inc()
}

// RecordMonitored counts episodes monitored by the get rule.
func RecordMonitored(n int) {
	episodesMonitoredTotal.Add(float64(n))
}

// RecordSearch counts a search command.
func RecordSearch(kind string) {
	searchesTotal.WithLabelValues(kind).Inc()
}

// RecordDeleted counts a deleted episode file.
func RecordDeleted(trigger string, size int64) {
	episodesDeletedTotal.WithLabelValues(trigger).Inc()
	if size > 0 {
		deletedBytesTotal.Add(float64(size))
	}
}

// RecordQueued counts episodes added to the queue.
func RecordQueued(reason string, n int) {
	episodesQueuedTotal.WithLabelValues(reason).Add(float64(n))
}

// RecordQueueDecision counts decisions on queued episodes.
func RecordQueueDecision(decision string, n int) {
	queueDecisionsTotal.WithLabelValues(decision).Add(float64(n))
}

// SetPending updates the queue gauges.
func SetPending(episodes int, bytes int64) {
	pendingEpisodes.Set(float64(episodes))
	pendingBytes.Set(float64(bytes))
}

// ObserveGraceSweep records a finished sweep pass.
func ObserveGraceSweep(d time.Duration, checked, stale int) {
	graceSweepDuration.Observe(d.Seconds())
	graceSweepSeries.WithLabelValues("checked").Set(float64(checked))
	graceSweepSeries.WithLabelValues("stale").Set(float64(stale))
}

// RecordHistoryLookup counts a lookup against a watch history source.
func RecordHistoryLookup(source, outcome string) {
	historySourceRequestsTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveJob records a scheduled job run.
func ObserveJob(job string, d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	jobRunsTotal.WithLabelValues(job, outcome).Inc()
	jobDuration.WithLabelValues(job).Observe(d.Seconds())
}
