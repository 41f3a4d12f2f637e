package engine

import (
	"context"
	"errors"
	"time"

	"github.com/jon4hz/episweep/internal/database"
	"github.com/jon4hz/episweep/internal/engine/activity"
	"github.com/jon4hz/episweep/internal/engine/arr"
	arrmock "github.com/jon4hz/episweep/internal/engine/arr/mock"
	"github.com/jon4hz/episweep/internal/engine/pending"
	"github.com/jon4hz/episweep/internal/engine/rules"
	"github.com/jon4hz/episweep/internal/policy"
)

func (s *EngineTestSuite) watchedAgo(seriesID, season, episode int32, days int, scope rules.GraceScope) {
	s.Require().NoError(s.engine.store.RecordWatch(s.ctx, activity.Watch{
		SeriesID:  seriesID,
		Season:    season,
		Episode:   episode,
		WatchedAt: time.Now().AddDate(0, 0, -days),
	}, scope))
}

func (s *EngineTestSuite) TestGraceSweepQueuesStaleSeries() {
	s.assign(expanseID, "default")
	s.watchedAgo(expanseID, 1, 4, 20, rules.GraceScopeSeries)

	result, err := s.engine.RunGraceSweep(s.ctx, SweepOptions{})
	s.Require().NoError(err)

	s.False(result.Skipped)
	s.NotEmpty(result.RunID)
	s.Equal(1, result.SeriesChecked)
	s.Equal(1, result.SeriesStale)
	s.Equal(4, result.EpisodesQueued)
	s.Empty(result.Errors)
	s.Equal([]int32{
		epID(expanseID, 1, 1), epID(expanseID, 1, 2), epID(expanseID, 1, 3), epID(expanseID, 1, 4),
	}, s.pendingIDs())

	record, err := s.engine.store.Get(s.ctx, expanseID, database.SeriesScope)
	s.Require().NoError(err)
	s.True(record.GraceCleaned)

	queued := s.db.HistoryEvents(database.HistoryEventQueued)
	s.Require().Len(queued, 4)
	s.Equal(result.RunID, queued[0].RunID)
	s.Len(s.db.HistoryEvents(database.HistoryEventGraceCleaned), 1)

	digests := s.notifier.Digests()
	s.Require().Len(digests, 1)
	s.Equal(result.RunID, digests[0].RunID)
	s.Require().Len(digests[0].Series, 1)
	s.Equal("The Expanse", digests[0].Series[0].Title)
	s.Equal([]int32{1}, digests[0].Series[0].Seasons)
	s.Equal(4, digests[0].TotalEpisodes())
	s.Equal(int64(4<<30), digests[0].TotalSize())

	// the scope stays cleaned until new activity arrives
	result, err = s.engine.RunGraceSweep(s.ctx, SweepOptions{})
	s.Require().NoError(err)
	s.Zero(result.SeriesStale)
	s.Zero(result.EpisodesQueued)
	s.Len(s.notifier.Digests(), 1, "empty digests are not sent")
}

func (s *EngineTestSuite) TestGraceSweepSkipsRecentActivity() {
	s.assign(expanseID, "default")
	s.watchedAgo(expanseID, 1, 4, 3, rules.GraceScopeSeries)

	result, err := s.engine.RunGraceSweep(s.ctx, SweepOptions{})
	s.Require().NoError(err)
	s.Equal(1, result.SeriesChecked)
	s.Zero(result.SeriesStale)
	s.Empty(s.pendingIDs())
}

func (s *EngineTestSuite) TestGraceSweepSkipsRulesWithoutGrace() {
	s.assign(expanseID, "archive")
	s.watchedAgo(expanseID, 1, 4, 400, rules.GraceScopeSeries)

	result, err := s.engine.RunGraceSweep(s.ctx, SweepOptions{})
	s.Require().NoError(err)
	s.Zero(result.SeriesChecked)
	s.Empty(s.pendingIDs())
}

func (s *EngineTestSuite) TestGraceSweepUsesExternalHistory() {
	s.assign(expanseID, "default")
	s.tautulli.SetWatch("The Expanse", time.Now().AddDate(0, 0, -30), 1, 2)

	result, err := s.engine.RunGraceSweep(s.ctx, SweepOptions{})
	s.Require().NoError(err)
	s.Equal(4, result.EpisodesQueued)

	items, err := s.engine.Queue().Items(s.ctx)
	s.Require().NoError(err)
	s.Equal(string(database.ActivitySourceTautulli), items[0].DateSource)

	record, err := s.engine.store.Get(s.ctx, expanseID, database.SeriesScope)
	s.Require().NoError(err)
	s.Require().NotNil(record, "a local record is created to hold the grace flag")
	s.True(record.GraceCleaned)
	s.Equal(database.ActivitySourceTautulli, record.Source)
	s.Require().True(record.HasPosition())
	s.Equal(int32(2), *record.LastEpisode)
}

func (s *EngineTestSuite) TestGraceSweepFallsBackToFileDates() {
	s.assign(expanseID, "default")

	result, err := s.engine.RunGraceSweep(s.ctx, SweepOptions{})
	s.Require().NoError(err)
	s.Equal(4, result.EpisodesQueued)

	items, err := s.engine.Queue().Items(s.ctx)
	s.Require().NoError(err)
	s.Equal(string(database.ActivitySourceFileDate), items[0].DateSource)
	s.Equal(GraceReason, items[0].Reason)
}

func (s *EngineTestSuite) TestGraceSweepSeasonScopeKeepsBookmarks() {
	s.assign(darkID, "binge")
	s.watchedAgo(darkID, 1, 2, 40, rules.GraceScopeSeason)

	result, err := s.engine.RunGraceSweep(s.ctx, SweepOptions{})
	s.Require().NoError(err)
	s.Equal(1, result.SeriesStale)
	s.Equal([]int32{epID(darkID, 1, 1), epID(darkID, 1, 4)}, s.pendingIDs())

	season, err := s.engine.store.Get(s.ctx, darkID, 1)
	s.Require().NoError(err)
	s.True(season.GraceCleaned)

	series, err := s.engine.store.Get(s.ctx, darkID, database.SeriesScope)
	s.Require().NoError(err)
	s.False(series.GraceCleaned, "only the stale season is flagged")
}

func (s *EngineTestSuite) TestGraceSweepBookmarksNeedExactPosition() {
	s.assign(expanseID, "bookmarked")

	result, err := s.engine.RunGraceSweep(s.ctx, SweepOptions{})
	s.Require().NoError(err)
	s.Equal(1, result.SeriesStale)
	s.Zero(result.EpisodesQueued)
	s.Empty(s.pendingIDs())

	record, err := s.engine.store.Get(s.ctx, expanseID, database.SeriesScope)
	s.Require().NoError(err)
	s.Nil(record, "approximate scopes are left for a later pass")
}

func (s *EngineTestSuite) TestGraceSweepStorageGate() {
	s.Require().NoError(s.engine.Close())
	s.engine = s.newEngine(policy.NewEngine(gatePolicy{open: false}))
	s.assign(expanseID, "default")
	s.watchedAgo(expanseID, 1, 4, 20, rules.GraceScopeSeries)

	result, err := s.engine.RunGraceSweep(s.ctx, SweepOptions{})
	s.Require().NoError(err)
	s.True(result.Skipped)
	s.Empty(s.pendingIDs())

	result, err = s.engine.RunGraceSweep(s.ctx, SweepOptions{IgnoreStorageGate: true})
	s.Require().NoError(err)
	s.False(result.Skipped)
	s.Equal(4, result.EpisodesQueued)
}

func (s *EngineTestSuite) TestGraceSweepDryRun() {
	s.assign(expanseID, "default")
	s.watchedAgo(expanseID, 1, 4, 20, rules.GraceScopeSeries)

	result, err := s.engine.RunGraceSweep(s.ctx, SweepOptions{DryRun: true})
	s.Require().NoError(err)
	s.True(result.DryRun)
	s.Equal(4, result.EpisodesQueued)
	s.Empty(s.pendingIDs())
	s.Empty(s.notifier.Digests())

	record, err := s.engine.store.Get(s.ctx, expanseID, database.SeriesScope)
	s.Require().NoError(err)
	s.False(record.GraceCleaned)
}

func (s *EngineTestSuite) TestGraceSweepRespectsRejections() {
	s.assign(expanseID, "default")
	s.watchedAgo(expanseID, 1, 4, 20, rules.GraceScopeSeries)

	first := s.sonarr.Episodes(expanseID)[0]
	_, err := s.engine.Queue().Enqueue(s.ctx, pending.Entry{Episode: first, SeriesTitle: "The Expanse", Reason: GraceReason})
	s.Require().NoError(err)
	_, err = s.engine.Reject(s.ctx, []int32{first.ID})
	s.Require().NoError(err)

	result, err := s.engine.RunGraceSweep(s.ctx, SweepOptions{})
	s.Require().NoError(err)
	s.Equal(3, result.EpisodesQueued)
	s.NotContains(s.pendingIDs(), first.ID)
}

func (s *EngineTestSuite) TestGraceSweepCollectsCatalogErrors() {
	s.assign(expanseID, "default")
	s.watchedAgo(expanseID, 1, 4, 20, rules.GraceScopeSeries)
	s.sonarr.ListEpisodesError = errors.New("sonarr unavailable")

	result, err := s.engine.RunGraceSweep(s.ctx, SweepOptions{})
	s.Require().NoError(err)
	s.Len(result.Errors, 1)
	s.Zero(result.EpisodesQueued)

	record, err := s.engine.store.Get(s.ctx, expanseID, database.SeriesScope)
	s.Require().NoError(err)
	s.False(record.GraceCleaned, "failed scopes are retried on the next pass")
}

func (s *EngineTestSuite) TestGrabRearmsGraceSweep() {
	s.assign(expanseID, "default")
	s.watchedAgo(expanseID, 1, 4, 20, rules.GraceScopeSeries)

	_, err := s.engine.RunGraceSweep(s.ctx, SweepOptions{})
	s.Require().NoError(err)

	s.Require().NoError(s.engine.ProcessGrab(s.ctx, expanseID))

	result, err := s.engine.RunGraceSweep(s.ctx, SweepOptions{})
	s.Require().NoError(err)
	s.Equal(1, result.SeriesStale, "the scope is evaluated again after a grab")
	s.Zero(result.EpisodesQueued, "already queued episodes are not queued twice")
}

// racingCatalog records a fresh watch of the series while the sweep lists its episodes.
type racingCatalog struct {
	*arrmock.MockArrer
	onList func()
}

func (r *racingCatalog) ListEpisodes(ctx context.Context, seriesID int32) ([]arr.Episode, error) {
	if r.onList != nil {
		r.onList()
	}
	return r.MockArrer.ListEpisodes(ctx, seriesID)
}

func (s *EngineTestSuite) TestGraceSweepKeepsScopeWatchedDuringSweep() {
	s.assign(expanseID, "default")
	s.watchedAgo(expanseID, 1, 2, 20, rules.GraceScopeSeries)
	s.engine.sonarr = &racingCatalog{MockArrer: s.sonarr, onList: func() {
		s.watchedAgo(expanseID, 1, 3, 0, rules.GraceScopeSeries)
	}}

	result, err := s.engine.RunGraceSweep(s.ctx, SweepOptions{})
	s.Require().NoError(err)
	s.Equal(1, result.SeriesStale)
	s.Zero(result.EpisodesQueued)
	s.Empty(s.pendingIDs())
	s.Empty(s.db.HistoryEvents(database.HistoryEventGraceCleaned))

	record, err := s.engine.store.Get(s.ctx, expanseID, database.SeriesScope)
	s.Require().NoError(err)
	s.False(record.GraceCleaned, "the new watch keeps the scope armed")
	s.Equal(int32(3), *record.LastEpisode)
}

func (s *EngineTestSuite) withDormantDays(rule string, days int) {
	s.cfg.RulesConfig[rule].DormantDays = days
	s.rebuild()
}

func (s *EngineTestSuite) TestDormantSeriesQueuesEverything() {
	s.cfg.RulesConfig["default"].GraceBookmarks = true
	s.withDormantDays("default", 90)
	s.assign(expanseID, "default")
	s.watchedAgo(expanseID, 1, 2, 100, rules.GraceScopeSeries)

	result, err := s.engine.RunGraceSweep(s.ctx, SweepOptions{})
	s.Require().NoError(err)
	s.Equal(1, result.SeriesStale)
	s.Equal(4, result.EpisodesQueued, "bookmarks are not kept for dormant series")

	items, err := s.engine.Queue().Items(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(items, 4)
	for _, item := range items {
		s.Equal(DormantReason, item.Reason)
	}

	record, err := s.engine.store.Get(s.ctx, expanseID, database.SeriesScope)
	s.Require().NoError(err)
	s.True(record.DormantCleaned)
	s.True(record.GraceCleaned)
	s.Len(s.db.HistoryEvents(database.HistoryEventDormantCleaned), 1)
	s.Empty(s.db.HistoryEvents(database.HistoryEventGraceCleaned))

	digests := s.notifier.Digests()
	s.Require().Len(digests, 1)
	s.Equal(DormantReason, digests[0].Series[0].Reason)

	result, err = s.engine.RunGraceSweep(s.ctx, SweepOptions{})
	s.Require().NoError(err)
	s.Zero(result.SeriesStale)
	s.Zero(result.EpisodesQueued)
}

func (s *EngineTestSuite) TestDormantAfterGraceClean() {
	s.cfg.RulesConfig["default"].GraceBookmarks = true
	s.withDormantDays("default", 90)
	s.assign(expanseID, "default")
	s.watchedAgo(expanseID, 1, 2, 20, rules.GraceScopeSeries)

	result, err := s.engine.RunGraceSweep(s.ctx, SweepOptions{})
	s.Require().NoError(err)
	s.Equal([]int32{epID(expanseID, 1, 1), epID(expanseID, 1, 4)}, s.pendingIDs())
	s.Equal(2, result.EpisodesQueued)

	s.engine.now = func() time.Time { return time.Now().AddDate(0, 0, 80) }

	result, err = s.engine.RunGraceSweep(s.ctx, SweepOptions{})
	s.Require().NoError(err)
	s.Equal(2, result.EpisodesQueued, "the bookmarks follow once the series is dormant")
	s.ElementsMatch([]int32{
		epID(expanseID, 1, 1), epID(expanseID, 1, 2), epID(expanseID, 1, 3), epID(expanseID, 1, 4),
	}, s.pendingIDs())
	s.Len(s.db.HistoryEvents(database.HistoryEventDormantCleaned), 1)
}

func (s *EngineTestSuite) TestDormantWithoutGrace() {
	s.withDormantDays("archive", 180)
	s.assign(expanseID, "archive")
	s.watchedAgo(expanseID, 1, 4, 400, rules.GraceScopeSeries)

	result, err := s.engine.RunGraceSweep(s.ctx, SweepOptions{})
	s.Require().NoError(err)
	s.Equal(1, result.SeriesChecked)
	s.Equal(4, result.EpisodesQueued)

	s.watchedAgo(expanseID, 1, 4, 100, rules.GraceScopeSeries)
	result, err = s.engine.RunGraceSweep(s.ctx, SweepOptions{})
	s.Require().NoError(err)
	s.Zero(result.SeriesStale, "the grace tier stays off for rules without grace days")
}

func (s *EngineTestSuite) TestDormantHonorsStorageGate() {
	s.withDormantDays("default", 90)
	s.Require().NoError(s.engine.Close())
	s.engine = s.newEngine(policy.NewEngine(gatePolicy{open: false}))
	s.assign(expanseID, "default")
	s.watchedAgo(expanseID, 1, 4, 100, rules.GraceScopeSeries)

	result, err := s.engine.RunGraceSweep(s.ctx, SweepOptions{})
	s.Require().NoError(err)
	s.True(result.Skipped)
	s.Empty(s.pendingIDs())
}
