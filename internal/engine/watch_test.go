package engine

import (
	"errors"
	"time"

	"github.com/jon4hz/episweep/internal/database"
	"github.com/jon4hz/episweep/internal/engine/activity"
	"github.com/jon4hz/episweep/internal/engine/arr"
	arrmock "github.com/jon4hz/episweep/internal/engine/arr/mock"
	"github.com/jon4hz/episweep/internal/engine/pending"
	"github.com/jon4hz/episweep/internal/engine/rules"
)

func (s *EngineTestSuite) TestProcessWatchFetchesAndDeletes() {
	s.assign(expanseID, "default")

	result, err := s.engine.ProcessWatch(s.ctx, WatchEvent{SeriesID: expanseID, Season: 1, Episode: 3})
	s.Require().NoError(err)

	s.Equal("default", result.Rule)
	s.Equal([]int32{epID(expanseID, 1, 3)}, result.Unmonitored)
	s.Equal([]int32{epID(expanseID, 2, 1)}, result.Monitored, "already monitored episodes are not touched")
	s.Equal([]int32{epID(expanseID, 2, 1)}, result.Searched, "episodes with a file are not searched")
	s.Equal([]int32{epID(expanseID, 1, 1), epID(expanseID, 1, 2)}, result.Deleted)
	s.Empty(result.Queued)
	s.Empty(result.Errors)

	monitored, unmonitored, searched, deleted := s.sonarr.Calls()
	s.Equal([]int32{epID(expanseID, 2, 1)}, monitored)
	s.Equal([]int32{epID(expanseID, 1, 3), epID(expanseID, 1, 1), epID(expanseID, 1, 2)}, unmonitored)
	s.Equal([]int32{epID(expanseID, 2, 1)}, searched)
	s.Equal([]int32{fileID(expanseID, 1, 1), fileID(expanseID, 1, 2)}, deleted)

	record, err := s.engine.store.Get(s.ctx, expanseID, database.SeriesScope)
	s.Require().NoError(err)
	s.Require().NotNil(record)
	s.Equal(int32(1), *record.LastSeason)
	s.Equal(int32(3), *record.LastEpisode)
	s.Equal(database.ActivitySourceWebhook, record.Source)

	s.Len(s.db.HistoryEvents(database.HistoryEventWatched), 1)
	s.Len(s.db.HistoryEvents(database.HistoryEventDeleted), 2)
}

func (s *EngineTestSuite) TestProcessWatchDropsDeletedEpisodesFromQueue() {
	s.assign(expanseID, "default")
	s.watchedAgo(expanseID, 1, 1, 20, rules.GraceScopeSeries)

	_, err := s.engine.RunGraceSweep(s.ctx, SweepOptions{})
	s.Require().NoError(err)
	s.Equal([]int32{
		epID(expanseID, 1, 1), epID(expanseID, 1, 2), epID(expanseID, 1, 3), epID(expanseID, 1, 4),
	}, s.pendingIDs())

	result, err := s.engine.ProcessWatch(s.ctx, WatchEvent{SeriesID: expanseID, Season: 1, Episode: 3})
	s.Require().NoError(err)
	s.Equal([]int32{epID(expanseID, 1, 1), epID(expanseID, 1, 2)}, result.Deleted)
	s.Empty(result.Errors)

	s.Equal([]int32{epID(expanseID, 1, 3), epID(expanseID, 1, 4)}, s.pendingIDs())
}

func (s *EngineTestSuite) TestProcessWatchDryRunQueues() {
	s.cfg.DryRun = true
	s.rebuild()
	s.assign(expanseID, "default")

	result, err := s.engine.ProcessWatch(s.ctx, WatchEvent{SeriesID: expanseID, Season: 1, Episode: 3})
	s.Require().NoError(err)

	s.Empty(result.Deleted)
	s.Equal([]int32{epID(expanseID, 1, 1), epID(expanseID, 1, 2)}, result.Queued)

	_, _, _, deleted := s.sonarr.Calls()
	s.Empty(deleted)

	items, err := s.engine.Queue().Items(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(items, 2)
	s.Equal("Keep Rule (keeping 1 episodes)", items[0].Reason)
	s.Equal("default", items[0].RuleName)
	s.Equal(string(database.ActivitySourceWebhook), items[0].DateSource)

	// a repeated event does not queue twice
	result, err = s.engine.ProcessWatch(s.ctx, WatchEvent{SeriesID: expanseID, Season: 1, Episode: 3})
	s.Require().NoError(err)
	s.Empty(result.Queued)
	s.Len(s.pendingIDs(), 2)
}

func (s *EngineTestSuite) TestProcessWatchSkipsRejectedEpisodes() {
	s.assign(expanseID, "default")

	first := s.sonarr.Episodes(expanseID)[0]
	_, err := s.engine.Queue().Enqueue(s.ctx, pending.Entry{Episode: first, SeriesTitle: "The Expanse", Reason: GraceReason})
	s.Require().NoError(err)
	_, err = s.engine.Reject(s.ctx, []int32{first.ID})
	s.Require().NoError(err)

	result, err := s.engine.ProcessWatch(s.ctx, WatchEvent{SeriesID: expanseID, Season: 1, Episode: 3})
	s.Require().NoError(err)
	s.Equal([]int32{epID(expanseID, 1, 2)}, result.Deleted)
}

func (s *EngineTestSuite) TestProcessWatchByTitle() {
	s.assign(expanseID, "default")

	result, err := s.engine.ProcessWatch(s.ctx, WatchEvent{SeriesTitle: "the expanse (2015)", Season: 1, Episode: 1})
	s.Require().NoError(err)
	s.Equal(expanseID, result.SeriesID)
	s.Empty(result.Deleted)
}

func (s *EngineTestSuite) TestProcessWatchErrors() {
	s.assign(expanseID, "default")

	_, err := s.engine.ProcessWatch(s.ctx, WatchEvent{SeriesID: darkID, Season: 1, Episode: 1})
	s.ErrorIs(err, ErrSeriesNotManaged)

	_, err = s.engine.ProcessWatch(s.ctx, WatchEvent{SeriesTitle: "Severance", Season: 1, Episode: 1})
	s.ErrorIs(err, ErrSeriesNotFound)

	_, err = s.engine.ProcessWatch(s.ctx, WatchEvent{SeriesID: 99, Season: 1, Episode: 1})
	s.ErrorIs(err, ErrSeriesNotFound)

	_, err = s.engine.ProcessWatch(s.ctx, WatchEvent{SeriesID: expanseID, Season: 5, Episode: 1})
	s.ErrorIs(err, arr.ErrEpisodeNotFound)

	record, err := s.engine.store.Get(s.ctx, expanseID, database.SeriesScope)
	s.Require().NoError(err)
	s.NotNil(record, "activity is recorded before the catalog is consulted")
}

func (s *EngineTestSuite) TestProcessWatchSeasonsMode() {
	s.assign(darkID, "binge")

	result, err := s.engine.ProcessWatch(s.ctx, WatchEvent{SeriesID: darkID, Season: 1, Episode: 4})
	s.Require().NoError(err)

	s.Empty(result.Unmonitored, "binge keeps watched episodes monitored")
	s.Equal([]int32{epID(darkID, 2, 1), epID(darkID, 2, 2), epID(darkID, 2, 3), epID(darkID, 2, 4)}, result.Monitored)
	s.Equal([]int32{2}, result.SeasonsSearched)
	s.Empty(result.Searched)
	s.Empty(result.Deleted)
	s.Equal([]arrmock.SeasonSearch{{SeriesID: darkID, SeasonNumber: 2}}, s.sonarr.SeasonSearches)

	// the remainder of a season is searched episode by episode, here it is already downloaded
	result, err = s.engine.ProcessWatch(s.ctx, WatchEvent{SeriesID: darkID, Season: 1, Episode: 2})
	s.Require().NoError(err)
	s.Empty(result.SeasonsSearched)
	s.Empty(result.Searched)
}

func (s *EngineTestSuite) TestProcessWatchCollectsCatalogErrors() {
	s.assign(expanseID, "default")
	s.sonarr.SearchError = errors.New("indexer down")

	result, err := s.engine.ProcessWatch(s.ctx, WatchEvent{SeriesID: expanseID, Season: 1, Episode: 3})
	s.Require().NoError(err)
	s.Equal([]string{"indexer down"}, result.Errors)
	s.Len(result.Deleted, 2, "keep rule still runs")
}

func (s *EngineTestSuite) TestProcessWatchKeepsExplicitTime() {
	s.assign(expanseID, "default")
	watchedAt := time.Now().Add(-2 * time.Hour).Truncate(time.Second)

	_, err := s.engine.ProcessWatch(s.ctx, WatchEvent{SeriesID: expanseID, Season: 1, Episode: 1, WatchedAt: watchedAt, Source: database.ActivitySourceTautulli})
	s.Require().NoError(err)

	record, err := s.engine.store.Get(s.ctx, expanseID, database.SeriesScope)
	s.Require().NoError(err)
	s.True(watchedAt.Equal(record.WatchedAt))
	s.Equal(database.ActivitySourceTautulli, record.Source)
}

func (s *EngineTestSuite) TestProcessGrab() {
	s.assign(expanseID, "default")
	s.Require().NoError(s.engine.store.RecordWatch(s.ctx, activity.Watch{SeriesID: expanseID, Season: 1, Episode: 1}, rules.GraceScopeSeries))
	_, err := s.engine.store.MarkGraceCleaned(s.ctx, expanseID, database.SeriesScope, nil)
	s.Require().NoError(err)

	s.Require().NoError(s.engine.ProcessGrab(s.ctx, expanseID))

	record, err := s.engine.store.Get(s.ctx, expanseID, database.SeriesScope)
	s.Require().NoError(err)
	s.False(record.GraceCleaned)
	s.Len(s.db.HistoryEvents(database.HistoryEventGrabbed), 1)

	s.ErrorIs(s.engine.ProcessGrab(s.ctx, darkID), ErrSeriesNotManaged)
}
