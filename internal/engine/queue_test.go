package engine

import (
	"errors"
	"time"

	"github.com/jon4hz/episweep/internal/database"
	"github.com/jon4hz/episweep/internal/engine/rules"
)

// queueExpanse fills the queue with the four downloaded episodes of season 1.
func (s *EngineTestSuite) queueExpanse() {
	s.assign(expanseID, "default")
	s.watchedAgo(expanseID, 1, 4, 20, rules.GraceScopeSeries)
	result, err := s.engine.RunGraceSweep(s.ctx, SweepOptions{})
	s.Require().NoError(err)
	s.Require().Equal(4, result.EpisodesQueued)
}

func (s *EngineTestSuite) TestPendingSummary() {
	s.queueExpanse()

	summary, err := s.engine.PendingSummary(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, summary.SeriesCount)
	s.Equal(4, summary.EpisodeCount)
	s.Equal(int64(4<<30), summary.TotalSize)
	s.Require().Len(summary.Series, 1)
	s.Equal("The Expanse", summary.Series[0].Title)

	items, err := s.engine.PendingForSeries(s.ctx, expanseID)
	s.Require().NoError(err)
	s.Len(items, 4)

	items, err = s.engine.PendingForSeries(s.ctx, darkID)
	s.Require().NoError(err)
	s.Empty(items)
}

func (s *EngineTestSuite) TestApprove() {
	s.queueExpanse()

	result, err := s.engine.Approve(s.ctx, []int32{epID(expanseID, 1, 1), epID(expanseID, 1, 2), 9999})
	s.Require().NoError(err)
	s.Equal(2, result.Processed)
	s.Empty(result.Errors)

	_, unmonitored, _, deleted := s.sonarr.Calls()
	s.Equal([]int32{fileID(expanseID, 1, 1), fileID(expanseID, 1, 2)}, deleted)
	s.Equal([]int32{epID(expanseID, 1, 1), epID(expanseID, 1, 2)}, unmonitored)
	s.Equal([]int32{epID(expanseID, 1, 3), epID(expanseID, 1, 4)}, s.pendingIDs())

	s.Len(s.db.HistoryEvents(database.HistoryEventApproved), 2)
	s.Len(s.db.HistoryEvents(database.HistoryEventDeleted), 2)
}

func (s *EngineTestSuite) TestApproveFailureKeepsEntry() {
	s.queueExpanse()
	s.sonarr.DeleteErrors[fileID(expanseID, 1, 3)] = errors.New("file locked")

	result, err := s.engine.ApproveSeason(s.ctx, expanseID, 1)
	s.Require().NoError(err)
	s.Equal(3, result.Processed)
	s.Require().Len(result.Errors, 1)
	s.Equal(epID(expanseID, 1, 3), result.Errors[0].EpisodeID)
	s.Equal([]int32{epID(expanseID, 1, 3)}, s.pendingIDs())
	s.Len(s.db.HistoryEvents(database.HistoryEventDeleteFailed), 1)

	delete(s.sonarr.DeleteErrors, fileID(expanseID, 1, 3))
	result, err = s.engine.ApproveSeries(s.ctx, expanseID)
	s.Require().NoError(err)
	s.Equal(1, result.Processed)
	s.Empty(s.pendingIDs())
}

func (s *EngineTestSuite) TestReject() {
	s.queueExpanse()

	n, err := s.engine.Reject(s.ctx, []int32{epID(expanseID, 1, 1), 9999})
	s.Require().NoError(err)
	s.Equal(int64(1), n)
	s.NotContains(s.pendingIDs(), epID(expanseID, 1, 1))

	rejected, err := s.engine.Queue().IsRejected(s.ctx, epID(expanseID, 1, 1))
	s.Require().NoError(err)
	s.True(rejected)

	rejections, err := s.engine.Queue().Rejections(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(rejections, 1)
	s.WithinDuration(time.Now().Add(30*24*time.Hour), rejections[0].ExpiresAt, time.Minute)

	events := s.db.HistoryEvents(database.HistoryEventRejected)
	s.Require().Len(events, 1)
	s.Equal(epID(expanseID, 1, 1), events[0].EpisodeID)

	n, err = s.engine.RejectSeries(s.ctx, expanseID)
	s.Require().NoError(err)
	s.Equal(int64(3), n)
	s.Empty(s.pendingIDs())

	_, _, _, deleted := s.sonarr.Calls()
	s.Empty(deleted, "rejecting never deletes")
}

func (s *EngineTestSuite) TestClearPending() {
	s.queueExpanse()

	n, err := s.engine.ClearPending(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(4), n)
	s.Empty(s.pendingIDs())
	s.Len(s.db.HistoryEvents(database.HistoryEventCleared), 1)

	rejections, err := s.engine.Queue().Rejections(s.ctx)
	s.Require().NoError(err)
	s.Empty(rejections, "clearing does not reject")
}
