package database

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type DatabaseTestSuite struct {
	suite.Suite
	client *Client
	ctx    context.Context
}

func TestDatabaseTestSuite(t *testing.T) {
	suite.Run(t, new(DatabaseTestSuite))
}

func (s *DatabaseTestSuite) SetupTest() {
	client, err := New(filepath.Join(s.T().TempDir(), "episweep.db"))
	s.Require().NoError(err)
	s.client = client
	s.ctx = context.Background()
}

func (s *DatabaseTestSuite) TearDownTest() {
	s.NoError(s.client.Close())
}

func (s *DatabaseTestSuite) TestActivityUpsertReplacesScope() {
	watched := time.Now().Add(-time.Hour).Truncate(time.Second)

	s.Require().NoError(s.client.UpsertActivity(s.ctx, ActivityRecord{
		SeriesID:     1,
		SeasonNumber: SeriesScope,
		WatchedAt:    watched,
		LastSeason:   lo.ToPtr(int32(2)),
		LastEpisode:  lo.ToPtr(int32(3)),
		GraceCleaned: true,
		Source:       ActivitySourceWebhook,
	}))
	s.Require().NoError(s.client.UpsertActivity(s.ctx, ActivityRecord{
		SeriesID:     1,
		SeasonNumber: SeriesScope,
		WatchedAt:    watched.Add(time.Minute),
		LastSeason:   lo.ToPtr(int32(2)),
		LastEpisode:  lo.ToPtr(int32(4)),
		Source:       ActivitySourceWebhook,
	}))

	record, err := s.client.GetActivity(s.ctx, 1, SeriesScope)
	s.Require().NoError(err)
	s.Require().NotNil(record)
	s.Equal(int32(4), *record.LastEpisode)
	s.False(record.GraceCleaned, "a new write clears the grace flag")
	s.True(record.HasPosition())

	records, err := s.client.ListActivity(s.ctx, 1)
	s.Require().NoError(err)
	s.Len(records, 1)
}

func (s *DatabaseTestSuite) TestActivityGraceFlags() {
	for _, season := range []int32{SeriesScope, 1, 2} {
		s.Require().NoError(s.client.UpsertActivity(s.ctx, ActivityRecord{
			SeriesID: 7, SeasonNumber: season, WatchedAt: time.Now(),
		}))
	}

	s.Require().NoError(s.client.SetGraceCleaned(s.ctx, 7, 1, true))
	record, err := s.client.GetActivity(s.ctx, 7, 1)
	s.Require().NoError(err)
	s.True(record.GraceCleaned)
	s.False(record.HasPosition())

	s.Require().NoError(s.client.SetDormantCleaned(s.ctx, 7))
	record, err = s.client.GetActivity(s.ctx, 7, SeriesScope)
	s.Require().NoError(err)
	s.True(record.DormantCleaned)
	s.True(record.GraceCleaned)

	s.Require().NoError(s.client.ClearGraceCleaned(s.ctx, 7))
	record, err = s.client.GetActivity(s.ctx, 7, 1)
	s.Require().NoError(err)
	s.False(record.GraceCleaned)
	record, err = s.client.GetActivity(s.ctx, 7, SeriesScope)
	s.Require().NoError(err)
	s.False(record.DormantCleaned)

	records, err := s.client.ListActivity(s.ctx, 7)
	s.Require().NoError(err)
	s.Equal([]int32{SeriesScope, 1, 2}, lo.Map(records, func(r ActivityRecord, _ int) int32 { return r.SeasonNumber }))

	s.Require().NoError(s.client.DeleteActivity(s.ctx, 7))
	record, err = s.client.GetActivity(s.ctx, 7, SeriesScope)
	s.Require().NoError(err)
	s.Nil(record)
}

func (s *DatabaseTestSuite) TestEnqueueIsIdempotent() {
	now := time.Now()
	entry := PendingDeletion{EpisodeID: 101, SeriesID: 1, SeasonNumber: 1, EpisodeNumber: 1, Reason: "Grace Period"}

	added, err := s.client.EnqueuePendingDeletion(s.ctx, entry, now)
	s.Require().NoError(err)
	s.True(added)

	added, err = s.client.EnqueuePendingDeletion(s.ctx, entry, now)
	s.Require().NoError(err)
	s.False(added)

	entries, err := s.client.ListPendingDeletions(s.ctx)
	s.Require().NoError(err)
	s.Len(entries, 1)
	s.False(entries[0].QueuedAt.IsZero())
}

func (s *DatabaseTestSuite) TestRejectProtectsUntilExpiry() {
	now := time.Now()
	for _, id := range []int32{1, 2, 3} {
		_, err := s.client.EnqueuePendingDeletion(s.ctx, PendingDeletion{EpisodeID: id, SeriesID: 1, EpisodeNumber: id, Reason: "Grace Period"}, now)
		s.Require().NoError(err)
	}

	n, err := s.client.RejectPendingDeletions(s.ctx, []int32{1, 2, 99}, now.Add(30*24*time.Hour))
	s.Require().NoError(err)
	s.Equal(int64(2), n, "only queued episodes are rejected")

	rejection, err := s.client.GetRejection(s.ctx, 99)
	s.Require().NoError(err)
	s.Nil(rejection)

	added, err := s.client.EnqueuePendingDeletion(s.ctx, PendingDeletion{EpisodeID: 1, Reason: "Grace Period"}, now.Add(29*24*time.Hour))
	s.Require().NoError(err)
	s.False(added, "live rejection blocks enqueue")

	added, err = s.client.EnqueuePendingDeletion(s.ctx, PendingDeletion{EpisodeID: 1, Reason: "Grace Period"}, now.Add(31*24*time.Hour))
	s.Require().NoError(err)
	s.True(added, "expired rejection is dropped on enqueue")

	rejection, err = s.client.GetRejection(s.ctx, 1)
	s.Require().NoError(err)
	s.Nil(rejection)

	purged, err := s.client.DeleteExpiredRejections(s.ctx, now.Add(31*24*time.Hour))
	s.Require().NoError(err)
	s.Equal(int64(1), purged)
}

func (s *DatabaseTestSuite) TestDeleteAndClearPending() {
	now := time.Now()
	for _, id := range []int32{10, 11, 12} {
		_, err := s.client.EnqueuePendingDeletion(s.ctx, PendingDeletion{EpisodeID: id, Reason: "Grace Period"}, now)
		s.Require().NoError(err)
	}

	n, err := s.client.DeletePendingDeletions(s.ctx, []int32{10})
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	entries, err := s.client.GetPendingDeletions(s.ctx, []int32{10, 11})
	s.Require().NoError(err)
	s.Len(entries, 1)

	n, err = s.client.ClearPendingDeletions(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(2), n)
}

func (s *DatabaseTestSuite) TestSeriesAssignmentUpsert() {
	s.Require().NoError(s.client.UpsertSeriesAssignment(s.ctx, SeriesAssignment{
		SeriesID: 5, Title: "Severance", RuleName: "default", GraceScope: "series", Source: AssignmentSourceConfig,
	}))
	s.Require().NoError(s.client.UpsertSeriesAssignment(s.ctx, SeriesAssignment{
		SeriesID: 5, Title: "Severance", RuleName: "binge", GraceScope: "season", Source: AssignmentSourceTag,
	}))

	a, err := s.client.GetSeriesAssignment(s.ctx, 5)
	s.Require().NoError(err)
	s.Require().NotNil(a)
	s.Equal("binge", a.RuleName)
	s.Equal("season", a.GraceScope)
	s.Equal(AssignmentSourceTag, a.Source)

	all, err := s.client.ListSeriesAssignments(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 1)

	s.Require().NoError(s.client.DeleteSeriesAssignment(s.ctx, 5))
	a, err = s.client.GetSeriesAssignment(s.ctx, 5)
	s.Require().NoError(err)
	s.Nil(a)
}

func (s *DatabaseTestSuite) TestHistoryFilterAndPrune() {
	old := time.Now().Add(-100 * 24 * time.Hour)
	s.Require().NoError(s.client.CreateHistoryEvent(s.ctx, HistoryEvent{EventType: HistoryEventWatched, SeriesID: 1, EventTime: old}))
	s.Require().NoError(s.client.CreateHistoryEvent(s.ctx, HistoryEvent{EventType: HistoryEventQueued, SeriesID: 1}))
	s.Require().NoError(s.client.CreateHistoryEvent(s.ctx, HistoryEvent{EventType: HistoryEventQueued, SeriesID: 2}))

	events, total, err := s.client.GetHistoryEvents(s.ctx, HistoryFilter{SeriesID: 1})
	s.Require().NoError(err)
	s.Equal(int64(2), total)
	s.Equal(HistoryEventQueued, events[0].EventType, "newest first")

	events, total, err = s.client.GetHistoryEvents(s.ctx, HistoryFilter{EventType: HistoryEventQueued, PageSize: 1})
	s.Require().NoError(err)
	s.Equal(int64(2), total)
	s.Len(events, 1)

	pruned, err := s.client.PruneHistoryEvents(s.ctx, time.Now().Add(-90*24*time.Hour))
	s.Require().NoError(err)
	s.Equal(int64(1), pruned)
}

func TestNewMovesCorruptDatabaseAside(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "episweep.db")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("not sqlite"), 1024), 0o600))

	client, err := New(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	matches, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	require.Len(t, matches, 1)

	_, err = client.EnqueuePendingDeletion(context.Background(), PendingDeletion{EpisodeID: 1, Reason: "Grace Period"}, time.Now())
	require.NoError(t, err)
}
