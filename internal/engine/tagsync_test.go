package engine

import (
	"time"

	"github.com/jon4hz/episweep/internal/database"
	"github.com/jon4hz/episweep/internal/engine/arr"
	"github.com/jon4hz/episweep/internal/engine/rules"
)

func (s *EngineTestSuite) assignment(seriesID int32) *database.SeriesAssignment {
	a, err := s.db.GetSeriesAssignment(s.ctx, seriesID)
	s.Require().NoError(err)
	return a
}

func (s *EngineTestSuite) TestSyncRuleTags() {
	s.sonarr.SetTags(map[int32]string{1: "episweep_binge", 2: "4k"})
	s.sonarr.AddSeries(arr.Series{ID: expanseID, Title: "The Expanse", Year: 2015, Tags: []int32{1, 2}}, s.sonarr.Episodes(expanseID))
	s.cfg.RulesConfig["default"].Series = []int32{darkID, 404}

	result, err := s.engine.SyncRuleTags(s.ctx)
	s.Require().NoError(err)
	s.Equal(SyncResult{Assigned: 2}, *result)

	expanse := s.assignment(expanseID)
	s.Require().NotNil(expanse)
	s.Equal("binge", expanse.RuleName)
	s.Equal(database.AssignmentSourceTag, expanse.Source)
	s.Equal(string(rules.GraceScopeSeason), expanse.GraceScope)

	dark := s.assignment(darkID)
	s.Require().NotNil(dark)
	s.Equal("default", dark.RuleName)
	s.Equal(database.AssignmentSourceConfig, dark.Source)
	s.Equal(string(rules.GraceScopeSeries), dark.GraceScope)

	result, err = s.engine.SyncRuleTags(s.ctx)
	s.Require().NoError(err)
	s.Equal(SyncResult{Unchanged: 2}, *result)

	// the tag was removed in Sonarr
	s.sonarr.AddSeries(arr.Series{ID: expanseID, Title: "The Expanse", Year: 2015, Tags: []int32{2}}, s.sonarr.Episodes(expanseID))
	result, err = s.engine.SyncRuleTags(s.ctx)
	s.Require().NoError(err)
	s.Equal(SyncResult{Unchanged: 1, Removed: 1}, *result)
	s.Nil(s.assignment(expanseID))
	s.Len(s.db.HistoryEvents(database.HistoryEventRuleAssigned), 2)
}

func (s *EngineTestSuite) TestSyncFollowsRuleScopeChange() {
	s.sonarr.SetTags(map[int32]string{1: "episweep_default"})
	s.sonarr.AddSeries(arr.Series{ID: expanseID, Title: "The Expanse", Tags: []int32{1}}, s.sonarr.Episodes(expanseID))

	_, err := s.engine.SyncRuleTags(s.ctx)
	s.Require().NoError(err)
	s.Equal(string(rules.GraceScopeSeries), s.assignment(expanseID).GraceScope)
	s.watchedAgo(expanseID, 1, 2, 1, rules.GraceScopeSeries)

	s.cfg.RulesConfig["default"].GraceScope = "season"
	s.rebuild()

	result, err := s.engine.SyncRuleTags(s.ctx)
	s.Require().NoError(err)
	s.Equal(SyncResult{Assigned: 1}, *result)
	s.Equal(string(rules.GraceScopeSeason), s.assignment(expanseID).GraceScope)

	records, err := s.engine.store.List(s.ctx, expanseID)
	s.Require().NoError(err)
	s.Empty(records, "the scope change resets the activity history")
}

func (s *EngineTestSuite) TestSyncKeepsAPIAssignments() {
	s.assign(expanseID, "bookmarked")

	result, err := s.engine.SyncRuleTags(s.ctx)
	s.Require().NoError(err)
	s.Zero(result.Removed)

	expanse := s.assignment(expanseID)
	s.Require().NotNil(expanse)
	s.Equal("bookmarked", expanse.RuleName)
	s.Equal(database.AssignmentSourceAPI, expanse.Source)
}

func (s *EngineTestSuite) TestSyncPicksFirstRuleTag() {
	s.sonarr.SetTags(map[int32]string{1: "episweep_default", 2: "EPISWEEP_BINGE"})
	s.sonarr.AddSeries(arr.Series{ID: expanseID, Title: "The Expanse", Tags: []int32{1, 2}}, s.sonarr.Episodes(expanseID))

	_, err := s.engine.SyncRuleTags(s.ctx)
	s.Require().NoError(err)
	s.Equal("binge", s.assignment(expanseID).RuleName)
}

func (s *EngineTestSuite) TestAssignRule() {
	assignment, changed, err := s.engine.AssignRule(s.ctx, expanseID, "", "", "", database.AssignmentSourceAPI)
	s.Require().NoError(err)
	s.True(changed)
	s.Equal("default", assignment.RuleName, "empty rule selects the default")
	s.Equal("The Expanse", assignment.Title)

	_, changed, err = s.engine.AssignRule(s.ctx, expanseID, "", "Default", "", database.AssignmentSourceAPI)
	s.Require().NoError(err)
	s.False(changed)

	_, _, err = s.engine.AssignRule(s.ctx, expanseID, "", "nope", "", database.AssignmentSourceAPI)
	s.ErrorIs(err, ErrUnknownRule)

	_, _, err = s.engine.AssignRule(s.ctx, expanseID, "", "default", "weekly", database.AssignmentSourceAPI)
	s.Error(err)

	_, _, err = s.engine.AssignRule(s.ctx, 99, "", "default", "", database.AssignmentSourceAPI)
	s.ErrorIs(err, ErrSeriesNotFound)
}

func (s *EngineTestSuite) TestScopeChangeResetsActivity() {
	s.assign(expanseID, "default")
	s.watchedAgo(expanseID, 1, 2, 1, rules.GraceScopeSeries)

	_, changed, err := s.engine.AssignRule(s.ctx, expanseID, "", "default", rules.GraceScopeSeason, database.AssignmentSourceAPI)
	s.Require().NoError(err)
	s.True(changed)

	records, err := s.engine.store.List(s.ctx, expanseID)
	s.Require().NoError(err)
	s.Empty(records)
	s.Len(s.db.HistoryEvents(database.HistoryEventRuleAssigned), 2)
}

func (s *EngineTestSuite) TestUnassignRule() {
	s.assign(expanseID, "default")
	s.watchedAgo(expanseID, 1, 2, 1, rules.GraceScopeSeries)

	s.Require().NoError(s.engine.UnassignRule(s.ctx, expanseID))
	s.Nil(s.assignment(expanseID))
	s.ErrorIs(s.engine.UnassignRule(s.ctx, expanseID), ErrSeriesNotManaged)

	records, err := s.engine.store.List(s.ctx, expanseID)
	s.Require().NoError(err)
	s.Len(records, 1, "activity survives unassignment")
}

func (s *EngineTestSuite) TestRemovedRuleFallsBackToDefault() {
	s.Require().NoError(s.db.UpsertSeriesAssignment(s.ctx, database.SeriesAssignment{
		SeriesID:   expanseID,
		Title:      "The Expanse",
		RuleName:   "retired",
		GraceScope: string(rules.GraceScopeSeries),
		Source:     database.AssignmentSourceAPI,
	}))

	_, rule, err := s.engine.ruleFor(s.ctx, expanseID)
	s.Require().NoError(err)
	s.Equal("default", rule.Name)
}

func (s *EngineTestSuite) TestScheduledJobs() {
	jobs := s.engine.GetScheduler().GetJobs()
	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}
	s.ElementsMatch([]string{JobGraceSweep, JobTagSync, JobRejectionCleanup, JobHistoryPrune}, ids)
}

func (s *EngineTestSuite) TestPruneHistory() {
	s.Require().NoError(s.db.CreateHistoryEvent(s.ctx, database.HistoryEvent{
		EventType: database.HistoryEventWatched,
		SeriesID:  expanseID,
		EventTime: time.Now().AddDate(-2, 0, 0),
	}))
	s.Require().NoError(s.db.CreateHistoryEvent(s.ctx, database.HistoryEvent{
		EventType: database.HistoryEventWatched,
		SeriesID:  expanseID,
		EventTime: time.Now(),
	}))

	s.Require().NoError(s.engine.pruneHistory(s.ctx))
	s.Len(s.db.HistoryEvents(database.HistoryEventWatched), 1)
}
