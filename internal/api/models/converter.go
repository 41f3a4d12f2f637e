package models

import (
	"strconv"

	"github.com/jon4hz/episweep/internal/database"
	"github.com/jon4hz/episweep/internal/engine/activity"
	"github.com/mergestat/timediff"
)

// ToHistoryEventItem converts a database.HistoryEvent to a HistoryEventItem.
func ToHistoryEventItem(e database.HistoryEvent) HistoryEventItem {
	return HistoryEventItem{
		ID:        e.ID,
		EventType: string(e.EventType),
		SeriesID:  e.SeriesID,
		EpisodeID: e.EpisodeID,
		RuleName:  e.RuleName,
		Detail:    e.Detail,
		RunID:     e.RunID,
		EventTime: e.EventTime,
	}
}

// ToHistoryEventItems converts a slice of database.HistoryEvent to HistoryEventItems.
func ToHistoryEventItems(events []database.HistoryEvent) []HistoryEventItem {
	result := make([]HistoryEventItem, len(events))
	for i, e := range events {
		result[i] = ToHistoryEventItem(e)
	}
	return result
}

// NewHistoryResponse builds a page of history events.
func NewHistoryResponse(events []database.HistoryEvent, total int64, page, pageSize int) HistoryResponse {
	totalPages := int(total) / pageSize
	if int(total)%pageSize != 0 {
		totalPages++
	}
	return HistoryResponse{
		Items:      ToHistoryEventItems(events),
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

// ToActivityResponse converts the local records and the resolved position of a series.
func ToActivityResponse(seriesID int32, records []database.ActivityRecord, pos *activity.Position) ActivityResponse {
	resp := ActivityResponse{
		SeriesID: seriesID,
		Records:  make([]ActivityRecordItem, len(records)),
	}
	for i, r := range records {
		scope := "series"
		if r.SeasonNumber != database.SeriesScope {
			scope = strconv.Itoa(int(r.SeasonNumber))
		}
		resp.Records[i] = ActivityRecordItem{
			Scope:          scope,
			WatchedAt:      r.WatchedAt,
			LastSeason:     r.LastSeason,
			LastEpisode:    r.LastEpisode,
			GraceCleaned:   r.GraceCleaned,
			DormantCleaned: r.DormantCleaned,
			Source:         r.Source,
		}
	}
	if pos != nil {
		resp.Position = &PositionItem{
			WatchedAt:   pos.WatchedAt,
			Season:      pos.Season,
			Episode:     pos.Episode,
			Known:       pos.Known,
			Approximate: pos.Approximate,
			Local:       pos.Local,
			Source:      pos.Source,
			Since:       timediff.TimeDiff(pos.WatchedAt),
		}
	}
	return resp
}

// ToAssignmentItems converts series assignments.
func ToAssignmentItems(assignments []database.SeriesAssignment) []AssignmentItem {
	result := make([]AssignmentItem, len(assignments))
	for i, a := range assignments {
		result[i] = AssignmentItem{
			SeriesID:   a.SeriesID,
			Title:      a.Title,
			RuleName:   a.RuleName,
			GraceScope: a.GraceScope,
			Source:     string(a.Source),
		}
	}
	return result
}
