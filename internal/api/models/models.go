package models

import (
	"time"

	"github.com/jon4hz/episweep/internal/database"
)

// HistoryEventItem is a history event as returned by the API.
type HistoryEventItem struct {
	ID        uint      `json:"id"`
	EventType string    `json:"eventType"`
	SeriesID  int32     `json:"seriesId"`
	EpisodeID int32     `json:"episodeId,omitempty"`
	RuleName  string    `json:"ruleName,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	RunID     string    `json:"runId,omitempty"`
	EventTime time.Time `json:"eventTime"`
}

// HistoryResponse is a page of history events.
type HistoryResponse struct {
	Items      []HistoryEventItem `json:"items"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"pageSize"`
	TotalPages int                `json:"totalPages"`
}

// ActivityRecordItem is a local activity record of a series or season.
type ActivityRecordItem struct {
	// Scope is "series" or the season number.
	Scope          string                  `json:"scope"`
	WatchedAt      time.Time               `json:"watchedAt"`
	LastSeason     *int32                  `json:"lastSeason,omitempty"`
	LastEpisode    *int32                  `json:"lastEpisode,omitempty"`
	GraceCleaned   bool                    `json:"graceCleaned"`
	DormantCleaned bool                    `json:"dormantCleaned,omitempty"`
	Source         database.ActivitySource `json:"source"`
}

// PositionItem is the resolved last watched position of a series.
type PositionItem struct {
	WatchedAt   time.Time               `json:"watchedAt"`
	Season      int32                   `json:"season,omitempty"`
	Episode     int32                   `json:"episode,omitempty"`
	Known       bool                    `json:"known"`
	Approximate bool                    `json:"approximate"`
	Local       bool                    `json:"local"`
	Source      database.ActivitySource `json:"source"`
	// Since is a humanized age like "3 days ago".
	Since string `json:"since"`
}

// ActivityResponse is the activity of a single series.
type ActivityResponse struct {
	SeriesID int32                `json:"seriesId"`
	Records  []ActivityRecordItem `json:"records"`
	Position *PositionItem        `json:"position"`
}

// AssignmentItem is a managed series.
type AssignmentItem struct {
	SeriesID   int32  `json:"seriesId"`
	Title      string `json:"title"`
	RuleName   string `json:"ruleName"`
	GraceScope string `json:"graceScope"`
	Source     string `json:"source"`
}
