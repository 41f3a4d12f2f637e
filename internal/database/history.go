package database

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// HistoryEventType represents the type of history event.
type HistoryEventType string

const (
	// HistoryEventWatched indicates an episode was watched.
	HistoryEventWatched HistoryEventType = "watched"
	// HistoryEventGrabbed indicates Sonarr grabbed a release for the series.
	HistoryEventGrabbed HistoryEventType = "grabbed"
	// HistoryEventQueued indicates an episode was added to the pending deletion queue.
	HistoryEventQueued HistoryEventType = "queued"
	// HistoryEventApproved indicates a queued deletion was approved.
	HistoryEventApproved HistoryEventType = "approved"
	// HistoryEventRejected indicates a queued deletion was rejected.
	HistoryEventRejected HistoryEventType = "rejected"
	// HistoryEventDeleted indicates an episode file was deleted.
	HistoryEventDeleted HistoryEventType = "deleted"
	// HistoryEventDeleteFailed indicates deleting an episode file failed.
	HistoryEventDeleteFailed HistoryEventType = "delete_failed"
	// HistoryEventCleared indicates the whole queue was cleared.
	HistoryEventCleared HistoryEventType = "cleared"
	// HistoryEventGraceCleaned indicates a stale scope was processed by the grace sweep.
	HistoryEventGraceCleaned HistoryEventType = "grace_cleaned"
	// HistoryEventDormantCleaned indicates a dormant series was processed by the grace sweep.
	HistoryEventDormantCleaned HistoryEventType = "dormant_cleaned"
	// HistoryEventRuleAssigned indicates a series was assigned to a rule.
	HistoryEventRuleAssigned HistoryEventType = "rule_assigned"
)

// HistoryEvent represents a historical event of a managed series.
type HistoryEvent struct {
	ID        uint             `gorm:"primarykey"`
	EventType HistoryEventType `gorm:"not null;index"`
	SeriesID  int32            `gorm:"index"`
	// EpisodeID is 0 for series level events.
	EpisodeID int32
	RuleName  string
	Detail    string
	// RunID correlates events of a single sweep.
	RunID     string
	EventTime time.Time `gorm:"not null;index"`
}

// HistoryFilter narrows GetHistoryEvents. Zero values match everything.
type HistoryFilter struct {
	SeriesID  int32
	EventType HistoryEventType
	Page      int
	PageSize  int
}

// HistoryDB defines the interface for history-related database operations.
type HistoryDB interface {
	CreateHistoryEvent(ctx context.Context, event HistoryEvent) error
	GetHistoryEvents(ctx context.Context, filter HistoryFilter) ([]HistoryEvent, int64, error)
	PruneHistoryEvents(ctx context.Context, before time.Time) (int64, error)
}

// CreateHistoryEvent creates a new history event.
func (c *Client) CreateHistoryEvent(ctx context.Context, event HistoryEvent) error {
	// Set EventTime to now if not already set
	if event.EventTime.IsZero() {
		event.EventTime = time.Now()
	}

	result := c.db.WithContext(ctx).Create(&event)
	if result.Error != nil {
		log.Error("failed to create history event", "error", result.Error)
		return result.Error
	}
	return nil
}

// GetHistoryEvents retrieves paginated history events, newest first.
func (c *Client) GetHistoryEvents(ctx context.Context, filter HistoryFilter) ([]HistoryEvent, int64, error) {
	var events []HistoryEvent
	var total int64

	where := func(db *gorm.DB) *gorm.DB {
		if filter.SeriesID != 0 {
			db = db.Where("series_id = ?", filter.SeriesID)
		}
		if filter.EventType != "" {
			db = db.Where("event_type = ?", filter.EventType)
		}
		return db
	}

	if err := c.db.WithContext(ctx).Model(&HistoryEvent{}).Scopes(where).Count(&total).Error; err != nil {
		log.Error("failed to count history events", "error", err)
		return nil, 0, err
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 50
	}
	offset := (filter.Page - 1) * filter.PageSize

	if err := c.db.WithContext(ctx).
		Scopes(where).
		Order("event_time DESC, id DESC").
		Limit(filter.PageSize).
		Offset(offset).
		Find(&events).Error; err != nil {
		log.Error("failed to get history events", "error", err)
		return nil, 0, err
	}

	return events, total, nil
}

// PruneHistoryEvents deletes events older than before.
func (c *Client) PruneHistoryEvents(ctx context.Context, before time.Time) (int64, error) {
	res := c.db.WithContext(ctx).Where("event_time < ?", before).Delete(&HistoryEvent{})
	if res.Error != nil {
		log.Error("failed to prune history events", "error", res.Error)
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
