package database

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssignmentSource tells how a series got its rule.
type AssignmentSource string

const (
	AssignmentSourceConfig AssignmentSource = "config"
	AssignmentSourceTag    AssignmentSource = "tag"
	AssignmentSourceAPI    AssignmentSource = "api"
)

// SeriesAssignment binds a Sonarr series to a rule.
type SeriesAssignment struct {
	ID         uint   `gorm:"primarykey"`
	SeriesID   int32  `gorm:"not null;uniqueIndex"`
	Title      string `gorm:"not null"`
	RuleName   string `gorm:"not null;index"`
	GraceScope string `gorm:"not null;default:series"`
	Source     AssignmentSource
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SeriesDB defines the interface for series assignment related database operations.
type SeriesDB interface {
	GetSeriesAssignment(ctx context.Context, seriesID int32) (*SeriesAssignment, error)
	ListSeriesAssignments(ctx context.Context) ([]SeriesAssignment, error)
	UpsertSeriesAssignment(ctx context.Context, assignment SeriesAssignment) error
	DeleteSeriesAssignment(ctx context.Context, seriesID int32) error
}

// GetSeriesAssignment returns the assignment of a series or nil if the series is not managed.
func (c *Client) GetSeriesAssignment(ctx context.Context, seriesID int32) (*SeriesAssignment, error) {
	var assignment SeriesAssignment
	if err := c.db.WithContext(ctx).Where("series_id = ?", seriesID).First(&assignment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		log.Error("failed to get series assignment", "series", seriesID, "error", err)
		return nil, err
	}
	return &assignment, nil
}

// ListSeriesAssignments returns all managed series ordered by title.
func (c *Client) ListSeriesAssignments(ctx context.Context) ([]SeriesAssignment, error) {
	var assignments []SeriesAssignment
	if err := c.db.WithContext(ctx).Order("title ASC").Find(&assignments).Error; err != nil {
		log.Error("failed to list series assignments", "error", err)
		return nil, err
	}
	return assignments, nil
}

// UpsertSeriesAssignment creates the assignment or updates rule, scope, title and source of an existing one.
func (c *Client) UpsertSeriesAssignment(ctx context.Context, assignment SeriesAssignment) error {
	assignment.ID = 0
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "series_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "rule_name", "grace_scope", "source", "updated_at"}),
	}).Create(&assignment).Error
	if err != nil {
		log.Error("failed to upsert series assignment", "series", assignment.SeriesID, "error", err)
		return err
	}
	return nil
}

// DeleteSeriesAssignment stops managing a series.
func (c *Client) DeleteSeriesAssignment(ctx context.Context, seriesID int32) error {
	if err := c.db.WithContext(ctx).Where("series_id = ?", seriesID).Delete(&SeriesAssignment{}).Error; err != nil {
		log.Error("failed to delete series assignment", "series", seriesID, "error", err)
		return err
	}
	return nil
}
