package database

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeriesScope is the season number of the series-level activity record.
const SeriesScope int32 = -1

// ActivitySource names where an activity record came from.
type ActivitySource string

const (
	ActivitySourceWebhook  ActivitySource = "webhook"
	ActivitySourceTautulli ActivitySource = "tautulli"
	ActivitySourceJellyfin ActivitySource = "jellyfin"
	ActivitySourceFileDate ActivitySource = "file_date"
	ActivitySourceManual   ActivitySource = "manual"
)

// ActivityRecord is the last known viewing activity for a series or one of its seasons.
type ActivityRecord struct {
	ID uint `gorm:"primarykey"`
	// SeriesID is the Sonarr series id.
	SeriesID int32 `gorm:"not null;uniqueIndex:idx_activity_scope"`
	// SeasonNumber is the season this record tracks, or SeriesScope for the whole series.
	SeasonNumber int32     `gorm:"not null;uniqueIndex:idx_activity_scope"`
	WatchedAt    time.Time `gorm:"not null;index"`
	// LastSeason and LastEpisode are nil when only the time of the activity is known.
	LastSeason   *int32
	LastEpisode  *int32
	GraceCleaned bool `gorm:"not null;default:false"`
	// DormantCleaned is only used on the series-level record.
	DormantCleaned bool `gorm:"not null;default:false"`
	Source         ActivitySource
	UpdatedAt      time.Time
}

// HasPosition reports whether the record knows the watched episode.
func (r ActivityRecord) HasPosition() bool {
	return r.LastSeason != nil && r.LastEpisode != nil
}

// ActivityDB defines the interface for activity related database operations.
type ActivityDB interface {
	GetActivity(ctx context.Context, seriesID, seasonNumber int32) (*ActivityRecord, error)
	ListActivity(ctx context.Context, seriesID int32) ([]ActivityRecord, error)
	UpsertActivity(ctx context.Context, record ActivityRecord) error
	SetGraceCleaned(ctx context.Context, seriesID, seasonNumber int32, cleaned bool) error
	SetDormantCleaned(ctx context.Context, seriesID int32) error
	ClearGraceCleaned(ctx context.Context, seriesID int32) error
	DeleteActivity(ctx context.Context, seriesID int32) error
}

// GetActivity returns the record for the given scope or nil if there is none.
func (c *Client) GetActivity(ctx context.Context, seriesID, seasonNumber int32) (*ActivityRecord, error) {
	var record ActivityRecord
	err := c.db.WithContext(ctx).
		Where("series_id = ? AND season_number = ?", seriesID, seasonNumber).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		log.Error("failed to get activity record", "series", seriesID, "season", seasonNumber, "error", err)
		return nil, err
	}
	return &record, nil
}

// ListActivity returns all records of a series, the series-level record first.
func (c *Client) ListActivity(ctx context.Context, seriesID int32) ([]ActivityRecord, error) {
	var records []ActivityRecord
	if err := c.db.WithContext(ctx).
		Where("series_id = ?", seriesID).
		Order("season_number ASC").
		Find(&records).Error; err != nil {
		log.Error("failed to list activity records", "series", seriesID, "error", err)
		return nil, err
	}
	return records, nil
}

// UpsertActivity creates or replaces the record for the scope of record.
func (c *Client) UpsertActivity(ctx context.Context, record ActivityRecord) error {
	record.ID = 0
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "series_id"}, {Name: "season_number"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"watched_at", "last_season", "last_episode", "grace_cleaned", "dormant_cleaned", "source", "updated_at",
		}),
	}).Create(&record).Error
	if err != nil {
		log.Error("failed to upsert activity record", "series", record.SeriesID, "season", record.SeasonNumber, "error", err)
		return err
	}
	return nil
}

// SetGraceCleaned sets the grace cleaned flag of a single record.
func (c *Client) SetGraceCleaned(ctx context.Context, seriesID, seasonNumber int32, cleaned bool) error {
	err := c.db.WithContext(ctx).
		Model(&ActivityRecord{}).
		Where("series_id = ? AND season_number = ?", seriesID, seasonNumber).
		Update("grace_cleaned", cleaned).Error
	if err != nil {
		log.Error("failed to update grace cleaned flag", "series", seriesID, "season", seasonNumber, "error", err)
		return err
	}
	return nil
}

// SetDormantCleaned flags the series-level record as dormant cleaned. A dormant series
// has nothing left for the grace sweep, so the grace cleaned flag is set as well.
func (c *Client) SetDormantCleaned(ctx context.Context, seriesID int32) error {
	err := c.db.WithContext(ctx).
		Model(&ActivityRecord{}).
		Where("series_id = ? AND season_number = ?", seriesID, SeriesScope).
		Updates(map[string]any{"dormant_cleaned": true, "grace_cleaned": true}).Error
	if err != nil {
		log.Error("failed to update dormant cleaned flag", "series", seriesID, "error", err)
		return err
	}
	return nil
}

// ClearGraceCleaned resets the grace and dormant cleaned flags of every record of a series.
func (c *Client) ClearGraceCleaned(ctx context.Context, seriesID int32) error {
	err := c.db.WithContext(ctx).
		Model(&ActivityRecord{}).
		Where("series_id = ?", seriesID).
		Updates(map[string]any{"grace_cleaned": false, "dormant_cleaned": false}).Error
	if err != nil {
		log.Error("failed to clear grace cleaned flags", "series", seriesID, "error", err)
		return err
	}
	return nil
}

// DeleteActivity removes all records of a series.
func (c *Client) DeleteActivity(ctx context.Context, seriesID int32) error {
	if err := c.db.WithContext(ctx).
		Where("series_id = ?", seriesID).
		Delete(&ActivityRecord{}).Error; err != nil {
		log.Error("failed to delete activity records", "series", seriesID, "error", err)
		return err
	}
	return nil
}
