package database

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PendingDeletion is an episode file awaiting human approval before it is deleted.
type PendingDeletion struct {
	ID            uint  `gorm:"primarykey"`
	EpisodeID     int32 `gorm:"not null;uniqueIndex"`
	SeriesID      int32 `gorm:"not null;index"`
	SeriesTitle   string
	SeasonNumber  int32 `gorm:"not null"`
	EpisodeNumber int32 `gorm:"not null"`
	EpisodeTitle  string
	EpisodeFileID int32
	FileSize      int64
	Reason        string `gorm:"not null"`
	RuleName      string
	// DateSource and DateValue describe the activity that made the episode eligible.
	DateSource string
	DateValue  time.Time
	// Snapshot is the JSON encoded catalog episode at the time it was queued.
	Snapshot string
	QueuedAt time.Time `gorm:"not null;index"`
}

// RejectedEpisode is an episode that was rejected from the queue and is protected until ExpiresAt.
type RejectedEpisode struct {
	EpisodeID int32     `gorm:"primarykey;autoIncrement:false"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// PendingDB defines the interface for pending deletion related database operations.
type PendingDB interface {
	EnqueuePendingDeletion(ctx context.Context, entry PendingDeletion, now time.Time) (bool, error)
	ListPendingDeletions(ctx context.Context) ([]PendingDeletion, error)
	GetPendingDeletions(ctx context.Context, episodeIDs []int32) ([]PendingDeletion, error)
	DeletePendingDeletions(ctx context.Context, episodeIDs []int32) (int64, error)
	ClearPendingDeletions(ctx context.Context) (int64, error)
	RejectPendingDeletions(ctx context.Context, episodeIDs []int32, expiresAt time.Time) (int64, error)
	GetRejection(ctx context.Context, episodeID int32) (*RejectedEpisode, error)
	ListRejections(ctx context.Context) ([]RejectedEpisode, error)
	DeleteExpiredRejections(ctx context.Context, now time.Time) (int64, error)
}

// EnqueuePendingDeletion inserts entry unless the episode is already queued or protected by a live rejection.
// An expired rejection of the episode is removed on the way. The returned bool reports whether a row was added.
func (c *Client) EnqueuePendingDeletion(ctx context.Context, entry PendingDeletion, now time.Time) (bool, error) {
	var added bool
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rejection RejectedEpisode
		err := tx.Where("episode_id = ?", entry.EpisodeID).First(&rejection).Error
		switch {
		case err == nil && rejection.ExpiresAt.After(now):
			return nil
		case err == nil:
			if err := tx.Delete(&rejection).Error; err != nil {
				return err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		if entry.QueuedAt.IsZero() {
			entry.QueuedAt = now
		}
		entry.ID = 0
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "episode_id"}},
			DoNothing: true,
		}).Create(&entry)
		if res.Error != nil {
			return res.Error
		}
		added = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		log.Error("failed to enqueue pending deletion", "episode", entry.EpisodeID, "error", err)
		return false, err
	}
	return added, nil
}

// ListPendingDeletions returns all queued entries in catalog order.
func (c *Client) ListPendingDeletions(ctx context.Context) ([]PendingDeletion, error) {
	var entries []PendingDeletion
	if err := c.db.WithContext(ctx).
		Order("series_title ASC, series_id ASC, season_number ASC, episode_number ASC").
		Find(&entries).Error; err != nil {
		log.Error("failed to list pending deletions", "error", err)
		return nil, err
	}
	return entries, nil
}

// GetPendingDeletions returns the queued entries for the given episode ids.
func (c *Client) GetPendingDeletions(ctx context.Context, episodeIDs []int32) ([]PendingDeletion, error) {
	var entries []PendingDeletion
	if len(episodeIDs) == 0 {
		return entries, nil
	}
	if err := c.db.WithContext(ctx).
		Where("episode_id IN ?", episodeIDs).
		Order("series_id ASC, season_number ASC, episode_number ASC").
		Find(&entries).Error; err != nil {
		log.Error("failed to get pending deletions", "error", err)
		return nil, err
	}
	return entries, nil
}

// DeletePendingDeletions removes the queued entries for the given episode ids.
func (c *Client) DeletePendingDeletions(ctx context.Context, episodeIDs []int32) (int64, error) {
	if len(episodeIDs) == 0 {
		return 0, nil
	}
	res := c.db.WithContext(ctx).Where("episode_id IN ?", episodeIDs).Delete(&PendingDeletion{})
	if res.Error != nil {
		log.Error("failed to delete pending deletions", "error", res.Error)
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// ClearPendingDeletions empties the queue. Rejections are not touched.
func (c *Client) ClearPendingDeletions(ctx context.Context) (int64, error) {
	res := c.db.WithContext(ctx).Where("1 = 1").Delete(&PendingDeletion{})
	if res.Error != nil {
		log.Error("failed to clear pending deletions", "error", res.Error)
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// RejectPendingDeletions removes the queued entries and protects their episodes until expiresAt.
// Only episodes that were queued are protected. Both happen in one transaction.
func (c *Client) RejectPendingDeletions(ctx context.Context, episodeIDs []int32, expiresAt time.Time) (int64, error) {
	if len(episodeIDs) == 0 {
		return 0, nil
	}

	var rejected int64
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var queued []int32
		if err := tx.Model(&PendingDeletion{}).Where("episode_id IN ?", episodeIDs).Pluck("episode_id", &queued).Error; err != nil {
			return err
		}
		if len(queued) == 0 {
			return nil
		}

		if err := tx.Where("episode_id IN ?", queued).Delete(&PendingDeletion{}).Error; err != nil {
			return err
		}

		rows := make([]RejectedEpisode, 0, len(queued))
		for _, id := range queued {
			rows = append(rows, RejectedEpisode{EpisodeID: id, ExpiresAt: expiresAt})
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "episode_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"expires_at"}),
		}).Create(&rows).Error; err != nil {
			return err
		}

		rejected = int64(len(queued))
		return nil
	})
	if err != nil {
		log.Error("failed to reject pending deletions", "error", err)
		return 0, err
	}
	return rejected, nil
}

// GetRejection returns the rejection of an episode or nil if there is none.
func (c *Client) GetRejection(ctx context.Context, episodeID int32) (*RejectedEpisode, error) {
	var rejection RejectedEpisode
	if err := c.db.WithContext(ctx).Where("episode_id = ?", episodeID).First(&rejection).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		log.Error("failed to get rejection", "episode", episodeID, "error", err)
		return nil, err
	}
	return &rejection, nil
}

// ListRejections returns all stored rejections, expired or not.
func (c *Client) ListRejections(ctx context.Context) ([]RejectedEpisode, error) {
	var rejections []RejectedEpisode
	if err := c.db.WithContext(ctx).Order("expires_at ASC").Find(&rejections).Error; err != nil {
		log.Error("failed to list rejections", "error", err)
		return nil, err
	}
	return rejections, nil
}

// DeleteExpiredRejections removes rejections that expired before now.
func (c *Client) DeleteExpiredRejections(ctx context.Context, now time.Time) (int64, error) {
	res := c.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&RejectedEpisode{})
	if res.Error != nil {
		log.Error("failed to delete expired rejections", "error", res.Error)
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
