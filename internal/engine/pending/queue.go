package pending

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/jon4hz/episweep/internal/database"
	"github.com/jon4hz/episweep/internal/engine/arr"
	"github.com/samber/lo"
)

// RejectionCooldown is how long a rejected episode is protected from being queued again.
const RejectionCooldown = 30 * 24 * time.Hour

// ErrNoEpisodeFile is returned for queued episodes that have no file to delete.
var ErrNoEpisodeFile = errors.New("episode has no file")

// Entry is a deletion candidate handed to the queue.
type Entry struct {
	Episode     arr.Episode
	SeriesTitle string
	// Reason is a short tag like "Grace Period" or "Keep Rule (keeping 2 episodes)".
	Reason     string
	RuleName   string
	DateSource string
	DateValue  time.Time
}

// Item is a queued deletion with its decoded episode snapshot.
type Item struct {
	database.PendingDeletion
	Episode arr.Episode `json:"episode"`
}

// SeasonGroup holds the queued episodes of one season.
type SeasonGroup struct {
	Season   int32  `json:"season"`
	Size     int64  `json:"size"`
	Episodes []Item `json:"episodes"`
}

// SeriesGroup holds the queued seasons of one series.
type SeriesGroup struct {
	SeriesID int32         `json:"seriesId"`
	Title    string        `json:"title"`
	Size     int64         `json:"size"`
	Seasons  []SeasonGroup `json:"seasons"`
}

// Summary aggregates the whole queue.
type Summary struct {
	SeriesCount  int           `json:"seriesCount"`
	EpisodeCount int           `json:"episodeCount"`
	TotalSize    int64         `json:"totalSize"`
	Series       []SeriesGroup `json:"series"`
}

// ItemError is the failure of a single item in a batch.
type ItemError struct {
	EpisodeID int32  `json:"episodeId"`
	Error     string `json:"error"`
}

// Result is the outcome of a batch approval.
type Result struct {
	Processed int         `json:"processed"`
	Errors    []ItemError `json:"errors"`
	// Deleted holds the entries that were removed from the queue.
	Deleted []Item `json:"-"`
}

// DeleteFunc deletes the file of a queued episode.
type DeleteFunc func(ctx context.Context, item Item) error

// Queue is the durable deletion queue together with the rejection cache.
// Both share one lock so rejecting and caching happen atomically.
type Queue struct {
	mu  sync.Mutex
	db  database.PendingDB
	now func() time.Time
}

// NewQueue creates a queue on top of the database.
func NewQueue(db database.PendingDB) *Queue {
	return &Queue{
		db:  db,
		now: time.Now,
	}
}

// Enqueue adds a deletion candidate. It is a no-op when the episode is already queued
// or protected by a live rejection. The returned bool reports whether the entry was added.
func (q *Queue) Enqueue(ctx context.Context, e Entry) (bool, error) {
	snapshot, err := json.Marshal(e.Episode)
	if err != nil {
		return false, fmt.Errorf("failed to encode episode %d: %w", e.Episode.ID, err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	added, err := q.db.EnqueuePendingDeletion(ctx, database.PendingDeletion{
		EpisodeID:     e.Episode.ID,
		SeriesID:      e.Episode.SeriesID,
		SeriesTitle:   e.SeriesTitle,
		SeasonNumber:  e.Episode.SeasonNumber,
		EpisodeNumber: e.Episode.EpisodeNumber,
		EpisodeTitle:  e.Episode.Title,
		EpisodeFileID: e.Episode.EpisodeFileID,
		FileSize:      e.Episode.Size,
		Reason:        e.Reason,
		RuleName:      e.RuleName,
		DateSource:    e.DateSource,
		DateValue:     e.DateValue,
		Snapshot:      string(snapshot),
	}, q.now())
	if err != nil {
		return false, fmt.Errorf("failed to enqueue episode %d: %w", e.Episode.ID, err)
	}

	if added {
		log.Debug("Queued episode for deletion", "series", e.SeriesTitle, "season", e.Episode.SeasonNumber,
			"episode", e.Episode.EpisodeNumber, "reason", e.Reason, "size", humanize.IBytes(uint64(max(e.Episode.Size, 0))))
	}
	return added, nil
}

// Items returns all queued entries in catalog order.
func (q *Queue) Items(ctx context.Context) ([]Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rows, err := q.db.ListPendingDeletions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending deletions: %w", err)
	}
	return q.decode(ctx, rows), nil
}

// Summary groups the queue by series and season and totals counts and sizes.
func (q *Queue) Summary(ctx context.Context) (*Summary, error) {
	items, err := q.Items(ctx)
	if err != nil {
		return nil, err
	}
	return summarize(items), nil
}

func summarize(items []Item) *Summary {
	summary := &Summary{
		EpisodeCount: len(items),
		Series:       []SeriesGroup{},
	}

	bySeries := lo.GroupBy(items, func(i Item) int32 { return i.SeriesID })
	for seriesID, seriesItems := range bySeries {
		group := SeriesGroup{
			SeriesID: seriesID,
			Title:    seriesItems[0].SeriesTitle,
		}

		bySeason := lo.GroupBy(seriesItems, func(i Item) int32 { return i.SeasonNumber })
		for season, episodes := range bySeason {
			slices.SortFunc(episodes, func(a, b Item) int { return cmp.Compare(a.EpisodeNumber, b.EpisodeNumber) })
			size := lo.SumBy(episodes, func(i Item) int64 { return i.FileSize })
			group.Seasons = append(group.Seasons, SeasonGroup{Season: season, Size: size, Episodes: episodes})
			group.Size += size
		}
		slices.SortFunc(group.Seasons, func(a, b SeasonGroup) int { return cmp.Compare(a.Season, b.Season) })

		summary.Series = append(summary.Series, group)
		summary.TotalSize += group.Size
	}

	slices.SortFunc(summary.Series, func(a, b SeriesGroup) int {
		return cmp.Or(cmp.Compare(a.Title, b.Title), cmp.Compare(a.SeriesID, b.SeriesID))
	})
	summary.SeriesCount = len(summary.Series)
	return summary
}

// Approve calls deleteFn for every queued entry among episodeIDs and removes the entry on success.
// Failures are collected per item and never abort the batch.
func (q *Queue) Approve(ctx context.Context, episodeIDs []int32, deleteFn DeleteFunc) (*Result, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rows, err := q.db.GetPendingDeletions(ctx, episodeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending deletions: %w", err)
	}

	result := &Result{Errors: []ItemError{}}
	for _, item := range q.decode(ctx, rows) {
		if item.EpisodeFileID == 0 {
			result.Errors = append(result.Errors, ItemError{EpisodeID: item.EpisodeID, Error: ErrNoEpisodeFile.Error()})
			continue
		}
		if err := deleteFn(ctx, item); err != nil {
			log.Error("Failed to delete queued episode", "series", item.SeriesTitle, "episode", item.EpisodeID, "error", err)
			result.Errors = append(result.Errors, ItemError{EpisodeID: item.EpisodeID, Error: err.Error()})
			continue
		}
		if _, err := q.db.DeletePendingDeletions(ctx, []int32{item.EpisodeID}); err != nil {
			result.Errors = append(result.Errors, ItemError{
				EpisodeID: item.EpisodeID,
				Error:     fmt.Sprintf("deleted but could not be removed from the queue: %v", err),
			})
			continue
		}
		result.Processed++
		result.Deleted = append(result.Deleted, item)
	}

	log.Info("Approved pending deletions", "requested", len(episodeIDs), "processed", result.Processed, "errors", len(result.Errors))
	return result, nil
}

// Reject removes the queued entries and protects their episodes for RejectionCooldown.
func (q *Queue) Reject(ctx context.Context, episodeIDs []int32) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n, err := q.db.RejectPendingDeletions(ctx, episodeIDs, q.now().Add(RejectionCooldown))
	if err != nil {
		return 0, fmt.Errorf("failed to reject pending deletions: %w", err)
	}
	log.Info("Rejected pending deletions", "requested", len(episodeIDs), "rejected", n)
	return n, nil
}

// ClearAll empties the queue. Rejections are kept.
func (q *Queue) ClearAll(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n, err := q.db.ClearPendingDeletions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to clear pending deletions: %w", err)
	}
	log.Info("Cleared pending deletions", "count", n)
	return n, nil
}

// Remove drops the entries of episodes that were deleted outside of the queue.
func (q *Queue) Remove(ctx context.Context, episodeIDs []int32) (int64, error) {
	if len(episodeIDs) == 0 {
		return 0, nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	n, err := q.db.DeletePendingDeletions(ctx, episodeIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to remove pending deletions: %w", err)
	}
	if n > 0 {
		log.Debug("Removed pending deletions", "count", n)
	}
	return n, nil
}

// EpisodeIDsForSeries returns the queued episode ids of a series.
func (q *Queue) EpisodeIDsForSeries(ctx context.Context, seriesID int32) ([]int32, error) {
	return q.episodeIDs(ctx, func(row database.PendingDeletion) bool {
		return row.SeriesID == seriesID
	})
}

// EpisodeIDsForSeason returns the queued episode ids of a single season.
func (q *Queue) EpisodeIDsForSeason(ctx context.Context, seriesID, season int32) ([]int32, error) {
	return q.episodeIDs(ctx, func(row database.PendingDeletion) bool {
		return row.SeriesID == seriesID && row.SeasonNumber == season
	})
}

func (q *Queue) episodeIDs(ctx context.Context, match func(database.PendingDeletion) bool) ([]int32, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rows, err := q.db.ListPendingDeletions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending deletions: %w", err)
	}
	return lo.FilterMap(rows, func(row database.PendingDeletion, _ int) (int32, bool) {
		return row.EpisodeID, match(row)
	}), nil
}

// IsRejected reports whether an episode is protected by a live rejection.
func (q *Queue) IsRejected(ctx context.Context, episodeID int32) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rejection, err := q.db.GetRejection(ctx, episodeID)
	if err != nil {
		return false, fmt.Errorf("failed to get rejection of episode %d: %w", episodeID, err)
	}
	return rejection != nil && rejection.ExpiresAt.After(q.now()), nil
}

// Rejections returns the live rejections.
func (q *Queue) Rejections(ctx context.Context) ([]database.RejectedEpisode, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rejections, err := q.db.ListRejections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rejections: %w", err)
	}
	now := q.now()
	return lo.Filter(rejections, func(r database.RejectedEpisode, _ int) bool {
		return r.ExpiresAt.After(now)
	}), nil
}

// CleanupExpiredRejections drops rejections whose cooldown has passed.
func (q *Queue) CleanupExpiredRejections(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n, err := q.db.DeleteExpiredRejections(ctx, q.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired rejections: %w", err)
	}
	if n > 0 {
		log.Info("Removed expired rejections", "count", n)
	}
	return n, nil
}

// decode unpacks the episode snapshots. Rows with an unreadable snapshot are dropped from the queue.
// Must be called with q.mu held.
func (q *Queue) decode(ctx context.Context, rows []database.PendingDeletion) []Item {
	items := make([]Item, 0, len(rows))
	var corrupt []int32
	for _, row := range rows {
		item := Item{PendingDeletion: row}
		if err := json.Unmarshal([]byte(row.Snapshot), &item.Episode); err != nil {
			log.Warn("Dropping pending deletion with corrupt snapshot", "episode", row.EpisodeID, "series", row.SeriesTitle, "error", err)
			corrupt = append(corrupt, row.EpisodeID)
			continue
		}
		items = append(items, item)
	}

	if len(corrupt) > 0 {
		if _, err := q.db.DeletePendingDeletions(ctx, corrupt); err != nil {
			log.Error("Failed to drop corrupt pending deletions", "count", len(corrupt), "error", err)
		}
	}
	return items
}
