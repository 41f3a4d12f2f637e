package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jon4hz/episweep/internal/cache"
	"github.com/jon4hz/episweep/internal/database"
	"github.com/jon4hz/episweep/internal/engine"
	"github.com/jon4hz/episweep/internal/engine/activity"
	"github.com/jon4hz/episweep/internal/engine/arr"
	"github.com/jon4hz/episweep/internal/engine/pending"
	"github.com/jon4hz/episweep/internal/engine/rules"
	"github.com/jon4hz/episweep/internal/scheduler"
)

// Engine is the part of the retention engine the HTTP handlers drive.
type Engine interface {
	ProcessWatch(ctx context.Context, ev engine.WatchEvent) (*engine.WatchResult, error)
	ProcessGrab(ctx context.Context, seriesID int32) error
	SyncRuleTags(ctx context.Context) (*engine.SyncResult, error)
	RunGraceSweep(ctx context.Context, opts engine.SweepOptions) (*engine.SweepResult, error)

	PendingSummary(ctx context.Context) (*pending.Summary, error)
	PendingForSeries(ctx context.Context, seriesID int32) ([]pending.Item, error)
	Approve(ctx context.Context, episodeIDs []int32) (*pending.Result, error)
	ApproveSeries(ctx context.Context, seriesID int32) (*pending.Result, error)
	ApproveSeason(ctx context.Context, seriesID, season int32) (*pending.Result, error)
	Reject(ctx context.Context, episodeIDs []int32) (int64, error)
	RejectSeries(ctx context.Context, seriesID int32) (int64, error)
	ClearPending(ctx context.Context) (int64, error)

	Activity(ctx context.Context, seriesID int32) ([]database.ActivityRecord, *activity.Position, error)
	GetHistory(ctx context.Context, filter database.HistoryFilter) ([]database.HistoryEvent, int64, error)

	ListAssignments(ctx context.Context) ([]database.SeriesAssignment, error)
	AssignRule(ctx context.Context, seriesID int32, title, ruleName string, scope rules.GraceScope, source database.AssignmentSource) (*database.SeriesAssignment, bool, error)
	UnassignRule(ctx context.Context, seriesID int32) error

	GetScheduler() *scheduler.Scheduler
	CacheStats() []*cache.Stats
	ClearCache(ctx context.Context)
}

var _ Engine = (*engine.Engine)(nil)

type Handler struct {
	engine Engine
}

func New(eng Engine) *Handler {
	return &Handler{
		engine: eng,
	}
}

// Health reports that the server is up.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// errorStatus maps engine errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrSeriesNotFound), errors.Is(err, arr.ErrEpisodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrSeriesNotManaged):
		return http.StatusConflict
	case errors.Is(err, engine.ErrUnknownRule):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(errorStatus(err), gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

func parseInt32Param(c *gin.Context, name string) (int32, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 32)
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid " + name,
		})
		return 0, false
	}
	return int32(v), true
}
