package handler

import (
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/episweep/internal/engine/pending"
)

// DecisionRequest selects queued episodes by id, by series, or by season of a series.
type DecisionRequest struct {
	EpisodeIDs []int32 `json:"episodeIds"`
	SeriesID   int32   `json:"seriesId"`
	Season     *int32  `json:"season"`
}

func (r DecisionRequest) valid() bool {
	return len(r.EpisodeIDs) > 0 || r.SeriesID > 0
}

// GetPending returns the pending deletion queue grouped by series and season.
func (h *Handler) GetPending(c *gin.Context) {
	summary, err := h.engine.PendingSummary(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"pending":   summary,
		"totalSize": humanize.IBytes(uint64(max(summary.TotalSize, 0))),
	})
}

// GetPendingSeries returns the queued episodes of a series.
func (h *Handler) GetPendingSeries(c *gin.Context) {
	seriesID, ok := parseInt32Param(c, "id")
	if !ok {
		return
	}
	items, err := h.engine.PendingForSeries(c.Request.Context(), seriesID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"episodes": items,
	})
}

// ApprovePending deletes the selected queued episodes.
func (h *Handler) ApprovePending(c *gin.Context) {
	var request DecisionRequest
	if err := c.ShouldBindJSON(&request); err != nil || !request.valid() {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "episodeIds or seriesId is required"})
		return
	}

	ctx := c.Request.Context()
	var (
		result *pending.Result
		err    error
	)
	switch {
	case len(request.EpisodeIDs) > 0:
		result, err = h.engine.Approve(ctx, request.EpisodeIDs)
	case request.Season != nil:
		result, err = h.engine.ApproveSeason(ctx, request.SeriesID, *request.Season)
	default:
		result, err = h.engine.ApproveSeries(ctx, request.SeriesID)
	}
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   len(result.Errors) == 0,
		"processed": result.Processed,
		"errors":    result.Errors,
	})
}

// RejectPending removes the selected episodes from the queue and protects them from being queued again.
func (h *Handler) RejectPending(c *gin.Context) {
	var request DecisionRequest
	if err := c.ShouldBindJSON(&request); err != nil || !request.valid() {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "episodeIds or seriesId is required"})
		return
	}

	ctx := c.Request.Context()
	var (
		n   int64
		err error
	)
	if len(request.EpisodeIDs) > 0 {
		n, err = h.engine.Reject(ctx, request.EpisodeIDs)
	} else {
		n, err = h.engine.RejectSeries(ctx, request.SeriesID)
	}
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"processed": n,
		"errors":    []pending.ItemError{},
	})
}

// ClearPending empties the queue.
func (h *Handler) ClearPending(c *gin.Context) {
	n, err := h.engine.ClearPending(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"cleared": n,
	})
}
