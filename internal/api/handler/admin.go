package handler

import (
	"net/http"
	"strconv"

	"github.com/ccoveille/go-safecast"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/episweep/internal/api/models"
	"github.com/jon4hz/episweep/internal/database"
	"github.com/jon4hz/episweep/internal/engine"
	"github.com/jon4hz/episweep/internal/engine/rules"
)

// GetActivity returns the local activity and the resolved position of a series.
func (h *Handler) GetActivity(c *gin.Context) {
	seriesID, ok := parseInt32Param(c, "seriesID")
	if !ok {
		return
	}

	records, pos, err := h.engine.Activity(c.Request.Context(), seriesID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"activity": models.ToActivityResponse(seriesID, records, pos),
	})
}

// GetSchedulerJobs returns all scheduler jobs as JSON.
func (h *Handler) GetSchedulerJobs(c *gin.Context) {
	jobs := h.engine.GetScheduler().GetJobs()

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"jobs":    jobs,
	})
}

// RunSchedulerJob manually triggers a scheduler job.
func (h *Handler) RunSchedulerJob(c *gin.Context) {
	jobID := c.Param("id")

	if err := h.engine.GetScheduler().RunJobNow(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Job triggered successfully",
	})
}

// EnableSchedulerJob enables a scheduler job.
func (h *Handler) EnableSchedulerJob(c *gin.Context) {
	h.setJobEnabled(c, true)
}

// DisableSchedulerJob disables a scheduler job.
func (h *Handler) DisableSchedulerJob(c *gin.Context) {
	h.setJobEnabled(c, false)
}

func (h *Handler) setJobEnabled(c *gin.Context, enabled bool) {
	if err := h.engine.GetScheduler().SetEnabled(c.Param("id"), enabled); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"enabled": enabled,
	})
}

// RunGraceSweep runs a grace sweep synchronously. dryRun=true only reports what would be queued.
func (h *Handler) RunGraceSweep(c *gin.Context) {
	dryRun, _ := strconv.ParseBool(c.Query("dryRun"))
	force, _ := strconv.ParseBool(c.Query("force"))

	result, err := h.engine.RunGraceSweep(c.Request.Context(), engine.SweepOptions{
		DryRun:            dryRun,
		IgnoreStorageGate: force,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

// GetHistory returns paginated history events, optionally filtered by series and event type.
func (h *Handler) GetHistory(c *gin.Context) {
	filter := database.HistoryFilter{
		Page:      1,
		PageSize:  50,
		EventType: database.HistoryEventType(c.Query("type")),
	}

	if pageStr := c.Query("page"); pageStr != "" {
		p, err := strconv.ParseUint(pageStr, 10, 32)
		if err == nil && p > 0 {
			filter.Page, err = safecast.ToInt(p)
		}
		if err != nil || p == 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "Invalid page parameter",
			})
			return
		}
	}

	if pageSizeStr := c.Query("pageSize"); pageSizeStr != "" {
		ps, err := strconv.ParseUint(pageSizeStr, 10, 32)
		if err == nil && ps > 0 && ps <= 100 {
			filter.PageSize, err = safecast.ToInt(ps)
		}
		if err != nil || ps == 0 || ps > 100 {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "Invalid pageSize parameter",
			})
			return
		}
	}

	if seriesStr := c.Query("seriesId"); seriesStr != "" {
		id, err := strconv.ParseInt(seriesStr, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "Invalid seriesId parameter",
			})
			return
		}
		filter.SeriesID = int32(id)
	}

	events, total, err := h.engine.GetHistory(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to get history",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    models.NewHistoryResponse(events, total, filter.Page, filter.PageSize),
	})
}

// GetSeries returns all managed series.
func (h *Handler) GetSeries(c *gin.Context) {
	assignments, err := h.engine.ListAssignments(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"series":  models.ToAssignmentItems(assignments),
	})
}

// AssignRequest is the body of a rule assignment.
type AssignRequest struct {
	Rule       string `json:"rule"`
	GraceScope string `json:"graceScope"`
}

// AssignSeries assigns a series to a rule.
func (h *Handler) AssignSeries(c *gin.Context) {
	seriesID, ok := parseInt32Param(c, "id")
	if !ok {
		return
	}
	var request AssignRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
		return
	}

	assignment, changed, err := h.engine.AssignRule(c.Request.Context(), seriesID, "", request.Rule, rules.GraceScope(request.GraceScope), database.AssignmentSourceAPI)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"changed": changed,
		"series":  models.ToAssignmentItems([]database.SeriesAssignment{*assignment})[0],
	})
}

// UnassignSeries stops managing a series.
func (h *Handler) UnassignSeries(c *gin.Context) {
	seriesID, ok := parseInt32Param(c, "id")
	if !ok {
		return
	}
	if err := h.engine.UnassignRule(c.Request.Context(), seriesID); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SyncSeries runs the rule tag sync.
func (h *Handler) SyncSeries(c *gin.Context) {
	result, err := h.engine.SyncRuleTags(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

// GetCacheStats returns cache statistics.
func (h *Handler) GetCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   h.engine.CacheStats(),
	})
}

// ClearCache clears the catalog cache.
func (h *Handler) ClearCache(c *gin.Context) {
	h.engine.ClearCache(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Cache cleared successfully",
	})
}
