package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/episweep/internal/database"
	"github.com/jon4hz/episweep/internal/engine"
)

// WatchedRequest is the body of the generic watch webhook. It also accepts the
// field names of a Tautulli notification agent template.
type WatchedRequest struct {
	SeriesID    int32       `json:"seriesId"`
	SeriesTitle string      `json:"seriesTitle"`
	Season      json.Number `json:"season"`
	Episode     json.Number `json:"episode"`
	Source      string      `json:"source"`

	// Tautulli template fields.
	PlexTitle      string      `json:"plex_title"`
	PlexSeasonNum  json.Number `json:"plex_season_num"`
	PlexEpisodeNum json.Number `json:"plex_ep_num"`
}

func (r WatchedRequest) toEvent() (engine.WatchEvent, bool) {
	ev := engine.WatchEvent{
		SeriesID:    r.SeriesID,
		SeriesTitle: r.SeriesTitle,
		Source:      database.ActivitySource(r.Source),
	}
	season, episode := r.Season, r.Episode
	if r.PlexTitle != "" {
		ev.SeriesTitle = r.PlexTitle
		season, episode = r.PlexSeasonNum, r.PlexEpisodeNum
		if ev.Source == "" {
			ev.Source = database.ActivitySourceTautulli
		}
	}

	s, err := season.Int64()
	if err != nil {
		return ev, false
	}
	e, err := episode.Int64()
	if err != nil {
		return ev, false
	}
	ev.Season, ev.Episode = int32(s), int32(e) //nolint:gosec
	return ev, ev.SeriesID != 0 || ev.SeriesTitle != ""
}

// Watched handles a generic or Tautulli watch notification.
func (h *Handler) Watched(c *gin.Context) {
	var request WatchedRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
		return
	}
	ev, ok := request.toEvent()
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Series, season and episode are required"})
		return
	}
	h.processWatch(c, ev)
}

// JellyfinRequest is the payload of the Jellyfin webhook plugin.
type JellyfinRequest struct {
	NotificationType      string `json:"NotificationType"`
	ItemType              string `json:"ItemType"`
	SeriesName            string `json:"SeriesName"`
	SeasonNumber          int32  `json:"SeasonNumber"`
	EpisodeNumber         int32  `json:"EpisodeNumber"`
	PlayedToCompletion    bool   `json:"PlayedToCompletion"`
	PlaybackPositionTicks int64  `json:"PlaybackPositionTicks"`
	RunTimeTicks          int64  `json:"RunTimeTicks"`
}

// counts reports whether the notification is a watch worth acting on: a playback that
// stopped at the end, or a progress report around the middle of the episode.
func (r JellyfinRequest) counts() bool {
	switch r.NotificationType {
	case "PlaybackStop":
		return r.PlayedToCompletion
	case "PlaybackProgress":
		if r.RunTimeTicks <= 0 {
			return false
		}
		progress := float64(r.PlaybackPositionTicks) / float64(r.RunTimeTicks) * 100
		return progress >= 45 && progress <= 55
	default:
		return false
	}
}

// Jellyfin handles the Jellyfin webhook plugin.
func (h *Handler) Jellyfin(c *gin.Context) {
	var request JellyfinRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
		return
	}

	if request.ItemType != "Episode" || !request.counts() {
		log.Debug("Ignoring Jellyfin notification", "type", request.NotificationType, "item", request.ItemType)
		c.JSON(http.StatusOK, gin.H{"success": true, "ignored": true})
		return
	}
	if request.SeriesName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "SeriesName is required"})
		return
	}

	h.processWatch(c, engine.WatchEvent{
		SeriesTitle: request.SeriesName,
		Season:      request.SeasonNumber,
		Episode:     request.EpisodeNumber,
		Source:      database.ActivitySourceJellyfin,
	})
}

func (h *Handler) processWatch(c *gin.Context, ev engine.WatchEvent) {
	result, err := h.engine.ProcessWatch(c.Request.Context(), ev)
	if errors.Is(err, engine.ErrSeriesNotManaged) {
		c.JSON(http.StatusOK, gin.H{"success": true, "ignored": true, "reason": err.Error()})
		return
	}
	if err != nil {
		log.Error("Failed to process watch event", "series", ev.SeriesTitle, "series_id", ev.SeriesID, "error", err)
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

// SonarrRequest is the part of the Sonarr webhook payload that is used.
type SonarrRequest struct {
	EventType string `json:"eventType"`
	Series    struct {
		ID    int32  `json:"id"`
		Title string `json:"title"`
	} `json:"series"`
}

// Sonarr handles the Sonarr connection webhook. A grab re-arms the grace sweep of the series,
// an added series triggers a rule tag sync.
func (h *Handler) Sonarr(c *gin.Context) {
	var request SonarrRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
		return
	}

	ctx := c.Request.Context()
	switch strings.ToLower(request.EventType) {
	case "test":
		log.Info("Received Sonarr test webhook")
	case "grab":
		err := h.engine.ProcessGrab(ctx, request.Series.ID)
		if errors.Is(err, engine.ErrSeriesNotManaged) {
			c.JSON(http.StatusOK, gin.H{"success": true, "ignored": true})
			return
		}
		if err != nil {
			log.Error("Failed to process grab", "series", request.Series.Title, "error", err)
			abortWithError(c, err)
			return
		}
	case "seriesadd":
		if _, err := h.engine.SyncRuleTags(ctx); err != nil {
			log.Error("Failed to sync rule tags after series was added", "series", request.Series.Title, "error", err)
			abortWithError(c, err)
			return
		}
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "ignored": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
