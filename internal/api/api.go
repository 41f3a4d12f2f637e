package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/episweep/internal/api/auth"
	"github.com/jon4hz/episweep/internal/api/handler"
	"github.com/jon4hz/episweep/internal/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	cfg       *config.Config
	ginEngine *gin.Engine
	engine    handler.Engine
}

func New(cfg *config.Config, e handler.Engine, debug bool) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if e == nil {
		return nil, fmt.Errorf("engine is required")
	}

	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery(), requestLogger())

	s := &Server{
		cfg:       cfg,
		ginEngine: ginEngine,
		engine:    e,
	}
	s.setupRoutes()
	return s, nil
}

// requestLogger logs every request at debug level.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"took", time.Since(start).Round(time.Microsecond),
		)
	}
}

func (s *Server) setupRoutes() {
	h := handler.New(s.engine)

	s.ginEngine.GET("/healthz", h.Health)
	s.ginEngine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	webhooks := s.ginEngine.Group("/webhook")
	webhooks.Use(auth.RequireAPIKey(s.cfg.APIKey))
	webhooks.POST("/watched", h.Watched)
	webhooks.POST("/jellyfin", h.Jellyfin)
	webhooks.POST("/sonarr", h.Sonarr)

	api := s.ginEngine.Group("/api")
	api.Use(auth.RequireAPIKey(s.cfg.APIKey), gzip.Gzip(gzip.DefaultCompression))

	api.GET("/pending", h.GetPending)
	api.DELETE("/pending", h.ClearPending)
	api.POST("/pending/approve", h.ApprovePending)
	api.POST("/pending/reject", h.RejectPending)
	api.GET("/pending/series/:id", h.GetPendingSeries)

	api.GET("/activity/:seriesID", h.GetActivity)
	api.GET("/history", h.GetHistory)

	api.GET("/series", h.GetSeries)
	api.POST("/series/sync", h.SyncSeries)
	api.PUT("/series/:id", h.AssignSeries)
	api.DELETE("/series/:id", h.UnassignSeries)

	api.POST("/sweep", h.RunGraceSweep)

	api.GET("/jobs", h.GetSchedulerJobs)
	api.POST("/jobs/:id/run", h.RunSchedulerJob)
	api.POST("/jobs/:id/enable", h.EnableSchedulerJob)
	api.POST("/jobs/:id/disable", h.DisableSchedulerJob)

	api.GET("/cache/stats", h.GetCacheStats)
	api.DELETE("/cache", h.ClearCache)
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.ginEngine
}

// Run serves HTTP until ctx is cancelled, then shuts the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.ginEngine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}
