package sonarr

import (
	"context"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	sonarrAPI "github.com/devopsarr/sonarr-go/sonarr"
	"github.com/jon4hz/episweep/internal/cache"
	"github.com/jon4hz/episweep/internal/config"
	"github.com/jon4hz/episweep/internal/engine/arr"
	"github.com/jon4hz/episweep/internal/version"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

var _ arr.Arrer = (*Sonarr)(nil)

// Sonarr is the catalog adapter backed by the Sonarr v3 API.
type Sonarr struct {
	client      *sonarrAPI.APIClient
	httpClient  *http.Client
	cfg         *config.SonarrConfig
	seriesCache *cache.PrefixedCache[[]arr.Series]
	tagsCache   *cache.PrefixedCache[cache.TagMap]
}

func sonarrAuthCtx(ctx context.Context, cfg *config.SonarrConfig) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg == nil {
		return ctx
	}
	return context.WithValue(
		ctx,
		sonarrAPI.ContextAPIKeys,
		map[string]sonarrAPI.APIKey{
			"X-Api-Key": {Key: cfg.APIKey},
		},
	)
}

// New creates a Sonarr adapter. Every request is bounded by the configured timeout.
func New(cfg *config.SonarrConfig, engineCache *cache.EngineCache) *Sonarr {
	httpClient := &http.Client{Timeout: cfg.GetSonarrTimeout()}

	clientConfig := sonarrAPI.NewConfiguration()
	clientConfig.Servers[0].URL = cfg.URL
	clientConfig.HTTPClient = httpClient
	clientConfig.UserAgent = fmt.Sprintf("episweep/%s", version.Version)

	return &Sonarr{
		client:      sonarrAPI.NewAPIClient(clientConfig),
		httpClient:  httpClient,
		cfg:         cfg,
		seriesCache: engineCache.SeriesCache,
		tagsCache:   engineCache.TagsCache,
	}
}

// ListSeries returns all series known to Sonarr. The list is cached.
func (s *Sonarr) ListSeries(ctx context.Context, forceRefresh bool) ([]arr.Series, error) {
	if forceRefresh {
		if err := s.seriesCache.Delete(ctx, "all"); err != nil {
			log.Debug("Failed to clear sonarr series cache", "error", err)
		}
	} else if cached, err := s.seriesCache.Get(ctx, "all"); err == nil && len(cached) != 0 {
		return cached, nil
	}

	resources, resp, err := s.client.SeriesAPI.ListSeries(sonarrAuthCtx(ctx, s.cfg)).IncludeSeasonImages(false).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list sonarr series: %w", err)
	}
	defer resp.Body.Close() //nolint: errcheck

	series := lo.Map(resources, func(r sonarrAPI.SeriesResource, _ int) arr.Series {
		return arr.Series{
			ID:    r.GetId(),
			Title: r.GetTitle(),
			Year:  r.GetYear(),
			Tags:  r.GetTags(),
		}
	})

	if err := s.seriesCache.Set(ctx, "all", series); err != nil {
		log.Warnf("Failed to cache Sonarr series: %v", err)
	}
	return series, nil
}

// GetTags returns the Sonarr tag labels by id. The map is cached.
func (s *Sonarr) GetTags(ctx context.Context, forceRefresh bool) (map[int32]string, error) {
	if forceRefresh {
		if err := s.tagsCache.Delete(ctx, "all"); err != nil {
			log.Debug("Failed to clear Sonarr tags cache", "error", err)
		}
	} else if cached, err := s.tagsCache.Get(ctx, "all"); err == nil && len(cached) != 0 {
		return cached, nil
	}

	tagList, resp, err := s.client.TagAPI.ListTag(sonarrAuthCtx(ctx, s.cfg)).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list sonarr tags: %w", err)
	}
	defer resp.Body.Close() //nolint: errcheck

	tagMap := make(cache.TagMap, len(tagList))
	for _, tag := range tagList {
		tagMap[tag.GetId()] = tag.GetLabel()
	}
	if err := s.tagsCache.Set(ctx, "all", tagMap); err != nil {
		log.Warnf("Failed to cache Sonarr tags: %v", err)
	}
	return tagMap, nil
}

// ListEpisodes returns the episodes of a series joined with their file information.
func (s *Sonarr) ListEpisodes(ctx context.Context, seriesID int32) ([]arr.Episode, error) {
	var (
		resources []sonarrAPI.EpisodeResource
		files     []arr.EpisodeFile
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		resources, err = s.listEpisodeResources(gctx, seriesID)
		return err
	})
	g.Go(func() error {
		var err error
		files, err = s.ListEpisodeFiles(gctx, seriesID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := lo.KeyBy(files, func(f arr.EpisodeFile) int32 { return f.ID })

	episodes := make([]arr.Episode, 0, len(resources))
	for _, r := range resources {
		e := arr.Episode{
			ID:            r.GetId(),
			SeriesID:      r.GetSeriesId(),
			SeasonNumber:  r.GetSeasonNumber(),
			EpisodeNumber: r.GetEpisodeNumber(),
			Title:         r.GetTitle(),
			HasFile:       r.GetHasFile(),
			Monitored:     r.GetMonitored(),
			EpisodeFileID: r.GetEpisodeFileId(),
		}
		if f, ok := byID[e.EpisodeFileID]; ok {
			e.Size = f.Size
			e.DateAdded = f.DateAdded
		}
		episodes = append(episodes, e)
	}
	arr.SortEpisodes(episodes)
	return episodes, nil
}

func (s *Sonarr) listEpisodeResources(ctx context.Context, seriesID int32) ([]sonarrAPI.EpisodeResource, error) {
	episodes, resp, err := s.client.EpisodeAPI.ListEpisode(sonarrAuthCtx(ctx, s.cfg)).
		SeriesId(seriesID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list episodes of series %d: %w", seriesID, err)
	}
	defer resp.Body.Close() //nolint: errcheck
	return episodes, nil
}

// ListEpisodeFiles returns the downloaded files of a series.
func (s *Sonarr) ListEpisodeFiles(ctx context.Context, seriesID int32) ([]arr.EpisodeFile, error) {
	resources, resp, err := s.client.EpisodeFileAPI.ListEpisodeFile(sonarrAuthCtx(ctx, s.cfg)).
		SeriesId(seriesID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list episode files of series %d: %w", seriesID, err)
	}
	defer resp.Body.Close() //nolint: errcheck

	return lo.Map(resources, func(r sonarrAPI.EpisodeFileResource, _ int) arr.EpisodeFile {
		return arr.EpisodeFile{
			ID:           r.GetId(),
			SeriesID:     r.GetSeriesId(),
			SeasonNumber: r.GetSeasonNumber(),
			Size:         r.GetSize(),
			DateAdded:    r.GetDateAdded(),
		}
	}), nil
}

// SetMonitored changes the monitored flag of the given episodes.
func (s *Sonarr) SetMonitored(ctx context.Context, episodeIDs []int32, monitored bool) error {
	if len(episodeIDs) == 0 {
		return nil
	}

	resource := sonarrAPI.NewEpisodesMonitoredResource()
	resource.SetEpisodeIds(episodeIDs)
	resource.SetMonitored(monitored)

	resp, err := s.client.EpisodeAPI.PutEpisodeMonitor(sonarrAuthCtx(ctx, s.cfg)).
		EpisodesMonitoredResource(*resource).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to set monitored=%t on %d episodes: %w", monitored, len(episodeIDs), err)
	}
	defer resp.Body.Close() //nolint: errcheck

	log.Debug("Updated monitored state", "episodes", len(episodeIDs), "monitored", monitored)
	return nil
}

// DeleteEpisodeFile deletes a downloaded episode file.
func (s *Sonarr) DeleteEpisodeFile(ctx context.Context, episodeFileID int32) error {
	resp, err := s.client.EpisodeFileAPI.DeleteEpisodeFile(sonarrAuthCtx(ctx, s.cfg), episodeFileID).Execute()
	if err != nil {
		return fmt.Errorf("failed to delete episode file %d: %w", episodeFileID, err)
	}
	defer resp.Body.Close() //nolint: errcheck
	return nil
}
