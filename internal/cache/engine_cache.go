package cache

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/eko/gocache/lib/v4/codec"
	"github.com/jon4hz/episweep/internal/config"
	"github.com/jon4hz/episweep/internal/engine/arr"
)

// TagMap maps Sonarr tag ids to their labels.
type TagMap map[int32]string

// Cache key prefixes.
const (
	SonarrSeriesCachePrefix = "sonarr-series-"
	SonarrTagsCachePrefix   = "sonarr-tags-"
)

// EngineCache holds the catalog caches shared by the engine and the Sonarr adapter.
type EngineCache struct {
	SeriesCache *PrefixedCache[[]arr.Series]
	TagsCache   *PrefixedCache[TagMap]
}

// NewEngineCache creates the caches for the configured backend.
func NewEngineCache(cfg *config.Config) (*EngineCache, error) {
	cacheCfg := cfg.Cache
	if cacheCfg == nil {
		cacheCfg = &config.CacheConfig{Type: config.CacheTypeMemory}
	}

	seriesBackend, err := newCacheInstanceByType(cacheCfg)
	if err != nil {
		return nil, err
	}
	tagsBackend, err := newCacheInstanceByType(cacheCfg)
	if err != nil {
		return nil, err
	}

	ttl := cfg.GetCacheTTL()
	return &EngineCache{
		SeriesCache: NewPrefixedCache[[]arr.Series](seriesBackend, SonarrSeriesCachePrefix, ttl),
		TagsCache:   NewPrefixedCache[TagMap](tagsBackend, SonarrTagsCachePrefix, ttl),
	}, nil
}

// ClearAll empties every cache. Errors are logged.
func (e *EngineCache) ClearAll(ctx context.Context) {
	errs := []error{
		e.SeriesCache.Clear(ctx),
		e.TagsCache.Clear(ctx),
	}
	for _, err := range errs {
		if err != nil {
			log.Errorf("failed to clear cache: %v", err)
		}
	}
}

type Stats struct {
	*codec.Stats
	CacheName string `json:"cacheName"`
}

func (e *EngineCache) GetStats() []*Stats {
	return []*Stats{
		{
			Stats:     e.SeriesCache.GetStats(),
			CacheName: "sonarr-series",
		},
		{
			Stats:     e.TagsCache.GetStats(),
			CacheName: "sonarr-tags",
		},
	}
}
