package tautulli

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ccoveille/go-safecast"
	"github.com/charmbracelet/log"
	"github.com/jon4hz/episweep/internal/config"
	"github.com/jon4hz/episweep/internal/engine/stats"
	"github.com/jon4hz/episweep/pkg/tautulli"
	"github.com/samber/lo"
)

const (
	// historyLength is the number of rows fetched per search.
	historyLength = 25
	// maxVariations limits the searches per lookup.
	maxVariations = 3
)

var yearSuffix = regexp.MustCompile(`\s*\(\d{4}\)`)

var _ stats.HistorySource = (*tautulliClient)(nil)

type tautulliClient struct {
	client *tautulli.Client
}

// New creates a watch-history source backed by Tautulli.
func New(cfg *config.TautulliConfig) stats.HistorySource {
	return &tautulliClient{
		client: tautulli.New(cfg),
	}
}

func (t *tautulliClient) Name() string {
	return string(config.HistorySourceTautulli)
}

// LastWatched searches the episode history for a few spellings of the title
// and returns the newest playback of the best matching series.
func (t *tautulliClient) LastWatched(ctx context.Context, seriesTitle string) (*stats.Watch, error) {
	for _, search := range titleVariations(seriesTitle) {
		rows, err := t.client.GetHistory(ctx, tautulli.HistoryParams{
			MediaType: tautulli.MediaTypeEpisode,
			Search:    search,
			Length:    historyLength,
		})
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			log.Debug("No tautulli history for title variation", "title", search)
			continue
		}

		idx := stats.BestMatch(seriesTitle, lo.Map(rows, func(r tautulli.HistoryRow, _ int) string {
			return r.GrandparentTitle
		}))
		if idx < 0 {
			continue
		}

		// rows are newest first, so take the first row of the matched series
		matched := rows[idx].GrandparentTitle
		row, _ := lo.Find(rows, func(r tautulli.HistoryRow) bool { return r.GrandparentTitle == matched })
		return toWatch(row)
	}
	return nil, stats.ErrNoHistory
}

func toWatch(row tautulli.HistoryRow) (*stats.Watch, error) {
	w := &stats.Watch{
		WatchedAt: row.Time(),
		Title:     row.GrandparentTitle,
	}
	if row.MediaIndex <= 0 {
		return w, nil
	}

	season, err := safecast.ToInt32(int64(row.ParentMediaIndex))
	if err != nil {
		return nil, fmt.Errorf("invalid season index: %w", err)
	}
	episode, err := safecast.ToInt32(int64(row.MediaIndex))
	if err != nil {
		return nil, fmt.Errorf("invalid episode index: %w", err)
	}
	w.Season, w.Episode = &season, &episode
	return w, nil
}

// titleVariations returns distinct search strings, the original title first.
func titleVariations(title string) []string {
	variations := lo.Uniq([]string{
		title,
		strings.TrimSpace(yearSuffix.ReplaceAllString(title, "")),
		strings.ReplaceAll(title, ": ", " - "),
		strings.ReplaceAll(title, ": ", " "),
	})
	variations = lo.Compact(variations)
	if len(variations) > maxVariations {
		variations = variations[:maxVariations]
	}
	return variations
}
