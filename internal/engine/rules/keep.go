package rules

import (
	"slices"

	"github.com/jon4hz/episweep/internal/engine/arr"
	"github.com/samber/lo"
)

// EpisodesLeavingKeepBlock returns the downloaded episodes that fall outside the keep window
// ending at the watched position.
func EpisodesLeavingKeepBlock(episodes []arr.Episode, keepType Type, keepCount int, watchedSeason, watchedEpisode int32) []arr.Episode {
	if parsed, ok := ParseType(string(keepType)); !ok {
		keepType, keepCount = TypeEpisodes, 1
	} else {
		keepType = parsed
	}
	keepCount = max(keepCount, 1)

	switch keepType {
	case TypeAll:
		return nil

	case TypeSeasons:
		cutoff := watchedSeason - int32(keepCount) + 1 //nolint:gosec
		return lo.Filter(episodes, func(e arr.Episode, _ int) bool {
			return e.Downloaded() && e.SeasonNumber < cutoff
		})

	default:
		sorted := slices.Clone(episodes)
		arr.SortEpisodes(sorted)

		idx := slices.IndexFunc(sorted, func(e arr.Episode) bool {
			return e.SeasonNumber == watchedSeason && e.EpisodeNumber == watchedEpisode
		})
		if idx < 0 {
			return nil
		}

		keepStart := max(0, idx-keepCount+1)
		return lo.Filter(sorted[:keepStart], func(e arr.Episode, _ int) bool {
			return e.Downloaded()
		})
	}
}
