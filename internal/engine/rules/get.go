package rules

import (
	"slices"

	"github.com/jon4hz/episweep/internal/engine/arr"
	"github.com/samber/lo"
)

// MaxSeasonsAhead bounds how many seasons past the current one are scanned in episodes mode.
// Season numbers without episodes inside the bound are skipped, not treated as the end of the series.
const MaxSeasonsAhead = 10

// NextEpisodes returns the episodes to fetch after the given position, in catalog order.
// The input is not modified.
func NextEpisodes(episodes []arr.Episode, season, episode int32, getType Type, getCount int) []arr.Episode {
	sorted := slices.Clone(episodes)
	arr.SortEpisodes(sorted)

	if parsed, ok := ParseType(string(getType)); !ok {
		getType, getCount = TypeEpisodes, 1
	} else {
		getType = parsed
	}

	switch getType {
	case TypeAll:
		return lo.Filter(sorted, func(e arr.Episode, _ int) bool {
			return e.After(season, episode)
		})
	case TypeSeasons:
		return nextSeasons(sorted, season, episode, max(getCount, 1))
	default:
		return nextEpisodeCount(sorted, season, episode, max(getCount, 1))
	}
}

// NextFullSeasons returns the season numbers that NextEpisodes fetches completely in seasons mode.
func NextFullSeasons(episodes []arr.Episode, season, episode int32, getCount int) []int32 {
	getCount = max(getCount, 1)
	if len(remainderOfSeason(episodes, season, episode)) > 0 {
		getCount--
	}
	return lo.Slice(laterSeasons(episodes, season), 0, getCount)
}

func nextSeasons(sorted []arr.Episode, season, episode int32, count int) []arr.Episode {
	result := remainderOfSeason(sorted, season, episode)
	if len(result) > 0 {
		count--
	}

	for _, s := range lo.Slice(laterSeasons(sorted, season), 0, count) {
		result = append(result, episodesOfSeason(sorted, s)...)
	}
	return result
}

func nextEpisodeCount(sorted []arr.Episode, season, episode int32, count int) []arr.Episode {
	result := remainderOfSeason(sorted, season, episode)

	for s := season + 1; len(result) < count && s <= season+MaxSeasonsAhead; s++ {
		result = append(result, episodesOfSeason(sorted, s)...)
	}
	return lo.Slice(result, 0, count)
}

func remainderOfSeason(sorted []arr.Episode, season, episode int32) []arr.Episode {
	return lo.Filter(sorted, func(e arr.Episode, _ int) bool {
		return e.SeasonNumber == season && e.EpisodeNumber > episode
	})
}

func episodesOfSeason(sorted []arr.Episode, season int32) []arr.Episode {
	return lo.Filter(sorted, func(e arr.Episode, _ int) bool {
		return e.SeasonNumber == season
	})
}

// laterSeasons returns the distinct season numbers after season in ascending order.
func laterSeasons(episodes []arr.Episode, season int32) []int32 {
	seasons := lo.Uniq(lo.FilterMap(episodes, func(e arr.Episode, _ int) (int32, bool) {
		return e.SeasonNumber, e.SeasonNumber > season
	}))
	slices.Sort(seasons)
	return seasons
}
