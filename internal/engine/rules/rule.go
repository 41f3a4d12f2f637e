package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

// Type selects how a get or keep count is interpreted.
type Type string

const (
	TypeEpisodes Type = "episodes"
	TypeSeasons  Type = "seasons"
	TypeAll      Type = "all"
)

// Action controls what happens to the episodes selected by the get rule.
type Action string

const (
	// ActionMonitor only monitors the next episodes in the catalog.
	ActionMonitor Action = "monitor"
	// ActionSearch monitors the next episodes and triggers a search for them.
	ActionSearch Action = "search"
)

// GraceScope defines whether staleness is tracked per series or per season.
type GraceScope string

const (
	GraceScopeSeries GraceScope = "series"
	GraceScopeSeason GraceScope = "season"
)

// Rule is the normalized policy applied to every series assigned to it.
type Rule struct {
	Name string

	GetType  Type
	GetCount int

	KeepType  Type
	KeepCount int

	Action         Action
	MonitorWatched bool

	// GraceDays is the inactivity threshold of the grace sweep. 0 disables the sweep for this rule.
	GraceDays int
	// DormantDays queues every downloaded episode of a series inactive for this long,
	// bookmarks included. 0 disables the dormant tier.
	DormantDays int
	// GraceScope is the default scope for series assigned to this rule.
	GraceScope GraceScope
	// GraceBookmarks keeps the last watched and the first unwatched episode when a scope goes stale.
	GraceBookmarks bool

	DryRun bool
}

// ParseType returns the typed form of s and whether s was a known type.
func ParseType(s string) (Type, bool) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case TypeEpisodes:
		return TypeEpisodes, true
	case TypeSeasons:
		return TypeSeasons, true
	case TypeAll:
		return TypeAll, true
	default:
		return TypeEpisodes, false
	}
}

// ParseLegacy translates the old string form of get_option and keep_watched.
// "all" means everything, "season" one season, a number that many episodes.
// Anything else falls back to a single episode.
func ParseLegacy(value string) (Type, int) {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case "all":
		return TypeAll, 0
	case "season":
		return TypeSeasons, 1
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return TypeEpisodes, 1
	}
	return TypeEpisodes, n
}

// ToLegacy is the inverse of ParseLegacy for values that have a legacy form.
func ToLegacy(t Type, count int) string {
	switch t {
	case TypeAll:
		return "all"
	case TypeSeasons:
		if count <= 1 {
			return "season"
		}
		return strconv.Itoa(count)
	default:
		return strconv.Itoa(max(count, 1))
	}
}

// Normalize returns a copy of r with safe defaults for unknown or out of range values.
func (r Rule) Normalize() Rule {
	r.GetType, r.GetCount = normalizeSelection(r.Name, "get", r.GetType, r.GetCount)
	r.KeepType, r.KeepCount = normalizeSelection(r.Name, "keep", r.KeepType, r.KeepCount)

	switch r.Action {
	case ActionMonitor, ActionSearch:
	case "":
		r.Action = ActionMonitor
	default:
		log.Warn("Unknown action option, falling back to monitor", "rule", r.Name, "action", r.Action)
		r.Action = ActionMonitor
	}

	switch r.GraceScope {
	case GraceScopeSeries, GraceScopeSeason:
	default:
		r.GraceScope = GraceScopeSeries
	}

	if r.GraceDays < 0 {
		r.GraceDays = 0
	}
	if r.DormantDays < 0 {
		r.DormantDays = 0
	}
	return r
}

func normalizeSelection(rule, kind string, t Type, count int) (Type, int) {
	parsed, ok := ParseType(string(t))
	if !ok {
		log.Warn("Unknown rule type, falling back to a single episode", "rule", rule, "kind", kind, "type", t)
		return TypeEpisodes, 1
	}
	if parsed == TypeAll {
		return TypeAll, 0
	}
	if count < 1 {
		return parsed, 1
	}
	return parsed, count
}

// KeepDescription renders the keep part of the rule, e.g. "keeping 2 episodes".
func (r Rule) KeepDescription() string {
	if r.KeepType == TypeAll {
		return "keeping all"
	}
	return fmt.Sprintf("keeping %d %s", r.KeepCount, r.KeepType)
}

// GraceEnabled reports whether the grace sweep evaluates series of this rule.
func (r Rule) GraceEnabled() bool {
	return r.GraceDays > 0
}

// DormantEnabled reports whether series of this rule can go dormant.
func (r Rule) DormantEnabled() bool {
	return r.DormantDays > 0
}
