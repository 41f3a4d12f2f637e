package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/episweep/internal/database"
	"github.com/jon4hz/episweep/internal/engine/arr"
	"github.com/jon4hz/episweep/internal/engine/rules"
	"github.com/samber/lo"
)

// SyncResult summarizes a rule assignment sync.
type SyncResult struct {
	Assigned  int `json:"assigned"`
	Unchanged int `json:"unchanged"`
	Removed   int `json:"removed"`
}

// AssignRule binds a series to a rule. An empty rule name selects the default rule and an empty scope
// the default scope of the rule. When the grace scope of an existing assignment changes, the activity
// history of the series is reset because series and season records are not comparable.
// The returned bool reports whether anything changed.
func (e *Engine) AssignRule(ctx context.Context, seriesID int32, title, ruleName string, scope rules.GraceScope, source database.AssignmentSource) (*database.SeriesAssignment, bool, error) {
	if ruleName == "" {
		ruleName = e.cfg.DefaultRule
	}
	rule, ok := e.cfg.GetRule(ruleName)
	if !ok {
		return nil, false, fmt.Errorf("rule %q: %w", ruleName, ErrUnknownRule)
	}

	switch scope {
	case "":
		scope = rule.GraceScope
	case rules.GraceScopeSeries, rules.GraceScopeSeason:
	default:
		return nil, false, fmt.Errorf("invalid grace scope %q", scope)
	}

	if title == "" {
		series, err := e.findSeries(ctx, seriesID, "")
		if err != nil {
			return nil, false, err
		}
		title = series.Title
	}

	existing, err := e.db.GetSeriesAssignment(ctx, seriesID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get assignment of series %d: %w", seriesID, err)
	}

	assignment := database.SeriesAssignment{
		SeriesID:   seriesID,
		Title:      title,
		RuleName:   rule.Name,
		GraceScope: string(scope),
		Source:     source,
	}

	if existing != nil {
		if existing.RuleName == assignment.RuleName && existing.GraceScope == assignment.GraceScope &&
			existing.Title == assignment.Title && existing.Source == assignment.Source {
			return existing, false, nil
		}
		if existing.RuleName != assignment.RuleName {
			log.Info("Series moved to another rule", "series", title, "from", existing.RuleName, "to", assignment.RuleName, "source", source)
		}
		if existing.GraceScope != assignment.GraceScope {
			log.Info("Grace scope changed, resetting activity history", "series", title, "from", existing.GraceScope, "to", assignment.GraceScope)
			if err := e.store.Reset(ctx, seriesID); err != nil {
				return nil, false, err
			}
		}
	}

	if err := e.db.UpsertSeriesAssignment(ctx, assignment); err != nil {
		return nil, false, fmt.Errorf("failed to assign series %d: %w", seriesID, err)
	}
	if existing == nil || existing.RuleName != assignment.RuleName || existing.GraceScope != assignment.GraceScope {
		if err := e.CreateRuleAssignedEvent(ctx, assignment); err != nil {
			log.Error("Failed to create rule assigned event", "series", title, "error", err)
		}
	}
	return &assignment, true, nil
}

// UnassignRule stops managing a series. Its activity records are kept.
func (e *Engine) UnassignRule(ctx context.Context, seriesID int32) error {
	assignment, err := e.db.GetSeriesAssignment(ctx, seriesID)
	if err != nil {
		return err
	}
	if assignment == nil {
		return fmt.Errorf("series %d: %w", seriesID, ErrSeriesNotManaged)
	}
	if err := e.db.DeleteSeriesAssignment(ctx, seriesID); err != nil {
		return err
	}
	log.Info("Series is no longer managed", "series", assignment.Title, "rule", assignment.RuleName)
	return nil
}

// ListAssignments returns all managed series.
func (e *Engine) ListAssignments(ctx context.Context) ([]database.SeriesAssignment, error) {
	return e.db.ListSeriesAssignments(ctx)
}

// SyncRuleTags brings the series assignments in line with the configuration and the Sonarr tags.
// Series listed under a rule in the configuration always use that rule. Otherwise a tag
// "<prefix><rule>" assigns the series, and a series assigned by a tag that lost it is unmanaged again.
// Assignments made through the API are only replaced by a tag.
func (e *Engine) SyncRuleTags(ctx context.Context) (*SyncResult, error) {
	series, err := e.sonarr.ListSeries(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list series: %w", err)
	}

	tagSync := e.cfg.TagSync != nil && e.cfg.TagSync.Enabled
	var tags map[int32]string
	if tagSync {
		tags, err = e.sonarr.GetTags(ctx, true)
		if err != nil {
			return nil, fmt.Errorf("failed to get tags: %w", err)
		}
	}

	existing, err := e.db.ListSeriesAssignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	current := lo.KeyBy(existing, func(a database.SeriesAssignment) int32 { return a.SeriesID })

	static := e.cfg.StaticAssignments()
	labels := e.ruleLabels()

	result := &SyncResult{}
	for _, s := range series {
		ruleName, source := "", database.AssignmentSource("")
		if name, ok := static[s.ID]; ok {
			ruleName, source = name, database.AssignmentSourceConfig
		} else if tagSync {
			if name, ok := ruleFromTags(s, tags, labels); ok {
				ruleName, source = name, database.AssignmentSourceTag
			}
		}

		prev, managed := current[s.ID]
		if ruleName == "" {
			if managed && (prev.Source == database.AssignmentSourceTag || prev.Source == database.AssignmentSourceConfig) {
				if err := e.db.DeleteSeriesAssignment(ctx, s.ID); err != nil {
					log.Error("Failed to remove stale assignment", "series", s.Title, "error", err)
					continue
				}
				log.Info("Series lost its rule, no longer managed", "series", s.Title, "rule", prev.RuleName, "source", prev.Source)
				result.Removed++
			}
			continue
		}

		// Tag and config assignments carry no scope of their own and follow the rule's grace_scope.
		_, changed, err := e.AssignRule(ctx, s.ID, s.Title, ruleName, "", source)
		if err != nil {
			log.Error("Failed to assign rule", "series", s.Title, "rule", ruleName, "error", err)
			continue
		}
		if changed {
			result.Assigned++
		} else {
			result.Unchanged++
		}
	}

	known := lo.SliceToMap(series, func(s arr.Series) (int32, struct{}) { return s.ID, struct{}{} })
	for id, name := range static {
		if _, ok := known[id]; !ok {
			log.Warn("Configured series does not exist in Sonarr", "series", id, "rule", name)
		}
	}

	log.Info("Synced rule assignments", "assigned", result.Assigned, "unchanged", result.Unchanged, "removed", result.Removed)
	return result, nil
}

// ruleLabels maps the lowercase tag label of every configured rule to the rule name.
func (e *Engine) ruleLabels() map[string]string {
	labels := make(map[string]string)
	for name := range e.cfg.Rules() {
		labels[e.cfg.TagLabel(name)] = name
	}
	return labels
}

// ruleFromTags returns the rule selected by the tags of a series.
// With several rule tags the alphabetically first rule wins.
func ruleFromTags(s arr.Series, tags map[int32]string, labels map[string]string) (string, bool) {
	var matched []string
	for _, id := range s.Tags {
		if name, ok := labels[strings.ToLower(tags[id])]; ok {
			matched = append(matched, name)
		}
	}
	if len(matched) == 0 {
		return "", false
	}
	slices.Sort(matched)
	if len(matched) > 1 {
		log.Warn("Series has more than one rule tag", "series", s.Title, "rules", matched, "using", matched[0])
	}
	return matched[0], true
}

// syncRuleTags is the scheduled tag sync job.
func (e *Engine) syncRuleTags(ctx context.Context) error {
	_, err := e.SyncRuleTags(ctx)
	return err
}
