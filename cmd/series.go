package cmd

import (
	"fmt"
	"strconv"

	"github.com/ccoveille/go-safecast"
	"github.com/jon4hz/episweep/internal/database"
	"github.com/jon4hz/episweep/internal/engine/rules"
	"github.com/spf13/cobra"
)

var seriesAssignFlags struct {
	GraceScope string
}

var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "Manage which series are handled by which rule",
}

var seriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the managed series",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, db, eng := loadEngine()
		defer db.Close()  //nolint: errcheck
		defer eng.Close() //nolint: errcheck

		assignments, err := eng.ListAssignments(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list series: %w", err)
		}
		for _, a := range assignments {
			fmt.Printf("%-6d %-40s %-12s %-7s %s\n", a.SeriesID, a.Title, a.RuleName, a.GraceScope, a.Source)
		}
		return nil
	},
}

var seriesSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the rule assignments with the configuration and the Sonarr tags",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, db, eng := loadEngine()
		defer db.Close()  //nolint: errcheck
		defer eng.Close() //nolint: errcheck

		result, err := eng.SyncRuleTags(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to sync rule assignments: %w", err)
		}
		fmt.Printf("Assigned: %d, unchanged: %d, removed: %d\n", result.Assigned, result.Unchanged, result.Removed)
		return nil
	},
}

var seriesAssignCmd = &cobra.Command{
	Use:     "assign <series-id> [rule]",
	Short:   "Assign a series to a rule, the default rule when none is given",
	Example: `episweep series assign 12 binge --grace-scope season`,
	Args:    cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		seriesID, err := parseSeriesID(args[0])
		if err != nil {
			return err
		}
		var ruleName string
		if len(args) == 2 {
			ruleName = args[1]
		}

		_, db, eng := loadEngine()
		defer db.Close()  //nolint: errcheck
		defer eng.Close() //nolint: errcheck

		a, changed, err := eng.AssignRule(cmd.Context(), seriesID, "", ruleName, rules.GraceScope(seriesAssignFlags.GraceScope), database.AssignmentSourceAPI)
		if err != nil {
			return fmt.Errorf("failed to assign rule: %w", err)
		}
		if !changed {
			fmt.Printf("%s already uses rule %s\n", a.Title, a.RuleName)
			return nil
		}
		fmt.Printf("%s now uses rule %s (%s scope)\n", a.Title, a.RuleName, a.GraceScope)
		return nil
	},
}

var seriesUnassignCmd = &cobra.Command{
	Use:   "unassign <series-id>",
	Short: "Stop managing a series",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seriesID, err := parseSeriesID(args[0])
		if err != nil {
			return err
		}

		_, db, eng := loadEngine()
		defer db.Close()  //nolint: errcheck
		defer eng.Close() //nolint: errcheck

		if err := eng.UnassignRule(cmd.Context(), seriesID); err != nil {
			return fmt.Errorf("failed to unassign series: %w", err)
		}
		fmt.Printf("Series %d is no longer managed\n", seriesID)
		return nil
	},
}

func parseSeriesID(s string) (int32, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid series id %q", s)
	}
	return safecast.ToInt32(id)
}

func init() {
	seriesAssignCmd.Flags().StringVar(&seriesAssignFlags.GraceScope, "grace-scope", "", "Track inactivity per series or per season (default: scope of the rule)")

	seriesCmd.AddCommand(seriesListCmd, seriesSyncCmd, seriesAssignCmd, seriesUnassignCmd)
	rootCmd.AddCommand(seriesCmd)
}
