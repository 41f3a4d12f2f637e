package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/episweep/internal/engine"
	"github.com/spf13/cobra"
)

var sweepCmdFlags struct {
	DryRun bool
	Force  bool
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a grace sweep now",
	Long:  `Queue the downloaded episodes of every series or season that has been inactive for longer than the grace period of its rule.`,
	Example: `episweep sweep --dry-run
episweep sweep --force`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, db, eng := loadEngine()
		defer db.Close()  //nolint: errcheck
		defer eng.Close() //nolint: errcheck

		result, err := eng.RunGraceSweep(cmd.Context(), engine.SweepOptions{
			DryRun:            sweepCmdFlags.DryRun,
			IgnoreStorageGate: sweepCmdFlags.Force,
		})
		if err != nil {
			return fmt.Errorf("grace sweep failed: %w", err)
		}

		if result.Skipped {
			log.Warn("Grace sweep skipped, the storage gate is closed. Use --force to run anyway.")
			return nil
		}

		fmt.Printf("Run: %s\n", result.RunID)
		fmt.Printf("Series checked: %d\n", result.SeriesChecked)
		fmt.Printf("Stale series: %d\n", result.SeriesStale)
		if result.DryRun {
			fmt.Printf("Episodes that would be queued: %d\n", result.EpisodesQueued)
		} else {
			fmt.Printf("Episodes queued: %d\n", result.EpisodesQueued)
		}
		if len(result.Errors) > 0 {
			fmt.Printf("Errors:\n  %s\n", strings.Join(result.Errors, "\n  "))
		}
		return nil
	},
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepCmdFlags.DryRun, "dry-run", false, "Only report what would be queued")
	sweepCmd.Flags().BoolVar(&sweepCmdFlags.Force, "force", false, "Run even when the storage gate is closed")

	rootCmd.AddCommand(sweepCmd)
}
