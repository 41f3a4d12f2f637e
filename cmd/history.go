package cmd

import (
	"fmt"

	"github.com/jon4hz/episweep/internal/database"
	"github.com/mergestat/timediff"
	"github.com/spf13/cobra"
)

var historyCmdFlags struct {
	SeriesID int32
	Type     string
	Limit    int
}

var historyCmd = &cobra.Command{
	Use:     "history",
	Short:   "Show the most recent history events",
	Example: `episweep history --series 12 --type deleted`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, db, eng := loadEngine()
		defer db.Close()  //nolint: errcheck
		defer eng.Close() //nolint: errcheck

		events, total, err := eng.GetHistory(cmd.Context(), database.HistoryFilter{
			SeriesID:  historyCmdFlags.SeriesID,
			EventType: database.HistoryEventType(historyCmdFlags.Type),
			Page:      1,
			PageSize:  historyCmdFlags.Limit,
		})
		if err != nil {
			return fmt.Errorf("failed to get history: %w", err)
		}

		fmt.Printf("Showing %d of %d events\n", len(events), total)
		for _, ev := range events {
			fmt.Printf("%-16s %-14s series %-6d episode %-8d %s\n",
				timediff.TimeDiff(ev.EventTime), ev.EventType, ev.SeriesID, ev.EpisodeID, ev.Detail)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int32Var(&historyCmdFlags.SeriesID, "series", 0, "Only show events of this series")
	historyCmd.Flags().StringVar(&historyCmdFlags.Type, "type", "", "Only show events of this type (watched, queued, deleted, ...)")
	historyCmd.Flags().IntVarP(&historyCmdFlags.Limit, "limit", "n", 25, "Number of events to show")

	rootCmd.AddCommand(historyCmd)
}
