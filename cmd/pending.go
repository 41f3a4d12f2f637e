package cmd

import (
	"fmt"
	"strconv"

	"github.com/ccoveille/go-safecast"
	"github.com/dustin/go-humanize"
	"github.com/jon4hz/episweep/internal/engine/pending"
	"github.com/spf13/cobra"
)

var pendingCmdFlags struct {
	SeriesID int32
	Season   int32
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Inspect and decide the pending deletion queue",
}

var pendingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the pending deletion queue",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, db, eng := loadEngine()
		defer db.Close()  //nolint: errcheck
		defer eng.Close() //nolint: errcheck

		summary, err := eng.PendingSummary(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to load pending queue: %w", err)
		}

		fmt.Printf("%d episodes of %d series, %s\n", summary.EpisodeCount, summary.SeriesCount, humanize.IBytes(uint64(max(summary.TotalSize, 0))))
		for _, series := range summary.Series {
			fmt.Printf("\n%s (id %d), %s\n", series.Title, series.SeriesID, humanize.IBytes(uint64(max(series.Size, 0))))
			for _, season := range series.Seasons {
				fmt.Printf("  Season %d, %s\n", season.Season, humanize.IBytes(uint64(max(season.Size, 0))))
				for _, item := range season.Episodes {
					fmt.Printf("    %-8d S%02dE%02d  %-12s %s\n", item.EpisodeID, item.SeasonNumber, item.EpisodeNumber, item.Reason, humanize.Time(item.QueuedAt))
				}
			}
		}
		return nil
	},
}

var pendingApproveCmd = &cobra.Command{
	Use:   "approve [episode-id...]",
	Short: "Delete queued episodes",
	Example: `episweep pending approve 1101 1102
episweep pending approve --series 12 --season 3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseEpisodeIDs(args)
		if err != nil {
			return err
		}

		_, db, eng := loadEngine()
		defer db.Close()  //nolint: errcheck
		defer eng.Close() //nolint: errcheck

		ctx := cmd.Context()
		var result *pending.Result
		switch {
		case len(ids) > 0:
			result, err = eng.Approve(ctx, ids)
		case cmd.Flags().Changed("season"):
			result, err = eng.ApproveSeason(ctx, pendingCmdFlags.SeriesID, pendingCmdFlags.Season)
		default:
			result, err = eng.ApproveSeries(ctx, pendingCmdFlags.SeriesID)
		}
		if err != nil {
			return fmt.Errorf("failed to approve: %w", err)
		}

		fmt.Printf("Deleted %d episodes\n", result.Processed)
		for _, e := range result.Errors {
			fmt.Printf("  episode %d: %s\n", e.EpisodeID, e.Error)
		}
		if len(result.Errors) > 0 {
			return fmt.Errorf("%d deletions failed", len(result.Errors))
		}
		return nil
	},
}

var pendingRejectCmd = &cobra.Command{
	Use:     "reject [episode-id...]",
	Short:   "Remove episodes from the queue and protect them from being queued again",
	Example: `episweep pending reject --series 12`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseEpisodeIDs(args)
		if err != nil {
			return err
		}

		_, db, eng := loadEngine()
		defer db.Close()  //nolint: errcheck
		defer eng.Close() //nolint: errcheck

		var n int64
		if len(ids) > 0 {
			n, err = eng.Reject(cmd.Context(), ids)
		} else {
			n, err = eng.RejectSeries(cmd.Context(), pendingCmdFlags.SeriesID)
		}
		if err != nil {
			return fmt.Errorf("failed to reject: %w", err)
		}
		fmt.Printf("Rejected %d episodes\n", n)
		return nil
	},
}

var pendingClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the queue without deleting anything",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, db, eng := loadEngine()
		defer db.Close()  //nolint: errcheck
		defer eng.Close() //nolint: errcheck

		n, err := eng.ClearPending(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to clear queue: %w", err)
		}
		fmt.Printf("Removed %d entries\n", n)
		return nil
	},
}

func parseEpisodeIDs(args []string) ([]int32, error) {
	ids := make([]int32, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid episode id %q", a)
		}
		id32, err := safecast.ToInt32(id)
		if err != nil {
			return nil, fmt.Errorf("invalid episode id %q: %w", a, err)
		}
		ids = append(ids, id32)
	}
	if len(ids) == 0 && pendingCmdFlags.SeriesID <= 0 {
		return nil, fmt.Errorf("episode ids or --series are required")
	}
	return ids, nil
}

func init() {
	for _, c := range []*cobra.Command{pendingApproveCmd, pendingRejectCmd} {
		c.Flags().Int32Var(&pendingCmdFlags.SeriesID, "series", 0, "Select all queued episodes of a series")
	}
	pendingApproveCmd.Flags().Int32Var(&pendingCmdFlags.Season, "season", 0, "Only select one season of --series")

	pendingCmd.AddCommand(pendingListCmd, pendingApproveCmd, pendingRejectCmd, pendingClearCmd)
	rootCmd.AddCommand(pendingCmd)
}
