package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/episweep/internal/config"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Show the configured rules in their normalized form",
	Run: func(_ *cobra.Command, _ []string) {
		cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		all := cfg.Rules()
		names := lo.Keys(all)
		slices.Sort(names)

		for _, name := range names {
			r := all[name]
			marker := ""
			if strings.EqualFold(name, cfg.DefaultRule) {
				marker = " (default)"
			}
			fmt.Printf("%s%s\n", name, marker)
			fmt.Printf("  tag:     %s\n", cfg.TagLabel(name))
			fmt.Printf("  get:     %d %s, %s\n", r.GetCount, r.GetType, r.Action)
			fmt.Printf("  keep:    %s\n", r.KeepDescription())
			if r.GraceEnabled() {
				fmt.Printf("  grace:   %d days per %s, bookmarks %t\n", r.GraceDays, r.GraceScope, r.GraceBookmarks)
			} else {
				fmt.Printf("  grace:   disabled\n")
			}
			fmt.Printf("  dry run: %t\n", r.DryRun)
		}
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}
