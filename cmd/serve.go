package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/episweep/internal/api"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the episweep server",
	Long:  `Start the episweep server to receive watch webhooks, run the scheduled sweeps and serve the API.`,
	Example: `episweep serve --config config.yml
episweep serve -c /path/to/config.yml --log-level debug
`,
	Run: startServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func startServer(cmd *cobra.Command, _ []string) {
	cfg, db, eng := loadEngine()
	defer db.Close() //nolint: errcheck

	server, err := api.New(cfg, eng, log.GetLevel() == log.DebugLevel)
	if err != nil {
		log.Fatalf("failed to create API server: %v", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eng.Run(gctx)
	})
	g.Go(func() error {
		log.Info("starting API server", "listen", cfg.Listen)
		return server.Run(gctx)
	})

	log.Info("episweep started successfully")
	if err := g.Wait(); err != nil {
		log.Error("episweep stopped with error", "error", err)
	}

	log.Info("shutting down gracefully...")
	if err := eng.Close(); err != nil {
		log.Error("failed to stop scheduler", "error", err)
	}
}
