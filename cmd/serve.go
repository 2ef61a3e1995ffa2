package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/protonlink/webauth/server"
	"github.com/spf13/cobra"
)

var (
	serverHTTPPort    int
	serverStatsPort   int
	serverHealthPort  int
	serverDataDir     string
	serverEnableStats bool

	// ServeCmd is the cobra.Command to self-host the relay.
	ServeCmd = &cobra.Command{
		Use:     "serve",
		Aliases: []string{"server"},
		Hidden:  false,
		Short:   "Start a self-hosted relay server.",
		Long:    paragraph("Start the HTTP server wallets and clients exchange messages through, backed by SQLite for messages nobody is waiting for yet."),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := server.DefaultConfig()
			if serverHTTPPort != 0 {
				cfg.HTTPPort = serverHTTPPort
			}
			if serverStatsPort != 0 {
				cfg.StatsPort = serverStatsPort
			}
			if serverHealthPort != 0 {
				cfg.HealthPort = serverHealthPort
			}
			if serverDataDir != "" {
				cfg.DataDir = serverDataDir
			}
			if serverEnableStats {
				cfg.EnableStats = true
			}
			s, err := server.NewServer(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			errs := make(chan error, 1)
			go func() {
				errs <- s.Start()
			}()

			select {
			case err := <-errs:
				if err != nil {
					log.Error("error starting server", "err", err)
					_ = s.Close()
					return err
				}
			case <-ctx.Done():
			}

			sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return s.Shutdown(sctx)
		},
	}
)

func init() {
	ServeCmd.Flags().IntVar(&serverHTTPPort, "http-port", 0, "HTTP port to listen on")
	ServeCmd.Flags().IntVar(&serverStatsPort, "stats-port", 0, "Stats port to listen on")
	ServeCmd.Flags().IntVar(&serverHealthPort, "health-port", 0, "Health port to listen on")
	ServeCmd.Flags().StringVar(&serverDataDir, "data-dir", "", "Directory to store the SQLite db in")
	ServeCmd.Flags().BoolVar(&serverEnableStats, "stats", false, "Serve prometheus metrics on the stats port")
}
