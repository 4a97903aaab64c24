package main

import (
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

SIGINT or SIGTERM drains in-flight requests for up to server.shutdown_timeout
before the process exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := a.manager.StartAll(ctx); err != nil {
				a.close()
				return err
			}
			log.Info().Str("version", version).Str("storage", cfg.RateLimit.StorageType).Msg("folio started")

			<-ctx.Done()
			log.Info().Msg("shutdown signal received")

			shutdownCtx, cancel := a.shutdownContext()
			defer cancel()
			return a.manager.StopAll(shutdownCtx)
		},
	}
}
