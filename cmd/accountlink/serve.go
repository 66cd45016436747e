package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/accountlink/internal/http/server"
	"github.com/dropDatabas3/accountlink/internal/observability/logger"
)

func newServeCmd(f *rootFlags) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if cmd.Flags().Changed("migrate") {
				cfg.Flags.Migrate = migrate
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := server.Build(ctx, cfg, server.Options{})
			if err != nil {
				return err
			}
			defer func() {
				if err := app.Close(); err != nil {
					logger.L().Warn("close failed", logger.Err(err))
				}
			}()
			return app.Serve(ctx)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending postgres migrations on startup")
	return cmd
}
