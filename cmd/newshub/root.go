package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deusflow/newshub/internal/app"
	"github.com/deusflow/newshub/internal/config"
	"github.com/deusflow/newshub/internal/logger"
)

type contextKey struct{}

func newRootCommand() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "newshub",
		Short:         "Automated news pipeline",
		Long:          `Fetches RSS feeds, rewrites items with Gemini, illustrates them and publishes the result to Postgres.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			log := logger.New(cfg.LogLevel)
			slog.SetDefault(log)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			a := app.New(cfg, log)
			cobra.OnFinalize(func() {
				stop()
				a.Close()
			})
			cmd.SetContext(context.WithValue(ctx, contextKey{}, a))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	root.AddCommand(
		newRunCommand(),
		newServeCommand(),
		newScheduleCommand(),
		newCategoriesCommand(),
		newImagesCommand(),
		newBreakingCommand(),
		newSitemapCommand(),
	)
	return root
}

func appFrom(cmd *cobra.Command) *app.App {
	return cmd.Context().Value(contextKey{}).(*app.App)
}
