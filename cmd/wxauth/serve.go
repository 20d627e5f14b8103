package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/wxauth/app"
	"github.com/dmitrymomot/wxauth/core/config"
	"github.com/dmitrymomot/wxauth/core/logger"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve HTTP until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg app.Config
			if err := config.Load(&cfg); err != nil {
				return err
			}
			log := newLogger(cfg.Env, cfg.AppName, cfg.LogLevel)
			ctx := cmd.Context()

			a, err := app.New(ctx, cfg, app.WithLogger(log))
			if err != nil {
				log.ErrorContext(ctx, "failed to start", logger.Error(err))
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
				defer cancel()
				if err := a.Close(closeCtx); err != nil {
					log.ErrorContext(closeCtx, "failed to close connections", logger.Error(err))
				}
			}()

			log.InfoContext(ctx, "serving", slog.String("addr", cfg.Server.Addr))
			if err := a.Run(ctx); err != nil {
				log.ErrorContext(ctx, "server stopped", logger.Error(err))
				return err
			}
			log.InfoContext(ctx, "server stopped")
			return nil
		},
	}
}
