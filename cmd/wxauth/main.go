// Command wxauth runs the WeChat authorization gateway and its maintenance
// tasks.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/wxauth/core/logger"
	"github.com/dmitrymomot/wxauth/middleware"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "wxauth",
		Short:        "WeChat authorization gateway",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newCacheCmd())
	return root
}

func newLogger(env, service, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	mode := logger.WithDevelopment(service)
	if env == "production" || env == "staging" {
		mode = logger.WithProduction(service)
	}
	return logger.New(mode,
		logger.WithLevel(lvl),
		logger.WithContextExtractors(middleware.RequestIDExtractor),
	)
}
