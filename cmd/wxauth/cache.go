package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/wxauth/app"
	"github.com/dmitrymomot/wxauth/core/cache"
	"github.com/dmitrymomot/wxauth/core/config"
	"github.com/dmitrymomot/wxauth/core/logger"
	"github.com/dmitrymomot/wxauth/integration/database/redis"
)

var errInvalidFeature = errors.New("invalid cache feature")

// cacheConfig is the subset of app.Config the cache commands need.
type cacheConfig struct {
	Redis redis.Config
	Cache cache.Config
}

func newCacheCmd() *cobra.Command {
	var features []string
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and purge cached entries",
	}
	cmd.PersistentFlags().StringSliceVarP(&features, "feature", "f", app.Features, "cache features to act on")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Print entry counts per feature as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCache(cmd.Context(), features, func(ctx context.Context, c *cache.Cache) error {
				out := make([]cache.Stats, 0, len(features))
				for _, f := range features {
					st, err := c.Stats(ctx, f)
					if err != nil {
						return err
					}
					out = append(out, st)
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			})
		},
	}

	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete every entry and lock of the features",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCache(cmd.Context(), features, func(ctx context.Context, c *cache.Cache) error {
				for _, f := range features {
					n, err := c.Purge(ctx, f)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: purged %d keys\n", f, n)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(stats, purge)
	return cmd
}

func withCache(ctx context.Context, features []string, fn func(context.Context, *cache.Cache) error) error {
	for _, f := range features {
		if !app.ValidFeature(f) {
			return fmt.Errorf("%w: %q", errInvalidFeature, f)
		}
	}

	var cfg cacheConfig
	if err := config.Parse(&cfg); err != nil {
		return err
	}
	log := logger.New(logger.WithOutput(os.Stderr), logger.WithLevel(slog.LevelWarn))

	rdb, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	return fn(ctx, app.NewCache(app.NewKV(rdb, cfg.Redis, log), cfg.Cache, log))
}
