// Command seed fills the product store with a generated catalog.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/utafrali/catalog/internal/app"
	"github.com/utafrali/catalog/internal/config"
	"github.com/utafrali/catalog/internal/seed"
	"github.com/utafrali/catalog/internal/service"
	"github.com/utafrali/catalog/pkg/logger"
)

func main() {
	count := pflag.IntP("count", "n", 10000, "number of products to generate")
	batchSize := pflag.IntP("batch-size", "b", 500, "products per bulk insert")
	seedValue := pflag.Uint64("seed", 42, "random seed; the same seed yields the same catalog")
	reindex := pflag.Bool("reindex", false, "rebuild the search index after seeding")
	envFile := pflag.String("env-file", ".env", "dotenv file read before the environment")
	pflag.Parse()

	if *count < 1 || *batchSize < 1 {
		fmt.Fprintln(os.Stderr, "--count and --batch-size must be positive")
		os.Exit(2)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New("catalog-seed", cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, *count, *batchSize, *seedValue, *reindex, log); err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, count, batchSize int, seedValue uint64, reindex bool, log *slog.Logger) error {
	cfg.SearchHeartbeatInterval = 0
	if reindex {
		cfg.SearchRequired = true
	}

	components, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer components.Close()

	start := time.Now()
	products := seed.Generate(seed.Options{Count: count, Seed: seedValue})

	inserted, err := seed.Insert(ctx, components.Repo, products, batchSize, log)
	if err != nil {
		return err
	}
	log.Info("products seeded",
		slog.Int64("inserted", inserted),
		slog.Duration("duration", time.Since(start)),
	)

	if !reindex {
		return nil
	}
	result, err := service.NewIndexService(components.Deps(cfg.CacheTTLs())).Reindex(ctx, cfg.ReindexBatchSize)
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	log.Info("search index rebuilt",
		slog.Int("total_indexed", result.TotalIndexed),
		slog.Int("failed", result.Failed),
	)
	return nil
}
