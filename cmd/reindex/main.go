// Command reindex rebuilds the search index from the product store.
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
	"github.com/utafrali/catalog/internal/service"
	"github.com/utafrali/catalog/pkg/logger"
)

const (
	batchSizeFlag = "batch-size"
	timeoutFlag   = "timeout"
	envFileFlag   = "env-file"
)

func main() {
	batchSize := pflag.IntP(batchSizeFlag, "b", 0, "products per bulk request (default REINDEX_BATCH_SIZE)")
	timeout := pflag.DurationP(timeoutFlag, "t", 30*time.Minute, "abort the reindex after this long")
	envFile := pflag.String(envFileFlag, ".env", "dotenv file read before the environment")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New("catalog-reindex", cfg.LogLevel)

	if *batchSize == 0 {
		*batchSize = cfg.ReindexBatchSize
	}
	if *batchSize < 1 || *batchSize > service.MaxReindexBatchSize {
		log.Error(fmt.Sprintf("--%s must be between 1 and %d", batchSizeFlag, service.MaxReindexBatchSize))
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	if err := run(ctx, cfg, *batchSize, log); err != nil {
		log.Error("reindex failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, batchSize int, log *slog.Logger) error {
	// The index must be reachable for a rebuild.
	cfg.SearchRequired = true
	cfg.SearchHeartbeatInterval = 0

	components, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer components.Close()

	result, err := service.NewIndexService(components.Deps(cfg.CacheTTLs())).Reindex(ctx, batchSize)
	if err != nil {
		return err
	}

	log.Info("reindex finished",
		slog.Int("total_indexed", result.TotalIndexed),
		slog.Int("total_batches", result.TotalBatches),
		slog.Int("failed", result.Failed),
		slog.Int("reconciled", result.Reconciled),
		slog.Duration("duration", result.Duration),
	)
	if result.Failed > 0 {
		return fmt.Errorf("%d documents were rejected by the index", result.Failed)
	}
	return nil
}
