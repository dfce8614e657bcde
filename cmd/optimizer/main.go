// Command optimizer runs one photo normalization pass over stored gatherings
// and exits. Meant for cron or a manual backfill after lowering the photo
// size budget.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/matescarabino/gatheringTracker-server/internal/imaging"
	"github.com/matescarabino/gatheringTracker-server/internal/infrastructure/logger"
	"github.com/matescarabino/gatheringTracker-server/internal/reliability/retry"
	"github.com/matescarabino/gatheringTracker-server/internal/repository"
	"github.com/matescarabino/gatheringTracker-server/internal/worker"
	"github.com/matescarabino/gatheringTracker-server/pkg/config"
	"github.com/matescarabino/gatheringTracker-server/pkg/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dbConfig := &database.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}
	pool, err := retry.Do(ctx, retry.DefaultConfig(), log, "database connect",
		func(ctx context.Context) (*database.ConnectionPool, error) {
			return database.NewConnectionPool(ctx, dbConfig, log)
		})
	if err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	gatherings := repository.NewPostgresGatheringRepository(pool.GetDB(), log)
	opts := imaging.Options{MaxWidth: cfg.PhotoMaxWidth, JPEGQuality: cfg.PhotoJPEGQuality}
	optimizer := worker.NewPhotoOptimizer(gatherings, opts, cfg.OptimizeThresholdBytes, log)

	res, err := optimizer.Run(ctx)
	if err != nil {
		log.Error("optimization pass failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	fmt.Printf("scanned=%d optimized=%d skipped=%d failed=%d\n",
		res.Scanned, res.Optimized, res.Skipped, res.Failed)
}
