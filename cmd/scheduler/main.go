package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/light-bringer/scheduler-service/internal/config"
	"github.com/light-bringer/scheduler-service/internal/services"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Failed to run scheduler: %v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting scheduler service",
		zap.String("spanner_database", cfg.SpannerDatabase),
		zap.String("publisher_driver", cfg.PublisherDriver),
		zap.String("worker_id", cfg.WorkerID),
	)

	serviceOpts, err := services.NewServiceOptions(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}
	defer serviceOpts.Close()

	err = serviceOpts.Dispatcher.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("dispatcher stopped: %w", err)
	}

	stats := serviceOpts.Dispatcher.Metrics().Stats()
	logger.Info("scheduler stopped",
		zap.Uint64("ticks", stats.Ticks),
		zap.Uint64("claimed", stats.Claimed),
		zap.Uint64("published", stats.Published),
		zap.Uint64("requeued", stats.Requeued),
		zap.Uint64("dead_lettered", stats.DeadLettered),
	)

	return nil
}
