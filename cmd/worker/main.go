package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/coachpay/adapter/cli"
	"github.com/felixgeelhaar/coachpay/internal/app"
	"github.com/felixgeelhaar/coachpay/pkg/config"
	"github.com/felixgeelhaar/coachpay/pkg/observability"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cli.LogConfigFor(cfg))
	logger.Info("starting coachpay worker")

	// Create context canceled on shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	worker, err := app.NewWorker(container)
	if err != nil {
		logger.Error("failed to create worker", "error", err)
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil {
		logger.Error("worker stopped with error", "error", err)
		container.Close()
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
