package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/utafrali/reviewrank/internal/app"
	"github.com/utafrali/reviewrank/internal/config"
	"github.com/utafrali/reviewrank/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("review service failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(app.ServiceName, cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting review service",
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
		slog.String("scoring_weights", cfg.ScoringWeights.String()),
		slog.Float64("scoring_confidence", cfg.ScoringConfidence),
	)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		return fmt.Errorf("init application: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		return err
	}
	log.Info("review service stopped")
	return nil
}
