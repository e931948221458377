package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/riskibarqy/matchpulse/internal/app"
	"github.com/riskibarqy/matchpulse/internal/config"
	"github.com/riskibarqy/matchpulse/internal/platform/logging"
)

func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Options{Level: cfg.LogLevel, Format: logging.FormatFor(cfg.AppEnv)}).With(
		"service", cfg.ServiceName,
		"version", cfg.ServiceVersion,
	)
	logging.SetDefault(logger)
	defer func() { _ = logger.Sync() }()

	service, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("build app", "error", err)
		_ = logger.Sync()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := service.Run(ctx); err != nil {
		logger.Error("service failed", "error", err)
		_ = logger.Sync()
		os.Exit(1)
	}
}
