package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/tjanssens/voxoscribe/internal/config"
)

var version = "dev"

func main() {
	// A .env next to the binary is a convenient place for API keys.
	_ = godotenv.Load()

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel(),
		TimeFormat: time.TimeOnly,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	logger.Info("voxoscribe starting",
		"version", version,
		"engine", cfg.Engine,
		"language", cfg.Language,
		"hotkey", cfg.Hotkey,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewApp(logger, cfg).Run(ctx); err != nil {
		logger.Error("voxoscribe stopped", "err", err)
		os.Exit(1)
	}
	logger.Info("voxoscribe stopped")
}

func logLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("VOXOSCRIBE_LOG_LEVEL"))) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
