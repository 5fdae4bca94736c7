package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/DeafMist/travel-guide/backend/internal/config"
	"github.com/DeafMist/travel-guide/backend/internal/gpx"
	"github.com/DeafMist/travel-guide/backend/internal/logger"
)

func main() {
	_ = godotenv.Load()
	log := logger.New("retention")
	cfg, err := config.LoadRetention()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	runOnce(log, cfg, time.Now())
	for {
		select {
		case <-ctx.Done():
			log.Info("retention stopped")
			return
		case now := <-ticker.C:
			runOnce(log, cfg, now)
		}
	}
}

// runOnce removes exported track files older than the configured age.
func runOnce(log *slog.Logger, cfg *config.Retention, now time.Time) int {
	removed, err := gpx.Prune(cfg.GPXDir, cfg.MaxAge, now)
	if err != nil {
		log.Error("prune track exports", slog.Any("err", err), slog.String("dir", cfg.GPXDir))
		return removed
	}
	log.Info("retention run completed",
		slog.Int("removed", removed),
		slog.Duration("max_age", cfg.MaxAge),
	)
	return removed
}
