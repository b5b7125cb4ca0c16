package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/strava-board/internal/adapter"
	"github.com/strava-board/internal/clubs"
	"github.com/strava-board/internal/config"
	"github.com/strava-board/internal/logging"
	"github.com/strava-board/internal/service"
	"github.com/strava-board/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger().WithField("component", "sync_worker")

	rules, err := clubs.LoadRules(cfg.Clubs.RulesPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load club rules")
	}

	db, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer db.Close()

	cache, err := storage.NewRedisCache(&cfg.Database.Redis, cfg.Cache.TTL)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, cache invalidation disabled")
		cache = nil
	} else {
		defer cache.Close()
	}

	userRepo := storage.NewUserRepository(db)
	runRepo := storage.NewRunRepository(db)

	stravaClient := adapter.NewStravaClient(
		cfg.Strava.ClientID,
		cfg.Strava.ClientSecret,
		cfg.Strava.RedirectURI,
		cfg.Strava.RequestsPerSec,
	)

	var leaderboardCache service.LeaderboardCache
	if cache != nil {
		leaderboardCache = cache
	}

	authService := service.NewAuthService(stravaClient, userRepo)
	syncService := service.NewSyncService(stravaClient, authService, userRepo, runRepo, rules, leaderboardCache)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-stop
		logger.WithField("signal", sig.String()).Info("Stopping sync worker")
		cancel()
	}()

	logger.WithField("interval", cfg.Sync.Interval.String()).Info("Sync worker started")

	// First pass immediately, then on the ticker
	runSync(ctx, syncService, logger)

	ticker := time.NewTicker(cfg.Sync.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Sync worker stopped")
			return
		case <-ticker.C:
			runSync(ctx, syncService, logger)
		}
	}
}

func runSync(ctx context.Context, syncService *service.SyncService, logger *logging.Logger) {
	result, err := syncService.SyncAll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.WithError(err).Error("Sync pass failed")
		return
	}
	logger.WithFields(map[string]interface{}{
		"fetched":  result.Fetched,
		"upserted": result.Upserted,
		"skipped":  result.Skipped,
	}).Info("Sync pass completed")
}
