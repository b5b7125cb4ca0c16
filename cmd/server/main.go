package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/strava-board/internal/adapter"
	"github.com/strava-board/internal/api"
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
	logger := logging.GetGlobalLogger()

	rules, err := clubs.LoadRules(cfg.Clubs.RulesPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load club rules")
	}
	logger.WithField("clubs", rules.Names()).Info("Club rules loaded")

	db, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer db.Close()

	cache, err := storage.NewRedisCache(&cfg.Database.Redis, cfg.Cache.TTL)
	if err != nil {
		// The board works without a cache, just slower
		logger.WithError(err).Warn("Redis unavailable, leaderboard caching disabled")
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
	statsService := service.NewStatsService(userRepo, runRepo, rules, leaderboardCache)

	server := api.NewServer(
		&api.ServerConfig{
			Host:            cfg.Server.Host,
			Port:            cfg.Server.Port,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimitRPS:    cfg.RateLimit.RequestsPerSecond,
			RateLimitBurst:  cfg.RateLimit.Burst,
		},
		authService,
		syncService,
		statsService,
		rules.Names(),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.WithError(err).Fatal("API server failed")
	case sig := <-stop:
		logger.WithField("signal", sig.String()).Info("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown was not clean")
	}
}
