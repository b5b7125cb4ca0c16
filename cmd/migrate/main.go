package main

import (
	"fmt"
	"os"

	"github.com/strava-board/internal/config"
	"github.com/strava-board/internal/logging"
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

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	migrationsPath := "migrations"
	if len(os.Args) > 2 {
		migrationsPath = os.Args[2]
	}

	databaseURL := cfg.Database.Postgres.PostgresURL()

	switch command {
	case "up":
		if err := storage.RunMigrations(databaseURL, migrationsPath); err != nil {
			logger.WithError(err).Fatal("Migration failed")
		}
		logger.Info("Migrations applied")
	case "down":
		if err := storage.RollbackMigrations(databaseURL, migrationsPath); err != nil {
			logger.WithError(err).Fatal("Rollback failed")
		}
		logger.Info("Last migration rolled back")
	case "version":
		version, dirty, err := storage.MigrationVersion(databaseURL, migrationsPath)
		if err != nil {
			logger.WithError(err).Fatal("Failed to read migration version")
		}
		fmt.Printf("version: %d dirty: %v\n", version, dirty)
	default:
		fmt.Fprintf(os.Stderr, "usage: %s [up|down|version] [migrations-path]\n", os.Args[0])
		os.Exit(2)
	}
}
