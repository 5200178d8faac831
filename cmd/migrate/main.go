package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"powershare/internal/config"
	"powershare/internal/db"
	"powershare/internal/logging"
	"powershare/internal/migrations"
)

func main() {
	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect database", "err", err)
		os.Exit(1)
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch command {
	case "up":
		err = migrations.Up(ctx, database.DB)
	case "down":
		err = migrations.DownOne(ctx, database.DB)
	case "status":
		err = migrations.Status(ctx, database.DB)
	default:
		logger.Error("unknown command, expected up, down or status", "command", command)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("migration failed", "command", command, "err", err)
		os.Exit(1)
	}
	logger.Info("migration finished", "command", command)
}
