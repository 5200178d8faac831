package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"powershare/internal/auth"
	"powershare/internal/config"
	"powershare/internal/db"
	"powershare/internal/handlers"
	"powershare/internal/logging"
	"powershare/internal/migrations"
	"powershare/internal/services"
	"powershare/internal/store"
	"powershare/internal/websocket"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect database", "err", err)
		os.Exit(1)
	}
	defer database.Close()

	if cfg.MigrateOnStart {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		err := migrations.Up(ctx, database.DB)
		cancel()
		if err != nil {
			logger.Error("migration failed", "err", err)
			os.Exit(1)
		}
	}

	users := store.NewUserStore(database)
	grids := store.NewGridStore(database)
	transactions := store.NewTransactionStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database)
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	hub := websocket.NewHub()

	accounts := services.NewAccountService(txRunner, users, audit, auth.NewPasswordHasher(bcrypt.DefaultCost), tokens)
	gridService := services.NewGridService(txRunner, grids, users, audit, hub)
	pool := services.NewPoolService(txRunner, grids, transactions, audit, hub)
	reports := services.NewReportService(grids, transactions, cfg.Location())

	handler := handlers.New(cfg, logger, tokens, accounts, gridService, pool, reports, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("powershare API listening", "addr", server.Addr, "env", cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "err", err)
	}
}
