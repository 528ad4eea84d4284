package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/zap"

	"ebookviewer/internal/config"
	"ebookviewer/internal/database"
	"ebookviewer/internal/pkg/logger"
	"ebookviewer/internal/repository"
)

// premium_sweep clears lapsed premium grants in bulk. The API also demotes
// lazily on status checks; this catches users who never come back.
func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg, err := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: true, App: "premium_sweep", Env: cfg.App.Env})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.Connect(ctx, cfg.DB.DSN, database.Options{
		Attempts: cfg.DB.ConnectAttempts,
		Backoff:  cfg.DB.ConnectBackoff,
	}, lg)
	if err != nil {
		lg.Fatal("db connect failed", zap.Error(err))
	}

	n, err := repository.NewUserRepository(db).SweepLapsedPremium(ctx, time.Now())
	if err != nil {
		lg.Fatal("premium sweep failed", zap.Error(err))
	}
	lg.Info("premium sweep completed", zap.Int64("demoted", n))
}
