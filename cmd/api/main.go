package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ebookviewer/internal/cache"
	"ebookviewer/internal/config"
	"ebookviewer/internal/database"
	"ebookviewer/internal/events"
	"ebookviewer/internal/pkg/logger"
	"ebookviewer/internal/pkg/telemetry"
	"ebookviewer/internal/server"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logger.New(logger.Config{
		Level:   cfg.Log.Level,
		Pretty:  cfg.Log.Pretty,
		App:     cfg.App.Name,
		Env:     cfg.App.Env,
		Version: cfg.App.Version,
	})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	if cfg.GeneratedSecrets {
		lg.Warn("JWT secrets not configured, using random per-process secrets; tokens will not survive a restart")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Setup(ctx, telemetry.Config{
		Enable:      cfg.OTEL.Enable,
		Endpoint:    cfg.OTEL.Endpoint,
		ServiceName: cfg.OTEL.ServiceName,
		SampleRatio: cfg.OTEL.SampleRatio,
	})
	if err != nil {
		lg.Fatal("telemetry setup failed", zap.Error(err))
	}

	db, err := database.Connect(ctx, cfg.DB.DSN, database.Options{
		Attempts:     cfg.DB.ConnectAttempts,
		Backoff:      cfg.DB.ConnectBackoff,
		MaxOpenConns: cfg.DB.MaxOpenConns,
	}, lg)
	if err != nil {
		lg.Fatal("database unavailable", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		lg.Fatal("migration failed", zap.Error(err))
	}

	var lists cache.BookLists = cache.Noop{}
	if cfg.Redis.Addr != "" {
		client, err := cache.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			lg.Warn("redis unavailable, book lists will not be cached", zap.Error(err))
		} else {
			defer client.Close()
			lists = cache.NewRedisBookLists(client, cfg.Redis.BooksTTL)
		}
	}

	var publisher events.Publisher = events.Noop{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), lg)
		lg.Info("publishing events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			lg.Warn("event publisher close failed", zap.Error(err))
		}
	}()

	app, err := server.New(server.Deps{
		Config:    cfg,
		DB:        db,
		Log:       lg,
		Lists:     lists,
		Publisher: publisher,
	})
	if err != nil {
		lg.Fatal("server setup failed", zap.Error(err))
	}

	if err := app.Auth.EnsureAdmin(ctx); err != nil {
		lg.Error("admin seed failed", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("server listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("env", cfg.App.Env),
			zap.String("uploads", app.Files.Dir()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		lg.Info("shutting down")
	case err := <-errCh:
		lg.Error("server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		lg.Warn("telemetry shutdown failed", zap.Error(err))
	}
	database.Close(db)
	lg.Info("stopped", zap.Duration("grace", cfg.Server.GracefulTimeout.Round(time.Second)))
}
