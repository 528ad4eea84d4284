package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"ebookviewer/internal/config"
	"ebookviewer/internal/database"
	"ebookviewer/internal/domain/auth"
	"ebookviewer/internal/domain/coupon"
	"ebookviewer/internal/events"
	"ebookviewer/internal/pkg/jwt"
	"ebookviewer/internal/pkg/logger"
	"ebookviewer/internal/repository"
)

func main() {
	coupons := flag.Int("coupons", 5, "number of premium coupons to generate")
	flag.Parse()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg, err := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: true, App: "seed", Env: cfg.App.Env})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.Connect(ctx, cfg.DB.DSN, database.Options{
		Attempts: cfg.DB.ConnectAttempts,
		Backoff:  cfg.DB.ConnectBackoff,
	}, lg)
	if err != nil {
		lg.Fatal("db connect failed", zap.Error(err))
	}

	lg.Info("running migrations")
	if err := database.Migrate(db); err != nil {
		lg.Fatal("migrate failed", zap.Error(err))
	}

	tokens := jwt.New(cfg.Auth.JWTSecret, cfg.Auth.RefreshSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	authService := auth.NewService(repository.NewUserRepository(db), tokens, events.Noop{}, auth.AdminAccount{
		Username: cfg.Auth.AdminUsername,
		Password: cfg.Auth.AdminPassword,
		Email:    cfg.Auth.AdminEmail,
	}, lg)
	if err := authService.EnsureAdmin(ctx); err != nil {
		lg.Fatal("admin seed failed", zap.Error(err))
	}
	lg.Info("admin ready", zap.String("username", cfg.Auth.AdminUsername))

	couponService := coupon.NewService(repository.NewCouponRepository(db), events.Noop{}, cfg.Coupon.DurationDays, lg)
	for i := 0; i < *coupons; i++ {
		c, err := couponService.Generate(ctx)
		if err != nil {
			lg.Fatal("coupon generation failed", zap.Error(err))
		}
		fmt.Println(c.Code)
	}
	lg.Info("seed completed", zap.Int("coupons", *coupons), zap.Int("duration_days", cfg.Coupon.DurationDays))
}
