package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"ebookviewer/internal/repository"
)

type Options struct {
	Attempts     int
	Backoff      time.Duration
	MaxOpenConns int
}

func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open picks the dialect from the DSN: postgres URLs go to pgx, anything else
// is treated as a sqlite path or URI.
func Open(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	}
	if IsPostgres(dsn) {
		// gorm hands back the pool even when its initial ping fails
		db, err := gorm.Open(postgres.Open(dsn), cfg)
		if err != nil {
			Close(db)
			return nil, err
		}
		return db, nil
	}
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		Close(db)
		return nil, err
	}
	// sqlite serialises writers anyway; one connection avoids SQLITE_BUSY
	sqlDB, err := db.DB()
	if err != nil {
		Close(db)
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Connect opens the database and pings it, retrying with a doubling backoff.
// The pool of every failed attempt is closed before the next one.
func Connect(ctx context.Context, dsn string, opts Options, log *zap.Logger) (*gorm.DB, error) {
	return connect(ctx, dsn, opts, log, Open)
}

func connect(ctx context.Context, dsn string, opts Options, log *zap.Logger, open func(string) (*gorm.DB, error)) (*gorm.DB, error) {
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}

	dialect := "sqlite"
	if IsPostgres(dsn) {
		dialect = "postgres"
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err := open(dsn)
		if err == nil {
			if err = Ping(ctx, db); err != nil {
				Close(db)
			}
		}
		if err == nil {
			if IsPostgres(dsn) && opts.MaxOpenConns > 0 {
				if sqlDB, dbErr := db.DB(); dbErr == nil {
					sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
				}
			}
			log.Info("database connected", zap.String("dialect", dialect), zap.Int("attempt", attempt))
			return db, nil
		}
		lastErr = err
		log.Warn("database connect failed",
			zap.String("dialect", dialect),
			zap.Int("attempt", attempt),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("connect %s after %d attempts: %w", dialect, attempts, lastErr)
}

func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the pool behind db. A nil db is ignored.
func Close(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(repository.Models()...)
}
