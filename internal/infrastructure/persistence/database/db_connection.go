// Package database is a storage.Adapter keeping records in a SQL table through gorm.
// SQLite and PostgreSQL are supported.
package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/turtacn/credkit/internal/config"
	"github.com/turtacn/credkit/pkg/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open connects to the configured database, applies pool settings and pings it.
func Open(ctx context.Context, cfg config.DatabaseConfig, log logger.Logger) (*gorm.DB, error) {
	log = logger.Component(log, "database")

	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverSQLite, "":
		dialector = sqlite.Open(cfg.DSN)
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		log.Error(ctx, "Failed to open database", err, logger.String("driver", cfg.Driver))
		return nil, fmt.Errorf("database open failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		log.Error(ctx, "Database ping failed", err)
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	log.Info(ctx, "Database connection established",
		logger.String("driver", db.Dialector.Name()),
		logger.Int("max_open_conns", cfg.MaxOpenConns),
	)
	return db, nil
}
