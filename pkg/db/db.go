// Package db opens the registry database from a dialect name and DSN.
// PostgreSQL and MySQL are the production dialects; SQLite is for local
// development and tests.
package db

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Config holds the database connection settings.
type Config struct {
	// Type is the database dialect: "postgres", "mysql" or "sqlite".
	Type string

	// DSN is the connection string. For SQLite it is a file path or
	// ":memory:".
	DSN string

	// MaxOpenConns bounds the connection pool. Zero keeps the driver
	// default. SQLite in-memory databases are forced to a single
	// connection regardless, because each pooled connection would get its
	// own empty database.
	MaxOpenConns int
}

// FromEnv reads the connection settings from DATABASE_TYPE and DATABASE_DSN,
// defaulting the dialect to postgres.
func FromEnv() Config {
	cfg := Config{
		Type: os.Getenv("DATABASE_TYPE"),
		DSN:  os.Getenv("DATABASE_DSN"),
	}
	if cfg.Type == "" {
		cfg.Type = "postgres"
	}
	return cfg
}

// Connect opens a GORM handle for the configured dialect and verifies the
// connection.
func Connect(cfg Config, logger *slog.Logger) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required (use -db-dsn or DATABASE_DSN)")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var dialector gorm.Dialector
	switch cfg.Type {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type %q (expected postgres, mysql or sqlite)", cfg.Type)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Type, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("access %s connection pool: %w", cfg.Type, err)
	}
	if cfg.Type == "sqlite" && cfg.DSN == ":memory:" {
		sqlDB.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping %s database: %w", cfg.Type, err)
	}

	logger.Info("connected to database", "type", cfg.Type)
	return gdb, nil
}
