// Package gorm provides GORM-based database operations for quickpen.
package gorm

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store wraps the GORM database connection.
type Store struct {
	DB    *gorm.DB
	sqlDB *sql.DB
}

// Config holds database configuration.
type Config struct {
	Driver      string          // "sqlite" (default) or "postgres"
	Path        string          // SQLite database file path
	PostgresDSN string          // Postgres connection string
	MaxConns    int             // Maximum open connections (default: 4)
	LogLevel    logger.LogLevel // GORM log level (logger.Silent for production)
}

// NewStore opens the database, runs migrations, and configures the pool.
// For SQLite, WAL mode and a busy timeout are set so concurrent handler
// reads do not fail on writer locks.
func NewStore(cfg Config) (*Store, error) {
	db, sqlDB, err := open(cfg)
	if err != nil {
		return nil, err
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if cfg.Driver == "" || cfg.Driver == "sqlite" {
		if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
		if _, err := sqlDB.Exec("PRAGMA synchronous=NORMAL"); err != nil {
			return nil, fmt.Errorf("set synchronous mode: %w", err)
		}
		if _, err := sqlDB.Exec("PRAGMA busy_timeout=5000"); err != nil {
			return nil, fmt.Errorf("set busy timeout: %w", err)
		}
	}

	return &Store{DB: db, sqlDB: sqlDB}, nil
}

func open(cfg Config) (*gorm.DB, *sql.DB, error) {
	gormCfg := &gorm.Config{
		Logger:      logger.Default.LogMode(cfg.LogLevel),
		PrepareStmt: true,
	}

	switch cfg.Driver {
	case "", "sqlite":
		dsn := cfg.Path + "?_foreign_keys=ON"
		sqlDB, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		db, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, gormCfg)
		if err != nil {
			_ = sqlDB.Close()
			return nil, nil, fmt.Errorf("open gorm: %w", err)
		}
		return db, sqlDB, nil

	case "postgres":
		db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), gormCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("open gorm: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("get sql db: %w", err)
		}
		return db, sqlDB, nil
	}

	return nil, nil, fmt.Errorf("unknown db driver %q", cfg.Driver)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.sqlDB.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping() error {
	return s.sqlDB.Ping()
}

// GetDB returns the GORM DB instance.
func (s *Store) GetDB() *gorm.DB {
	return s.DB
}
