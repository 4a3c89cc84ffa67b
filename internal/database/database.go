package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/tagfiler/backend/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrConnection marks a backend that could not be reached or whose pool is
// exhausted. Fatal at startup, retryable per call afterwards.
var ErrConnection = errors.New("database unreachable")

// Capabilities describe what the active backend supports beyond the shared
// SQL surface. Connect is the only place that knows which concrete engine is
// running; every other component branches on these flags instead.
type Capabilities struct {
	// FuzzySearch means trigram-backed ILIKE matching is available.
	FuzzySearch bool
	// NativeJSON means the backend has a first-class JSON column type.
	NativeJSON bool
}

// Database is the shared pooled handle to whichever backend is configured.
type Database struct {
	*gorm.DB
	Driver config.Driver
	Caps   Capabilities
}

// Connect opens the configured backend, tunes the connection pool and
// verifies reachability with a ping bounded by the configured timeout.
func Connect(cfg config.DatabaseConfig) (*Database, error) {
	var dialector gorm.Dialector
	var caps Capabilities

	switch cfg.Driver {
	case config.DriverPostgres:
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host,
			cfg.Port,
			cfg.User,
			cfg.Password,
			cfg.Name,
			cfg.SSLMode,
		)
		dialector = postgres.Open(dsn)
		caps = Capabilities{FuzzySearch: true, NativeJSON: true}
	case config.DriverSQLite:
		if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("%w: creating sqlite directory: %v", ErrConnection, err)
			}
		}
		dialector = sqlite.Open(cfg.Path)
		caps = Capabilities{}
	default:
		return nil, fmt.Errorf("%w: unsupported driver %q", config.ErrInvalid, cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	maxConns := cfg.MaxOpenConns
	if cfg.Driver == config.DriverSQLite {
		// sqlite supports a single writer
		maxConns = 1
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	return &Database{DB: db, Driver: cfg.Driver, Caps: caps}, nil
}

// Health runs a trivial statement against the active backend.
func (d *Database) Health() error {
	if err := d.Exec("SELECT 1").Error; err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
