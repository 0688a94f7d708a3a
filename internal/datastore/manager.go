// Package datastore owns the SQLite database holding snapshots, the
// notification ledger, alert rules, and the historical config row.
package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/proxypulse/proxypulse/internal/datastore/entities"
)

// databaseFile is the SQLite file name inside the data directory.
const databaseFile = "proxypulse.db"

// Config configures the SQLite manager.
type Config struct {
	// DataDir is the directory holding the database file. Created if it
	// does not exist.
	DataDir string
}

// Manager owns the GORM handle and schema lifecycle.
type Manager struct {
	db   *gorm.DB
	path string
}

// NewSQLiteManager opens (or creates) the SQLite database in cfg.DataDir.
func NewSQLiteManager(cfg Config) (*Manager, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", cfg.DataDir, err)
	}

	path := filepath.Join(cfg.DataDir, databaseFile)
	// WAL mode and a busy timeout so the scheduler's concurrent writers
	// serialize at the store layer instead of failing with SQLITE_BUSY.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	return &Manager{db: db, path: path}, nil
}

// Initialize migrates the schema. Safe to call on every startup.
func (m *Manager) Initialize() error {
	if err := m.db.AutoMigrate(
		&entities.MetricSnapshot{},
		&entities.NotificationRecord{},
		&entities.AlertRule{},
		&entities.HistoricalConfig{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// DB exposes the GORM handle for repositories.
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Path returns the database file location.
func (m *Manager) Path() string {
	return m.path
}

// Close closes the underlying connection pool.
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}
