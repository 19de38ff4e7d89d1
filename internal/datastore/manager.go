// Package datastore persists postit data with GORM on SQLite or MySQL and
// exposes it to the assignment engine as a store.Store.
package datastore

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/evalgrid/postit/internal/conf"
	"github.com/evalgrid/postit/internal/datastore/entities"
	"github.com/evalgrid/postit/internal/errors"
	"github.com/evalgrid/postit/internal/logger"
)

// Manager owns a database connection and its schema.
type Manager interface {
	// Initialize creates or migrates the schema.
	Initialize() error
	// DB returns the underlying GORM database.
	DB() *gorm.DB
	// Path returns the database location (file path for SQLite, host:port/database for MySQL).
	Path() string
	// Close closes the database connection.
	Close() error
	// IsMySQL returns true if this is a MySQL manager.
	IsMySQL() bool
}

// SQLiteConfig holds SQLite manager settings.
type SQLiteConfig struct {
	// Path is the database file, or ":memory:".
	Path          string
	SlowThreshold time.Duration
	Logger        logger.Logger
}

// SQLiteManager handles a SQLite database.
type SQLiteManager struct {
	db     *gorm.DB
	dbPath string
}

func isMemoryPath(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:")
}

// NewSQLiteManager opens the database at cfg.Path with WAL journaling and
// foreign keys enabled. An in-memory database is pinned to one connection
// so every query sees the same data.
func NewSQLiteManager(cfg SQLiteConfig) (*SQLiteManager, error) {
	if cfg.Path == "" {
		return nil, errors.Newf("sqlite path is empty").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", cfg.Path)
	if isMemoryPath(cfg.Path) {
		dsn = fmt.Sprintf("%s?_foreign_keys=ON", cfg.Path)
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(moduleLogger(cfg.Logger), cfg.SlowThreshold),
	})
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open sqlite database: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("path", cfg.Path).
			Build()
	}

	if isMemoryPath(cfg.Path) {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying database: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return &SQLiteManager{db: db, dbPath: cfg.Path}, nil
}

// Initialize runs GORM auto-migrations for all entities.
func (m *SQLiteManager) Initialize() error {
	if err := m.db.AutoMigrate(entities.All()...); err != nil {
		return errors.New(fmt.Errorf("failed to migrate schema: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("path", m.dbPath).
			Build()
	}
	return nil
}

// DB returns the underlying GORM database.
func (m *SQLiteManager) DB() *gorm.DB {
	return m.db
}

// Path returns the database file path.
func (m *SQLiteManager) Path() string {
	return m.dbPath
}

// Close closes the database connection.
func (m *SQLiteManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

// IsMySQL returns false for SQLite manager.
func (m *SQLiteManager) IsMySQL() bool {
	return false
}

// Open returns the manager selected by settings.Driver. The schema is not
// migrated; call Initialize.
func Open(settings *conf.StoreSettings, log logger.Logger) (Manager, error) {
	switch settings.Driver {
	case conf.DriverSQLite, "":
		return NewSQLiteManager(SQLiteConfig{
			Path:          settings.SQLite.Path,
			SlowThreshold: settings.SlowThreshold,
			Logger:        log,
		})
	case conf.DriverMySQL:
		m := settings.MySQL
		return NewMySQLManager(&MySQLConfig{
			Host:            m.Host,
			Port:            m.Port,
			Username:        m.Username,
			Password:        m.Password,
			Database:        m.Database,
			MaxOpenConns:    m.MaxOpenConns,
			MaxIdleConns:    m.MaxIdleConns,
			ConnMaxLifetime: m.ConnMaxLifetime,
			SlowThreshold:   settings.SlowThreshold,
			Logger:          log,
		})
	default:
		return nil, errors.Newf("unknown store driver %q", settings.Driver).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

func moduleLogger(l logger.Logger) logger.Logger {
	if l == nil {
		l = logger.NewSlogLogger(nil, logger.LogLevelError, nil)
	}
	return l.Module("datastore")
}
