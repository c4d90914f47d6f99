package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/haven/ledger/internal/infrastructure/config"
	"github.com/haven/ledger/internal/infrastructure/persistence/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database is an open ledger store: the GORM session the repositories use
// plus the pool underneath it.
type Database struct {
	DB     *gorm.DB
	Driver string

	pool *sql.DB
}

// DatabaseOption adjusts the GORM session opened by NewDatabase
type DatabaseOption func(*gorm.Config)

// WithGormLogger routes GORM's own logging through l
func WithGormLogger(l logger.Interface) DatabaseOption {
	return func(c *gorm.Config) { c.Logger = l }
}

// dialect knows how to open one driver and size its pool
type dialect struct {
	open     func(cfg *config.DatabaseConfig) gorm.Dialector
	prepared bool
	tune     func(pool *sql.DB, cfg *config.DatabaseConfig)
}

var dialects = map[string]dialect{
	"postgres": {
		open:     func(cfg *config.DatabaseConfig) gorm.Dialector { return postgres.Open(cfg.DSN()) },
		prepared: true,
		tune: func(pool *sql.DB, cfg *config.DatabaseConfig) {
			pool.SetMaxOpenConns(cfg.MaxOpenConns)
			pool.SetMaxIdleConns(cfg.MaxIdleConns)
			pool.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
			pool.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)
		},
	},
	// sqlite serialises writers; one connection avoids SQLITE_BUSY on
	// concurrent postings.
	"sqlite": {
		open: func(cfg *config.DatabaseConfig) gorm.Dialector {
			return sqlite.Open(cfg.SQLitePath + "?_foreign_keys=on&_busy_timeout=5000")
		},
		tune: func(pool *sql.DB, _ *config.DatabaseConfig) { pool.SetMaxOpenConns(1) },
	},
}

// NewDatabase opens the configured driver, sizes its pool and checks the
// connection. An empty driver means postgres.
func NewDatabase(cfg *config.DatabaseConfig, opts ...DatabaseOption) (*Database, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	gormCfg := &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		PrepareStmt:            d.prepared,
	}
	for _, opt := range opts {
		opt(gormCfg)
	}

	db, err := gorm.Open(d.open(cfg), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	database, err := wrapDatabase(db, driver)
	if err != nil {
		return nil, err
	}
	d.tune(database.pool, cfg)

	if err := database.pool.Ping(); err != nil {
		_ = database.pool.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return database, nil
}

func wrapDatabase(db *gorm.DB, driver string) (*Database, error) {
	pool, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("connection pool: %w", err)
	}
	return &Database{DB: db, Driver: driver, pool: pool}, nil
}

// Pool exposes the underlying connection pool. Closing it closes the
// Database.
func (d *Database) Pool() *sql.DB { return d.pool }

// Ping checks the connection within ctx
func (d *Database) Ping(ctx context.Context) error {
	if d == nil || d.pool == nil {
		return errors.New("database not open")
	}
	return d.pool.PingContext(ctx)
}

// Close releases the pool
func (d *Database) Close() error {
	return d.pool.Close()
}

// AutoMigrate creates the ledger tables from the GORM models. Postgres
// deployments use the versioned migrations instead; this serves sqlite.
func (d *Database) AutoMigrate() error {
	return d.DB.AutoMigrate(models.LedgerModels()...)
}
