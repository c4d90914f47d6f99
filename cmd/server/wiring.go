package main

import (
	"context"
	"fmt"

	ledgerapp "github.com/haven/ledger/internal/application/ledger"
	"github.com/haven/ledger/internal/domain/ledger"
	"github.com/haven/ledger/internal/infrastructure/config"
	"github.com/haven/ledger/internal/infrastructure/logger"
	"github.com/haven/ledger/internal/infrastructure/migration"
	"github.com/haven/ledger/internal/infrastructure/persistence"
	"github.com/haven/ledger/internal/infrastructure/storage"
	"github.com/haven/ledger/internal/infrastructure/telemetry"
	"github.com/haven/ledger/internal/interfaces/http/handler"
	"github.com/haven/ledger/internal/interfaces/http/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// openDatabase connects, instruments and prepares the schema. sqlite gets
// its tables from the GORM models; postgres runs the embedded migrations
// only when migrate_on_start is set and otherwise expects cmd/migrate.
func openDatabase(cfg *config.Config, log *zap.Logger, meter metric.Meter) (*persistence.Database, error) {
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))

	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		return nil, err
	}

	err = telemetry.InstrumentDatabase(db.DB, telemetry.DBInstrumentation{
		Tracing:       cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:    cfg.Telemetry.DBLogFullSQL,
		SlowThreshold: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:      cfg.Database.Driver,
		Meter:         meter,
		Logger:        log,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("instrument database: %w", err)
	}

	switch {
	case db.Driver == "sqlite":
		if err := db.AutoMigrate(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create sqlite schema: %w", err)
		}
	case cfg.Database.MigrateOnStart:
		if err := migrateUp(db, log); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

func migrateUp(db *persistence.Database, log *zap.Logger) error {
	m, err := migration.New(db.Pool(), log)
	if err != nil {
		return err
	}
	// Closing the migrator would close the shared pool.
	if err := m.Up(); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func newDocumentStore(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (ledgerapp.DocumentStore, error) {
	if cfg.Type != "s3" {
		log.Info("Using in-memory document storage")
		return storage.NewMemoryDocumentStore(), nil
	}
	store, err := storage.NewS3DocumentStore(ctx, &cfg,
		storage.WithLogger(log),
		storage.WithPresignExpiration(cfg.PresignExpiration),
	)
	if err != nil {
		return nil, err
	}
	if cfg.CreateBucket {
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
	}
	log.Info("Using S3 document storage", zap.String("bucket", cfg.Bucket), zap.Bool("encrypted", cfg.Encrypt))
	return store, nil
}

func alertPolicy(cfg config.AlertsConfig) ledger.AlertPolicy {
	return ledger.AlertPolicy{
		OverdueArrearsDays:          cfg.OverdueArrearsDays,
		UnmatchedDepositDays:        cfg.UnmatchedDepositDays,
		LargeDisbursementThreshold:  cfg.LargeDisbursementThreshold,
		LargeDisbursementWindowDays: cfg.LargeDisbursementWindowDays,
	}
}

// alertRecipients sends compliance findings to the compliance officers and
// everything else to finance.
func alertRecipients(cfg config.AlertsConfig) ledgerapp.StaticRecipients {
	fallback := cfg.DefaultRecipients
	if len(fallback) == 0 {
		fallback = cfg.FinanceRecipients
	}
	return ledgerapp.StaticRecipients{
		ByType: map[ledger.AlertType][]string{
			ledger.AlertVAWACompliance:    cfg.ComplianceRecipients,
			ledger.AlertOverdueArrears:    cfg.FinanceRecipients,
			ledger.AlertUnmatchedDeposits: cfg.FinanceRecipients,
			ledger.AlertLedgerImbalance:   cfg.FinanceRecipients,
			ledger.AlertLargeDisbursement: cfg.FinanceRecipients,
		},
		BySeverity: map[ledger.AlertSeverity][]string{
			ledger.SeverityCritical: cfg.ComplianceRecipients,
		},
		Default: fallback,
	}
}

func corsConfig(cfg config.HTTPConfig) middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.CORSAllowOrigins
	if len(cfg.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.CORSAllowMethods
	}
	if len(cfg.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.CORSAllowHeaders
	}
	return cors
}

func healthChecks(db *persistence.Database, rdb *redis.Client) []handler.HealthCheck {
	var checks []handler.HealthCheck
	if db != nil {
		checks = append(checks, handler.HealthCheck{
			Name:  "database",
			Check: db.Ping,
		})
	}
	if rdb != nil {
		checks = append(checks, handler.HealthCheck{
			Name: "redis",
			Check: func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
		})
	}
	return checks
}
