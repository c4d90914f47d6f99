//go:build integration

package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/haven/ledger/internal/domain/ledger"
	"github.com/haven/ledger/internal/infrastructure/migration"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newPostgresDB starts a postgres container and applies the embedded migrations
func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ledger_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("ledger"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	m, err := migration.New(sqlDB, nil)
	require.NoError(t, err)
	require.NoError(t, m.Up())
	return db
}

func TestGormLedgerRepository_Postgres(t *testing.T) {
	ctx := context.Background()
	db := newPostgresDB(t)
	repo := NewGormLedgerRepository(db)
	runs := NewGormReconciliationRunRepository(db)

	l := newRepoTestLedger(t, uuid.New(), false)
	recordDeposit(t, l, "DEP-1", "1200.00")
	recordRent(t, l, "PAY-1", "950.00")
	require.NoError(t, repo.Save(ctx, l))

	t.Run("round trips through the migrated schema", func(t *testing.T) {
		found, err := repo.FindByID(ctx, l.ID)
		require.NoError(t, err)
		assert.Equal(t, 4, found.EntryCount())
		assert.True(t, found.TotalCredits().Equal(decimal.RequireFromString("2150")))
		assert.True(t, found.IsBalanced())
	})

	t.Run("funding source and payee lookups", func(t *testing.T) {
		byFunding, err := repo.FindByFundingSourceCode(ctx, "ESG")
		require.NoError(t, err)
		assert.Len(t, byFunding, 1)

		byPayee, err := repo.FindActiveByPayeeID(ctx, "landlord-1")
		require.NoError(t, err)
		assert.Len(t, byPayee, 1)
	})

	t.Run("unmatched deposits past the cutoff", func(t *testing.T) {
		found, err := repo.FindWithUnmatchedDeposits(ctx, repoTestNow.Add(24*time.Hour))
		require.NoError(t, err)
		assert.Len(t, found, 1)
	})

	t.Run("stale writes conflict", func(t *testing.T) {
		stale := l.Clone()
		loaded, err := repo.FindByID(ctx, l.ID)
		require.NoError(t, err)
		recordRent(t, loaded, "PAY-2", "25.00")
		require.NoError(t, repo.Save(ctx, loaded))

		recordRent(t, stale, "PAY-3", "25.00")
		assert.ErrorIs(t, repo.Save(ctx, stale), ledger.ErrVersionConflict)
	})

	t.Run("reconciliation runs persist", func(t *testing.T) {
		run := &ledger.ReconciliationRun{
			Report: ledger.ReconciliationReport{
				ID:                     uuid.New(),
				ReconciliationDate:     repoTestNow,
				Discrepancies:          []ledger.Discrepancy{},
				TotalDiscrepancyAmount: decimal.Zero,
				IsBalanced:             true,
				GeneratedAt:            repoTestNow,
			},
			TriggeredBy: "supervisor-1",
			Source:      "integration",
		}
		require.NoError(t, runs.Save(ctx, run))
		found, err := runs.FindByID(ctx, run.Report.ID)
		require.NoError(t, err)
		assert.Equal(t, "integration", found.Source)
	})

	t.Run("delete removes the ledger", func(t *testing.T) {
		require.NoError(t, repo.DeleteByID(ctx, l.ID))
		_, err := repo.FindByID(ctx, l.ID)
		assert.ErrorIs(t, err, ledger.ErrLedgerNotFound)
	})
}
