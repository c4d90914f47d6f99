package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/haven/ledger/internal/domain/ledger"
	"github.com/haven/ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedgerRepository_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryLedgerRepository()

	l := newRepoTestLedger(t, uuid.New(), false)
	recordRent(t, l, "PAY-1", "100.00")
	require.NoError(t, repo.Save(ctx, l))
	assert.Equal(t, 1, repo.Len())

	t.Run("returns isolated snapshots", func(t *testing.T) {
		a, err := repo.FindByID(ctx, l.ID)
		require.NoError(t, err)
		recordRent(t, a, "PAY-2", "10.00")

		b, err := repo.FindByID(ctx, l.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, b.EntryCount())
		assert.Equal(t, 4, a.EntryCount())
	})

	t.Run("detects concurrent modification", func(t *testing.T) {
		first, err := repo.FindByID(ctx, l.ID)
		require.NoError(t, err)
		second, err := repo.FindByID(ctx, l.ID)
		require.NoError(t, err)

		recordRent(t, first, "PAY-3", "10.00")
		recordRent(t, second, "PAY-4", "10.00")

		require.NoError(t, repo.Save(ctx, first))
		assert.ErrorIs(t, repo.Save(ctx, second), ledger.ErrVersionConflict)
	})

	t.Run("rejects saving a new ledger twice", func(t *testing.T) {
		dup := newRepoTestLedger(t, uuid.New(), false)
		require.NoError(t, repo.Save(ctx, dup))

		fresh := newRepoTestLedger(t, uuid.New(), false)
		fresh.ID = dup.ID
		assert.ErrorIs(t, repo.Save(ctx, fresh), ledger.ErrVersionConflict)
	})

	t.Run("missing ledger", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, ledger.ErrLedgerNotFound)
		assert.ErrorIs(t, repo.DeleteByID(ctx, uuid.New()), ledger.ErrLedgerNotFound)
	})
}

func TestMemoryLedgerRepository_FindAll(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryLedgerRepository()
	clientID := uuid.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Save(ctx, newRepoTestLedger(t, clientID, false)))
	}
	protected := newRepoTestLedger(t, uuid.New(), true)
	require.NoError(t, repo.Save(ctx, protected))

	tests := []struct {
		name     string
		filter   ledger.LedgerFilter
		expected int
	}{
		{"by client", ledger.LedgerFilter{ClientID: &clientID}, 3},
		{"first page", ledger.LedgerFilter{Filter: shared.Filter{Page: 1, PageSize: 2}}, 2},
		{"page past the end", ledger.LedgerFilter{Filter: shared.Filter{Page: 5, PageSize: 2}}, 0},
		{"by search", ledger.LedgerFilter{Filter: shared.Filter{Search: "rehousing"}}, 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			found, err := repo.FindAll(ctx, tc.filter)
			require.NoError(t, err)
			assert.Len(t, found, tc.expected)
		})
	}

	t.Run("count ignores pagination", func(t *testing.T) {
		n, err := repo.Count(ctx, ledger.LedgerFilter{Filter: shared.Filter{Page: 1, PageSize: 1}})
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
	})
}

func TestMemoryReconciliationRunRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryReconciliationRunRepository()

	old := &ledger.ReconciliationRun{Report: ledger.ReconciliationReport{ID: uuid.New(), ReconciliationDate: repoTestNow.AddDate(0, 0, -2)}}
	recent := &ledger.ReconciliationRun{Report: ledger.ReconciliationReport{ID: uuid.New(), ReconciliationDate: repoTestNow}}
	require.NoError(t, repo.Save(ctx, old))
	require.NoError(t, repo.Save(ctx, recent))

	runs, total, err := repo.FindRecent(ctx, shared.Filter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, runs, 2)
	assert.Equal(t, recent.Report.ID, runs[0].Report.ID)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
