package scheduler

import (
	"context"
	"testing"
	"time"

	ledgerapp "github.com/haven/ledger/internal/application/ledger"
	"github.com/haven/ledger/internal/domain/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type mockSweeper struct {
	mock.Mock
}

func (m *mockSweeper) RunSweep(ctx context.Context) (*ledgerapp.SweepResult, error) {
	args := m.Called(ctx)
	if r := args.Get(0); r != nil {
		return r.(*ledgerapp.SweepResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSummarizer struct {
	mock.Mock
}

func (m *mockSummarizer) DailySummary(ctx context.Context, date time.Time) (*ledger.DailyReconciliationSummary, error) {
	args := m.Called(ctx, date)
	if r := args.Get(0); r != nil {
		return r.(*ledger.DailyReconciliationSummary), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestLedgerJobExecutor_AlertSweep(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sweeper := new(mockSweeper)
	now := time.Now()
	sweeper.On("RunSweep", mock.Anything).Return(&ledgerapp.SweepResult{
		StartedAt:  now,
		FinishedAt: now.Add(time.Second),
		Counts:     map[ledger.AlertType]int{ledger.AlertOverdueArrears: 2},
		Delivered:  2,
	}, nil)

	exec := NewLedgerJobExecutor(sweeper, nil, zap.New(core))
	require.NoError(t, exec.Execute(context.Background(), NewJob(JobTypeAlertSweep, now, 0)))

	entries := logs.FilterMessage("Alert sweep finished").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].ContextMap()["delivered"])
	sweeper.AssertExpectations(t)
}

func TestLedgerJobExecutor_AlertSweepError(t *testing.T) {
	sweeper := new(mockSweeper)
	sweeper.On("RunSweep", mock.Anything).Return(nil, assert.AnError)

	exec := NewLedgerJobExecutor(sweeper, nil, nil)
	err := exec.Execute(context.Background(), NewJob(JobTypeAlertSweep, time.Now(), 0))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestLedgerJobExecutor_AlertSweepPartialFailure(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sweeper := new(mockSweeper)
	now := time.Now()
	sweeper.On("RunSweep", mock.Anything).Return(&ledgerapp.SweepResult{
		StartedAt:  now,
		FinishedAt: now,
		Counts:     map[ledger.AlertType]int{ledger.AlertLedgerImbalance: 1},
		Delivered:  1,
	}, assert.AnError)

	exec := NewLedgerJobExecutor(sweeper, nil, zap.New(core))
	err := exec.Execute(context.Background(), NewJob(JobTypeAlertSweep, now, 0))
	assert.ErrorIs(t, err, assert.AnError)

	entries := logs.FilterMessage("Alert sweep finished with errors").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].ContextMap()[string(ledger.AlertLedgerImbalance)])
}

func TestLedgerJobExecutor_DailySummary(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	asOf := time.Date(2026, 3, 2, 6, 30, 0, 0, time.UTC)
	summarizer := new(mockSummarizer)
	summarizer.On("DailySummary", mock.Anything, asOf).Return(&ledger.DailyReconciliationSummary{
		Date:                  asOf,
		UnbalancedLedgerCount: 1,
		TotalUnbalancedAmount: decimal.NewFromFloat(12.5),
	}, nil)

	exec := NewLedgerJobExecutor(nil, summarizer, zap.New(core))
	require.NoError(t, exec.Execute(context.Background(), NewJob(JobTypeDailySummary, asOf, 0)))

	entries := logs.FilterMessage("Daily reconciliation summary").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "12.50", entries[0].ContextMap()["unbalanced_amount"])
	summarizer.AssertExpectations(t)
}

func TestLedgerJobExecutor_MissingDependencies(t *testing.T) {
	exec := NewLedgerJobExecutor(nil, nil, nil)

	assert.Error(t, exec.Execute(context.Background(), NewJob(JobTypeAlertSweep, time.Now(), 0)))
	assert.Error(t, exec.Execute(context.Background(), NewJob(JobTypeDailySummary, time.Now(), 0)))
	assert.ErrorIs(t, exec.Execute(context.Background(), NewJob("OTHER", time.Now(), 0)), ErrInvalidJobType)
}
