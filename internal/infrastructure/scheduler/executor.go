package scheduler

import (
	"context"
	"fmt"
	"time"

	ledgerapp "github.com/haven/ledger/internal/application/ledger"
	"github.com/haven/ledger/internal/domain/ledger"
	"go.uber.org/zap"
)

// AlertSweeper runs one pass over all ledgers and dispatches the resulting alerts
type AlertSweeper interface {
	RunSweep(ctx context.Context) (*ledgerapp.SweepResult, error)
}

// DailySummarizer builds the reconciliation summary for a single day
type DailySummarizer interface {
	DailySummary(ctx context.Context, date time.Time) (*ledger.DailyReconciliationSummary, error)
}

// LedgerJobExecutor dispatches jobs to the alert and reconciliation services
type LedgerJobExecutor struct {
	sweeper    AlertSweeper
	summarizer DailySummarizer
	logger     *zap.Logger
}

// NewLedgerJobExecutor creates an executor. Either dependency may be nil, in
// which case jobs of that type fail.
func NewLedgerJobExecutor(sweeper AlertSweeper, summarizer DailySummarizer, logger *zap.Logger) *LedgerJobExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerJobExecutor{
		sweeper:    sweeper,
		summarizer: summarizer,
		logger:     logger,
	}
}

// Execute implements Executor
func (e *LedgerJobExecutor) Execute(ctx context.Context, job *Job) error {
	switch job.Type {
	case JobTypeAlertSweep:
		return e.runSweep(ctx, job)
	case JobTypeDailySummary:
		return e.runSummary(ctx, job)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidJobType, job.Type)
	}
}

func (e *LedgerJobExecutor) runSweep(ctx context.Context, job *Job) error {
	if e.sweeper == nil {
		return fmt.Errorf("alert sweeper not configured")
	}
	result, err := e.sweeper.RunSweep(ctx)
	if result == nil {
		if err == nil {
			err = fmt.Errorf("no sweep result")
		}
		return fmt.Errorf("alert sweep: %w", err)
	}

	fields := []zap.Field{
		zap.String("job_id", job.ID.String()),
		zap.Int("alerts", result.Total()),
		zap.Int("delivered", result.Delivered),
		zap.Int("failed", result.Failed),
		zap.Int("analysis_failures", result.AnalysisFailures),
		zap.Duration("duration", result.FinishedAt.Sub(result.StartedAt)),
	}
	for alertType, n := range result.Counts {
		fields = append(fields, zap.Int(string(alertType), n))
	}
	if err != nil {
		e.logger.Warn("Alert sweep finished with errors", append(fields, zap.Error(err))...)
		return fmt.Errorf("alert sweep: %w", err)
	}
	e.logger.Info("Alert sweep finished", fields...)
	return nil
}

func (e *LedgerJobExecutor) runSummary(ctx context.Context, job *Job) error {
	if e.summarizer == nil {
		return fmt.Errorf("reconciliation summarizer not configured")
	}
	summary, err := e.summarizer.DailySummary(ctx, job.AsOf)
	if err != nil {
		return fmt.Errorf("daily reconciliation summary: %w", err)
	}

	e.logger.Info("Daily reconciliation summary",
		zap.String("job_id", job.ID.String()),
		zap.Time("date", summary.Date),
		zap.Int("unbalanced_ledgers", summary.UnbalancedLedgerCount),
		zap.String("unbalanced_amount", summary.TotalUnbalancedAmount.StringFixed(2)),
		zap.Int("overdue_arrears", summary.OverdueArrearsCount),
		zap.String("overdue_arrears_amount", summary.TotalOverdueArrears.StringFixed(2)),
		zap.Int("unmatched_deposits", summary.UnmatchedDepositsCount),
		zap.String("unmatched_deposits_amount", summary.TotalUnmatchedDeposits.StringFixed(2)),
	)
	return nil
}
