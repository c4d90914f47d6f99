package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/haven/ledger/internal/domain/ledger"
	"github.com/haven/ledger/internal/domain/shared"
	"github.com/haven/ledger/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ReconcileRequest starts a reconciliation against an accounting export
type ReconcileRequest struct {
	AsOf              *time.Time  `json:"as_of"`
	FundingSourceCode string      `json:"funding_source_code"`
	Transactions      []ExportRow `json:"transactions" binding:"dive"`
	Source            string      `json:"source"`
	TriggeredBy       string      `json:"-"`
}

// ReconciliationRunResponse is a persisted reconciliation in API responses
type ReconciliationRunResponse struct {
	ledger.ReconciliationReport
	CountsByType map[ledger.DiscrepancyType]int `json:"counts_by_type"`
	TriggeredBy  string                         `json:"triggered_by,omitempty"`
	Source       string                         `json:"source,omitempty"`
}

// ReconciliationRunListFilter defines pagination for the run history
type ReconciliationRunListFilter struct {
	Page     int `form:"page"`
	PageSize int `form:"page_size"`
}

// ReconciliationService reconciles ledgers against external records. It never
// modifies a ledger.
type ReconciliationService struct {
	repo          ledger.Repository
	runs          ledger.ReconciliationRunRepository
	policy        ledger.AlertPolicy
	pageSize      int
	ledgerMetrics *telemetry.LedgerMetrics
	clock         func() time.Time
	logger        *zap.Logger
}

// NewReconciliationService creates a new ReconciliationService. runs may be
// nil, in which case reports are not persisted.
func NewReconciliationService(repo ledger.Repository, runs ledger.ReconciliationRunRepository, logger *zap.Logger) *ReconciliationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconciliationService{
		repo:     repo,
		runs:     runs,
		policy:   ledger.DefaultAlertPolicy(),
		pageSize: 200,
		clock:    time.Now,
		logger:   logger,
	}
}

// SetAlertPolicy sets the thresholds used by the daily summary
func (s *ReconciliationService) SetAlertPolicy(policy ledger.AlertPolicy) {
	s.policy = policy
}

// SetLedgerMetrics sets the ledger metrics collector
func (s *ReconciliationService) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	s.ledgerMetrics = m
}

// SetClock overrides the time source
func (s *ReconciliationService) SetClock(clock func() time.Time) {
	s.clock = clock
}

// ReconcileRequestRows builds the export from the request and reconciles it
func (s *ReconciliationService) ReconcileRequestRows(ctx context.Context, req ReconcileRequest) (*ReconciliationRunResponse, error) {
	export, err := NewExportSnapshot(req.Transactions)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_EXPORT", err.Error())
	}
	var asOf time.Time
	if req.AsOf != nil {
		asOf = *req.AsOf
	}
	return s.Reconcile(ctx, export, asOf, ReconcileOptions{
		FundingSourceCode: req.FundingSourceCode,
		TriggeredBy:       req.TriggeredBy,
		Source:            req.Source,
	})
}

// ReconcileOptions narrows and labels a reconciliation run
type ReconcileOptions struct {
	FundingSourceCode string
	TriggeredBy       string
	Source            string
}

// Reconcile compares every ledger, or the ledgers of one funding source, with
// the export as of the given date and stores the report.
func (s *ReconciliationService) Reconcile(ctx context.Context, export ledger.AccountingExport, asOf time.Time, opts ReconcileOptions) (_ *ReconciliationRunResponse, err error) {
	code := strings.TrimSpace(opts.FundingSourceCode)
	ctx, span := telemetry.StartSpan(ctx, "reconciliation.run",
		attribute.String("funding_source", code),
		attribute.Int("export_rows", export.TotalTransactions()),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	var ledgers []*ledger.FinancialLedger
	if code != "" {
		ledgers, err = s.repo.FindByFundingSourceCode(ctx, code)
	} else {
		ledgers, err = s.loadAll(ctx)
	}
	if err != nil {
		return nil, err
	}

	var report ledger.ReconciliationReport
	if code != "" {
		report = ledger.ReconcileFundingSourceWithExport(ledgers, export, code, asOf, s.clock())
	} else {
		report = ledger.Reconcile(ledgers, export, asOf, s.clock())
	}

	run := &ledger.ReconciliationRun{
		Report:      report,
		TriggeredBy: opts.TriggeredBy,
		Source:      opts.Source,
	}
	if s.runs != nil {
		if err := s.runs.Save(ctx, run); err != nil {
			return nil, err
		}
	}
	if s.ledgerMetrics != nil {
		s.ledgerMetrics.RecordReconciliation(ctx, len(report.Discrepancies), report.TotalDiscrepancyAmount, report.IsBalanced)
	}

	s.logger.Info("Ledger reconciliation completed",
		zap.String("report_id", report.ID.String()),
		zap.String("funding_source", code),
		zap.Int("ledgers", report.TotalLedgers),
		zap.Int("export_transactions", report.TotalExportTransactions),
		zap.Int("discrepancies", len(report.Discrepancies)),
		zap.Bool("balanced", report.IsBalanced),
	)
	return toRunResponse(run), nil
}

// GetRun returns a stored reconciliation run
func (s *ReconciliationService) GetRun(ctx context.Context, id uuid.UUID) (*ReconciliationRunResponse, error) {
	if s.runs == nil {
		return nil, shared.ErrNotFound
	}
	run, err := s.runs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toRunResponse(run), nil
}

// ListRuns returns stored reconciliation runs, newest first
func (s *ReconciliationService) ListRuns(ctx context.Context, filter ReconciliationRunListFilter) ([]ReconciliationRunResponse, int64, error) {
	if s.runs == nil {
		return []ReconciliationRunResponse{}, 0, nil
	}
	f := shared.DefaultFilter()
	f.OrderBy = "reconciliation_date"
	if filter.Page > 0 {
		f.Page = filter.Page
	}
	if filter.PageSize > 0 {
		f.PageSize = filter.PageSize
	}
	runs, total, err := s.runs.FindRecent(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	responses := make([]ReconciliationRunResponse, len(runs))
	for i := range runs {
		responses[i] = *toRunResponse(&runs[i])
	}
	return responses, total, nil
}

// DailySummary rolls up the alertable conditions as of the given date
func (s *ReconciliationService) DailySummary(ctx context.Context, date time.Time) (*ledger.DailyReconciliationSummary, error) {
	if date.IsZero() {
		date = s.clock()
	}
	unbalanced, err := s.repo.FindUnbalanced(ctx)
	if err != nil {
		return nil, err
	}
	overdue, err := s.repo.FindWithOverdueArrears(ctx, s.policy.OverdueCutoff(date))
	if err != nil {
		return nil, err
	}
	unmatched, err := s.repo.FindWithUnmatchedDeposits(ctx, s.policy.UnmatchedCutoff(date))
	if err != nil {
		return nil, err
	}
	summary := ledger.SummarizeDay(date, s.policy, unbalanced, overdue, unmatched)
	return &summary, nil
}

// ReconcileFundingSource totals one funding source over a date window
func (s *ReconciliationService) ReconcileFundingSource(ctx context.Context, code string, from, to time.Time) (*ledger.FundingSourceReconciliation, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, shared.NewDomainError("INVALID_FUNDING_SOURCE", "Funding source code cannot be empty")
	}
	if from.IsZero() || to.IsZero() {
		return nil, ledger.ErrPeriodIncomplete
	}
	if from.After(to) {
		return nil, ledger.ErrPeriodStartAfterEnd
	}
	ledgers, err := s.repo.FindByFundingSourceCode(ctx, code)
	if err != nil {
		return nil, err
	}
	result := ledger.ReconcileFundingSource(ledgers, code, from, to)
	return &result, nil
}

func (s *ReconciliationService) loadAll(ctx context.Context) ([]*ledger.FinancialLedger, error) {
	var all []*ledger.FinancialLedger
	for page := 1; ; page++ {
		batch, err := s.repo.FindAll(ctx, ledger.LedgerFilter{
			Filter: shared.Filter{Page: page, PageSize: s.pageSize, OrderBy: "created_at", OrderDir: "asc"},
		})
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < s.pageSize {
			return all, nil
		}
	}
}

func toRunResponse(run *ledger.ReconciliationRun) *ReconciliationRunResponse {
	return &ReconciliationRunResponse{
		ReconciliationReport: run.Report,
		CountsByType:         run.Report.CountByType(),
		TriggeredBy:          run.TriggeredBy,
		Source:               run.Source,
	}
}
