package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/haven/ledger/internal/domain/ledger"
	"github.com/haven/ledger/internal/domain/shared"
	"github.com/haven/ledger/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Notifier delivers a financial alert to one recipient
type Notifier interface {
	SendFinancialAlert(ctx context.Context, recipient string, alert ledger.Alert) error
}

// RecipientResolver decides who receives an alert
type RecipientResolver interface {
	ResolveRecipients(ctx context.Context, alert ledger.Alert) ([]string, error)
}

// StaticRecipients routes alerts by type and severity from configuration.
// Default is used when neither map yields a recipient.
type StaticRecipients struct {
	ByType     map[ledger.AlertType][]string
	BySeverity map[ledger.AlertSeverity][]string
	Default    []string
}

// ResolveRecipients implements RecipientResolver
func (r StaticRecipients) ResolveRecipients(_ context.Context, alert ledger.Alert) ([]string, error) {
	seen := make(map[string]struct{})
	var recipients []string
	add := func(list []string) {
		for _, rcpt := range list {
			rcpt = strings.TrimSpace(rcpt)
			if rcpt == "" {
				continue
			}
			if _, ok := seen[rcpt]; ok {
				continue
			}
			seen[rcpt] = struct{}{}
			recipients = append(recipients, rcpt)
		}
	}
	add(r.ByType[alert.Type])
	add(r.BySeverity[alert.Severity])
	if len(recipients) == 0 {
		add(r.Default)
	}
	return recipients, nil
}

// AlertsConfig tunes the alert sweep
type AlertsConfig struct {
	Policy   ledger.AlertPolicy
	Workers  int
	PageSize int
}

// DefaultAlertsConfig returns the default sweep configuration
func DefaultAlertsConfig() AlertsConfig {
	return AlertsConfig{
		Policy:   ledger.DefaultAlertPolicy(),
		Workers:  4,
		PageSize: 200,
	}
}

// SweepResult summarizes one run of the alert sweep
type SweepResult struct {
	StartedAt        time.Time                `json:"started_at"`
	FinishedAt       time.Time                `json:"finished_at"`
	Counts           map[ledger.AlertType]int `json:"counts"`
	Delivered        int                      `json:"delivered"`
	Failed           int                      `json:"failed"`
	AnalysisFailures int                      `json:"analysis_failures"`
	Alerts           []ledger.Alert           `json:"alerts"`
}

// Total returns the number of alerts raised
func (r *SweepResult) Total() int {
	return len(r.Alerts)
}

// CustomAlertRequest raises a manual alert
type CustomAlertRequest struct {
	Type     string          `json:"type" binding:"required"`
	Severity string          `json:"severity" binding:"required"`
	LedgerID *uuid.UUID      `json:"ledger_id"`
	ClientID *uuid.UUID      `json:"client_id"`
	Title    string          `json:"title" binding:"required"`
	Message  string          `json:"message"`
	Amount   decimal.Decimal `json:"amount"`
	Details  map[string]any  `json:"details"`
}

// AlertsService runs the financial alert sweeps and delivers alerts
type AlertsService struct {
	repo          ledger.Repository
	checker       ledger.ComplianceChecker
	notifier      Notifier
	recipients    RecipientResolver
	config        AlertsConfig
	ledgerMetrics *telemetry.LedgerMetrics
	clock         func() time.Time
	logger        *zap.Logger
}

// NewAlertsService creates a new AlertsService
func NewAlertsService(
	repo ledger.Repository,
	checker ledger.ComplianceChecker,
	notifier Notifier,
	recipients RecipientResolver,
	config AlertsConfig,
	logger *zap.Logger,
) *AlertsService {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.PageSize <= 0 {
		config.PageSize = DefaultAlertsConfig().PageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertsService{
		repo:       repo,
		checker:    checker,
		notifier:   notifier,
		recipients: recipients,
		config:     config,
		clock:      time.Now,
		logger:     logger,
	}
}

// SetLedgerMetrics sets the ledger metrics collector
func (s *AlertsService) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	s.ledgerMetrics = m
}

// SetClock overrides the time source
func (s *AlertsService) SetClock(clock func() time.Time) {
	s.clock = clock
}

type ledgerAnalyzer func(ctx context.Context, l *ledger.FinancialLedger, now time.Time) ([]ledger.Alert, error)

// RunSweep runs every sweep once and delivers the resulting alerts. On
// cancellation the alerts raised so far are returned together with the error.
func (s *AlertsService) RunSweep(ctx context.Context) (*SweepResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "alerts.sweep")
	defer span.End()

	now := s.clock()
	result := &SweepResult{
		StartedAt: now,
		Counts:    make(map[ledger.AlertType]int, len(ledger.SweepAlertTypes)),
	}
	for _, t := range ledger.SweepAlertTypes {
		result.Counts[t] = 0
	}

	policy := s.config.Policy
	sweeps := []struct {
		alertType ledger.AlertType
		load      func(ctx context.Context) ([]*ledger.FinancialLedger, error)
		analyze   ledgerAnalyzer
	}{
		{
			alertType: ledger.AlertOverdueArrears,
			load: func(ctx context.Context) ([]*ledger.FinancialLedger, error) {
				return s.repo.FindWithOverdueArrears(ctx, policy.OverdueCutoff(now))
			},
			analyze: single(policy.OverdueArrearsAlert),
		},
		{
			alertType: ledger.AlertUnmatchedDeposits,
			load: func(ctx context.Context) ([]*ledger.FinancialLedger, error) {
				return s.repo.FindWithUnmatchedDeposits(ctx, policy.UnmatchedCutoff(now))
			},
			analyze: single(policy.UnmatchedDepositsAlert),
		},
		{
			alertType: ledger.AlertLedgerImbalance,
			load:      s.repo.FindUnbalanced,
			analyze:   single(policy.ImbalanceAlert),
		},
		{
			alertType: ledger.AlertLargeDisbursement,
			load: func(ctx context.Context) ([]*ledger.FinancialLedger, error) {
				return s.loadAll(ctx, ledger.LedgerFilter{})
			},
			analyze: single(policy.LargeDisbursementAlert),
		},
		{
			alertType: ledger.AlertVAWACompliance,
			load: func(ctx context.Context) ([]*ledger.FinancialLedger, error) {
				protected := true
				return s.loadAll(ctx, ledger.LedgerFilter{VAWAProtected: &protected})
			},
			analyze: s.checkCompliance,
		},
	}

	// Sweeps are independent: a failed load skips only its own sweep.
	var errs []error
	for _, sweep := range sweeps {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		ledgers, err := sweep.load(ctx)
		if err != nil {
			s.logger.Error("Failed to load ledgers for sweep",
				zap.String("alert_type", string(sweep.alertType)),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("failed to load ledgers for %s sweep: %w", sweep.alertType, err))
			continue
		}
		alerts, failures := s.analyzeAll(ctx, ledgers, now, sweep.alertType, sweep.analyze)
		result.AnalysisFailures += failures
		for _, alert := range alerts {
			delivered, failed := s.deliver(ctx, alert)
			result.Delivered += delivered
			result.Failed += failed
			result.Counts[alert.Type]++
		}
		result.Alerts = append(result.Alerts, alerts...)
	}
	sweepErr := errors.Join(errs...)

	result.FinishedAt = s.clock()
	if s.ledgerMetrics != nil {
		counts := make(map[string]int, len(result.Counts))
		for t, n := range result.Counts {
			counts[string(t)] = n
		}
		s.ledgerMetrics.RecordSweep(ctx, result.FinishedAt.Sub(result.StartedAt), counts)
	}

	s.logger.Info("Financial alert sweep finished",
		zap.Int("alerts", result.Total()),
		zap.Int("delivered", result.Delivered),
		zap.Int("failed", result.Failed),
		zap.Int("analysis_failures", result.AnalysisFailures),
		zap.Error(sweepErr),
	)
	return result, sweepErr
}

// analyzeAll runs the analyzer over ledgers on a bounded worker pool. Results
// keep the input order. A ledger that fails to analyze is logged and counted;
// the others still run. Cancellation is checked before each ledger.
func (s *AlertsService) analyzeAll(ctx context.Context, ledgers []*ledger.FinancialLedger, now time.Time, alertType ledger.AlertType, analyze ledgerAnalyzer) ([]ledger.Alert, int) {
	perLedger := make([][]ledger.Alert, len(ledgers))
	var failures atomic.Int64

	var g errgroup.Group
	g.SetLimit(s.config.Workers)
	for i, l := range ledgers {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			alerts, err := analyze(ctx, l, now)
			if err != nil {
				failures.Add(1)
				s.logger.Error("Failed to analyze ledger",
					zap.String("alert_type", string(alertType)),
					zap.String("ledger_id", l.ID.String()),
					zap.Error(err),
				)
				return nil
			}
			perLedger[i] = alerts
			return nil
		})
	}
	_ = g.Wait()

	var alerts []ledger.Alert
	for _, a := range perLedger {
		alerts = append(alerts, a...)
	}
	return alerts, int(failures.Load())
}

func (s *AlertsService) checkCompliance(ctx context.Context, l *ledger.FinancialLedger, now time.Time) ([]ledger.Alert, error) {
	if s.checker == nil || !l.IsVAWAProtected() {
		return nil, nil
	}
	issues, err := s.checker.Check(ctx, l)
	if err != nil {
		return nil, err
	}
	if alert, ok := ledger.ComplianceAlert(l, issues, now); ok {
		return []ledger.Alert{alert}, nil
	}
	return nil, nil
}

func (s *AlertsService) loadAll(ctx context.Context, base ledger.LedgerFilter) ([]*ledger.FinancialLedger, error) {
	var all []*ledger.FinancialLedger
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		filter := base
		filter.Filter = shared.Filter{
			Page:     page,
			PageSize: s.config.PageSize,
			OrderBy:  "created_at",
			OrderDir: "asc",
		}
		batch, err := s.repo.FindAll(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < s.config.PageSize {
			return all, nil
		}
	}
}

// deliver sends the alert to every resolved recipient. Failures are logged and
// not retried.
func (s *AlertsService) deliver(ctx context.Context, alert ledger.Alert) (delivered, failed int) {
	if s.ledgerMetrics != nil {
		s.ledgerMetrics.RecordAlert(ctx, string(alert.Type), string(alert.Severity))
	}
	if s.notifier == nil || s.recipients == nil {
		return 0, 0
	}

	recipients, err := s.recipients.ResolveRecipients(ctx, alert)
	if err != nil {
		s.logger.Warn("Failed to resolve alert recipients",
			zap.String("alert_id", alert.ID.String()),
			zap.String("alert_type", string(alert.Type)),
			zap.Error(err),
		)
		return 0, 1
	}

	for _, recipient := range recipients {
		if err := s.notifier.SendFinancialAlert(ctx, recipient, alert); err != nil {
			failed++
			if s.ledgerMetrics != nil {
				s.ledgerMetrics.RecordAlertDeliveryFailure(ctx, string(alert.Type))
			}
			s.logger.Warn("Failed to deliver financial alert",
				zap.String("alert_id", alert.ID.String()),
				zap.String("alert_type", string(alert.Type)),
				zap.String("ledger_id", alert.LedgerID.String()),
				zap.String("recipient", recipient),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}
	return delivered, failed
}

// GenerateCustomAlert raises and delivers a manual alert. When a ledger is
// given its client is taken from the ledger.
func (s *AlertsService) GenerateCustomAlert(ctx context.Context, req CustomAlertRequest) (*ledger.Alert, error) {
	alertType := ledger.AlertType(strings.ToUpper(req.Type))
	if !alertType.IsValid() {
		return nil, shared.NewDomainError("INVALID_ALERT_TYPE", fmt.Sprintf("Unknown alert type %q", req.Type))
	}
	severity := ledger.AlertSeverity(strings.ToUpper(req.Severity))
	if !severity.IsValid() {
		return nil, shared.NewDomainError("INVALID_ALERT_SEVERITY", fmt.Sprintf("Unknown alert severity %q", req.Severity))
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, shared.NewDomainError("INVALID_ALERT", "Alert title cannot be empty")
	}

	var clientID, ledgerID uuid.UUID
	if req.ClientID != nil {
		clientID = *req.ClientID
	}
	if req.LedgerID != nil {
		l, err := s.repo.FindByID(ctx, *req.LedgerID)
		if err != nil {
			return nil, err
		}
		ledgerID = l.ID
		clientID = l.ClientID
	}

	alert := ledger.NewAlert(alertType, severity, clientID, ledgerID, req.Title, req.Message, req.Amount, s.clock())
	if len(req.Details) > 0 {
		alert.Details = req.Details
	}
	s.deliver(ctx, alert)
	return &alert, nil
}

// Raise delivers an alert produced outside the sweep
func (s *AlertsService) Raise(ctx context.Context, alert ledger.Alert) {
	s.deliver(ctx, alert)
}

func single(fn func(*ledger.FinancialLedger, time.Time) (ledger.Alert, bool)) ledgerAnalyzer {
	return func(_ context.Context, l *ledger.FinancialLedger, now time.Time) ([]ledger.Alert, error) {
		if alert, ok := fn(l, now); ok {
			return []ledger.Alert{alert}, nil
		}
		return nil, nil
	}
}
