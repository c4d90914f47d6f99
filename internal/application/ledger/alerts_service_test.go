package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/haven/ledger/internal/domain/ledger"
	"github.com/haven/ledger/internal/infrastructure/persistence"
	"github.com/haven/ledger/internal/infrastructure/redaction"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingNotifier captures delivered alerts and fails for selected recipients
type recordingNotifier struct {
	mu        sync.Mutex
	delivered map[string][]ledger.Alert
	failFor   map[string]bool
}

func newRecordingNotifier(failFor ...string) *recordingNotifier {
	n := &recordingNotifier{delivered: make(map[string][]ledger.Alert), failFor: make(map[string]bool)}
	for _, r := range failFor {
		n.failFor[r] = true
	}
	return n
}

func (n *recordingNotifier) SendFinancialAlert(_ context.Context, recipient string, alert ledger.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[recipient] {
		return errors.New("mailbox unavailable")
	}
	n.delivered[recipient] = append(n.delivered[recipient], alert)
	return nil
}

func (n *recordingNotifier) count(recipient string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.delivered[recipient])
}

func seedLedger(t *testing.T, repo ledger.Repository, vawa bool, at time.Time, record func(l *ledger.FinancialLedger)) *ledger.FinancialLedger {
	t.Helper()
	l, err := ledger.NewFinancialLedger(ledger.NewLedgerParams{
		ClientID:      uuid.New(),
		Name:          "Rapid Rehousing",
		VAWAProtected: vawa,
		CreatedBy:     "case-worker-1",
		Clock:         func() time.Time { return at },
	})
	require.NoError(t, err)
	if record != nil {
		record(l)
	}
	require.NoError(t, repo.Save(context.Background(), l))
	return l
}

func seedAlertScenario(t *testing.T, repo ledger.Repository) map[ledger.AlertType]uuid.UUID {
	t.Helper()
	old := serviceTestNow.AddDate(0, 0, -31)
	recent := serviceTestNow.AddDate(0, 0, -2)
	ids := make(map[ledger.AlertType]uuid.UUID)

	ids[ledger.AlertOverdueArrears] = seedLedger(t, repo, false, old, func(l *ledger.FinancialLedger) {
		_, err := l.RecordArrears(ledger.ArrearsCommand{
			ArrearsID: "ARR-1",
			Amount:    decimal.RequireFromString("400"),
			Type:      ledger.ArrearsTypeRent,
			Period:    ledger.NewPeriod(old.AddDate(0, -1, 0), old.AddDate(0, 0, -1)),
		})
		require.NoError(t, err)
	}).ID

	ids[ledger.AlertUnmatchedDeposits] = seedLedger(t, repo, false, old, func(l *ledger.FinancialLedger) {
		_, err := l.RecordDeposit(ledger.DepositCommand{
			DepositID:         "DEP-1",
			Amount:            decimal.RequireFromString("1000"),
			FundingSourceCode: "ESG",
			DepositSource:     "County CoC",
		})
		require.NoError(t, err)
	}).ID

	ids[ledger.AlertLargeDisbursement] = seedLedger(t, repo, false, recent, func(l *ledger.FinancialLedger) {
		_, err := l.RecordPayment(ledger.PaymentCommand{
			PaymentID: "PAY-1",
			Subtype:   ledger.PaymentSecurityDeposit,
			Amount:    decimal.RequireFromString("6000"),
			PayeeName: "Oak Street Apartments",
		})
		require.NoError(t, err)
	}).ID

	unbalanced := ledger.Restore(ledger.RestoreParams{
		ID:           uuid.New(),
		ClientID:     uuid.New(),
		Name:         "Drifted",
		Status:       ledger.LedgerStatusActive,
		TotalDebits:  decimal.RequireFromString("100"),
		TotalCredits: decimal.RequireFromString("80"),
		CreatedBy:    "migration",
		CreatedAt:    old,
	})
	require.NoError(t, repo.Save(context.Background(), unbalanced))
	ids[ledger.AlertLedgerImbalance] = unbalanced.ID

	leaky := ledger.Restore(ledger.RestoreParams{
		ID:             uuid.New(),
		ClientID:       uuid.New(),
		Name:           "Protected",
		Status:         ledger.LedgerStatusActive,
		VAWAProtected:  true,
		RedactionLevel: ledger.RedactionNone,
		TotalDebits:    decimal.Zero,
		TotalCredits:   decimal.Zero,
		CreatedBy:      "migration",
		CreatedAt:      old,
	})
	require.NoError(t, repo.Save(context.Background(), leaky))
	ids[ledger.AlertVAWACompliance] = leaky.ID

	return ids
}

func newTestAlertsService(repo ledger.Repository, notifier Notifier, recipients RecipientResolver, workers int) *AlertsService {
	cfg := DefaultAlertsConfig()
	cfg.Workers = workers
	cfg.PageSize = 2
	svc := NewAlertsService(repo, redaction.NewComplianceChecker(), notifier, recipients, cfg, zap.NewNop())
	svc.SetClock(func() time.Time { return serviceTestNow })
	return svc
}

func TestAlertsService_RunSweep(t *testing.T) {
	repo := persistence.NewMemoryLedgerRepository()
	ids := seedAlertScenario(t, repo)

	notifier := newRecordingNotifier("broken@example.org")
	recipients := StaticRecipients{
		BySeverity: map[ledger.AlertSeverity][]string{ledger.SeverityCritical: {"finance-lead@example.org"}},
		Default:    []string{"finance@example.org", "broken@example.org"},
	}

	for _, workers := range []int{1, 4} {
		t.Run("workers", func(t *testing.T) {
			svc := newTestAlertsService(repo, notifier, recipients, workers)

			result, err := svc.RunSweep(context.Background())
			require.NoError(t, err)
			require.Equal(t, 5, result.Total())

			for _, alertType := range ledger.SweepAlertTypes {
				assert.Equal(t, 1, result.Counts[alertType], alertType)
			}
			for _, alert := range result.Alerts {
				assert.Equal(t, ids[alert.Type], alert.LedgerID, alert.Type)
			}

			severities := make(map[ledger.AlertType]ledger.AlertSeverity)
			for _, alert := range result.Alerts {
				severities[alert.Type] = alert.Severity
			}
			assert.Equal(t, ledger.SeverityHigh, severities[ledger.AlertOverdueArrears])
			assert.Equal(t, ledger.SeverityMedium, severities[ledger.AlertUnmatchedDeposits])
			assert.Equal(t, ledger.SeverityCritical, severities[ledger.AlertLedgerImbalance])
			assert.Equal(t, ledger.SeverityMedium, severities[ledger.AlertLargeDisbursement])
			assert.Equal(t, ledger.SeverityHigh, severities[ledger.AlertVAWACompliance])

			// The CRITICAL alert goes to the lead only; the rest to both defaults
			assert.Equal(t, 4+1, result.Delivered)
			assert.Equal(t, 4, result.Failed)
		})
	}

	assert.Equal(t, 8, notifier.count("finance@example.org"))
	assert.Equal(t, 2, notifier.count("finance-lead@example.org"))
}

func TestAlertsService_RunSweep_Thresholds(t *testing.T) {
	tests := []struct {
		name    string
		ageDays int
		flagged bool
	}{
		{"overdue after 31 days", 31, true},
		{"not overdue after 29 days", 29, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := persistence.NewMemoryLedgerRepository()
			at := serviceTestNow.AddDate(0, 0, -tc.ageDays)
			seedLedger(t, repo, false, at, func(l *ledger.FinancialLedger) {
				_, err := l.RecordArrears(ledger.ArrearsCommand{
					ArrearsID: "ARR-1",
					Amount:    decimal.RequireFromString("250"),
					Type:      ledger.ArrearsTypeUtility,
					Period:    ledger.NewPeriod(at.AddDate(0, -1, 0), at),
				})
				require.NoError(t, err)
			})

			svc := newTestAlertsService(repo, nil, nil, 2)
			result, err := svc.RunSweep(context.Background())
			require.NoError(t, err)
			if tc.flagged {
				assert.Equal(t, 1, result.Counts[ledger.AlertOverdueArrears])
			} else {
				assert.Zero(t, result.Counts[ledger.AlertOverdueArrears])
			}
		})
	}
}

type overdueQueryFailsRepository struct {
	ledger.Repository
}

func (r overdueQueryFailsRepository) FindWithOverdueArrears(context.Context, time.Time) ([]*ledger.FinancialLedger, error) {
	return nil, errors.New("db timeout")
}

type flakyComplianceChecker struct {
	failFor uuid.UUID
	next    ledger.ComplianceChecker
}

func (c flakyComplianceChecker) Check(ctx context.Context, l *ledger.FinancialLedger) ([]ledger.ComplianceIssue, error) {
	if l.ID == c.failFor {
		return nil, errors.New("rule engine unavailable")
	}
	return c.next.Check(ctx, l)
}

func TestAlertsService_RunSweep_SweepsAreIndependent(t *testing.T) {
	repo := persistence.NewMemoryLedgerRepository()
	seedAlertScenario(t, repo)
	svc := newTestAlertsService(overdueQueryFailsRepository{Repository: repo}, nil, nil, 2)

	result, err := svc.RunSweep(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db timeout")
	assert.Contains(t, err.Error(), string(ledger.AlertOverdueArrears))

	assert.Zero(t, result.Counts[ledger.AlertOverdueArrears])
	assert.Equal(t, 1, result.Counts[ledger.AlertLedgerImbalance])
	assert.Equal(t, 1, result.Counts[ledger.AlertUnmatchedDeposits])
	assert.Equal(t, 1, result.Counts[ledger.AlertLargeDisbursement])
	assert.Equal(t, 1, result.Counts[ledger.AlertVAWACompliance])
}

func TestAlertsService_RunSweep_LedgerFailureIsIsolated(t *testing.T) {
	repo := persistence.NewMemoryLedgerRepository()
	ids := seedAlertScenario(t, repo)
	failing := ids[ledger.AlertVAWACompliance]
	second := ledger.Restore(ledger.RestoreParams{
		ID:             uuid.New(),
		ClientID:       uuid.New(),
		Name:           "Protected",
		Status:         ledger.LedgerStatusActive,
		VAWAProtected:  true,
		RedactionLevel: ledger.RedactionNone,
		TotalDebits:    decimal.Zero,
		TotalCredits:   decimal.Zero,
		CreatedBy:      "migration",
		CreatedAt:      serviceTestNow.AddDate(0, 0, -3),
	})
	require.NoError(t, repo.Save(context.Background(), second))

	cfg := DefaultAlertsConfig()
	cfg.Workers = 1
	checker := flakyComplianceChecker{failFor: failing, next: redaction.NewComplianceChecker()}
	svc := NewAlertsService(repo, checker, nil, nil, cfg, zap.NewNop())
	svc.SetClock(func() time.Time { return serviceTestNow })

	result, err := svc.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.AnalysisFailures)
	assert.Equal(t, 1, result.Counts[ledger.AlertVAWACompliance])
	assert.Equal(t, 1, result.Counts[ledger.AlertLedgerImbalance])
	for _, alert := range result.Alerts {
		if alert.Type == ledger.AlertVAWACompliance {
			assert.Equal(t, second.ID, alert.LedgerID)
		}
	}
}

func TestAlertsService_RunSweep_Cancelled(t *testing.T) {
	repo := persistence.NewMemoryLedgerRepository()
	seedAlertScenario(t, repo)
	svc := newTestAlertsService(repo, nil, nil, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := svc.RunSweep(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Zero(t, result.Total())
}

func TestAlertsService_GenerateCustomAlert(t *testing.T) {
	repo := persistence.NewMemoryLedgerRepository()
	l := seedLedger(t, repo, false, serviceTestNow, nil)
	notifier := newRecordingNotifier()
	svc := newTestAlertsService(repo, notifier, StaticRecipients{Default: []string{"finance@example.org"}}, 1)
	ctx := context.Background()

	alert, err := svc.GenerateCustomAlert(ctx, CustomAlertRequest{
		Type:     "fraud_detection",
		Severity: "high",
		LedgerID: &l.ID,
		Title:    "Duplicate invoice suspected",
		Amount:   decimal.RequireFromString("120"),
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.AlertFraudDetection, alert.Type)
	assert.Equal(t, l.ClientID, alert.ClientID)
	assert.Equal(t, 1, notifier.count("finance@example.org"))

	tests := []struct {
		name string
		req  CustomAlertRequest
	}{
		{"unknown type", CustomAlertRequest{Type: "weather", Severity: "LOW", Title: "x"}},
		{"unknown severity", CustomAlertRequest{Type: "BUDGET_EXCEEDED", Severity: "urgent", Title: "x"}},
		{"missing title", CustomAlertRequest{Type: "BUDGET_EXCEEDED", Severity: "LOW"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.GenerateCustomAlert(ctx, tc.req)
			assert.Error(t, err)
		})
	}

	t.Run("unknown ledger", func(t *testing.T) {
		missing := uuid.New()
		_, err := svc.GenerateCustomAlert(ctx, CustomAlertRequest{Type: "BUDGET_EXCEEDED", Severity: "LOW", Title: "x", LedgerID: &missing})
		assert.ErrorIs(t, err, ledger.ErrLedgerNotFound)
	})
}

func TestStaticRecipients_ResolveRecipients(t *testing.T) {
	recipients := StaticRecipients{
		ByType:     map[ledger.AlertType][]string{ledger.AlertVAWACompliance: {"privacy@example.org", " "}},
		BySeverity: map[ledger.AlertSeverity][]string{ledger.SeverityHigh: {"privacy@example.org", "supervisor@example.org"}},
		Default:    []string{"finance@example.org"},
	}

	tests := []struct {
		name     string
		alert    ledger.Alert
		expected []string
	}{
		{
			name:     "type and severity without duplicates",
			alert:    ledger.Alert{Type: ledger.AlertVAWACompliance, Severity: ledger.SeverityHigh},
			expected: []string{"privacy@example.org", "supervisor@example.org"},
		},
		{
			name:     "falls back to default",
			alert:    ledger.Alert{Type: ledger.AlertUnmatchedDeposits, Severity: ledger.SeverityMedium},
			expected: []string{"finance@example.org"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := recipients.ResolveRecipients(context.Background(), tc.alert)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}
