package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AlertType identifies the condition an alert reports
type AlertType string

const (
	AlertOverdueArrears    AlertType = "OVERDUE_ARREARS"
	AlertUnmatchedDeposits AlertType = "UNMATCHED_DEPOSITS"
	AlertLedgerImbalance   AlertType = "LEDGER_IMBALANCE"
	AlertLargeDisbursement AlertType = "LARGE_DISBURSEMENT"
	AlertVAWACompliance    AlertType = "VAWA_COMPLIANCE"
	AlertFraudDetection    AlertType = "FRAUD_DETECTION"
	AlertBudgetExceeded    AlertType = "BUDGET_EXCEEDED"
)

// IsValid checks if the alert type is known
func (t AlertType) IsValid() bool {
	switch t {
	case AlertOverdueArrears, AlertUnmatchedDeposits, AlertLedgerImbalance, AlertLargeDisbursement,
		AlertVAWACompliance, AlertFraudDetection, AlertBudgetExceeded:
		return true
	}
	return false
}

// String returns the string representation of AlertType
func (t AlertType) String() string {
	return string(t)
}

// SweepAlertTypes are the alert types produced by the scheduled sweep, in sweep order
var SweepAlertTypes = []AlertType{
	AlertOverdueArrears,
	AlertUnmatchedDeposits,
	AlertLedgerImbalance,
	AlertLargeDisbursement,
	AlertVAWACompliance,
}

// AlertSeverity ranks alerts for routing
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "LOW"
	SeverityMedium   AlertSeverity = "MEDIUM"
	SeverityHigh     AlertSeverity = "HIGH"
	SeverityCritical AlertSeverity = "CRITICAL"
)

// IsValid checks if the severity is known
func (s AlertSeverity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// String returns the string representation of AlertSeverity
func (s AlertSeverity) String() string {
	return string(s)
}

// Alert is a financial alert raised for one ledger
type Alert struct {
	ID        uuid.UUID       `json:"id"`
	Type      AlertType       `json:"type"`
	Severity  AlertSeverity   `json:"severity"`
	ClientID  uuid.UUID       `json:"client_id"`
	LedgerID  uuid.UUID       `json:"ledger_id"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Amount    decimal.Decimal `json:"amount"`
	AlertDate time.Time       `json:"alert_date"`
	Details   any             `json:"details,omitempty"`
}

// NewAlert creates an alert stamped with the given time
func NewAlert(t AlertType, severity AlertSeverity, clientID, ledgerID uuid.UUID, title, message string, amount decimal.Decimal, at time.Time) Alert {
	return Alert{
		ID:        uuid.New(),
		Type:      t,
		Severity:  severity,
		ClientID:  clientID,
		LedgerID:  ledgerID,
		Title:     title,
		Message:   message,
		Amount:    amount,
		AlertDate: at,
	}
}

// OverdueArrearsDetail describes one arrears entry past the overdue window
type OverdueArrearsDetail struct {
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	PayeeName     string          `json:"payee_name"`
	RecordedOn    time.Time       `json:"recorded_on"`
	DaysOverdue   int             `json:"days_overdue"`
	ArrearsType   ArrearsType     `json:"arrears_type"`
}

// UnmatchedDepositDetail describes one deposit whose funds are still unspent
type UnmatchedDepositDetail struct {
	TransactionID     string          `json:"transaction_id"`
	Amount            decimal.Decimal `json:"amount"`
	DepositAmount     decimal.Decimal `json:"deposit_amount"`
	FundingSourceCode string          `json:"funding_source_code"`
	RecordedOn        time.Time       `json:"recorded_on"`
	DaysUnmatched     int             `json:"days_unmatched"`
}

// LedgerImbalanceDetail captures the totals of an unbalanced ledger
type LedgerImbalanceDetail struct {
	TotalDebits  decimal.Decimal `json:"total_debits"`
	TotalCredits decimal.Decimal `json:"total_credits"`
	Imbalance    decimal.Decimal `json:"imbalance"`
	LastModified time.Time       `json:"last_modified"`
}

// LargeDisbursementDetail describes one debit above the configured threshold
type LargeDisbursementDetail struct {
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	PayeeName     string          `json:"payee_name"`
	RecordedBy    string          `json:"recorded_by"`
	RecordedOn    time.Time       `json:"recorded_on"`
}
