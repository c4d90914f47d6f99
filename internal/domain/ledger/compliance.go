package ledger

import (
	"context"

	"github.com/google/uuid"
)

// ComplianceIssue is a potential confidentiality violation found on a protected ledger
type ComplianceIssue struct {
	Rule        string     `json:"rule"`
	Description string     `json:"description"`
	RecordType  string     `json:"record_type"`
	RecordID    *uuid.UUID `json:"record_id,omitempty"`
}

// ComplianceChecker inspects a protected ledger snapshot against the redaction policy
type ComplianceChecker interface {
	Check(ctx context.Context, snapshot *FinancialLedger) ([]ComplianceIssue, error)
}
