package redaction

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/haven/ledger/internal/domain/ledger"
)

// Compliance rule identifiers
const (
	RuleRedactionLevel          = "REDACTION_LEVEL"
	RuleCommunicationSanitized  = "COMMUNICATION_SANITIZED"
	RuleDocumentContentRetained = "DOCUMENT_CONTENT_RETAINED"
)

// Record types referenced by compliance issues
const (
	RecordTypeLedger        = "LEDGER"
	RecordTypeCommunication = "COMMUNICATION"
	RecordTypeDocument      = "DOCUMENT"
)

// ComplianceChecker is the default ledger.ComplianceChecker for protected ledgers.
type ComplianceChecker struct{}

// NewComplianceChecker creates a ComplianceChecker
func NewComplianceChecker() *ComplianceChecker {
	return &ComplianceChecker{}
}

// Check inspects a protected ledger snapshot. Unprotected ledgers never produce issues.
func (c *ComplianceChecker) Check(ctx context.Context, snapshot *ledger.FinancialLedger) ([]ledger.ComplianceIssue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !snapshot.IsVAWAProtected() {
		return nil, nil
	}

	var issues []ledger.ComplianceIssue

	if level := snapshot.RedactionLevel; level == ledger.RedactionNone || !level.IsValid() {
		issues = append(issues, ledger.ComplianceIssue{
			Rule:        RuleRedactionLevel,
			Description: fmt.Sprintf("Protected ledger uses redaction level %s", snapshot.RedactionLevel),
			RecordType:  RecordTypeLedger,
			RecordID:    idRef(snapshot.ID),
		})
	}

	for _, comm := range snapshot.Communications() {
		if comm.Redacted && comm.Content == ledger.RedactedCommunicationContent {
			continue
		}
		issues = append(issues, ledger.ComplianceIssue{
			Rule:        RuleCommunicationSanitized,
			Description: fmt.Sprintf("Communication with landlord %s is not sanitized", comm.LandlordID),
			RecordType:  RecordTypeCommunication,
			RecordID:    idRef(comm.ID),
		})
	}

	for _, doc := range snapshot.Documents() {
		if !doc.ContentRetained() {
			continue
		}
		issues = append(issues, ledger.ComplianceIssue{
			Rule:        RuleDocumentContentRetained,
			Description: fmt.Sprintf("Document %q content is retained", doc.Name),
			RecordType:  RecordTypeDocument,
			RecordID:    idRef(doc.ID),
		})
	}

	return issues, nil
}

func idRef(id uuid.UUID) *uuid.UUID {
	return &id
}
