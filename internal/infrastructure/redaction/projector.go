// Package redaction provides the default confidentiality policy applied to
// ledgers shown to landlords and other third parties.
package redaction

import (
	"context"
	"regexp"
	"time"

	"github.com/haven/ledger/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

const (
	// ConfidentialClientName replaces the client name on protected views
	ConfidentialClientName = "[CONFIDENTIAL CLIENT]"
	// RedactedMarker replaces identifying strings on redacted entries
	RedactedMarker = "[REDACTED]"
	// ProtectedDescription replaces entry descriptions at FULL redaction
	ProtectedDescription = "[VAWA PROTECTED - DETAILS REDACTED]"
	// SystemActor replaces the recording user on redacted entries
	SystemActor = "[SYSTEM]"
)

var (
	amountPattern  = regexp.MustCompile(`\$[0-9,.]+`)
	datePattern    = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	grantPattern   = regexp.MustCompile(`Grant\s+\w+`)
	fundingPattern = regexp.MustCompile(`Fund\s+\w+`)
)

// Projector is the default ledger.ViewProjector. Unprotected ledgers show the
// landlord's own entries unchanged; protected ledgers are filtered and masked
// according to their redaction level.
type Projector struct {
	clock func() time.Time
}

// NewProjector creates a Projector
func NewProjector() *Projector {
	return &Projector{clock: time.Now}
}

// SetClock overrides the time source used for GeneratedAt
func (p *Projector) SetClock(clock func() time.Time) {
	p.clock = clock
}

// Project builds the landlord view of a ledger snapshot
func (p *Projector) Project(ctx context.Context, snapshot *ledger.FinancialLedger, viewerID string) (ledger.LandlordView, error) {
	if err := ctx.Err(); err != nil {
		return ledger.LandlordView{}, err
	}

	payeeEntries := snapshot.EntriesForPayee(viewerID)
	view := ledger.LandlordView{
		LedgerID:       snapshot.ID,
		LandlordID:     viewerID,
		VAWAProtected:  snapshot.IsVAWAProtected(),
		RedactionLevel: ledger.RedactionNone,
		GeneratedAt:    p.clock().UTC(),
	}

	if !snapshot.IsVAWAProtected() {
		clientID := snapshot.ClientID
		view.ClientID = &clientID
		view.ClientName = snapshot.Name
		view.VisibleEntries = payeeEntries
		view.VisibleBalance = balanceOf(payeeEntries)
		return view, nil
	}

	level := snapshot.RedactionLevel
	if !level.IsValid() || level == ledger.RedactionNone {
		level = ledger.DefaultRedactionLevel(true)
	}
	view.RedactionLevel = level
	view.ClientName = ConfidentialClientName
	view.VisibleEntries = RedactEntries(payeeEntries, level)
	if level.HidesAmounts() {
		view.VisibleBalance = decimal.Zero
	} else {
		view.VisibleBalance = balanceOf(view.VisibleEntries)
	}
	return view, nil
}

// RedactEntries filters and masks entries for the given level
func RedactEntries(entries []ledger.LedgerEntry, level ledger.RedactionLevel) []ledger.LedgerEntry {
	visible := make([]ledger.LedgerEntry, 0, len(entries))
	for _, e := range entries {
		if !visibleAt(e, level) {
			continue
		}
		visible = append(visible, redactEntry(e, level))
	}
	return visible
}

func visibleAt(e ledger.LedgerEntry, level ledger.RedactionLevel) bool {
	switch level {
	case ledger.RedactionNone:
		return true
	case ledger.RedactionPartial, ledger.RedactionFull:
		return e.PayeeID != ""
	default:
		return false
	}
}

func redactEntry(e ledger.LedgerEntry, level ledger.RedactionLevel) ledger.LedgerEntry {
	switch level {
	case ledger.RedactionPartial:
		e.TransactionID = RedactedMarker
		e.Description = RedactDescription(e.Description)
		e.FundingSourceCode = ""
		e.RecordedBy = SystemActor
	case ledger.RedactionFull:
		e.TransactionID = RedactedMarker
		e.Account = ledger.AccountOtherExpense
		e.Amount = decimal.Zero
		e.Description = ProtectedDescription
		e.FundingSourceCode = ""
		e.HUDCategoryCode = ""
		e.Period = ledger.Period{}
		e.RecordedBy = SystemActor
	}
	return e
}

// RedactDescription masks amounts, dates and funding references in free text
func RedactDescription(description string) string {
	if description == "" {
		return ""
	}
	out := amountPattern.ReplaceAllString(description, "$$[AMOUNT]")
	out = datePattern.ReplaceAllString(out, "[DATE]")
	out = grantPattern.ReplaceAllString(out, "Grant "+RedactedMarker)
	return fundingPattern.ReplaceAllString(out, "Fund "+RedactedMarker)
}

// balanceOf returns credits minus debits of the given entries
func balanceOf(entries []ledger.LedgerEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		if e.IsCredit() {
			total = total.Add(e.Amount)
		} else {
			total = total.Sub(e.Amount)
		}
	}
	return total
}
