package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RedactionLevel controls how much of a protected ledger a third party may see
type RedactionLevel string

const (
	RedactionNone     RedactionLevel = "NONE"
	RedactionPartial  RedactionLevel = "PARTIAL"
	RedactionFull     RedactionLevel = "FULL"
	RedactionComplete RedactionLevel = "COMPLETE"
)

// IsValid checks if the redaction level is known
func (r RedactionLevel) IsValid() bool {
	switch r {
	case RedactionNone, RedactionPartial, RedactionFull, RedactionComplete:
		return true
	}
	return false
}

// String returns the string representation of RedactionLevel
func (r RedactionLevel) String() string {
	return string(r)
}

// HidesAmounts reports whether amounts and balances are withheld at this level
func (r RedactionLevel) HidesAmounts() bool {
	return r == RedactionFull || r == RedactionComplete
}

// DefaultRedactionLevel returns FULL for protected ledgers and NONE otherwise
func DefaultRedactionLevel(vawaProtected bool) RedactionLevel {
	if vawaProtected {
		return RedactionFull
	}
	return RedactionNone
}

// LandlordView is the projection of a ledger shown to a landlord or other
// third party. ClientID is nil when the client identity is withheld.
type LandlordView struct {
	LedgerID       uuid.UUID       `json:"ledger_id"`
	ClientID       *uuid.UUID      `json:"client_id,omitempty"`
	ClientName     string          `json:"client_name"`
	LandlordID     string          `json:"landlord_id"`
	RedactionLevel RedactionLevel  `json:"redaction_level"`
	VAWAProtected  bool            `json:"vawa_protected"`
	VisibleEntries []LedgerEntry   `json:"visible_entries"`
	VisibleBalance decimal.Decimal `json:"visible_balance"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

// VisibleTransactionCount returns the number of visible entries
func (v LandlordView) VisibleTransactionCount() int {
	return len(v.VisibleEntries)
}

// VisiblePaymentTotal sums the visible CREDIT entries
func (v LandlordView) VisiblePaymentTotal() decimal.Decimal {
	total := decimal.Zero
	for _, e := range v.VisibleEntries {
		if e.IsCredit() {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// ViewProjector produces the redacted view of a ledger for a viewer.
// Implementations receive a snapshot and must not retain it.
type ViewProjector interface {
	Project(ctx context.Context, snapshot *FinancialLedger, viewerID string) (LandlordView, error)
}
