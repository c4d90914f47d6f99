package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerEntry is one side of a double-entry transaction. Entries are values:
// once appended to a ledger they are never changed.
type LedgerEntry struct {
	ID                uuid.UUID             `json:"id"`
	TransactionID     string                `json:"transaction_id"`
	Type              EntryType             `json:"entry_type"`
	Account           AccountClassification `json:"account"`
	Kind              TransactionKind       `json:"kind"`
	Amount            decimal.Decimal       `json:"amount"`
	Description       string                `json:"description"`
	FundingSourceCode string                `json:"funding_source_code,omitempty"`
	HUDCategoryCode   string                `json:"hud_category_code,omitempty"`
	PayeeID           string                `json:"payee_id,omitempty"`
	PayeeName         string                `json:"payee_name,omitempty"`
	Period            Period                `json:"period"`
	RecordedBy        string                `json:"recorded_by"`
	RecordedAt        time.Time             `json:"recorded_at"`
	Sequence          int64                 `json:"sequence"`
}

// Validate checks the entry invariants against the given calendar day
func (e LedgerEntry) Validate(today time.Time) error {
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !e.Type.IsValid() || !e.Account.IsValid() || e.TransactionID == "" {
		return ErrInvalidEntry
	}
	return e.Period.Validate(e.IsArrears(), today)
}

// IsDebit reports whether the entry is a DEBIT posting
func (e LedgerEntry) IsDebit() bool {
	return e.Type == EntryTypeDebit
}

// IsCredit reports whether the entry is a CREDIT posting
func (e LedgerEntry) IsCredit() bool {
	return e.Type == EntryTypeCredit
}

// IsArrears reports whether the entry pays a past-due obligation
func (e LedgerEntry) IsArrears() bool {
	return e.Kind.IsArrears()
}

// IsFundingDeposit reports whether the entry is the liability side of funds received
func (e LedgerEntry) IsFundingDeposit() bool {
	return e.IsCredit() && e.Account == AccountFundingLiability
}

// IsDisbursement reports whether the entry is the expense side of money paid out
func (e LedgerEntry) IsDisbursement() bool {
	return e.IsDebit() && !e.Kind.IsDeposit()
}

// SignedAmount returns the amount signed by the normal side of its account
func (e LedgerEntry) SignedAmount() decimal.Decimal {
	if e.Account.IncreasesOn(e.Type) {
		return e.Amount
	}
	return e.Amount.Neg()
}

// RecordedBefore reports whether the entry was recorded strictly before t
func (e LedgerEntry) RecordedBefore(t time.Time) bool {
	return e.RecordedAt.Before(t)
}
