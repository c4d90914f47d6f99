package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/haven/ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AggregateTypeFinancialLedger is the aggregate type carried on ledger events
const AggregateTypeFinancialLedger = "FinancialLedger"

// Event type names
const (
	EventTypeLedgerCreated         = "FinancialLedgerCreated"
	EventTypeTransactionRecorded   = "LedgerTransactionRecorded"
	EventTypeCommunicationRecorded = "LandlordCommunicationRecorded"
	EventTypeDocumentAttached      = "LedgerDocumentAttached"
	EventTypeLedgerStatusChanged   = "LedgerStatusChanged"
	EventTypeLedgerClosed          = "FinancialLedgerClosed"
)

// LedgerCreatedEvent is raised when a ledger is opened for a client
type LedgerCreatedEvent struct {
	shared.EventHeader
	LedgerID      uuid.UUID `json:"ledger_id"`
	ClientID      uuid.UUID `json:"client_id"`
	EnrollmentID  uuid.UUID `json:"enrollment_id"`
	HouseholdID   uuid.UUID `json:"household_id"`
	Name          string    `json:"name"`
	VAWAProtected bool      `json:"vawa_protected"`
	CreatedBy     string    `json:"created_by"`
}

// NewLedgerCreatedEvent creates a LedgerCreatedEvent
func NewLedgerCreatedEvent(l *FinancialLedger) *LedgerCreatedEvent {
	return &LedgerCreatedEvent{
		EventHeader: shared.NewEventHeaderAt(EventTypeLedgerCreated, AggregateTypeFinancialLedger, l.ID, l.CreatedAt),
		LedgerID:        l.ID,
		ClientID:        l.ClientID,
		EnrollmentID:    l.EnrollmentID,
		HouseholdID:     l.HouseholdID,
		Name:            l.Name,
		VAWAProtected:   l.IsVAWAProtected(),
		CreatedBy:       l.CreatedBy,
	}
}

// TransactionRecordedEvent is raised when a debit/credit pair is appended
type TransactionRecordedEvent struct {
	shared.EventHeader
	LedgerID          uuid.UUID             `json:"ledger_id"`
	ClientID          uuid.UUID             `json:"client_id"`
	TransactionID     string                `json:"transaction_id"`
	Kind              TransactionKind       `json:"kind"`
	Amount            decimal.Decimal       `json:"amount"`
	DebitEntryID      uuid.UUID             `json:"debit_entry_id"`
	DebitAccount      AccountClassification `json:"debit_account"`
	CreditEntryID     uuid.UUID             `json:"credit_entry_id"`
	CreditAccount     AccountClassification `json:"credit_account"`
	FundingSourceCode string                `json:"funding_source_code,omitempty"`
	HUDCategoryCode   string                `json:"hud_category_code,omitempty"`
	PayeeID           string                `json:"payee_id,omitempty"`
	PayeeName         string                `json:"payee_name,omitempty"`
	VAWAProtected     bool                  `json:"vawa_protected"`
	RecordedBy        string                `json:"recorded_by"`
}

// NewTransactionRecordedEvent creates a TransactionRecordedEvent from the appended pair
func NewTransactionRecordedEvent(l *FinancialLedger, debit, credit LedgerEntry) *TransactionRecordedEvent {
	return &TransactionRecordedEvent{
		EventHeader:   shared.NewEventHeaderAt(EventTypeTransactionRecorded, AggregateTypeFinancialLedger, l.ID, debit.RecordedAt),
		LedgerID:          l.ID,
		ClientID:          l.ClientID,
		TransactionID:     debit.TransactionID,
		Kind:              debit.Kind,
		Amount:            debit.Amount,
		DebitEntryID:      debit.ID,
		DebitAccount:      debit.Account,
		CreditEntryID:     credit.ID,
		CreditAccount:     credit.Account,
		FundingSourceCode: debit.FundingSourceCode,
		HUDCategoryCode:   debit.HUDCategoryCode,
		PayeeID:           debit.PayeeID,
		PayeeName:         debit.PayeeName,
		VAWAProtected:     l.IsVAWAProtected(),
		RecordedBy:        debit.RecordedBy,
	}
}

// ForExport returns the event as it may leave the service. Payee names of
// protected ledgers are dropped; the payee id is kept for reconciliation.
func (e *TransactionRecordedEvent) ForExport() shared.DomainEvent {
	if !e.VAWAProtected || e.PayeeName == "" {
		return e
	}
	cp := *e
	cp.PayeeName = ""
	return &cp
}

// CommunicationRecordedEvent is raised when a landlord communication is logged.
// Content is never carried on the event.
type CommunicationRecordedEvent struct {
	shared.EventHeader
	LedgerID        uuid.UUID         `json:"ledger_id"`
	CommunicationID uuid.UUID         `json:"communication_id"`
	LandlordID      string            `json:"landlord_id"`
	Channel         CommunicationType `json:"communication_type"`
	Redacted        bool              `json:"redacted"`
	RecordedBy      string            `json:"recorded_by"`
}

// NewCommunicationRecordedEvent creates a CommunicationRecordedEvent
func NewCommunicationRecordedEvent(l *FinancialLedger, c LandlordCommunication) *CommunicationRecordedEvent {
	return &CommunicationRecordedEvent{
		EventHeader: shared.NewEventHeaderAt(EventTypeCommunicationRecorded, AggregateTypeFinancialLedger, l.ID, c.RecordedAt),
		LedgerID:        l.ID,
		CommunicationID: c.ID,
		LandlordID:      c.LandlordID,
		Channel:         c.Type,
		Redacted:        c.Redacted,
		RecordedBy:      c.RecordedBy,
	}
}

// DocumentAttachedEvent is raised when a document is attached to a ledger
type DocumentAttachedEvent struct {
	shared.EventHeader
	LedgerID     uuid.UUID `json:"ledger_id"`
	DocumentID   uuid.UUID `json:"document_id"`
	Name         string    `json:"name"`
	DocumentType string    `json:"document_type"`
	Redacted     bool      `json:"redacted"`
	UploadedBy   string    `json:"uploaded_by"`
}

// NewDocumentAttachedEvent creates a DocumentAttachedEvent
func NewDocumentAttachedEvent(l *FinancialLedger, d DocumentAttachment) *DocumentAttachedEvent {
	return &DocumentAttachedEvent{
		EventHeader: shared.NewEventHeaderAt(EventTypeDocumentAttached, AggregateTypeFinancialLedger, l.ID, d.UploadedAt),
		LedgerID:        l.ID,
		DocumentID:      d.ID,
		Name:            d.Name,
		DocumentType:    d.DocumentType,
		Redacted:        d.Redacted,
		UploadedBy:      d.UploadedBy,
	}
}

// LedgerStatusChangedEvent is raised on suspend, review and reactivate transitions
type LedgerStatusChangedEvent struct {
	shared.EventHeader
	LedgerID  uuid.UUID    `json:"ledger_id"`
	From      LedgerStatus `json:"from"`
	To        LedgerStatus `json:"to"`
	Reason    string       `json:"reason,omitempty"`
	ChangedBy string       `json:"changed_by"`
}

// NewLedgerStatusChangedEvent creates a LedgerStatusChangedEvent
func NewLedgerStatusChangedEvent(l *FinancialLedger, from LedgerStatus, reason, actor string, at time.Time) *LedgerStatusChangedEvent {
	return &LedgerStatusChangedEvent{
		EventHeader: shared.NewEventHeaderAt(EventTypeLedgerStatusChanged, AggregateTypeFinancialLedger, l.ID, at),
		LedgerID:        l.ID,
		From:            from,
		To:              l.Status,
		Reason:          reason,
		ChangedBy:       actor,
	}
}

// LedgerClosedEvent is raised when a ledger is closed
type LedgerClosedEvent struct {
	shared.EventHeader
	LedgerID     uuid.UUID       `json:"ledger_id"`
	Reason       string          `json:"reason"`
	TotalDebits  decimal.Decimal `json:"total_debits"`
	TotalCredits decimal.Decimal `json:"total_credits"`
	ClosedBy     string          `json:"closed_by"`
}

// NewLedgerClosedEvent creates a LedgerClosedEvent
func NewLedgerClosedEvent(l *FinancialLedger, at time.Time) *LedgerClosedEvent {
	return &LedgerClosedEvent{
		EventHeader: shared.NewEventHeaderAt(EventTypeLedgerClosed, AggregateTypeFinancialLedger, l.ID, at),
		LedgerID:        l.ID,
		Reason:          l.CloseReason,
		TotalDebits:     l.TotalDebits(),
		TotalCredits:    l.TotalCredits(),
		ClosedBy:        l.ClosedBy,
	}
}
