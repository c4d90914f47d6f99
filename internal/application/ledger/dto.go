package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/haven/ledger/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// ===================== Requests =====================

// CreateLedgerRequest opens a ledger for a client
type CreateLedgerRequest struct {
	ClientID      uuid.UUID `json:"client_id" binding:"required"`
	EnrollmentID  uuid.UUID `json:"enrollment_id"`
	HouseholdID   uuid.UUID `json:"household_id"`
	Name          string    `json:"name" binding:"max=200"`
	VAWAProtected bool      `json:"vawa_protected"`
	CreatedBy     string    `json:"-"` // Set from JWT context, not from request body
}

// RecordPaymentRequest records an assistance payment
type RecordPaymentRequest struct {
	PaymentID         string          `json:"payment_id"`
	Subtype           string          `json:"subtype" binding:"required"`
	Amount            decimal.Decimal `json:"amount" binding:"required,decimal_gt0"`
	FundingSourceCode string          `json:"funding_source_code"`
	HUDCategoryCode   string          `json:"hud_category_code"`
	PayeeID           string          `json:"payee_id"`
	PayeeName         string          `json:"payee_name"`
	PaymentDate       *time.Time      `json:"payment_date"`
	PeriodStart       *time.Time      `json:"period_start"`
	PeriodEnd         *time.Time      `json:"period_end"`
	RecordedBy        string          `json:"-"`
}

// RecordDepositRequest records incoming program funds
type RecordDepositRequest struct {
	DepositID         string          `json:"deposit_id"`
	Amount            decimal.Decimal `json:"amount" binding:"required,decimal_gt0"`
	FundingSourceCode string          `json:"funding_source_code" binding:"required"`
	DepositSource     string          `json:"deposit_source"`
	DepositDate       *time.Time      `json:"deposit_date"`
	RecordedBy        string          `json:"-"`
}

// RecordArrearsRequest records an arrears obligation
type RecordArrearsRequest struct {
	ArrearsID         string          `json:"arrears_id"`
	Amount            decimal.Decimal `json:"amount" binding:"required,decimal_gt0"`
	ArrearsType       string          `json:"arrears_type" binding:"required"`
	FundingSourceCode string          `json:"funding_source_code"`
	PayeeID           string          `json:"payee_id"`
	PayeeName         string          `json:"payee_name"`
	PeriodStart       *time.Time      `json:"period_start"`
	PeriodEnd         *time.Time      `json:"period_end"`
	RecordedBy        string          `json:"-"`
}

// RecordCommunicationRequest records contact with a landlord
type RecordCommunicationRequest struct {
	CommunicationID string     `json:"communication_id"`
	LandlordID      string     `json:"landlord_id" binding:"required"`
	LandlordName    string     `json:"landlord_name"`
	Type            string     `json:"type" binding:"required"`
	Subject         string     `json:"subject"`
	Content         string     `json:"content"`
	OccurredOn      *time.Time `json:"occurred_on"`
	RecordedBy      string     `json:"-"`
}

// AttachDocumentRequest attaches a supporting document. Content is optional
// and base64 encoded in JSON.
type AttachDocumentRequest struct {
	DocumentID   string `json:"document_id"`
	Name         string `json:"name" binding:"required"`
	DocumentType string `json:"document_type"`
	ContentType  string `json:"content_type"`
	Content      []byte `json:"content"`
	UploadedBy   string `json:"-"`
}

// StatusChangeRequest carries the reason for a lifecycle change
type StatusChangeRequest struct {
	Reason string `json:"reason"`
	Actor  string `json:"-"`
}

// LedgerListFilter defines filtering options for ledger list queries
type LedgerListFilter struct {
	ClientID      *uuid.UUID `form:"-"`
	HouseholdID   *uuid.UUID `form:"-"`
	EnrollmentID  *uuid.UUID `form:"-"`
	FundingSource string     `form:"funding_source"`
	Status        string     `form:"status"`
	Page          int        `form:"page"`
	PageSize      int        `form:"page_size"`
}

// EntryListFilter defines filtering options for entry list queries
type EntryListFilter struct {
	Type              string     `form:"type"`
	Account           string     `form:"account"`
	Kind              string     `form:"kind"`
	FundingSourceCode string     `form:"funding_source"`
	PayeeID           string     `form:"payee_id"`
	TransactionID     string     `form:"transaction_id"`
	FromDate          *time.Time `form:"from_date"`
	ToDate            *time.Time `form:"to_date"`
	Page              int        `form:"page"`
	PageSize          int        `form:"page_size"`
}

// ===================== Responses =====================

// LedgerResponse represents a ledger in API responses
type LedgerResponse struct {
	ID                 uuid.UUID       `json:"id"`
	ClientID           uuid.UUID       `json:"client_id"`
	EnrollmentID       *uuid.UUID      `json:"enrollment_id,omitempty"`
	HouseholdID        *uuid.UUID      `json:"household_id,omitempty"`
	Name               string          `json:"name"`
	Status             string          `json:"status"`
	StatusReason       string          `json:"status_reason,omitempty"`
	VAWAProtected      bool            `json:"vawa_protected"`
	RedactionLevel     string          `json:"redaction_level"`
	TotalDebits        decimal.Decimal `json:"total_debits"`
	TotalCredits       decimal.Decimal `json:"total_credits"`
	Balance            decimal.Decimal `json:"balance"`
	IsBalanced         bool            `json:"is_balanced"`
	EntryCount         int             `json:"entry_count"`
	CommunicationCount int             `json:"communication_count"`
	DocumentCount      int             `json:"document_count"`
	CreatedBy          string          `json:"created_by"`
	LastModified       time.Time       `json:"last_modified"`
	CloseReason        string          `json:"close_reason,omitempty"`
	ClosedBy           string          `json:"closed_by,omitempty"`
	ClosedAt           *time.Time      `json:"closed_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	Version            int             `json:"version"`
}

// EntryResponse represents a ledger entry in API responses
type EntryResponse struct {
	ID                uuid.UUID       `json:"id"`
	TransactionID     string          `json:"transaction_id"`
	Type              string          `json:"type"`
	Account           string          `json:"account"`
	AccountCode       string          `json:"account_code"`
	AccountName       string          `json:"account_name"`
	Kind              string          `json:"kind"`
	Amount            decimal.Decimal `json:"amount"`
	Description       string          `json:"description"`
	FundingSourceCode string          `json:"funding_source_code,omitempty"`
	HUDCategoryCode   string          `json:"hud_category_code,omitempty"`
	PayeeID           string          `json:"payee_id,omitempty"`
	PayeeName         string          `json:"payee_name,omitempty"`
	PeriodStart       *time.Time      `json:"period_start,omitempty"`
	PeriodEnd         *time.Time      `json:"period_end,omitempty"`
	RecordedBy        string          `json:"recorded_by"`
	RecordedAt        time.Time       `json:"recorded_at"`
	Sequence          int64           `json:"sequence"`
}

// TransactionResponse is returned after recording a transaction
type TransactionResponse struct {
	LedgerID      uuid.UUID       `json:"ledger_id"`
	TransactionID string          `json:"transaction_id"`
	Entries       []EntryResponse `json:"entries"`
	TotalDebits   decimal.Decimal `json:"total_debits"`
	TotalCredits  decimal.Decimal `json:"total_credits"`
	Version       int             `json:"version"`
}

// CommunicationResponse represents a landlord communication
type CommunicationResponse struct {
	ID           uuid.UUID `json:"id"`
	LedgerID     uuid.UUID `json:"ledger_id"`
	ExternalID   string    `json:"external_id,omitempty"`
	LandlordID   string    `json:"landlord_id"`
	LandlordName string    `json:"landlord_name,omitempty"`
	Type         string    `json:"type"`
	Subject      string    `json:"subject,omitempty"`
	Content      string    `json:"content"`
	Redacted     bool      `json:"redacted"`
	OccurredOn   time.Time `json:"occurred_on"`
	RecordedBy   string    `json:"recorded_by"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// DocumentResponse represents a document attachment
type DocumentResponse struct {
	ID            uuid.UUID `json:"id"`
	LedgerID      uuid.UUID `json:"ledger_id"`
	ExternalID    string    `json:"external_id,omitempty"`
	Name          string    `json:"name"`
	DocumentType  string    `json:"document_type,omitempty"`
	ContentType   string    `json:"content_type,omitempty"`
	SizeBytes     int64     `json:"size_bytes"`
	StorageKey    string    `json:"storage_key,omitempty"`
	ContentStored bool      `json:"content_stored"`
	Redacted      bool      `json:"redacted"`
	UploadedBy    string    `json:"uploaded_by"`
	UploadedAt    time.Time `json:"uploaded_at"`
}

// LandlordViewResponse is the redacted projection shown to a landlord
type LandlordViewResponse struct {
	LedgerID         uuid.UUID       `json:"ledger_id"`
	ClientID         *uuid.UUID      `json:"client_id,omitempty"`
	ClientName       string          `json:"client_name,omitempty"`
	LandlordID       string          `json:"landlord_id"`
	RedactionLevel   string          `json:"redaction_level"`
	VAWAProtected    bool            `json:"vawa_protected"`
	Entries          []EntryResponse `json:"entries"`
	VisibleBalance   decimal.Decimal `json:"visible_balance"`
	TransactionCount int             `json:"transaction_count"`
	PaymentTotal     decimal.Decimal `json:"payment_total"`
	GeneratedAt      time.Time       `json:"generated_at"`
}

// ===================== Mappers =====================

func toLedgerResponse(l *ledger.FinancialLedger) LedgerResponse {
	resp := LedgerResponse{
		ID:                 l.ID,
		ClientID:           l.ClientID,
		Name:               l.Name,
		Status:             string(l.Status),
		StatusReason:       l.StatusReason,
		VAWAProtected:      l.IsVAWAProtected(),
		RedactionLevel:     string(l.RedactionLevel),
		TotalDebits:        l.TotalDebits(),
		TotalCredits:       l.TotalCredits(),
		Balance:            l.Balance(),
		IsBalanced:         l.IsBalanced(),
		EntryCount:         l.EntryCount(),
		CommunicationCount: len(l.Communications()),
		DocumentCount:      len(l.Documents()),
		CreatedBy:          l.CreatedBy,
		LastModified:       l.LastModified,
		CloseReason:        l.CloseReason,
		ClosedBy:           l.ClosedBy,
		ClosedAt:           l.ClosedAt,
		CreatedAt:          l.CreatedAt,
		UpdatedAt:          l.UpdatedAt,
		Version:            l.Version,
	}
	if l.EnrollmentID != uuid.Nil {
		id := l.EnrollmentID
		resp.EnrollmentID = &id
	}
	if l.HouseholdID != uuid.Nil {
		id := l.HouseholdID
		resp.HouseholdID = &id
	}
	return resp
}

func toLedgerResponses(ledgers []*ledger.FinancialLedger) []LedgerResponse {
	responses := make([]LedgerResponse, len(ledgers))
	for i, l := range ledgers {
		responses[i] = toLedgerResponse(l)
	}
	return responses
}

func toEntryResponse(e ledger.LedgerEntry) EntryResponse {
	resp := EntryResponse{
		ID:                e.ID,
		TransactionID:     e.TransactionID,
		Type:              string(e.Type),
		Account:           string(e.Account),
		AccountCode:       e.Account.Code(),
		AccountName:       e.Account.DisplayName(),
		Kind:              string(e.Kind),
		Amount:            e.Amount,
		Description:       e.Description,
		FundingSourceCode: e.FundingSourceCode,
		HUDCategoryCode:   e.HUDCategoryCode,
		PayeeID:           e.PayeeID,
		PayeeName:         e.PayeeName,
		RecordedBy:        e.RecordedBy,
		RecordedAt:        e.RecordedAt,
		Sequence:          e.Sequence,
	}
	if !e.Period.Start.IsZero() {
		start := e.Period.Start
		resp.PeriodStart = &start
	}
	if !e.Period.End.IsZero() {
		end := e.Period.End
		resp.PeriodEnd = &end
	}
	return resp
}

func toEntryResponses(entries []ledger.LedgerEntry) []EntryResponse {
	responses := make([]EntryResponse, len(entries))
	for i, e := range entries {
		responses[i] = toEntryResponse(e)
	}
	return responses
}

func toTransactionResponse(l *ledger.FinancialLedger, transactionID string) *TransactionResponse {
	return &TransactionResponse{
		LedgerID:      l.ID,
		TransactionID: transactionID,
		Entries:       toEntryResponses(l.EntriesForTransaction(transactionID)),
		TotalDebits:   l.TotalDebits(),
		TotalCredits:  l.TotalCredits(),
		Version:       l.Version,
	}
}

func toCommunicationResponse(ledgerID uuid.UUID, c ledger.LandlordCommunication) *CommunicationResponse {
	return &CommunicationResponse{
		ID:           c.ID,
		LedgerID:     ledgerID,
		ExternalID:   c.ExternalID,
		LandlordID:   c.LandlordID,
		LandlordName: c.LandlordName,
		Type:         string(c.Type),
		Subject:      c.Subject,
		Content:      c.Content,
		Redacted:     c.Redacted,
		OccurredOn:   c.OccurredOn,
		RecordedBy:   c.RecordedBy,
		RecordedAt:   c.RecordedAt,
	}
}

func toDocumentResponse(ledgerID uuid.UUID, d ledger.DocumentAttachment) *DocumentResponse {
	return &DocumentResponse{
		ID:            d.ID,
		LedgerID:      ledgerID,
		ExternalID:    d.ExternalID,
		Name:          d.Name,
		DocumentType:  d.DocumentType,
		ContentType:   d.ContentType,
		SizeBytes:     d.SizeBytes,
		StorageKey:    d.StorageKey,
		ContentStored: d.ContentRetained(),
		Redacted:      d.Redacted,
		UploadedBy:    d.UploadedBy,
		UploadedAt:    d.UploadedAt,
	}
}

func toLandlordViewResponse(v ledger.LandlordView) *LandlordViewResponse {
	return &LandlordViewResponse{
		LedgerID:         v.LedgerID,
		ClientID:         v.ClientID,
		ClientName:       v.ClientName,
		LandlordID:       v.LandlordID,
		RedactionLevel:   string(v.RedactionLevel),
		VAWAProtected:    v.VAWAProtected,
		Entries:          toEntryResponses(v.VisibleEntries),
		VisibleBalance:   v.VisibleBalance,
		TransactionCount: v.VisibleTransactionCount(),
		PaymentTotal:     v.VisiblePaymentTotal(),
		GeneratedAt:      v.GeneratedAt,
	}
}
