package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/haven/ledger/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// FinancialLedgerModel is the persistence model for the FinancialLedger aggregate root.
// Totals are denormalized so imbalance queries do not scan entries.
type FinancialLedgerModel struct {
	AggregateModel
	ClientID       uuid.UUID                  `gorm:"type:uuid;not null;index"`
	EnrollmentID   *uuid.UUID                 `gorm:"type:uuid;index"`
	HouseholdID    *uuid.UUID                 `gorm:"type:uuid;index"`
	Name           string                     `gorm:"type:varchar(200);not null"`
	Status         ledger.LedgerStatus        `gorm:"type:varchar(20);not null;default:'ACTIVE';index"`
	StatusReason   string                     `gorm:"type:varchar(500)"`
	VAWAProtected  bool                       `gorm:"column:vawa_protected;not null;default:false;index"`
	RedactionLevel ledger.RedactionLevel      `gorm:"type:varchar(20);not null"`
	TotalDebits    decimal.Decimal            `gorm:"type:decimal(18,4);not null"`
	TotalCredits   decimal.Decimal            `gorm:"type:decimal(18,4);not null"`
	CreatedBy      string                     `gorm:"type:varchar(100);not null"`
	LastModified   time.Time                  `gorm:"not null"`
	CloseReason    string                     `gorm:"type:varchar(500)"`
	ClosedBy       string                     `gorm:"type:varchar(100)"`
	ClosedAt       *time.Time
	Entries        []LedgerEntryModel         `gorm:"foreignKey:LedgerID;references:ID"`
	Communications []LedgerCommunicationModel `gorm:"foreignKey:LedgerID;references:ID"`
	Documents      []LedgerDocumentModel      `gorm:"foreignKey:LedgerID;references:ID"`
}

// TableName returns the table name for GORM
func (FinancialLedgerModel) TableName() string {
	return "financial_ledgers"
}

// ToDomain converts the persistence model to a domain FinancialLedger
func (m *FinancialLedgerModel) ToDomain() *ledger.FinancialLedger {
	p := ledger.RestoreParams{
		ID:             m.ID,
		ClientID:       m.ClientID,
		Name:           m.Name,
		Status:         m.Status,
		VAWAProtected:  m.VAWAProtected,
		RedactionLevel: m.RedactionLevel,
		StatusReason:   m.StatusReason,
		TotalDebits:    m.TotalDebits,
		TotalCredits:   m.TotalCredits,
		CreatedBy:      m.CreatedBy,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		LastModified:   m.LastModified,
		CloseReason:    m.CloseReason,
		ClosedBy:       m.ClosedBy,
		ClosedAt:       m.ClosedAt,
		Version:        m.Version,
		Entries:        make([]ledger.LedgerEntry, len(m.Entries)),
		Communications: make([]ledger.LandlordCommunication, len(m.Communications)),
		Documents:      make([]ledger.DocumentAttachment, len(m.Documents)),
	}
	if m.EnrollmentID != nil {
		p.EnrollmentID = *m.EnrollmentID
	}
	if m.HouseholdID != nil {
		p.HouseholdID = *m.HouseholdID
	}
	for i := range m.Entries {
		p.Entries[i] = m.Entries[i].ToDomain()
	}
	for i := range m.Communications {
		p.Communications[i] = m.Communications[i].ToDomain()
	}
	for i := range m.Documents {
		p.Documents[i] = m.Documents[i].ToDomain()
	}
	return ledger.Restore(p)
}

// FromDomain populates the persistence model from a domain FinancialLedger
func (m *FinancialLedgerModel) FromDomain(l *ledger.FinancialLedger) {
	m.FromAggregate(&l.Aggregate)
	m.ClientID = l.ClientID
	m.EnrollmentID = optionalUUID(l.EnrollmentID)
	m.HouseholdID = optionalUUID(l.HouseholdID)
	m.Name = l.Name
	m.Status = l.Status
	m.StatusReason = l.StatusReason
	m.VAWAProtected = l.IsVAWAProtected()
	m.RedactionLevel = l.RedactionLevel
	m.TotalDebits = l.TotalDebits()
	m.TotalCredits = l.TotalCredits()
	m.CreatedBy = l.CreatedBy
	m.LastModified = l.LastModified
	m.CloseReason = l.CloseReason
	m.ClosedBy = l.ClosedBy
	m.ClosedAt = l.ClosedAt

	entries := l.Entries()
	m.Entries = make([]LedgerEntryModel, len(entries))
	for i := range entries {
		m.Entries[i] = LedgerEntryModelFromDomain(l.ID, entries[i])
	}
	comms := l.Communications()
	m.Communications = make([]LedgerCommunicationModel, len(comms))
	for i := range comms {
		m.Communications[i] = LedgerCommunicationModelFromDomain(l.ID, comms[i])
	}
	docs := l.Documents()
	m.Documents = make([]LedgerDocumentModel, len(docs))
	for i := range docs {
		m.Documents[i] = LedgerDocumentModelFromDomain(l.ID, docs[i])
	}
}

// FinancialLedgerModelFromDomain creates a new persistence model from a domain FinancialLedger
func FinancialLedgerModelFromDomain(l *ledger.FinancialLedger) *FinancialLedgerModel {
	m := &FinancialLedgerModel{}
	m.FromDomain(l)
	return m
}

// LedgerEntryModel is the persistence model for one ledger entry, keyed by (ledger_id, id)
type LedgerEntryModel struct {
	LedgerID          uuid.UUID                    `gorm:"type:uuid;primaryKey"`
	ID                uuid.UUID                    `gorm:"type:uuid;primaryKey"`
	TransactionID     string                       `gorm:"type:varchar(100);not null;index"`
	Type              ledger.EntryType             `gorm:"column:entry_type;type:varchar(10);not null"`
	Account           ledger.AccountClassification `gorm:"type:varchar(40);not null"`
	Kind              ledger.TransactionKind       `gorm:"type:varchar(30);not null;index"`
	Amount            decimal.Decimal              `gorm:"type:decimal(18,4);not null"`
	Description       string                       `gorm:"type:text"`
	FundingSourceCode string                       `gorm:"type:varchar(50);index"`
	HUDCategoryCode   string                       `gorm:"column:hud_category_code;type:varchar(10)"`
	PayeeID           string                       `gorm:"type:varchar(100);index"`
	PayeeName         string                       `gorm:"type:varchar(200)"`
	PeriodStart       *time.Time                   `gorm:"type:date"`
	PeriodEnd         *time.Time                   `gorm:"type:date"`
	RecordedBy        string                       `gorm:"type:varchar(100);not null"`
	RecordedAt        time.Time                    `gorm:"not null;index"`
	Sequence          int64                        `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LedgerEntryModel) TableName() string {
	return "ledger_entries"
}

// ToDomain converts the persistence model to a domain LedgerEntry
func (m *LedgerEntryModel) ToDomain() ledger.LedgerEntry {
	e := ledger.LedgerEntry{
		ID:                m.ID,
		TransactionID:     m.TransactionID,
		Type:              m.Type,
		Account:           m.Account,
		Kind:              m.Kind,
		Amount:            m.Amount,
		Description:       m.Description,
		FundingSourceCode: m.FundingSourceCode,
		HUDCategoryCode:   m.HUDCategoryCode,
		PayeeID:           m.PayeeID,
		PayeeName:         m.PayeeName,
		RecordedBy:        m.RecordedBy,
		RecordedAt:        m.RecordedAt,
		Sequence:          m.Sequence,
	}
	if m.PeriodStart != nil {
		e.Period.Start = m.PeriodStart.UTC()
	}
	if m.PeriodEnd != nil {
		e.Period.End = m.PeriodEnd.UTC()
	}
	return e
}

// LedgerEntryModelFromDomain creates a persistence model for an entry of the ledger
func LedgerEntryModelFromDomain(ledgerID uuid.UUID, e ledger.LedgerEntry) LedgerEntryModel {
	return LedgerEntryModel{
		LedgerID:          ledgerID,
		ID:                e.ID,
		TransactionID:     e.TransactionID,
		Type:              e.Type,
		Account:           e.Account,
		Kind:              e.Kind,
		Amount:            e.Amount,
		Description:       e.Description,
		FundingSourceCode: e.FundingSourceCode,
		HUDCategoryCode:   e.HUDCategoryCode,
		PayeeID:           e.PayeeID,
		PayeeName:         e.PayeeName,
		PeriodStart:       optionalTime(e.Period.Start),
		PeriodEnd:         optionalTime(e.Period.End),
		RecordedBy:        e.RecordedBy,
		RecordedAt:        e.RecordedAt,
		Sequence:          e.Sequence,
	}
}

// LedgerCommunicationModel is the persistence model for a landlord communication
type LedgerCommunicationModel struct {
	ID           uuid.UUID                `gorm:"type:uuid;primary_key"`
	LedgerID     uuid.UUID                `gorm:"type:uuid;not null;index"`
	ExternalID   string                   `gorm:"type:varchar(100)"`
	LandlordID   string                   `gorm:"type:varchar(100);not null;index"`
	LandlordName string                   `gorm:"type:varchar(200)"`
	Type         ledger.CommunicationType `gorm:"type:varchar(20);not null"`
	Subject      string                   `gorm:"type:varchar(500)"`
	Content      string                   `gorm:"type:text"`
	Redacted     bool                     `gorm:"not null;default:false"`
	OccurredOn   time.Time                `gorm:"not null"`
	RecordedBy   string                   `gorm:"type:varchar(100)"`
	RecordedAt   time.Time                `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LedgerCommunicationModel) TableName() string {
	return "ledger_communications"
}

// ToDomain converts the persistence model to a domain LandlordCommunication
func (m *LedgerCommunicationModel) ToDomain() ledger.LandlordCommunication {
	return ledger.LandlordCommunication{
		ID:           m.ID,
		ExternalID:   m.ExternalID,
		LandlordID:   m.LandlordID,
		LandlordName: m.LandlordName,
		Type:         m.Type,
		Subject:      m.Subject,
		Content:      m.Content,
		Redacted:     m.Redacted,
		OccurredOn:   m.OccurredOn,
		RecordedBy:   m.RecordedBy,
		RecordedAt:   m.RecordedAt,
	}
}

// LedgerCommunicationModelFromDomain creates a persistence model for a communication of the ledger
func LedgerCommunicationModelFromDomain(ledgerID uuid.UUID, c ledger.LandlordCommunication) LedgerCommunicationModel {
	return LedgerCommunicationModel{
		ID:           c.ID,
		LedgerID:     ledgerID,
		ExternalID:   c.ExternalID,
		LandlordID:   c.LandlordID,
		LandlordName: c.LandlordName,
		Type:         c.Type,
		Subject:      c.Subject,
		Content:      c.Content,
		Redacted:     c.Redacted,
		OccurredOn:   c.OccurredOn,
		RecordedBy:   c.RecordedBy,
		RecordedAt:   c.RecordedAt,
	}
}

// LedgerDocumentModel is the persistence model for a document attachment
type LedgerDocumentModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key"`
	LedgerID     uuid.UUID `gorm:"type:uuid;not null;index"`
	ExternalID   string    `gorm:"type:varchar(100)"`
	Name         string    `gorm:"type:varchar(255);not null"`
	DocumentType string    `gorm:"type:varchar(50)"`
	ContentType  string    `gorm:"type:varchar(100)"`
	SizeBytes    int64     `gorm:"not null;default:0"`
	StorageKey   string    `gorm:"type:varchar(500)"`
	Redacted     bool      `gorm:"not null;default:false"`
	UploadedBy   string    `gorm:"type:varchar(100)"`
	UploadedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LedgerDocumentModel) TableName() string {
	return "ledger_documents"
}

// ToDomain converts the persistence model to a domain DocumentAttachment
func (m *LedgerDocumentModel) ToDomain() ledger.DocumentAttachment {
	return ledger.DocumentAttachment{
		ID:           m.ID,
		ExternalID:   m.ExternalID,
		Name:         m.Name,
		DocumentType: m.DocumentType,
		ContentType:  m.ContentType,
		SizeBytes:    m.SizeBytes,
		StorageKey:   m.StorageKey,
		Redacted:     m.Redacted,
		UploadedBy:   m.UploadedBy,
		UploadedAt:   m.UploadedAt,
	}
}

// LedgerDocumentModelFromDomain creates a persistence model for a document of the ledger
func LedgerDocumentModelFromDomain(ledgerID uuid.UUID, d ledger.DocumentAttachment) LedgerDocumentModel {
	return LedgerDocumentModel{
		ID:           d.ID,
		LedgerID:     ledgerID,
		ExternalID:   d.ExternalID,
		Name:         d.Name,
		DocumentType: d.DocumentType,
		ContentType:  d.ContentType,
		SizeBytes:    d.SizeBytes,
		StorageKey:   d.StorageKey,
		Redacted:     d.Redacted,
		UploadedBy:   d.UploadedBy,
		UploadedAt:   d.UploadedAt,
	}
}

// ReconciliationRunModel is the persistence model for a stored reconciliation report
type ReconciliationRunModel struct {
	ID                      uuid.UUID            `gorm:"type:uuid;primary_key"`
	ReconciliationDate      time.Time            `gorm:"not null;index"`
	FundingSourceCode       string               `gorm:"type:varchar(50);index"`
	TotalLedgers            int                  `gorm:"not null"`
	TotalExportTransactions int                  `gorm:"not null"`
	DiscrepancyCount        int                  `gorm:"not null"`
	Discrepancies           []ledger.Discrepancy `gorm:"type:jsonb;serializer:json"`
	TotalDiscrepancyAmount  decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	IsBalanced              bool                 `gorm:"not null"`
	TriggeredBy             string               `gorm:"type:varchar(100)"`
	Source                  string               `gorm:"type:varchar(200)"`
	GeneratedAt             time.Time            `gorm:"not null"`
	CreatedAt               time.Time            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ReconciliationRunModel) TableName() string {
	return "reconciliation_runs"
}

// ToDomain converts the persistence model to a domain ReconciliationRun
func (m *ReconciliationRunModel) ToDomain() ledger.ReconciliationRun {
	return ledger.ReconciliationRun{
		Report: ledger.ReconciliationReport{
			ID:                      m.ID,
			ReconciliationDate:      m.ReconciliationDate,
			FundingSourceCode:       m.FundingSourceCode,
			TotalLedgers:            m.TotalLedgers,
			TotalExportTransactions: m.TotalExportTransactions,
			Discrepancies:           m.Discrepancies,
			TotalDiscrepancyAmount:  m.TotalDiscrepancyAmount,
			IsBalanced:              m.IsBalanced,
			GeneratedAt:             m.GeneratedAt,
		},
		TriggeredBy: m.TriggeredBy,
		Source:      m.Source,
	}
}

// ReconciliationRunModelFromDomain creates a persistence model from a domain ReconciliationRun
func ReconciliationRunModelFromDomain(run *ledger.ReconciliationRun) *ReconciliationRunModel {
	r := run.Report
	return &ReconciliationRunModel{
		ID:                      r.ID,
		ReconciliationDate:      r.ReconciliationDate,
		FundingSourceCode:       r.FundingSourceCode,
		TotalLedgers:            r.TotalLedgers,
		TotalExportTransactions: r.TotalExportTransactions,
		DiscrepancyCount:        len(r.Discrepancies),
		Discrepancies:           r.Discrepancies,
		TotalDiscrepancyAmount:  r.TotalDiscrepancyAmount,
		IsBalanced:              r.IsBalanced,
		TriggeredBy:             run.TriggeredBy,
		Source:                  run.Source,
		GeneratedAt:             r.GeneratedAt,
		CreatedAt:               time.Now(),
	}
}

func optionalUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// LedgerModels lists the ledger tables in creation order
func LedgerModels() []any {
	return []any{
		&FinancialLedgerModel{},
		&LedgerEntryModel{},
		&LedgerCommunicationModel{},
		&LedgerDocumentModel{},
		&ReconciliationRunModel{},
	}
}
