package ledger

import (
	"time"

	"github.com/google/uuid"
)

// RedactedCommunicationContent replaces communication bodies on protected ledgers
const RedactedCommunicationContent = "[VAWA PROTECTED - CONTENT REDACTED]"

// CommunicationType is the channel used to contact a landlord
type CommunicationType string

const (
	CommunicationEmail    CommunicationType = "EMAIL"
	CommunicationPhone    CommunicationType = "PHONE"
	CommunicationLetter   CommunicationType = "LETTER"
	CommunicationInPerson CommunicationType = "IN_PERSON"
	CommunicationPortal   CommunicationType = "PORTAL"
)

// IsValid checks if the communication type is known
func (c CommunicationType) IsValid() bool {
	switch c {
	case CommunicationEmail, CommunicationPhone, CommunicationLetter,
		CommunicationInPerson, CommunicationPortal:
		return true
	}
	return false
}

// LandlordCommunication is a provenance record of contact with a landlord.
// It has no balance effect.
type LandlordCommunication struct {
	ID           uuid.UUID         `json:"id"`
	ExternalID   string            `json:"external_id,omitempty"`
	LandlordID   string            `json:"landlord_id"`
	LandlordName string            `json:"landlord_name"`
	Type         CommunicationType `json:"type"`
	Subject      string            `json:"subject"`
	Content      string            `json:"content"`
	Redacted     bool              `json:"redacted"`
	OccurredOn   time.Time         `json:"occurred_on"`
	RecordedBy   string            `json:"recorded_by"`
	RecordedAt   time.Time         `json:"recorded_at"`
}

// DocumentAttachment is a provenance record of a supporting document.
// StorageKey is empty when the content was not retained.
type DocumentAttachment struct {
	ID           uuid.UUID `json:"id"`
	ExternalID   string    `json:"external_id,omitempty"`
	Name         string    `json:"name"`
	DocumentType string    `json:"document_type"`
	ContentType  string    `json:"content_type,omitempty"`
	SizeBytes    int64     `json:"size_bytes"`
	StorageKey   string    `json:"storage_key,omitempty"`
	Redacted     bool      `json:"redacted"`
	UploadedBy   string    `json:"uploaded_by"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// ContentRetained reports whether the document body was stored
func (d DocumentAttachment) ContentRetained() bool {
	return d.StorageKey != "" && !d.Redacted
}
