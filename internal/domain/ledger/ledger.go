package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/haven/ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// DefaultLedgerName is used when a ledger is opened without a name
const DefaultLedgerName = "Financial Assistance Ledger"

// LedgerStatus represents the lifecycle state of a ledger
type LedgerStatus string

const (
	LedgerStatusActive      LedgerStatus = "ACTIVE"
	LedgerStatusClosed      LedgerStatus = "CLOSED"
	LedgerStatusSuspended   LedgerStatus = "SUSPENDED"
	LedgerStatusUnderReview LedgerStatus = "UNDER_REVIEW"
)

// IsValid checks if the status is a valid LedgerStatus
func (s LedgerStatus) IsValid() bool {
	switch s {
	case LedgerStatusActive, LedgerStatusClosed, LedgerStatusSuspended, LedgerStatusUnderReview:
		return true
	}
	return false
}

// String returns the string representation of LedgerStatus
func (s LedgerStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further transitions are possible
func (s LedgerStatus) IsTerminal() bool {
	return s == LedgerStatusClosed
}

// CanAcceptEntries returns true if entries and provenance records may be appended
func (s LedgerStatus) CanAcceptEntries() bool {
	return s == LedgerStatusActive
}

// CanTransitionTo reports whether the lifecycle allows moving to the target status
func (s LedgerStatus) CanTransitionTo(to LedgerStatus) bool {
	switch s {
	case LedgerStatusActive:
		return to == LedgerStatusClosed || to == LedgerStatusSuspended || to == LedgerStatusUnderReview
	case LedgerStatusSuspended, LedgerStatusUnderReview:
		return to == LedgerStatusActive
	}
	return false
}

// FinancialLedger is the double-entry ledger of one client's assistance case.
// Entries are append-only; every recorded transaction adds exactly one debit
// and one credit of the same amount, so debits equal credits by construction.
type FinancialLedger struct {
	shared.Aggregate
	ClientID       uuid.UUID
	EnrollmentID   uuid.UUID
	HouseholdID    uuid.UUID
	Name           string
	Status         LedgerStatus
	RedactionLevel RedactionLevel
	StatusReason   string
	CreatedBy      string
	LastModified   time.Time
	CloseReason    string
	ClosedBy       string
	ClosedAt       *time.Time

	vawaProtected    bool
	totalDebits      decimal.Decimal
	totalCredits     decimal.Decimal
	entries          []LedgerEntry
	communications   []LandlordCommunication
	documents        []DocumentAttachment
	transactionIDs   map[string]struct{}
	nextSequence     int64
	persistedVersion int
	clock            func() time.Time
}

var _ shared.AggregateRoot = (*FinancialLedger)(nil)

// NewLedgerParams holds the inputs for opening a ledger
type NewLedgerParams struct {
	ClientID      uuid.UUID
	EnrollmentID  uuid.UUID
	HouseholdID   uuid.UUID
	Name          string
	VAWAProtected bool
	CreatedBy     string
	Clock         func() time.Time
}

// NewFinancialLedger opens an ACTIVE, empty ledger
func NewFinancialLedger(p NewLedgerParams) (*FinancialLedger, error) {
	if p.ClientID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CLIENT", "Client ID cannot be empty")
	}
	if p.CreatedBy == "" {
		return nil, shared.NewDomainError("INVALID_USER", "Creator cannot be empty")
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = DefaultLedgerName
	}
	if len(name) > 200 {
		return nil, shared.NewDomainError("INVALID_NAME", "Ledger name cannot exceed 200 characters")
	}

	l := &FinancialLedger{
		ClientID:       p.ClientID,
		EnrollmentID:   p.EnrollmentID,
		HouseholdID:    p.HouseholdID,
		Name:           name,
		Status:         LedgerStatusActive,
		RedactionLevel: DefaultRedactionLevel(p.VAWAProtected),
		CreatedBy:      p.CreatedBy,
		vawaProtected:  p.VAWAProtected,
		totalDebits:    decimal.Zero,
		totalCredits:   decimal.Zero,
		transactionIDs: make(map[string]struct{}),
		clock:          p.Clock,
	}
	now := l.now()
	l.Aggregate = shared.NewAggregate(now)
	l.LastModified = now

	l.Raise(NewLedgerCreatedEvent(l))
	return l, nil
}

// UseClock replaces the time source used to stamp entries and transitions
func (l *FinancialLedger) UseClock(clock func() time.Time) {
	l.clock = clock
}

func (l *FinancialLedger) now() time.Time {
	if l.clock != nil {
		return l.clock()
	}
	return time.Now()
}

// tick returns a timestamp that never precedes the last modification
func (l *FinancialLedger) tick() time.Time {
	now := l.now()
	if now.Before(l.LastModified) {
		return l.LastModified
	}
	return now
}

// markChanged bumps the version once per unit of work between saves
func (l *FinancialLedger) markChanged(at time.Time) {
	if l.Version == l.persistedVersion {
		l.BumpVersion()
	}
	l.LastModified = at
	l.UpdatedAt = at
}

// PersistedVersion returns the version the store is expected to hold
func (l *FinancialLedger) PersistedVersion() int {
	return l.persistedVersion
}

// IsNew reports whether the ledger has never been saved
func (l *FinancialLedger) IsNew() bool {
	return l.persistedVersion == 0
}

// HasPendingChanges reports whether the ledger changed since it was loaded or saved
func (l *FinancialLedger) HasPendingChanges() bool {
	return l.Version != l.persistedVersion
}

// MarkPersisted records that the current state has been written to the store
func (l *FinancialLedger) MarkPersisted() {
	l.persistedVersion = l.Version
}

// IsVAWAProtected reports whether the ledger is subject to VAWA confidentiality rules
func (l *FinancialLedger) IsVAWAProtected() bool {
	return l.vawaProtected
}

// TransactionCommand describes one business transaction to post
type TransactionCommand struct {
	TransactionID     string
	Kind              TransactionKind
	Amount            decimal.Decimal
	Description       string
	FundingSourceCode string
	HUDCategoryCode   string
	PayeeID           string
	PayeeName         string
	Period            Period
	RecordedBy        string
}

// RecordTransaction posts a debit/credit pair for the command and returns the
// transaction id. Both entries are validated before either is appended.
func (l *FinancialLedger) RecordTransaction(cmd TransactionCommand) (string, error) {
	if !l.Status.CanAcceptEntries() {
		return "", ErrLedgerNotActive
	}
	if !cmd.Kind.IsValid() {
		return "", ErrInvalidTransactionKind
	}
	if !cmd.Amount.IsPositive() {
		return "", ErrInvalidAmount
	}

	txID := strings.TrimSpace(cmd.TransactionID)
	if txID == "" {
		txID = uuid.NewString()
	}
	if l.HasTransaction(txID) {
		return "", ErrDuplicateTransaction
	}

	at := l.tick()
	base := LedgerEntry{
		TransactionID:     txID,
		Kind:              cmd.Kind,
		Amount:            cmd.Amount,
		Description:       cmd.Description,
		FundingSourceCode: cmd.FundingSourceCode,
		HUDCategoryCode:   cmd.HUDCategoryCode,
		PayeeID:           cmd.PayeeID,
		PayeeName:         cmd.PayeeName,
		Period:            cmd.Period,
		RecordedBy:        cmd.RecordedBy,
		RecordedAt:        at,
	}

	debit := base
	debit.ID = uuid.New()
	debit.Type = EntryTypeDebit
	debit.Account = cmd.Kind.DebitAccount()
	debit.Sequence = l.nextSequence + 1

	credit := base
	credit.ID = uuid.New()
	credit.Type = EntryTypeCredit
	credit.Account = cmd.Kind.CreditAccount()
	credit.Sequence = l.nextSequence + 2

	if err := debit.Validate(at); err != nil {
		return "", err
	}
	if err := credit.Validate(at); err != nil {
		return "", err
	}

	l.entries = append(l.entries, debit, credit)
	l.nextSequence += 2
	l.totalDebits = l.totalDebits.Add(cmd.Amount)
	l.totalCredits = l.totalCredits.Add(cmd.Amount)
	l.indexTransaction(txID)
	l.markChanged(at)

	l.Raise(NewTransactionRecordedEvent(l, debit, credit))
	return txID, nil
}

// PaymentCommand records an assistance payment to a payee
type PaymentCommand struct {
	PaymentID         string
	Subtype           PaymentSubtype
	Amount            decimal.Decimal
	FundingSourceCode string
	HUDCategoryCode   string
	PayeeID           string
	PayeeName         string
	PaymentDate       time.Time
	Period            Period
	RecordedBy        string
}

// RecordPayment maps the payment subtype to its transaction kind and posts it
func (l *FinancialLedger) RecordPayment(cmd PaymentCommand) (string, error) {
	if !cmd.Subtype.IsValid() {
		return "", shared.NewDomainError("INVALID_PAYMENT_SUBTYPE", fmt.Sprintf("Payment subtype %q is not supported", cmd.Subtype))
	}
	kind := cmd.Subtype.Kind()
	hud := cmd.HUDCategoryCode
	if hud == "" {
		hud = kind.DefaultHUDCategory()
	}
	paymentDate := cmd.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = l.now()
	}

	description := fmt.Sprintf("%s payment on %s", cmd.Subtype.DisplayName(), paymentDate.Format(dateLayout))
	if cmd.Period.IsComplete() {
		description += fmt.Sprintf(" for period %s to %s", cmd.Period.Start.Format(dateLayout), cmd.Period.End.Format(dateLayout))
	}

	return l.RecordTransaction(TransactionCommand{
		TransactionID:     cmd.PaymentID,
		Kind:              kind,
		Amount:            cmd.Amount,
		Description:       description,
		FundingSourceCode: cmd.FundingSourceCode,
		HUDCategoryCode:   hud,
		PayeeID:           cmd.PayeeID,
		PayeeName:         cmd.PayeeName,
		Period:            cmd.Period,
		RecordedBy:        cmd.RecordedBy,
	})
}

// DepositCommand records funds received from a funding source
type DepositCommand struct {
	DepositID         string
	Amount            decimal.Decimal
	FundingSourceCode string
	DepositSource     string
	DepositDate       time.Time
	RecordedBy        string
}

// RecordDeposit posts a funding deposit (DEBIT cash, CREDIT funding liability)
func (l *FinancialLedger) RecordDeposit(cmd DepositCommand) (string, error) {
	depositDate := cmd.DepositDate
	if depositDate.IsZero() {
		depositDate = l.now()
	}
	return l.RecordTransaction(TransactionCommand{
		TransactionID:     cmd.DepositID,
		Kind:              KindFundingDeposit,
		Amount:            cmd.Amount,
		Description:       fmt.Sprintf("Deposit from %s on %s", cmd.DepositSource, depositDate.Format(dateLayout)),
		FundingSourceCode: cmd.FundingSourceCode,
		PayeeName:         cmd.DepositSource,
		Period:            NewPeriod(depositDate, depositDate),
		RecordedBy:        cmd.RecordedBy,
	})
}

// ArrearsCommand records payment of a past-due obligation
type ArrearsCommand struct {
	ArrearsID         string
	Amount            decimal.Decimal
	Type              ArrearsType
	FundingSourceCode string
	PayeeID           string
	PayeeName         string
	Period            Period
	RecordedBy        string
}

// RecordArrears posts an arrears payment; the service period is required
func (l *FinancialLedger) RecordArrears(cmd ArrearsCommand) (string, error) {
	if !cmd.Type.IsValid() {
		return "", shared.NewDomainError("INVALID_ARREARS_TYPE", fmt.Sprintf("Arrears type %q is not supported", cmd.Type))
	}
	return l.RecordTransaction(TransactionCommand{
		TransactionID:     cmd.ArrearsID,
		Kind:              cmd.Type.Kind(),
		Amount:            cmd.Amount,
		Description:       fmt.Sprintf("%s arrears for period %s", cmd.Type, formatPeriod(cmd.Period)),
		FundingSourceCode: cmd.FundingSourceCode,
		HUDCategoryCode:   cmd.Type.HUDCategory(),
		PayeeID:           cmd.PayeeID,
		PayeeName:         cmd.PayeeName,
		Period:            cmd.Period,
		RecordedBy:        cmd.RecordedBy,
	})
}

func formatPeriod(p Period) string {
	start, end := "?", "?"
	if !p.Start.IsZero() {
		start = p.Start.Format(dateLayout)
	}
	if !p.End.IsZero() {
		end = p.End.Format(dateLayout)
	}
	return start + " to " + end
}

// CommunicationCommand records contact with a landlord
type CommunicationCommand struct {
	ExternalID   string
	LandlordID   string
	LandlordName string
	Type         CommunicationType
	Subject      string
	Content      string
	OccurredOn   time.Time
	RecordedBy   string
}

// RecordLandlordCommunication appends a communication record. Content is
// replaced by a redaction marker on VAWA-protected ledgers.
func (l *FinancialLedger) RecordLandlordCommunication(cmd CommunicationCommand) (LandlordCommunication, error) {
	if !l.Status.CanAcceptEntries() {
		return LandlordCommunication{}, ErrLedgerNotActive
	}
	if cmd.LandlordID == "" {
		return LandlordCommunication{}, shared.NewDomainError("INVALID_LANDLORD", "Landlord ID cannot be empty")
	}
	if !cmd.Type.IsValid() {
		return LandlordCommunication{}, shared.NewDomainError("INVALID_COMMUNICATION_TYPE", "Communication type is not valid")
	}

	at := l.tick()
	c := LandlordCommunication{
		ID:           uuid.New(),
		ExternalID:   cmd.ExternalID,
		LandlordID:   cmd.LandlordID,
		LandlordName: cmd.LandlordName,
		Type:         cmd.Type,
		Subject:      cmd.Subject,
		Content:      cmd.Content,
		OccurredOn:   cmd.OccurredOn,
		RecordedBy:   cmd.RecordedBy,
		RecordedAt:   at,
	}
	if c.OccurredOn.IsZero() {
		c.OccurredOn = at
	}
	if l.vawaProtected {
		c.Content = RedactedCommunicationContent
		c.Redacted = true
	}

	l.communications = append(l.communications, c)
	l.markChanged(at)
	l.Raise(NewCommunicationRecordedEvent(l, c))
	return c, nil
}

// DocumentCommand records a supporting document
type DocumentCommand struct {
	ExternalID   string
	Name         string
	DocumentType string
	ContentType  string
	SizeBytes    int64
	StorageKey   string
	UploadedBy   string
}

// AttachDocument appends a document record. Document content is not retained
// for VAWA-protected ledgers.
func (l *FinancialLedger) AttachDocument(cmd DocumentCommand) (DocumentAttachment, error) {
	if !l.Status.CanAcceptEntries() {
		return DocumentAttachment{}, ErrLedgerNotActive
	}
	if strings.TrimSpace(cmd.Name) == "" {
		return DocumentAttachment{}, shared.NewDomainError("INVALID_DOCUMENT", "Document name cannot be empty")
	}

	at := l.tick()
	d := DocumentAttachment{
		ID:           uuid.New(),
		ExternalID:   cmd.ExternalID,
		Name:         cmd.Name,
		DocumentType: cmd.DocumentType,
		ContentType:  cmd.ContentType,
		SizeBytes:    cmd.SizeBytes,
		StorageKey:   cmd.StorageKey,
		UploadedBy:   cmd.UploadedBy,
		UploadedAt:   at,
	}
	if l.vawaProtected {
		d.StorageKey = ""
		d.SizeBytes = 0
		d.Redacted = true
	}

	l.documents = append(l.documents, d)
	l.markChanged(at)
	l.Raise(NewDocumentAttachedEvent(l, d))
	return d, nil
}

// Close moves the ledger to CLOSED. Only balanced ledgers can be closed.
func (l *FinancialLedger) Close(reason, actor string) error {
	if l.Status == LedgerStatusClosed {
		return ErrLedgerClosed
	}
	if !l.Status.CanTransitionTo(LedgerStatusClosed) {
		return ErrInvalidStatusTransition
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Close reason is required")
	}
	if actor == "" {
		return shared.NewDomainError("INVALID_USER", "Closing user cannot be empty")
	}
	if !l.IsBalanced() {
		return shared.NewDomainError("LEDGER_UNBALANCED",
			fmt.Sprintf("Cannot close unbalanced ledger. Debits: %s, Credits: %s", l.totalDebits, l.totalCredits))
	}

	at := l.tick()
	l.Status = LedgerStatusClosed
	l.CloseReason = reason
	l.ClosedBy = actor
	l.ClosedAt = &at
	l.StatusReason = reason
	l.markChanged(at)

	l.Raise(NewLedgerClosedEvent(l, at))
	return nil
}

// Suspend moves an ACTIVE ledger to SUSPENDED
func (l *FinancialLedger) Suspend(reason, actor string) error {
	return l.transition(LedgerStatusSuspended, reason, actor)
}

// PlaceUnderReview moves an ACTIVE ledger to UNDER_REVIEW
func (l *FinancialLedger) PlaceUnderReview(reason, actor string) error {
	return l.transition(LedgerStatusUnderReview, reason, actor)
}

// Reactivate returns a suspended or reviewed ledger to ACTIVE
func (l *FinancialLedger) Reactivate(actor string) error {
	return l.transition(LedgerStatusActive, "", actor)
}

func (l *FinancialLedger) transition(to LedgerStatus, reason, actor string) error {
	if l.Status == LedgerStatusClosed {
		return ErrLedgerClosed
	}
	if !l.Status.CanTransitionTo(to) {
		return shared.NewDomainError("INVALID_STATUS_TRANSITION",
			fmt.Sprintf("Cannot move ledger from %s to %s", l.Status, to))
	}
	if actor == "" {
		return shared.NewDomainError("INVALID_USER", "Acting user cannot be empty")
	}

	at := l.tick()
	from := l.Status
	l.Status = to
	l.StatusReason = reason
	l.markChanged(at)

	l.Raise(NewLedgerStatusChangedEvent(l, from, reason, actor, at))
	return nil
}

// TotalDebits returns the sum of all DEBIT entries
func (l *FinancialLedger) TotalDebits() decimal.Decimal {
	return l.totalDebits
}

// TotalCredits returns the sum of all CREDIT entries
func (l *FinancialLedger) TotalCredits() decimal.Decimal {
	return l.totalCredits
}

// Balance returns credits minus debits
func (l *FinancialLedger) Balance() decimal.Decimal {
	return l.totalCredits.Sub(l.totalDebits)
}

// Imbalance returns |debits - credits|
func (l *FinancialLedger) Imbalance() decimal.Decimal {
	return l.totalDebits.Sub(l.totalCredits).Abs()
}

// IsBalanced reports whether total debits equal total credits
func (l *FinancialLedger) IsBalanced() bool {
	return l.totalDebits.Equal(l.totalCredits)
}

// Entries returns a copy of the entries in recording order
func (l *FinancialLedger) Entries() []LedgerEntry {
	out := make([]LedgerEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// EntryCount returns the number of entries
func (l *FinancialLedger) EntryCount() int {
	return len(l.entries)
}

// EntriesForPayee returns the entries paid to a payee
func (l *FinancialLedger) EntriesForPayee(payeeID string) []LedgerEntry {
	var out []LedgerEntry
	for _, e := range l.entries {
		if e.PayeeID == payeeID {
			out = append(out, e)
		}
	}
	return out
}

// EntriesForTransaction returns both sides of a transaction
func (l *FinancialLedger) EntriesForTransaction(transactionID string) []LedgerEntry {
	var out []LedgerEntry
	for _, e := range l.entries {
		if e.TransactionID == transactionID {
			out = append(out, e)
		}
	}
	return out
}

// HasTransaction reports whether a transaction id was already recorded
func (l *FinancialLedger) HasTransaction(transactionID string) bool {
	if l.transactionIDs == nil {
		l.rebuildIndex()
	}
	_, ok := l.transactionIDs[transactionID]
	return ok
}

// HasPayee reports whether any entry was paid to the payee
func (l *FinancialLedger) HasPayee(payeeID string) bool {
	for _, e := range l.entries {
		if e.PayeeID == payeeID {
			return true
		}
	}
	return false
}

// HasFundingSource reports whether any entry is tagged with the funding source
func (l *FinancialLedger) HasFundingSource(code string) bool {
	for _, e := range l.entries {
		if e.FundingSourceCode == code {
			return true
		}
	}
	return false
}

// Communications returns a copy of the landlord communications
func (l *FinancialLedger) Communications() []LandlordCommunication {
	out := make([]LandlordCommunication, len(l.communications))
	copy(out, l.communications)
	return out
}

// Documents returns a copy of the document attachments
func (l *FinancialLedger) Documents() []DocumentAttachment {
	out := make([]DocumentAttachment, len(l.documents))
	copy(out, l.documents)
	return out
}

// Clone returns a deep copy that shares no mutable state with l.
// Pending domain events are not copied.
func (l *FinancialLedger) Clone() *FinancialLedger {
	c := *l
	c.Aggregate = shared.RestoreAggregate(l.ID, l.CreatedAt, l.UpdatedAt, l.Version)
	c.entries = l.Entries()
	c.communications = l.Communications()
	c.documents = l.Documents()
	if l.ClosedAt != nil {
		closedAt := *l.ClosedAt
		c.ClosedAt = &closedAt
	}
	c.transactionIDs = nil
	c.rebuildIndex()
	return &c
}

func (l *FinancialLedger) indexTransaction(id string) {
	if l.transactionIDs == nil {
		l.rebuildIndex()
	}
	l.transactionIDs[id] = struct{}{}
}

func (l *FinancialLedger) rebuildIndex() {
	l.transactionIDs = make(map[string]struct{}, len(l.entries)/2)
	for _, e := range l.entries {
		l.transactionIDs[e.TransactionID] = struct{}{}
	}
}

// RestoreParams carries persisted ledger state
type RestoreParams struct {
	ID             uuid.UUID
	ClientID       uuid.UUID
	EnrollmentID   uuid.UUID
	HouseholdID    uuid.UUID
	Name           string
	Status         LedgerStatus
	VAWAProtected  bool
	RedactionLevel RedactionLevel
	StatusReason   string
	TotalDebits    decimal.Decimal
	TotalCredits   decimal.Decimal
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastModified   time.Time
	CloseReason    string
	ClosedBy       string
	ClosedAt       *time.Time
	Version        int
	Entries        []LedgerEntry
	Communications []LandlordCommunication
	Documents      []DocumentAttachment
}

// Restore rebuilds a ledger from persisted state. Totals are taken as stored
// so a drift between totals and entries stays observable.
func Restore(p RestoreParams) *FinancialLedger {
	l := &FinancialLedger{
		Aggregate:        shared.RestoreAggregate(p.ID, p.CreatedAt, p.UpdatedAt, p.Version),
		ClientID:         p.ClientID,
		EnrollmentID:     p.EnrollmentID,
		HouseholdID:      p.HouseholdID,
		Name:             p.Name,
		Status:           p.Status,
		RedactionLevel:   p.RedactionLevel,
		StatusReason:     p.StatusReason,
		CreatedBy:        p.CreatedBy,
		LastModified:     p.LastModified,
		CloseReason:      p.CloseReason,
		ClosedBy:         p.ClosedBy,
		ClosedAt:         p.ClosedAt,
		vawaProtected:    p.VAWAProtected,
		totalDebits:      p.TotalDebits,
		totalCredits:     p.TotalCredits,
		entries:          append([]LedgerEntry(nil), p.Entries...),
		communications:   append([]LandlordCommunication(nil), p.Communications...),
		documents:        append([]DocumentAttachment(nil), p.Documents...),
		persistedVersion: p.Version,
	}
	if l.RedactionLevel == "" {
		l.RedactionLevel = DefaultRedactionLevel(p.VAWAProtected)
	}
	for _, e := range l.entries {
		if e.Sequence > l.nextSequence {
			l.nextSequence = e.Sequence
		}
	}
	l.rebuildIndex()
	return l
}
