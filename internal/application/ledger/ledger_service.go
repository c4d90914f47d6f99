package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/haven/ledger/internal/domain/ledger"
	"github.com/haven/ledger/internal/domain/shared"
	"github.com/haven/ledger/internal/infrastructure/logger"
	"github.com/haven/ledger/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DocumentStore keeps the content of ledger documents
type DocumentStore interface {
	Upload(ctx context.Context, storageKey string, data []byte, contentType string) error
	DeleteObject(ctx context.Context, storageKey string) error
}

// DocumentLinker issues time-limited download links. Document stores that
// support it are used for DocumentDownloadLink.
type DocumentLinker interface {
	PresignDownload(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)
}

// Document lookup errors
var (
	ErrDocumentNotFound           = shared.NewDomainError("DOCUMENT_NOT_FOUND", "Document not found on this ledger")
	ErrDocumentContentUnavailable = shared.NewDomainError("DOCUMENT_CONTENT_UNAVAILABLE", "Document content is not stored")
)

// DocumentLinkTTL is how long a document download link stays valid
const DocumentLinkTTL = 15 * time.Minute

// DocumentLinkResponse is a download link for stored document content
type DocumentLinkResponse struct {
	DocumentID uuid.UUID `json:"document_id"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// LedgerService is the only mutation path for financial ledgers. Mutations of
// one ledger are serialized through the Locker; pending domain events are
// published after a successful save.
type LedgerService struct {
	repo          ledger.Repository
	locker        Locker
	projector     ledger.ViewProjector
	publisher     shared.EventPublisher
	documents     DocumentStore
	ledgerMetrics *telemetry.LedgerMetrics
	policy        ledger.AlertPolicy
	clock         func() time.Time
	logger        *zap.Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(repo ledger.Repository, locker Locker, projector ledger.ViewProjector, log *zap.Logger) *LedgerService {
	if locker == nil {
		locker = NewKeyedLocker()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LedgerService{
		repo:      repo,
		locker:    locker,
		projector: projector,
		policy:    ledger.DefaultAlertPolicy(),
		clock:     time.Now,
		logger:    log,
	}
}

// SetEventPublisher sets the event publisher for domain events
func (s *LedgerService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SetDocumentStore sets the store for document content
func (s *LedgerService) SetDocumentStore(store DocumentStore) {
	s.documents = store
}

// SetLedgerMetrics sets the ledger metrics collector
func (s *LedgerService) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	s.ledgerMetrics = m
}

// SetAlertPolicy sets the thresholds used by the audit queries
func (s *LedgerService) SetAlertPolicy(policy ledger.AlertPolicy) {
	s.policy = policy
}

// SetClock overrides the time source
func (s *LedgerService) SetClock(clock func() time.Time) {
	s.clock = clock
}

// ===================== Lifecycle =====================

// CreateLedger opens a new ledger. A client can hold only one ACTIVE ledger.
func (s *LedgerService) CreateLedger(ctx context.Context, req CreateLedgerRequest) (*LedgerResponse, error) {
	unlock, err := s.locker.Lock(ctx, clientLockKey(req.ClientID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	active, err := s.repo.FindByClientIDAndStatus(ctx, req.ClientID, ledger.LedgerStatusActive)
	if err != nil {
		return nil, err
	}
	if len(active) > 0 {
		return nil, ledger.ErrActiveLedgerExists
	}

	l, err := s.create(ctx, req)
	if err != nil {
		return nil, err
	}
	resp := toLedgerResponse(l)
	return &resp, nil
}

// GetOrCreateActiveLedger returns the client's ACTIVE ledger, opening one when
// none exists
func (s *LedgerService) GetOrCreateActiveLedger(ctx context.Context, req CreateLedgerRequest) (*LedgerResponse, error) {
	l, err := s.getOrCreateActive(ctx, req)
	if err != nil {
		return nil, err
	}
	resp := toLedgerResponse(l)
	return &resp, nil
}

func (s *LedgerService) getOrCreateActive(ctx context.Context, req CreateLedgerRequest) (*ledger.FinancialLedger, error) {
	unlock, err := s.locker.Lock(ctx, clientLockKey(req.ClientID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	active, err := s.repo.FindByClientIDAndStatus(ctx, req.ClientID, ledger.LedgerStatusActive)
	if err != nil {
		return nil, err
	}
	if len(active) > 0 {
		return mostRecent(active), nil
	}
	return s.create(ctx, req)
}

func (s *LedgerService) create(ctx context.Context, req CreateLedgerRequest) (*ledger.FinancialLedger, error) {
	l, err := ledger.NewFinancialLedger(ledger.NewLedgerParams{
		ClientID:      req.ClientID,
		EnrollmentID:  req.EnrollmentID,
		HouseholdID:   req.HouseholdID,
		Name:          req.Name,
		VAWAProtected: req.VAWAProtected,
		CreatedBy:     req.CreatedBy,
		Clock:         s.clock,
	})
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, l); err != nil {
		return nil, err
	}
	s.publishEvents(ctx, l)

	s.logger.Info("Financial ledger created",
		zap.String("ledger_id", l.ID.String()),
		zap.String("client_id", l.ClientID.String()),
		zap.Bool("vawa_protected", l.IsVAWAProtected()),
	)
	return l, nil
}

// CloseLedger closes a balanced ledger
func (s *LedgerService) CloseLedger(ctx context.Context, id uuid.UUID, req StatusChangeRequest) (*LedgerResponse, error) {
	return s.changeStatus(ctx, id, func(l *ledger.FinancialLedger) error {
		return l.Close(req.Reason, req.Actor)
	})
}

// SuspendLedger suspends an ACTIVE ledger
func (s *LedgerService) SuspendLedger(ctx context.Context, id uuid.UUID, req StatusChangeRequest) (*LedgerResponse, error) {
	return s.changeStatus(ctx, id, func(l *ledger.FinancialLedger) error {
		return l.Suspend(req.Reason, req.Actor)
	})
}

// PlaceUnderReview places an ACTIVE ledger under review
func (s *LedgerService) PlaceUnderReview(ctx context.Context, id uuid.UUID, req StatusChangeRequest) (*LedgerResponse, error) {
	return s.changeStatus(ctx, id, func(l *ledger.FinancialLedger) error {
		return l.PlaceUnderReview(req.Reason, req.Actor)
	})
}

// ReactivateLedger returns a suspended or reviewed ledger to ACTIVE. It fails
// with ErrActiveLedgerExists when the client opened another ledger meanwhile.
func (s *LedgerService) ReactivateLedger(ctx context.Context, id uuid.UUID, req StatusChangeRequest) (*LedgerResponse, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	unlock, err := s.locker.Lock(ctx, clientLockKey(current.ClientID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.changeStatus(ctx, id, func(l *ledger.FinancialLedger) error {
		active, err := s.repo.FindByClientIDAndStatus(ctx, l.ClientID, ledger.LedgerStatusActive)
		if err != nil {
			return err
		}
		for _, other := range active {
			if other.ID != l.ID {
				return ledger.ErrActiveLedgerExists
			}
		}
		return l.Reactivate(req.Actor)
	})
}

func (s *LedgerService) changeStatus(ctx context.Context, id uuid.UUID, fn func(*ledger.FinancialLedger) error) (*LedgerResponse, error) {
	l, err := s.mutate(ctx, id, fn)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Financial ledger status changed",
		zap.String("ledger_id", l.ID.String()),
		zap.String("status", string(l.Status)),
	)
	resp := toLedgerResponse(l)
	return &resp, nil
}

// DeleteLedger removes a ledger. Stored document content is removed on a best
// effort basis.
func (s *LedgerService) DeleteLedger(ctx context.Context, id uuid.UUID) error {
	unlock, err := s.locker.Lock(ctx, ledgerLockKey(id))
	if err != nil {
		return err
	}
	defer unlock()

	l, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return err
	}

	if s.documents != nil {
		for _, d := range l.Documents() {
			if !d.ContentRetained() {
				continue
			}
			if err := s.documents.DeleteObject(ctx, d.StorageKey); err != nil {
				s.logger.Warn("Failed to delete document content",
					zap.String("ledger_id", id.String()),
					zap.String("storage_key", d.StorageKey),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

// ===================== Transactions =====================

// RecordPaymentTransaction records an assistance payment on the ledger
func (s *LedgerService) RecordPaymentTransaction(ctx context.Context, id uuid.UUID, req RecordPaymentRequest) (*TransactionResponse, error) {
	period, err := periodFrom(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return nil, err
	}
	cmd := ledger.PaymentCommand{
		PaymentID:         req.PaymentID,
		Subtype:           ledger.PaymentSubtype(req.Subtype),
		Amount:            req.Amount,
		FundingSourceCode: req.FundingSourceCode,
		HUDCategoryCode:   req.HUDCategoryCode,
		PayeeID:           req.PayeeID,
		PayeeName:         req.PayeeName,
		Period:            period,
		RecordedBy:        req.RecordedBy,
	}
	if req.PaymentDate != nil {
		cmd.PaymentDate = *req.PaymentDate
	}

	return s.record(ctx, id, func(l *ledger.FinancialLedger) (string, error) {
		return l.RecordPayment(cmd)
	})
}

// RecordFundingDeposit records funds received from a funding source
func (s *LedgerService) RecordFundingDeposit(ctx context.Context, id uuid.UUID, req RecordDepositRequest) (*TransactionResponse, error) {
	cmd := ledger.DepositCommand{
		DepositID:         req.DepositID,
		Amount:            req.Amount,
		FundingSourceCode: req.FundingSourceCode,
		DepositSource:     req.DepositSource,
		RecordedBy:        req.RecordedBy,
	}
	if req.DepositDate != nil {
		cmd.DepositDate = *req.DepositDate
	}

	return s.record(ctx, id, func(l *ledger.FinancialLedger) (string, error) {
		return l.RecordDeposit(cmd)
	})
}

// RecordArrears records an arrears payment for a past service period
func (s *LedgerService) RecordArrears(ctx context.Context, id uuid.UUID, req RecordArrearsRequest) (*TransactionResponse, error) {
	period, err := periodFrom(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return nil, err
	}
	cmd := ledger.ArrearsCommand{
		ArrearsID:         req.ArrearsID,
		Amount:            req.Amount,
		Type:              ledger.ArrearsType(req.ArrearsType),
		FundingSourceCode: req.FundingSourceCode,
		PayeeID:           req.PayeeID,
		PayeeName:         req.PayeeName,
		Period:            period,
		RecordedBy:        req.RecordedBy,
	}

	return s.record(ctx, id, func(l *ledger.FinancialLedger) (string, error) {
		return l.RecordArrears(cmd)
	})
}

func (s *LedgerService) record(ctx context.Context, id uuid.UUID, fn func(*ledger.FinancialLedger) (string, error)) (*TransactionResponse, error) {
	var txID string
	l, err := s.mutate(ctx, id, func(l *ledger.FinancialLedger) error {
		var err error
		txID, err = fn(l)
		return err
	})
	if err != nil {
		return nil, err
	}

	resp := toTransactionResponse(l, txID)
	fields := []zap.Field{
		zap.String("ledger_id", l.ID.String()),
		zap.String("transaction_id", txID),
	}
	if len(resp.Entries) > 0 {
		first := resp.Entries[0]
		if s.ledgerMetrics != nil {
			s.ledgerMetrics.RecordTransaction(ctx, first.Kind, first.Amount)
		}
		if first.PayeeID != "" {
			// payee_name is masked by the service logger
			fields = append(fields, zap.String("payee_id", first.PayeeID), zap.String("payee_name", first.PayeeName))
		}
	}
	logger.ForContext(ctx, s.logger).Info("Ledger transaction recorded", fields...)
	return resp, nil
}

// ===================== Provenance =====================

// RecordLandlordCommunication records contact with a landlord
func (s *LedgerService) RecordLandlordCommunication(ctx context.Context, id uuid.UUID, req RecordCommunicationRequest) (*CommunicationResponse, error) {
	cmd := ledger.CommunicationCommand{
		ExternalID:   req.CommunicationID,
		LandlordID:   req.LandlordID,
		LandlordName: req.LandlordName,
		Type:         ledger.CommunicationType(req.Type),
		Subject:      req.Subject,
		Content:      req.Content,
		RecordedBy:   req.RecordedBy,
	}
	if req.OccurredOn != nil {
		cmd.OccurredOn = *req.OccurredOn
	}

	var recorded ledger.LandlordCommunication
	l, err := s.mutate(ctx, id, func(l *ledger.FinancialLedger) error {
		var err error
		recorded, err = l.RecordLandlordCommunication(cmd)
		return err
	})
	if err != nil {
		return nil, err
	}
	return toCommunicationResponse(l.ID, recorded), nil
}

// AttachDocument records a supporting document. Content is uploaded to the
// document store only for ledgers that may retain it.
func (s *LedgerService) AttachDocument(ctx context.Context, id uuid.UUID, req AttachDocumentRequest) (*DocumentResponse, error) {
	unlock, err := s.locker.Lock(ctx, ledgerLockKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	l, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	l.UseClock(s.clock)

	cmd := ledger.DocumentCommand{
		ExternalID:   req.DocumentID,
		Name:         req.Name,
		DocumentType: req.DocumentType,
		ContentType:  req.ContentType,
		SizeBytes:    int64(len(req.Content)),
		UploadedBy:   req.UploadedBy,
	}

	upload := len(req.Content) > 0 && s.documents != nil && !l.IsVAWAProtected()
	if upload {
		cmd.StorageKey = documentStorageKey(l.ID, req.Name)
	}

	attached, err := l.AttachDocument(cmd)
	if err != nil {
		return nil, err
	}

	if upload {
		if err := s.documents.Upload(ctx, cmd.StorageKey, req.Content, req.ContentType); err != nil {
			return nil, fmt.Errorf("failed to upload document content: %w", err)
		}
	}

	if err := s.repo.Save(ctx, l); err != nil {
		if upload {
			if delErr := s.documents.DeleteObject(ctx, cmd.StorageKey); delErr != nil {
				s.logger.Warn("Failed to remove orphaned document content",
					zap.String("storage_key", cmd.StorageKey),
					zap.Error(delErr),
				)
			}
		}
		return nil, err
	}
	s.publishEvents(ctx, l)
	return toDocumentResponse(l.ID, attached), nil
}

// ===================== Queries =====================

// DocumentDownloadLink returns a download link for a document whose content
// was retained. Documents of VAWA-protected ledgers never have content.
func (s *LedgerService) DocumentDownloadLink(ctx context.Context, ledgerID, documentID uuid.UUID) (*DocumentLinkResponse, error) {
	l, err := s.repo.FindByID(ctx, ledgerID)
	if err != nil {
		return nil, err
	}

	for _, d := range l.Documents() {
		if d.ID != documentID {
			continue
		}
		linker, ok := s.documents.(DocumentLinker)
		if !d.ContentRetained() || !ok {
			return nil, ErrDocumentContentUnavailable
		}
		url, expiresAt, err := linker.PresignDownload(ctx, d.StorageKey, DocumentLinkTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to sign document link: %w", err)
		}
		return &DocumentLinkResponse{DocumentID: d.ID, Name: d.Name, URL: url, ExpiresAt: expiresAt}, nil
	}
	return nil, ErrDocumentNotFound
}

// GetLedger returns a ledger by ID
func (s *LedgerService) GetLedger(ctx context.Context, id uuid.UUID) (*LedgerResponse, error) {
	l, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toLedgerResponse(l)
	return &resp, nil
}

// GetClientLedgers returns all ledgers of a client
func (s *LedgerService) GetClientLedgers(ctx context.Context, clientID uuid.UUID) ([]LedgerResponse, error) {
	ledgers, err := s.repo.FindByClientID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return toLedgerResponses(ledgers), nil
}

// GetActiveClientLedger returns the client's ACTIVE ledger
func (s *LedgerService) GetActiveClientLedger(ctx context.Context, clientID uuid.UUID) (*LedgerResponse, error) {
	active, err := s.repo.FindByClientIDAndStatus(ctx, clientID, ledger.LedgerStatusActive)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, ledger.ErrLedgerNotFound
	}
	resp := toLedgerResponse(mostRecent(active))
	return &resp, nil
}

// ListLedgers returns ledgers matching the filter
func (s *LedgerService) ListLedgers(ctx context.Context, filter LedgerListFilter) ([]LedgerResponse, int64, error) {
	domainFilter := ledger.LedgerFilter{
		Filter:            shared.DefaultFilter(),
		ClientID:          filter.ClientID,
		HouseholdID:       filter.HouseholdID,
		EnrollmentID:      filter.EnrollmentID,
		FundingSourceCode: filter.FundingSource,
	}
	if filter.Page > 0 {
		domainFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		domainFilter.PageSize = filter.PageSize
	}
	if filter.Status != "" {
		status := ledger.LedgerStatus(strings.ToUpper(filter.Status))
		if !status.IsValid() {
			return nil, 0, shared.NewDomainError("INVALID_STATUS", fmt.Sprintf("Unknown ledger status %q", filter.Status))
		}
		domainFilter.Status = &status
	}

	ledgers, err := s.repo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return toLedgerResponses(ledgers), total, nil
}

// ListEntries returns the ledger's entries in recording order, filtered and paginated
func (s *LedgerService) ListEntries(ctx context.Context, id uuid.UUID, filter EntryListFilter) ([]EntryResponse, int64, error) {
	l, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, 0, err
	}

	matched := make([]ledger.LedgerEntry, 0, l.EntryCount())
	for _, e := range l.Entries() {
		if entryMatches(e, filter) {
			matched = append(matched, e)
		}
	}
	total := int64(len(matched))

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 100
	}
	start := (page - 1) * pageSize
	if start >= len(matched) {
		return []EntryResponse{}, total, nil
	}
	end := min(start+pageSize, len(matched))
	return toEntryResponses(matched[start:end]), total, nil
}

func entryMatches(e ledger.LedgerEntry, f EntryListFilter) bool {
	switch {
	case f.Type != "" && !strings.EqualFold(string(e.Type), f.Type):
		return false
	case f.Account != "" && !strings.EqualFold(string(e.Account), f.Account) && e.Account.Code() != f.Account:
		return false
	case f.Kind != "" && !strings.EqualFold(string(e.Kind), f.Kind):
		return false
	case f.FundingSourceCode != "" && e.FundingSourceCode != f.FundingSourceCode:
		return false
	case f.PayeeID != "" && e.PayeeID != f.PayeeID:
		return false
	case f.TransactionID != "" && e.TransactionID != f.TransactionID:
		return false
	case f.FromDate != nil && e.RecordedAt.Before(*f.FromDate):
		return false
	case f.ToDate != nil && e.RecordedAt.After(*f.ToDate):
		return false
	}
	return true
}

// GetLandlordView returns the ledger as a landlord may see it
func (s *LedgerService) GetLandlordView(ctx context.Context, id uuid.UUID, landlordID string) (*LandlordViewResponse, error) {
	if strings.TrimSpace(landlordID) == "" {
		return nil, shared.NewDomainError("INVALID_LANDLORD", "Landlord ID cannot be empty")
	}
	l, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view, err := s.projector.Project(ctx, l, landlordID)
	if err != nil {
		return nil, err
	}
	return toLandlordViewResponse(view), nil
}

// FindUnbalancedLedgers returns ledgers whose totals disagree
func (s *LedgerService) FindUnbalancedLedgers(ctx context.Context) ([]LedgerResponse, error) {
	ledgers, err := s.repo.FindUnbalanced(ctx)
	if err != nil {
		return nil, err
	}
	return toLedgerResponses(ledgers), nil
}

// FindLedgersWithOverdueArrears returns ledgers holding arrears older than the
// overdue threshold
func (s *LedgerService) FindLedgersWithOverdueArrears(ctx context.Context) ([]LedgerResponse, error) {
	ledgers, err := s.repo.FindWithOverdueArrears(ctx, s.policy.OverdueCutoff(s.clock()))
	if err != nil {
		return nil, err
	}
	return toLedgerResponses(ledgers), nil
}

// FindLedgersWithUnmatchedDeposits returns ledgers holding old deposits not yet
// consumed by disbursements
func (s *LedgerService) FindLedgersWithUnmatchedDeposits(ctx context.Context) ([]LedgerResponse, error) {
	ledgers, err := s.repo.FindWithUnmatchedDeposits(ctx, s.policy.UnmatchedCutoff(s.clock()))
	if err != nil {
		return nil, err
	}
	return toLedgerResponses(ledgers), nil
}

// ===================== Helpers =====================

// mutate loads the ledger under its lock, applies fn and saves the result.
// Nothing is saved when fn fails.
func (s *LedgerService) mutate(ctx context.Context, id uuid.UUID, fn func(*ledger.FinancialLedger) error) (*ledger.FinancialLedger, error) {
	unlock, err := s.locker.Lock(ctx, ledgerLockKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	l, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	l.UseClock(s.clock)

	if err := fn(l); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, l); err != nil {
		return nil, err
	}
	s.publishEvents(ctx, l)
	return l, nil
}

func (s *LedgerService) publishEvents(ctx context.Context, l *ledger.FinancialLedger) {
	events := l.PullEvents()
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Error("Failed to publish ledger events",
			zap.String("ledger_id", l.ID.String()),
			zap.Int("event_count", len(events)),
			zap.Error(err),
		)
	}
}

func periodFrom(start, end *time.Time) (ledger.Period, error) {
	switch {
	case start == nil && end == nil:
		return ledger.Period{}, nil
	case start == nil || end == nil:
		return ledger.Period{}, ledger.ErrPeriodIncomplete
	}
	return ledger.NewPeriod(*start, *end), nil
}

func mostRecent(ledgers []*ledger.FinancialLedger) *ledger.FinancialLedger {
	sorted := append([]*ledger.FinancialLedger(nil), ledgers...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	return sorted[0]
}

func ledgerLockKey(id uuid.UUID) string {
	return "ledger:" + id.String()
}

func clientLockKey(id uuid.UUID) string {
	return "ledger:client:" + id.String()
}

func documentStorageKey(ledgerID uuid.UUID, name string) string {
	return fmt.Sprintf("ledgers/%s/documents/%s-%s", ledgerID, uuid.NewString(), sanitizeFileName(name))
}

func sanitizeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}
