package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/haven/ledger/internal/domain/ledger"
	"github.com/haven/ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentMessageType identifies what an inbound integration message records
type PaymentMessageType string

const (
	PaymentMessagePayment PaymentMessageType = "PAYMENT"
	PaymentMessageDeposit PaymentMessageType = "DEPOSIT"
	PaymentMessageArrears PaymentMessageType = "ARREARS"
)

// PaymentMessage is a transaction published by the assistance payment system.
// The ledger for the client is opened on first use.
type PaymentMessage struct {
	MessageID         string             `json:"message_id"`
	Type              PaymentMessageType `json:"type"`
	ClientID          uuid.UUID          `json:"client_id"`
	EnrollmentID      uuid.UUID          `json:"enrollment_id"`
	HouseholdID       uuid.UUID          `json:"household_id"`
	VAWAProtected     bool               `json:"vawa_protected"`
	TransactionID     string             `json:"transaction_id"`
	Subtype           string             `json:"subtype,omitempty"`
	ArrearsType       string             `json:"arrears_type,omitempty"`
	Amount            decimal.Decimal    `json:"amount"`
	FundingSourceCode string             `json:"funding_source_code"`
	HUDCategoryCode   string             `json:"hud_category_code,omitempty"`
	PayeeID           string             `json:"payee_id,omitempty"`
	PayeeName         string             `json:"payee_name,omitempty"`
	DepositSource     string             `json:"deposit_source,omitempty"`
	TransactionDate   *time.Time         `json:"transaction_date,omitempty"`
	PeriodStart       *time.Time         `json:"period_start,omitempty"`
	PeriodEnd         *time.Time         `json:"period_end,omitempty"`
	RecordedBy        string             `json:"recorded_by"`
}

// IdempotencyKey returns the key used to detect redelivery
func (m PaymentMessage) IdempotencyKey() string {
	if m.MessageID != "" {
		return "ledger:payment-msg:" + m.MessageID
	}
	return "ledger:payment-tx:" + m.ClientID.String() + ":" + m.TransactionID
}

// ErrInvalidPaymentMessage wraps messages that can never be recorded
var ErrInvalidPaymentMessage = errors.New("invalid payment message")

// IsPermanent reports whether redelivering the message cannot succeed
func IsPermanent(err error) bool {
	if errors.Is(err, ErrInvalidPaymentMessage) {
		return true
	}
	var domainErr *shared.DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	return !errors.Is(err, ledger.ErrVersionConflict) && !errors.Is(err, shared.ErrConcurrencyConflict)
}

// PaymentIntegrationHandler records inbound payment system messages on the
// client's active ledger exactly once per message
type PaymentIntegrationHandler struct {
	ledgers     *LedgerService
	idempotency shared.IdempotencyStore
	config      shared.IdempotencyConfig
	logger      *zap.Logger
}

// NewPaymentIntegrationHandler creates a new PaymentIntegrationHandler.
// idempotency may be nil; duplicate transaction ids are still rejected by the ledger.
func NewPaymentIntegrationHandler(ledgers *LedgerService, idempotency shared.IdempotencyStore, logger *zap.Logger) *PaymentIntegrationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentIntegrationHandler{
		ledgers:     ledgers,
		idempotency: idempotency,
		config:      shared.DefaultIdempotencyConfig(),
		logger:      logger,
	}
}

// SetIdempotencyConfig overrides the idempotency configuration
func (h *PaymentIntegrationHandler) SetIdempotencyConfig(config shared.IdempotencyConfig) {
	h.config = config
}

// HandleMessage records one message. Redelivered messages and transactions
// already on the ledger are acknowledged without change.
func (h *PaymentIntegrationHandler) HandleMessage(ctx context.Context, msg PaymentMessage) error {
	if err := msg.validate(); err != nil {
		return err
	}

	key := msg.IdempotencyKey()
	guarded := false
	if h.idempotency != nil && h.config.Enabled {
		claimed, err := h.idempotency.Claim(ctx, key, h.config.TTL)
		switch {
		case err != nil:
			h.logger.Warn("Idempotency store unavailable, processing payment message unguarded",
				zap.String("key", key),
				zap.Error(err),
			)
		case !claimed:
			h.logger.Debug("Duplicate payment message skipped", zap.String("key", key))
			return nil
		default:
			guarded = true
		}
	}

	if err := h.apply(ctx, msg); err != nil {
		if guarded {
			if relErr := h.idempotency.Release(ctx, key); relErr != nil {
				h.logger.Warn("Failed to release payment message claim",
					zap.String("key", key),
					zap.Error(relErr),
				)
			}
		}
		return err
	}
	return nil
}

func (h *PaymentIntegrationHandler) apply(ctx context.Context, msg PaymentMessage) error {
	l, err := h.ledgers.getOrCreateActive(ctx, CreateLedgerRequest{
		ClientID:      msg.ClientID,
		EnrollmentID:  msg.EnrollmentID,
		HouseholdID:   msg.HouseholdID,
		VAWAProtected: msg.VAWAProtected,
		CreatedBy:     msg.recordedBy(),
	})
	if err != nil {
		return fmt.Errorf("failed to resolve active ledger: %w", err)
	}

	if err := h.record(ctx, l.ID, msg); err != nil {
		if !errors.Is(err, ledger.ErrDuplicateTransaction) {
			return err
		}
		h.logger.Info("Payment message already recorded on ledger",
			zap.String("ledger_id", l.ID.String()),
			zap.String("transaction_id", msg.TransactionID),
		)
	}
	return nil
}

func (h *PaymentIntegrationHandler) record(ctx context.Context, ledgerID uuid.UUID, msg PaymentMessage) error {
	var err error
	switch msg.Type {
	case PaymentMessagePayment:
		_, err = h.ledgers.RecordPaymentTransaction(ctx, ledgerID, RecordPaymentRequest{
			PaymentID:         msg.TransactionID,
			Subtype:           msg.Subtype,
			Amount:            msg.Amount,
			FundingSourceCode: msg.FundingSourceCode,
			HUDCategoryCode:   msg.HUDCategoryCode,
			PayeeID:           msg.PayeeID,
			PayeeName:         msg.PayeeName,
			PaymentDate:       msg.TransactionDate,
			PeriodStart:       msg.PeriodStart,
			PeriodEnd:         msg.PeriodEnd,
			RecordedBy:        msg.recordedBy(),
		})
	case PaymentMessageDeposit:
		_, err = h.ledgers.RecordFundingDeposit(ctx, ledgerID, RecordDepositRequest{
			DepositID:         msg.TransactionID,
			Amount:            msg.Amount,
			FundingSourceCode: msg.FundingSourceCode,
			DepositSource:     msg.DepositSource,
			DepositDate:       msg.TransactionDate,
			RecordedBy:        msg.recordedBy(),
		})
	case PaymentMessageArrears:
		_, err = h.ledgers.RecordArrears(ctx, ledgerID, RecordArrearsRequest{
			ArrearsID:         msg.TransactionID,
			Amount:            msg.Amount,
			ArrearsType:       msg.ArrearsType,
			FundingSourceCode: msg.FundingSourceCode,
			PayeeID:           msg.PayeeID,
			PayeeName:         msg.PayeeName,
			PeriodStart:       msg.PeriodStart,
			PeriodEnd:         msg.PeriodEnd,
			RecordedBy:        msg.recordedBy(),
		})
	}
	return err
}

func (m PaymentMessage) validate() error {
	switch {
	case m.ClientID == uuid.Nil:
		return fmt.Errorf("%w: client id is required", ErrInvalidPaymentMessage)
	case strings.TrimSpace(m.TransactionID) == "":
		return fmt.Errorf("%w: transaction id is required", ErrInvalidPaymentMessage)
	}
	switch m.Type {
	case PaymentMessagePayment, PaymentMessageDeposit, PaymentMessageArrears:
		return nil
	}
	return fmt.Errorf("%w: unknown message type %q", ErrInvalidPaymentMessage, m.Type)
}

func (m PaymentMessage) recordedBy() string {
	if m.RecordedBy != "" {
		return m.RecordedBy
	}
	return "payment-integration"
}
