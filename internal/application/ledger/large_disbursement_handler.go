package ledger

import (
	"context"
	"fmt"

	"github.com/haven/ledger/internal/domain/ledger"
	"github.com/haven/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// LargeDisbursementHandler raises a LARGE_DISBURSEMENT alert as soon as a
// disbursement above the threshold is recorded, ahead of the daily sweep
type LargeDisbursementHandler struct {
	alerts *AlertsService
	policy ledger.AlertPolicy
	logger *zap.Logger
}

// NewLargeDisbursementHandler creates a new LargeDisbursementHandler
func NewLargeDisbursementHandler(alerts *AlertsService, policy ledger.AlertPolicy, logger *zap.Logger) *LargeDisbursementHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LargeDisbursementHandler{
		alerts: alerts,
		policy: policy,
		logger: logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *LargeDisbursementHandler) EventTypes() []string {
	return []string{ledger.EventTypeTransactionRecorded}
}

// Handle processes a TransactionRecorded event
func (h *LargeDisbursementHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	e, ok := event.(*ledger.TransactionRecordedEvent)
	if !ok {
		h.logger.Error("Unexpected event type",
			zap.String("expected", ledger.EventTypeTransactionRecorded),
			zap.String("actual", event.EventType()),
		)
		return nil
	}
	if !e.Amount.GreaterThan(h.policy.LargeDisbursementThreshold) {
		return nil
	}

	alert := ledger.NewAlert(
		ledger.AlertLargeDisbursement,
		ledger.SeverityMedium,
		e.ClientID,
		e.LedgerID,
		"Large disbursement recorded",
		fmt.Sprintf("Disbursement %s of %s exceeds the %s threshold", e.TransactionID, ledger.FormatUSD(e.Amount), ledger.FormatUSD(h.policy.LargeDisbursementThreshold)),
		e.Amount,
		e.OccurredAt(),
	)
	alert.Details = []ledger.LargeDisbursementDetail{{
		TransactionID: e.TransactionID,
		Amount:        e.Amount,
		PayeeName:     e.PayeeName,
		RecordedBy:    e.RecordedBy,
		RecordedOn:    e.OccurredAt(),
	}}

	h.logger.Info("Large disbursement detected",
		zap.String("ledger_id", e.LedgerID.String()),
		zap.String("transaction_id", e.TransactionID),
		zap.String("amount", e.Amount.String()),
	)
	h.alerts.Raise(ctx, alert)
	return nil
}

var _ shared.EventHandler = (*LargeDisbursementHandler)(nil)
