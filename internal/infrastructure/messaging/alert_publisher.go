package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	ledgerapp "github.com/haven/ledger/internal/application/ledger"
	"github.com/haven/ledger/internal/domain/ledger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// HeaderRecipient carries the alert recipient on ledger.alerts messages
const HeaderRecipient = "recipient"

// alertMessage is the wire form of one alert delivery
type alertMessage struct {
	Recipient string       `json:"recipient"`
	Alert     ledger.Alert `json:"alert"`
}

// AlertPublisher delivers financial alerts to the alerts topic, one message
// per recipient, keyed by client id.
type AlertPublisher struct {
	writer MessageWriter
	logger *zap.Logger
}

// NewAlertPublisher creates an AlertPublisher
func NewAlertPublisher(writer MessageWriter, logger *zap.Logger) *AlertPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertPublisher{writer: writer, logger: logger}
}

// SendFinancialAlert implements ledgerapp.Notifier
func (p *AlertPublisher) SendFinancialAlert(ctx context.Context, recipient string, alert ledger.Alert) error {
	payload, err := json.Marshal(alertMessage{Recipient: recipient, Alert: alert})
	if err != nil {
		return fmt.Errorf("failed to encode alert %s: %w", alert.ID, err)
	}

	msg := kafka.Message{
		Key:   []byte(alert.ClientID.String()),
		Value: payload,
		Time:  alert.AlertDate,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(alert.Type)},
			{Key: HeaderEventID, Value: []byte(alert.ID.String())},
			{Key: HeaderRecipient, Value: []byte(recipient)},
			{Key: HeaderContentType, Value: []byte("application/json")},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish alert %s: %w", alert.ID, err)
	}

	p.logger.Debug("Financial alert published",
		zap.String("alert_id", alert.ID.String()),
		zap.String("alert_type", string(alert.Type)),
		zap.String("recipient", recipient),
	)
	return nil
}

// Close closes the underlying writer
func (p *AlertPublisher) Close() error {
	return p.writer.Close()
}

var _ ledgerapp.Notifier = (*AlertPublisher)(nil)
