// Package notification provides the alert delivery channels used by the
// alerts service: structured log output and fan-out to several channels.
package notification

import (
	"context"
	"errors"
	"fmt"

	ledgerapp "github.com/haven/ledger/internal/application/ledger"
	"github.com/haven/ledger/internal/domain/ledger"
	"go.uber.org/zap"
)

// LogNotifier writes each alert delivery as a structured log entry.
// It is the fallback channel when no broker is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger.Named("alerts")}
}

// SendFinancialAlert implements ledgerapp.Notifier
func (n *LogNotifier) SendFinancialAlert(ctx context.Context, recipient string, alert ledger.Alert) error {
	fields := []zap.Field{
		zap.String("recipient", recipient),
		zap.String("alert_id", alert.ID.String()),
		zap.String("alert_type", string(alert.Type)),
		zap.String("severity", string(alert.Severity)),
		zap.String("ledger_id", alert.LedgerID.String()),
		zap.String("client_id", alert.ClientID.String()),
		zap.String("amount", alert.Amount.StringFixed(2)),
		zap.String("title", alert.Title),
	}

	switch alert.Severity {
	case ledger.SeverityCritical, ledger.SeverityHigh:
		n.logger.Warn(alert.Message, fields...)
	default:
		n.logger.Info(alert.Message, fields...)
	}
	return nil
}

// FanoutNotifier delivers every alert through all of its channels. A
// failing channel does not stop the others; the joined error is returned.
type FanoutNotifier struct {
	channels []ledgerapp.Notifier
}

// NewFanoutNotifier creates a FanoutNotifier over the non-nil channels
func NewFanoutNotifier(channels ...ledgerapp.Notifier) *FanoutNotifier {
	f := &FanoutNotifier{}
	for _, c := range channels {
		if c != nil {
			f.channels = append(f.channels, c)
		}
	}
	return f
}

// SendFinancialAlert implements ledgerapp.Notifier
func (f *FanoutNotifier) SendFinancialAlert(ctx context.Context, recipient string, alert ledger.Alert) error {
	var errs []error
	for i, c := range f.channels {
		if err := c.SendFinancialAlert(ctx, recipient, alert); err != nil {
			errs = append(errs, fmt.Errorf("channel %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of channels
func (f *FanoutNotifier) Len() int {
	return len(f.channels)
}

var (
	_ ledgerapp.Notifier = (*LogNotifier)(nil)
	_ ledgerapp.Notifier = (*FanoutNotifier)(nil)
)
