package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/haven/ledger/internal/domain/ledger"
	"github.com/haven/ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordedEvent(protected bool) *ledger.TransactionRecordedEvent {
	ledgerID := uuid.New()
	at := time.Date(2024, 5, 1, 14, 30, 0, 0, time.UTC)
	return &ledger.TransactionRecordedEvent{
		EventHeader: shared.NewEventHeaderAt(ledger.EventTypeTransactionRecorded, ledger.AggregateTypeFinancialLedger, ledgerID, at),
		LedgerID:        ledgerID,
		ClientID:        uuid.New(),
		TransactionID:   "PAY-2024-0501",
		Amount:          decimal.RequireFromString("950.00"),
		PayeeID:         "LL-17",
		PayeeName:       "Maple Court Apartments",
		VAWAProtected:   protected,
		RecordedBy:      "case-manager-4",
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := NewLedgerCodec()
	evt := recordedEvent(false)

	raw, err := codec.Encode(evt)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, evt.EventID(), env.ID)
	assert.Equal(t, ledger.EventTypeTransactionRecorded, env.Type)
	assert.Equal(t, 1, env.SchemaVersion)
	assert.Equal(t, evt.LedgerID, env.AggregateID)
	assert.True(t, evt.OccurredAt().Equal(env.OccurredAt))

	decoded, err := codec.Decode(raw)
	require.NoError(t, err)
	got, ok := decoded.(*ledger.TransactionRecordedEvent)
	require.True(t, ok)
	assert.Equal(t, evt.TransactionID, got.TransactionID)
	assert.True(t, evt.Amount.Equal(got.Amount))
	assert.Equal(t, "Maple Court Apartments", got.PayeeName)
	assert.Equal(t, ledger.EventTypeTransactionRecorded, got.EventType())
}

func TestCodec_StripsProtectedPayee(t *testing.T) {
	codec := NewLedgerCodec()
	evt := recordedEvent(true)

	raw, err := codec.Encode(evt)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "Maple Court")
	assert.Contains(t, string(raw), `"payee_id":"LL-17"`)

	assert.Equal(t, "Maple Court Apartments", evt.PayeeName, "the in-process event is untouched")
}

func TestCodec_DecodeErrors(t *testing.T) {
	codec := NewLedgerCodec()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"not json", `{`, "decode envelope"},
		{"unknown type", `{"type":"InventoryAdjusted","data":{}}`, "unknown event type"},
		{"bad payload", `{"type":"FinancialLedgerClosed","data":"oops"}`, "decode FinancialLedgerClosed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decode([]byte(tt.raw))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCodec_Types(t *testing.T) {
	assert.Equal(t, []string{
		ledger.EventTypeLedgerClosed,
		ledger.EventTypeLedgerCreated,
		ledger.EventTypeCommunicationRecorded,
		ledger.EventTypeDocumentAttached,
		ledger.EventTypeLedgerStatusChanged,
		ledger.EventTypeTransactionRecorded,
	}, NewLedgerCodec().Types())

	assert.Empty(t, NewCodec().Types())
}
