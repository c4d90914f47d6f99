package event

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/haven/ledger/internal/domain/ledger"
	"github.com/haven/ledger/internal/domain/shared"
)

// Exportable events strip fields that must not leave the service
type Exportable interface {
	ForExport() shared.DomainEvent
}

// Envelope is the wire form of a ledger event on the events topic
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	Type          string          `json:"type"`
	SchemaVersion int             `json:"schema_version"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Data          json.RawMessage `json:"data"`
}

// Codec encodes domain events into envelopes and decodes envelopes of
// registered types back into events. It is not safe for concurrent
// registration; register everything before use.
type Codec struct {
	types map[string]reflect.Type
}

// NewCodec creates a codec with no registered types
func NewCodec() *Codec {
	return &Codec{types: make(map[string]reflect.Type)}
}

// NewLedgerCodec creates a codec that knows every financial ledger event
func NewLedgerCodec() *Codec {
	c := NewCodec()
	c.Register(ledger.EventTypeLedgerCreated, &ledger.LedgerCreatedEvent{})
	c.Register(ledger.EventTypeTransactionRecorded, &ledger.TransactionRecordedEvent{})
	c.Register(ledger.EventTypeCommunicationRecorded, &ledger.CommunicationRecordedEvent{})
	c.Register(ledger.EventTypeDocumentAttached, &ledger.DocumentAttachedEvent{})
	c.Register(ledger.EventTypeLedgerStatusChanged, &ledger.LedgerStatusChangedEvent{})
	c.Register(ledger.EventTypeLedgerClosed, &ledger.LedgerClosedEvent{})
	return c
}

// Register maps eventType to the concrete type of sample
func (c *Codec) Register(eventType string, sample shared.DomainEvent) {
	t := reflect.TypeOf(sample)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	c.types[eventType] = t
}

// Types returns the registered event types in sorted order
func (c *Codec) Types() []string {
	out := make([]string, 0, len(c.types))
	for t := range c.types {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Encode wraps evt, after export filtering, in an envelope
func (c *Codec) Encode(evt shared.DomainEvent) ([]byte, error) {
	if e, ok := evt.(Exportable); ok {
		evt = e.ForExport()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", evt.EventType(), err)
	}

	version := 1
	if v, ok := evt.(interface{ SchemaVersion() int }); ok {
		version = v.SchemaVersion()
	}
	return json.Marshal(Envelope{
		ID:            evt.EventID(),
		Type:          evt.EventType(),
		SchemaVersion: version,
		AggregateType: evt.AggregateType(),
		AggregateID:   evt.AggregateID(),
		OccurredAt:    evt.OccurredAt().UTC(),
		Data:          data,
	})
}

// Decode reads an envelope and rebuilds the event it carries
func (c *Codec) Decode(raw []byte) (shared.DomainEvent, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	t, ok := c.types[env.Type]
	if !ok {
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}

	ptr := reflect.New(t).Interface()
	if err := json.Unmarshal(env.Data, ptr); err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	evt, ok := ptr.(shared.DomainEvent)
	if !ok {
		return nil, fmt.Errorf("%s does not implement DomainEvent", t)
	}
	return evt, nil
}
