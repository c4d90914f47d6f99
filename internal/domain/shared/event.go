package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact raised by an aggregate
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
}

// EventHeader is embedded by concrete events and supplies DomainEvent
type EventHeader struct {
	ID       uuid.UUID `json:"event_id"`
	Kind     string    `json:"event_type"`
	At       time.Time `json:"occurred_at"`
	SourceID uuid.UUID `json:"aggregate_id"`
	Source   string    `json:"aggregate_type"`
	Schema   int       `json:"schema_version,omitempty"`
}

// NewEventHeader stamps a header with the current time
func NewEventHeader(kind, source string, sourceID uuid.UUID) EventHeader {
	return NewEventHeaderAt(kind, source, sourceID, time.Now())
}

// NewEventHeaderAt stamps a header with at
func NewEventHeaderAt(kind, source string, sourceID uuid.UUID, at time.Time) EventHeader {
	return EventHeader{ID: uuid.New(), Kind: kind, At: at, SourceID: sourceID, Source: source, Schema: 1}
}

func (h *EventHeader) EventID() uuid.UUID     { return h.ID }
func (h *EventHeader) EventType() string      { return h.Kind }
func (h *EventHeader) OccurredAt() time.Time  { return h.At }
func (h *EventHeader) AggregateID() uuid.UUID { return h.SourceID }
func (h *EventHeader) AggregateType() string  { return h.Source }

// SchemaVersion defaults to 1 for headers decoded without one
func (h *EventHeader) SchemaVersion() int {
	return max(h.Schema, 1)
}

// EventHandler reacts to published events. EventTypes lists the types it
// wants; an empty list subscribes to everything.
type EventHandler interface {
	Handle(ctx context.Context, evt DomainEvent) error
	EventTypes() []string
}

// EventPublisher hands events to whoever is listening
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus routes published events to subscribed handlers
type EventBus interface {
	EventPublisher
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
