package messaging

import (
	"context"
	"fmt"

	"github.com/haven/ledger/internal/domain/shared"
	"github.com/haven/ledger/internal/infrastructure/event"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher forwards domain events to the ledger events topic. It is
// subscribed to the in-process bus as a wildcard handler.
type EventPublisher struct {
	writer MessageWriter
	codec  *event.Codec
	logger *zap.Logger
}

// NewEventPublisher creates a new EventPublisher. A nil codec uses the
// ledger codec.
func NewEventPublisher(writer MessageWriter, codec *event.Codec, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if codec == nil {
		codec = event.NewLedgerCodec()
	}
	return &EventPublisher{
		writer: writer,
		codec:  codec,
		logger: logger,
	}
}

// EventTypes returns nil so the publisher receives every event
func (p *EventPublisher) EventTypes() []string {
	return nil
}

// Handle writes one event keyed by its aggregate id
func (p *EventPublisher) Handle(ctx context.Context, evt shared.DomainEvent) error {
	return p.Publish(ctx, evt)
}

// Publish writes the events in one batch
func (p *EventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, evt := range events {
		payload, err := p.codec.Encode(evt)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(evt.AggregateID().String()),
			Value: payload,
			Time:  evt.OccurredAt(),
			Headers: []kafka.Header{
				{Key: HeaderEventType, Value: []byte(evt.EventType())},
				{Key: HeaderEventID, Value: []byte(evt.EventID().String())},
				{Key: HeaderContentType, Value: []byte("application/json")},
			},
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to write ledger events: %w", err)
	}

	p.logger.Debug("ledger events published", zap.Int("count", len(msgs)))
	return nil
}

// Close closes the underlying writer
func (p *EventPublisher) Close() error {
	return p.writer.Close()
}

var (
	_ shared.EventHandler   = (*EventPublisher)(nil)
	_ shared.EventPublisher = (*EventPublisher)(nil)
)
