// Package messaging connects the ledger to Kafka: outbound domain events and
// alerts, and the inbound assistance payment feed.
package messaging

import (
	"context"
	"time"

	"github.com/haven/ledger/internal/infrastructure/config"
	"github.com/segmentio/kafka-go"
)

// Header keys set on every outbound message
const (
	HeaderEventType   = "event_type"
	HeaderEventID     = "event_id"
	HeaderContentType = "content_type"
)

// MessageWriter is the subset of *kafka.Writer used by publishers
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageReader is the subset of *kafka.Reader used by consumers
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewWriter creates a writer for one topic. Messages with the same key land on
// the same partition, so events of one ledger stay ordered.
func NewWriter(cfg config.KafkaConfig, topic string) *kafka.Writer {
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           timeout,
		AllowAutoTopicCreation: true,
	}
}

// NewReader creates a consumer group reader for one topic
func NewReader(cfg config.KafkaConfig, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.ConsumerGroup,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10 << 20,
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
	})
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
