package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	ledgerapp "github.com/haven/ledger/internal/application/ledger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// PaymentMessageHandler records one inbound payment system message
type PaymentMessageHandler interface {
	HandleMessage(ctx context.Context, msg ledgerapp.PaymentMessage) error
}

// PaymentConsumerConfig holds retry settings for transient failures
type PaymentConsumerConfig struct {
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultPaymentConsumerConfig returns 5 retries with a 2 second base delay
func DefaultPaymentConsumerConfig() PaymentConsumerConfig {
	return PaymentConsumerConfig{
		MaxRetries: 5,
		RetryDelay: 2 * time.Second,
	}
}

// PaymentConsumerStats is a snapshot of consumer counters
type PaymentConsumerStats struct {
	Processed int64 `json:"processed"`
	Rejected  int64 `json:"rejected"`
	Abandoned int64 `json:"abandoned"`
}

// PaymentConsumer reads the assistance payment feed and records every
// message through the integration handler. Offsets are committed once a
// message is recorded or known to be unrecordable.
type PaymentConsumer struct {
	reader  MessageReader
	handler PaymentMessageHandler
	config  PaymentConsumerConfig
	logger  *zap.Logger

	mu    sync.Mutex
	stats PaymentConsumerStats

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPaymentConsumer creates a new PaymentConsumer
func NewPaymentConsumer(reader MessageReader, handler PaymentMessageHandler, config PaymentConsumerConfig, logger *zap.Logger) *PaymentConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	return &PaymentConsumer{
		reader:  reader,
		handler: handler,
		config:  config,
		logger:  logger,
	}
}

// Start runs the consume loop in the background
func (c *PaymentConsumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("payment consumer stopped", zap.Error(err))
		}
	}()
	c.logger.Info("payment consumer started")
}

// Stop cancels the consume loop and closes the reader
func (c *PaymentConsumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
	return c.reader.Close()
}

// Run consumes until the context is cancelled or the reader fails
func (c *PaymentConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("fetch payment message: %w", err)
		}

		if err := c.process(ctx, msg); err != nil {
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("commit payment message: %w", err)
		}
	}
}

// process returns an error only when the context ends mid-retry; every other
// outcome is committed.
func (c *PaymentConsumer) process(ctx context.Context, msg kafka.Message) error {
	log := c.logger.With(
		zap.String("topic", msg.Topic),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
	)

	var payment ledgerapp.PaymentMessage
	if err := json.Unmarshal(msg.Value, &payment); err != nil {
		log.Error("undecodable payment message dropped", zap.Error(err))
		c.count(func(s *PaymentConsumerStats) { s.Rejected++ })
		return nil
	}
	if payment.MessageID == "" {
		payment.MessageID = header(msg, HeaderEventID)
	}
	log = log.With(zap.String("message_id", payment.MessageID), zap.String("transaction_id", payment.TransactionID))

	for attempt := 0; ; attempt++ {
		err := c.handler.HandleMessage(ctx, payment)
		switch {
		case err == nil:
			c.count(func(s *PaymentConsumerStats) { s.Processed++ })
			return nil
		case ledgerapp.IsPermanent(err):
			log.Warn("payment message rejected", zap.Error(err))
			c.count(func(s *PaymentConsumerStats) { s.Rejected++ })
			return nil
		case attempt >= c.config.MaxRetries:
			log.Error("payment message abandoned after retries", zap.Int("attempts", attempt+1), zap.Error(err))
			c.count(func(s *PaymentConsumerStats) { s.Abandoned++ })
			return nil
		}

		delay := c.config.RetryDelay * time.Duration(1<<attempt)
		log.Warn("payment message failed, retrying", zap.Int("attempt", attempt+1), zap.Duration("delay", delay), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (c *PaymentConsumer) count(fn func(*PaymentConsumerStats)) {
	c.mu.Lock()
	fn(&c.stats)
	c.mu.Unlock()
}

// Stats returns a snapshot of the consumer counters
func (c *PaymentConsumer) Stats() PaymentConsumerStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
