package event

import (
	"context"
	"sync/atomic"

	"github.com/haven/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// IdempotencyStats counts what an IdempotentHandler did with its events
type IdempotencyStats struct {
	Handled    int64 `json:"handled"`
	Duplicates int64 `json:"duplicates"`
	Failed     int64 `json:"failed"`
}

// IdempotentHandler runs the wrapped handler at most once per event id.
// The id is claimed before handling and released when the handler fails,
// so a redelivered event is retried and a handled one is skipped. The large
// disbursement detector is wrapped this way: a redelivered
// TransactionRecorded event must not raise a second alert.
type IdempotentHandler struct {
	next   shared.EventHandler
	store  shared.IdempotencyStore
	config shared.IdempotencyConfig
	logger *zap.Logger

	handled, duplicates, failed atomic.Int64
}

// IdempotentHandlerOption configures an IdempotentHandler
type IdempotentHandlerOption func(*IdempotentHandler)

// WithIdempotencyConfig overrides the default ttl and switch
func WithIdempotencyConfig(config shared.IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.config = config
	}
}

// NewIdempotentHandler wraps next
func NewIdempotentHandler(next shared.EventHandler, store shared.IdempotencyStore, logger *zap.Logger, opts ...IdempotentHandlerOption) *IdempotentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &IdempotentHandler{
		next:   next,
		store:  store,
		config: shared.DefaultIdempotencyConfig(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// EventTypes delegates to the wrapped handler
func (h *IdempotentHandler) EventTypes() []string {
	return h.next.EventTypes()
}

// Handle implements shared.EventHandler. A store outage does not stop
// handling; the event is then handled without duplicate protection.
func (h *IdempotentHandler) Handle(ctx context.Context, evt shared.DomainEvent) error {
	if !h.config.Enabled || h.store == nil {
		return h.run(ctx, evt)
	}

	key := "event:" + evt.EventID().String()
	claimed, err := h.store.Claim(ctx, key, h.config.TTL)
	switch {
	case err != nil:
		h.logger.Warn("Idempotency store unavailable, handling event unguarded",
			zap.String("event_id", evt.EventID().String()),
			zap.String("event_type", evt.EventType()),
			zap.Error(err),
		)
		return h.run(ctx, evt)
	case !claimed:
		h.duplicates.Add(1)
		h.logger.Debug("Duplicate event skipped",
			zap.String("event_id", evt.EventID().String()),
			zap.String("event_type", evt.EventType()),
		)
		return nil
	}

	if err := h.run(ctx, evt); err != nil {
		if relErr := h.store.Release(ctx, key); relErr != nil {
			h.logger.Warn("Failed to release event claim",
				zap.String("event_id", evt.EventID().String()),
				zap.Error(relErr),
			)
		}
		return err
	}
	return nil
}

func (h *IdempotentHandler) run(ctx context.Context, evt shared.DomainEvent) error {
	if err := h.next.Handle(ctx, evt); err != nil {
		h.failed.Add(1)
		h.logger.Error("Event handler failed",
			zap.String("event_id", evt.EventID().String()),
			zap.String("event_type", evt.EventType()),
			zap.String("ledger_id", evt.AggregateID().String()),
			zap.Error(err),
		)
		return err
	}
	h.handled.Add(1)
	return nil
}

// Stats returns a snapshot of the counters
func (h *IdempotentHandler) Stats() IdempotencyStats {
	return IdempotencyStats{
		Handled:    h.handled.Load(),
		Duplicates: h.duplicates.Load(),
		Failed:     h.failed.Load(),
	}
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
