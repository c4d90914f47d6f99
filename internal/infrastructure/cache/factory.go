package cache

import (
	"github.com/haven/ledger/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewIdempotencyStore returns the Redis store under keyPrefix + "idempotency:"
// when client is set and the in-memory store otherwise
func NewIdempotencyStore(client *redis.Client, keyPrefix string, log *zap.Logger) shared.IdempotencyStore {
	if log == nil {
		log = zap.NewNop()
	}
	if client != nil {
		log.Info("Using Redis idempotency store")
		return NewRedisIdempotencyStore(client, keyPrefix+"idempotency:")
	}
	log.Warn("Redis disabled, using in-memory idempotency store; duplicates are only suppressed per instance")
	return NewInMemoryIdempotencyStore()
}
