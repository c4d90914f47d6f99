package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers which domain events and inbound integration
// messages were already handled. A key is claimed before handling and
// released again when handling fails, so only successful work is remembered.
type IdempotencyStore interface {
	// Claim reserves key for ttl and reports whether this caller got it.
	// false means the key was handled, or is being handled, elsewhere.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release drops a claim so the next delivery of key is handled
	Release(ctx context.Context, key string) error
	// Seen reports whether key is currently claimed
	Seen(ctx context.Context, key string) (bool, error)
	Close() error
}

// IdempotencyConfig controls duplicate suppression
type IdempotencyConfig struct {
	// TTL is how long a handled key is remembered
	TTL     time.Duration
	Enabled bool
}

// DefaultIdempotencyConfig remembers keys for a day
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
