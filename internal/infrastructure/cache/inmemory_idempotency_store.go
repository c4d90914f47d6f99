package cache

import (
	"context"
	"sync"
	"time"

	"github.com/haven/ledger/internal/domain/shared"
)

// sweepEvery is the number of claims between sweeps of expired keys
const sweepEvery = 1024

// InMemoryIdempotencyStore keeps claims in process memory. Duplicates are
// only suppressed within one instance.
type InMemoryIdempotencyStore struct {
	mu     sync.Mutex
	claims map[string]time.Time // key -> expiry
	now    func() time.Time
	writes int
}

// NewInMemoryIdempotencyStore creates an empty store
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	return &InMemoryIdempotencyStore{
		claims: make(map[string]time.Time),
		now:    time.Now,
	}
}

// Claim reserves key unless an unexpired claim exists
func (s *InMemoryIdempotencyStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if exp, ok := s.claims[key]; ok && now.Before(exp) {
		return false, nil
	}
	s.claims[key] = now.Add(ttl)

	s.writes++
	if s.writes%sweepEvery == 0 {
		s.sweep(now)
	}
	return true, nil
}

// Release drops the claim on key
func (s *InMemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.claims, key)
	s.mu.Unlock()
	return nil
}

// Seen reports whether key has an unexpired claim
func (s *InMemoryIdempotencyStore) Seen(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.claims[key]
	return ok && s.now().Before(exp), nil
}

// Len returns the number of claims held, expired ones included
func (s *InMemoryIdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.claims)
}

// Close drops all claims
func (s *InMemoryIdempotencyStore) Close() error {
	s.mu.Lock()
	s.claims = make(map[string]time.Time)
	s.mu.Unlock()
	return nil
}

func (s *InMemoryIdempotencyStore) sweep(now time.Time) {
	for key, exp := range s.claims {
		if !now.Before(exp) {
			delete(s.claims, key)
		}
	}
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
