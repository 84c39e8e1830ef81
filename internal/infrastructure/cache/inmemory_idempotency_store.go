package cache

import (
	"context"
	"time"

	"github.com/revsplit/backend/internal/domain/shared"
)

// InMemoryIdempotencyStore keeps handled event keys in process memory.
// State is not shared between replicas, so it only suits single-instance
// deployments and tests.
type InMemoryIdempotencyStore struct {
	keys *expiringMap[struct{}]
}

// NewInMemoryIdempotencyStore creates a store that sweeps lapsed keys every
// five minutes
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	return &InMemoryIdempotencyStore{keys: newExpiringMap[struct{}](defaultSweepInterval)}
}

func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, eventID string, ttl time.Duration) (bool, error) {
	return s.keys.setIfAbsent(eventID, struct{}{}, ttl), nil
}

func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, eventID string) (bool, error) {
	_, ok := s.keys.get(eventID)
	return ok, nil
}

func (s *InMemoryIdempotencyStore) Release(_ context.Context, eventID string) error {
	s.keys.delete(eventID)
	return nil
}

// Close stops the sweeper. Safe to call more than once.
func (s *InMemoryIdempotencyStore) Close() error {
	s.keys.close()
	return nil
}

// Size returns the number of stored keys, lapsed ones included
func (s *InMemoryIdempotencyStore) Size() int {
	return s.keys.len()
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
