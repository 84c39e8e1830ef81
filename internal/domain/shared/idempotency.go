package shared

import (
	"context"
	"time"
)

// IdempotencyStore records handled event IDs so that redelivered events
// (outbox retries, replays) are not applied twice.
type IdempotencyStore interface {
	// MarkProcessed returns true if the event was newly marked, false if already seen
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	// Release forgets eventID so a failed delivery can be retried
	Release(ctx context.Context, eventID string) error
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL after which the same event ID may be handled again
	TTL     time.Duration
	Enabled bool
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
