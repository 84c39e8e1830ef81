package event

import (
	"context"
	"fmt"

	apprevenue "github.com/revsplit/backend/internal/application/revenue"
	"github.com/revsplit/backend/internal/domain/revenue"
	"github.com/revsplit/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// BalanceCacheInvalidator drops cached balances for every party whose
// ledger entries changed
type BalanceCacheInvalidator struct {
	cache  apprevenue.BalanceCache
	logger *zap.Logger
}

// NewBalanceCacheInvalidator creates a new handler for ledger-changing events
func NewBalanceCacheInvalidator(cache apprevenue.BalanceCache, logger *zap.Logger) *BalanceCacheInvalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BalanceCacheInvalidator{cache: cache, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *BalanceCacheInvalidator) EventTypes() []string {
	return []string{
		revenue.EventTypeLedgerEntriesCreated,
		revenue.EventTypeLedgerEntriesReversed,
		revenue.EventTypeSettlementCreated,
	}
}

// Handle invalidates the affected parties. A failed invalidation is
// returned so the outbox retries it.
func (h *BalanceCacheInvalidator) Handle(ctx context.Context, event shared.DomainEvent) error {
	var parties []revenue.Party
	switch e := event.(type) {
	case *revenue.LedgerEntriesCreatedEvent:
		parties = e.Parties
	case *revenue.LedgerEntriesReversedEvent:
		parties = e.Parties
	case *revenue.SettlementCreatedEvent:
		parties = []revenue.Party{e.Party}
	default:
		h.logger.Error("unexpected event type",
			zap.Strings("expected", h.EventTypes()),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}

	for _, party := range parties {
		if err := h.cache.Invalidate(ctx, party); err != nil {
			h.logger.Warn("failed to invalidate balance cache",
				zap.String("party", party.String()),
				zap.String("event_type", event.EventType()),
				zap.Error(err),
			)
			return fmt.Errorf("invalidate balance cache for %s: %w", party, err)
		}
	}

	h.logger.Debug("balance cache invalidated",
		zap.String("event_type", event.EventType()),
		zap.Int("parties", len(parties)),
	)
	return nil
}
