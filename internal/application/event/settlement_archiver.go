package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/revsplit/backend/internal/domain/revenue"
	"github.com/revsplit/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ArchiveStore writes immutable objects to external storage
type ArchiveStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
}

// SettlementArchiver keeps a JSON audit copy of every settlement outside
// the primary store
type SettlementArchiver struct {
	store  ArchiveStore
	logger *zap.Logger
}

// NewSettlementArchiver creates a new handler for settlement created events
func NewSettlementArchiver(store ArchiveStore, logger *zap.Logger) *SettlementArchiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettlementArchiver{store: store, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *SettlementArchiver) EventTypes() []string {
	return []string{revenue.EventTypeSettlementCreated}
}

// SettlementArchiveKey is settlements/<yyyy>/<mm>/<id>.json of the settlement date
func SettlementArchiveKey(e *revenue.SettlementCreatedEvent) string {
	d := e.SettlementDate.UTC()
	return fmt.Sprintf("settlements/%04d/%02d/%s.json", d.Year(), int(d.Month()), e.SettlementID)
}

// Handle writes the settlement record. Writing the same key twice stores
// the same bytes, so redelivery is harmless.
func (h *SettlementArchiver) Handle(ctx context.Context, event shared.DomainEvent) error {
	created, ok := event.(*revenue.SettlementCreatedEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", revenue.EventTypeSettlementCreated),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			revenue.EventTypeSettlementCreated, event.EventType())
	}

	body, err := json.MarshalIndent(created, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settlement %s: %w", created.SettlementID, err)
	}

	key := SettlementArchiveKey(created)
	if err := h.store.PutObject(ctx, key, body, "application/json"); err != nil {
		h.logger.Error("failed to archive settlement",
			zap.String("settlement_id", created.SettlementID.String()),
			zap.String("key", key),
			zap.Error(err),
		)
		return fmt.Errorf("archive settlement %s: %w", created.SettlementID, err)
	}

	h.logger.Info("settlement archived",
		zap.String("settlement_id", created.SettlementID.String()),
		zap.String("party", created.Party.String()),
		zap.String("key", key),
	)
	return nil
}
