package event

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	apprevenue "github.com/revsplit/backend/internal/application/revenue"
	"github.com/revsplit/backend/internal/domain/revenue"
	"github.com/revsplit/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// RevenueProcessor splits a verified payment into ledger entries
type RevenueProcessor interface {
	ProcessPayment(ctx context.Context, paymentID uuid.UUID, ruleID *uuid.UUID) (*apprevenue.ProcessPaymentResult, error)
}

// AutoRevenueProcessor splits revenue under the default rule as soon as a
// payment reaches quorum
type AutoRevenueProcessor struct {
	processor RevenueProcessor
	logger    *zap.Logger
}

// NewAutoRevenueProcessor creates a new handler for payment verified events
func NewAutoRevenueProcessor(processor RevenueProcessor, logger *zap.Logger) *AutoRevenueProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutoRevenueProcessor{processor: processor, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *AutoRevenueProcessor) EventTypes() []string {
	return []string{revenue.EventTypePaymentVerified}
}

// Handle processes the verified payment. Already processed payments are
// skipped, as are payments that lost quorum before delivery. A missing
// default rule is returned so the event stays visible in the outbox.
func (h *AutoRevenueProcessor) Handle(ctx context.Context, event shared.DomainEvent) error {
	verified, ok := event.(*revenue.PaymentVerifiedEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", revenue.EventTypePaymentVerified),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			revenue.EventTypePaymentVerified, event.EventType())
	}

	result, err := h.processor.ProcessPayment(ctx, verified.PaymentID, nil)
	switch {
	case err == nil:
		h.logger.Info("revenue processed automatically",
			zap.String("payment_id", verified.PaymentID.String()),
			zap.String("rule_id", result.RuleID.String()),
			zap.Int("entries", len(result.Entries)),
		)
		return nil
	case errors.Is(err, shared.ErrAlreadyProcessed):
		h.logger.Debug("payment already processed, skipping",
			zap.String("payment_id", verified.PaymentID.String()))
		return nil
	case errors.Is(err, shared.ErrInvalidState):
		h.logger.Warn("payment no longer eligible for automatic processing",
			zap.String("payment_id", verified.PaymentID.String()),
			zap.Error(err),
		)
		return nil
	case isMissingDefaultRule(err):
		h.logger.Error("no default revenue rule, payment left verified and unprocessed",
			zap.String("payment_id", verified.PaymentID.String()),
		)
		return fmt.Errorf("process payment %s: %w", verified.PaymentID, err)
	default:
		h.logger.Error("automatic revenue processing failed",
			zap.String("payment_id", verified.PaymentID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("process payment %s: %w", verified.PaymentID, err)
	}
}

func isMissingDefaultRule(err error) bool {
	var de *shared.DomainError
	return errors.As(err, &de) && de.Reason == revenue.ReasonNoDefaultRule
}
