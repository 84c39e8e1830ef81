package event

import (
	"context"
	"fmt"

	"github.com/revsplit/backend/internal/domain/revenue"
	"github.com/revsplit/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// RevenueMetrics receives business counters. Implemented by the telemetry
// package on top of OpenTelemetry instruments.
type RevenueMetrics interface {
	RecordPaymentVerified(ctx context.Context, currency string)
	RecordRevenueProcessed(ctx context.Context, currency string, amount decimal.Decimal, entries int)
	RecordPaymentReversed(ctx context.Context, currency string, entries int)
	RecordSettlement(ctx context.Context, party, currency string, amount decimal.Decimal, entries int)
}

// RevenueMetricsRecorder turns revenue domain events into metric updates
type RevenueMetricsRecorder struct {
	metrics RevenueMetrics
}

func NewRevenueMetricsRecorder(metrics RevenueMetrics) *RevenueMetricsRecorder {
	return &RevenueMetricsRecorder{metrics: metrics}
}

// EventTypes returns the event types this handler is interested in
func (h *RevenueMetricsRecorder) EventTypes() []string {
	return []string{
		revenue.EventTypePaymentVerified,
		revenue.EventTypePaymentRevenueProcessed,
		revenue.EventTypePaymentReversed,
		revenue.EventTypeSettlementCreated,
	}
}

func (h *RevenueMetricsRecorder) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *revenue.PaymentVerifiedEvent:
		h.metrics.RecordPaymentVerified(ctx, e.Currency)
	case *revenue.PaymentRevenueProcessedEvent:
		h.metrics.RecordRevenueProcessed(ctx, e.Currency, e.Amount, len(e.Entries))
	case *revenue.PaymentReversedEvent:
		h.metrics.RecordPaymentReversed(ctx, e.Currency, len(e.Entries))
	case *revenue.SettlementCreatedEvent:
		h.metrics.RecordSettlement(ctx, e.Party.String(), e.Currency, e.TotalAmount, len(e.LedgerEntryIDs))
	default:
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}
	return nil
}
