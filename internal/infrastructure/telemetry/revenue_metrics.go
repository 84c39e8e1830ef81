package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics constructor gets no meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

var (
	attrCurrency = attribute.Key("currency")
	attrParty    = attribute.Key("party")
)

// RevenueMetrics counts ledger activity per currency. Amounts are recorded
// as float64 counters in major units, which is precise enough for dashboards
// but never a source of truth.
type RevenueMetrics struct {
	paymentsVerified   metric.Int64Counter
	revenueProcessed   metric.Float64Counter
	entriesCreated     metric.Int64Counter
	paymentsReversed   metric.Int64Counter
	entriesReversed    metric.Int64Counter
	settlementsCreated metric.Int64Counter
	settledAmount      metric.Float64Counter
}

// NewRevenueMetrics registers the revenue instruments on meter
func NewRevenueMetrics(meter metric.Meter) (*RevenueMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	m := &RevenueMetrics{}
	var errs []error
	int64Counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("{count}"))
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to create counter %s: %w", name, err))
		}
		return c
	}
	amountCounter := func(name, desc string) metric.Float64Counter {
		c, err := meter.Float64Counter(name, metric.WithDescription(desc))
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to create counter %s: %w", name, err))
		}
		return c
	}

	m.paymentsVerified = int64Counter("revsplit.payments.verified", "Payments that reached the approval quorum")
	m.revenueProcessed = amountCounter("revsplit.revenue.processed.amount", "Payment amount split into ledger credits")
	m.entriesCreated = int64Counter("revsplit.ledger.entries.created", "Ledger credit entries created")
	m.paymentsReversed = int64Counter("revsplit.payments.reversed", "Processed payments that were reversed")
	m.entriesReversed = int64Counter("revsplit.ledger.entries.reversed", "Ledger debit entries written by reversals")
	m.settlementsCreated = int64Counter("revsplit.settlements.created", "Settlements recorded")
	m.settledAmount = amountCounter("revsplit.settlements.amount", "Amount cleared by settlements")

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *RevenueMetrics) RecordPaymentVerified(ctx context.Context, currency string) {
	m.paymentsVerified.Add(ctx, 1, metric.WithAttributes(attrCurrency.String(currency)))
}

func (m *RevenueMetrics) RecordRevenueProcessed(ctx context.Context, currency string, amount decimal.Decimal, entries int) {
	attrs := metric.WithAttributes(attrCurrency.String(currency))
	m.revenueProcessed.Add(ctx, amount.InexactFloat64(), attrs)
	m.entriesCreated.Add(ctx, int64(entries), attrs)
}

func (m *RevenueMetrics) RecordPaymentReversed(ctx context.Context, currency string, entries int) {
	attrs := metric.WithAttributes(attrCurrency.String(currency))
	m.paymentsReversed.Add(ctx, 1, attrs)
	m.entriesReversed.Add(ctx, int64(entries), attrs)
}

func (m *RevenueMetrics) RecordSettlement(ctx context.Context, party, currency string, amount decimal.Decimal, entries int) {
	attrs := metric.WithAttributes(attrCurrency.String(currency), attrParty.String(party))
	m.settlementsCreated.Add(ctx, 1, attrs)
	if amount.IsPositive() {
		m.settledAmount.Add(ctx, amount.InexactFloat64(), attrs)
	}
}
