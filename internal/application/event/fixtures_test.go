package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	apprevenue "github.com/revsplit/backend/internal/application/revenue"
	"github.com/revsplit/backend/internal/domain/revenue"
	"github.com/revsplit/backend/internal/domain/shared"
	"github.com/revsplit/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockBalanceCache struct {
	mock.Mock
}

func (m *MockBalanceCache) Get(ctx context.Context, party revenue.Party, currency valueobject.Currency) (*revenue.PartyBalance, bool, error) {
	args := m.Called(ctx, party, currency)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*revenue.PartyBalance), args.Bool(1), args.Error(2)
}

func (m *MockBalanceCache) Set(ctx context.Context, balance revenue.PartyBalance) error {
	return m.Called(ctx, balance).Error(0)
}

func (m *MockBalanceCache) Invalidate(ctx context.Context, party revenue.Party) error {
	return m.Called(ctx, party).Error(0)
}

type MockRevenueProcessor struct {
	mock.Mock
}

func (m *MockRevenueProcessor) ProcessPayment(ctx context.Context, paymentID uuid.UUID, ruleID *uuid.UUID) (*apprevenue.ProcessPaymentResult, error) {
	args := m.Called(ctx, paymentID, ruleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apprevenue.ProcessPaymentResult), args.Error(1)
}

type MockArchiveStore struct {
	mock.Mock
}

func (m *MockArchiveStore) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	return m.Called(ctx, key, body, contentType).Error(0)
}

type MockRevenueMetrics struct {
	mock.Mock
}

func (m *MockRevenueMetrics) RecordPaymentVerified(ctx context.Context, currency string) {
	m.Called(ctx, currency)
}

func (m *MockRevenueMetrics) RecordRevenueProcessed(ctx context.Context, currency string, amount decimal.Decimal, entries int) {
	m.Called(ctx, currency, amount, entries)
}

func (m *MockRevenueMetrics) RecordPaymentReversed(ctx context.Context, currency string, entries int) {
	m.Called(ctx, currency, entries)
}

func (m *MockRevenueMetrics) RecordSettlement(ctx context.Context, party, currency string, amount decimal.Decimal, entries int) {
	m.Called(ctx, party, currency, amount, entries)
}

// otherEvent is a domain event no revenue handler subscribes to
type otherEvent struct {
	shared.BaseDomainEvent
}

func newOtherEvent() *otherEvent {
	return &otherEvent{BaseDomainEvent: shared.NewBaseDomainEvent("SomethingElse", "Other", uuid.New())}
}

func entriesCreatedEvent(parties ...revenue.Party) *revenue.LedgerEntriesCreatedEvent {
	paymentID := uuid.New()
	return &revenue.LedgerEntriesCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(revenue.EventTypeLedgerEntriesCreated, revenue.AggregateTypePayment, paymentID),
		PaymentID:       paymentID,
		Parties:         parties,
		Currency:        "USD",
		Count:           len(parties),
	}
}

func settlementCreatedEvent(party revenue.Party, total string, date time.Time) *revenue.SettlementCreatedEvent {
	id := uuid.New()
	return &revenue.SettlementCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(revenue.EventTypeSettlementCreated, revenue.AggregateTypeSettlement, id),
		SettlementID:    id,
		Party:           party,
		TotalAmount:     decimal.RequireFromString(total),
		Currency:        "USD",
		LedgerEntryIDs:  []uuid.UUID{uuid.New(), uuid.New()},
		CreatedBy:       "ops-1",
		SettlementDate:  date,
	}
}

func paymentVerifiedEvent() *revenue.PaymentVerifiedEvent {
	paymentID := uuid.New()
	return &revenue.PaymentVerifiedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(revenue.EventTypePaymentVerified, revenue.AggregateTypePayment, paymentID),
		PaymentID:       paymentID,
		Amount:          decimal.RequireFromString("1000"),
		Currency:        "USD",
		Approvers:       []string{"u1", "u2", "u3"},
		VerifiedAt:      time.Now().UTC(),
	}
}
