package revenue

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/revsplit/backend/internal/domain/revenue"
	"github.com/revsplit/backend/internal/domain/shared"
	"github.com/revsplit/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/mock"
)

// MockEventPublisher records published events
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{events: make([]shared.DomainEvent, 0)}
}

func (m *MockEventPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventPublisher) GetEventsByType(eventType string) []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]shared.DomainEvent, 0)
	for _, e := range m.events {
		if e.EventType() == eventType {
			result = append(result, e)
		}
	}
	return result
}

func (m *MockEventPublisher) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// MockRevenueRuleRepository is a mock implementation of RevenueRuleRepository
type MockRevenueRuleRepository struct {
	mock.Mock
}

func (m *MockRevenueRuleRepository) FindByID(ctx context.Context, id uuid.UUID) (*revenue.RevenueRule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*revenue.RevenueRule), args.Error(1)
}

func (m *MockRevenueRuleRepository) FindDefault(ctx context.Context) (*revenue.RevenueRule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*revenue.RevenueRule), args.Error(1)
}

func (m *MockRevenueRuleRepository) FindAll(ctx context.Context, filter revenue.RevenueRuleFilter) ([]*revenue.RevenueRule, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]*revenue.RevenueRule), args.Get(1).(int64), args.Error(2)
}

func (m *MockRevenueRuleRepository) ExistsActiveByName(ctx context.Context, name string, excludeID *uuid.UUID) (bool, error) {
	args := m.Called(ctx, name, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRevenueRuleRepository) Create(ctx context.Context, rule *revenue.RevenueRule) error {
	args := m.Called(ctx, rule)
	return args.Error(0)
}

func (m *MockRevenueRuleRepository) SaveWithLock(ctx context.Context, rule *revenue.RevenueRule) error {
	args := m.Called(ctx, rule)
	return args.Error(0)
}

// MockPaymentRepository is a mock implementation of PaymentRepository
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*revenue.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*revenue.Payment), args.Error(1)
}

func (m *MockPaymentRepository) ExistsByReference(ctx context.Context, reference string) (bool, error) {
	args := m.Called(ctx, reference)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepository) FindAll(ctx context.Context, filter revenue.PaymentFilter) ([]*revenue.Payment, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]*revenue.Payment), args.Get(1).(int64), args.Error(2)
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *revenue.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) SaveWithLock(ctx context.Context, payment *revenue.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

// MockLedgerEntryRepository is a mock implementation of LedgerEntryRepository
type MockLedgerEntryRepository struct {
	mock.Mock
}

func (m *MockLedgerEntryRepository) CreateBatch(ctx context.Context, entries []*revenue.LedgerEntry) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

func (m *MockLedgerEntryRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*revenue.LedgerEntry, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*revenue.LedgerEntry), args.Error(1)
}

func (m *MockLedgerEntryRepository) FindByPayment(ctx context.Context, paymentID uuid.UUID) ([]*revenue.LedgerEntry, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*revenue.LedgerEntry), args.Error(1)
}

func (m *MockLedgerEntryRepository) FindForParty(ctx context.Context, party revenue.Party, currency *valueobject.Currency, status *revenue.EntryStatus) ([]*revenue.LedgerEntry, error) {
	args := m.Called(ctx, party, currency, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*revenue.LedgerEntry), args.Error(1)
}

func (m *MockLedgerEntryRepository) FindAll(ctx context.Context, filter revenue.LedgerEntryFilter) ([]*revenue.LedgerEntry, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]*revenue.LedgerEntry), args.Get(1).(int64), args.Error(2)
}

func (m *MockLedgerEntryRepository) CurrenciesForParty(ctx context.Context, party revenue.Party) ([]valueobject.Currency, error) {
	args := m.Called(ctx, party)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]valueobject.Currency), args.Error(1)
}

func (m *MockLedgerEntryRepository) ExistsForRule(ctx context.Context, ruleID uuid.UUID) (bool, error) {
	args := m.Called(ctx, ruleID)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedgerEntryRepository) ClearWithLock(ctx context.Context, entries []*revenue.LedgerEntry) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

// MockSettlementRepository is a mock implementation of SettlementRepository
type MockSettlementRepository struct {
	mock.Mock
}

func (m *MockSettlementRepository) Create(ctx context.Context, settlement *revenue.Settlement) error {
	args := m.Called(ctx, settlement)
	return args.Error(0)
}

func (m *MockSettlementRepository) FindByID(ctx context.Context, id uuid.UUID) (*revenue.Settlement, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*revenue.Settlement), args.Error(1)
}

func (m *MockSettlementRepository) FindAll(ctx context.Context, filter revenue.SettlementFilter) ([]*revenue.Settlement, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]*revenue.Settlement), args.Get(1).(int64), args.Error(2)
}

// MockBalanceCache is a mock implementation of BalanceCache
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
	args := m.Called(ctx, balance)
	return args.Error(0)
}

func (m *MockBalanceCache) Invalidate(ctx context.Context, party revenue.Party) error {
	args := m.Called(ctx, party)
	return args.Error(0)
}

// recordingInvalidator remembers which parties were invalidated
type recordingInvalidator struct {
	mu      sync.Mutex
	parties []revenue.Party
}

func (r *recordingInvalidator) InvalidateBalances(_ context.Context, parties ...revenue.Party) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parties = append(r.parties, parties...)
}

func (r *recordingInvalidator) Invalidated() []revenue.Party {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]revenue.Party(nil), r.parties...)
}

type testRepos struct {
	rules       *MockRevenueRuleRepository
	payments    *MockPaymentRepository
	entries     *MockLedgerEntryRepository
	settlements *MockSettlementRepository
	scope       *NoOpTransactionScope
	publisher   *MockEventPublisher
	balances    *recordingInvalidator
}

func newTestRepos() *testRepos {
	r := &testRepos{
		rules:       new(MockRevenueRuleRepository),
		payments:    new(MockPaymentRepository),
		entries:     new(MockLedgerEntryRepository),
		settlements: new(MockSettlementRepository),
		publisher:   NewMockEventPublisher(),
		balances:    &recordingInvalidator{},
	}
	r.scope = NewNoOpTransactionScope(r.rules, r.payments, r.entries, r.settlements)
	return r
}

func testSettings() Settings {
	return Settings{
		ApprovalQuorum:     3,
		MaxRetries:         3,
		DefaultCurrency:    valueobject.USD,
		SummaryConcurrency: 3,
	}
}
