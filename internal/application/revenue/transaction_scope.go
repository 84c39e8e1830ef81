package revenue

import (
	"context"

	"github.com/revsplit/backend/internal/domain/revenue"
	"github.com/revsplit/backend/internal/domain/shared"
)

// TransactionScope provides transactional access to the revenue repositories.
// Everything done through the repositories handed to fn commits or rolls back
// as one unit.
type TransactionScope interface {
	// Execute runs fn within a database transaction. A non-nil error from fn
	// rolls the transaction back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes repositories bound to one transaction.
type TransactionalRepositories interface {
	RuleRepo() revenue.RevenueRuleRepository
	PaymentRepo() revenue.PaymentRepository
	EntryRepo() revenue.LedgerEntryRepository
	SettlementRepo() revenue.SettlementRepository
	// SaveEvents writes domain events to the outbox in the same transaction.
	// Implementations without an outbox treat it as a no-op.
	SaveEvents(ctx context.Context, events ...shared.DomainEvent) error
}

// NoOpTransactionScope runs fn directly against the given repositories.
// Used in unit tests where atomicity is not under test.
type NoOpTransactionScope struct {
	ruleRepo       revenue.RevenueRuleRepository
	paymentRepo    revenue.PaymentRepository
	entryRepo      revenue.LedgerEntryRepository
	settlementRepo revenue.SettlementRepository
	saved          []shared.DomainEvent
}

func NewNoOpTransactionScope(
	ruleRepo revenue.RevenueRuleRepository,
	paymentRepo revenue.PaymentRepository,
	entryRepo revenue.LedgerEntryRepository,
	settlementRepo revenue.SettlementRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		ruleRepo:       ruleRepo,
		paymentRepo:    paymentRepo,
		entryRepo:      entryRepo,
		settlementRepo: settlementRepo,
	}
}

func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) RuleRepo() revenue.RevenueRuleRepository {
	return s.ruleRepo
}

func (s *NoOpTransactionScope) PaymentRepo() revenue.PaymentRepository {
	return s.paymentRepo
}

func (s *NoOpTransactionScope) EntryRepo() revenue.LedgerEntryRepository {
	return s.entryRepo
}

func (s *NoOpTransactionScope) SettlementRepo() revenue.SettlementRepository {
	return s.settlementRepo
}

// SaveEvents records the events so tests can inspect them
func (s *NoOpTransactionScope) SaveEvents(_ context.Context, events ...shared.DomainEvent) error {
	s.saved = append(s.saved, events...)
	return nil
}

// SavedEvents returns every event passed to SaveEvents
func (s *NoOpTransactionScope) SavedEvents() []shared.DomainEvent {
	return s.saved
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
