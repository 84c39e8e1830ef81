package revenue

import (
	"context"

	"github.com/revsplit/backend/internal/domain/revenue"
	"github.com/revsplit/backend/internal/domain/shared"
	"github.com/revsplit/backend/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

// Settings holds the tunables shared by the revenue services
type Settings struct {
	ApprovalQuorum     int
	MaxRetries         int
	DefaultCurrency    valueobject.Currency
	SummaryConcurrency int
}

// DefaultSettings returns the production defaults
func DefaultSettings() Settings {
	return Settings{
		ApprovalQuorum:     revenue.DefaultQuorum,
		MaxRetries:         3,
		DefaultCurrency:    valueobject.DefaultCurrency,
		SummaryConcurrency: len(revenue.AllParties),
	}
}

func (s Settings) normalize() Settings {
	def := DefaultSettings()
	if s.ApprovalQuorum < 1 {
		s.ApprovalQuorum = def.ApprovalQuorum
	}
	if s.MaxRetries < 1 {
		s.MaxRetries = def.MaxRetries
	}
	if !s.DefaultCurrency.IsValid() {
		s.DefaultCurrency = def.DefaultCurrency
	}
	if s.SummaryConcurrency < 1 {
		s.SummaryConcurrency = def.SummaryConcurrency
	}
	return s
}

// BalanceInvalidator drops derived balances once a ledger write committed
type BalanceInvalidator interface {
	InvalidateBalances(ctx context.Context, parties ...revenue.Party)
}

// eventSink runs the post-commit hooks. Events go to the publisher; when the
// outbox is enabled the publisher is nil and the outbox processor delivers
// them instead. Balances are invalidated right away in both modes.
type eventSink struct {
	publisher shared.EventPublisher
	balances  BalanceInvalidator
	logger    *zap.Logger
}

func (s *eventSink) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

func (s *eventSink) SetBalanceInvalidator(balances BalanceInvalidator) {
	s.balances = balances
}

func (s *eventSink) invalidateCommitted(ctx context.Context, parties ...revenue.Party) {
	if s.balances == nil || len(parties) == 0 {
		return
	}
	s.balances.InvalidateBalances(ctx, parties...)
}

// publishCommitted hands events to the publisher; failures are logged and
// never undo the committed write.
func (s *eventSink) publishCommitted(ctx context.Context, events []shared.DomainEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish domain events",
			zap.Int("count", len(events)),
			zap.Error(err))
	}
}

// stage writes an aggregate's pending events to the outbox and returns them
// for publishing after commit.
func stage(ctx context.Context, repos TransactionalRepositories, agg interface {
	GetDomainEvents() []shared.DomainEvent
	ClearDomainEvents()
}) ([]shared.DomainEvent, error) {
	events := agg.GetDomainEvents()
	if len(events) == 0 {
		return nil, nil
	}
	if err := repos.SaveEvents(ctx, events...); err != nil {
		return nil, err
	}
	agg.ClearDomainEvents()
	return events, nil
}

func loggerOrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
