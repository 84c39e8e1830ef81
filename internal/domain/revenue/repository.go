package revenue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/revsplit/backend/internal/domain/shared"
	"github.com/revsplit/backend/internal/domain/shared/valueobject"
)

// RevenueRuleFilter narrows rule listings
type RevenueRuleFilter struct {
	shared.Filter
	ActiveOnly bool
}

// RevenueRuleRepository persists revenue rules. Find methods return a
// NOT_FOUND domain error when nothing matches.
type RevenueRuleRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*RevenueRule, error)
	// FindDefault returns the active default rule
	FindDefault(ctx context.Context) (*RevenueRule, error)
	FindAll(ctx context.Context, filter RevenueRuleFilter) ([]*RevenueRule, int64, error)
	ExistsActiveByName(ctx context.Context, name string, excludeID *uuid.UUID) (bool, error)
	Create(ctx context.Context, rule *RevenueRule) error
	// SaveWithLock writes the rule if its stored version still matches and
	// then increments the in-memory version.
	SaveWithLock(ctx context.Context, rule *RevenueRule) error
}

// PaymentFilter narrows payment listings
type PaymentFilter struct {
	shared.Filter
	Verified         *bool
	RevenueProcessed *bool
	ProjectID        *uuid.UUID
}

// PaymentRepository persists payments
type PaymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	ExistsByReference(ctx context.Context, reference string) (bool, error)
	FindAll(ctx context.Context, filter PaymentFilter) ([]*Payment, int64, error)
	Create(ctx context.Context, payment *Payment) error
	SaveWithLock(ctx context.Context, payment *Payment) error
}

// LedgerEntryFilter narrows ledger entry queries
type LedgerEntryFilter struct {
	shared.Filter
	Party     *Party
	Status    *EntryStatus
	Currency  *valueobject.Currency
	PaymentID *uuid.UUID
	From      *time.Time
	To        *time.Time
}

// LedgerEntryRepository persists ledger entries. Entries are inserted once;
// the only update path is ClearWithLock.
type LedgerEntryRepository interface {
	CreateBatch(ctx context.Context, entries []*LedgerEntry) error
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*LedgerEntry, error)
	FindByPayment(ctx context.Context, paymentID uuid.UUID) ([]*LedgerEntry, error)
	// FindForParty returns a party's entries ordered by entry date then id
	FindForParty(ctx context.Context, party Party, currency *valueobject.Currency, status *EntryStatus) ([]*LedgerEntry, error)
	FindAll(ctx context.Context, filter LedgerEntryFilter) ([]*LedgerEntry, int64, error)
	CurrenciesForParty(ctx context.Context, party Party) ([]valueobject.Currency, error)
	ExistsForRule(ctx context.Context, ruleID uuid.UUID) (bool, error)
	// ClearWithLock persists the pending -> cleared transition for each entry,
	// failing with a concurrency conflict if any entry changed since it was read.
	ClearWithLock(ctx context.Context, entries []*LedgerEntry) error
}

// SettlementFilter narrows settlement listings
type SettlementFilter struct {
	shared.Filter
	Party    *Party
	Currency *valueobject.Currency
	From     *time.Time
	To       *time.Time
}

// SettlementRepository persists settlements (append-only)
type SettlementRepository interface {
	Create(ctx context.Context, settlement *Settlement) error
	FindByID(ctx context.Context, id uuid.UUID) (*Settlement, error)
	FindAll(ctx context.Context, filter SettlementFilter) ([]*Settlement, int64, error)
}
