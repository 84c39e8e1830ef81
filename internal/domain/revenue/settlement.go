package revenue

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/revsplit/backend/internal/domain/shared"
	"github.com/revsplit/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Settlement marks a batch of one party's pending entries as cleared.
// Settlements are append-only.
type Settlement struct {
	shared.BaseAggregateRoot
	Party          Party
	TotalAmount    decimal.Decimal
	Currency       valueobject.Currency
	SettlementDate time.Time
	LedgerEntryIDs []uuid.UUID
	ProofReference string
	Notes          string
	CreatedBy      string
}

// NewSettlement validates the batch and clears every entry in memory. Any
// ineligible entry rejects the whole batch and leaves all entries unchanged.
// requestedIDs is the caller's list; entries is what the store returned.
func NewSettlement(party Party, requestedIDs []uuid.UUID, entries []*LedgerEntry, proofReference, notes, createdBy string) (*Settlement, error) {
	if !party.IsValid() {
		return nil, shared.NewValidationError(fmt.Sprintf("invalid party %q", party))
	}
	createdBy = strings.TrimSpace(createdBy)
	if createdBy == "" {
		return nil, shared.NewValidationError("settlement creator cannot be empty")
	}
	if err := ValidateSettlementBatch(party, requestedIDs, entries); err != nil {
		return nil, err
	}

	total := SumSigned(entries)
	if !total.IsPositive() {
		return nil, shared.NewInvalidEntryError(fmt.Sprintf("settlement total must be positive, got %s", total.String()))
	}

	s := &Settlement{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Party:             party,
		TotalAmount:       total,
		Currency:          entries[0].Currency,
		SettlementDate:    time.Now().UTC(),
		LedgerEntryIDs:    append([]uuid.UUID(nil), requestedIDs...),
		ProofReference:    strings.TrimSpace(proofReference),
		Notes:             strings.TrimSpace(notes),
		CreatedBy:         createdBy,
	}
	for _, e := range entries {
		if err := e.Clear(s.ID); err != nil {
			return nil, err
		}
	}
	s.AddDomainEvent(NewSettlementCreatedEvent(s))
	return s, nil
}

// ValidateSettlementBatch checks that every requested id was found and that
// all entries share the party and currency and are still pending.
func ValidateSettlementBatch(party Party, requestedIDs []uuid.UUID, entries []*LedgerEntry) error {
	if len(requestedIDs) == 0 {
		return shared.NewInvalidEntryError("a settlement must reference at least one ledger entry")
	}
	seen := make(map[uuid.UUID]struct{}, len(requestedIDs))
	for _, id := range requestedIDs {
		if _, dup := seen[id]; dup {
			return shared.NewInvalidEntryError(fmt.Sprintf("ledger entry %s is listed more than once", id))
		}
		seen[id] = struct{}{}
	}

	found := make(map[uuid.UUID]*LedgerEntry, len(entries))
	for _, e := range entries {
		found[e.ID] = e
	}
	for _, id := range requestedIDs {
		if _, ok := found[id]; !ok {
			return shared.NewInvalidEntryError(fmt.Sprintf("ledger entry %s not found", id))
		}
	}
	if len(found) != len(requestedIDs) {
		return shared.NewInvalidEntryError("store returned ledger entries that were not requested")
	}

	currency := entries[0].Currency
	for _, e := range entries {
		if e.Party != party {
			return shared.NewInvalidEntryError(fmt.Sprintf("ledger entry %s belongs to %s, not %s", e.ID, e.Party, party))
		}
		if e.Currency != currency {
			return shared.NewInvalidEntryError(fmt.Sprintf("ledger entry %s is in %s, batch currency is %s", e.ID, e.Currency, currency))
		}
		if e.Status != EntryStatusPending {
			return shared.NewInvalidEntryError(fmt.Sprintf("ledger entry %s is already %s", e.ID, e.Status))
		}
	}
	return nil
}

// Money returns the settlement total as a value object
func (s *Settlement) Money() valueobject.Money {
	m, err := valueobject.NewMoney(s.TotalAmount, s.Currency)
	if err != nil {
		return valueobject.Zero(s.Currency)
	}
	return m
}
