package revenue

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/revsplit/backend/internal/domain/shared"
	"github.com/revsplit/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// LedgerEntry is one party's claim arising from one payment under one rule.
// Entries are immutable apart from the pending -> cleared transition made
// when a settlement references them.
type LedgerEntry struct {
	shared.BaseEntity
	Party         Party
	Type          EntryType
	Status        EntryStatus
	Amount        decimal.Decimal
	Currency      valueobject.Currency
	EntryDate     time.Time
	ProjectID     *uuid.UUID
	PaymentID     uuid.UUID
	RevenueRuleID uuid.UUID
	SettlementID  *uuid.UUID
	// ReversesEntryID links a compensating debit to the credit it offsets
	ReversesEntryID *uuid.UUID
	Remarks         string
	Version         int
}

// NewCreditEntry creates a pending revenue-split credit for a party
func NewCreditEntry(party Party, share valueobject.Money, payment *Payment, ruleID uuid.UUID, remarks string) (*LedgerEntry, error) {
	if !party.IsValid() {
		return nil, shared.NewValidationError(fmt.Sprintf("invalid party %q", party))
	}
	if !share.IsPositive() {
		return nil, shared.NewValidationError("ledger entry amount must be positive")
	}
	if share.Currency() != payment.Currency {
		return nil, shared.NewValidationError("ledger entry currency must match the payment currency")
	}
	return &LedgerEntry{
		BaseEntity:    shared.NewBaseEntity(),
		Party:         party,
		Type:          EntryTypeCredit,
		Status:        EntryStatusPending,
		Amount:        share.Amount(),
		Currency:      share.Currency(),
		EntryDate:     time.Now().UTC(),
		ProjectID:     payment.ProjectID,
		PaymentID:     payment.ID,
		RevenueRuleID: ruleID,
		Remarks:       remarks,
		Version:       1,
	}, nil
}

// NewReversalEntry creates a pending debit that offsets a credit entry
func NewReversalEntry(credit *LedgerEntry, reason string) (*LedgerEntry, error) {
	if credit.Type != EntryTypeCredit {
		return nil, shared.NewInvalidEntryError(fmt.Sprintf("entry %s is not a credit and cannot be reversed", credit.ID))
	}
	return &LedgerEntry{
		BaseEntity:      shared.NewBaseEntity(),
		Party:           credit.Party,
		Type:            EntryTypeDebit,
		Status:          EntryStatusPending,
		Amount:          credit.Amount,
		Currency:        credit.Currency,
		EntryDate:       time.Now().UTC(),
		ProjectID:       credit.ProjectID,
		PaymentID:       credit.PaymentID,
		RevenueRuleID:   credit.RevenueRuleID,
		ReversesEntryID: &credit.ID,
		Remarks:         "Reversal: " + reason,
		Version:         1,
	}, nil
}

func (e *LedgerEntry) IsPending() bool {
	return e.Status == EntryStatusPending
}

// SignedAmount is the amount with debits negative
func (e *LedgerEntry) SignedAmount() decimal.Decimal {
	if e.Type == EntryTypeDebit {
		return e.Amount.Neg()
	}
	return e.Amount
}

// Clear moves a pending entry to cleared under the given settlement
func (e *LedgerEntry) Clear(settlementID uuid.UUID) error {
	if e.Status != EntryStatusPending {
		return shared.NewInvalidEntryError(fmt.Sprintf("ledger entry %s is already %s", e.ID, e.Status))
	}
	e.Status = EntryStatusCleared
	e.SettlementID = &settlementID
	e.Touch()
	return nil
}

// SumSigned totals entries with debits negative. Callers ensure a single currency.
func SumSigned(entries []*LedgerEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.SignedAmount())
	}
	return total
}
