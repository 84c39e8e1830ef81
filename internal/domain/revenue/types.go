package revenue

import (
	"fmt"
	"strings"

	"github.com/revsplit/backend/internal/domain/shared"
)

// Party is a beneficiary category receiving a share of revenue
type Party string

const (
	PartyAdmin  Party = "admin"
	PartyTeam   Party = "team"
	PartyVendor Party = "vendor"
)

// AllParties lists parties in canonical order. Ties in residual allocation
// and in dashboard rankings resolve in this order.
var AllParties = []Party{PartyAdmin, PartyTeam, PartyVendor}

func (p Party) IsValid() bool {
	switch p {
	case PartyAdmin, PartyTeam, PartyVendor:
		return true
	}
	return false
}

func (p Party) String() string {
	return string(p)
}

// Rank is the position of the party in canonical order
func (p Party) Rank() int {
	for i, q := range AllParties {
		if p == q {
			return i
		}
	}
	return len(AllParties)
}

// ParseParty parses a party name case-insensitively
func ParseParty(s string) (Party, error) {
	p := Party(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", shared.NewValidationError(fmt.Sprintf("unknown party %q, expected admin, team or vendor", s))
	}
	return p, nil
}

// EntryType is the direction of a ledger entry from the party's point of view
type EntryType string

const (
	EntryTypeCredit EntryType = "credit"
	EntryTypeDebit  EntryType = "debit"
)

func (t EntryType) IsValid() bool {
	return t == EntryTypeCredit || t == EntryTypeDebit
}

func (t EntryType) String() string {
	return string(t)
}

// EntryStatus is the settlement state of a ledger entry
type EntryStatus string

const (
	EntryStatusPending EntryStatus = "pending"
	EntryStatusCleared EntryStatus = "cleared"
)

func (s EntryStatus) IsValid() bool {
	return s == EntryStatusPending || s == EntryStatusCleared
}

func (s EntryStatus) String() string {
	return string(s)
}

// ApprovalStatus is the verification state of a payment
type ApprovalStatus string

const (
	ApprovalStatusUnverified        ApprovalStatus = "unverified"
	ApprovalStatusPartiallyApproved ApprovalStatus = "partially_approved"
	ApprovalStatusVerified          ApprovalStatus = "verified"
)

func (s ApprovalStatus) String() string {
	return string(s)
}

// DefaultQuorum is the number of distinct approvers needed to verify a payment
const DefaultQuorum = 3

// Aggregate type names used in domain events
const (
	AggregateTypeRevenueRule = "RevenueRule"
	AggregateTypePayment     = "Payment"
	AggregateTypeSettlement  = "Settlement"
)

// Machine-readable reasons attached to domain errors
const (
	ReasonNoDefaultRule         = "NO_DEFAULT_RULE"
	ReasonCurrencyRequired      = "CURRENCY_REQUIRED"
	ReasonRuleHasLedgerActivity = "RULE_HAS_LEDGER_ACTIVITY"
)
