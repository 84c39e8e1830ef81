package revenue

import (
	"time"

	"github.com/google/uuid"
	"github.com/revsplit/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event type names
const (
	EventTypeRevenueRuleCreated        = "RevenueRuleCreated"
	EventTypeRevenueRuleUpdated        = "RevenueRuleUpdated"
	EventTypeRevenueRuleDeactivated    = "RevenueRuleDeactivated"
	EventTypeDefaultRevenueRuleChanged = "DefaultRevenueRuleChanged"
	EventTypePaymentRecorded           = "PaymentRecorded"
	EventTypePaymentApproved           = "PaymentApproved"
	EventTypePaymentApprovalRevoked    = "PaymentApprovalRevoked"
	EventTypePaymentVerified           = "PaymentVerified"
	EventTypePaymentRevenueProcessed   = "PaymentRevenueProcessed"
	EventTypeLedgerEntriesCreated      = "LedgerEntriesCreated"
	EventTypePaymentReversed           = "PaymentReversed"
	EventTypeLedgerEntriesReversed     = "LedgerEntriesReversed"
	EventTypeSettlementCreated         = "SettlementCreated"
)

// RevenueRuleCreatedEvent is raised when a rule is created
type RevenueRuleCreatedEvent struct {
	shared.BaseDomainEvent
	RuleID        uuid.UUID       `json:"rule_id"`
	Name          string          `json:"name"`
	AdminPercent  decimal.Decimal `json:"admin_percent"`
	TeamPercent   decimal.Decimal `json:"team_percent"`
	VendorPercent decimal.Decimal `json:"vendor_percent"`
	IsDefault     bool            `json:"is_default"`
}

func NewRevenueRuleCreatedEvent(r *RevenueRule) *RevenueRuleCreatedEvent {
	return &RevenueRuleCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRevenueRuleCreated, AggregateTypeRevenueRule, r.ID),
		RuleID:          r.ID,
		Name:            r.Name,
		AdminPercent:    r.AdminPercent,
		TeamPercent:     r.TeamPercent,
		VendorPercent:   r.VendorPercent,
		IsDefault:       r.IsDefault,
	}
}

// RevenueRuleUpdatedEvent is raised when a rule is edited. HasLedgerActivity
// signals that the edit only affects payments processed afterwards.
type RevenueRuleUpdatedEvent struct {
	shared.BaseDomainEvent
	RuleID            uuid.UUID `json:"rule_id"`
	ChangedFields     []string  `json:"changed_fields"`
	HasLedgerActivity bool      `json:"has_ledger_activity"`
}

func NewRevenueRuleUpdatedEvent(r *RevenueRule, changed []string, hasLedgerActivity bool) *RevenueRuleUpdatedEvent {
	return &RevenueRuleUpdatedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeRevenueRuleUpdated, AggregateTypeRevenueRule, r.ID),
		RuleID:            r.ID,
		ChangedFields:     append([]string(nil), changed...),
		HasLedgerActivity: hasLedgerActivity,
	}
}

// RevenueRuleDeactivatedEvent is raised on soft deletion
type RevenueRuleDeactivatedEvent struct {
	shared.BaseDomainEvent
	RuleID uuid.UUID `json:"rule_id"`
}

func NewRevenueRuleDeactivatedEvent(r *RevenueRule) *RevenueRuleDeactivatedEvent {
	return &RevenueRuleDeactivatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRevenueRuleDeactivated, AggregateTypeRevenueRule, r.ID),
		RuleID:          r.ID,
	}
}

// DefaultRevenueRuleChangedEvent is raised when the default flag moves
type DefaultRevenueRuleChangedEvent struct {
	shared.BaseDomainEvent
	PreviousRuleID *uuid.UUID `json:"previous_rule_id,omitempty"`
	NewRuleID      *uuid.UUID `json:"new_rule_id,omitempty"`
}

// NewDefaultRevenueRuleChangedEvent is keyed on the new default, or on the
// previous one when the default was removed.
func NewDefaultRevenueRuleChangedEvent(previous, next *uuid.UUID) *DefaultRevenueRuleChangedEvent {
	aggID := uuid.Nil
	if next != nil {
		aggID = *next
	} else if previous != nil {
		aggID = *previous
	}
	return &DefaultRevenueRuleChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDefaultRevenueRuleChanged, AggregateTypeRevenueRule, aggID),
		PreviousRuleID:  previous,
		NewRuleID:       next,
	}
}

// PaymentRecordedEvent is raised when a payment enters the approval gate
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	PaymentID uuid.UUID       `json:"payment_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Reference string          `json:"reference,omitempty"`
}

func NewPaymentRecordedEvent(p *Payment) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecorded, AggregateTypePayment, p.ID),
		PaymentID:       p.ID,
		Amount:          p.Amount,
		Currency:        p.Currency.String(),
		Reference:       p.Reference,
	}
}

// PaymentApprovedEvent is raised for each new distinct approver
type PaymentApprovedEvent struct {
	shared.BaseDomainEvent
	PaymentID  uuid.UUID `json:"payment_id"`
	ApproverID string    `json:"approver_id"`
	Approvals  int       `json:"approvals"`
	Required   int       `json:"required"`
}

func NewPaymentApprovedEvent(p *Payment, approverID string, quorum int) *PaymentApprovedEvent {
	return &PaymentApprovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentApproved, AggregateTypePayment, p.ID),
		PaymentID:       p.ID,
		ApproverID:      approverID,
		Approvals:       p.ApprovalCount(),
		Required:        quorum,
	}
}

// PaymentApprovalRevokedEvent is raised when an approver withdraws
type PaymentApprovalRevokedEvent struct {
	shared.BaseDomainEvent
	PaymentID  uuid.UUID `json:"payment_id"`
	ApproverID string    `json:"approver_id"`
	Approvals  int       `json:"approvals"`
	Verified   bool      `json:"verified"`
}

func NewPaymentApprovalRevokedEvent(p *Payment, approverID string) *PaymentApprovalRevokedEvent {
	return &PaymentApprovalRevokedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentApprovalRevoked, AggregateTypePayment, p.ID),
		PaymentID:       p.ID,
		ApproverID:      approverID,
		Approvals:       p.ApprovalCount(),
		Verified:        p.Verified,
	}
}

// PaymentVerifiedEvent is raised on the approval that reaches quorum
type PaymentVerifiedEvent struct {
	shared.BaseDomainEvent
	PaymentID  uuid.UUID       `json:"payment_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Approvers  []string        `json:"approvers"`
	VerifiedAt time.Time       `json:"verified_at"`
}

func NewPaymentVerifiedEvent(p *Payment) *PaymentVerifiedEvent {
	e := &PaymentVerifiedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentVerified, AggregateTypePayment, p.ID),
		PaymentID:       p.ID,
		Amount:          p.Amount,
		Currency:        p.Currency.String(),
		Approvers:       append([]string(nil), p.ApprovedBy...),
	}
	if p.VerifiedAt != nil {
		e.VerifiedAt = *p.VerifiedAt
	}
	return e
}

// EntrySummary describes one generated ledger entry inside an event
type EntrySummary struct {
	EntryID uuid.UUID       `json:"entry_id"`
	Party   Party           `json:"party"`
	Type    EntryType       `json:"type"`
	Amount  decimal.Decimal `json:"amount"`
}

func summarizeEntries(entries []*LedgerEntry) []EntrySummary {
	out := make([]EntrySummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, EntrySummary{EntryID: e.ID, Party: e.Party, Type: e.Type, Amount: e.Amount})
	}
	return out
}

func partiesOf(entries []*LedgerEntry) []Party {
	seen := make(map[Party]bool)
	var out []Party
	for _, e := range entries {
		if !seen[e.Party] {
			seen[e.Party] = true
			out = append(out, e.Party)
		}
	}
	return out
}

// PaymentRevenueProcessedEvent is raised when a payment's revenue is split
type PaymentRevenueProcessedEvent struct {
	shared.BaseDomainEvent
	PaymentID     uuid.UUID       `json:"payment_id"`
	RevenueRuleID uuid.UUID       `json:"revenue_rule_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Entries       []EntrySummary  `json:"entries"`
}

func NewPaymentRevenueProcessedEvent(p *Payment, entries []*LedgerEntry) *PaymentRevenueProcessedEvent {
	e := &PaymentRevenueProcessedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRevenueProcessed, AggregateTypePayment, p.ID),
		PaymentID:       p.ID,
		Amount:          p.Amount,
		Currency:        p.Currency.String(),
		Entries:         summarizeEntries(entries),
	}
	if p.RevenueRuleID != nil {
		e.RevenueRuleID = *p.RevenueRuleID
	}
	return e
}

// LedgerEntriesCreatedEvent tells read models which party balances moved
type LedgerEntriesCreatedEvent struct {
	shared.BaseDomainEvent
	PaymentID uuid.UUID `json:"payment_id"`
	Parties   []Party   `json:"parties"`
	Currency  string    `json:"currency"`
	Count     int       `json:"count"`
}

func NewLedgerEntriesCreatedEvent(p *Payment, entries []*LedgerEntry) *LedgerEntriesCreatedEvent {
	return &LedgerEntriesCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLedgerEntriesCreated, AggregateTypePayment, p.ID),
		PaymentID:       p.ID,
		Parties:         partiesOf(entries),
		Currency:        p.Currency.String(),
		Count:           len(entries),
	}
}

// PaymentReversedEvent is raised when compensating debits are recorded
type PaymentReversedEvent struct {
	shared.BaseDomainEvent
	PaymentID uuid.UUID      `json:"payment_id"`
	Reason    string         `json:"reason"`
	Currency  string         `json:"currency"`
	Entries   []EntrySummary `json:"entries"`
}

func NewPaymentReversedEvent(p *Payment, debits []*LedgerEntry) *PaymentReversedEvent {
	return &PaymentReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentReversed, AggregateTypePayment, p.ID),
		PaymentID:       p.ID,
		Reason:          p.ReversalReason,
		Currency:        p.Currency.String(),
		Entries:         summarizeEntries(debits),
	}
}

// LedgerEntriesReversedEvent tells read models which balances the reversal touched
type LedgerEntriesReversedEvent struct {
	shared.BaseDomainEvent
	PaymentID uuid.UUID `json:"payment_id"`
	Parties   []Party   `json:"parties"`
	Currency  string    `json:"currency"`
}

func NewLedgerEntriesReversedEvent(p *Payment, debits []*LedgerEntry) *LedgerEntriesReversedEvent {
	return &LedgerEntriesReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLedgerEntriesReversed, AggregateTypePayment, p.ID),
		PaymentID:       p.ID,
		Parties:         partiesOf(debits),
		Currency:        p.Currency.String(),
	}
}

// SettlementCreatedEvent is raised when a batch of entries is cleared
type SettlementCreatedEvent struct {
	shared.BaseDomainEvent
	SettlementID   uuid.UUID       `json:"settlement_id"`
	Party          Party           `json:"party"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Currency       string          `json:"currency"`
	LedgerEntryIDs []uuid.UUID     `json:"ledger_entry_ids"`
	ProofReference string          `json:"proof_reference,omitempty"`
	CreatedBy      string          `json:"created_by"`
	SettlementDate time.Time       `json:"settlement_date"`
}

func NewSettlementCreatedEvent(s *Settlement) *SettlementCreatedEvent {
	return &SettlementCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSettlementCreated, AggregateTypeSettlement, s.ID),
		SettlementID:    s.ID,
		Party:           s.Party,
		TotalAmount:     s.TotalAmount,
		Currency:        s.Currency.String(),
		LedgerEntryIDs:  append([]uuid.UUID(nil), s.LedgerEntryIDs...),
		ProofReference:  s.ProofReference,
		CreatedBy:       s.CreatedBy,
		SettlementDate:  s.SettlementDate,
	}
}
