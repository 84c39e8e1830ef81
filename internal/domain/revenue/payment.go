package revenue

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/revsplit/backend/internal/domain/shared"
	"github.com/revsplit/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Payment is an incoming amount that must collect a quorum of approvals
// before its revenue can be split. RevenueProcessed is a one-way latch.
type Payment struct {
	shared.BaseAggregateRoot
	Amount             decimal.Decimal
	Currency           valueobject.Currency
	Reference          string
	Description        string
	ProjectID          *uuid.UUID
	ApprovedBy         []string
	Verified           bool
	VerifiedAt         *time.Time
	RevenueProcessed   bool
	RevenueProcessedAt *time.Time
	RevenueRuleID      *uuid.UUID
	Reversed           bool
	ReversedAt         *time.Time
	ReversalReason     string
}

// NewPayment records an unverified payment
func NewPayment(amount valueobject.Money, reference, description string, projectID *uuid.UUID) (*Payment, error) {
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("payment amount must be positive")
	}
	places := amount.Currency().MinorUnits()
	if !amount.Amount().Equal(amount.Amount().Round(places)) {
		return nil, shared.NewValidationError(fmt.Sprintf("payment amount supports at most %d decimal places for %s", places, amount.Currency()))
	}

	p := &Payment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Amount:            amount.Amount(),
		Currency:          amount.Currency(),
		Reference:         strings.TrimSpace(reference),
		Description:       strings.TrimSpace(description),
		ProjectID:         projectID,
		ApprovedBy:        []string{},
	}
	p.AddDomainEvent(NewPaymentRecordedEvent(p))
	return p, nil
}

// Money returns the payment amount as a value object
func (p *Payment) Money() valueobject.Money {
	m, err := valueobject.NewMoney(p.Amount, p.Currency)
	if err != nil {
		return valueobject.Zero(p.Currency)
	}
	return m
}

// ApprovalCount is the number of distinct approvers
func (p *Payment) ApprovalCount() int {
	return len(p.ApprovedBy)
}

// HasApproval reports whether approverID already approved
func (p *Payment) HasApproval(approverID string) bool {
	return slices.Contains(p.ApprovedBy, approverID)
}

// ApprovalStatus derives the gate state for the given quorum
func (p *Payment) ApprovalStatus(quorum int) ApprovalStatus {
	n := p.ApprovalCount()
	switch {
	case n == 0:
		return ApprovalStatusUnverified
	case n < quorum:
		return ApprovalStatusPartiallyApproved
	default:
		return ApprovalStatusVerified
	}
}

// Approve adds approverID to the approval set. Adding an existing approver
// is a no-op and returns changed=false. verifiedNow is true only on the
// approval that moves the payment into Verified.
func (p *Payment) Approve(approverID string, quorum int) (changed, verifiedNow bool, err error) {
	approverID = strings.TrimSpace(approverID)
	if approverID == "" {
		return false, false, shared.NewValidationError("approver id cannot be empty")
	}
	if p.HasApproval(approverID) {
		return false, false, nil
	}
	if p.RevenueProcessed {
		return false, false, shared.NewInvalidStateError("approvals are frozen once revenue has been processed")
	}

	p.ApprovedBy = append(p.ApprovedBy, approverID)
	p.Touch()
	p.AddDomainEvent(NewPaymentApprovedEvent(p, approverID, quorum))

	if !p.Verified && p.ApprovalCount() >= quorum {
		now := time.Now().UTC()
		p.Verified = true
		p.VerifiedAt = &now
		p.AddDomainEvent(NewPaymentVerifiedEvent(p))
		verifiedNow = true
	}
	return true, verifiedNow, nil
}

// RevokeApproval removes approverID while revenue is unprocessed. Dropping
// below quorum clears Verified; VerifiedAt is kept as an audit trail.
func (p *Payment) RevokeApproval(approverID string, quorum int) (bool, error) {
	approverID = strings.TrimSpace(approverID)
	if approverID == "" {
		return false, shared.NewValidationError("approver id cannot be empty")
	}
	if p.RevenueProcessed {
		return false, shared.NewInvalidStateError("approvals cannot be revoked after revenue has been processed")
	}
	idx := slices.Index(p.ApprovedBy, approverID)
	if idx < 0 {
		return false, nil
	}

	p.ApprovedBy = slices.Delete(slices.Clone(p.ApprovedBy), idx, idx+1)
	if p.Verified && p.ApprovalCount() < quorum {
		p.Verified = false
	}
	p.Touch()
	p.AddDomainEvent(NewPaymentApprovalRevokedEvent(p, approverID))
	return true, nil
}

// CanProcessRevenue checks the preconditions for splitting revenue
func (p *Payment) CanProcessRevenue() error {
	if p.RevenueProcessed {
		return shared.NewAlreadyProcessedError(fmt.Sprintf("revenue for payment %s has already been processed", p.ID))
	}
	if !p.Verified {
		return shared.NewInvalidStateError(fmt.Sprintf("payment %s is not verified", p.ID))
	}
	return nil
}

// MarkRevenueProcessed sets the processed latch and binds the rule
func (p *Payment) MarkRevenueProcessed(ruleID uuid.UUID, entries []*LedgerEntry) error {
	if err := p.CanProcessRevenue(); err != nil {
		return err
	}
	now := time.Now().UTC()
	p.RevenueProcessed = true
	p.RevenueProcessedAt = &now
	p.RevenueRuleID = &ruleID
	p.Touch()
	p.AddDomainEvent(NewPaymentRevenueProcessedEvent(p, entries))
	p.AddDomainEvent(NewLedgerEntriesCreatedEvent(p, entries))
	return nil
}

// MarkReversed records a compensating reversal of processed revenue
func (p *Payment) MarkReversed(reason string, debits []*LedgerEntry) error {
	if !p.RevenueProcessed {
		return shared.NewInvalidStateError(fmt.Sprintf("payment %s has no processed revenue to reverse", p.ID))
	}
	if p.Reversed {
		return shared.NewAlreadyProcessedError(fmt.Sprintf("payment %s has already been reversed", p.ID))
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return shared.NewValidationError("reversal reason cannot be empty")
	}
	now := time.Now().UTC()
	p.Reversed = true
	p.ReversedAt = &now
	p.ReversalReason = reason
	p.Touch()
	p.AddDomainEvent(NewPaymentReversedEvent(p, debits))
	p.AddDomainEvent(NewLedgerEntriesReversedEvent(p, debits))
	return nil
}

// DisplayReference is the external reference, or the id when none is set
func (p *Payment) DisplayReference() string {
	if p.Reference != "" {
		return p.Reference
	}
	return p.ID.String()
}
