package event

import (
	"github.com/revsplit/backend/internal/domain/revenue"
)

// RegisterAllEvents registers every revenue event so the OutboxProcessor can
// decode outbox payloads
func RegisterAllEvents(serializer *EventSerializer) {
	// Rules
	serializer.Register(revenue.EventTypeRevenueRuleCreated, &revenue.RevenueRuleCreatedEvent{})
	serializer.Register(revenue.EventTypeRevenueRuleUpdated, &revenue.RevenueRuleUpdatedEvent{})
	serializer.Register(revenue.EventTypeRevenueRuleDeactivated, &revenue.RevenueRuleDeactivatedEvent{})
	serializer.Register(revenue.EventTypeDefaultRevenueRuleChanged, &revenue.DefaultRevenueRuleChangedEvent{})

	// Payments and the approval gate
	serializer.Register(revenue.EventTypePaymentRecorded, &revenue.PaymentRecordedEvent{})
	serializer.Register(revenue.EventTypePaymentApproved, &revenue.PaymentApprovedEvent{})
	serializer.Register(revenue.EventTypePaymentApprovalRevoked, &revenue.PaymentApprovalRevokedEvent{})
	serializer.Register(revenue.EventTypePaymentVerified, &revenue.PaymentVerifiedEvent{})

	// Ledger
	serializer.Register(revenue.EventTypePaymentRevenueProcessed, &revenue.PaymentRevenueProcessedEvent{})
	serializer.Register(revenue.EventTypeLedgerEntriesCreated, &revenue.LedgerEntriesCreatedEvent{})
	serializer.Register(revenue.EventTypePaymentReversed, &revenue.PaymentReversedEvent{})
	serializer.Register(revenue.EventTypeLedgerEntriesReversed, &revenue.LedgerEntriesReversedEvent{})

	// Settlements
	serializer.Register(revenue.EventTypeSettlementCreated, &revenue.SettlementCreatedEvent{})
}
