package revenue

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/revsplit/backend/internal/domain/revenue"
	"github.com/revsplit/backend/internal/domain/shared"
	"github.com/revsplit/backend/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

// LedgerService turns verified payments into per-party ledger entries and
// records compensating reversals.
type LedgerService struct {
	eventSink
	entryRepo  revenue.LedgerEntryRepository
	txScope    TransactionScope
	calculator *revenue.SplitCalculator
	settings   Settings
	logger     *zap.Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	entryRepo revenue.LedgerEntryRepository,
	txScope TransactionScope,
	settings Settings,
	logger *zap.Logger,
) *LedgerService {
	logger = loggerOrNop(logger)
	return &LedgerService{
		eventSink:  eventSink{logger: logger},
		entryRepo:  entryRepo,
		txScope:    txScope,
		calculator: revenue.NewSplitCalculator(),
		settings:   settings.normalize(),
		logger:     logger,
	}
}

// ProcessPayment splits a verified payment under ruleID, or the default rule
// when ruleID is nil. Entry creation and the processed latch commit together.
func (s *LedgerService) ProcessPayment(ctx context.Context, paymentID uuid.UUID, ruleID *uuid.UUID) (*ProcessPaymentResult, error) {
	var (
		result    *ProcessPaymentResult
		committed []shared.DomainEvent
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		payment, err := repos.PaymentRepo().FindByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if err := payment.CanProcessRevenue(); err != nil {
			return err
		}
		rule, err := s.resolveRule(ctx, repos.RuleRepo(), ruleID)
		if err != nil {
			return err
		}

		shares, err := s.calculator.Split(payment.Money(), rule)
		if err != nil {
			return err
		}
		entries := make([]*revenue.LedgerEntry, 0, len(shares))
		for _, share := range shares {
			remarks := fmt.Sprintf("Revenue split of payment %s (%s%%)", payment.DisplayReference(), share.Percent)
			entry, err := revenue.NewCreditEntry(share.Party, share.Amount, payment, rule.ID, remarks)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}

		if err := repos.EntryRepo().CreateBatch(ctx, entries); err != nil {
			return err
		}
		if err := payment.MarkRevenueProcessed(rule.ID, entries); err != nil {
			return err
		}
		if err := repos.PaymentRepo().SaveWithLock(ctx, payment); err != nil {
			return err
		}
		committed, err = stage(ctx, repos, payment)
		if err != nil {
			return err
		}
		result = &ProcessPaymentResult{
			Payment: ToPaymentResponse(payment, s.settings.ApprovalQuorum),
			RuleID:  rule.ID,
			Entries: ToLedgerEntryResponses(entries),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCommitted(ctx, entryParties(result.Entries)...)
	s.publishCommitted(ctx, committed)
	s.logger.Info("payment revenue processed",
		zap.String("payment_id", paymentID.String()),
		zap.String("rule_id", result.RuleID.String()),
		zap.Int("entries", len(result.Entries)))
	return result, nil
}

func (s *LedgerService) resolveRule(ctx context.Context, rules revenue.RevenueRuleRepository, ruleID *uuid.UUID) (*revenue.RevenueRule, error) {
	if ruleID == nil {
		rule, err := rules.FindDefault(ctx)
		if err != nil {
			return nil, noDefaultRule(err)
		}
		return rule, nil
	}
	rule, err := rules.FindByID(ctx, *ruleID)
	if err != nil {
		return nil, err
	}
	if !rule.IsActive {
		return nil, shared.NewInvalidStateError(fmt.Sprintf("revenue rule %s is inactive", rule.ID))
	}
	return rule, nil
}

// ReversePayment offsets every credit of a processed payment with a pending
// debit. Only allowed while all credits are still pending; settled revenue
// has to be corrected outside the ledger.
func (s *LedgerService) ReversePayment(ctx context.Context, paymentID uuid.UUID, reason, actor string) (*ReversePaymentResult, error) {
	var (
		result    *ReversePaymentResult
		committed []shared.DomainEvent
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		payment, err := repos.PaymentRepo().FindByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.Reversed {
			return shared.NewAlreadyProcessedError(fmt.Sprintf("payment %s has already been reversed", payment.ID))
		}
		if !payment.RevenueProcessed {
			return shared.NewInvalidStateError(fmt.Sprintf("payment %s has no processed revenue to reverse", payment.ID))
		}

		existing, err := repos.EntryRepo().FindByPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		debits := make([]*revenue.LedgerEntry, 0, len(existing))
		for _, e := range existing {
			if e.Type != revenue.EntryTypeCredit {
				continue
			}
			if !e.IsPending() {
				return shared.NewInvalidStateError(fmt.Sprintf("ledger entry %s is already settled; payment %s cannot be reversed", e.ID, payment.ID))
			}
			debit, err := revenue.NewReversalEntry(e, reason)
			if err != nil {
				return err
			}
			debits = append(debits, debit)
		}

		if err := payment.MarkReversed(reason, debits); err != nil {
			return err
		}
		if err := repos.EntryRepo().CreateBatch(ctx, debits); err != nil {
			return err
		}
		if err := repos.PaymentRepo().SaveWithLock(ctx, payment); err != nil {
			return err
		}
		committed, err = stage(ctx, repos, payment)
		if err != nil {
			return err
		}
		result = &ReversePaymentResult{
			Payment: ToPaymentResponse(payment, s.settings.ApprovalQuorum),
			Debits:  ToLedgerEntryResponses(debits),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCommitted(ctx, entryParties(result.Debits)...)
	s.publishCommitted(ctx, committed)
	s.logger.Info("payment revenue reversed",
		zap.String("payment_id", paymentID.String()),
		zap.String("actor", actor),
		zap.Int("debits", len(result.Debits)))
	return result, nil
}

// ListEntries returns a page of ledger entries
func (s *LedgerService) ListEntries(ctx context.Context, filter LedgerEntryListFilter) ([]LedgerEntryResponse, int64, error) {
	paymentID, err := optionalUUID("payment_id", filter.PaymentID)
	if err != nil {
		return nil, 0, err
	}
	f := revenue.LedgerEntryFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  "entry_date",
			OrderDir: filter.OrderDir,
		}.Normalize(),
		PaymentID: paymentID,
		From:      filter.From,
		To:        filter.To,
	}
	if filter.Party != "" {
		party, err := revenue.ParseParty(filter.Party)
		if err != nil {
			return nil, 0, err
		}
		f.Party = &party
	}
	if filter.Status != "" {
		status := revenue.EntryStatus(filter.Status)
		if !status.IsValid() {
			return nil, 0, shared.NewValidationError(fmt.Sprintf("unknown entry status %q", filter.Status))
		}
		f.Status = &status
	}
	if filter.Currency != "" {
		cur, err := valueobject.ParseCurrency(filter.Currency)
		if err != nil {
			return nil, 0, shared.NewValidationError(err.Error())
		}
		f.Currency = &cur
	}

	entries, total, err := s.entryRepo.FindAll(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return ToLedgerEntryResponses(entries), total, nil
}

func entryParties(entries []LedgerEntryResponse) []revenue.Party {
	parties := make([]revenue.Party, 0, len(entries))
	for _, e := range entries {
		if !slices.Contains(parties, e.Party) {
			parties = append(parties, e.Party)
		}
	}
	return parties
}
