package revenue

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/revsplit/backend/internal/domain/revenue"
	"github.com/revsplit/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// RevenueRuleService manages revenue split rules and the single default rule
type RevenueRuleService struct {
	eventSink
	ruleRepo  revenue.RevenueRuleRepository
	entryRepo revenue.LedgerEntryRepository
	txScope   TransactionScope
	logger    *zap.Logger
}

// NewRevenueRuleService creates a new RevenueRuleService
func NewRevenueRuleService(
	ruleRepo revenue.RevenueRuleRepository,
	entryRepo revenue.LedgerEntryRepository,
	txScope TransactionScope,
	logger *zap.Logger,
) *RevenueRuleService {
	logger = loggerOrNop(logger)
	return &RevenueRuleService{
		eventSink: eventSink{logger: logger},
		ruleRepo:  ruleRepo,
		entryRepo: entryRepo,
		txScope:   txScope,
		logger:    logger,
	}
}

// Create validates and stores a new rule. When it is flagged default the
// previous default is cleared in the same transaction.
func (s *RevenueRuleService) Create(ctx context.Context, input CreateRevenueRuleInput) (*RevenueRuleResponse, error) {
	if input.AdminPercent == nil || input.TeamPercent == nil || input.VendorPercent == nil {
		return nil, shared.NewValidationError("admin, team and vendor percentages are required")
	}
	rule, err := revenue.NewRevenueRule(input.Name, input.Description, *input.AdminPercent, *input.TeamPercent, *input.VendorPercent, input.IsDefault)
	if err != nil {
		return nil, err
	}

	var committed []shared.DomainEvent
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		rules := repos.RuleRepo()
		exists, err := rules.ExistsActiveByName(ctx, rule.Name, nil)
		if err != nil {
			return err
		}
		if exists {
			return shared.NewValidationError(fmt.Sprintf("an active revenue rule named %q already exists", rule.Name))
		}

		var changed *revenue.RevenueRule
		if rule.IsDefault {
			previous, err := s.takeOverDefault(ctx, rules, rule.ID)
			if err != nil {
				return err
			}
			changed = previous
		}
		if err := rules.Create(ctx, rule); err != nil {
			return err
		}
		if rule.IsDefault {
			rule.AddDomainEvent(revenue.NewDefaultRevenueRuleChangedEvent(idOf(changed), &rule.ID))
		}
		committed, err = stage(ctx, repos, rule)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishCommitted(ctx, committed)
	s.logger.Info("revenue rule created",
		zap.String("rule_id", rule.ID.String()),
		zap.String("name", rule.Name),
		zap.Bool("is_default", rule.IsDefault))
	resp := ToRevenueRuleResponse(rule)
	return &resp, nil
}

// Update applies a partial patch. Ledger entries already generated under the
// rule are never touched; when they exist the result carries a warning.
func (s *RevenueRuleService) Update(ctx context.Context, id uuid.UUID, input UpdateRevenueRuleInput) (*UpdateRevenueRuleResult, error) {
	patch := input.toRuleUpdate()
	if patch.IsEmpty() {
		return nil, shared.NewValidationError("update must change at least one field")
	}

	var (
		result    *UpdateRevenueRuleResult
		committed []shared.DomainEvent
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		rules := repos.RuleRepo()
		rule, err := rules.FindByID(ctx, id)
		if err != nil {
			return err
		}
		hasActivity, err := repos.EntryRepo().ExistsForRule(ctx, id)
		if err != nil {
			return err
		}
		wasDefault := rule.IsDefault

		changed, err := rule.Apply(patch, hasActivity)
		if err != nil {
			return err
		}
		result = &UpdateRevenueRuleResult{ChangedFields: changed}
		if hasActivity && len(changed) > 0 {
			result.Warnings = append(result.Warnings, revenue.ReasonRuleHasLedgerActivity)
		}
		if len(changed) == 0 {
			result.Rule = ToRevenueRuleResponse(rule)
			return nil
		}

		if input.Name != nil && rule.IsActive {
			exists, err := rules.ExistsActiveByName(ctx, rule.Name, &rule.ID)
			if err != nil {
				return err
			}
			if exists {
				return shared.NewValidationError(fmt.Sprintf("an active revenue rule named %q already exists", rule.Name))
			}
		}

		switch {
		case rule.IsDefault && !wasDefault:
			previous, err := s.takeOverDefault(ctx, rules, rule.ID)
			if err != nil {
				return err
			}
			rule.AddDomainEvent(revenue.NewDefaultRevenueRuleChangedEvent(idOf(previous), &rule.ID))
		case !rule.IsDefault && wasDefault:
			rule.AddDomainEvent(revenue.NewDefaultRevenueRuleChangedEvent(&rule.ID, nil))
		}

		if err := rules.SaveWithLock(ctx, rule); err != nil {
			return err
		}
		committed, err = stage(ctx, repos, rule)
		if err != nil {
			return err
		}
		result.Rule = ToRevenueRuleResponse(rule)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishCommitted(ctx, committed)
	if len(result.Warnings) > 0 {
		s.logger.Warn("revenue rule with ledger activity updated; change applies to future payments only",
			zap.String("rule_id", id.String()),
			zap.Strings("changed_fields", result.ChangedFields))
	}
	return result, nil
}

// Delete soft-deactivates a rule. Deleting an inactive rule is a no-op.
func (s *RevenueRuleService) Delete(ctx context.Context, id uuid.UUID) error {
	var committed []shared.DomainEvent
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		rule, err := repos.RuleRepo().FindByID(ctx, id)
		if err != nil {
			return err
		}
		wasDefault := rule.IsDefault
		if !rule.Deactivate() {
			return nil
		}
		if wasDefault {
			rule.AddDomainEvent(revenue.NewDefaultRevenueRuleChangedEvent(&rule.ID, nil))
		}
		if err := repos.RuleRepo().SaveWithLock(ctx, rule); err != nil {
			return err
		}
		committed, err = stage(ctx, repos, rule)
		return err
	})
	if err != nil {
		return err
	}
	s.publishCommitted(ctx, committed)
	return nil
}

// GetDefault returns the active default rule. A missing default is a hard
// stop for processing and is reported as NOT_FOUND with reason NO_DEFAULT_RULE.
func (s *RevenueRuleService) GetDefault(ctx context.Context) (*RevenueRuleResponse, error) {
	rule, err := s.ruleRepo.FindDefault(ctx)
	if err != nil {
		return nil, noDefaultRule(err)
	}
	resp := ToRevenueRuleResponse(rule)
	return &resp, nil
}

// noDefaultRule tags a NOT_FOUND from a default lookup with NO_DEFAULT_RULE
func noDefaultRule(err error) error {
	if shared.CodeOf(err) != shared.CodeNotFound {
		return err
	}
	return shared.NewNotFoundError("default revenue rule").WithReason(revenue.ReasonNoDefaultRule)
}

// GetByID retrieves a rule by id
func (s *RevenueRuleService) GetByID(ctx context.Context, id uuid.UUID) (*RevenueRuleResponse, error) {
	rule, err := s.ruleRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToRevenueRuleResponse(rule)
	return &resp, nil
}

// List returns a page of rules
func (s *RevenueRuleService) List(ctx context.Context, filter RevenueRuleListFilter) ([]RevenueRuleResponse, int64, error) {
	f := revenue.RevenueRuleFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
		}.Normalize(),
		ActiveOnly: filter.ActiveOnly,
	}
	rules, total, err := s.ruleRepo.FindAll(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	out := make([]RevenueRuleResponse, len(rules))
	for i, r := range rules {
		out[i] = ToRevenueRuleResponse(r)
	}
	return out, total, nil
}

// takeOverDefault clears the current default unless it is newID. It returns
// the rule that lost the flag, or nil.
func (s *RevenueRuleService) takeOverDefault(ctx context.Context, rules revenue.RevenueRuleRepository, newID uuid.UUID) (*revenue.RevenueRule, error) {
	current, err := rules.FindDefault(ctx)
	if err != nil {
		if shared.CodeOf(err) == shared.CodeNotFound {
			return nil, nil
		}
		return nil, err
	}
	if current.ID == newID {
		return nil, nil
	}
	current.ClearDefault()
	if err := rules.SaveWithLock(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}

func idOf(r *revenue.RevenueRule) *uuid.UUID {
	if r == nil {
		return nil
	}
	id := r.ID
	return &id
}
