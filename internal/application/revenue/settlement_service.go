package revenue

import (
	"context"

	"github.com/google/uuid"
	"github.com/revsplit/backend/internal/domain/revenue"
	"github.com/revsplit/backend/internal/domain/shared"
	"github.com/revsplit/backend/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

// SettlementService clears batches of a party's pending entries
type SettlementService struct {
	eventSink
	settlementRepo revenue.SettlementRepository
	txScope        TransactionScope
	logger         *zap.Logger
}

// NewSettlementService creates a new SettlementService
func NewSettlementService(
	settlementRepo revenue.SettlementRepository,
	txScope TransactionScope,
	logger *zap.Logger,
) *SettlementService {
	logger = loggerOrNop(logger)
	return &SettlementService{
		eventSink:      eventSink{logger: logger},
		settlementRepo: settlementRepo,
		txScope:        txScope,
		logger:         logger,
	}
}

// CreateSettlement clears every referenced entry or none. Any missing,
// foreign, mixed-currency or non-pending entry rejects the whole batch.
func (s *SettlementService) CreateSettlement(ctx context.Context, input CreateSettlementInput) (*SettlementResponse, error) {
	party, err := revenue.ParseParty(input.Party)
	if err != nil {
		return nil, err
	}
	if len(input.EntryIDs) == 0 {
		return nil, shared.NewInvalidEntryError("a settlement must reference at least one ledger entry")
	}

	var (
		settlement *revenue.Settlement
		committed  []shared.DomainEvent
	)
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		entries, err := repos.EntryRepo().FindByIDs(ctx, input.EntryIDs)
		if err != nil {
			return err
		}
		settlement, err = revenue.NewSettlement(party, input.EntryIDs, entries, input.ProofReference, input.Notes, input.CreatedBy)
		if err != nil {
			return err
		}
		if err := repos.SettlementRepo().Create(ctx, settlement); err != nil {
			return err
		}
		if err := repos.EntryRepo().ClearWithLock(ctx, entries); err != nil {
			return err
		}
		committed, err = stage(ctx, repos, settlement)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCommitted(ctx, party)
	s.publishCommitted(ctx, committed)
	s.logger.Info("settlement created",
		zap.String("settlement_id", settlement.ID.String()),
		zap.String("party", party.String()),
		zap.String("total", settlement.Money().String()),
		zap.Int("entries", len(settlement.LedgerEntryIDs)))
	resp := ToSettlementResponse(settlement)
	return &resp, nil
}

// GetSettlement retrieves a settlement by id
func (s *SettlementService) GetSettlement(ctx context.Context, id uuid.UUID) (*SettlementResponse, error) {
	settlement, err := s.settlementRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToSettlementResponse(settlement)
	return &resp, nil
}

// ListSettlements returns a page of settlements, newest first by default
func (s *SettlementService) ListSettlements(ctx context.Context, filter SettlementListFilter) ([]SettlementResponse, int64, error) {
	f := revenue.SettlementFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  "settlement_date",
			OrderDir: filter.OrderDir,
		}.Normalize(),
		From: filter.From,
		To:   filter.To,
	}
	if filter.Party != "" {
		party, err := revenue.ParseParty(filter.Party)
		if err != nil {
			return nil, 0, err
		}
		f.Party = &party
	}
	if filter.Currency != "" {
		cur, err := valueobject.ParseCurrency(filter.Currency)
		if err != nil {
			return nil, 0, shared.NewValidationError(err.Error())
		}
		f.Currency = &cur
	}

	settlements, total, err := s.settlementRepo.FindAll(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	out := make([]SettlementResponse, len(settlements))
	for i, st := range settlements {
		out[i] = ToSettlementResponse(st)
	}
	return out, total, nil
}
