package revenue

import (
	"context"
	"fmt"
	"sync"

	"github.com/revsplit/backend/internal/domain/revenue"
	"github.com/revsplit/backend/internal/domain/shared"
	"github.com/revsplit/backend/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

// BalanceCache stores computed balances. It is a disposable projection:
// callers fall back to the ledger on any cache error.
type BalanceCache interface {
	Get(ctx context.Context, party revenue.Party, currency valueobject.Currency) (*revenue.PartyBalance, bool, error)
	Set(ctx context.Context, balance revenue.PartyBalance) error
	// Invalidate drops every cached currency for the party
	Invalidate(ctx context.Context, party revenue.Party) error
}

// BalanceReader is the read side consumed by the payout summarizer
type BalanceReader interface {
	GetBalance(ctx context.Context, party revenue.Party, currency *valueobject.Currency) (*BalanceResponse, error)
}

// BalanceService derives party balances from ledger entries. Each party has
// a generation that InvalidateBalances bumps; a balance read from the ledger
// is only cached when its party's generation did not move meanwhile.
type BalanceService struct {
	entryRepo revenue.LedgerEntryRepository
	cache     BalanceCache
	settings  Settings
	logger    *zap.Logger

	mu          sync.Mutex
	generations map[revenue.Party]uint64
}

// NewBalanceService creates a new BalanceService. cache may be nil.
func NewBalanceService(
	entryRepo revenue.LedgerEntryRepository,
	cache BalanceCache,
	settings Settings,
	logger *zap.Logger,
) *BalanceService {
	return &BalanceService{
		entryRepo:   entryRepo,
		cache:       cache,
		settings:    settings.normalize(),
		logger:      loggerOrNop(logger),
		generations: make(map[revenue.Party]uint64),
	}
}

// GetBalance folds the party's entries into pending, cleared and net totals.
// Without a currency the party's only currency is used; a party holding
// several currencies must name one.
func (s *BalanceService) GetBalance(ctx context.Context, party revenue.Party, currency *valueobject.Currency) (*BalanceResponse, error) {
	if !party.IsValid() {
		return nil, shared.NewValidationError(fmt.Sprintf("unknown party %q", party))
	}
	cur, err := s.resolveCurrency(ctx, party, currency)
	if err != nil {
		return nil, err
	}

	if cached, ok := s.cached(ctx, party, cur); ok {
		resp := ToBalanceResponse(*cached)
		return &resp, nil
	}

	gen := s.generation(party)
	entries, err := s.entryRepo.FindForParty(ctx, party, &cur, nil)
	if err != nil {
		return nil, err
	}
	balance := revenue.ComputeBalance(party, cur, entries)

	s.store(ctx, gen, balance)
	resp := ToBalanceResponse(balance)
	return &resp, nil
}

// InvalidateBalances drops the cached balances of parties. Reads that
// started before the call will not repopulate the cache.
func (s *BalanceService) InvalidateBalances(ctx context.Context, parties ...revenue.Party) {
	s.mu.Lock()
	for _, party := range parties {
		s.generations[party]++
	}
	s.mu.Unlock()

	if s.cache == nil {
		return
	}
	for _, party := range parties {
		if err := s.cache.Invalidate(ctx, party); err != nil {
			s.logger.Warn("balance cache invalidation failed",
				zap.String("party", party.String()),
				zap.Error(err))
		}
	}
}

func (s *BalanceService) generation(party revenue.Party) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[party]
}

// store caches balance unless its party was invalidated after gen was read
func (s *BalanceService) store(ctx context.Context, gen uint64, balance revenue.PartyBalance) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[balance.Party] != gen {
		s.logger.Debug("skipping cache write for invalidated balance",
			zap.String("party", balance.Party.String()))
		return
	}
	if err := s.cache.Set(ctx, balance); err != nil {
		s.logger.Warn("balance cache write failed",
			zap.String("party", balance.Party.String()),
			zap.Error(err))
	}
}

// GetPendingEntriesForSettlement lists pending entries oldest first with the
// entry id as tie-break. Reversed credits and their offsetting debits are
// left out.
func (s *BalanceService) GetPendingEntriesForSettlement(ctx context.Context, party revenue.Party, currency *valueobject.Currency) ([]LedgerEntryResponse, error) {
	if !party.IsValid() {
		return nil, shared.NewValidationError(fmt.Sprintf("unknown party %q", party))
	}
	pending := revenue.EntryStatusPending
	entries, err := s.entryRepo.FindForParty(ctx, party, currency, &pending)
	if err != nil {
		return nil, err
	}
	entries = revenue.WithoutOffsetPairs(entries)
	revenue.SortForSettlement(entries)
	return ToLedgerEntryResponses(entries), nil
}

func (s *BalanceService) resolveCurrency(ctx context.Context, party revenue.Party, currency *valueobject.Currency) (valueobject.Currency, error) {
	if currency != nil {
		if !currency.IsValid() {
			return "", shared.NewValidationError(fmt.Sprintf("invalid currency %q", *currency))
		}
		return *currency, nil
	}
	currencies, err := s.entryRepo.CurrenciesForParty(ctx, party)
	if err != nil {
		return "", err
	}
	switch len(currencies) {
	case 0:
		return s.settings.DefaultCurrency, nil
	case 1:
		return currencies[0], nil
	default:
		return "", shared.NewValidationError(
			fmt.Sprintf("%s has entries in %d currencies; a currency must be specified", party, len(currencies)),
		).WithReason(revenue.ReasonCurrencyRequired)
	}
}

func (s *BalanceService) cached(ctx context.Context, party revenue.Party, cur valueobject.Currency) (*revenue.PartyBalance, bool) {
	if s.cache == nil {
		return nil, false
	}
	b, ok, err := s.cache.Get(ctx, party, cur)
	if err != nil {
		s.logger.Warn("balance cache read failed, reading ledger",
			zap.String("party", party.String()),
			zap.Error(err))
		return nil, false
	}
	return b, ok
}

var (
	_ BalanceReader      = (*BalanceService)(nil)
	_ BalanceInvalidator = (*BalanceService)(nil)
)
