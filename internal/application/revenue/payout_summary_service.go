package revenue

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/revsplit/backend/internal/domain/revenue"
	"github.com/revsplit/backend/internal/domain/shared"
	"github.com/revsplit/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PayoutSummaryService aggregates pending balances across parties for the
// dashboard. One party failing never fails the summary.
type PayoutSummaryService struct {
	balances BalanceReader
	settings Settings
	logger   *zap.Logger
}

// NewPayoutSummaryService creates a new PayoutSummaryService
func NewPayoutSummaryService(balances BalanceReader, settings Settings, logger *zap.Logger) *PayoutSummaryService {
	return &PayoutSummaryService{
		balances: balances,
		settings: settings.normalize(),
		logger:   loggerOrNop(logger),
	}
}

// ParseParties parses a comma separated party list. Blank input means all parties.
func ParseParties(raw string) ([]revenue.Party, error) {
	var out []revenue.Party
	for _, name := range strings.Split(raw, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		p, err := revenue.ParseParty(name)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

type partyOutcome struct {
	balance *BalanceResponse
	err     error
}

// Summarize reads every requested party's balance concurrently. Failed
// parties are flagged and left out of the totals. An empty party list means
// all parties.
//
// A nil currency is resolved per party the way GetBalance does it. The
// parties with pending revenue must then agree on one currency, otherwise
// the summary fails with CURRENCY_REQUIRED; with nothing pending the
// default currency is reported.
func (s *PayoutSummaryService) Summarize(ctx context.Context, parties []revenue.Party, currency *valueobject.Currency) (*PayoutSummary, error) {
	parties, err := s.normalizeParties(parties)
	if err != nil {
		return nil, err
	}
	if currency != nil && !currency.IsValid() {
		return nil, shared.NewValidationError("invalid currency " + currency.String())
	}

	var mu sync.Mutex
	outcomes := make(map[revenue.Party]partyOutcome, len(parties))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.settings.SummaryConcurrency)
	for _, party := range parties {
		g.Go(func() error {
			b, err := s.balances.GetBalance(gctx, party, currency)
			mu.Lock()
			outcomes[party] = partyOutcome{balance: b, err: err}
			mu.Unlock()
			// per-party failures are reported, never propagated
			return nil
		})
	}
	_ = g.Wait()

	cur, err := s.summaryCurrency(parties, outcomes, currency)
	if err != nil {
		return nil, err
	}
	summary := &PayoutSummary{
		TotalPending:            decimal.Zero,
		Currency:                cur.String(),
		Payouts:                 make(map[revenue.Party]PartyPayout, len(parties)),
		PartiesNeedingAttention: []revenue.Party{},
		GeneratedAt:             time.Now().UTC(),
	}
	total := decimal.Zero
	var highest decimal.Decimal
	for _, party := range parties {
		outcome := outcomes[party]
		if outcome.err != nil {
			s.logger.Warn("pending payout unavailable for party",
				zap.String("party", party.String()),
				zap.Error(outcome.err))
			summary.Payouts[party] = PartyPayout{
				Amount: decimal.Zero,
				Error:  &PayoutError{Code: errorCode(outcome.err), Message: outcome.err.Error()},
			}
			continue
		}

		pending := valueobject.NormalizeZero(outcome.balance.TotalPending)
		summary.Payouts[party] = PartyPayout{
			Amount:     pending,
			Currency:   outcome.balance.Currency,
			EntryCount: outcome.balance.PendingEntryCount,
		}
		total = total.Add(pending)

		if pending.IsPositive() {
			summary.PartiesNeedingAttention = append(summary.PartiesNeedingAttention, party)
			if summary.HighestPendingParty == nil || pending.GreaterThan(highest) {
				p := party
				summary.HighestPendingParty = &p
				highest = pending
			}
		}
	}
	summary.TotalPending = valueobject.NormalizeZero(total.Round(2))
	return summary, nil
}

func (s *PayoutSummaryService) summaryCurrency(parties []revenue.Party, outcomes map[revenue.Party]partyOutcome, requested *valueobject.Currency) (valueobject.Currency, error) {
	if requested != nil {
		return *requested, nil
	}
	var found []string
	for _, party := range parties {
		outcome := outcomes[party]
		if outcome.err != nil || !outcome.balance.TotalPending.IsPositive() {
			continue
		}
		if !slices.Contains(found, outcome.balance.Currency) {
			found = append(found, outcome.balance.Currency)
		}
	}
	switch len(found) {
	case 0:
		return s.settings.DefaultCurrency, nil
	case 1:
		return valueobject.Currency(found[0]), nil
	default:
		return "", shared.NewValidationError(
			"pending payouts span currencies " + strings.Join(found, ", ") + "; a currency must be specified",
		).WithReason(revenue.ReasonCurrencyRequired)
	}
}

// normalizeParties deduplicates and returns parties in canonical order
func (s *PayoutSummaryService) normalizeParties(parties []revenue.Party) ([]revenue.Party, error) {
	if len(parties) == 0 {
		return append([]revenue.Party(nil), revenue.AllParties...), nil
	}
	requested := make(map[revenue.Party]bool, len(parties))
	for _, p := range parties {
		if !p.IsValid() {
			return nil, shared.NewValidationError("unknown party " + p.String())
		}
		requested[p] = true
	}
	out := make([]revenue.Party, 0, len(requested))
	for _, p := range revenue.AllParties {
		if requested[p] {
			out = append(out, p)
		}
	}
	return out, nil
}

func errorCode(err error) string {
	if code := shared.CodeOf(err); code != "" {
		return code
	}
	return shared.CodeStoreUnavailable
}
