package revenue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/revsplit/backend/internal/domain/revenue"
	"github.com/revsplit/backend/internal/domain/shared"
	"github.com/revsplit/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestBalanceService_GetBalance(t *testing.T) {
	ctx := context.Background()
	usd := valueobject.USD

	t.Run("uses the party's only currency", func(t *testing.T) {
		r := newTestRepos()
		svc := NewBalanceService(r.entries, nil, testSettings(), nil)
		e1 := newCredit(t, revenue.PartyAdmin, "400")
		e2 := newCredit(t, revenue.PartyAdmin, "100")
		r.entries.On("CurrenciesForParty", ctx, revenue.PartyAdmin).Return([]valueobject.Currency{usd}, nil)
		r.entries.On("FindForParty", ctx, revenue.PartyAdmin, &usd, (*revenue.EntryStatus)(nil)).Return([]*revenue.LedgerEntry{e1, e2}, nil)

		b, err := svc.GetBalance(ctx, revenue.PartyAdmin, nil)

		require.NoError(t, err)
		assert.Equal(t, "USD", b.Currency)
		assert.True(t, b.TotalPending.Equal(decimal.NewFromInt(500)))
		assert.True(t, b.NetBalance.Equal(decimal.NewFromInt(500)))
		assert.Equal(t, 2, b.PendingEntryCount)
	})

	t.Run("no entries yields zero in default currency", func(t *testing.T) {
		r := newTestRepos()
		svc := NewBalanceService(r.entries, nil, testSettings(), nil)
		r.entries.On("CurrenciesForParty", ctx, revenue.PartyTeam).Return([]valueobject.Currency{}, nil)
		r.entries.On("FindForParty", ctx, revenue.PartyTeam, &usd, (*revenue.EntryStatus)(nil)).Return([]*revenue.LedgerEntry{}, nil)

		b, err := svc.GetBalance(ctx, revenue.PartyTeam, nil)

		require.NoError(t, err)
		assert.Equal(t, "USD", b.Currency)
		assert.Equal(t, "0", b.NetBalance.String())
	})

	t.Run("several currencies require an explicit one", func(t *testing.T) {
		r := newTestRepos()
		svc := NewBalanceService(r.entries, nil, testSettings(), nil)
		r.entries.On("CurrenciesForParty", ctx, revenue.PartyTeam).Return([]valueobject.Currency{valueobject.EUR, usd}, nil)

		_, err := svc.GetBalance(ctx, revenue.PartyTeam, nil)

		require.ErrorIs(t, err, shared.ErrValidation)
		var de *shared.DomainError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, revenue.ReasonCurrencyRequired, de.Reason)
	})

	t.Run("unknown party", func(t *testing.T) {
		r := newTestRepos()
		svc := NewBalanceService(r.entries, nil, testSettings(), nil)

		_, err := svc.GetBalance(ctx, revenue.Party("owner"), &usd)

		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("cache hit skips the ledger", func(t *testing.T) {
		r := newTestRepos()
		cache := new(MockBalanceCache)
		svc := NewBalanceService(r.entries, cache, testSettings(), nil)
		cached := &revenue.PartyBalance{
			Party:        revenue.PartyVendor,
			Currency:     usd,
			TotalPending: decimal.NewFromInt(42),
			TotalCleared: decimal.Zero,
			NetBalance:   decimal.NewFromInt(42),
			LastUpdated:  time.Now().UTC(),
		}
		cache.On("Get", ctx, revenue.PartyVendor, usd).Return(cached, true, nil)

		b, err := svc.GetBalance(ctx, revenue.PartyVendor, &usd)

		require.NoError(t, err)
		assert.True(t, b.TotalPending.Equal(decimal.NewFromInt(42)))
		r.entries.AssertNotCalled(t, "FindForParty", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("cache failure falls back to the ledger", func(t *testing.T) {
		r := newTestRepos()
		cache := new(MockBalanceCache)
		svc := NewBalanceService(r.entries, cache, testSettings(), nil)
		e1 := newCredit(t, revenue.PartyVendor, "7")
		cache.On("Get", ctx, revenue.PartyVendor, usd).Return(nil, false, errors.New("redis down"))
		cache.On("Set", ctx, mock.AnythingOfType("revenue.PartyBalance")).Return(errors.New("redis down"))
		r.entries.On("FindForParty", ctx, revenue.PartyVendor, &usd, (*revenue.EntryStatus)(nil)).Return([]*revenue.LedgerEntry{e1}, nil)

		b, err := svc.GetBalance(ctx, revenue.PartyVendor, &usd)

		require.NoError(t, err)
		assert.True(t, b.TotalPending.Equal(decimal.NewFromInt(7)))
		cache.AssertExpectations(t)
	})
}

func TestBalanceService_InvalidateBalances(t *testing.T) {
	ctx := context.Background()
	usd := valueobject.USD

	t.Run("drops the cached balance so the next read hits the ledger", func(t *testing.T) {
		r := newTestRepos()
		cache := new(MockBalanceCache)
		svc := NewBalanceService(r.entries, cache, testSettings(), nil)
		credit := newCredit(t, revenue.PartyVendor, "20")
		cache.On("Get", ctx, revenue.PartyVendor, usd).Return(nil, false, nil).Twice()
		cache.On("Set", ctx, mock.AnythingOfType("revenue.PartyBalance")).Return(nil).Twice()
		cache.On("Invalidate", ctx, revenue.PartyVendor).Return(nil).Once()
		r.entries.On("FindForParty", ctx, revenue.PartyVendor, &usd, (*revenue.EntryStatus)(nil)).
			Return([]*revenue.LedgerEntry{credit}, nil).Once()

		before, err := svc.GetBalance(ctx, revenue.PartyVendor, &usd)
		require.NoError(t, err)
		assert.True(t, before.TotalPending.Equal(decimal.NewFromInt(20)))

		require.NoError(t, credit.Clear(uuid.New()))
		svc.InvalidateBalances(ctx, revenue.PartyVendor)
		r.entries.On("FindForParty", ctx, revenue.PartyVendor, &usd, (*revenue.EntryStatus)(nil)).
			Return([]*revenue.LedgerEntry{credit}, nil).Once()

		after, err := svc.GetBalance(ctx, revenue.PartyVendor, &usd)
		require.NoError(t, err)
		assert.True(t, after.TotalPending.IsZero())
		assert.True(t, after.TotalCleared.Equal(decimal.NewFromInt(20)))
		cache.AssertExpectations(t)
	})

	t.Run("read racing an invalidation is not cached", func(t *testing.T) {
		r := newTestRepos()
		cache := new(MockBalanceCache)
		svc := NewBalanceService(r.entries, cache, testSettings(), nil)
		credit := newCredit(t, revenue.PartyTeam, "30")
		cache.On("Get", ctx, revenue.PartyTeam, usd).Return(nil, false, nil)
		cache.On("Invalidate", ctx, revenue.PartyTeam).Return(nil)
		r.entries.On("FindForParty", ctx, revenue.PartyTeam, &usd, (*revenue.EntryStatus)(nil)).
			Run(func(mock.Arguments) { svc.InvalidateBalances(ctx, revenue.PartyTeam) }).
			Return([]*revenue.LedgerEntry{credit}, nil)

		b, err := svc.GetBalance(ctx, revenue.PartyTeam, &usd)

		require.NoError(t, err)
		assert.True(t, b.TotalPending.Equal(decimal.NewFromInt(30)))
		cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything)
	})

	t.Run("cache failure is tolerated", func(t *testing.T) {
		r := newTestRepos()
		cache := new(MockBalanceCache)
		svc := NewBalanceService(r.entries, cache, testSettings(), nil)
		cache.On("Invalidate", ctx, revenue.PartyAdmin).Return(errors.New("redis down"))

		assert.NotPanics(t, func() { svc.InvalidateBalances(ctx, revenue.PartyAdmin) })
		cache.AssertExpectations(t)
	})
}

func TestBalanceService_GetPendingEntriesForSettlement(t *testing.T) {
	ctx := context.Background()
	r := newTestRepos()
	svc := NewBalanceService(r.entries, nil, testSettings(), nil)
	older := newCredit(t, revenue.PartyAdmin, "1")
	newer := newCredit(t, revenue.PartyAdmin, "2")
	older.EntryDate = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer.EntryDate = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	pending := revenue.EntryStatusPending
	r.entries.On("FindForParty", ctx, revenue.PartyAdmin, (*valueobject.Currency)(nil), &pending).
		Return([]*revenue.LedgerEntry{newer, older}, nil)

	entries, err := svc.GetPendingEntriesForSettlement(ctx, revenue.PartyAdmin, nil)

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, older.ID, entries[0].ID)
	assert.Equal(t, newer.ID, entries[1].ID)
}

func TestBalanceService_PendingEntriesSkipReversedPairs(t *testing.T) {
	ctx := context.Background()
	r := newTestRepos()
	svc := NewBalanceService(r.entries, nil, testSettings(), nil)
	reversed := newCredit(t, revenue.PartyVendor, "20")
	debit, err := revenue.NewReversalEntry(reversed, "chargeback")
	require.NoError(t, err)
	live := newCredit(t, revenue.PartyVendor, "35")
	pending := revenue.EntryStatusPending
	r.entries.On("FindForParty", ctx, revenue.PartyVendor, (*valueobject.Currency)(nil), &pending).
		Return([]*revenue.LedgerEntry{reversed, debit, live}, nil)

	entries, err := svc.GetPendingEntriesForSettlement(ctx, revenue.PartyVendor, nil)

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, live.ID, entries[0].ID)
}
