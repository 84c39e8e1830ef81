package revenue

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/revsplit/backend/internal/domain/revenue"
	"github.com/revsplit/backend/internal/domain/shared"
	"github.com/revsplit/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newCredit(t *testing.T, party revenue.Party, amount string) *revenue.LedgerEntry {
	t.Helper()
	payment := newPayment(t, "1000")
	e, err := revenue.NewCreditEntry(party, valueobject.MustMoney(amount, valueobject.USD), payment, uuid.New(), "")
	require.NoError(t, err)
	return e
}

func newSettlementService(r *testRepos) *SettlementService {
	svc := NewSettlementService(r.settlements, r.scope, nil)
	svc.SetEventPublisher(r.publisher)
	svc.SetBalanceInvalidator(r.balances)
	return svc
}

func TestSettlementService_CreateSettlement(t *testing.T) {
	ctx := context.Background()

	t.Run("clears the whole batch", func(t *testing.T) {
		r := newTestRepos()
		svc := newSettlementService(r)
		e1 := newCredit(t, revenue.PartyVendor, "200")
		e2 := newCredit(t, revenue.PartyVendor, "50.25")
		ids := []uuid.UUID{e1.ID, e2.ID}

		r.entries.On("FindByIDs", ctx, ids).Return([]*revenue.LedgerEntry{e1, e2}, nil)
		r.settlements.On("Create", ctx, mock.AnythingOfType("*revenue.Settlement")).Return(nil)
		r.entries.On("ClearWithLock", ctx, []*revenue.LedgerEntry{e1, e2}).Return(nil)

		resp, err := svc.CreateSettlement(ctx, CreateSettlementInput{
			Party:          "vendor",
			EntryIDs:       ids,
			ProofReference: "WIRE-7",
			CreatedBy:      "ops",
		})

		require.NoError(t, err)
		assert.True(t, resp.TotalAmount.Equal(decimal.RequireFromString("250.25")))
		assert.Equal(t, "USD", resp.Currency)
		assert.Equal(t, revenue.EntryStatusCleared, e1.Status)
		assert.Equal(t, revenue.EntryStatusCleared, e2.Status)
		assert.Len(t, r.publisher.GetEventsByType(revenue.EventTypeSettlementCreated), 1)
		assert.Equal(t, []revenue.Party{revenue.PartyVendor}, r.balances.Invalidated())
	})

	t.Run("already cleared entry rejects the batch", func(t *testing.T) {
		r := newTestRepos()
		svc := newSettlementService(r)
		e1 := newCredit(t, revenue.PartyVendor, "200")
		e2 := newCredit(t, revenue.PartyVendor, "50")
		require.NoError(t, e2.Clear(uuid.New()))
		ids := []uuid.UUID{e1.ID, e2.ID}
		r.entries.On("FindByIDs", ctx, ids).Return([]*revenue.LedgerEntry{e1, e2}, nil)

		_, err := svc.CreateSettlement(ctx, CreateSettlementInput{Party: "vendor", EntryIDs: ids, CreatedBy: "ops"})

		assert.ErrorIs(t, err, shared.ErrInvalidEntry)
		assert.Equal(t, revenue.EntryStatusPending, e1.Status)
		r.settlements.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		r.entries.AssertNotCalled(t, "ClearWithLock", mock.Anything, mock.Anything)
		assert.Empty(t, r.balances.Invalidated())
	})

	t.Run("other party's entry rejects the batch", func(t *testing.T) {
		r := newTestRepos()
		svc := newSettlementService(r)
		e1 := newCredit(t, revenue.PartyVendor, "200")
		e2 := newCredit(t, revenue.PartyTeam, "50")
		ids := []uuid.UUID{e1.ID, e2.ID}
		r.entries.On("FindByIDs", ctx, ids).Return([]*revenue.LedgerEntry{e1, e2}, nil)

		_, err := svc.CreateSettlement(ctx, CreateSettlementInput{Party: "vendor", EntryIDs: ids, CreatedBy: "ops"})

		assert.ErrorIs(t, err, shared.ErrInvalidEntry)
	})

	t.Run("concurrent clear surfaces conflict", func(t *testing.T) {
		r := newTestRepos()
		svc := newSettlementService(r)
		e1 := newCredit(t, revenue.PartyAdmin, "10")
		ids := []uuid.UUID{e1.ID}
		r.entries.On("FindByIDs", ctx, ids).Return([]*revenue.LedgerEntry{e1}, nil)
		r.settlements.On("Create", ctx, mock.Anything).Return(nil)
		r.entries.On("ClearWithLock", ctx, mock.Anything).Return(shared.NewConcurrencyConflictError("ledger entry"))

		_, err := svc.CreateSettlement(ctx, CreateSettlementInput{Party: "admin", EntryIDs: ids, CreatedBy: "ops"})

		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.Equal(t, 0, r.publisher.Count())
	})

	t.Run("empty batch and bad party", func(t *testing.T) {
		r := newTestRepos()
		svc := newSettlementService(r)

		_, err := svc.CreateSettlement(ctx, CreateSettlementInput{Party: "admin", CreatedBy: "ops"})
		assert.ErrorIs(t, err, shared.ErrInvalidEntry)

		_, err = svc.CreateSettlement(ctx, CreateSettlementInput{Party: "owner", EntryIDs: []uuid.UUID{uuid.New()}, CreatedBy: "ops"})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}
