package revenue

import (
	"testing"

	"github.com/google/uuid"
	"github.com/revsplit/backend/internal/domain/shared"
	"github.com/revsplit/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPayment(t *testing.T, amount string) *Payment {
	t.Helper()
	p, err := NewPayment(valueobject.MustMoney(amount, valueobject.USD), "INV-1", "test", nil)
	require.NoError(t, err)
	p.ClearDomainEvents()
	return p
}

func verifiedPayment(t *testing.T, amount string) *Payment {
	t.Helper()
	p := newTestPayment(t, amount)
	for _, id := range []string{"u1", "u2", "u3"} {
		_, _, err := p.Approve(id, DefaultQuorum)
		require.NoError(t, err)
	}
	require.True(t, p.Verified)
	p.ClearDomainEvents()
	return p
}

func TestNewPayment(t *testing.T) {
	t.Run("records unverified payment", func(t *testing.T) {
		projectID := uuid.New()
		p, err := NewPayment(valueobject.MustMoney("1000", valueobject.USD), " INV-7 ", "", &projectID)

		require.NoError(t, err)
		assert.Equal(t, "INV-7", p.Reference)
		assert.False(t, p.Verified)
		assert.False(t, p.RevenueProcessed)
		assert.Empty(t, p.ApprovedBy)
		assert.Equal(t, ApprovalStatusUnverified, p.ApprovalStatus(DefaultQuorum))
		require.Len(t, p.GetDomainEvents(), 1)
		assert.Equal(t, EventTypePaymentRecorded, p.GetDomainEvents()[0].EventType())
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		_, err := NewPayment(valueobject.Zero(valueobject.USD), "", "", nil)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("rejects sub-minor-unit precision", func(t *testing.T) {
		_, err := NewPayment(valueobject.MustMoney("10.001", valueobject.USD), "", "", nil)
		assert.ErrorIs(t, err, shared.ErrValidation)

		_, err = NewPayment(valueobject.MustMoney("10.5", valueobject.JPY), "", "", nil)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestPayment_Approve(t *testing.T) {
	t.Run("reaches quorum on third distinct approver", func(t *testing.T) {
		p := newTestPayment(t, "100")

		changed, verified, err := p.Approve("u1", 3)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.False(t, verified)
		assert.Equal(t, ApprovalStatusPartiallyApproved, p.ApprovalStatus(3))

		_, verified, err = p.Approve("u2", 3)
		require.NoError(t, err)
		assert.False(t, verified)

		_, verified, err = p.Approve("u3", 3)
		require.NoError(t, err)
		assert.True(t, verified)
		assert.True(t, p.Verified)
		assert.NotNil(t, p.VerifiedAt)
		assert.Equal(t, ApprovalStatusVerified, p.ApprovalStatus(3))

		var types []string
		for _, e := range p.GetDomainEvents() {
			types = append(types, e.EventType())
		}
		assert.Equal(t, []string{
			EventTypePaymentApproved, EventTypePaymentApproved,
			EventTypePaymentApproved, EventTypePaymentVerified,
		}, types)
	})

	t.Run("duplicate approval is a no-op", func(t *testing.T) {
		p := newTestPayment(t, "100")
		_, _, err := p.Approve("u1", 3)
		require.NoError(t, err)
		_, _, err = p.Approve("u2", 3)
		require.NoError(t, err)
		p.ClearDomainEvents()

		changed, verified, err := p.Approve("u2", 3)

		require.NoError(t, err)
		assert.False(t, changed)
		assert.False(t, verified)
		assert.Equal(t, 2, p.ApprovalCount())
		assert.False(t, p.Verified)
		assert.Empty(t, p.GetDomainEvents())
	})

	t.Run("approvals past quorum do not re-verify", func(t *testing.T) {
		p := verifiedPayment(t, "100")

		changed, verified, err := p.Approve("u4", 3)

		require.NoError(t, err)
		assert.True(t, changed)
		assert.False(t, verified)
		assert.Equal(t, 4, p.ApprovalCount())
	})

	t.Run("rejects empty approver", func(t *testing.T) {
		p := newTestPayment(t, "100")
		_, _, err := p.Approve("  ", 3)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("new approvals are frozen after processing", func(t *testing.T) {
		p := verifiedPayment(t, "100")
		require.NoError(t, p.MarkRevenueProcessed(uuid.New(), nil))

		_, _, err := p.Approve("u9", 3)
		assert.ErrorIs(t, err, shared.ErrInvalidState)

		changed, _, err := p.Approve("u1", 3)
		require.NoError(t, err)
		assert.False(t, changed)
	})
}

func TestPayment_RevokeApproval(t *testing.T) {
	t.Run("dropping below quorum un-verifies", func(t *testing.T) {
		p := verifiedPayment(t, "100")

		changed, err := p.RevokeApproval("u2", 3)

		require.NoError(t, err)
		assert.True(t, changed)
		assert.False(t, p.Verified)
		assert.Equal(t, []string{"u1", "u3"}, p.ApprovedBy)
		assert.ErrorIs(t, p.CanProcessRevenue(), shared.ErrInvalidState)
	})

	t.Run("unknown approver is a no-op", func(t *testing.T) {
		p := newTestPayment(t, "100")
		changed, err := p.RevokeApproval("ghost", 3)
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("rejected after processing", func(t *testing.T) {
		p := verifiedPayment(t, "100")
		require.NoError(t, p.MarkRevenueProcessed(uuid.New(), nil))

		_, err := p.RevokeApproval("u1", 3)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})
}

func TestPayment_MarkRevenueProcessed(t *testing.T) {
	t.Run("unverified payment cannot be processed", func(t *testing.T) {
		p := newTestPayment(t, "100")
		err := p.MarkRevenueProcessed(uuid.New(), nil)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
		assert.False(t, p.RevenueProcessed)
	})

	t.Run("sets latch once", func(t *testing.T) {
		p := verifiedPayment(t, "100")
		ruleID := uuid.New()

		require.NoError(t, p.MarkRevenueProcessed(ruleID, nil))
		assert.True(t, p.RevenueProcessed)
		assert.Equal(t, ruleID, *p.RevenueRuleID)
		assert.NotNil(t, p.RevenueProcessedAt)

		err := p.MarkRevenueProcessed(uuid.New(), nil)
		assert.ErrorIs(t, err, shared.ErrAlreadyProcessed)
		assert.Equal(t, ruleID, *p.RevenueRuleID)
	})
}

func TestPayment_MarkReversed(t *testing.T) {
	t.Run("requires processed revenue", func(t *testing.T) {
		p := verifiedPayment(t, "100")
		err := p.MarkReversed("refund", nil)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})

	t.Run("reverses once", func(t *testing.T) {
		p := verifiedPayment(t, "100")
		require.NoError(t, p.MarkRevenueProcessed(uuid.New(), nil))
		p.ClearDomainEvents()

		require.NoError(t, p.MarkReversed("chargeback", nil))
		assert.True(t, p.Reversed)
		assert.Equal(t, "chargeback", p.ReversalReason)
		assert.Len(t, p.GetDomainEvents(), 2)

		assert.ErrorIs(t, p.MarkReversed("again", nil), shared.ErrAlreadyProcessed)
	})

	t.Run("requires reason", func(t *testing.T) {
		p := verifiedPayment(t, "100")
		require.NoError(t, p.MarkRevenueProcessed(uuid.New(), nil))
		assert.ErrorIs(t, p.MarkReversed(" ", nil), shared.ErrValidation)
	})
}

func TestPayment_DisplayReference(t *testing.T) {
	p := newTestPayment(t, "1")
	assert.Equal(t, "INV-1", p.DisplayReference())
	p.Reference = ""
	assert.Equal(t, p.ID.String(), p.DisplayReference())
}
