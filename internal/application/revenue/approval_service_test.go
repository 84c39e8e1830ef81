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

func newPayment(t *testing.T, amount string, approvers ...string) *revenue.Payment {
	t.Helper()
	p, err := revenue.NewPayment(valueobject.MustMoney(amount, valueobject.USD), "INV-100", "", nil)
	require.NoError(t, err)
	for _, a := range approvers {
		_, _, err := p.Approve(a, 3)
		require.NoError(t, err)
	}
	p.ClearDomainEvents()
	return p
}

func newApprovalService(r *testRepos) *ApprovalService {
	svc := NewApprovalService(r.payments, r.scope, testSettings(), nil)
	svc.SetEventPublisher(r.publisher)
	return svc
}

func TestApprovalService_QuorumScenario(t *testing.T) {
	ctx := context.Background()
	r := newTestRepos()
	svc := newApprovalService(r)
	payment := newPayment(t, "1000")

	r.payments.On("FindByID", ctx, payment.ID).Return(payment, nil)
	r.payments.On("SaveWithLock", ctx, payment).Return(nil)

	res, err := svc.Approve(ctx, payment.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, revenue.ApprovalStatusPartiallyApproved, res.Status)

	res, err = svc.Approve(ctx, payment.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, revenue.ApprovalStatusPartiallyApproved, res.Status)
	assert.Equal(t, ApprovalProgress{Approvals: 2, Required: 3}, res.Progress)

	progress, err := svc.GetProgress(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, ApprovalProgress{Approvals: 2, Required: 3}, progress)

	res, err = svc.Approve(ctx, payment.ID, "carol")
	require.NoError(t, err)
	assert.Equal(t, revenue.ApprovalStatusVerified, res.Status)
	assert.True(t, res.VerifiedNow)
	assert.True(t, res.Payment.Verified)

	status, err := svc.GetStatus(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, revenue.ApprovalStatusVerified, status)

	assert.Len(t, r.publisher.GetEventsByType(revenue.EventTypePaymentApproved), 3)
	assert.Len(t, r.publisher.GetEventsByType(revenue.EventTypePaymentVerified), 1)
	assert.Len(t, r.scope.SavedEvents(), 4)
}

func TestApprovalService_ApproveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r := newTestRepos()
	svc := newApprovalService(r)
	payment := newPayment(t, "1000", "alice", "bob")

	r.payments.On("FindByID", ctx, payment.ID).Return(payment, nil)

	res, err := svc.Approve(ctx, payment.ID, "bob")

	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, []string{"alice", "bob"}, res.Payment.ApprovedBy)
	r.payments.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
	assert.Equal(t, 0, r.publisher.Count())
}

func TestApprovalService_ApproveRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	r := newTestRepos()
	svc := newApprovalService(r)
	first := newPayment(t, "1000", "alice")
	second := newPayment(t, "1000", "alice", "bob")
	second.ID = first.ID

	r.payments.On("FindByID", ctx, first.ID).Return(first, nil).Once()
	r.payments.On("FindByID", ctx, first.ID).Return(second, nil).Once()
	r.payments.On("SaveWithLock", ctx, first).Return(shared.NewConcurrencyConflictError("payment")).Once()
	r.payments.On("SaveWithLock", ctx, second).Return(nil).Once()

	res, err := svc.Approve(ctx, first.ID, "carol")

	require.NoError(t, err)
	assert.True(t, res.VerifiedNow)
	assert.Equal(t, []string{"alice", "bob", "carol"}, res.Payment.ApprovedBy)
	r.payments.AssertNumberOfCalls(t, "FindByID", 2)
	assert.Len(t, r.publisher.GetEventsByType(revenue.EventTypePaymentVerified), 1)
}

func TestApprovalService_ApproveGivesUpAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	r := newTestRepos()
	svc := newApprovalService(r)
	id := uuid.New()

	for i := 0; i < 3; i++ {
		p := newPayment(t, "10")
		p.ID = id
		r.payments.On("FindByID", ctx, id).Return(p, nil).Once()
	}
	r.payments.On("SaveWithLock", ctx, mock.Anything).Return(shared.NewConcurrencyConflictError("payment"))

	_, err := svc.Approve(ctx, id, "carol")

	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	r.payments.AssertNumberOfCalls(t, "SaveWithLock", 3)
}

func TestApprovalService_ApproveErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("not found is not retried", func(t *testing.T) {
		r := newTestRepos()
		svc := newApprovalService(r)
		id := uuid.New()
		r.payments.On("FindByID", ctx, id).Return(nil, shared.NewNotFoundError("payment"))

		_, err := svc.Approve(ctx, id, "alice")

		assert.ErrorIs(t, err, shared.ErrNotFound)
		r.payments.AssertNumberOfCalls(t, "FindByID", 1)
	})

	t.Run("frozen after processing", func(t *testing.T) {
		r := newTestRepos()
		svc := newApprovalService(r)
		payment := newPayment(t, "1000", "a", "b", "c")
		require.NoError(t, payment.MarkRevenueProcessed(uuid.New(), nil))
		r.payments.On("FindByID", ctx, payment.ID).Return(payment, nil)

		_, err := svc.Approve(ctx, payment.ID, "d")
		assert.ErrorIs(t, err, shared.ErrInvalidState)

		_, err = svc.RevokeApproval(ctx, payment.ID, "a")
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})
}

func TestApprovalService_RevokeApproval(t *testing.T) {
	ctx := context.Background()
	r := newTestRepos()
	svc := newApprovalService(r)
	payment := newPayment(t, "1000", "alice", "bob", "carol")
	r.payments.On("FindByID", ctx, payment.ID).Return(payment, nil)
	r.payments.On("SaveWithLock", ctx, payment).Return(nil)

	res, err := svc.RevokeApproval(ctx, payment.ID, "bob")

	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, revenue.ApprovalStatusPartiallyApproved, res.Status)
	assert.False(t, res.Payment.Verified)
	assert.Len(t, r.publisher.GetEventsByType(revenue.EventTypePaymentApprovalRevoked), 1)

	res, err = svc.RevokeApproval(ctx, payment.ID, "nobody")
	require.NoError(t, err)
	assert.False(t, res.Changed)
	r.payments.AssertNumberOfCalls(t, "SaveWithLock", 1)
}

func TestApprovalService_RecordPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("records with default currency", func(t *testing.T) {
		r := newTestRepos()
		svc := newApprovalService(r)
		r.payments.On("ExistsByReference", ctx, "INV-9").Return(false, nil)
		r.payments.On("Create", ctx, mock.AnythingOfType("*revenue.Payment")).Return(nil)

		resp, err := svc.RecordPayment(ctx, RecordPaymentInput{Amount: decimal.RequireFromString("250.50"), Reference: "INV-9"})

		require.NoError(t, err)
		assert.Equal(t, "USD", resp.Currency)
		assert.Equal(t, revenue.ApprovalStatusUnverified, resp.ApprovalStatus)
		assert.Len(t, r.publisher.GetEventsByType(revenue.EventTypePaymentRecorded), 1)
	})

	t.Run("rejects unknown currency", func(t *testing.T) {
		r := newTestRepos()
		svc := newApprovalService(r)

		_, err := svc.RecordPayment(ctx, RecordPaymentInput{Amount: decimal.NewFromInt(1), Currency: "XYZ1"})

		assert.ErrorIs(t, err, shared.ErrValidation)
		r.payments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("rejects duplicate reference", func(t *testing.T) {
		r := newTestRepos()
		svc := newApprovalService(r)
		r.payments.On("ExistsByReference", ctx, "INV-9").Return(true, nil)

		_, err := svc.RecordPayment(ctx, RecordPaymentInput{Amount: decimal.NewFromInt(1), Reference: "INV-9"})

		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		r := newTestRepos()
		svc := newApprovalService(r)

		_, err := svc.RecordPayment(ctx, RecordPaymentInput{Amount: decimal.NewFromInt(-5)})

		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}
