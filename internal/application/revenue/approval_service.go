package revenue

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/revsplit/backend/internal/domain/revenue"
	"github.com/revsplit/backend/internal/domain/shared"
	"github.com/revsplit/backend/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

// ApprovalService records payments and gates them behind a quorum of
// distinct approvers.
type ApprovalService struct {
	eventSink
	paymentRepo revenue.PaymentRepository
	txScope     TransactionScope
	settings    Settings
	logger      *zap.Logger
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(
	paymentRepo revenue.PaymentRepository,
	txScope TransactionScope,
	settings Settings,
	logger *zap.Logger,
) *ApprovalService {
	logger = loggerOrNop(logger)
	return &ApprovalService{
		eventSink:   eventSink{logger: logger},
		paymentRepo: paymentRepo,
		txScope:     txScope,
		settings:    settings.normalize(),
		logger:      logger,
	}
}

// Quorum is the number of distinct approvers that verifies a payment
func (s *ApprovalService) Quorum() int {
	return s.settings.ApprovalQuorum
}

// RecordPayment stores a new unverified payment
func (s *ApprovalService) RecordPayment(ctx context.Context, input RecordPaymentInput) (*PaymentResponse, error) {
	cur := s.settings.DefaultCurrency
	if input.Currency != "" {
		parsed, err := valueobject.ParseCurrency(input.Currency)
		if err != nil {
			return nil, shared.NewValidationError(err.Error())
		}
		cur = parsed
	}
	amount, err := valueobject.NewMoney(input.Amount, cur)
	if err != nil {
		return nil, shared.NewValidationError(err.Error())
	}
	payment, err := revenue.NewPayment(amount, input.Reference, input.Description, input.ProjectID)
	if err != nil {
		return nil, err
	}

	var committed []shared.DomainEvent
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if payment.Reference != "" {
			exists, err := repos.PaymentRepo().ExistsByReference(ctx, payment.Reference)
			if err != nil {
				return err
			}
			if exists {
				return shared.NewValidationError("a payment with this reference already exists")
			}
		}
		if err := repos.PaymentRepo().Create(ctx, payment); err != nil {
			return err
		}
		committed, err = stage(ctx, repos, payment)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishCommitted(ctx, committed)
	s.logger.Info("payment recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("amount", payment.Money().String()))
	resp := ToPaymentResponse(payment, s.Quorum())
	return &resp, nil
}

// GetPayment retrieves a payment by id
func (s *ApprovalService) GetPayment(ctx context.Context, id uuid.UUID) (*PaymentResponse, error) {
	payment, err := s.paymentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToPaymentResponse(payment, s.Quorum())
	return &resp, nil
}

// ListPayments returns a page of payments, newest first by default
func (s *ApprovalService) ListPayments(ctx context.Context, filter PaymentListFilter) ([]PaymentResponse, int64, error) {
	projectID, err := optionalUUID("project_id", filter.ProjectID)
	if err != nil {
		return nil, 0, err
	}
	f := revenue.PaymentFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  "created_at",
			OrderDir: filter.OrderDir,
		}.Normalize(),
		Verified:         filter.Verified,
		RevenueProcessed: filter.RevenueProcessed,
		ProjectID:        projectID,
	}
	payments, total, err := s.paymentRepo.FindAll(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	out := make([]PaymentResponse, len(payments))
	for i, p := range payments {
		out[i] = ToPaymentResponse(p, s.Quorum())
	}
	return out, total, nil
}

// Approve adds approverID to the payment's approvals. Re-approving is a
// no-op. A concurrent write on the same payment makes the whole
// read-validate-write cycle retry, up to the configured limit.
func (s *ApprovalService) Approve(ctx context.Context, paymentID uuid.UUID, approverID string) (*ApprovalResult, error) {
	return s.withRetry(ctx, paymentID, "approve", func(payment *revenue.Payment) (bool, bool, error) {
		return payment.Approve(approverID, s.Quorum())
	})
}

// RevokeApproval removes approverID while revenue is unprocessed
func (s *ApprovalService) RevokeApproval(ctx context.Context, paymentID uuid.UUID, approverID string) (*ApprovalResult, error) {
	return s.withRetry(ctx, paymentID, "revoke", func(payment *revenue.Payment) (bool, bool, error) {
		changed, err := payment.RevokeApproval(approverID, s.Quorum())
		return changed, false, err
	})
}

type approvalMutation func(payment *revenue.Payment) (changed, verifiedNow bool, err error)

func (s *ApprovalService) withRetry(ctx context.Context, paymentID uuid.UUID, op string, mutate approvalMutation) (*ApprovalResult, error) {
	var lastErr error
	for attempt := 1; attempt <= s.settings.MaxRetries; attempt++ {
		result, committed, err := s.applyOnce(ctx, paymentID, mutate)
		if err == nil {
			s.publishCommitted(ctx, committed)
			if result.VerifiedNow {
				s.logger.Info("payment verified",
					zap.String("payment_id", paymentID.String()),
					zap.Int("approvals", result.Progress.Approvals))
			}
			return result, nil
		}
		if !errors.Is(err, shared.ErrConcurrencyConflict) {
			return nil, err
		}
		lastErr = err
		s.logger.Debug("approval write conflicted, retrying",
			zap.String("payment_id", paymentID.String()),
			zap.String("op", op),
			zap.Int("attempt", attempt))
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (s *ApprovalService) applyOnce(ctx context.Context, paymentID uuid.UUID, mutate approvalMutation) (*ApprovalResult, []shared.DomainEvent, error) {
	var (
		result    *ApprovalResult
		committed []shared.DomainEvent
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		payment, err := repos.PaymentRepo().FindByID(ctx, paymentID)
		if err != nil {
			return err
		}
		changed, verifiedNow, err := mutate(payment)
		if err != nil {
			return err
		}
		if changed {
			if err := repos.PaymentRepo().SaveWithLock(ctx, payment); err != nil {
				return err
			}
			committed, err = stage(ctx, repos, payment)
			if err != nil {
				return err
			}
		}
		result = s.toApprovalResult(payment)
		result.Changed = changed
		result.VerifiedNow = verifiedNow
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, committed, nil
}

// GetStatus derives the approval state of a payment
func (s *ApprovalService) GetStatus(ctx context.Context, paymentID uuid.UUID) (revenue.ApprovalStatus, error) {
	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return "", err
	}
	return payment.ApprovalStatus(s.Quorum()), nil
}

// GetProgress reports approvals collected against the quorum
func (s *ApprovalService) GetProgress(ctx context.Context, paymentID uuid.UUID) (ApprovalProgress, error) {
	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return ApprovalProgress{}, err
	}
	return ApprovalProgress{Approvals: payment.ApprovalCount(), Required: s.Quorum()}, nil
}

// GetApprovalStatus combines status, progress and the approver list
func (s *ApprovalService) GetApprovalStatus(ctx context.Context, paymentID uuid.UUID) (*ApprovalStatusResponse, error) {
	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return &ApprovalStatusResponse{
		PaymentID: payment.ID,
		Status:    payment.ApprovalStatus(s.Quorum()),
		Progress:  ApprovalProgress{Approvals: payment.ApprovalCount(), Required: s.Quorum()},
		Approvers: append([]string{}, payment.ApprovedBy...),
	}, nil
}

func (s *ApprovalService) toApprovalResult(payment *revenue.Payment) *ApprovalResult {
	return &ApprovalResult{
		Payment:  ToPaymentResponse(payment, s.Quorum()),
		Status:   payment.ApprovalStatus(s.Quorum()),
		Progress: ApprovalProgress{Approvals: payment.ApprovalCount(), Required: s.Quorum()},
	}
}
