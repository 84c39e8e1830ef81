package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/revsplit/backend/internal/domain/revenue"
	"github.com/revsplit/backend/internal/domain/shared"
	"github.com/revsplit/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPaymentRepository implements PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByID finds a payment by its ID
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*revenue.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("payment")
		}
		return nil, shared.WrapStoreError("find payment", err)
	}
	return model.ToDomain(), nil
}

// ExistsByReference reports whether a payment already carries the reference
func (r *GormPaymentRepository) ExistsByReference(ctx context.Context, reference string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.PaymentModel{}).
		Where("reference = ?", reference).
		Count(&count).Error; err != nil {
		return false, shared.WrapStoreError("check payment reference", err)
	}
	return count > 0, nil
}

// FindAll lists payments with pagination and returns the unpaged total
func (r *GormPaymentRepository) FindAll(ctx context.Context, filter revenue.PaymentFilter) ([]*revenue.Payment, int64, error) {
	f := filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.PaymentModel{})
	if filter.Verified != nil {
		query = query.Where("verified = ?", *filter.Verified)
	}
	if filter.RevenueProcessed != nil {
		query = query.Where("revenue_processed = ?", *filter.RevenueProcessed)
	}
	if filter.ProjectID != nil {
		query = query.Where("project_id = ?", *filter.ProjectID)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, shared.WrapStoreError("count payments", err)
	}

	var rows []models.PaymentModel
	if err := query.
		Order(orderClause(f, PaymentSortFields, "created_at")).
		Offset(f.Offset()).
		Limit(f.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, shared.WrapStoreError("list payments", err)
	}

	payments := make([]*revenue.Payment, len(rows))
	for i := range rows {
		payments[i] = rows[i].ToDomain()
	}
	return payments, total, nil
}

// Create inserts a new payment
func (r *GormPaymentRepository) Create(ctx context.Context, payment *revenue.Payment) error {
	if err := r.db.WithContext(ctx).Create(models.PaymentModelFromDomain(payment)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewValidationError("a payment with this reference already exists")
		}
		return shared.WrapStoreError("create payment", err)
	}
	return nil
}

// SaveWithLock saves the mutable payment state with optimistic locking.
// Amount, currency and reference are fixed at creation and never rewritten.
func (r *GormPaymentRepository) SaveWithLock(ctx context.Context, payment *revenue.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	result := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("id = ? AND version = ?", payment.ID, payment.Version).
		Select(
			"approved_by", "verified", "verified_at",
			"revenue_processed", "revenue_processed_at", "revenue_rule_id",
			"reversed", "reversed_at", "reversal_reason",
			"version", "updated_at",
		).
		Updates(&models.PaymentModel{
			AggregateModel: models.AggregateModel{
				BaseModel: models.BaseModel{UpdatedAt: model.UpdatedAt},
				Version:   payment.Version + 1,
			},
			ApprovedBy:         model.ApprovedBy,
			Verified:           model.Verified,
			VerifiedAt:         model.VerifiedAt,
			RevenueProcessed:   model.RevenueProcessed,
			RevenueProcessedAt: model.RevenueProcessedAt,
			RevenueRuleID:      model.RevenueRuleID,
			Reversed:           model.Reversed,
			ReversedAt:         model.ReversedAt,
			ReversalReason:     model.ReversalReason,
		})
	if result.Error != nil {
		return shared.WrapStoreError("save payment", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewConcurrencyConflictError("payment")
	}
	payment.IncrementVersion()
	return nil
}

var _ revenue.PaymentRepository = (*GormPaymentRepository)(nil)
