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

// GormRevenueRuleRepository implements RevenueRuleRepository using GORM
type GormRevenueRuleRepository struct {
	db *gorm.DB
}

// NewGormRevenueRuleRepository creates a new GormRevenueRuleRepository
func NewGormRevenueRuleRepository(db *gorm.DB) *GormRevenueRuleRepository {
	return &GormRevenueRuleRepository{db: db}
}

// FindByID finds a rule by its ID, active or not
func (r *GormRevenueRuleRepository) FindByID(ctx context.Context, id uuid.UUID) (*revenue.RevenueRule, error) {
	var model models.RevenueRuleModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("revenue rule")
		}
		return nil, shared.WrapStoreError("find revenue rule", err)
	}
	return model.ToDomain(), nil
}

// FindDefault finds the active default rule
func (r *GormRevenueRuleRepository) FindDefault(ctx context.Context) (*revenue.RevenueRule, error) {
	var model models.RevenueRuleModel
	if err := r.db.WithContext(ctx).
		Where("is_default = ? AND is_active = ?", true, true).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("default revenue rule").WithReason(revenue.ReasonNoDefaultRule)
		}
		return nil, shared.WrapStoreError("find default revenue rule", err)
	}
	return model.ToDomain(), nil
}

// FindAll lists rules with pagination and returns the unpaged total
func (r *GormRevenueRuleRepository) FindAll(ctx context.Context, filter revenue.RevenueRuleFilter) ([]*revenue.RevenueRule, int64, error) {
	f := filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.RevenueRuleModel{})
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, shared.WrapStoreError("count revenue rules", err)
	}

	var rows []models.RevenueRuleModel
	if err := query.
		Order(orderClause(f, RevenueRuleSortFields, "created_at")).
		Offset(f.Offset()).
		Limit(f.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, shared.WrapStoreError("list revenue rules", err)
	}

	rules := make([]*revenue.RevenueRule, len(rows))
	for i := range rows {
		rules[i] = rows[i].ToDomain()
	}
	return rules, total, nil
}

// ExistsActiveByName reports whether another active rule already uses the name
func (r *GormRevenueRuleRepository) ExistsActiveByName(ctx context.Context, name string, excludeID *uuid.UUID) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.RevenueRuleModel{}).
		Where("LOWER(name) = LOWER(?) AND is_active = ?", name, true)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, shared.WrapStoreError("check revenue rule name", err)
	}
	return count > 0, nil
}

// Create inserts a new rule
func (r *GormRevenueRuleRepository) Create(ctx context.Context, rule *revenue.RevenueRule) error {
	model := models.RevenueRuleModelFromDomain(rule)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewConcurrencyConflictError("default revenue rule")
		}
		return shared.WrapStoreError("create revenue rule", err)
	}
	return nil
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormRevenueRuleRepository) SaveWithLock(ctx context.Context, rule *revenue.RevenueRule) error {
	result := r.db.WithContext(ctx).
		Model(&models.RevenueRuleModel{}).
		Where("id = ? AND version = ?", rule.ID, rule.Version).
		Updates(map[string]any{
			"name":           rule.Name,
			"description":    rule.Description,
			"admin_percent":  rule.AdminPercent,
			"team_percent":   rule.TeamPercent,
			"vendor_percent": rule.VendorPercent,
			"is_default":     rule.IsDefault,
			"is_active":      rule.IsActive,
			"version":        rule.Version + 1,
			"updated_at":     rule.UpdatedAt,
		})
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return shared.NewConcurrencyConflictError("default revenue rule")
		}
		return shared.WrapStoreError("save revenue rule", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewConcurrencyConflictError("revenue rule")
	}
	rule.IncrementVersion()
	return nil
}

var _ revenue.RevenueRuleRepository = (*GormRevenueRuleRepository)(nil)
