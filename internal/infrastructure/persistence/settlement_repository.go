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

// GormSettlementRepository implements SettlementRepository using GORM
type GormSettlementRepository struct {
	db *gorm.DB
}

// NewGormSettlementRepository creates a new GormSettlementRepository
func NewGormSettlementRepository(db *gorm.DB) *GormSettlementRepository {
	return &GormSettlementRepository{db: db}
}

// Create inserts a settlement. Settlements are never updated.
func (r *GormSettlementRepository) Create(ctx context.Context, settlement *revenue.Settlement) error {
	if err := r.db.WithContext(ctx).Create(models.SettlementModelFromDomain(settlement)).Error; err != nil {
		return shared.WrapStoreError("create settlement", err)
	}
	return nil
}

// FindByID finds a settlement by its ID
func (r *GormSettlementRepository) FindByID(ctx context.Context, id uuid.UUID) (*revenue.Settlement, error) {
	var model models.SettlementModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("settlement")
		}
		return nil, shared.WrapStoreError("find settlement", err)
	}
	return model.ToDomain(), nil
}

// FindAll lists settlements with pagination and returns the unpaged total
func (r *GormSettlementRepository) FindAll(ctx context.Context, filter revenue.SettlementFilter) ([]*revenue.Settlement, int64, error) {
	f := filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.SettlementModel{})
	if filter.Party != nil {
		query = query.Where("party = ?", filter.Party.String())
	}
	if filter.Currency != nil {
		query = query.Where("currency = ?", filter.Currency.String())
	}
	if filter.From != nil {
		query = query.Where("settlement_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("settlement_date < ?", *filter.To)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, shared.WrapStoreError("count settlements", err)
	}

	var rows []models.SettlementModel
	if err := query.
		Order(orderClause(f, SettlementSortFields, "settlement_date")).
		Offset(f.Offset()).
		Limit(f.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, shared.WrapStoreError("list settlements", err)
	}

	out := make([]*revenue.Settlement, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, total, nil
}

var _ revenue.SettlementRepository = (*GormSettlementRepository)(nil)
