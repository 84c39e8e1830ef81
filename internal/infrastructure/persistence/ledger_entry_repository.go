package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/revsplit/backend/internal/domain/revenue"
	"github.com/revsplit/backend/internal/domain/shared"
	"github.com/revsplit/backend/internal/domain/shared/valueobject"
	"github.com/revsplit/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

const ledgerEntryBatchSize = 100

// GormLedgerEntryRepository implements LedgerEntryRepository using GORM
type GormLedgerEntryRepository struct {
	db *gorm.DB
}

// NewGormLedgerEntryRepository creates a new GormLedgerEntryRepository
func NewGormLedgerEntryRepository(db *gorm.DB) *GormLedgerEntryRepository {
	return &GormLedgerEntryRepository{db: db}
}

// CreateBatch inserts entries in one statement per batch
func (r *GormLedgerEntryRepository) CreateBatch(ctx context.Context, entries []*revenue.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]*models.LedgerEntryModel, len(entries))
	for i, e := range entries {
		rows[i] = models.LedgerEntryModelFromDomain(e)
	}
	if err := r.db.WithContext(ctx).CreateInBatches(rows, ledgerEntryBatchSize).Error; err != nil {
		return shared.WrapStoreError("create ledger entries", err)
	}
	return nil
}

// FindByIDs returns the entries that exist among ids; missing ids are
// simply absent from the result
func (r *GormLedgerEntryRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*revenue.LedgerEntry, error) {
	if len(ids) == 0 {
		return []*revenue.LedgerEntry{}, nil
	}
	var rows []models.LedgerEntryModel
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("entry_date ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, shared.WrapStoreError("find ledger entries", err)
	}
	return toLedgerEntries(rows), nil
}

// FindByPayment returns every entry generated from a payment
func (r *GormLedgerEntryRepository) FindByPayment(ctx context.Context, paymentID uuid.UUID) ([]*revenue.LedgerEntry, error) {
	var rows []models.LedgerEntryModel
	if err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("entry_date ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, shared.WrapStoreError("find ledger entries by payment", err)
	}
	return toLedgerEntries(rows), nil
}

// FindForParty returns a party's entries ordered by entry date then id
func (r *GormLedgerEntryRepository) FindForParty(ctx context.Context, party revenue.Party, currency *valueobject.Currency, status *revenue.EntryStatus) ([]*revenue.LedgerEntry, error) {
	query := r.db.WithContext(ctx).Where("party = ?", party.String())
	if currency != nil {
		query = query.Where("currency = ?", currency.String())
	}
	if status != nil {
		query = query.Where("status = ?", status.String())
	}

	var rows []models.LedgerEntryModel
	if err := query.Order("entry_date ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, shared.WrapStoreError("find ledger entries for party", err)
	}
	return toLedgerEntries(rows), nil
}

// FindAll lists entries with pagination and returns the unpaged total
func (r *GormLedgerEntryRepository) FindAll(ctx context.Context, filter revenue.LedgerEntryFilter) ([]*revenue.LedgerEntry, int64, error) {
	f := filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.LedgerEntryModel{})
	if filter.Party != nil {
		query = query.Where("party = ?", filter.Party.String())
	}
	if filter.Status != nil {
		query = query.Where("status = ?", filter.Status.String())
	}
	if filter.Currency != nil {
		query = query.Where("currency = ?", filter.Currency.String())
	}
	if filter.PaymentID != nil {
		query = query.Where("payment_id = ?", *filter.PaymentID)
	}
	if filter.From != nil {
		query = query.Where("entry_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("entry_date < ?", *filter.To)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, shared.WrapStoreError("count ledger entries", err)
	}

	var rows []models.LedgerEntryModel
	if err := query.
		Order(orderClause(f, LedgerEntrySortFields, "entry_date")).
		Offset(f.Offset()).
		Limit(f.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, shared.WrapStoreError("list ledger entries", err)
	}
	return toLedgerEntries(rows), total, nil
}

// CurrenciesForParty returns the distinct currencies the party holds entries in
func (r *GormLedgerEntryRepository) CurrenciesForParty(ctx context.Context, party revenue.Party) ([]valueobject.Currency, error) {
	var codes []string
	if err := r.db.WithContext(ctx).
		Model(&models.LedgerEntryModel{}).
		Where("party = ?", party.String()).
		Distinct("currency").
		Order("currency").
		Pluck("currency", &codes).Error; err != nil {
		return nil, shared.WrapStoreError("list party currencies", err)
	}
	out := make([]valueobject.Currency, len(codes))
	for i, c := range codes {
		out[i] = valueobject.Currency(c)
	}
	return out, nil
}

// ExistsForRule reports whether any entry was generated under the rule
func (r *GormLedgerEntryRepository) ExistsForRule(ctx context.Context, ruleID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.LedgerEntryModel{}).
		Where("revenue_rule_id = ?", ruleID).
		Count(&count).Error; err != nil {
		return false, shared.WrapStoreError("check rule ledger activity", err)
	}
	return count > 0, nil
}

// ClearWithLock writes each entry's pending -> cleared transition. Every
// update is guarded by the version read earlier and the pending status, so
// an entry cleared concurrently aborts the whole batch.
func (r *GormLedgerEntryRepository) ClearWithLock(ctx context.Context, entries []*revenue.LedgerEntry) error {
	db := r.db.WithContext(ctx)
	for _, e := range entries {
		result := db.Model(&models.LedgerEntryModel{}).
			Where("id = ? AND version = ? AND status = ?", e.ID, e.Version, revenue.EntryStatusPending.String()).
			Updates(map[string]any{
				"status":        e.Status.String(),
				"settlement_id": e.SettlementID,
				"version":       e.Version + 1,
				"updated_at":    e.UpdatedAt,
			})
		if result.Error != nil {
			return shared.WrapStoreError("clear ledger entry", result.Error)
		}
		if result.RowsAffected == 0 {
			return shared.NewConcurrencyConflictError("ledger entry " + e.ID.String())
		}
	}
	for _, e := range entries {
		e.Version++
	}
	return nil
}

func toLedgerEntries(rows []models.LedgerEntryModel) []*revenue.LedgerEntry {
	out := make([]*revenue.LedgerEntry, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}

var _ revenue.LedgerEntryRepository = (*GormLedgerEntryRepository)(nil)
