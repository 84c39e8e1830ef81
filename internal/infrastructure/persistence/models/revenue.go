package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/revsplit/backend/internal/domain/revenue"
	"github.com/revsplit/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// RevenueRuleModel is the persistence model for revenue rules.
// At most one row may carry is_default, enforced by a partial unique index.
type RevenueRuleModel struct {
	AggregateModel
	Name          string          `gorm:"type:varchar(100);not null;index"`
	Description   string          `gorm:"type:text"`
	AdminPercent  decimal.Decimal `gorm:"type:decimal(7,4);not null"`
	TeamPercent   decimal.Decimal `gorm:"type:decimal(7,4);not null"`
	VendorPercent decimal.Decimal `gorm:"type:decimal(7,4);not null"`
	IsDefault     bool            `gorm:"not null;default:false;index:ux_revenue_rules_default,unique,where:is_default = true"`
	IsActive      bool            `gorm:"not null;index"`
}

func (RevenueRuleModel) TableName() string {
	return "revenue_rules"
}

func (m *RevenueRuleModel) ToDomain() *revenue.RevenueRule {
	r := &revenue.RevenueRule{
		Name:          m.Name,
		Description:   m.Description,
		AdminPercent:  m.AdminPercent,
		TeamPercent:   m.TeamPercent,
		VendorPercent: m.VendorPercent,
		IsDefault:     m.IsDefault,
		IsActive:      m.IsActive,
	}
	m.PopulateAggregateRoot(&r.BaseAggregateRoot)
	return r
}

func (m *RevenueRuleModel) FromDomain(r *revenue.RevenueRule) {
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	m.Name = r.Name
	m.Description = r.Description
	m.AdminPercent = r.AdminPercent
	m.TeamPercent = r.TeamPercent
	m.VendorPercent = r.VendorPercent
	m.IsDefault = r.IsDefault
	m.IsActive = r.IsActive
}

func RevenueRuleModelFromDomain(r *revenue.RevenueRule) *RevenueRuleModel {
	m := &RevenueRuleModel{}
	m.FromDomain(r)
	return m
}

// PaymentModel is the persistence model for payments. The approver set is
// stored as a JSON array.
type PaymentModel struct {
	AggregateModel
	Amount             decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	Currency           string          `gorm:"type:varchar(3);not null"`
	Reference          string          `gorm:"type:varchar(100);index"`
	Description        string          `gorm:"type:text"`
	ProjectID          *uuid.UUID      `gorm:"type:uuid;index"`
	ApprovedBy         []string        `gorm:"type:text;serializer:json;not null"`
	Verified           bool            `gorm:"not null;default:false;index"`
	VerifiedAt         *time.Time
	RevenueProcessed   bool `gorm:"not null;default:false;index"`
	RevenueProcessedAt *time.Time
	RevenueRuleID      *uuid.UUID `gorm:"type:uuid"`
	Reversed           bool       `gorm:"not null;default:false"`
	ReversedAt         *time.Time
	ReversalReason     string `gorm:"type:text"`
}

func (PaymentModel) TableName() string {
	return "payments"
}

func (m *PaymentModel) ToDomain() *revenue.Payment {
	approvers := m.ApprovedBy
	if approvers == nil {
		approvers = []string{}
	}
	p := &revenue.Payment{
		Amount:             m.Amount,
		Currency:           valueobject.Currency(m.Currency),
		Reference:          m.Reference,
		Description:        m.Description,
		ProjectID:          m.ProjectID,
		ApprovedBy:         approvers,
		Verified:           m.Verified,
		VerifiedAt:         utcPtr(m.VerifiedAt),
		RevenueProcessed:   m.RevenueProcessed,
		RevenueProcessedAt: utcPtr(m.RevenueProcessedAt),
		RevenueRuleID:      m.RevenueRuleID,
		Reversed:           m.Reversed,
		ReversedAt:         utcPtr(m.ReversedAt),
		ReversalReason:     m.ReversalReason,
	}
	m.PopulateAggregateRoot(&p.BaseAggregateRoot)
	return p
}

func (m *PaymentModel) FromDomain(p *revenue.Payment) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.Amount = p.Amount
	m.Currency = p.Currency.String()
	m.Reference = p.Reference
	m.Description = p.Description
	m.ProjectID = p.ProjectID
	m.ApprovedBy = append([]string{}, p.ApprovedBy...)
	m.Verified = p.Verified
	m.VerifiedAt = p.VerifiedAt
	m.RevenueProcessed = p.RevenueProcessed
	m.RevenueProcessedAt = p.RevenueProcessedAt
	m.RevenueRuleID = p.RevenueRuleID
	m.Reversed = p.Reversed
	m.ReversedAt = p.ReversedAt
	m.ReversalReason = p.ReversalReason
}

func PaymentModelFromDomain(p *revenue.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}

// LedgerEntryModel is the persistence model for ledger entries
type LedgerEntryModel struct {
	BaseModel
	Party           string          `gorm:"type:varchar(20);not null;index:idx_ledger_party_status,priority:1"`
	Type            string          `gorm:"type:varchar(10);not null"`
	Status          string          `gorm:"type:varchar(10);not null;index:idx_ledger_party_status,priority:2"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	Currency        string          `gorm:"type:varchar(3);not null"`
	EntryDate       time.Time       `gorm:"not null;index"`
	ProjectID       *uuid.UUID      `gorm:"type:uuid"`
	PaymentID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	RevenueRuleID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	SettlementID    *uuid.UUID      `gorm:"type:uuid;index"`
	ReversesEntryID *uuid.UUID      `gorm:"type:uuid"`
	Remarks         string          `gorm:"type:text"`
	Version         int             `gorm:"not null;default:1"`
}

func (LedgerEntryModel) TableName() string {
	return "ledger_entries"
}

func (m *LedgerEntryModel) ToDomain() *revenue.LedgerEntry {
	return &revenue.LedgerEntry{
		BaseEntity:      m.BaseModel.ToDomain(),
		Party:           revenue.Party(m.Party),
		Type:            revenue.EntryType(m.Type),
		Status:          revenue.EntryStatus(m.Status),
		Amount:          m.Amount,
		Currency:        valueobject.Currency(m.Currency),
		EntryDate:       m.EntryDate.UTC(),
		ProjectID:       m.ProjectID,
		PaymentID:       m.PaymentID,
		RevenueRuleID:   m.RevenueRuleID,
		SettlementID:    m.SettlementID,
		ReversesEntryID: m.ReversesEntryID,
		Remarks:         m.Remarks,
		Version:         m.Version,
	}
}

func (m *LedgerEntryModel) FromDomain(e *revenue.LedgerEntry) {
	m.FromDomainBaseEntity(e.BaseEntity)
	m.Party = e.Party.String()
	m.Type = e.Type.String()
	m.Status = e.Status.String()
	m.Amount = e.Amount
	m.Currency = e.Currency.String()
	m.EntryDate = e.EntryDate
	m.ProjectID = e.ProjectID
	m.PaymentID = e.PaymentID
	m.RevenueRuleID = e.RevenueRuleID
	m.SettlementID = e.SettlementID
	m.ReversesEntryID = e.ReversesEntryID
	m.Remarks = e.Remarks
	m.Version = e.Version
}

func LedgerEntryModelFromDomain(e *revenue.LedgerEntry) *LedgerEntryModel {
	m := &LedgerEntryModel{}
	m.FromDomain(e)
	return m
}

// SettlementModel is the persistence model for settlements. Entry ids are
// stored as a JSON array; the authoritative link is ledger_entries.settlement_id.
type SettlementModel struct {
	AggregateModel
	Party          string          `gorm:"type:varchar(20);not null;index"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	Currency       string          `gorm:"type:varchar(3);not null"`
	SettlementDate time.Time       `gorm:"not null;index"`
	LedgerEntryIDs []string        `gorm:"type:text;serializer:json;not null"`
	ProofReference string          `gorm:"type:varchar(200)"`
	Notes          string          `gorm:"type:text"`
	CreatedBy      string          `gorm:"type:varchar(100);not null"`
}

func (SettlementModel) TableName() string {
	return "settlements"
}

func (m *SettlementModel) ToDomain() *revenue.Settlement {
	ids := make([]uuid.UUID, 0, len(m.LedgerEntryIDs))
	for _, raw := range m.LedgerEntryIDs {
		if id, err := uuid.Parse(raw); err == nil {
			ids = append(ids, id)
		}
	}
	s := &revenue.Settlement{
		Party:          revenue.Party(m.Party),
		TotalAmount:    m.TotalAmount,
		Currency:       valueobject.Currency(m.Currency),
		SettlementDate: m.SettlementDate.UTC(),
		LedgerEntryIDs: ids,
		ProofReference: m.ProofReference,
		Notes:          m.Notes,
		CreatedBy:      m.CreatedBy,
	}
	m.PopulateAggregateRoot(&s.BaseAggregateRoot)
	return s
}

func (m *SettlementModel) FromDomain(s *revenue.Settlement) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.Party = s.Party.String()
	m.TotalAmount = s.TotalAmount
	m.Currency = s.Currency.String()
	m.SettlementDate = s.SettlementDate
	m.LedgerEntryIDs = make([]string, len(s.LedgerEntryIDs))
	for i, id := range s.LedgerEntryIDs {
		m.LedgerEntryIDs[i] = id.String()
	}
	m.ProofReference = s.ProofReference
	m.Notes = s.Notes
	m.CreatedBy = s.CreatedBy
}

func SettlementModelFromDomain(s *revenue.Settlement) *SettlementModel {
	m := &SettlementModel{}
	m.FromDomain(s)
	return m
}

// AllModels lists every model for AutoMigrate in tests and local sqlite runs
func AllModels() []any {
	return []any{
		&RevenueRuleModel{},
		&PaymentModel{},
		&LedgerEntryModel{},
		&SettlementModel{},
		&OutboxEntryModel{},
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
