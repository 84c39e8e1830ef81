package revenue

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/revsplit/backend/internal/domain/revenue"
	"github.com/revsplit/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// CreateRevenueRuleInput is the request to create a revenue rule
type CreateRevenueRuleInput struct {
	Name          string           `json:"name" binding:"required,min=1,max=100"`
	Description   string           `json:"description" binding:"max=500"`
	AdminPercent  *decimal.Decimal `json:"admin_percent" binding:"required"`
	TeamPercent   *decimal.Decimal `json:"team_percent" binding:"required"`
	VendorPercent *decimal.Decimal `json:"vendor_percent" binding:"required"`
	IsDefault     bool             `json:"is_default"`
}

// UpdateRevenueRuleInput is a partial update; omitted fields stay unchanged
type UpdateRevenueRuleInput struct {
	Name          *string          `json:"name" binding:"omitempty,min=1,max=100"`
	Description   *string          `json:"description" binding:"omitempty,max=500"`
	AdminPercent  *decimal.Decimal `json:"admin_percent"`
	TeamPercent   *decimal.Decimal `json:"team_percent"`
	VendorPercent *decimal.Decimal `json:"vendor_percent"`
	IsDefault     *bool            `json:"is_default"`
	IsActive      *bool            `json:"is_active"`
}

func (in UpdateRevenueRuleInput) toRuleUpdate() revenue.RuleUpdate {
	return revenue.RuleUpdate{
		Name:          in.Name,
		Description:   in.Description,
		AdminPercent:  in.AdminPercent,
		TeamPercent:   in.TeamPercent,
		VendorPercent: in.VendorPercent,
		IsDefault:     in.IsDefault,
		IsActive:      in.IsActive,
	}
}

// RevenueRuleListFilter filters the rule list
type RevenueRuleListFilter struct {
	ActiveOnly bool   `form:"active_only"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=200"`
	OrderBy    string `form:"order_by" binding:"omitempty,oneof=name created_at updated_at"`
	OrderDir   string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// RevenueRuleResponse represents a revenue rule in API responses
type RevenueRuleResponse struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	AdminPercent  decimal.Decimal `json:"admin_percent"`
	TeamPercent   decimal.Decimal `json:"team_percent"`
	VendorPercent decimal.Decimal `json:"vendor_percent"`
	IsDefault     bool            `json:"is_default"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Version       int             `json:"version"`
}

// UpdateRevenueRuleResult carries the rule and any warnings from the update
type UpdateRevenueRuleResult struct {
	Rule          RevenueRuleResponse `json:"rule"`
	ChangedFields []string            `json:"changed_fields"`
	Warnings      []string            `json:"warnings,omitempty"`
}

func ToRevenueRuleResponse(r *revenue.RevenueRule) RevenueRuleResponse {
	return RevenueRuleResponse{
		ID:            r.ID,
		Name:          r.Name,
		Description:   r.Description,
		AdminPercent:  r.AdminPercent,
		TeamPercent:   r.TeamPercent,
		VendorPercent: r.VendorPercent,
		IsDefault:     r.IsDefault,
		IsActive:      r.IsActive,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		Version:       r.Version,
	}
}

// RecordPaymentInput is the request to record an incoming payment
type RecordPaymentInput struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency" binding:"omitempty,iso4217"`
	Reference   string          `json:"reference" binding:"max=100"`
	Description string          `json:"description" binding:"max=500"`
	ProjectID   *uuid.UUID      `json:"project_id"`
}

// PaymentListFilter filters the payment list
type PaymentListFilter struct {
	Verified         *bool  `form:"verified"`
	RevenueProcessed *bool  `form:"revenue_processed"`
	ProjectID        string `form:"project_id" binding:"omitempty,uuid"`
	Page             int    `form:"page" binding:"omitempty,min=1"`
	PageSize         int    `form:"page_size" binding:"omitempty,min=1,max=200"`
	OrderDir         string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID                 uuid.UUID              `json:"id"`
	Amount             decimal.Decimal        `json:"amount"`
	Currency           string                 `json:"currency"`
	Reference          string                 `json:"reference,omitempty"`
	Description        string                 `json:"description,omitempty"`
	ProjectID          *uuid.UUID             `json:"project_id,omitempty"`
	ApprovedBy         []string               `json:"approved_by"`
	ApprovalStatus     revenue.ApprovalStatus `json:"approval_status"`
	Verified           bool                   `json:"verified"`
	VerifiedAt         *time.Time             `json:"verified_at,omitempty"`
	RevenueProcessed   bool                   `json:"revenue_processed"`
	RevenueProcessedAt *time.Time             `json:"revenue_processed_at,omitempty"`
	RevenueRuleID      *uuid.UUID             `json:"revenue_rule_id,omitempty"`
	Reversed           bool                   `json:"reversed"`
	ReversedAt         *time.Time             `json:"reversed_at,omitempty"`
	ReversalReason     string                 `json:"reversal_reason,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
	Version            int                    `json:"version"`
}

func ToPaymentResponse(p *revenue.Payment, quorum int) PaymentResponse {
	approvers := append([]string{}, p.ApprovedBy...)
	return PaymentResponse{
		ID:                 p.ID,
		Amount:             p.Amount,
		Currency:           p.Currency.String(),
		Reference:          p.Reference,
		Description:        p.Description,
		ProjectID:          p.ProjectID,
		ApprovedBy:         approvers,
		ApprovalStatus:     p.ApprovalStatus(quorum),
		Verified:           p.Verified,
		VerifiedAt:         p.VerifiedAt,
		RevenueProcessed:   p.RevenueProcessed,
		RevenueProcessedAt: p.RevenueProcessedAt,
		RevenueRuleID:      p.RevenueRuleID,
		Reversed:           p.Reversed,
		ReversedAt:         p.ReversedAt,
		ReversalReason:     p.ReversalReason,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
		Version:            p.Version,
	}
}

// ApprovalProgress is the approval count against the quorum
type ApprovalProgress struct {
	Approvals int `json:"approvals"`
	Required  int `json:"required"`
}

// ApprovalResult is returned by approve and revoke
type ApprovalResult struct {
	Payment  PaymentResponse        `json:"payment"`
	Status   revenue.ApprovalStatus `json:"status"`
	Progress ApprovalProgress       `json:"progress"`
	// Changed is false when the call was an idempotent no-op
	Changed bool `json:"changed"`
	// VerifiedNow is true on the approval that reached quorum
	VerifiedNow bool `json:"verified_now"`
}

// ApprovalStatusResponse is the approval-status read model
type ApprovalStatusResponse struct {
	PaymentID uuid.UUID              `json:"payment_id"`
	Status    revenue.ApprovalStatus `json:"status"`
	Progress  ApprovalProgress       `json:"progress"`
	Approvers []string               `json:"approvers"`
}

// LedgerEntryResponse represents a ledger entry in API responses
type LedgerEntryResponse struct {
	ID              uuid.UUID           `json:"id"`
	Party           revenue.Party       `json:"party"`
	Type            revenue.EntryType   `json:"type"`
	Status          revenue.EntryStatus `json:"status"`
	Amount          decimal.Decimal     `json:"amount"`
	Currency        string              `json:"currency"`
	EntryDate       time.Time           `json:"entry_date"`
	ProjectID       *uuid.UUID          `json:"project_id,omitempty"`
	PaymentID       uuid.UUID           `json:"payment_id"`
	RevenueRuleID   uuid.UUID           `json:"revenue_rule_id"`
	SettlementID    *uuid.UUID          `json:"settlement_id,omitempty"`
	ReversesEntryID *uuid.UUID          `json:"reverses_entry_id,omitempty"`
	Remarks         string              `json:"remarks,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func ToLedgerEntryResponse(e *revenue.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:              e.ID,
		Party:           e.Party,
		Type:            e.Type,
		Status:          e.Status,
		Amount:          e.Amount,
		Currency:        e.Currency.String(),
		EntryDate:       e.EntryDate,
		ProjectID:       e.ProjectID,
		PaymentID:       e.PaymentID,
		RevenueRuleID:   e.RevenueRuleID,
		SettlementID:    e.SettlementID,
		ReversesEntryID: e.ReversesEntryID,
		Remarks:         e.Remarks,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func ToLedgerEntryResponses(entries []*revenue.LedgerEntry) []LedgerEntryResponse {
	out := make([]LedgerEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = ToLedgerEntryResponse(e)
	}
	return out
}

// LedgerEntryListFilter filters the ledger entry list
type LedgerEntryListFilter struct {
	Party     string     `form:"party" binding:"omitempty,party"`
	Status    string     `form:"status" binding:"omitempty,oneof=pending cleared"`
	Currency  string     `form:"currency" binding:"omitempty,iso4217"`
	PaymentID string     `form:"payment_id" binding:"omitempty,uuid"`
	From      *time.Time `form:"from" time_format:"2006-01-02"`
	To        *time.Time `form:"to" time_format:"2006-01-02"`
	Page      int        `form:"page" binding:"omitempty,min=1"`
	PageSize  int        `form:"page_size" binding:"omitempty,min=1,max=200"`
	OrderDir  string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// optionalUUID parses an id taken from a query string; empty means unset
func optionalUUID(field, raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, shared.NewValidationError(fmt.Sprintf("%s must be a UUID", field))
	}
	return &id, nil
}

// ProcessPaymentInput optionally names the rule to split with
type ProcessPaymentInput struct {
	RuleID *uuid.UUID `json:"rule_id"`
}

// ProcessPaymentResult is the outcome of splitting a payment
type ProcessPaymentResult struct {
	Payment PaymentResponse       `json:"payment"`
	RuleID  uuid.UUID             `json:"rule_id"`
	Entries []LedgerEntryResponse `json:"entries"`
}

// ReversePaymentInput is the request to reverse processed revenue
type ReversePaymentInput struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// ReversePaymentResult is the outcome of a reversal
type ReversePaymentResult struct {
	Payment PaymentResponse       `json:"payment"`
	Debits  []LedgerEntryResponse `json:"debits"`
}

// BalanceResponse is a party's balance in one currency
type BalanceResponse struct {
	Party             revenue.Party   `json:"party"`
	Currency          string          `json:"currency"`
	TotalPending      decimal.Decimal `json:"total_pending"`
	TotalCleared      decimal.Decimal `json:"total_cleared"`
	NetBalance        decimal.Decimal `json:"net_balance"`
	PendingEntryCount int             `json:"pending_entry_count"`
	ClearedEntryCount int             `json:"cleared_entry_count"`
	LastUpdated       time.Time       `json:"last_updated"`
}

func ToBalanceResponse(b revenue.PartyBalance) BalanceResponse {
	return BalanceResponse{
		Party:             b.Party,
		Currency:          b.Currency.String(),
		TotalPending:      b.TotalPending,
		TotalCleared:      b.TotalCleared,
		NetBalance:        b.NetBalance,
		PendingEntryCount: b.PendingEntryCount,
		ClearedEntryCount: b.ClearedEntryCount,
		LastUpdated:       b.LastUpdated,
	}
}

// CreateSettlementInput is the request to settle a batch of entries
type CreateSettlementInput struct {
	Party          string      `json:"party" binding:"required,party"`
	EntryIDs       []uuid.UUID `json:"entry_ids" binding:"required,min=1"`
	ProofReference string      `json:"proof_reference" binding:"max=200"`
	Notes          string      `json:"notes" binding:"max=1000"`
	// CreatedBy is taken from the authenticated caller
	CreatedBy string `json:"-"`
}

// SettlementListFilter filters the settlement list
type SettlementListFilter struct {
	Party    string     `form:"party" binding:"omitempty,party"`
	Currency string     `form:"currency" binding:"omitempty,iso4217"`
	From     *time.Time `form:"from" time_format:"2006-01-02"`
	To       *time.Time `form:"to" time_format:"2006-01-02"`
	Page     int        `form:"page" binding:"omitempty,min=1"`
	PageSize int        `form:"page_size" binding:"omitempty,min=1,max=200"`
	OrderDir string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// SettlementResponse represents a settlement in API responses
type SettlementResponse struct {
	ID             uuid.UUID       `json:"id"`
	Party          revenue.Party   `json:"party"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Currency       string          `json:"currency"`
	SettlementDate time.Time       `json:"settlement_date"`
	LedgerEntryIDs []uuid.UUID     `json:"ledger_entry_ids"`
	ProofReference string          `json:"proof_reference,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	CreatedBy      string          `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
}

func ToSettlementResponse(s *revenue.Settlement) SettlementResponse {
	return SettlementResponse{
		ID:             s.ID,
		Party:          s.Party,
		TotalAmount:    s.TotalAmount,
		Currency:       s.Currency.String(),
		SettlementDate: s.SettlementDate,
		LedgerEntryIDs: append([]uuid.UUID{}, s.LedgerEntryIDs...),
		ProofReference: s.ProofReference,
		Notes:          s.Notes,
		CreatedBy:      s.CreatedBy,
		CreatedAt:      s.CreatedAt,
	}
}

// PayoutError describes why a party's balance could not be read
type PayoutError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PartyPayout is one party's line in the payout summary
type PartyPayout struct {
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency,omitempty"`
	EntryCount int             `json:"entry_count"`
	Error      *PayoutError    `json:"error,omitempty"`
}

// PayoutSummary aggregates pending payouts across parties
type PayoutSummary struct {
	TotalPending            decimal.Decimal               `json:"total_pending"`
	Currency                string                        `json:"currency,omitempty"`
	Payouts                 map[revenue.Party]PartyPayout `json:"payouts"`
	HighestPendingParty     *revenue.Party                `json:"highest_pending_party"`
	PartiesNeedingAttention []revenue.Party               `json:"parties_needing_attention"`
	GeneratedAt             time.Time                     `json:"generated_at"`
}
