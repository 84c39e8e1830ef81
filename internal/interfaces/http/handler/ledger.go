package handler

import (
	"github.com/gin-gonic/gin"
	apprevenue "github.com/revsplit/backend/internal/application/revenue"
	"github.com/revsplit/backend/internal/domain/revenue"
	"github.com/revsplit/backend/internal/domain/shared"
	"github.com/revsplit/backend/internal/domain/shared/valueobject"
)

// LedgerHandler serves ledger entries, balances, settlements and the payout
// summary
type LedgerHandler struct {
	BaseHandler
	ledger      *apprevenue.LedgerService
	balances    *apprevenue.BalanceService
	settlements *apprevenue.SettlementService
	payouts     *apprevenue.PayoutSummaryService
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(
	ledger *apprevenue.LedgerService,
	balances *apprevenue.BalanceService,
	settlements *apprevenue.SettlementService,
	payouts *apprevenue.PayoutSummaryService,
) *LedgerHandler {
	return &LedgerHandler{
		ledger:      ledger,
		balances:    balances,
		settlements: settlements,
		payouts:     payouts,
	}
}

// ListEntries handles GET /ledger-entries
func (h *LedgerHandler) ListEntries(c *gin.Context) {
	var filter apprevenue.LedgerEntryListFilter
	if !h.BindQuery(c, &filter) {
		return
	}

	entries, total, err := h.ledger.ListEntries(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, entries, total, filter.Page, filter.PageSize)
}

// balanceQuery is the optional currency selector on balance reads
type balanceQuery struct {
	Currency string `form:"currency" binding:"omitempty,iso4217"`
}

// partyAndCurrency parses the :party path parameter and the optional
// currency query. A missing currency stays nil so the service can resolve it.
func (h *LedgerHandler) partyAndCurrency(c *gin.Context) (revenue.Party, *valueobject.Currency, bool) {
	party, err := revenue.ParseParty(c.Param("party"))
	if err != nil {
		h.HandleError(c, err)
		return "", nil, false
	}
	var q balanceQuery
	if !h.BindQuery(c, &q) {
		return "", nil, false
	}
	cur, err := optionalCurrency(q.Currency)
	if err != nil {
		h.HandleError(c, err)
		return "", nil, false
	}
	return party, cur, true
}

func optionalCurrency(code string) (*valueobject.Currency, error) {
	if code == "" {
		return nil, nil
	}
	cur, err := valueobject.ParseCurrency(code)
	if err != nil {
		return nil, shared.NewValidationError(err.Error())
	}
	return &cur, nil
}

// GetBalance handles GET /balances/:party
func (h *LedgerHandler) GetBalance(c *gin.Context) {
	party, cur, ok := h.partyAndCurrency(c)
	if !ok {
		return
	}

	balance, err := h.balances.GetBalance(c.Request.Context(), party, cur)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, balance)
}

// PendingEntries handles GET /balances/:party/pending-entries
func (h *LedgerHandler) PendingEntries(c *gin.Context) {
	party, cur, ok := h.partyAndCurrency(c)
	if !ok {
		return
	}

	entries, err := h.balances.GetPendingEntriesForSettlement(c.Request.Context(), party, cur)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entries)
}

// CreateSettlement handles POST /settlements. The creator is the
// authenticated caller.
func (h *LedgerHandler) CreateSettlement(c *gin.Context) {
	var req apprevenue.CreateSettlementInput
	if !h.BindJSON(c, &req) {
		return
	}
	req.CreatedBy = actor(c)

	settlement, err := h.settlements.CreateSettlement(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, settlement)
}

// ListSettlements handles GET /settlements
func (h *LedgerHandler) ListSettlements(c *gin.Context) {
	var filter apprevenue.SettlementListFilter
	if !h.BindQuery(c, &filter) {
		return
	}

	settlements, total, err := h.settlements.ListSettlements(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, settlements, total, filter.Page, filter.PageSize)
}

// GetSettlement handles GET /settlements/:id
func (h *LedgerHandler) GetSettlement(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	settlement, err := h.settlements.GetSettlement(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, settlement)
}

// payoutQuery selects parties (comma separated) and the currency
type payoutQuery struct {
	Parties  string `form:"parties"`
	Currency string `form:"currency" binding:"omitempty,iso4217"`
}

// PayoutSummary handles GET /payouts/summary. Without ?currency= each party's
// currency is inferred; pending payouts in more than one currency answer 400
// with reason CURRENCY_REQUIRED.
func (h *LedgerHandler) PayoutSummary(c *gin.Context) {
	var q payoutQuery
	if !h.BindQuery(c, &q) {
		return
	}
	parties, err := apprevenue.ParseParties(q.Parties)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	cur, err := optionalCurrency(q.Currency)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	summary, err := h.payouts.Summarize(c.Request.Context(), parties, cur)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}
