package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	apprevenue "github.com/revsplit/backend/internal/application/revenue"
)

// RevenueWarningHeader carries update warnings for clients that ignore the body
const RevenueWarningHeader = "X-Revenue-Warning"

// RevenueRuleHandler handles revenue rule HTTP requests
type RevenueRuleHandler struct {
	BaseHandler
	rules *apprevenue.RevenueRuleService
}

// NewRevenueRuleHandler creates a new RevenueRuleHandler
func NewRevenueRuleHandler(rules *apprevenue.RevenueRuleService) *RevenueRuleHandler {
	return &RevenueRuleHandler{rules: rules}
}

// Create handles POST /revenue-rules
func (h *RevenueRuleHandler) Create(c *gin.Context) {
	var req apprevenue.CreateRevenueRuleInput
	if !h.BindJSON(c, &req) {
		return
	}

	rule, err := h.rules.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, rule)
}

// List handles GET /revenue-rules
func (h *RevenueRuleHandler) List(c *gin.Context) {
	var filter apprevenue.RevenueRuleListFilter
	if !h.BindQuery(c, &filter) {
		return
	}

	rules, total, err := h.rules.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, rules, total, filter.Page, filter.PageSize)
}

// GetDefault handles GET /revenue-rules/default
func (h *RevenueRuleHandler) GetDefault(c *gin.Context) {
	rule, err := h.rules.GetDefault(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rule)
}

// GetByID handles GET /revenue-rules/:id
func (h *RevenueRuleHandler) GetByID(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	rule, err := h.rules.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rule)
}

// Update handles PATCH /revenue-rules/:id. Warnings, such as editing the
// percentages of a rule that already produced ledger entries, are echoed in
// the X-Revenue-Warning header.
func (h *RevenueRuleHandler) Update(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req apprevenue.UpdateRevenueRuleInput
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.rules.Update(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if len(result.Warnings) > 0 {
		c.Header(RevenueWarningHeader, strings.Join(result.Warnings, "; "))
	}
	h.Success(c, result)
}

// Delete handles DELETE /revenue-rules/:id
func (h *RevenueRuleHandler) Delete(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.rules.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
