package handler

import (
	"github.com/gin-gonic/gin"
	apprevenue "github.com/revsplit/backend/internal/application/revenue"
	"github.com/revsplit/backend/internal/interfaces/http/middleware"
)

// PaymentHandler handles payment intake, approvals, processing and reversal
type PaymentHandler struct {
	BaseHandler
	approvals *apprevenue.ApprovalService
	ledger    *apprevenue.LedgerService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(approvals *apprevenue.ApprovalService, ledger *apprevenue.LedgerService) *PaymentHandler {
	return &PaymentHandler{approvals: approvals, ledger: ledger}
}

// Record handles POST /payments
func (h *PaymentHandler) Record(c *gin.Context) {
	var req apprevenue.RecordPaymentInput
	if !h.BindJSON(c, &req) {
		return
	}

	payment, err := h.approvals.RecordPayment(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, payment)
}

// List handles GET /payments
func (h *PaymentHandler) List(c *gin.Context) {
	var filter apprevenue.PaymentListFilter
	if !h.BindQuery(c, &filter) {
		return
	}

	payments, total, err := h.approvals.ListPayments(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, payments, total, filter.Page, filter.PageSize)
}

// Get handles GET /payments/:id
func (h *PaymentHandler) Get(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	payment, err := h.approvals.GetPayment(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payment)
}

// Approve handles POST /payments/:id/approvals. The approver is the
// authenticated caller; approving twice is a no-op.
func (h *PaymentHandler) Approve(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	result, err := h.approvals.Approve(c.Request.Context(), id, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Revoke handles DELETE /payments/:id/approvals/:approverId. Callers may
// only withdraw their own approval unless they hold the admin role.
func (h *PaymentHandler) Revoke(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	approverID := c.Param("approverId")
	if approverID != actor(c) && !middleware.IsAdmin(c) {
		h.Forbidden(c, "Only the approver or an admin can revoke this approval")
		return
	}

	result, err := h.approvals.RevokeApproval(c.Request.Context(), id, approverID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ApprovalStatus handles GET /payments/:id/approval-status
func (h *PaymentHandler) ApprovalStatus(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	status, err := h.approvals.GetApprovalStatus(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, status)
}

// Process handles POST /payments/:id/process. The body is optional; without
// a rule_id the default rule is used.
func (h *PaymentHandler) Process(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req apprevenue.ProcessPaymentInput
	if !h.BindOptionalJSON(c, &req) {
		return
	}

	result, err := h.ledger.ProcessPayment(c.Request.Context(), id, req.RuleID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// Reverse handles POST /payments/:id/reverse
func (h *PaymentHandler) Reverse(c *gin.Context) {
	id, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req apprevenue.ReversePaymentInput
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.ledger.ReversePayment(c.Request.Context(), id, req.Reason, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}
