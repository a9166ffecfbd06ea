package handler

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	billingapp "github.com/taxcrm/backend/internal/application/billing"
)

// InvoiceHandler handles client invoices
type InvoiceHandler struct {
	BaseHandler
	invoices *billingapp.InvoiceService
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(invoices *billingapp.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

// LineItemRequest is one invoice row
type LineItemRequest struct {
	Description string          `json:"description" binding:"required,max=500" example:"Form 1040 preparation"`
	Quantity    decimal.Decimal `json:"quantity" swaggertype:"string" example:"1"`
	UnitPrice   decimal.Decimal `json:"unit_price" swaggertype:"string" example:"350.00"`
}

// InvoiceRequest creates or replaces a draft invoice
// @Description Exactly one of contact_id and corporation_id is required
type InvoiceRequest struct {
	ContactID     *uuid.UUID        `json:"contact_id" binding:"required_without=CorporationID,excluded_with=CorporationID"`
	CorporationID *uuid.UUID        `json:"corporation_id"`
	TaxCaseID     *uuid.UUID        `json:"tax_case_id"`
	IssueDate     string            `json:"issue_date" binding:"omitempty,datetime=2006-01-02"`
	DueDate       string            `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
	TaxRate       decimal.Decimal   `json:"tax_rate" swaggertype:"string" example:"0.0825"`
	Notes         string            `json:"notes" binding:"max=5000"`
	Items         []LineItemRequest `json:"items" binding:"required,min=1,dive"`
}

func (r InvoiceRequest) input() billingapp.InvoiceInput {
	items := make([]billingapp.LineItemInput, len(r.Items))
	for i, it := range r.Items {
		items[i] = billingapp.LineItemInput{Description: it.Description, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	return billingapp.InvoiceInput{
		ContactID:     r.ContactID,
		CorporationID: r.CorporationID,
		TaxCaseID:     r.TaxCaseID,
		IssueDate:     optionalDate(r.IssueDate),
		DueDate:       optionalDate(r.DueDate),
		TaxRate:       r.TaxRate,
		Notes:         r.Notes,
		Items:         items,
	}
}

// PaymentRequest records money received against an invoice
type PaymentRequest struct {
	Amount    decimal.Decimal `json:"amount" swaggertype:"string" example:"150.00"`
	Method    string          `json:"method" binding:"required,oneof=cash check card ach other"`
	Reference string          `json:"reference" binding:"max=255"`
	PaidAt    *time.Time      `json:"paid_at"`
}

var invoiceFilterKeys = []string{"status", "contact_id", "corporation_id", "tax_case_id", "overdue", "issued"}

// Create godoc
// @Summary      Create a draft invoice
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        request body InvoiceRequest true "Invoice"
// @Success      201 {object} APIResponse[billingapp.InvoiceDTO]
// @Failure      400 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /invoices [post]
func (h *InvoiceHandler) Create(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req InvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	inv, err := h.invoices.Create(c.Request.Context(), p.TenantID, p.UserID, req.input())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, inv)
}

// List godoc
// @Summary      List invoices
// @Tags         invoices
// @Produce      json
// @Param        page query int false "Page number"
// @Param        page_size query int false "Page size"
// @Param        status query string false "Status"
// @Param        contact_id query string false "Contact"
// @Param        corporation_id query string false "Corporation"
// @Param        tax_case_id query string false "Tax case"
// @Param        overdue query bool false "Only overdue invoices"
// @Param        issued query bool false "Only issued invoices"
// @Success      200 {object} APIResponse[[]billingapp.InvoiceDTO]
// @Security     BearerAuth
// @Router       /invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	filter, ok := h.listFilter(c, invoiceFilterKeys...)
	if !ok {
		return
	}
	invoices, total, err := h.invoices.List(c.Request.Context(), p.TenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, invoices, total, filter)
}

// Export godoc
// @Summary      Export invoices as CSV
// @Tags         invoices
// @Produce      text/csv
// @Success      200 {file} binary
// @Security     BearerAuth
// @Router       /invoices/export [get]
func (h *InvoiceHandler) Export(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	filter, ok := h.listFilter(c, invoiceFilterKeys...)
	if !ok {
		return
	}
	h.csvExport(c, "invoices.csv", func(w io.Writer) error {
		return h.invoices.Export(c.Request.Context(), p.TenantID, filter, w)
	})
}

// GetByID godoc
// @Summary      Get an invoice
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID"
// @Success      200 {object} APIResponse[billingapp.InvoiceDTO]
// @Failure      404 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id} [get]
func (h *InvoiceHandler) GetByID(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	inv, err := h.invoices.GetByID(c.Request.Context(), p.TenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// Update godoc
// @Summary      Replace a draft invoice
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID"
// @Param        request body InvoiceRequest true "Invoice"
// @Success      200 {object} APIResponse[billingapp.InvoiceDTO]
// @Failure      409 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id} [put]
func (h *InvoiceHandler) Update(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req InvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	inv, err := h.invoices.Update(c.Request.Context(), p.TenantID, p.UserID, id, req.input())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// Send godoc
// @Summary      Issue an invoice to the client
// @Description  Emails the invoice PDF when the client has an address. Subject to approval workflows.
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID"
// @Success      200 {object} APIResponse[billingapp.InvoiceDTO]
// @Failure      409 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/send [post]
func (h *InvoiceHandler) Send(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	inv, err := h.invoices.Send(c.Request.Context(), p.TenantID, p.UserID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// RecordPayment godoc
// @Summary      Record a payment
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID"
// @Param        request body PaymentRequest true "Payment"
// @Success      200 {object} APIResponse[billingapp.InvoiceDTO]
// @Failure      409 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/payments [post]
func (h *InvoiceHandler) RecordPayment(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	inv, err := h.invoices.RecordPayment(c.Request.Context(), p.TenantID, p.UserID, id, billingapp.PaymentInput{
		Amount:    req.Amount,
		Method:    req.Method,
		Reference: req.Reference,
		PaidAt:    req.PaidAt,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// Void godoc
// @Summary      Void an invoice
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID"
// @Success      200 {object} APIResponse[billingapp.InvoiceDTO]
// @Failure      409 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/void [post]
func (h *InvoiceHandler) Void(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	inv, err := h.invoices.Void(c.Request.Context(), p.TenantID, p.UserID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// Delete godoc
// @Summary      Delete a draft invoice
// @Tags         invoices
// @Param        id path string true "Invoice ID"
// @Success      204
// @Failure      409 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id} [delete]
func (h *InvoiceHandler) Delete(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.invoices.Delete(c.Request.Context(), p.TenantID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// PDF godoc
// @Summary      Invoice as PDF
// @Tags         invoices
// @Produce      application/pdf
// @Param        id path string true "Invoice ID"
// @Success      200 {file} binary
// @Failure      503 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/pdf [get]
func (h *InvoiceHandler) PDF(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	name, body, err := h.invoices.PDF(c.Request.Context(), p.TenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	attachment(c, name, "application/pdf", body)
}
