package handler

import (
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	taxcaseapp "github.com/taxcrm/backend/internal/application/taxcase"
)

// CaseHandler handles tax cases
type CaseHandler struct {
	BaseHandler
	cases *taxcaseapp.Service
}

// NewCaseHandler creates a new tax case handler
func NewCaseHandler(cases *taxcaseapp.Service) *CaseHandler {
	return &CaseHandler{cases: cases}
}

// CaseRequest creates or replaces a tax case
// @Description Tax engagement for one client and tax year. Exactly one of contact_id and corporation_id is required.
type CaseRequest struct {
	ContactID     *uuid.UUID      `json:"contact_id" binding:"required_without=CorporationID,excluded_with=CorporationID"`
	CorporationID *uuid.UUID      `json:"corporation_id"`
	TaxYear       int             `json:"tax_year" binding:"required,min=1900,max=2200" example:"2025"`
	CaseType      string          `json:"case_type" binding:"required,oneof=individual_1040 corporate_1120 s_corp_1120s partnership_1065 nonprofit_990 amendment audit other"`
	Priority      string          `json:"priority" binding:"omitempty,oneof=low normal high urgent"`
	DueDate       string          `json:"due_date" binding:"omitempty,datetime=2006-01-02" example:"2026-04-15"`
	Fee           decimal.Decimal `json:"fee" swaggertype:"string" example:"450.00"`
	PreparerID    *uuid.UUID      `json:"preparer_id"`
	ReviewerID    *uuid.UUID      `json:"reviewer_id"`
	Notes         string          `json:"notes" binding:"max=5000"`
}

func (r CaseRequest) input() taxcaseapp.CaseInput {
	return taxcaseapp.CaseInput{
		ContactID:     r.ContactID,
		CorporationID: r.CorporationID,
		TaxYear:       r.TaxYear,
		CaseType:      r.CaseType,
		Priority:      r.Priority,
		DueDate:       optionalDate(r.DueDate),
		Fee:           r.Fee,
		PreparerID:    r.PreparerID,
		ReviewerID:    r.ReviewerID,
		Notes:         r.Notes,
	}
}

// StatusRequest moves a record to another status
type StatusRequest struct {
	Status string `json:"status" binding:"required,max=50"`
}

var caseFilterKeys = []string{"status", "tax_year", "case_type", "preparer_id", "contact_id", "corporation_id"}

// Create godoc
// @Summary      Create a tax case
// @Tags         cases
// @Accept       json
// @Produce      json
// @Param        request body CaseRequest true "Case"
// @Success      201 {object} APIResponse[taxcaseapp.CaseDTO]
// @Failure      400 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /cases [post]
func (h *CaseHandler) Create(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req CaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	tc, err := h.cases.Create(c.Request.Context(), p.TenantID, p.UserID, req.input())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, tc)
}

// List godoc
// @Summary      List tax cases
// @Tags         cases
// @Produce      json
// @Param        page query int false "Page number"
// @Param        page_size query int false "Page size"
// @Param        status query string false "Status"
// @Param        tax_year query int false "Tax year"
// @Param        case_type query string false "Case type"
// @Param        preparer_id query string false "Preparer"
// @Param        contact_id query string false "Contact"
// @Param        corporation_id query string false "Corporation"
// @Success      200 {object} APIResponse[[]taxcaseapp.CaseDTO]
// @Security     BearerAuth
// @Router       /cases [get]
func (h *CaseHandler) List(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	filter, ok := h.listFilter(c, caseFilterKeys...)
	if !ok {
		return
	}
	cases, total, err := h.cases.List(c.Request.Context(), p.TenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, cases, total, filter)
}

// Export godoc
// @Summary      Export tax cases as CSV
// @Tags         cases
// @Produce      text/csv
// @Success      200 {file} binary
// @Security     BearerAuth
// @Router       /cases/export [get]
func (h *CaseHandler) Export(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	filter, ok := h.listFilter(c, caseFilterKeys...)
	if !ok {
		return
	}
	h.csvExport(c, "cases.csv", func(w io.Writer) error {
		return h.cases.Export(c.Request.Context(), p.TenantID, filter, w)
	})
}

// GetByID godoc
// @Summary      Get a tax case
// @Tags         cases
// @Produce      json
// @Param        id path string true "Case ID"
// @Success      200 {object} APIResponse[taxcaseapp.CaseDTO]
// @Failure      404 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /cases/{id} [get]
func (h *CaseHandler) GetByID(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	tc, err := h.cases.GetByID(c.Request.Context(), p.TenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tc)
}

// Update godoc
// @Summary      Update a tax case
// @Tags         cases
// @Accept       json
// @Produce      json
// @Param        id path string true "Case ID"
// @Param        request body CaseRequest true "Case"
// @Success      200 {object} APIResponse[taxcaseapp.CaseDTO]
// @Failure      409 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /cases/{id} [put]
func (h *CaseHandler) Update(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req CaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	tc, err := h.cases.Update(c.Request.Context(), p.TenantID, p.UserID, id, req.input())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tc)
}

// ChangeStatus godoc
// @Summary      Move a case along its lifecycle
// @Tags         cases
// @Accept       json
// @Produce      json
// @Param        id path string true "Case ID"
// @Param        request body StatusRequest true "Target status"
// @Success      200 {object} APIResponse[taxcaseapp.CaseDTO]
// @Failure      409 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /cases/{id}/status [put]
func (h *CaseHandler) ChangeStatus(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	tc, err := h.cases.ChangeStatus(c.Request.Context(), p.TenantID, p.UserID, id, req.Status)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tc)
}

// Submit godoc
// @Summary      Submit a case for approval
// @Description  Starts the approval workflow when one applies, otherwise approves directly
// @Tags         cases
// @Produce      json
// @Param        id path string true "Case ID"
// @Success      200 {object} APIResponse[taxcaseapp.CaseDTO]
// @Failure      409 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /cases/{id}/submit [post]
func (h *CaseHandler) Submit(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	tc, err := h.cases.Submit(c.Request.Context(), p.TenantID, p.UserID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tc)
}

// Delete godoc
// @Summary      Delete a tax case
// @Tags         cases
// @Param        id path string true "Case ID"
// @Success      204
// @Security     BearerAuth
// @Router       /cases/{id} [delete]
func (h *CaseHandler) Delete(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.cases.Delete(c.Request.Context(), p.TenantID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
