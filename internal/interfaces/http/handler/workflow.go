package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	workflowapp "github.com/taxcrm/backend/internal/application/workflow"
	"github.com/taxcrm/backend/internal/domain/workflow"
	"github.com/taxcrm/backend/internal/interfaces/http/middleware"
)

// WorkflowHandler handles approval definitions and approval requests
type WorkflowHandler struct {
	BaseHandler
	definitions *workflowapp.DefinitionService
	engine      *workflowapp.Engine
}

// NewWorkflowHandler creates a new workflow handler
func NewWorkflowHandler(definitions *workflowapp.DefinitionService, engine *workflowapp.Engine) *WorkflowHandler {
	return &WorkflowHandler{definitions: definitions, engine: engine}
}

// DefinitionRequest creates or replaces an approval definition
// @Description Entry conditions select records, numbered rules pick the approver
type DefinitionRequest struct {
	Name             string               `json:"name" binding:"required,max=200" example:"Large refunds"`
	Description      string               `json:"description" binding:"max=2000"`
	Module           string               `json:"module" binding:"required,oneof=tax_case invoice document contact corporation task"`
	Trigger          string               `json:"trigger" binding:"required,oneof=on_save via_process"`
	Active           *bool                `json:"active"`
	MatchAll         []workflow.Condition `json:"match_all"`
	MatchAny         []workflow.Condition `json:"match_any"`
	Rules            []workflow.Rule      `json:"rules"`
	ApprovalActions  []workflow.Action    `json:"approval_actions"`
	RejectionActions []workflow.Action    `json:"rejection_actions"`
}

func (r DefinitionRequest) input() workflowapp.DefinitionInput {
	return workflowapp.DefinitionInput{
		Name:             r.Name,
		Description:      r.Description,
		Module:           r.Module,
		Trigger:          r.Trigger,
		Active:           r.Active,
		MatchAll:         r.MatchAll,
		MatchAny:         r.MatchAny,
		Rules:            r.Rules,
		ApprovalActions:  r.ApprovalActions,
		RejectionActions: r.RejectionActions,
	}
}

// EvaluateRequest is a sample record to run through a definition
type EvaluateRequest struct {
	Record map[string]any `json:"record" binding:"required"`
}

// DecisionRequest approves or rejects with an optional comment
type DecisionRequest struct {
	Comment string `json:"comment" binding:"max=2000"`
}

func approver(p *middleware.Principal) workflow.Approver {
	return workflow.Approver{UserID: p.UserID, RoleIDs: p.RoleIDs, Permissions: p.Permissions}
}

// CreateDefinition godoc
// @Summary      Create an approval definition
// @Tags         workflow
// @Accept       json
// @Produce      json
// @Param        request body DefinitionRequest true "Definition"
// @Success      201 {object} APIResponse[workflowapp.DefinitionDTO]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /workflow/definitions [post]
func (h *WorkflowHandler) CreateDefinition(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req DefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	def, err := h.definitions.Create(c.Request.Context(), p.TenantID, p.UserID, req.input())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, def)
}

// ListDefinitions godoc
// @Summary      List approval definitions
// @Tags         workflow
// @Produce      json
// @Param        module query string false "Module"
// @Param        trigger query string false "Trigger"
// @Param        active query bool false "Active flag"
// @Success      200 {object} APIResponse[[]workflowapp.DefinitionDTO]
// @Security     BearerAuth
// @Router       /workflow/definitions [get]
func (h *WorkflowHandler) ListDefinitions(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	filter, ok := h.listFilter(c, "module", "trigger", "active")
	if !ok {
		return
	}
	defs, total, err := h.definitions.List(c.Request.Context(), p.TenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, defs, total, filter)
}

// GetDefinition godoc
// @Summary      Get an approval definition
// @Tags         workflow
// @Produce      json
// @Param        id path string true "Definition ID"
// @Success      200 {object} APIResponse[workflowapp.DefinitionDTO]
// @Security     BearerAuth
// @Router       /workflow/definitions/{id} [get]
func (h *WorkflowHandler) GetDefinition(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	def, err := h.definitions.GetByID(c.Request.Context(), p.TenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, def)
}

// UpdateDefinition godoc
// @Summary      Replace an approval definition
// @Tags         workflow
// @Accept       json
// @Produce      json
// @Param        id path string true "Definition ID"
// @Param        request body DefinitionRequest true "Definition"
// @Success      200 {object} APIResponse[workflowapp.DefinitionDTO]
// @Security     BearerAuth
// @Router       /workflow/definitions/{id} [put]
func (h *WorkflowHandler) UpdateDefinition(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req DefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	def, err := h.definitions.Update(c.Request.Context(), p.TenantID, id, req.input())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, def)
}

// ActivateDefinition godoc
// @Summary      Activate an approval definition
// @Tags         workflow
// @Produce      json
// @Param        id path string true "Definition ID"
// @Success      200 {object} APIResponse[workflowapp.DefinitionDTO]
// @Security     BearerAuth
// @Router       /workflow/definitions/{id}/activate [post]
func (h *WorkflowHandler) ActivateDefinition(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	def, err := h.definitions.Activate(c.Request.Context(), p.TenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, def)
}

// DeactivateDefinition godoc
// @Summary      Deactivate an approval definition
// @Tags         workflow
// @Produce      json
// @Param        id path string true "Definition ID"
// @Success      200 {object} APIResponse[workflowapp.DefinitionDTO]
// @Security     BearerAuth
// @Router       /workflow/definitions/{id}/deactivate [post]
func (h *WorkflowHandler) DeactivateDefinition(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	def, err := h.definitions.Deactivate(c.Request.Context(), p.TenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, def)
}

// DeleteDefinition godoc
// @Summary      Delete an approval definition
// @Tags         workflow
// @Param        id path string true "Definition ID"
// @Success      204
// @Security     BearerAuth
// @Router       /workflow/definitions/{id} [delete]
func (h *WorkflowHandler) DeleteDefinition(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.definitions.Delete(c.Request.Context(), p.TenantID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// TestDefinition godoc
// @Summary      Dry-run a definition against a sample record
// @Tags         workflow
// @Accept       json
// @Produce      json
// @Param        id path string true "Definition ID"
// @Param        request body EvaluateRequest true "Sample record"
// @Success      200 {object} APIResponse[workflowapp.EvaluationResult]
// @Security     BearerAuth
// @Router       /workflow/definitions/{id}/test [post]
func (h *WorkflowHandler) TestDefinition(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	result, err := h.definitions.TestEvaluate(c.Request.Context(), p.TenantID, id, req.Record)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ListApprovals godoc
// @Summary      List approval requests
// @Tags         approvals
// @Produce      json
// @Param        status query string false "Status"
// @Param        module query string false "Module"
// @Param        record_id query string false "Record"
// @Success      200 {object} APIResponse[[]workflowapp.ApprovalDTO]
// @Security     BearerAuth
// @Router       /approvals [get]
func (h *WorkflowHandler) ListApprovals(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	filter, ok := h.listFilter(c, "status", "module", "record_id")
	if !ok {
		return
	}
	approvals, total, err := h.engine.List(c.Request.Context(), p.TenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, approvals, total, filter)
}

// ListPending godoc
// @Summary      Approvals waiting on the caller
// @Description  Pending requests the caller may decide
// @Tags         approvals
// @Produce      json
// @Param        module query string false "Module"
// @Success      200 {object} APIResponse[[]workflowapp.ApprovalDTO]
// @Security     BearerAuth
// @Router       /approvals/pending [get]
func (h *WorkflowHandler) ListPending(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	filter, ok := h.listFilter(c, "module")
	if !ok {
		return
	}
	approvals, total, err := h.engine.ListPendingFor(c.Request.Context(), p.TenantID, approver(p), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, approvals, total, filter)
}

// GetApproval godoc
// @Summary      Get an approval request
// @Tags         approvals
// @Produce      json
// @Param        id path string true "Approval ID"
// @Success      200 {object} APIResponse[workflowapp.ApprovalDTO]
// @Security     BearerAuth
// @Router       /approvals/{id} [get]
func (h *WorkflowHandler) GetApproval(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	approval, err := h.engine.GetByID(c.Request.Context(), p.TenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, approval)
}

// Approve godoc
// @Summary      Approve a request
// @Tags         approvals
// @Accept       json
// @Produce      json
// @Param        id path string true "Approval ID"
// @Param        request body DecisionRequest false "Comment"
// @Success      200 {object} APIResponse[workflowapp.ApprovalDTO]
// @Failure      403 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /approvals/{id}/approve [post]
func (h *WorkflowHandler) Approve(c *gin.Context) {
	h.decide(c, h.engine.Approve)
}

// Reject godoc
// @Summary      Reject a request
// @Tags         approvals
// @Accept       json
// @Produce      json
// @Param        id path string true "Approval ID"
// @Param        request body DecisionRequest false "Comment"
// @Success      200 {object} APIResponse[workflowapp.ApprovalDTO]
// @Failure      403 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /approvals/{id}/reject [post]
func (h *WorkflowHandler) Reject(c *gin.Context) {
	h.decide(c, h.engine.Reject)
}

func (h *WorkflowHandler) decide(c *gin.Context, fn func(ctx context.Context, tenantID, id uuid.UUID, who workflow.Approver, comment string) (*workflowapp.ApprovalDTO, error)) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req DecisionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}
	approval, err := fn(c.Request.Context(), p.TenantID, id, approver(p), req.Comment)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, approval)
}

// Cancel godoc
// @Summary      Withdraw a pending request
// @Description  Only the requester may cancel
// @Tags         approvals
// @Produce      json
// @Param        id path string true "Approval ID"
// @Success      200 {object} APIResponse[workflowapp.ApprovalDTO]
// @Failure      403 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /approvals/{id}/cancel [post]
func (h *WorkflowHandler) Cancel(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	approval, err := h.engine.Cancel(c.Request.Context(), p.TenantID, id, approver(p))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, approval)
}
