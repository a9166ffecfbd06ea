package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	aiagentapp "github.com/taxcrm/backend/internal/application/aiagent"
)

// AgentHandler exposes the per-tenant assistant
type AgentHandler struct {
	BaseHandler
	agent *aiagentapp.Service
}

// NewAgentHandler creates a new agent handler
func NewAgentHandler(agent *aiagentapp.Service) *AgentHandler {
	return &AgentHandler{agent: agent}
}

// AgentConfigRequest replaces the agent configuration
type AgentConfigRequest struct {
	Enabled              bool   `json:"enabled"`
	Mode                 string `json:"mode" binding:"required,oneof=suggest auto" example:"suggest"`
	Provider             string `json:"provider" binding:"required,oneof=openai anthropic" example:"openai"`
	Model                string `json:"model" binding:"max=100"`
	CycleIntervalMinutes int    `json:"cycle_interval_minutes" binding:"omitempty,min=5,max=10080" example:"60"`
	Instructions         string `json:"instructions" binding:"max=4000"`
}

// AskRequest is a free-form question for the assistant
type AskRequest struct {
	Question  string     `json:"question" binding:"required,max=2000" example:"Which returns are due this week?"`
	ContactID *uuid.UUID `json:"contact_id"`
	TaxCaseID *uuid.UUID `json:"tax_case_id"`
}

// GetConfig godoc
// @Summary      Get the agent configuration
// @Tags         agent
// @Produce      json
// @Success      200 {object} APIResponse[aiagentapp.ConfigDTO]
// @Security     BearerAuth
// @Router       /agent/config [get]
func (h *AgentHandler) GetConfig(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	cfg, err := h.agent.GetConfig(c.Request.Context(), p.TenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cfg)
}

// UpdateConfig godoc
// @Summary      Replace the agent configuration
// @Tags         agent
// @Accept       json
// @Produce      json
// @Param        request body AgentConfigRequest true "Configuration"
// @Success      200 {object} APIResponse[aiagentapp.ConfigDTO]
// @Failure      400 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /agent/config [put]
func (h *AgentHandler) UpdateConfig(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req AgentConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	cfg, err := h.agent.UpdateConfig(c.Request.Context(), p.TenantID, aiagentapp.ConfigInput{
		Enabled:              req.Enabled,
		Mode:                 req.Mode,
		Provider:             req.Provider,
		Model:                req.Model,
		CycleIntervalMinutes: req.CycleIntervalMinutes,
		Instructions:         req.Instructions,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cfg)
}

// TriggerRun godoc
// @Summary      Run an agent cycle now
// @Description  The cycle runs in the background
// @Tags         agent
// @Success      202
// @Failure      409 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /agent/runs [post]
func (h *AgentHandler) TriggerRun(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	if err := h.agent.TriggerRun(c.Request.Context(), p.TenantID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, nil)
}

// ListRuns godoc
// @Summary      List agent cycles
// @Tags         agent
// @Produce      json
// @Param        status query string false "Status"
// @Success      200 {object} APIResponse[[]aiagentapp.RunDTO]
// @Security     BearerAuth
// @Router       /agent/runs [get]
func (h *AgentHandler) ListRuns(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	filter, ok := h.listFilter(c, "status")
	if !ok {
		return
	}
	runs, total, err := h.agent.ListRuns(c.Request.Context(), p.TenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, runs, total, filter)
}

// ListSuggestions godoc
// @Summary      List agent suggestions
// @Tags         agent
// @Produce      json
// @Param        status query string false "pending, accepted, dismissed or executed"
// @Param        kind query string false "Suggestion kind"
// @Param        run_id query string false "Run"
// @Success      200 {object} APIResponse[[]aiagentapp.SuggestionDTO]
// @Security     BearerAuth
// @Router       /agent/suggestions [get]
func (h *AgentHandler) ListSuggestions(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	filter, ok := h.listFilter(c, "status", "kind", "run_id")
	if !ok {
		return
	}
	suggestions, total, err := h.agent.ListSuggestions(c.Request.Context(), p.TenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, suggestions, total, filter)
}

// Accept godoc
// @Summary      Accept a suggestion
// @Description  Accepting a follow-up suggestion creates the task
// @Tags         agent
// @Produce      json
// @Param        id path string true "Suggestion ID"
// @Success      200 {object} APIResponse[aiagentapp.SuggestionDTO]
// @Failure      409 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /agent/suggestions/{id}/accept [post]
func (h *AgentHandler) Accept(c *gin.Context) {
	h.resolve(c, h.agent.Accept)
}

// Dismiss godoc
// @Summary      Dismiss a suggestion
// @Tags         agent
// @Produce      json
// @Param        id path string true "Suggestion ID"
// @Success      200 {object} APIResponse[aiagentapp.SuggestionDTO]
// @Failure      409 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /agent/suggestions/{id}/dismiss [post]
func (h *AgentHandler) Dismiss(c *gin.Context) {
	h.resolve(c, h.agent.Dismiss)
}

func (h *AgentHandler) resolve(c *gin.Context, fn func(ctx context.Context, tenantID, userID, id uuid.UUID) (*aiagentapp.SuggestionDTO, error)) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	sg, err := fn(c.Request.Context(), p.TenantID, p.UserID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sg)
}

// Ask godoc
// @Summary      Ask the assistant
// @Tags         agent
// @Accept       json
// @Produce      json
// @Param        request body AskRequest true "Question"
// @Success      200 {object} APIResponse[aiagentapp.AskResult]
// @Failure      422 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /agent/ask [post]
func (h *AgentHandler) Ask(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	answer, err := h.agent.Ask(c.Request.Context(), p.TenantID, aiagentapp.AskInput{
		Question:  req.Question,
		ContactID: req.ContactID,
		TaxCaseID: req.TaxCaseID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, answer)
}
