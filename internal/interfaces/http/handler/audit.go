package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	auditapp "github.com/taxcrm/backend/internal/application/audit"
	"github.com/taxcrm/backend/internal/domain/audit"
	"github.com/taxcrm/backend/internal/interfaces/http/dto"
)

// AuditHandler serves the audit trail
type AuditHandler struct {
	BaseHandler
	audit *auditapp.Service
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(audit *auditapp.Service) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// AuditQueryRequest filters audit entries
type AuditQueryRequest struct {
	ResourceType string     `form:"resource_type" binding:"max=50"`
	ResourceID   *uuid.UUID `form:"resource_id"`
	UserID       *uuid.UUID `form:"user_id"`
	Action       string     `form:"action" binding:"max=50"`
	From         *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To           *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Page         int        `form:"page" binding:"omitempty,min=1"`
	PageSize     int        `form:"page_size" binding:"omitempty,min=1,max=100"`
}

func (h *AuditHandler) bindQuery(c *gin.Context) (audit.Query, bool) {
	var req AuditQueryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return audit.Query{}, false
	}
	return audit.Query{
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		UserID:       req.UserID,
		Action:       req.Action,
		From:         req.From,
		To:           req.To,
		Page:         req.Page,
		PageSize:     req.PageSize,
	}, true
}

// auditPage writes a page of entries; paging mirrors the service defaults
func (h *AuditHandler) auditPage(c *gin.Context, logs []auditapp.LogDTO, total int64, q audit.Query) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 || q.PageSize > 100 {
		q.PageSize = 20
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(logs, total, q.Page, q.PageSize))
}

// List godoc
// @Summary      Search the audit trail
// @Description  Newest entries first
// @Tags         audit
// @Produce      json
// @Param        resource_type query string false "Resource type"
// @Param        resource_id query string false "Resource ID"
// @Param        user_id query string false "Acting user"
// @Param        action query string false "Action"
// @Param        from query string false "From (RFC3339)"
// @Param        to query string false "To (RFC3339)"
// @Param        page query int false "Page number"
// @Param        page_size query int false "Page size"
// @Success      200 {object} APIResponse[[]auditapp.LogDTO]
// @Security     BearerAuth
// @Router       /audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	q, ok := h.bindQuery(c)
	if !ok {
		return
	}
	logs, total, err := h.audit.List(c.Request.Context(), p.TenantID, q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.auditPage(c, logs, total, q)
}

// History godoc
// @Summary      Audit trail of one record
// @Tags         audit
// @Produce      json
// @Param        type path string true "Resource type"
// @Param        id path string true "Resource ID"
// @Param        page query int false "Page number"
// @Param        page_size query int false "Page size"
// @Success      200 {object} APIResponse[[]auditapp.LogDTO]
// @Security     BearerAuth
// @Router       /audit-logs/resources/{type}/{id} [get]
func (h *AuditHandler) History(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	q, ok := h.bindQuery(c)
	if !ok {
		return
	}
	logs, total, err := h.audit.History(c.Request.Context(), p.TenantID, c.Param("type"), id, q.Page, q.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.auditPage(c, logs, total, q)
}

// GetByID godoc
// @Summary      Get an audit entry
// @Tags         audit
// @Produce      json
// @Param        id path string true "Entry ID"
// @Success      200 {object} APIResponse[auditapp.LogDTO]
// @Security     BearerAuth
// @Router       /audit-logs/{id} [get]
func (h *AuditHandler) GetByID(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	entry, err := h.audit.GetByID(c.Request.Context(), p.TenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// Export godoc
// @Summary      Export the audit trail as CSV
// @Tags         audit
// @Produce      text/csv
// @Success      200 {file} binary
// @Security     BearerAuth
// @Router       /audit-logs/export [get]
func (h *AuditHandler) Export(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	q, ok := h.bindQuery(c)
	if !ok {
		return
	}
	h.csvExport(c, "audit-log.csv", func(w io.Writer) error {
		return h.audit.Export(c.Request.Context(), p.TenantID, q, w)
	})
}
