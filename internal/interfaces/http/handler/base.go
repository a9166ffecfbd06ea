package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/infrastructure/logger"
	"github.com/taxcrm/backend/internal/interfaces/http/dto"
	"github.com/taxcrm/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID returns the request ID assigned by middleware.RequestID
func getRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, filter shared.Filter) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, filter.Page, filter.PageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Accepted sends a 202 response for work handed to the scheduler
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// Unauthorized sends a 401 unauthorized response
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, message)
}

// Forbidden sends a 403 forbidden response
func (h *BaseHandler) Forbidden(c *gin.Context, message string) {
	h.Error(c, http.StatusForbidden, dto.ErrCodeForbidden, message)
}

// BindError reports a request binding failure. Validator errors carry per-field details.
func (h *BaseHandler) BindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		middleware.HandleValidationError(c, verrs)
		return
	}
	h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Malformed request body")
}

// HandleError converts domain errors to HTTP responses; anything else is a logged 500
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		h.Error(c, dto.GetHTTPStatus(code), code, domainErr.Message)
		return
	}

	logger.GetGinLogger(c).Error("Unhandled error",
		zap.Error(err),
		zap.String("path", c.FullPath()),
	)
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
}

// principal returns the authenticated caller or writes a 401
func (h *BaseHandler) principal(c *gin.Context) (*middleware.Principal, bool) {
	p, err := middleware.GetPrincipal(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return nil, false
	}
	return p, true
}

// pathID parses a UUID path parameter or writes a 400
func (h *BaseHandler) pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.BadRequest(c, fmt.Sprintf("Invalid %s format", name))
		return uuid.Nil, false
	}
	return id, true
}

// optionalUUID parses an optional UUID string
func optionalUUID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// dateLayout is the wire format of calendar dates
const dateLayout = "2006-01-02"

// optionalDate parses an optional calendar date; validation has already checked the format
func optionalDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil
	}
	return &t
}

// csvExport renders an export into memory so failures still produce a JSON error
func (h *BaseHandler) csvExport(c *gin.Context, filename string, export func(w io.Writer) error) {
	var buf bytes.Buffer
	if err := export(&buf); err != nil {
		h.HandleError(c, err)
		return
	}
	attachment(c, filename, "text/csv; charset=utf-8", buf.Bytes())
}

type filterKind int

const (
	filterString filterKind = iota
	filterUUID
	filterBool
	filterInt
	filterTime
)

// filterKinds types the query parameters repositories accept as filters
var filterKinds = map[string]filterKind{
	"status":            filterString,
	"category":          filterString,
	"entity_type":       filterString,
	"case_type":         filterString,
	"module":            filterString,
	"trigger":           filterString,
	"type":              filterString,
	"kind":              filterString,
	"assigned_to":       filterUUID,
	"contact_id":        filterUUID,
	"corporation_id":    filterUUID,
	"tax_case_id":       filterUUID,
	"parent_id":         filterUUID,
	"folder_id":         filterUUID,
	"preparer_id":       filterUUID,
	"staff_id":          filterUUID,
	"assignee_id":       filterUUID,
	"department_id":     filterUUID,
	"role_id":           filterUUID,
	"record_id":         filterUUID,
	"run_id":            filterUUID,
	"overdue":           filterBool,
	"issued":            filterBool,
	"active":            filterBool,
	"visible_to_client": filterBool,
	"tax_year":          filterInt,
	"from":              filterTime,
	"to":                filterTime,
}

// listFilter binds paging and the named query filters, writing a 400 on bad input
func (h *BaseHandler) listFilter(c *gin.Context, keys ...string) (shared.Filter, bool) {
	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return shared.Filter{}, false
	}
	filter := shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
		OrderBy:  req.OrderBy,
		OrderDir: req.OrderDir,
		Search:   req.Search,
		Filters:  make(map[string]interface{}),
	}

	for _, key := range keys {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		var (
			value any
			err   error
		)
		switch filterKinds[key] {
		case filterUUID:
			value, err = uuid.Parse(raw)
		case filterBool:
			value, err = strconv.ParseBool(raw)
		case filterInt:
			value, err = strconv.Atoi(raw)
		case filterTime:
			value, err = time.Parse(time.RFC3339, raw)
		default:
			value = raw
		}
		if err != nil {
			h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, fmt.Sprintf("Invalid value for %s", key))
			return shared.Filter{}, false
		}
		filter.Filters[key] = value
	}
	return filter.Normalize(), true
}

// attachment writes a downloadable file
func attachment(c *gin.Context, filename, contentType string, body []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, body)
}
