package handler

import (
	"context"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	crmapp "github.com/taxcrm/backend/internal/application/crm"
)

// ContactHandler handles individual clients
type ContactHandler struct {
	BaseHandler
	contacts *crmapp.ContactService
}

// NewContactHandler creates a new contact handler
func NewContactHandler(contacts *crmapp.ContactService) *ContactHandler {
	return &ContactHandler{contacts: contacts}
}

// AddressRequest is a postal address
type AddressRequest struct {
	Street     string `json:"street" binding:"max=255"`
	City       string `json:"city" binding:"max=100"`
	State      string `json:"state" binding:"max=100"`
	PostalCode string `json:"postal_code" binding:"max=20"`
	Country    string `json:"country" binding:"max=100"`
}

func (r AddressRequest) input() crmapp.AddressInput {
	return crmapp.AddressInput{
		Street:     r.Street,
		City:       r.City,
		State:      r.State,
		PostalCode: r.PostalCode,
		Country:    r.Country,
	}
}

// ContactRequest creates or replaces a contact
// @Description Individual client. The SSN is encrypted at rest and only returned masked.
type ContactRequest struct {
	FirstName   string         `json:"first_name" binding:"required,max=100" example:"Jane"`
	LastName    string         `json:"last_name" binding:"required,max=100" example:"Doe"`
	Email       string         `json:"email" binding:"omitempty,email,max=255" example:"jane@example.com"`
	Phone       string         `json:"phone" binding:"max=50"`
	DateOfBirth string         `json:"date_of_birth" binding:"omitempty,datetime=2006-01-02" example:"1980-04-15"`
	SSN         *string        `json:"ssn" binding:"omitempty,ssn" example:"123-45-6789"`
	Address     AddressRequest `json:"address"`
	Status      string         `json:"status" binding:"omitempty,oneof=lead active inactive"`
	AssignedTo  *uuid.UUID     `json:"assigned_to"`
	Notes       string         `json:"notes" binding:"max=5000"`
}

func (r ContactRequest) input() crmapp.ContactInput {
	return crmapp.ContactInput{
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Email:       r.Email,
		Phone:       r.Phone,
		DateOfBirth: optionalDate(r.DateOfBirth),
		SSN:         r.SSN,
		Address:     r.Address.input(),
		Status:      r.Status,
		AssignedTo:  r.AssignedTo,
		Notes:       r.Notes,
	}
}

// PrimaryCorporationRequest sets or clears the primary corporation
type PrimaryCorporationRequest struct {
	CorporationID *uuid.UUID `json:"corporation_id"`
}

// ActivityRequest records a client touchpoint
type ActivityRequest struct {
	At *time.Time `json:"at"`
}

// Create godoc
// @Summary      Create a contact
// @Tags         contacts
// @Accept       json
// @Produce      json
// @Param        request body ContactRequest true "Contact"
// @Success      201 {object} APIResponse[crmapp.ContactDTO]
// @Failure      400 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /contacts [post]
func (h *ContactHandler) Create(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	contact, err := h.contacts.Create(c.Request.Context(), p.TenantID, p.UserID, req.input())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, contact)
}

// List godoc
// @Summary      List contacts
// @Tags         contacts
// @Produce      json
// @Param        page query int false "Page number"
// @Param        page_size query int false "Page size"
// @Param        search query string false "Name or email search"
// @Param        status query string false "Status"
// @Param        assigned_to query string false "Responsible staff"
// @Param        corporation_id query string false "Linked corporation"
// @Success      200 {object} APIResponse[[]crmapp.ContactDTO]
// @Security     BearerAuth
// @Router       /contacts [get]
func (h *ContactHandler) List(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	filter, ok := h.listFilter(c, "status", "assigned_to", "corporation_id")
	if !ok {
		return
	}
	contacts, total, err := h.contacts.List(c.Request.Context(), p.TenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, contacts, total, filter)
}

// Export godoc
// @Summary      Export contacts as CSV
// @Tags         contacts
// @Produce      text/csv
// @Param        search query string false "Name or email search"
// @Param        status query string false "Status"
// @Success      200 {file} binary
// @Security     BearerAuth
// @Router       /contacts/export [get]
func (h *ContactHandler) Export(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	filter, ok := h.listFilter(c, "status", "assigned_to", "corporation_id")
	if !ok {
		return
	}
	h.csvExport(c, "contacts.csv", func(w io.Writer) error {
		return h.contacts.Export(c.Request.Context(), p.TenantID, filter, w)
	})
}

// GetByID godoc
// @Summary      Get a contact
// @Tags         contacts
// @Produce      json
// @Param        id path string true "Contact ID"
// @Success      200 {object} APIResponse[crmapp.ContactDTO]
// @Failure      404 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /contacts/{id} [get]
func (h *ContactHandler) GetByID(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	contact, err := h.contacts.GetByID(c.Request.Context(), p.TenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, contact)
}

// Update godoc
// @Summary      Update a contact
// @Tags         contacts
// @Accept       json
// @Produce      json
// @Param        id path string true "Contact ID"
// @Param        request body ContactRequest true "Contact"
// @Success      200 {object} APIResponse[crmapp.ContactDTO]
// @Security     BearerAuth
// @Router       /contacts/{id} [put]
func (h *ContactHandler) Update(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	contact, err := h.contacts.Update(c.Request.Context(), p.TenantID, p.UserID, id, req.input())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, contact)
}

// Delete godoc
// @Summary      Delete a contact
// @Tags         contacts
// @Param        id path string true "Contact ID"
// @Success      204
// @Security     BearerAuth
// @Router       /contacts/{id} [delete]
func (h *ContactHandler) Delete(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.contacts.Delete(c.Request.Context(), p.TenantID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Corporations godoc
// @Summary      Corporations linked to a contact
// @Tags         contacts
// @Produce      json
// @Param        id path string true "Contact ID"
// @Success      200 {object} APIResponse[[]crmapp.CorporationDTO]
// @Security     BearerAuth
// @Router       /contacts/{id}/corporations [get]
func (h *ContactHandler) Corporations(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	corps, err := h.contacts.Corporations(c.Request.Context(), p.TenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, corps)
}

// LinkCorporation godoc
// @Summary      Link a corporation to a contact
// @Tags         contacts
// @Produce      json
// @Param        id path string true "Contact ID"
// @Param        corporationId path string true "Corporation ID"
// @Success      200 {object} APIResponse[crmapp.ContactDTO]
// @Security     BearerAuth
// @Router       /contacts/{id}/corporations/{corporationId} [put]
func (h *ContactHandler) LinkCorporation(c *gin.Context) {
	h.link(c, h.contacts.LinkCorporation)
}

// UnlinkCorporation godoc
// @Summary      Unlink a corporation from a contact
// @Tags         contacts
// @Produce      json
// @Param        id path string true "Contact ID"
// @Param        corporationId path string true "Corporation ID"
// @Success      200 {object} APIResponse[crmapp.ContactDTO]
// @Security     BearerAuth
// @Router       /contacts/{id}/corporations/{corporationId} [delete]
func (h *ContactHandler) UnlinkCorporation(c *gin.Context) {
	h.link(c, h.contacts.UnlinkCorporation)
}

type contactLinkFunc func(ctx context.Context, tenantID, userID, contactID, corporationID uuid.UUID) (*crmapp.ContactDTO, error)

func (h *ContactHandler) link(c *gin.Context, fn contactLinkFunc) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	corporationID, ok := h.pathID(c, "corporationId")
	if !ok {
		return
	}
	contact, err := fn(c.Request.Context(), p.TenantID, p.UserID, id, corporationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, contact)
}

// SetPrimaryCorporation godoc
// @Summary      Set or clear the primary corporation
// @Tags         contacts
// @Accept       json
// @Produce      json
// @Param        id path string true "Contact ID"
// @Param        request body PrimaryCorporationRequest true "Corporation, null to clear"
// @Success      200 {object} APIResponse[crmapp.ContactDTO]
// @Security     BearerAuth
// @Router       /contacts/{id}/primary-corporation [put]
func (h *ContactHandler) SetPrimaryCorporation(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req PrimaryCorporationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	contact, err := h.contacts.SetPrimaryCorporation(c.Request.Context(), p.TenantID, p.UserID, id, req.CorporationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, contact)
}

// RecordActivity godoc
// @Summary      Record a client touchpoint
// @Description  Moves last_activity_at forward; older timestamps are ignored
// @Tags         contacts
// @Accept       json
// @Param        id path string true "Contact ID"
// @Param        request body ActivityRequest false "Activity time, defaults to now"
// @Success      204
// @Security     BearerAuth
// @Router       /contacts/{id}/activity [post]
func (h *ContactHandler) RecordActivity(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req ActivityRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}
	at := time.Now()
	if req.At != nil {
		at = *req.At
	}
	if err := h.contacts.RecordActivity(c.Request.Context(), p.TenantID, id, at); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// CorporationHandler handles business clients
type CorporationHandler struct {
	BaseHandler
	corporations *crmapp.CorporationService
}

// NewCorporationHandler creates a new corporation handler
func NewCorporationHandler(corporations *crmapp.CorporationService) *CorporationHandler {
	return &CorporationHandler{corporations: corporations}
}

// CorporationRequest creates or replaces a corporation
type CorporationRequest struct {
	Name               string         `json:"name" binding:"required,max=255" example:"Acme Holdings LLC"`
	EIN                *string        `json:"ein" binding:"omitempty,ein" example:"12-3456789"`
	EntityType         string         `json:"entity_type" binding:"required,oneof=c_corp s_corp llc partnership sole_proprietorship nonprofit trust"`
	FiscalYearEndMonth int            `json:"fiscal_year_end_month" binding:"omitempty,min=1,max=12"`
	Email              string         `json:"email" binding:"omitempty,email,max=255"`
	Phone              string         `json:"phone" binding:"max=50"`
	Address            AddressRequest `json:"address"`
	Status             string         `json:"status" binding:"omitempty,oneof=active inactive dissolved"`
	Notes              string         `json:"notes" binding:"max=5000"`
}

func (r CorporationRequest) input() crmapp.CorporationInput {
	return crmapp.CorporationInput{
		Name:               r.Name,
		EIN:                r.EIN,
		EntityType:         r.EntityType,
		FiscalYearEndMonth: r.FiscalYearEndMonth,
		Email:              r.Email,
		Phone:              r.Phone,
		Address:            r.Address.input(),
		Status:             r.Status,
		Notes:              r.Notes,
	}
}

// ParentRequest sets or clears the parent corporation
type ParentRequest struct {
	ParentID *uuid.UUID `json:"parent_id"`
}

// Create godoc
// @Summary      Create a corporation
// @Tags         corporations
// @Accept       json
// @Produce      json
// @Param        request body CorporationRequest true "Corporation"
// @Success      201 {object} APIResponse[crmapp.CorporationDTO]
// @Failure      400 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /corporations [post]
func (h *CorporationHandler) Create(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req CorporationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	corp, err := h.corporations.Create(c.Request.Context(), p.TenantID, p.UserID, req.input())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, corp)
}

// List godoc
// @Summary      List corporations
// @Tags         corporations
// @Produce      json
// @Param        page query int false "Page number"
// @Param        page_size query int false "Page size"
// @Param        search query string false "Name search"
// @Param        status query string false "Status"
// @Param        entity_type query string false "Entity type"
// @Param        parent_id query string false "Parent corporation"
// @Success      200 {object} APIResponse[[]crmapp.CorporationDTO]
// @Security     BearerAuth
// @Router       /corporations [get]
func (h *CorporationHandler) List(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	filter, ok := h.listFilter(c, "status", "entity_type", "parent_id")
	if !ok {
		return
	}
	corps, total, err := h.corporations.List(c.Request.Context(), p.TenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, corps, total, filter)
}

// Export godoc
// @Summary      Export corporations as CSV
// @Tags         corporations
// @Produce      text/csv
// @Success      200 {file} binary
// @Security     BearerAuth
// @Router       /corporations/export [get]
func (h *CorporationHandler) Export(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	filter, ok := h.listFilter(c, "status", "entity_type", "parent_id")
	if !ok {
		return
	}
	h.csvExport(c, "corporations.csv", func(w io.Writer) error {
		return h.corporations.Export(c.Request.Context(), p.TenantID, filter, w)
	})
}

// GetByID godoc
// @Summary      Get a corporation
// @Tags         corporations
// @Produce      json
// @Param        id path string true "Corporation ID"
// @Success      200 {object} APIResponse[crmapp.CorporationDTO]
// @Failure      404 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /corporations/{id} [get]
func (h *CorporationHandler) GetByID(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	corp, err := h.corporations.GetByID(c.Request.Context(), p.TenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, corp)
}

// Update godoc
// @Summary      Update a corporation
// @Tags         corporations
// @Accept       json
// @Produce      json
// @Param        id path string true "Corporation ID"
// @Param        request body CorporationRequest true "Corporation"
// @Success      200 {object} APIResponse[crmapp.CorporationDTO]
// @Security     BearerAuth
// @Router       /corporations/{id} [put]
func (h *CorporationHandler) Update(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req CorporationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	corp, err := h.corporations.Update(c.Request.Context(), p.TenantID, p.UserID, id, req.input())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, corp)
}

// Delete godoc
// @Summary      Delete a corporation
// @Tags         corporations
// @Param        id path string true "Corporation ID"
// @Success      204
// @Security     BearerAuth
// @Router       /corporations/{id} [delete]
func (h *CorporationHandler) Delete(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.corporations.Delete(c.Request.Context(), p.TenantID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// SetParent godoc
// @Summary      Set or clear the parent corporation
// @Tags         corporations
// @Accept       json
// @Produce      json
// @Param        id path string true "Corporation ID"
// @Param        request body ParentRequest true "Parent, null to clear"
// @Success      200 {object} APIResponse[crmapp.CorporationDTO]
// @Failure      400 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /corporations/{id}/parent [put]
func (h *CorporationHandler) SetParent(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req ParentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	corp, err := h.corporations.SetParent(c.Request.Context(), p.TenantID, p.UserID, id, req.ParentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, corp)
}

// Subsidiaries godoc
// @Summary      Direct subsidiaries
// @Tags         corporations
// @Produce      json
// @Param        id path string true "Corporation ID"
// @Success      200 {object} APIResponse[[]crmapp.CorporationDTO]
// @Security     BearerAuth
// @Router       /corporations/{id}/subsidiaries [get]
func (h *CorporationHandler) Subsidiaries(c *gin.Context) {
	h.listRelatedCorporations(c, h.corporations.Subsidiaries)
}

// Related godoc
// @Summary      Related corporations
// @Tags         corporations
// @Produce      json
// @Param        id path string true "Corporation ID"
// @Success      200 {object} APIResponse[[]crmapp.CorporationDTO]
// @Security     BearerAuth
// @Router       /corporations/{id}/related [get]
func (h *CorporationHandler) Related(c *gin.Context) {
	h.listRelatedCorporations(c, h.corporations.Related)
}

func (h *CorporationHandler) listRelatedCorporations(c *gin.Context, fn func(ctx context.Context, tenantID, id uuid.UUID) ([]crmapp.CorporationDTO, error)) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	corps, err := fn(c.Request.Context(), p.TenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, corps)
}

// LinkRelated godoc
// @Summary      Link two corporations
// @Tags         corporations
// @Produce      json
// @Param        id path string true "Corporation ID"
// @Param        relatedId path string true "Related corporation ID"
// @Success      200 {object} APIResponse[crmapp.CorporationDTO]
// @Security     BearerAuth
// @Router       /corporations/{id}/related/{relatedId} [put]
func (h *CorporationHandler) LinkRelated(c *gin.Context) {
	h.relate(c, h.corporations.LinkRelated)
}

// UnlinkRelated godoc
// @Summary      Unlink two corporations
// @Tags         corporations
// @Produce      json
// @Param        id path string true "Corporation ID"
// @Param        relatedId path string true "Related corporation ID"
// @Success      200 {object} APIResponse[crmapp.CorporationDTO]
// @Security     BearerAuth
// @Router       /corporations/{id}/related/{relatedId} [delete]
func (h *CorporationHandler) UnlinkRelated(c *gin.Context) {
	h.relate(c, h.corporations.UnlinkRelated)
}

func (h *CorporationHandler) relate(c *gin.Context, fn func(ctx context.Context, tenantID, userID, id, relatedID uuid.UUID) (*crmapp.CorporationDTO, error)) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	relatedID, ok := h.pathID(c, "relatedId")
	if !ok {
		return
	}
	corp, err := fn(c.Request.Context(), p.TenantID, p.UserID, id, relatedID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, corp)
}

// Contacts godoc
// @Summary      Contacts linked to a corporation
// @Tags         corporations
// @Produce      json
// @Param        id path string true "Corporation ID"
// @Success      200 {object} APIResponse[[]crmapp.ContactDTO]
// @Security     BearerAuth
// @Router       /corporations/{id}/contacts [get]
func (h *CorporationHandler) Contacts(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	contacts, err := h.corporations.Contacts(c.Request.Context(), p.TenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, contacts)
}
