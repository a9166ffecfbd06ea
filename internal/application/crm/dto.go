package crm

import (
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/crm"
	"github.com/taxcrm/backend/internal/domain/shared/valueobject"
)

// AddressInput is the address part of create/update requests
type AddressInput struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// ContactDTO is the API view of a contact. The SSN is only ever returned masked.
type ContactDTO struct {
	ID                   uuid.UUID           `json:"id"`
	FirstName            string              `json:"first_name"`
	LastName             string              `json:"last_name"`
	DisplayName          string              `json:"display_name"`
	Email                string              `json:"email"`
	Phone                string              `json:"phone"`
	DateOfBirth          *string             `json:"date_of_birth,omitempty"`
	SSN                  string              `json:"ssn,omitempty"`
	Address              valueobject.Address `json:"address"`
	Status               string              `json:"status"`
	AssignedTo           *uuid.UUID          `json:"assigned_to,omitempty"`
	CorporationIDs       []uuid.UUID         `json:"corporation_ids"`
	PrimaryCorporationID *uuid.UUID          `json:"primary_corporation_id,omitempty"`
	Notes                string              `json:"notes"`
	LastActivityAt       *time.Time          `json:"last_activity_at,omitempty"`
	PendingApprovalID    *uuid.UUID          `json:"pending_approval_id,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

// ToContactDTO converts a contact
func ToContactDTO(c *crm.Contact) ContactDTO {
	dto := ContactDTO{
		ID:                   c.ID,
		FirstName:            c.FirstName,
		LastName:             c.LastName,
		DisplayName:          c.DisplayName(),
		Email:                c.Email,
		Phone:                c.Phone,
		SSN:                  c.SSN.Masked(crm.SSNLayout),
		Address:              c.Address,
		Status:               string(c.Status),
		AssignedTo:           c.AssignedTo,
		CorporationIDs:       c.CorporationIDs,
		PrimaryCorporationID: c.PrimaryCorporationID,
		Notes:                c.Notes,
		LastActivityAt:       c.LastActivityAt,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
	if dto.CorporationIDs == nil {
		dto.CorporationIDs = []uuid.UUID{}
	}
	if c.DateOfBirth != nil {
		s := c.DateOfBirth.Format("2006-01-02")
		dto.DateOfBirth = &s
	}
	return dto
}

// CorporationDTO is the API view of a corporation. The EIN is only ever returned masked.
type CorporationDTO struct {
	ID                 uuid.UUID           `json:"id"`
	Name               string              `json:"name"`
	EIN                string              `json:"ein,omitempty"`
	EntityType         string              `json:"entity_type"`
	FiscalYearEndMonth int                 `json:"fiscal_year_end_month"`
	Email              string              `json:"email"`
	Phone              string              `json:"phone"`
	Address            valueobject.Address `json:"address"`
	Status             string              `json:"status"`
	ParentID           *uuid.UUID          `json:"parent_id,omitempty"`
	RelatedIDs         []uuid.UUID         `json:"related_ids"`
	Notes              string              `json:"notes"`
	PendingApprovalID  *uuid.UUID          `json:"pending_approval_id,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// ToCorporationDTO converts a corporation
func ToCorporationDTO(c *crm.Corporation) CorporationDTO {
	dto := CorporationDTO{
		ID:                 c.ID,
		Name:               c.Name,
		EIN:                c.EIN.Masked(crm.EINLayout),
		EntityType:         string(c.EntityType),
		FiscalYearEndMonth: c.FiscalYearEndMonth,
		Email:              c.Email,
		Phone:              c.Phone,
		Address:            c.Address,
		Status:             string(c.Status),
		ParentID:           c.ParentID,
		RelatedIDs:         c.RelatedIDs,
		Notes:              c.Notes,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
	if dto.RelatedIDs == nil {
		dto.RelatedIDs = []uuid.UUID{}
	}
	return dto
}
