package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/crm"
	"github.com/taxcrm/backend/internal/domain/shared/valueobject"
	"gorm.io/gorm"
)

// ContactModel is the persistence model for the Contact aggregate.
// Corporation membership lives in contact_corporations.
type ContactModel struct {
	TenantAggregateModel
	FirstName            string            `gorm:"type:varchar(100)"`
	LastName             string            `gorm:"type:varchar(100)"`
	Email                string            `gorm:"type:varchar(200);index"`
	Phone                string            `gorm:"type:varchar(50)"`
	DateOfBirth          *time.Time        `gorm:"type:date"`
	SSNCiphertext        string            `gorm:"column:ssn_ciphertext;type:text"`
	SSNLast4             string            `gorm:"column:ssn_last4;type:varchar(4)"`
	AddressJSON          string            `gorm:"column:address;type:jsonb;not null;default:'{}'"`
	Status               crm.ContactStatus `gorm:"type:varchar(20);not null;default:'lead'"`
	AssignedTo           *uuid.UUID        `gorm:"type:uuid;index"`
	PrimaryCorporationID *uuid.UUID        `gorm:"type:uuid"`
	Notes                string            `gorm:"type:text"`
	LastActivityAt       *time.Time
	DeletedAt            gorm.DeletedAt `gorm:"index"`
}

// TableName returns the table name for GORM
func (ContactModel) TableName() string {
	return "contacts"
}

// ToDomain converts the persistence model to a domain Contact.
func (m *ContactModel) ToDomain() *crm.Contact {
	c := &crm.Contact{
		FirstName:            m.FirstName,
		LastName:             m.LastName,
		Email:                m.Email,
		Phone:                m.Phone,
		DateOfBirth:          m.DateOfBirth,
		SSN:                  crm.SensitiveValue{Ciphertext: m.SSNCiphertext, Last4: m.SSNLast4},
		Address:              decodeAddress(m.AddressJSON),
		Status:               m.Status,
		AssignedTo:           m.AssignedTo,
		CorporationIDs:       make([]uuid.UUID, 0),
		PrimaryCorporationID: m.PrimaryCorporationID,
		Notes:                m.Notes,
		LastActivityAt:       m.LastActivityAt,
	}
	c.TenantAggregateRoot = m.tenantRoot()
	return c
}

// FromDomain populates the persistence model from a domain Contact.
func (m *ContactModel) FromDomain(c *crm.Contact) {
	m.setTenantRoot(c.TenantAggregateRoot)
	m.FirstName = c.FirstName
	m.LastName = c.LastName
	m.Email = c.Email
	m.Phone = c.Phone
	m.DateOfBirth = c.DateOfBirth
	m.SSNCiphertext = c.SSN.Ciphertext
	m.SSNLast4 = c.SSN.Last4
	m.AddressJSON = encodeJSON(c.Address, "{}")
	m.Status = c.Status
	m.AssignedTo = c.AssignedTo
	m.PrimaryCorporationID = c.PrimaryCorporationID
	m.Notes = c.Notes
	m.LastActivityAt = c.LastActivityAt
}

// ContactModelFromDomain creates a new persistence model from a domain Contact.
func ContactModelFromDomain(c *crm.Contact) *ContactModel {
	m := &ContactModel{}
	m.FromDomain(c)
	return m
}

// ContactCorporationModel links a contact to a corporation.
type ContactCorporationModel struct {
	ContactID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	CorporationID uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	TenantID      uuid.UUID `gorm:"type:uuid;not null;index"`
	CreatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ContactCorporationModel) TableName() string {
	return "contact_corporations"
}

// CorporationModel is the persistence model for the Corporation aggregate.
// Related corporations live in corporation_relations, one row per direction.
type CorporationModel struct {
	TenantAggregateModel
	Name               string                `gorm:"type:varchar(200);not null"`
	EINCiphertext      string                `gorm:"column:ein_ciphertext;type:text"`
	EINLast4           string                `gorm:"column:ein_last4;type:varchar(4)"`
	EntityType         crm.EntityType        `gorm:"type:varchar(30);not null"`
	FiscalYearEndMonth int                   `gorm:"type:smallint;not null;default:12"`
	Email              string                `gorm:"type:varchar(200)"`
	Phone              string                `gorm:"type:varchar(50)"`
	AddressJSON        string                `gorm:"column:address;type:jsonb;not null;default:'{}'"`
	Status             crm.CorporationStatus `gorm:"type:varchar(20);not null;default:'active'"`
	ParentID           *uuid.UUID            `gorm:"type:uuid;index"`
	Notes              string                `gorm:"type:text"`
	DeletedAt          gorm.DeletedAt        `gorm:"index"`
}

// TableName returns the table name for GORM
func (CorporationModel) TableName() string {
	return "corporations"
}

// ToDomain converts the persistence model to a domain Corporation.
func (m *CorporationModel) ToDomain() *crm.Corporation {
	c := &crm.Corporation{
		Name:               m.Name,
		EIN:                crm.SensitiveValue{Ciphertext: m.EINCiphertext, Last4: m.EINLast4},
		EntityType:         m.EntityType,
		FiscalYearEndMonth: m.FiscalYearEndMonth,
		Email:              m.Email,
		Phone:              m.Phone,
		Address:            decodeAddress(m.AddressJSON),
		Status:             m.Status,
		ParentID:           m.ParentID,
		RelatedIDs:         make([]uuid.UUID, 0),
		Notes:              m.Notes,
	}
	c.TenantAggregateRoot = m.tenantRoot()
	return c
}

// FromDomain populates the persistence model from a domain Corporation.
func (m *CorporationModel) FromDomain(c *crm.Corporation) {
	m.setTenantRoot(c.TenantAggregateRoot)
	m.Name = c.Name
	m.EINCiphertext = c.EIN.Ciphertext
	m.EINLast4 = c.EIN.Last4
	m.EntityType = c.EntityType
	m.FiscalYearEndMonth = c.FiscalYearEndMonth
	m.Email = c.Email
	m.Phone = c.Phone
	m.AddressJSON = encodeJSON(c.Address, "{}")
	m.Status = c.Status
	m.ParentID = c.ParentID
	m.Notes = c.Notes
}

// CorporationModelFromDomain creates a new persistence model from a domain Corporation.
func CorporationModelFromDomain(c *crm.Corporation) *CorporationModel {
	m := &CorporationModel{}
	m.FromDomain(c)
	return m
}

// CorporationRelationModel stores one direction of a symmetric corporation link.
type CorporationRelationModel struct {
	CorporationID uuid.UUID `gorm:"type:uuid;primaryKey"`
	RelatedID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID `gorm:"type:uuid;not null;index"`
	CreatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CorporationRelationModel) TableName() string {
	return "corporation_relations"
}

func decodeAddress(raw string) valueobject.Address {
	var a valueobject.Address
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &a)
	}
	return a
}
