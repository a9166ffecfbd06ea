package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/taxcrm/backend/internal/domain/taxcase"
	"gorm.io/gorm"
)

// TaxCaseModel is the persistence model for the TaxCase aggregate.
type TaxCaseModel struct {
	TenantAggregateModel
	CaseNumber    string           `gorm:"type:varchar(30);not null"`
	ContactID     *uuid.UUID       `gorm:"type:uuid;index"`
	CorporationID *uuid.UUID       `gorm:"type:uuid;index"`
	TaxYear       int              `gorm:"not null"`
	CaseType      taxcase.CaseType `gorm:"type:varchar(30);not null"`
	Status        taxcase.Status   `gorm:"type:varchar(30);not null;default:'new'"`
	Priority      taxcase.Priority `gorm:"type:varchar(20);not null;default:'normal'"`
	DueDate       *time.Time       `gorm:"type:date"`
	PreparerID    *uuid.UUID       `gorm:"type:uuid"`
	ReviewerID    *uuid.UUID       `gorm:"type:uuid"`
	Fee           decimal.Decimal  `gorm:"type:decimal(14,2);not null;default:0"`
	Notes         string           `gorm:"type:text"`
	FiledAt       *time.Time
	ClosedAt      *time.Time
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

// TableName returns the table name for GORM
func (TaxCaseModel) TableName() string {
	return "tax_cases"
}

// ToDomain converts the persistence model to a domain TaxCase.
func (m *TaxCaseModel) ToDomain() *taxcase.TaxCase {
	tc := &taxcase.TaxCase{
		CaseNumber:    m.CaseNumber,
		ContactID:     m.ContactID,
		CorporationID: m.CorporationID,
		TaxYear:       m.TaxYear,
		CaseType:      m.CaseType,
		Status:        m.Status,
		Priority:      m.Priority,
		DueDate:       m.DueDate,
		PreparerID:    m.PreparerID,
		ReviewerID:    m.ReviewerID,
		Fee:           m.Fee,
		Notes:         m.Notes,
		FiledAt:       m.FiledAt,
		ClosedAt:      m.ClosedAt,
	}
	tc.TenantAggregateRoot = m.tenantRoot()
	return tc
}

// FromDomain populates the persistence model from a domain TaxCase.
func (m *TaxCaseModel) FromDomain(tc *taxcase.TaxCase) {
	m.setTenantRoot(tc.TenantAggregateRoot)
	m.CaseNumber = tc.CaseNumber
	m.ContactID = tc.ContactID
	m.CorporationID = tc.CorporationID
	m.TaxYear = tc.TaxYear
	m.CaseType = tc.CaseType
	m.Status = tc.Status
	m.Priority = tc.Priority
	m.DueDate = tc.DueDate
	m.PreparerID = tc.PreparerID
	m.ReviewerID = tc.ReviewerID
	m.Fee = tc.Fee
	m.Notes = tc.Notes
	m.FiledAt = tc.FiledAt
	m.ClosedAt = tc.ClosedAt
}

// TaxCaseModelFromDomain creates a new persistence model from a domain TaxCase.
func TaxCaseModelFromDomain(tc *taxcase.TaxCase) *TaxCaseModel {
	m := &TaxCaseModel{}
	m.FromDomain(tc)
	return m
}
