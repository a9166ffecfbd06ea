package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/taxcrm/backend/internal/domain/billing"
)

// InvoiceModel is the persistence model for the Invoice aggregate.
type InvoiceModel struct {
	TenantAggregateModel
	Number        string                `gorm:"type:varchar(30);not null"`
	ContactID     *uuid.UUID            `gorm:"type:uuid;index"`
	CorporationID *uuid.UUID            `gorm:"type:uuid;index"`
	TaxCaseID     *uuid.UUID            `gorm:"type:uuid"`
	IssueDate     time.Time             `gorm:"type:date;not null"`
	DueDate       time.Time             `gorm:"type:date;not null;index"`
	Status        billing.InvoiceStatus `gorm:"type:varchar(20);not null;default:'draft'"`
	TaxRate       decimal.Decimal       `gorm:"type:decimal(6,3);not null;default:0"`
	Notes         string                `gorm:"type:text"`
	SentAt        *time.Time
	Items         []InvoiceItemModel    `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	Payments      []InvoicePaymentModel `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice.
// Items and payments must be preloaded.
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	inv := &billing.Invoice{
		Number:        m.Number,
		ContactID:     m.ContactID,
		CorporationID: m.CorporationID,
		TaxCaseID:     m.TaxCaseID,
		IssueDate:     m.IssueDate,
		DueDate:       m.DueDate,
		Status:        m.Status,
		TaxRate:       m.TaxRate,
		Notes:         m.Notes,
		SentAt:        m.SentAt,
		Items:         make([]billing.LineItem, len(m.Items)),
		Payments:      make([]billing.Payment, len(m.Payments)),
	}
	inv.TenantAggregateRoot = m.tenantRoot()
	for i, it := range m.Items {
		inv.Items[i] = billing.LineItem{
			ID:          it.ID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		}
	}
	for i, p := range m.Payments {
		inv.Payments[i] = billing.Payment{
			ID:        p.ID,
			Amount:    p.Amount,
			Method:    p.Method,
			Reference: p.Reference,
			PaidAt:    p.PaidAt,
		}
	}
	return inv
}

// FromDomain populates the persistence model, including child rows, from a domain Invoice.
func (m *InvoiceModel) FromDomain(inv *billing.Invoice) {
	m.setTenantRoot(inv.TenantAggregateRoot)
	m.Number = inv.Number
	m.ContactID = inv.ContactID
	m.CorporationID = inv.CorporationID
	m.TaxCaseID = inv.TaxCaseID
	m.IssueDate = inv.IssueDate
	m.DueDate = inv.DueDate
	m.Status = inv.Status
	m.TaxRate = inv.TaxRate
	m.Notes = inv.Notes
	m.SentAt = inv.SentAt
	m.Items = make([]InvoiceItemModel, len(inv.Items))
	for i, it := range inv.Items {
		m.Items[i] = InvoiceItemModel{
			ID:          it.ID,
			InvoiceID:   inv.ID,
			TenantID:    inv.TenantID,
			Position:    i,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		}
	}
	m.Payments = make([]InvoicePaymentModel, len(inv.Payments))
	for i, p := range inv.Payments {
		m.Payments[i] = InvoicePaymentModel{
			ID:        p.ID,
			InvoiceID: inv.ID,
			TenantID:  inv.TenantID,
			Amount:    p.Amount,
			Method:    p.Method,
			Reference: p.Reference,
			PaidAt:    p.PaidAt,
		}
	}
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// InvoiceItemModel is one invoice line.
type InvoiceItemModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	TenantID    uuid.UUID       `gorm:"type:uuid;not null"`
	Position    int             `gorm:"not null"`
	Description string          `gorm:"type:varchar(500);not null"`
	Quantity    decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(14,2);not null"`
}

// TableName returns the table name for GORM
func (InvoiceItemModel) TableName() string {
	return "invoice_items"
}

// InvoicePaymentModel is one payment recorded against an invoice.
type InvoicePaymentModel struct {
	ID        uuid.UUID             `gorm:"type:uuid;primary_key"`
	InvoiceID uuid.UUID             `gorm:"type:uuid;not null;index"`
	TenantID  uuid.UUID             `gorm:"type:uuid;not null"`
	Amount    decimal.Decimal       `gorm:"type:decimal(14,2);not null"`
	Method    billing.PaymentMethod `gorm:"type:varchar(10);not null"`
	Reference string                `gorm:"type:varchar(100)"`
	PaidAt    time.Time             `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InvoicePaymentModel) TableName() string {
	return "invoice_payments"
}
