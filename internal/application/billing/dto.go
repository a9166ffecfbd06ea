package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/taxcrm/backend/internal/domain/billing"
)

// LineItemDTO is one invoice row
type LineItemDTO struct {
	ID          uuid.UUID       `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

// PaymentDTO is one recorded payment
type PaymentDTO struct {
	ID        uuid.UUID       `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Reference string          `json:"reference"`
	PaidAt    time.Time       `json:"paid_at"`
}

// InvoiceDTO is the API view of an invoice
type InvoiceDTO struct {
	ID                uuid.UUID       `json:"id"`
	Number            string          `json:"number"`
	ContactID         *uuid.UUID      `json:"contact_id,omitempty"`
	CorporationID     *uuid.UUID      `json:"corporation_id,omitempty"`
	TaxCaseID         *uuid.UUID      `json:"tax_case_id,omitempty"`
	IssueDate         time.Time       `json:"issue_date"`
	DueDate           time.Time       `json:"due_date"`
	Status            string          `json:"status"`
	Overdue           bool            `json:"overdue"`
	TaxRate           decimal.Decimal `json:"tax_rate"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	TaxAmount         decimal.Decimal `json:"tax_amount"`
	Total             decimal.Decimal `json:"total"`
	AmountPaid        decimal.Decimal `json:"amount_paid"`
	Balance           decimal.Decimal `json:"balance"`
	Notes             string          `json:"notes"`
	Items             []LineItemDTO   `json:"items"`
	Payments          []PaymentDTO    `json:"payments"`
	SentAt            *time.Time      `json:"sent_at,omitempty"`
	PendingApprovalID *uuid.UUID      `json:"pending_approval_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ToInvoiceDTO converts an invoice
func ToInvoiceDTO(inv *billing.Invoice, now time.Time) InvoiceDTO {
	dto := InvoiceDTO{
		ID:            inv.ID,
		Number:        inv.Number,
		ContactID:     inv.ContactID,
		CorporationID: inv.CorporationID,
		TaxCaseID:     inv.TaxCaseID,
		IssueDate:     inv.IssueDate,
		DueDate:       inv.DueDate,
		Status:        string(inv.Status),
		Overdue:       inv.IsOverdue(now),
		TaxRate:       inv.TaxRate,
		Subtotal:      inv.Subtotal(),
		TaxAmount:     inv.TaxAmount(),
		Total:         inv.Total(),
		AmountPaid:    inv.AmountPaid(),
		Balance:       inv.Balance(),
		Notes:         inv.Notes,
		Items:         make([]LineItemDTO, len(inv.Items)),
		Payments:      make([]PaymentDTO, len(inv.Payments)),
		SentAt:        inv.SentAt,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
	}
	for i, it := range inv.Items {
		dto.Items[i] = LineItemDTO{
			ID:          it.ID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Amount:      it.Amount(),
		}
	}
	for i, p := range inv.Payments {
		dto.Payments[i] = PaymentDTO{
			ID:        p.ID,
			Amount:    p.Amount,
			Method:    string(p.Method),
			Reference: p.Reference,
			PaidAt:    p.PaidAt,
		}
	}
	return dto
}

// LineItemInput is one row of a create/update request
type LineItemInput struct {
	Description string          `json:"description" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// InvoiceInput contains the editable invoice fields
type InvoiceInput struct {
	ContactID     *uuid.UUID
	CorporationID *uuid.UUID
	TaxCaseID     *uuid.UUID
	IssueDate     *time.Time
	DueDate       *time.Time
	TaxRate       decimal.Decimal
	Notes         string
	Items         []LineItemInput
}

// PaymentInput records money received
type PaymentInput struct {
	Amount    decimal.Decimal
	Method    string
	Reference string
	PaidAt    *time.Time
}

func toLineItems(in []LineItemInput) []billing.LineItem {
	out := make([]billing.LineItem, len(in))
	for i, it := range in {
		out[i] = billing.LineItem{Description: it.Description, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	return out
}
