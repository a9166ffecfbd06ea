package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/taxcrm/backend/internal/domain/shared"
)

// InvoiceStatus is the payment state of an invoice
type InvoiceStatus string

const (
	InvoiceDraft         InvoiceStatus = "draft"
	InvoiceSent          InvoiceStatus = "sent"
	InvoicePartiallyPaid InvoiceStatus = "partially_paid"
	InvoicePaid          InvoiceStatus = "paid"
	InvoiceVoid          InvoiceStatus = "void"
)

// PaymentMethod is how a client paid
type PaymentMethod string

const (
	MethodCash  PaymentMethod = "cash"
	MethodCheck PaymentMethod = "check"
	MethodCard  PaymentMethod = "card"
	MethodACH   PaymentMethod = "ach"
	MethodOther PaymentMethod = "other"
)

const AggregateType = "invoice"

var hundred = decimal.NewFromInt(100)

// LineItem is one billable row
type LineItem struct {
	ID          uuid.UUID
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// Amount returns quantity x unit price rounded to cents
func (l LineItem) Amount() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice).Round(2)
}

// Payment is money received against an invoice
type Payment struct {
	ID        uuid.UUID
	Amount    decimal.Decimal
	Method    PaymentMethod
	Reference string
	PaidAt    time.Time
}

// Invoice bills a client for professional services
type Invoice struct {
	shared.TenantAggregateRoot
	Number        string
	ContactID     *uuid.UUID
	CorporationID *uuid.UUID
	TaxCaseID     *uuid.UUID
	IssueDate     time.Time
	DueDate       time.Time
	Status        InvoiceStatus
	TaxRate       decimal.Decimal
	Notes         string
	Items         []LineItem
	Payments      []Payment
	SentAt        *time.Time
}

// FormatInvoiceNumber renders INV-<year>-<seq>
func FormatInvoiceNumber(year int, seq int64) string {
	return fmt.Sprintf("INV-%d-%04d", year, seq)
}

// NewInvoice creates a draft invoice
func NewInvoice(tenantID uuid.UUID, number string, contactID, corporationID *uuid.UUID, issue, due time.Time) (*Invoice, error) {
	if contactID == nil && corporationID == nil {
		return nil, shared.NewDomainError("INVOICE_CLIENT_REQUIRED", "An invoice must reference a contact or a corporation")
	}
	if due.Before(issue) {
		return nil, shared.NewDomainError("INVALID_DUE_DATE", "Due date cannot be before the issue date")
	}
	inv := &Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Number:              number,
		ContactID:           contactID,
		CorporationID:       corporationID,
		IssueDate:           issue,
		DueDate:             due,
		Status:              InvoiceDraft,
		TaxRate:             decimal.Zero,
		Items:               make([]LineItem, 0),
		Payments:            make([]Payment, 0),
	}
	inv.AddDomainEvent(shared.NewRecordEvent(AggregateType, "created", inv.ID, tenantID, map[string]any{"number": number}))
	return inv, nil
}

// ReplaceItems sets all line items and the tax rate. Only drafts can be edited.
func (inv *Invoice) ReplaceItems(items []LineItem, taxRate decimal.Decimal, due time.Time, notes string) error {
	if inv.Status != InvoiceDraft {
		return shared.NewDomainError("INVOICE_NOT_DRAFT", "Only draft invoices can be edited")
	}
	if taxRate.IsNegative() || taxRate.GreaterThan(hundred) {
		return shared.NewDomainError("INVALID_TAX_RATE", "Tax rate must be between 0 and 100")
	}
	if due.Before(inv.IssueDate) {
		return shared.NewDomainError("INVALID_DUE_DATE", "Due date cannot be before the issue date")
	}
	out := make([]LineItem, 0, len(items))
	for i, it := range items {
		it.Description = strings.TrimSpace(it.Description)
		if it.Description == "" {
			return shared.NewDomainError("INVALID_LINE_ITEM", fmt.Sprintf("Line %d needs a description", i+1))
		}
		if !it.Quantity.IsPositive() {
			return shared.NewDomainError("INVALID_LINE_ITEM", fmt.Sprintf("Line %d quantity must be positive", i+1))
		}
		if it.UnitPrice.IsNegative() {
			return shared.NewDomainError("INVALID_LINE_ITEM", fmt.Sprintf("Line %d unit price cannot be negative", i+1))
		}
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		out = append(out, it)
	}
	inv.Items = out
	inv.TaxRate = taxRate
	inv.DueDate = due
	inv.Notes = notes
	inv.IncrementVersion()
	inv.AddDomainEvent(shared.NewRecordEvent(AggregateType, "updated", inv.ID, inv.TenantID, map[string]any{"total": inv.Total().StringFixed(2)}))
	return nil
}

// Subtotal is the sum of line amounts
func (inv *Invoice) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range inv.Items {
		sum = sum.Add(it.Amount())
	}
	return sum
}

// TaxAmount is subtotal x rate / 100, rounded to cents
func (inv *Invoice) TaxAmount() decimal.Decimal {
	return inv.Subtotal().Mul(inv.TaxRate).Div(hundred).Round(2)
}

// Total is subtotal plus tax
func (inv *Invoice) Total() decimal.Decimal {
	return inv.Subtotal().Add(inv.TaxAmount())
}

// AmountPaid sums recorded payments
func (inv *Invoice) AmountPaid() decimal.Decimal {
	sum := decimal.Zero
	for _, p := range inv.Payments {
		sum = sum.Add(p.Amount)
	}
	return sum
}

// Balance is what remains to be paid
func (inv *Invoice) Balance() decimal.Decimal {
	return inv.Total().Sub(inv.AmountPaid())
}

// Send issues the invoice to the client
func (inv *Invoice) Send(now time.Time) error {
	if inv.Status != InvoiceDraft {
		return shared.NewDomainError("INVOICE_NOT_DRAFT", "Only draft invoices can be sent")
	}
	if len(inv.Items) == 0 || !inv.Total().IsPositive() {
		return shared.NewDomainError("INVOICE_EMPTY", "Invoice has no billable amount")
	}
	inv.Status = InvoiceSent
	inv.SentAt = &now
	inv.IncrementVersion()
	inv.AddDomainEvent(shared.NewRecordEvent(AggregateType, "status_changed", inv.ID, inv.TenantID, map[string]any{"status": string(InvoiceSent)}))
	return nil
}

// RecordPayment applies a payment. Payments cannot exceed the balance.
func (inv *Invoice) RecordPayment(amount decimal.Decimal, method PaymentMethod, reference string, paidAt time.Time) (*Payment, error) {
	if inv.Status != InvoiceSent && inv.Status != InvoicePartiallyPaid {
		return nil, shared.NewDomainError("INVOICE_NOT_PAYABLE", "Payments can only be recorded on sent invoices")
	}
	switch method {
	case MethodCash, MethodCheck, MethodCard, MethodACH, MethodOther:
	default:
		return nil, shared.NewDomainError("INVALID_PAYMENT_METHOD", "Unknown payment method: "+string(method))
	}
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_PAYMENT_AMOUNT", "Payment amount must be positive")
	}
	if amount.GreaterThan(inv.Balance()) {
		return nil, shared.NewDomainError("OVERPAYMENT", fmt.Sprintf("Payment %s exceeds balance %s", amount.StringFixed(2), inv.Balance().StringFixed(2)))
	}
	p := Payment{ID: uuid.New(), Amount: amount, Method: method, Reference: strings.TrimSpace(reference), PaidAt: paidAt}
	inv.Payments = append(inv.Payments, p)
	if inv.Balance().IsZero() {
		inv.Status = InvoicePaid
	} else {
		inv.Status = InvoicePartiallyPaid
	}
	inv.IncrementVersion()
	inv.AddDomainEvent(shared.NewRecordEvent(AggregateType, "payment_recorded", inv.ID, inv.TenantID, map[string]any{
		"amount": amount.StringFixed(2), "method": string(method), "status": string(inv.Status),
	}))
	return &p, nil
}

// Void cancels an unpaid invoice
func (inv *Invoice) Void() error {
	if inv.Status != InvoiceDraft && inv.Status != InvoiceSent {
		return shared.NewDomainError("INVOICE_NOT_VOIDABLE", "Only draft or sent invoices without payments can be voided")
	}
	inv.Status = InvoiceVoid
	inv.IncrementVersion()
	inv.AddDomainEvent(shared.NewRecordEvent(AggregateType, "status_changed", inv.ID, inv.TenantID, map[string]any{"status": string(InvoiceVoid)}))
	return nil
}

// IsOverdue reports whether an unpaid, issued invoice is past due
func (inv *Invoice) IsOverdue(now time.Time) bool {
	if inv.Status != InvoiceSent && inv.Status != InvoicePartiallyPaid {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return inv.DueDate.Before(today)
}

// Snapshot flattens the invoice for rule evaluation
func (inv *Invoice) Snapshot() map[string]any {
	snap := map[string]any{
		"id":       inv.ID.String(),
		"number":   inv.Number,
		"status":   string(inv.Status),
		"subtotal": inv.Subtotal().StringFixed(2),
		"total":    inv.Total().StringFixed(2),
		"balance":  inv.Balance().StringFixed(2),
		"tax_rate": inv.TaxRate.String(),
		"due_date": inv.DueDate.Format("2006-01-02"),
		"items":    len(inv.Items),
	}
	if inv.ContactID != nil {
		snap["contact_id"] = inv.ContactID.String()
	}
	if inv.CorporationID != nil {
		snap["corporation_id"] = inv.CorporationID.String()
	}
	return snap
}

// ApplyField sets a single field by name. Used by workflow update_field actions.
func (inv *Invoice) ApplyField(field, value string) error {
	switch field {
	case "notes":
		inv.Notes = value
	case "status":
		switch InvoiceStatus(value) {
		case InvoiceSent:
			return inv.Send(time.Now())
		case InvoiceVoid:
			return inv.Void()
		}
		return shared.NewDomainError("UNSUPPORTED_FIELD", "Invoice status can only be set to sent or void")
	default:
		return shared.NewDomainError("UNSUPPORTED_FIELD", "Field cannot be updated by workflow: "+field)
	}
	inv.IncrementVersion()
	return nil
}
