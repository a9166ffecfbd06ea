package billing

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	workflowapp "github.com/taxcrm/backend/internal/application/workflow"
	"github.com/taxcrm/backend/internal/domain/billing"
	"github.com/taxcrm/backend/internal/domain/crm"
	"github.com/taxcrm/backend/internal/domain/identity"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/domain/workflow"
	"github.com/taxcrm/backend/internal/infrastructure/export"
	"github.com/taxcrm/backend/internal/infrastructure/mail"
	"github.com/taxcrm/backend/internal/infrastructure/printing"
	"go.uber.org/zap"
)

// DefaultPaymentTerms is the gap between issue and due date when none is given
const DefaultPaymentTerms = 30 * 24 * time.Hour

// InvoicePrinter renders an invoice to PDF
type InvoicePrinter interface {
	PrintInvoice(ctx context.Context, doc printing.InvoiceDocument) ([]byte, error)
}

var _ InvoicePrinter = (*printing.InvoicePrinter)(nil)

// InvoiceService manages invoices and payments
type InvoiceService struct {
	invoiceRepo     billing.InvoiceRepository
	contactRepo     crm.ContactRepository
	corporationRepo crm.CorporationRepository
	tenantRepo      identity.TenantRepository
	printer         InvoicePrinter
	mailer          mail.Sender
	gate            workflowapp.Gate
	events          shared.EventPublisher
	logger          *zap.Logger
	now             func() time.Time
}

// NewInvoiceService creates a new invoice service. gate and mailer may be nil.
func NewInvoiceService(
	invoiceRepo billing.InvoiceRepository,
	contactRepo crm.ContactRepository,
	corporationRepo crm.CorporationRepository,
	tenantRepo identity.TenantRepository,
	printer InvoicePrinter,
	mailer mail.Sender,
	gate workflowapp.Gate,
	events shared.EventPublisher,
	logger *zap.Logger,
) *InvoiceService {
	return &InvoiceService{
		invoiceRepo:     invoiceRepo,
		contactRepo:     contactRepo,
		corporationRepo: corporationRepo,
		tenantRepo:      tenantRepo,
		printer:         printer,
		mailer:          mailer,
		gate:            gate,
		events:          events,
		logger:          logger,
		now:             time.Now,
	}
}

// Create adds a draft invoice numbered INV-<year>-<seq>
func (s *InvoiceService) Create(ctx context.Context, tenantID, userID uuid.UUID, input InvoiceInput) (*InvoiceDTO, error) {
	if _, err := s.billTo(ctx, tenantID, input.ContactID, input.CorporationID); err != nil {
		return nil, err
	}
	now := s.now()
	issue := now
	if input.IssueDate != nil {
		issue = *input.IssueDate
	}
	due := issue.Add(DefaultPaymentTerms)
	if input.DueDate != nil {
		due = *input.DueDate
	}
	seq, err := s.invoiceRepo.NextSequence(ctx, tenantID, issue.Year())
	if err != nil {
		return nil, fmt.Errorf("failed to allocate invoice number: %w", err)
	}
	inv, err := billing.NewInvoice(tenantID, billing.FormatInvoiceNumber(issue.Year(), seq), input.ContactID, input.CorporationID, issue, due)
	if err != nil {
		return nil, err
	}
	inv.TaxCaseID = input.TaxCaseID
	inv.SetCreatedBy(userID)
	if err := inv.ReplaceItems(toLineItems(input.Items), input.TaxRate, due, input.Notes); err != nil {
		return nil, err
	}
	return s.save(ctx, inv, userID)
}

// GetByID returns one invoice
func (s *InvoiceService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*InvoiceDTO, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	dto := ToInvoiceDTO(inv, s.now())
	return &dto, nil
}

// List returns invoices matching the filter (status, contact_id, corporation_id, tax_case_id, overdue)
func (s *InvoiceService) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]InvoiceDTO, int64, error) {
	invoices, total, err := s.invoiceRepo.FindAll(ctx, tenantID, filter.Normalize())
	if err != nil {
		return nil, 0, err
	}
	return s.toDTOs(invoices), total, nil
}

// ListForContact returns a contact's issued invoices for the portal. Drafts stay internal.
func (s *InvoiceService) ListForContact(ctx context.Context, tenantID, contactID uuid.UUID, filter shared.Filter) ([]InvoiceDTO, int64, error) {
	filter = filter.Normalize()
	filter.Filters["contact_id"] = contactID.String()
	filter.Filters["issued"] = true
	invoices, total, err := s.invoiceRepo.FindAll(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	return s.toDTOs(invoices), total, nil
}

// GetForContact returns one issued invoice of a contact
func (s *InvoiceService) GetForContact(ctx context.Context, tenantID, contactID, id uuid.UUID) (*InvoiceDTO, error) {
	inv, err := s.findForContact(ctx, tenantID, contactID, id)
	if err != nil {
		return nil, err
	}
	dto := ToInvoiceDTO(inv, s.now())
	return &dto, nil
}

// Update replaces the items, tax rate, due date and notes of a draft
func (s *InvoiceService) Update(ctx context.Context, tenantID, userID, id uuid.UUID, input InvoiceInput) (*InvoiceDTO, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	due := inv.DueDate
	if input.DueDate != nil {
		due = *input.DueDate
	}
	if err := inv.ReplaceItems(toLineItems(input.Items), input.TaxRate, due, input.Notes); err != nil {
		return nil, err
	}
	if input.TaxCaseID != nil {
		inv.TaxCaseID = input.TaxCaseID
	}
	return s.save(ctx, inv, userID)
}

// Send issues a draft. When the client has an email address the PDF is mailed to it.
func (s *InvoiceService) Send(ctx context.Context, tenantID, userID, id uuid.UUID) (*InvoiceDTO, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := inv.Send(s.now()); err != nil {
		return nil, err
	}
	doc, err := s.document(ctx, inv)
	if err != nil {
		return nil, err
	}
	if doc.BillTo.Email != "" && s.mailer != nil {
		pdf, err := s.printer.PrintInvoice(ctx, doc)
		if err != nil {
			return nil, err
		}
		if err := s.mailer.Send(ctx, mail.Message{
			To:          []string{doc.BillTo.Email},
			Subject:     fmt.Sprintf("Invoice %s from %s", inv.Number, doc.Practice.Name),
			Body:        invoiceEmailBody(doc, inv),
			Attachments: []mail.Attachment{{Filename: inv.Number + ".pdf", Data: pdf}},
		}); err != nil {
			return nil, fmt.Errorf("failed to email invoice: %w", err)
		}
	} else {
		s.logger.Info("Invoice issued without email", zap.String("number", inv.Number))
	}
	return s.save(ctx, inv, userID)
}

// RecordPayment applies a payment against the balance
func (s *InvoiceService) RecordPayment(ctx context.Context, tenantID, userID, id uuid.UUID, input PaymentInput) (*InvoiceDTO, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	paidAt := s.now()
	if input.PaidAt != nil {
		paidAt = *input.PaidAt
	}
	if _, err := inv.RecordPayment(input.Amount, billing.PaymentMethod(input.Method), input.Reference, paidAt); err != nil {
		return nil, err
	}
	return s.save(ctx, inv, userID)
}

// Void cancels an invoice without payments
func (s *InvoiceService) Void(ctx context.Context, tenantID, userID, id uuid.UUID) (*InvoiceDTO, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := inv.Void(); err != nil {
		return nil, err
	}
	return s.save(ctx, inv, userID)
}

// Delete removes a draft invoice. Issued invoices must be voided instead.
func (s *InvoiceService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	inv, err := s.invoiceRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if inv.Status != billing.InvoiceDraft {
		return shared.NewDomainError("INVOICE_NOT_DRAFT", "Only draft invoices can be deleted; void it instead")
	}
	if err := s.invoiceRepo.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	inv.AddDomainEvent(shared.NewRecordEvent(billing.AggregateType, "deleted", inv.ID, tenantID, map[string]any{"number": inv.Number}))
	s.publish(ctx, inv)
	return nil
}

// PDF renders the invoice. It returns the file name and the document bytes.
func (s *InvoiceService) PDF(ctx context.Context, tenantID, id uuid.UUID) (string, []byte, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return "", nil, err
	}
	return s.render(ctx, inv)
}

// PDFForContact renders one of the contact's issued invoices
func (s *InvoiceService) PDFForContact(ctx context.Context, tenantID, contactID, id uuid.UUID) (string, []byte, error) {
	inv, err := s.findForContact(ctx, tenantID, contactID, id)
	if err != nil {
		return "", nil, err
	}
	return s.render(ctx, inv)
}

// Export writes every invoice matching the filter as CSV
func (s *InvoiceService) Export(ctx context.Context, tenantID uuid.UUID, filter shared.Filter, w io.Writer) error {
	invoices, err := shared.CollectAll(filter, func(f shared.Filter) ([]billing.Invoice, int64, error) {
		return s.invoiceRepo.FindAll(ctx, tenantID, f)
	})
	if err != nil {
		return err
	}
	return export.WriteCSV(w, invoiceColumns(s.now()), invoices)
}

func invoiceColumns(now time.Time) []export.Column[billing.Invoice] {
	return []export.Column[billing.Invoice]{
		{Header: "Number", Value: func(inv billing.Invoice) string { return inv.Number }},
		{Header: "Status", Value: func(inv billing.Invoice) string { return string(inv.Status) }},
		{Header: "Contact", Value: func(inv billing.Invoice) string { return export.ID(inv.ContactID) }},
		{Header: "Corporation", Value: func(inv billing.Invoice) string { return export.ID(inv.CorporationID) }},
		{Header: "Issue Date", Value: func(inv billing.Invoice) string { return inv.IssueDate.Format(export.DateLayout) }},
		{Header: "Due Date", Value: func(inv billing.Invoice) string { return inv.DueDate.Format(export.DateLayout) }},
		{Header: "Subtotal", Value: func(inv billing.Invoice) string { return inv.Subtotal().StringFixed(2) }},
		{Header: "Tax", Value: func(inv billing.Invoice) string { return inv.TaxAmount().StringFixed(2) }},
		{Header: "Total", Value: func(inv billing.Invoice) string { return inv.Total().StringFixed(2) }},
		{Header: "Paid", Value: func(inv billing.Invoice) string { return inv.AmountPaid().StringFixed(2) }},
		{Header: "Balance", Value: func(inv billing.Invoice) string { return inv.Balance().StringFixed(2) }},
		{Header: "Overdue", Value: func(inv billing.Invoice) string { return export.Bool(inv.IsOverdue(now)) }},
	}
}

func (s *InvoiceService) findForContact(ctx context.Context, tenantID, contactID, id uuid.UUID) (*billing.Invoice, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if inv.ContactID == nil || *inv.ContactID != contactID || inv.Status == billing.InvoiceDraft {
		return nil, shared.ErrNotFound
	}
	return inv, nil
}

func (s *InvoiceService) render(ctx context.Context, inv *billing.Invoice) (string, []byte, error) {
	doc, err := s.document(ctx, inv)
	if err != nil {
		return "", nil, err
	}
	pdf, err := s.printer.PrintInvoice(ctx, doc)
	if err != nil {
		return "", nil, err
	}
	return inv.Number + ".pdf", pdf, nil
}

func (s *InvoiceService) document(ctx context.Context, inv *billing.Invoice) (printing.InvoiceDocument, error) {
	tenant, err := s.tenantRepo.FindByID(ctx, inv.TenantID)
	if err != nil {
		return printing.InvoiceDocument{}, err
	}
	billTo, err := s.billTo(ctx, inv.TenantID, inv.ContactID, inv.CorporationID)
	if err != nil {
		return printing.InvoiceDocument{}, err
	}
	return printing.InvoiceDocument{
		Practice: printing.InvoiceParty{Name: tenant.Name, Email: tenant.ContactEmail},
		BillTo:   billTo,
		Invoice:  inv,
	}, nil
}

// billTo loads the billed client; the contact wins when both are set
func (s *InvoiceService) billTo(ctx context.Context, tenantID uuid.UUID, contactID, corporationID *uuid.UUID) (printing.InvoiceParty, error) {
	switch {
	case contactID != nil:
		c, err := s.contactRepo.FindByID(ctx, tenantID, *contactID)
		if err != nil {
			return printing.InvoiceParty{}, err
		}
		return printing.InvoiceParty{Name: c.DisplayName(), Email: c.Email, Address: c.Address.String()}, nil
	case corporationID != nil:
		c, err := s.corporationRepo.FindByID(ctx, tenantID, *corporationID)
		if err != nil {
			return printing.InvoiceParty{}, err
		}
		return printing.InvoiceParty{Name: c.Name, Email: c.Email, Address: c.Address.String()}, nil
	}
	return printing.InvoiceParty{}, shared.NewDomainError("INVOICE_CLIENT_REQUIRED", "An invoice must reference a contact or a corporation")
}

func (s *InvoiceService) save(ctx context.Context, inv *billing.Invoice, userID uuid.UUID) (*InvoiceDTO, error) {
	if err := s.invoiceRepo.Save(ctx, inv); err != nil {
		return nil, err
	}
	s.publish(ctx, inv)
	dto := ToInvoiceDTO(inv, s.now())
	dto.PendingApprovalID = workflowapp.RunOnSave(ctx, s.gate, s.logger, workflowapp.Submission{
		TenantID:    inv.TenantID,
		Module:      workflow.ModuleInvoice,
		RecordID:    inv.ID,
		Snapshot:    inv.Snapshot(),
		RequestedBy: userID,
	})
	return &dto, nil
}

func (s *InvoiceService) publish(ctx context.Context, inv *billing.Invoice) {
	if err := shared.PublishAndClear(ctx, s.events, inv); err != nil {
		s.logger.Warn("Failed to publish invoice events", zap.Error(err))
	}
}

func (s *InvoiceService) toDTOs(invoices []billing.Invoice) []InvoiceDTO {
	now := s.now()
	out := make([]InvoiceDTO, len(invoices))
	for i := range invoices {
		out[i] = ToInvoiceDTO(&invoices[i], now)
	}
	return out
}

func invoiceEmailBody(doc printing.InvoiceDocument, inv *billing.Invoice) string {
	return fmt.Sprintf("Hello %s,\n\nPlease find attached invoice %s for %s, due %s.\n\nThank you,\n%s\n",
		doc.BillTo.Name, inv.Number, inv.Total().StringFixed(2), inv.DueDate.Format("January 2, 2006"), doc.Practice.Name)
}
