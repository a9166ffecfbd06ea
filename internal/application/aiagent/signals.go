package aiagent

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/aiagent"
	"github.com/taxcrm/backend/internal/domain/billing"
	"github.com/taxcrm/backend/internal/domain/crm"
	"github.com/taxcrm/backend/internal/domain/scheduling"
	"github.com/taxcrm/backend/internal/domain/taxcase"
)

const (
	// UpcomingCaseWindow is how far ahead open cases are flagged
	UpcomingCaseWindow = 14 * 24 * time.Hour
	// InactivityWindow is how long a contact can go without activity before a check-in
	InactivityWindow = 90 * 24 * time.Hour

	signalLimit = 25
)

// SignalCollector gathers the CRM state an agent cycle reasons about
type SignalCollector struct {
	taskRepo    scheduling.TaskRepository
	caseRepo    taxcase.Repository
	invoiceRepo billing.InvoiceRepository
	contactRepo crm.ContactRepository
}

// NewSignalCollector creates a collector
func NewSignalCollector(
	taskRepo scheduling.TaskRepository,
	caseRepo taxcase.Repository,
	invoiceRepo billing.InvoiceRepository,
	contactRepo crm.ContactRepository,
) *SignalCollector {
	return &SignalCollector{taskRepo: taskRepo, caseRepo: caseRepo, invoiceRepo: invoiceRepo, contactRepo: contactRepo}
}

// Collect reads overdue tasks, cases due soon, overdue invoices and quiet contacts
func (c *SignalCollector) Collect(ctx context.Context, tenantID uuid.UUID, now time.Time) (aiagent.Signals, error) {
	var s aiagent.Signals

	tasks, err := c.taskRepo.FindOverdue(ctx, tenantID, now, signalLimit)
	if err != nil {
		return s, err
	}
	for _, t := range tasks {
		s.OverdueTasks = append(s.OverdueTasks, aiagent.Signal{
			ID: t.ID, Label: t.Title, Due: t.DueDate, AssigneeID: t.AssigneeID, ContactID: t.ContactID,
		})
	}

	cases, err := c.caseRepo.FindDueBetween(ctx, tenantID, now, now.Add(UpcomingCaseWindow))
	if err != nil {
		return s, err
	}
	for i, tc := range cases {
		if i == signalLimit {
			break
		}
		s.UpcomingCases = append(s.UpcomingCases, aiagent.Signal{
			ID: tc.ID, Label: tc.CaseNumber, Due: tc.DueDate, AssigneeID: tc.PreparerID, ContactID: tc.ContactID,
		})
	}

	invoices, err := c.invoiceRepo.FindOverdue(ctx, tenantID, now, signalLimit)
	if err != nil {
		return s, err
	}
	for _, inv := range invoices {
		due := inv.DueDate
		s.OverdueInvoices = append(s.OverdueInvoices, aiagent.Signal{
			ID: inv.ID, Label: inv.Number, Due: &due, ContactID: inv.ContactID,
		})
	}

	contacts, err := c.contactRepo.FindInactiveSince(ctx, tenantID, now.Add(-InactivityWindow), signalLimit)
	if err != nil {
		return s, err
	}
	for _, ct := range contacts {
		s.InactiveContacts = append(s.InactiveContacts, aiagent.Signal{
			ID: ct.ID, Label: ct.DisplayName(), AssigneeID: ct.AssignedTo,
		})
	}
	return s, nil
}
