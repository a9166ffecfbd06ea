package taxcase

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	workflowapp "github.com/taxcrm/backend/internal/application/workflow"
	"github.com/taxcrm/backend/internal/domain/crm"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/domain/taxcase"
	"github.com/taxcrm/backend/internal/domain/workflow"
	"github.com/taxcrm/backend/internal/infrastructure/export"
	"go.uber.org/zap"
)

// Service manages tax cases and their submission for approval
type Service struct {
	caseRepo        taxcase.Repository
	contactRepo     crm.ContactRepository
	corporationRepo crm.CorporationRepository
	gate            workflowapp.Gate
	events          shared.EventPublisher
	logger          *zap.Logger
	now             func() time.Time
}

// NewService creates a new tax case service. gate may be nil, in which case
// submitted cases are approved directly.
func NewService(
	caseRepo taxcase.Repository,
	contactRepo crm.ContactRepository,
	corporationRepo crm.CorporationRepository,
	gate workflowapp.Gate,
	events shared.EventPublisher,
	logger *zap.Logger,
) *Service {
	return &Service{
		caseRepo:        caseRepo,
		contactRepo:     contactRepo,
		corporationRepo: corporationRepo,
		gate:            gate,
		events:          events,
		logger:          logger,
		now:             time.Now,
	}
}

// Create opens a case with the next TC-<year>-<seq> number
func (s *Service) Create(ctx context.Context, tenantID, userID uuid.UUID, input CaseInput) (*CaseDTO, error) {
	if err := s.checkClient(ctx, tenantID, input.ContactID, input.CorporationID); err != nil {
		return nil, err
	}
	year := s.now().Year()
	seq, err := s.caseRepo.NextSequence(ctx, tenantID, year)
	if err != nil {
		return nil, err
	}
	tc, err := taxcase.NewTaxCase(tenantID, taxcase.FormatCaseNumber(year, seq), input.ContactID, input.CorporationID, input.TaxYear, taxcase.CaseType(input.CaseType))
	if err != nil {
		return nil, err
	}
	tc.SetCreatedBy(userID)
	if err := s.apply(tc, input); err != nil {
		return nil, err
	}
	return s.save(ctx, tc, userID)
}

// GetByID returns one case
func (s *Service) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*CaseDTO, error) {
	tc, err := s.caseRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	dto := ToCaseDTO(tc, s.now())
	return &dto, nil
}

// List returns cases matching the filter
// (status, tax_year, case_type, preparer_id, contact_id, corporation_id)
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]CaseDTO, int64, error) {
	cases, total, err := s.caseRepo.FindAll(ctx, tenantID, filter.Normalize())
	if err != nil {
		return nil, 0, err
	}
	now := s.now()
	out := make([]CaseDTO, len(cases))
	for i := range cases {
		out[i] = ToCaseDTO(&cases[i], now)
	}
	return out, total, nil
}

// Update replaces the planning fields and assignment of a case
func (s *Service) Update(ctx context.Context, tenantID, userID, id uuid.UUID, input CaseInput) (*CaseDTO, error) {
	tc, err := s.caseRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if input.TaxYear == 0 {
		input.TaxYear = tc.TaxYear
	}
	if input.CaseType == "" {
		input.CaseType = string(tc.CaseType)
	}
	if err := s.apply(tc, input); err != nil {
		return nil, err
	}
	return s.save(ctx, tc, userID)
}

// ChangeStatus performs a manual status transition
func (s *Service) ChangeStatus(ctx context.Context, tenantID, userID, id uuid.UUID, status string) (*CaseDTO, error) {
	tc, err := s.caseRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := tc.ChangeStatus(taxcase.Status(status)); err != nil {
		return nil, err
	}
	return s.save(ctx, tc, userID)
}

// Submit sends a case for approval. When a via_process definition applies the
// case waits in pending_approval; otherwise it is approved straight away.
func (s *Service) Submit(ctx context.Context, tenantID, userID, id uuid.UUID) (*CaseDTO, error) {
	tc, err := s.caseRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !tc.CanSubmit() {
		return nil, shared.NewDomainError("INVALID_TRANSITION", "Only cases in progress or in review can be submitted")
	}

	var approval *workflow.Approval
	if s.gate != nil {
		approval, err = s.gate.Run(ctx, workflowapp.Submission{
			TenantID:    tenantID,
			Module:      workflow.ModuleTaxCase,
			Trigger:     workflow.TriggerViaProcess,
			RecordID:    tc.ID,
			Snapshot:    tc.Snapshot(),
			RequestedBy: userID,
		})
		if err != nil {
			return nil, err
		}
	}

	if approval != nil {
		if err := tc.AwaitApproval(); err != nil {
			return nil, err
		}
	} else if err := tc.Approve(); err != nil {
		return nil, err
	}
	if err := s.caseRepo.Save(ctx, tc); err != nil {
		return nil, err
	}
	s.publish(ctx, tc)

	s.logger.Info("Tax case submitted",
		zap.String("case_number", tc.CaseNumber),
		zap.String("status", string(tc.Status)),
		zap.Bool("approval_required", approval != nil),
	)
	dto := ToCaseDTO(tc, s.now())
	if approval != nil {
		dto.PendingApprovalID = &approval.ID
	}
	return &dto, nil
}

// Delete soft-deletes a case
func (s *Service) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tc, err := s.caseRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if tc.Status == taxcase.StatusPendingApproval {
		return shared.NewDomainError("CASE_PENDING_APPROVAL", "Cancel the approval request before deleting this case")
	}
	if err := s.caseRepo.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	tc.AddDomainEvent(shared.NewRecordEvent(taxcase.AggregateType, "deleted", tc.ID, tenantID, map[string]any{"case_number": tc.CaseNumber}))
	s.publish(ctx, tc)
	return nil
}

// Export writes every case matching the filter as CSV
func (s *Service) Export(ctx context.Context, tenantID uuid.UUID, filter shared.Filter, w io.Writer) error {
	cases, err := shared.CollectAll(filter, func(f shared.Filter) ([]taxcase.TaxCase, int64, error) {
		return s.caseRepo.FindAll(ctx, tenantID, f)
	})
	if err != nil {
		return err
	}
	return export.WriteCSV(w, caseColumns(s.now()), cases)
}

func caseColumns(now time.Time) []export.Column[taxcase.TaxCase] {
	return []export.Column[taxcase.TaxCase]{
		{Header: "Case Number", Value: func(tc taxcase.TaxCase) string { return tc.CaseNumber }},
		{Header: "Tax Year", Value: func(tc taxcase.TaxCase) string { return export.Int(tc.TaxYear) }},
		{Header: "Type", Value: func(tc taxcase.TaxCase) string { return string(tc.CaseType) }},
		{Header: "Status", Value: func(tc taxcase.TaxCase) string { return string(tc.Status) }},
		{Header: "Priority", Value: func(tc taxcase.TaxCase) string { return string(tc.Priority) }},
		{Header: "Contact", Value: func(tc taxcase.TaxCase) string { return export.ID(tc.ContactID) }},
		{Header: "Corporation", Value: func(tc taxcase.TaxCase) string { return export.ID(tc.CorporationID) }},
		{Header: "Preparer", Value: func(tc taxcase.TaxCase) string { return export.ID(tc.PreparerID) }},
		{Header: "Due Date", Value: func(tc taxcase.TaxCase) string { return export.Date(tc.DueDate) }},
		{Header: "Fee", Value: func(tc taxcase.TaxCase) string { return tc.Fee.StringFixed(2) }},
		{Header: "Overdue", Value: func(tc taxcase.TaxCase) string { return export.Bool(tc.IsOverdue(now)) }},
	}
}

func (s *Service) apply(tc *taxcase.TaxCase, input CaseInput) error {
	priority := taxcase.Priority(input.Priority)
	if priority == "" {
		priority = tc.Priority
	}
	if err := tc.Update(input.TaxYear, taxcase.CaseType(input.CaseType), priority, input.DueDate, input.Fee, input.Notes); err != nil {
		return err
	}
	return tc.Assign(input.PreparerID, input.ReviewerID)
}

func (s *Service) checkClient(ctx context.Context, tenantID uuid.UUID, contactID, corporationID *uuid.UUID) error {
	if contactID != nil {
		if _, err := s.contactRepo.FindByID(ctx, tenantID, *contactID); err != nil {
			return err
		}
	}
	if corporationID != nil {
		if _, err := s.corporationRepo.FindByID(ctx, tenantID, *corporationID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) save(ctx context.Context, tc *taxcase.TaxCase, userID uuid.UUID) (*CaseDTO, error) {
	if err := s.caseRepo.Save(ctx, tc); err != nil {
		return nil, err
	}
	s.publish(ctx, tc)
	dto := ToCaseDTO(tc, s.now())
	dto.PendingApprovalID = workflowapp.RunOnSave(ctx, s.gate, s.logger, workflowapp.Submission{
		TenantID:    tc.TenantID,
		Module:      workflow.ModuleTaxCase,
		RecordID:    tc.ID,
		Snapshot:    tc.Snapshot(),
		RequestedBy: userID,
	})
	return &dto, nil
}

func (s *Service) publish(ctx context.Context, tc *taxcase.TaxCase) {
	if err := shared.PublishAndClear(ctx, s.events, tc); err != nil {
		s.logger.Warn("Failed to publish tax case events", zap.Error(err))
	}
}
