package crm

import (
	"context"
	"io"
	"strings"

	"github.com/google/uuid"
	workflowapp "github.com/taxcrm/backend/internal/application/workflow"
	"github.com/taxcrm/backend/internal/domain/crm"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/domain/workflow"
	"github.com/taxcrm/backend/internal/infrastructure/export"
	"go.uber.org/zap"
)

const (
	einDigits = 9
	// maxOwnershipDepth stops the ancestor walk on corrupted data
	maxOwnershipDepth = 64
)

// CorporationService manages corporations, their ownership tree and related links
type CorporationService struct {
	corporationRepo crm.CorporationRepository
	contactRepo     crm.ContactRepository
	cipher          crm.FieldCipher
	gate            workflowapp.Gate
	events          shared.EventPublisher
	logger          *zap.Logger
}

// NewCorporationService creates a new corporation service. gate may be nil.
func NewCorporationService(
	corporationRepo crm.CorporationRepository,
	contactRepo crm.ContactRepository,
	cipher crm.FieldCipher,
	gate workflowapp.Gate,
	events shared.EventPublisher,
	logger *zap.Logger,
) *CorporationService {
	return &CorporationService{
		corporationRepo: corporationRepo,
		contactRepo:     contactRepo,
		cipher:          cipher,
		gate:            gate,
		events:          events,
		logger:          logger,
	}
}

// CorporationInput contains input for creating or updating a corporation
type CorporationInput struct {
	Name               string
	EIN                *string
	EntityType         string
	FiscalYearEndMonth int
	Email              string
	Phone              string
	Address            AddressInput
	Status             string
	Notes              string
}

// Create adds a corporation
func (s *CorporationService) Create(ctx context.Context, tenantID, userID uuid.UUID, input CorporationInput) (*CorporationDTO, error) {
	corp, err := crm.NewCorporation(tenantID, input.Name, crm.EntityType(input.EntityType))
	if err != nil {
		return nil, err
	}
	corp.SetCreatedBy(userID)
	if input.FiscalYearEndMonth == 0 {
		input.FiscalYearEndMonth = corp.FiscalYearEndMonth
	}
	if err := s.apply(ctx, corp, input); err != nil {
		return nil, err
	}
	return s.save(ctx, corp, userID)
}

// GetByID returns one corporation
func (s *CorporationService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*CorporationDTO, error) {
	corp, err := s.corporationRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	dto := ToCorporationDTO(corp)
	return &dto, nil
}

// List returns corporations matching the filter (status, entity_type, parent_id)
func (s *CorporationService) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]CorporationDTO, int64, error) {
	corps, total, err := s.corporationRepo.FindAll(ctx, tenantID, filter.Normalize())
	if err != nil {
		return nil, 0, err
	}
	return toCorporationDTOs(corps), total, nil
}

// Update replaces the editable fields of a corporation
func (s *CorporationService) Update(ctx context.Context, tenantID, userID, id uuid.UUID, input CorporationInput) (*CorporationDTO, error) {
	corp, err := s.corporationRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if input.EntityType == "" {
		input.EntityType = string(corp.EntityType)
	}
	if input.FiscalYearEndMonth == 0 {
		input.FiscalYearEndMonth = corp.FiscalYearEndMonth
	}
	if err := s.apply(ctx, corp, input); err != nil {
		return nil, err
	}
	return s.save(ctx, corp, userID)
}

// Delete soft-deletes a corporation. Subsidiaries become top-level.
func (s *CorporationService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	corp, err := s.corporationRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := s.corporationRepo.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	corp.Delete()
	s.publish(ctx, corp)
	return nil
}

// SetParent attaches the corporation under parentID. A nil parentID detaches it.
func (s *CorporationService) SetParent(ctx context.Context, tenantID, userID, id uuid.UUID, parentID *uuid.UUID) (*CorporationDTO, error) {
	corp, err := s.corporationRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if parentID == nil {
		if err := corp.SetParent(nil, nil); err != nil {
			return nil, err
		}
		return s.save(ctx, corp, userID)
	}
	if *parentID == corp.ID {
		return nil, crm.ErrSelfParent
	}
	parent, err := s.corporationRepo.FindByID(ctx, tenantID, *parentID)
	if err != nil {
		return nil, err
	}
	ancestors, err := s.ancestors(ctx, tenantID, parent)
	if err != nil {
		return nil, err
	}
	if err := corp.SetParent(parent, ancestors); err != nil {
		return nil, err
	}
	return s.save(ctx, corp, userID)
}

// Subsidiaries lists the direct children of a corporation
func (s *CorporationService) Subsidiaries(ctx context.Context, tenantID, id uuid.UUID) ([]CorporationDTO, error) {
	if _, err := s.corporationRepo.FindByID(ctx, tenantID, id); err != nil {
		return nil, err
	}
	children, err := s.corporationRepo.FindChildren(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return toCorporationDTOs(children), nil
}

// LinkRelated records a symmetrical relation between two corporations
func (s *CorporationService) LinkRelated(ctx context.Context, tenantID, userID, id, relatedID uuid.UUID) (*CorporationDTO, error) {
	a, b, err := s.pair(ctx, tenantID, id, relatedID)
	if err != nil {
		return nil, err
	}
	if err := crm.LinkRelated(a, b); err != nil {
		return nil, err
	}
	return s.savePair(ctx, a, b, userID)
}

// UnlinkRelated removes a relation from both corporations
func (s *CorporationService) UnlinkRelated(ctx context.Context, tenantID, userID, id, relatedID uuid.UUID) (*CorporationDTO, error) {
	a, b, err := s.pair(ctx, tenantID, id, relatedID)
	if err != nil {
		return nil, err
	}
	if !a.IsRelatedTo(b.ID) && !b.IsRelatedTo(a.ID) {
		return nil, shared.NewDomainError("NOT_RELATED", "Corporations are not related")
	}
	crm.UnlinkRelated(a, b)
	return s.savePair(ctx, a, b, userID)
}

// Related lists the corporations related to one corporation
func (s *CorporationService) Related(ctx context.Context, tenantID, id uuid.UUID) ([]CorporationDTO, error) {
	corp, err := s.corporationRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if len(corp.RelatedIDs) == 0 {
		return []CorporationDTO{}, nil
	}
	related, err := s.corporationRepo.FindByIDs(ctx, tenantID, corp.RelatedIDs)
	if err != nil {
		return nil, err
	}
	return toCorporationDTOs(related), nil
}

// Contacts lists the contacts linked to a corporation
func (s *CorporationService) Contacts(ctx context.Context, tenantID, id uuid.UUID) ([]ContactDTO, error) {
	if _, err := s.corporationRepo.FindByID(ctx, tenantID, id); err != nil {
		return nil, err
	}
	contacts, err := s.contactRepo.FindByCorporation(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	out := make([]ContactDTO, len(contacts))
	for i := range contacts {
		out[i] = ToContactDTO(&contacts[i])
	}
	return out, nil
}

// Export writes every corporation matching the filter as CSV
func (s *CorporationService) Export(ctx context.Context, tenantID uuid.UUID, filter shared.Filter, w io.Writer) error {
	corps, err := shared.CollectAll(filter, func(f shared.Filter) ([]crm.Corporation, int64, error) {
		return s.corporationRepo.FindAll(ctx, tenantID, f)
	})
	if err != nil {
		return err
	}
	return export.WriteCSV(w, corporationColumns, corps)
}

var corporationColumns = []export.Column[crm.Corporation]{
	{Header: "ID", Value: func(c crm.Corporation) string { return c.ID.String() }},
	{Header: "Name", Value: func(c crm.Corporation) string { return c.Name }},
	{Header: "EIN", Value: func(c crm.Corporation) string { return c.EIN.Masked(crm.EINLayout) }},
	{Header: "Entity Type", Value: func(c crm.Corporation) string { return string(c.EntityType) }},
	{Header: "Fiscal Year End", Value: func(c crm.Corporation) string { return export.Int(c.FiscalYearEndMonth) }},
	{Header: "Email", Value: func(c crm.Corporation) string { return c.Email }},
	{Header: "Phone", Value: func(c crm.Corporation) string { return c.Phone }},
	{Header: "Status", Value: func(c crm.Corporation) string { return string(c.Status) }},
	{Header: "State", Value: func(c crm.Corporation) string { return c.Address.State }},
	{Header: "Parent", Value: func(c crm.Corporation) string { return export.ID(c.ParentID) }},
	{Header: "Related", Value: func(c crm.Corporation) string { return joinIDs(c.RelatedIDs) }},
}

// ancestors walks ParentID upwards from corp, nearest first
func (s *CorporationService) ancestors(ctx context.Context, tenantID uuid.UUID, corp *crm.Corporation) ([]uuid.UUID, error) {
	var out []uuid.UUID
	seen := map[uuid.UUID]struct{}{corp.ID: {}}
	next := corp.ParentID
	for next != nil && len(out) < maxOwnershipDepth {
		if _, loop := seen[*next]; loop {
			return nil, crm.ErrParentCycle
		}
		seen[*next] = struct{}{}
		out = append(out, *next)
		parent, err := s.corporationRepo.FindByID(ctx, tenantID, *next)
		if err != nil {
			return nil, err
		}
		next = parent.ParentID
	}
	return out, nil
}

func (s *CorporationService) pair(ctx context.Context, tenantID, id, otherID uuid.UUID) (*crm.Corporation, *crm.Corporation, error) {
	if id == otherID {
		return nil, nil, crm.ErrSelfRelation
	}
	a, err := s.corporationRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, nil, err
	}
	b, err := s.corporationRepo.FindByID(ctx, tenantID, otherID)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func (s *CorporationService) savePair(ctx context.Context, a, b *crm.Corporation, userID uuid.UUID) (*CorporationDTO, error) {
	if err := s.corporationRepo.Save(ctx, b); err != nil {
		return nil, err
	}
	s.publish(ctx, b)
	return s.save(ctx, a, userID)
}

func (s *CorporationService) apply(ctx context.Context, corp *crm.Corporation, input CorporationInput) error {
	addr, err := toAddress(input.Address)
	if err != nil {
		return err
	}
	if err := corp.UpdateDetails(input.Name, crm.EntityType(input.EntityType), input.FiscalYearEndMonth, input.Email, input.Phone, addr, input.Notes); err != nil {
		return err
	}
	if input.Status != "" && crm.CorporationStatus(input.Status) != corp.Status {
		if err := corp.SetStatus(crm.CorporationStatus(input.Status)); err != nil {
			return err
		}
	}
	if input.EIN != nil {
		if strings.TrimSpace(*input.EIN) == "" {
			corp.SetEIN(crm.SensitiveValue{})
			return nil
		}
		sealed, err := crm.SealSensitive(ctx, s.cipher, *input.EIN, einDigits, "INVALID_EIN")
		if err != nil {
			return err
		}
		corp.SetEIN(sealed)
	}
	return nil
}

func (s *CorporationService) save(ctx context.Context, corp *crm.Corporation, userID uuid.UUID) (*CorporationDTO, error) {
	if err := s.corporationRepo.Save(ctx, corp); err != nil {
		return nil, err
	}
	s.publish(ctx, corp)
	dto := ToCorporationDTO(corp)
	dto.PendingApprovalID = workflowapp.RunOnSave(ctx, s.gate, s.logger, workflowapp.Submission{
		TenantID:    corp.TenantID,
		Module:      workflow.ModuleCorporation,
		Trigger:     workflow.TriggerOnSave,
		RecordID:    corp.ID,
		Snapshot:    corp.Snapshot(),
		RequestedBy: userID,
	})
	return &dto, nil
}

func (s *CorporationService) publish(ctx context.Context, corp *crm.Corporation) {
	if err := shared.PublishAndClear(ctx, s.events, corp); err != nil {
		s.logger.Warn("Failed to publish corporation events", zap.Error(err))
	}
}

func toCorporationDTOs(corps []crm.Corporation) []CorporationDTO {
	out := make([]CorporationDTO, len(corps))
	for i := range corps {
		out[i] = ToCorporationDTO(&corps[i])
	}
	return out
}
