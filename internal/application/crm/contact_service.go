package crm

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	workflowapp "github.com/taxcrm/backend/internal/application/workflow"
	"github.com/taxcrm/backend/internal/domain/crm"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/domain/shared/valueobject"
	"github.com/taxcrm/backend/internal/domain/workflow"
	"github.com/taxcrm/backend/internal/infrastructure/export"
	"go.uber.org/zap"
)

const ssnDigits = 9

// ContactService manages contacts and their corporation links
type ContactService struct {
	contactRepo     crm.ContactRepository
	corporationRepo crm.CorporationRepository
	cipher          crm.FieldCipher
	gate            workflowapp.Gate
	events          shared.EventPublisher
	logger          *zap.Logger
}

// NewContactService creates a new contact service. gate may be nil.
func NewContactService(
	contactRepo crm.ContactRepository,
	corporationRepo crm.CorporationRepository,
	cipher crm.FieldCipher,
	gate workflowapp.Gate,
	events shared.EventPublisher,
	logger *zap.Logger,
) *ContactService {
	return &ContactService{
		contactRepo:     contactRepo,
		corporationRepo: corporationRepo,
		cipher:          cipher,
		gate:            gate,
		events:          events,
		logger:          logger,
	}
}

// ContactInput contains input for creating or updating a contact
type ContactInput struct {
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	DateOfBirth *time.Time
	SSN         *string
	Address     AddressInput
	Status      string
	AssignedTo  *uuid.UUID
	Notes       string
}

// Create adds a contact
func (s *ContactService) Create(ctx context.Context, tenantID, userID uuid.UUID, input ContactInput) (*ContactDTO, error) {
	contact, err := crm.NewContact(tenantID, input.FirstName, input.LastName, input.Email)
	if err != nil {
		return nil, err
	}
	contact.SetCreatedBy(userID)
	if err := s.checkEmail(ctx, tenantID, contact.Email, nil); err != nil {
		return nil, err
	}
	if err := s.apply(ctx, contact, input); err != nil {
		return nil, err
	}
	return s.save(ctx, contact, userID)
}

// GetByID returns one contact
func (s *ContactService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*ContactDTO, error) {
	contact, err := s.contactRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	dto := ToContactDTO(contact)
	return &dto, nil
}

// List returns contacts matching the filter. Search covers name and email.
func (s *ContactService) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]ContactDTO, int64, error) {
	contacts, total, err := s.contactRepo.FindAll(ctx, tenantID, filter.Normalize())
	if err != nil {
		return nil, 0, err
	}
	out := make([]ContactDTO, len(contacts))
	for i := range contacts {
		out[i] = ToContactDTO(&contacts[i])
	}
	return out, total, nil
}

// Update replaces the editable fields of a contact
func (s *ContactService) Update(ctx context.Context, tenantID, userID, id uuid.UUID, input ContactInput) (*ContactDTO, error) {
	contact, err := s.contactRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkEmail(ctx, tenantID, strings.ToLower(strings.TrimSpace(input.Email)), &contact.ID); err != nil {
		return nil, err
	}
	if err := s.apply(ctx, contact, input); err != nil {
		return nil, err
	}
	return s.save(ctx, contact, userID)
}

// Delete soft-deletes a contact
func (s *ContactService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	contact, err := s.contactRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := s.contactRepo.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	contact.Delete()
	s.publish(ctx, contact)
	return nil
}

// LinkCorporation adds a corporation to the contact's set
func (s *ContactService) LinkCorporation(ctx context.Context, tenantID, userID, contactID, corporationID uuid.UUID) (*ContactDTO, error) {
	contact, err := s.contactRepo.FindByID(ctx, tenantID, contactID)
	if err != nil {
		return nil, err
	}
	corp, err := s.corporationRepo.FindByID(ctx, tenantID, corporationID)
	if err != nil {
		return nil, err
	}
	if err := contact.LinkCorporation(corp); err != nil {
		return nil, err
	}
	return s.save(ctx, contact, userID)
}

// UnlinkCorporation removes a corporation. The primary corporation is cleared if it was the one removed.
func (s *ContactService) UnlinkCorporation(ctx context.Context, tenantID, userID, contactID, corporationID uuid.UUID) (*ContactDTO, error) {
	contact, err := s.contactRepo.FindByID(ctx, tenantID, contactID)
	if err != nil {
		return nil, err
	}
	if !contact.HasCorporation(corporationID) {
		return nil, shared.NewDomainError("CORPORATION_NOT_LINKED", "Corporation is not linked to this contact")
	}
	contact.UnlinkCorporation(corporationID)
	return s.save(ctx, contact, userID)
}

// SetPrimaryCorporation marks a linked corporation as primary. nil clears it.
func (s *ContactService) SetPrimaryCorporation(ctx context.Context, tenantID, userID, contactID uuid.UUID, corporationID *uuid.UUID) (*ContactDTO, error) {
	contact, err := s.contactRepo.FindByID(ctx, tenantID, contactID)
	if err != nil {
		return nil, err
	}
	if err := contact.SetPrimaryCorporation(corporationID); err != nil {
		return nil, err
	}
	return s.save(ctx, contact, userID)
}

// Corporations lists the corporations linked to a contact
func (s *ContactService) Corporations(ctx context.Context, tenantID, contactID uuid.UUID) ([]CorporationDTO, error) {
	contact, err := s.contactRepo.FindByID(ctx, tenantID, contactID)
	if err != nil {
		return nil, err
	}
	if len(contact.CorporationIDs) == 0 {
		return []CorporationDTO{}, nil
	}
	corps, err := s.corporationRepo.FindByIDs(ctx, tenantID, contact.CorporationIDs)
	if err != nil {
		return nil, err
	}
	out := make([]CorporationDTO, len(corps))
	for i := range corps {
		out[i] = ToCorporationDTO(&corps[i])
	}
	return out, nil
}

// RecordActivity stamps client activity on a contact. Missing contacts are ignored.
func (s *ContactService) RecordActivity(ctx context.Context, tenantID, contactID uuid.UUID, at time.Time) error {
	contact, err := s.contactRepo.FindByID(ctx, tenantID, contactID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return err
	}
	contact.RecordActivity(at)
	return s.contactRepo.Save(ctx, contact)
}

// Export writes every contact matching the filter as CSV
func (s *ContactService) Export(ctx context.Context, tenantID uuid.UUID, filter shared.Filter, w io.Writer) error {
	contacts, err := shared.CollectAll(filter, func(f shared.Filter) ([]crm.Contact, int64, error) {
		return s.contactRepo.FindAll(ctx, tenantID, f)
	})
	if err != nil {
		return err
	}
	return export.WriteCSV(w, contactColumns, contacts)
}

var contactColumns = []export.Column[crm.Contact]{
	{Header: "ID", Value: func(c crm.Contact) string { return c.ID.String() }},
	{Header: "First Name", Value: func(c crm.Contact) string { return c.FirstName }},
	{Header: "Last Name", Value: func(c crm.Contact) string { return c.LastName }},
	{Header: "Email", Value: func(c crm.Contact) string { return c.Email }},
	{Header: "Phone", Value: func(c crm.Contact) string { return c.Phone }},
	{Header: "SSN", Value: func(c crm.Contact) string { return c.SSN.Masked(crm.SSNLayout) }},
	{Header: "Status", Value: func(c crm.Contact) string { return string(c.Status) }},
	{Header: "City", Value: func(c crm.Contact) string { return c.Address.City }},
	{Header: "State", Value: func(c crm.Contact) string { return c.Address.State }},
	{Header: "Corporations", Value: func(c crm.Contact) string { return joinIDs(c.CorporationIDs) }},
	{Header: "Created", Value: func(c crm.Contact) string { return c.CreatedAt.Format(export.DateLayout) }},
}

func (s *ContactService) apply(ctx context.Context, contact *crm.Contact, input ContactInput) error {
	addr, err := toAddress(input.Address)
	if err != nil {
		return err
	}
	if err := contact.UpdateDetails(input.FirstName, input.LastName, input.Email, input.Phone, input.DateOfBirth, addr, input.Notes); err != nil {
		return err
	}
	if input.Status != "" {
		if err := contact.SetStatus(crm.ContactStatus(input.Status)); err != nil {
			return err
		}
	}
	contact.AssignTo(input.AssignedTo)
	if input.SSN != nil {
		if strings.TrimSpace(*input.SSN) == "" {
			contact.SetSSN(crm.SensitiveValue{})
			return nil
		}
		sealed, err := crm.SealSensitive(ctx, s.cipher, *input.SSN, ssnDigits, "INVALID_SSN")
		if err != nil {
			return err
		}
		contact.SetSSN(sealed)
	}
	return nil
}

func (s *ContactService) checkEmail(ctx context.Context, tenantID uuid.UUID, email string, excludeID *uuid.UUID) error {
	if email == "" {
		return nil
	}
	exists, err := s.contactRepo.ExistsByEmail(ctx, tenantID, email, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return shared.NewDomainError("CONTACT_EMAIL_EXISTS", "Another contact already uses this email")
	}
	return nil
}

func (s *ContactService) save(ctx context.Context, contact *crm.Contact, userID uuid.UUID) (*ContactDTO, error) {
	if err := s.contactRepo.Save(ctx, contact); err != nil {
		return nil, err
	}
	s.publish(ctx, contact)
	dto := ToContactDTO(contact)
	dto.PendingApprovalID = workflowapp.RunOnSave(ctx, s.gate, s.logger, workflowapp.Submission{
		TenantID:    contact.TenantID,
		Module:      workflow.ModuleContact,
		Trigger:     workflow.TriggerOnSave,
		RecordID:    contact.ID,
		Snapshot:    contact.Snapshot(),
		RequestedBy: userID,
	})
	return &dto, nil
}

func (s *ContactService) publish(ctx context.Context, contact *crm.Contact) {
	if err := shared.PublishAndClear(ctx, s.events, contact); err != nil {
		s.logger.Warn("Failed to publish contact events", zap.Error(err))
	}
}

func toAddress(in AddressInput) (valueobject.Address, error) {
	addr, err := valueobject.NewAddress(in.Street, in.City, in.State, in.PostalCode, in.Country)
	if err != nil {
		return valueobject.Address{}, shared.NewDomainError("INVALID_ADDRESS", err.Error())
	}
	return addr, nil
}

func joinIDs(ids []uuid.UUID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ";")
}
