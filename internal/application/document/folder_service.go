package document

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/crm"
	"github.com/taxcrm/backend/internal/domain/document"
	"github.com/taxcrm/backend/internal/domain/identity"
	"github.com/taxcrm/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ClientUploadsFolder is the folder portal uploads land in
const ClientUploadsFolder = "Client Uploads"

// OwnerInput selects the client a folder or document belongs to
type OwnerInput struct {
	ContactID     *uuid.UUID `json:"contact_id"`
	CorporationID *uuid.UUID `json:"corporation_id"`
}

// Owner converts the input, checking that exactly one side is set
func (in OwnerInput) Owner() (document.Owner, error) {
	o := document.Owner{ContactID: in.ContactID, CorporationID: in.CorporationID}
	return o, o.Validate()
}

// FolderService manages client folders
type FolderService struct {
	folderRepo      document.FolderRepository
	departmentRepo  identity.DepartmentRepository
	contactRepo     crm.ContactRepository
	corporationRepo crm.CorporationRepository
	events          shared.EventPublisher
	logger          *zap.Logger
}

// NewFolderService creates a new folder service
func NewFolderService(
	folderRepo document.FolderRepository,
	departmentRepo identity.DepartmentRepository,
	contactRepo crm.ContactRepository,
	corporationRepo crm.CorporationRepository,
	events shared.EventPublisher,
	logger *zap.Logger,
) *FolderService {
	return &FolderService{
		folderRepo:      folderRepo,
		departmentRepo:  departmentRepo,
		contactRepo:     contactRepo,
		corporationRepo: corporationRepo,
		events:          events,
		logger:          logger,
	}
}

// CreateFolderInput contains input for creating a folder
type CreateFolderInput struct {
	Name     string
	Owner    OwnerInput
	ParentID *uuid.UUID
}

// Create adds a folder. A sub-folder inherits its parent's client and department.
func (s *FolderService) Create(ctx context.Context, tenantID, userID uuid.UUID, input CreateFolderInput) (*FolderDTO, error) {
	owner, err := input.Owner.Owner()
	if err != nil {
		return nil, err
	}
	if err := checkOwner(ctx, s.contactRepo, s.corporationRepo, tenantID, owner); err != nil {
		return nil, err
	}
	var parent *document.Folder
	if input.ParentID != nil {
		if parent, err = s.folderRepo.FindByID(ctx, tenantID, *input.ParentID); err != nil {
			return nil, err
		}
	}
	folder, err := document.NewFolder(tenantID, input.Name, owner, parent)
	if err != nil {
		return nil, err
	}
	folder.SetCreatedBy(userID)
	return s.save(ctx, folder)
}

// ListByOwner returns every folder of one client
func (s *FolderService) ListByOwner(ctx context.Context, tenantID uuid.UUID, input OwnerInput) ([]FolderDTO, error) {
	owner, err := input.Owner()
	if err != nil {
		return nil, err
	}
	folders, err := s.folderRepo.FindByOwner(ctx, tenantID, owner)
	if err != nil {
		return nil, err
	}
	return toFolderDTOs(folders), nil
}

// GetByID returns one folder
func (s *FolderService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*FolderDTO, error) {
	folder, err := s.folderRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	dto := ToFolderDTO(folder)
	return &dto, nil
}

// Rename changes a folder name
func (s *FolderService) Rename(ctx context.Context, tenantID, id uuid.UUID, name string) (*FolderDTO, error) {
	folder, err := s.folderRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := folder.Rename(name); err != nil {
		return nil, err
	}
	return s.save(ctx, folder)
}

// Delete removes an empty folder
func (s *FolderService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	folder, err := s.folderRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	empty, err := s.folderRepo.IsEmpty(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if !empty {
		return shared.NewDomainError("FOLDER_NOT_EMPTY", "Only empty folders can be deleted")
	}
	if err := s.folderRepo.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	folder.AddDomainEvent(shared.NewRecordEvent(document.AggregateTypeFolder, "deleted", folder.ID, tenantID, map[string]any{"name": folder.Name}))
	s.publish(ctx, folder)
	return nil
}

// EnsureDepartmentFolder returns the department's root folder for a client,
// creating it on first use
func (s *FolderService) EnsureDepartmentFolder(ctx context.Context, tenantID, userID, departmentID uuid.UUID, input OwnerInput) (*FolderDTO, error) {
	owner, err := input.Owner()
	if err != nil {
		return nil, err
	}
	existing, err := s.folderRepo.FindDepartmentRoot(ctx, tenantID, departmentID, owner)
	if err == nil {
		dto := ToFolderDTO(existing)
		return &dto, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if err := checkOwner(ctx, s.contactRepo, s.corporationRepo, tenantID, owner); err != nil {
		return nil, err
	}
	dept, err := s.departmentRepo.FindByID(ctx, tenantID, departmentID)
	if err != nil {
		return nil, err
	}
	folder, err := document.NewDepartmentClientFolder(tenantID, dept.ID, dept.Name, owner)
	if err != nil {
		return nil, err
	}
	folder.SetCreatedBy(userID)
	return s.save(ctx, folder)
}

// ensureClientRoot returns the named top-level folder of a client, creating it when missing
func (s *FolderService) ensureClientRoot(ctx context.Context, tenantID uuid.UUID, owner document.Owner, name string) (*document.Folder, error) {
	folder, err := s.folderRepo.FindClientRoot(ctx, tenantID, owner, name)
	if err == nil {
		return folder, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	folder, err = document.NewFolder(tenantID, name, owner, nil)
	if err != nil {
		return nil, err
	}
	if err := s.folderRepo.Save(ctx, folder); err != nil {
		return nil, err
	}
	s.publish(ctx, folder)
	return folder, nil
}

func (s *FolderService) save(ctx context.Context, folder *document.Folder) (*FolderDTO, error) {
	if err := s.folderRepo.Save(ctx, folder); err != nil {
		return nil, err
	}
	s.publish(ctx, folder)
	dto := ToFolderDTO(folder)
	return &dto, nil
}

func (s *FolderService) publish(ctx context.Context, folder *document.Folder) {
	if err := shared.PublishAndClear(ctx, s.events, folder); err != nil {
		s.logger.Warn("Failed to publish folder events", zap.Error(err))
	}
}

// checkOwner verifies the referenced client exists in the tenant
func checkOwner(ctx context.Context, contacts crm.ContactRepository, corporations crm.CorporationRepository, tenantID uuid.UUID, owner document.Owner) error {
	if owner.ContactID != nil {
		_, err := contacts.FindByID(ctx, tenantID, *owner.ContactID)
		return err
	}
	_, err := corporations.FindByID(ctx, tenantID, *owner.CorporationID)
	return err
}
