package document

import (
	"context"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/shared"
)

// FolderRepository persists folders
type FolderRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Folder, error)
	FindByOwner(ctx context.Context, tenantID uuid.UUID, owner Owner) ([]Folder, error)
	FindDepartmentRoot(ctx context.Context, tenantID, departmentID uuid.UUID, owner Owner) (*Folder, error)
	FindClientRoot(ctx context.Context, tenantID uuid.UUID, owner Owner, name string) (*Folder, error)
	Save(ctx context.Context, folder *Folder) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	// IsEmpty reports whether the folder has no documents and no sub-folders
	IsEmpty(ctx context.Context, tenantID, id uuid.UUID) (bool, error)
}

// Repository persists document metadata
type Repository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Document, error)
	// FindAll supports Filters keys: folder_id, contact_id, corporation_id, tax_case_id, category, visible_to_client
	FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Document, int64, error)
	Save(ctx context.Context, doc *Document) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}
