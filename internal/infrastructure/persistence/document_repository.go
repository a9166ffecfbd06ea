package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/document"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/infrastructure/persistence/models"
	"github.com/taxcrm/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
)

// ownerScope narrows a folder or document query to one client
func ownerScope(owner document.Owner) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if owner.ContactID != nil {
			return db.Where("contact_id = ?", *owner.ContactID)
		}
		if owner.CorporationID != nil {
			return db.Where("corporation_id = ?", *owner.CorporationID)
		}
		_ = db.AddError(document.ErrFolderOwner)
		return db
	}
}

// GormFolderRepository implements document.FolderRepository using GORM
type GormFolderRepository struct {
	db *gorm.DB
}

// NewGormFolderRepository creates a new GormFolderRepository
func NewGormFolderRepository(db *gorm.DB) *GormFolderRepository {
	return &GormFolderRepository{db: db}
}

// FindByID finds a folder by ID
func (r *GormFolderRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*document.Folder, error) {
	var model models.FolderModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindByOwner lists every folder of a client
func (r *GormFolderRepository) FindByOwner(ctx context.Context, tenantID uuid.UUID, owner document.Owner) ([]document.Folder, error) {
	var rows []models.FolderModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID), ownerScope(owner)).
		Order("name ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	folders := make([]document.Folder, len(rows))
	for i := range rows {
		folders[i] = *rows[i].ToDomain()
	}
	return folders, nil
}

// FindDepartmentRoot finds the department's root folder for a client
func (r *GormFolderRepository) FindDepartmentRoot(ctx context.Context, tenantID, departmentID uuid.UUID, owner document.Owner) (*document.Folder, error) {
	var model models.FolderModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID), ownerScope(owner)).
		Where("department_id = ? AND parent_id IS NULL", departmentID).
		First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindClientRoot finds a top-level, non-department folder by name
func (r *GormFolderRepository) FindClientRoot(ctx context.Context, tenantID uuid.UUID, owner document.Owner, name string) (*document.Folder, error) {
	var model models.FolderModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID), ownerScope(owner)).
		Where("parent_id IS NULL AND department_id IS NULL AND name = ?", name).
		First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// Save creates or updates a folder
func (r *GormFolderRepository) Save(ctx context.Context, folder *document.Folder) error {
	return r.db.WithContext(ctx).Save(models.FolderModelFromDomain(folder)).Error
}

// Delete removes a folder
func (r *GormFolderRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return deleteResult(r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Where("id = ?", id).Delete(&models.FolderModel{}))
}

// IsEmpty reports whether the folder has no live documents and no sub-folders
func (r *GormFolderRepository) IsEmpty(ctx context.Context, tenantID, id uuid.UUID) (bool, error) {
	var children int64
	if err := r.db.WithContext(ctx).Model(&models.FolderModel{}).Scopes(tenant.Scope(tenantID)).
		Where("parent_id = ?", id).
		Count(&children).Error; err != nil {
		return false, err
	}
	if children > 0 {
		return false, nil
	}
	var docs int64
	if err := r.db.WithContext(ctx).Model(&models.DocumentModel{}).Scopes(tenant.Scope(tenantID)).
		Where("folder_id = ?", id).
		Count(&docs).Error; err != nil {
		return false, err
	}
	return docs == 0, nil
}

// GormDocumentRepository implements document.Repository using GORM
type GormDocumentRepository struct {
	db *gorm.DB
}

// NewGormDocumentRepository creates a new GormDocumentRepository
func NewGormDocumentRepository(db *gorm.DB) *GormDocumentRepository {
	return &GormDocumentRepository{db: db}
}

// FindByID finds a document by ID
func (r *GormDocumentRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*document.Document, error) {
	var model models.DocumentModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindAll lists documents matching the filter
func (r *GormDocumentRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]document.Document, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.DocumentModel{}).Scopes(tenant.Scope(tenantID))
	query = searchColumns(query, filter.Search, "name", "description")
	for key, value := range filter.Filters {
		switch key {
		case "folder_id":
			query = query.Where("folder_id = ?", value)
		case "contact_id":
			query = query.Where("contact_id = ?", value)
		case "corporation_id":
			query = query.Where("corporation_id = ?", value)
		case "tax_case_id":
			query = query.Where("tax_case_id = ?", value)
		case "category":
			query = query.Where("category = ?", value)
		case "visible_to_client":
			query = query.Where("visible_to_client = ?", value)
		}
	}
	rows, total, err := findPage[models.DocumentModel](query, filter, documentSort)
	if err != nil {
		return nil, 0, err
	}
	docs := make([]document.Document, len(rows))
	for i := range rows {
		docs[i] = *rows[i].ToDomain()
	}
	return docs, total, nil
}

// Save creates or updates document metadata
func (r *GormDocumentRepository) Save(ctx context.Context, doc *document.Document) error {
	return r.db.WithContext(ctx).Save(models.DocumentModelFromDomain(doc)).Error
}

// Delete soft-deletes a document
func (r *GormDocumentRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return deleteResult(r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Where("id = ?", id).Delete(&models.DocumentModel{}))
}

var (
	_ document.FolderRepository = (*GormFolderRepository)(nil)
	_ document.Repository       = (*GormDocumentRepository)(nil)
)
