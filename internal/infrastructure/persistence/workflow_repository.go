package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/domain/workflow"
	"github.com/taxcrm/backend/internal/infrastructure/persistence/models"
	"github.com/taxcrm/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
)

// GormApprovalDefinitionRepository implements workflow.DefinitionRepository using GORM
type GormApprovalDefinitionRepository struct {
	db *gorm.DB
}

// NewGormApprovalDefinitionRepository creates a new GormApprovalDefinitionRepository
func NewGormApprovalDefinitionRepository(db *gorm.DB) *GormApprovalDefinitionRepository {
	return &GormApprovalDefinitionRepository{db: db}
}

// FindByID finds a definition by ID
func (r *GormApprovalDefinitionRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*workflow.Definition, error) {
	var model models.ApprovalDefinitionModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindAll lists definitions; Filters supports module, trigger and active
func (r *GormApprovalDefinitionRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]workflow.Definition, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ApprovalDefinitionModel{}).Scopes(tenant.Scope(tenantID))
	query = searchColumns(query, filter.Search, "name", "description")
	for key, value := range filter.Filters {
		switch key {
		case "module":
			query = query.Where("module = ?", value)
		case "trigger":
			query = query.Where(`"trigger" = ?`, value)
		case "active":
			query = query.Where("active = ?", value)
		}
	}
	rows, total, err := findPage[models.ApprovalDefinitionModel](query, filter, definitionSort)
	if err != nil {
		return nil, 0, err
	}
	out := make([]workflow.Definition, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// FindActive returns active definitions for a module and trigger, oldest first
func (r *GormApprovalDefinitionRepository) FindActive(ctx context.Context, tenantID uuid.UUID, module workflow.Module, trigger workflow.Trigger) ([]*workflow.Definition, error) {
	var rows []models.ApprovalDefinitionModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).
		Where(`module = ? AND "trigger" = ? AND active = ?`, module, trigger, true).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*workflow.Definition, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// Save creates or updates a definition
func (r *GormApprovalDefinitionRepository) Save(ctx context.Context, d *workflow.Definition) error {
	return r.db.WithContext(ctx).Save(models.ApprovalDefinitionModelFromDomain(d)).Error
}

// Delete removes a definition
func (r *GormApprovalDefinitionRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return deleteResult(r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Where("id = ?", id).Delete(&models.ApprovalDefinitionModel{}))
}

// GormApprovalRepository implements workflow.ApprovalRepository using GORM
type GormApprovalRepository struct {
	db *gorm.DB
}

// NewGormApprovalRepository creates a new GormApprovalRepository
func NewGormApprovalRepository(db *gorm.DB) *GormApprovalRepository {
	return &GormApprovalRepository{db: db}
}

// FindByID finds an approval by ID
func (r *GormApprovalRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*workflow.Approval, error) {
	var model models.ApprovalModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindAll lists approvals. When approver_user_id or approver_role_ids is set the
// result is the inbox of that approver: requests addressed to the user, to one
// of the roles, or (unless assigned_only is set) to nobody in particular.
func (r *GormApprovalRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]workflow.Approval, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ApprovalModel{}).Scopes(tenant.Scope(tenantID))
	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "module":
			query = query.Where("module = ?", value)
		case "record_id":
			query = query.Where("record_id = ?", value)
		}
	}
	userID, hasUser := filter.Filters["approver_user_id"]
	roleIDs, hasRoles := filter.Filters["approver_role_ids"].([]uuid.UUID)
	if hasUser || hasRoles {
		_, assignedOnly := filter.Filters["assigned_only"]
		inbox := r.db.Where("1 = 0")
		if !assignedOnly {
			inbox = r.db.Where("approver_user_id IS NULL AND approver_role_id IS NULL")
		}
		if hasUser {
			inbox = inbox.Or("approver_user_id = ?", userID)
		}
		if hasRoles && len(roleIDs) > 0 {
			inbox = inbox.Or("approver_role_id IN ?", roleIDs)
		}
		query = query.Where(inbox)
	}
	rows, total, err := findPage[models.ApprovalModel](query, filter, approvalSort)
	if err != nil {
		return nil, 0, err
	}
	out := make([]workflow.Approval, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// FindPendingForRecord returns the open approval a trigger raised for a record, if any
func (r *GormApprovalRepository) FindPendingForRecord(ctx context.Context, tenantID uuid.UUID, module workflow.Module, trigger workflow.Trigger, recordID uuid.UUID) (*workflow.Approval, error) {
	var model models.ApprovalModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).
		Where(`module = ? AND record_id = ? AND "trigger" = ? AND status = ?`, module, recordID, trigger, workflow.ApprovalPending).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// Save creates or updates an approval. A decision recorded by another
// approver since a was loaded yields ErrConcurrencyConflict.
func (r *GormApprovalRepository) Save(ctx context.Context, a *workflow.Approval) error {
	if err := saveVersioned(r.db.WithContext(ctx), models.ApprovalModelFromDomain(a), a.ID, a); err != nil {
		return err
	}
	a.MarkPersisted()
	return nil
}

var (
	_ workflow.DefinitionRepository = (*GormApprovalDefinitionRepository)(nil)
	_ workflow.ApprovalRepository   = (*GormApprovalRepository)(nil)
)
