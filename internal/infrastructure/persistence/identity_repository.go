package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/identity"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/infrastructure/persistence/models"
	"github.com/taxcrm/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
)

// GormTenantRepository implements identity.TenantRepository using GORM
type GormTenantRepository struct {
	db *gorm.DB
}

// NewGormTenantRepository creates a new GormTenantRepository
func NewGormTenantRepository(db *gorm.DB) *GormTenantRepository {
	return &GormTenantRepository{db: db}
}

// FindByID finds a tenant by ID
func (r *GormTenantRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.Tenant, error) {
	var model models.TenantModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindBySlug finds a tenant by its unique slug
func (r *GormTenantRepository) FindBySlug(ctx context.Context, slug string) (*identity.Tenant, error) {
	var model models.TenantModel
	if err := r.db.WithContext(ctx).Where("slug = ?", strings.ToLower(slug)).First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindAll lists tenants; Filters supports status
func (r *GormTenantRepository) FindAll(ctx context.Context, filter shared.Filter) ([]identity.Tenant, int64, error) {
	query := searchColumns(r.db.WithContext(ctx).Model(&models.TenantModel{}), filter.Search, "name", "slug")
	if status, ok := filter.Filters["status"]; ok {
		query = query.Where("status = ?", status)
	}
	rows, total, err := findPage[models.TenantModel](query, filter, tenantSort)
	if err != nil {
		return nil, 0, err
	}
	tenants := make([]identity.Tenant, len(rows))
	for i := range rows {
		tenants[i] = *rows[i].ToDomain()
	}
	return tenants, total, nil
}

// FindActiveIDs returns the IDs of all active tenants
func (r *GormTenantRepository) FindActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&models.TenantModel{}).
		Where("status = ?", identity.TenantStatusActive).
		Order("created_at ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Save creates or updates a tenant
func (r *GormTenantRepository) Save(ctx context.Context, t *identity.Tenant) error {
	return r.db.WithContext(ctx).Save(models.TenantModelFromDomain(t)).Error
}

// ExistsBySlug checks if a slug is taken
func (r *GormTenantRepository) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.TenantModel{}).
		Where("slug = ?", strings.ToLower(slug)).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetAllActiveTenantIDs satisfies scheduler.TenantProvider
func (r *GormTenantRepository) GetAllActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	return r.FindActiveIDs(ctx)
}

// GormUserRepository implements identity.UserRepository using GORM.
// Role assignments are stored in user_roles and replaced on every save.
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GormUserRepository
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// FindByID finds a user by ID
func (r *GormUserRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*identity.User, error) {
	var model models.UserModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	users, err := r.withRoles(ctx, tenantID, []models.UserModel{model})
	if err != nil {
		return nil, err
	}
	return &users[0], nil
}

// FindByUsername finds a user by username, case-insensitively
func (r *GormUserRepository) FindByUsername(ctx context.Context, tenantID uuid.UUID, username string) (*identity.User, error) {
	var model models.UserModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).
		Where("LOWER(username) = ?", strings.ToLower(username)).
		First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	users, err := r.withRoles(ctx, tenantID, []models.UserModel{model})
	if err != nil {
		return nil, err
	}
	return &users[0], nil
}

// FindAll lists users; Filters supports status, department_id and role_id
func (r *GormUserRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]identity.User, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.UserModel{}).Scopes(tenant.Scope(tenantID))
	query = searchColumns(query, filter.Search, "username", "email", "display_name")
	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "department_id":
			query = query.Where("department_id = ?", value)
		case "role_id":
			query = query.Where("id IN (?)", r.db.Model(&models.UserRoleModel{}).Select("user_id").Where("role_id = ?", value))
		}
	}
	rows, total, err := findPage[models.UserModel](query, filter, userSort)
	if err != nil {
		return nil, 0, err
	}
	users, err := r.withRoles(ctx, tenantID, rows)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// FindByRole finds all users holding a role
func (r *GormUserRepository) FindByRole(ctx context.Context, tenantID, roleID uuid.UUID) ([]identity.User, error) {
	var rows []models.UserModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).
		Where("id IN (?)", r.db.Model(&models.UserRoleModel{}).Select("user_id").Where("role_id = ?", roleID)).
		Order("username ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.withRoles(ctx, tenantID, rows)
}

// Save creates or updates a user and replaces its role assignments
func (r *GormUserRepository) Save(ctx context.Context, user *identity.User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(models.UserModelFromDomain(user)).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.UserRoleModel{}).Error; err != nil {
			return err
		}
		if len(user.RoleIDs) == 0 {
			return nil
		}
		now := time.Now()
		links := make([]models.UserRoleModel, len(user.RoleIDs))
		for i, roleID := range user.RoleIDs {
			links[i] = models.UserRoleModel{UserID: user.ID, RoleID: roleID, TenantID: user.TenantID, CreatedAt: now}
		}
		return tx.Create(&links).Error
	})
}

// Delete soft-deletes a user and drops its role assignments
func (r *GormUserRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteResult(tx.Scopes(tenant.Scope(tenantID)).Where("id = ?", id).Delete(&models.UserModel{})); err != nil {
			return err
		}
		return tx.Where("user_id = ?", id).Delete(&models.UserRoleModel{}).Error
	})
}

// ExistsByUsername checks if a username is taken within the tenant
func (r *GormUserRepository) ExistsByUsername(ctx context.Context, tenantID uuid.UUID, username string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.UserModel{}).Scopes(tenant.Scope(tenantID)).
		Where("LOWER(username) = ?", strings.ToLower(username)).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormUserRepository) withRoles(ctx context.Context, tenantID uuid.UUID, rows []models.UserModel) ([]identity.User, error) {
	users := make([]identity.User, len(rows))
	if len(rows) == 0 {
		return users, nil
	}
	ids := make([]uuid.UUID, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	var links []models.UserRoleModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).
		Where("user_id IN ?", ids).
		Order("created_at ASC").
		Find(&links).Error; err != nil {
		return nil, err
	}
	byUser := make(map[uuid.UUID][]uuid.UUID, len(rows))
	for _, l := range links {
		byUser[l.UserID] = append(byUser[l.UserID], l.RoleID)
	}
	for i := range rows {
		u := rows[i].ToDomain()
		if roles, ok := byUser[u.ID]; ok {
			u.RoleIDs = roles
		}
		users[i] = *u
	}
	return users, nil
}

// GormRoleRepository implements identity.RoleRepository using GORM
type GormRoleRepository struct {
	db *gorm.DB
}

// NewGormRoleRepository creates a new GormRoleRepository
func NewGormRoleRepository(db *gorm.DB) *GormRoleRepository {
	return &GormRoleRepository{db: db}
}

// FindByID finds a role by ID
func (r *GormRoleRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*identity.Role, error) {
	var model models.RoleModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindByIDs loads the roles with the given IDs; unknown IDs are skipped
func (r *GormRoleRepository) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]identity.Role, error) {
	if len(ids) == 0 {
		return []identity.Role{}, nil
	}
	var rows []models.RoleModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	roles := make([]identity.Role, len(rows))
	for i := range rows {
		roles[i] = *rows[i].ToDomain()
	}
	return roles, nil
}

// FindByCode finds a role by code
func (r *GormRoleRepository) FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*identity.Role, error) {
	var model models.RoleModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).
		Where("code = ?", strings.ToUpper(code)).
		First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindAll lists every role of the tenant ordered by code
func (r *GormRoleRepository) FindAll(ctx context.Context, tenantID uuid.UUID) ([]identity.Role, error) {
	var rows []models.RoleModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Order("code ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	roles := make([]identity.Role, len(rows))
	for i := range rows {
		roles[i] = *rows[i].ToDomain()
	}
	return roles, nil
}

// Save creates or updates a role
func (r *GormRoleRepository) Save(ctx context.Context, role *identity.Role) error {
	return r.db.WithContext(ctx).Save(models.RoleModelFromDomain(role)).Error
}

// Delete removes a role and its user assignments
func (r *GormRoleRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", id).Delete(&models.UserRoleModel{}).Error; err != nil {
			return err
		}
		return deleteResult(tx.Scopes(tenant.Scope(tenantID)).Where("id = ?", id).Delete(&models.RoleModel{}))
	})
}

// GormDepartmentRepository implements identity.DepartmentRepository using GORM
type GormDepartmentRepository struct {
	db *gorm.DB
}

// NewGormDepartmentRepository creates a new GormDepartmentRepository
func NewGormDepartmentRepository(db *gorm.DB) *GormDepartmentRepository {
	return &GormDepartmentRepository{db: db}
}

// FindByID finds a department by ID
func (r *GormDepartmentRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*identity.Department, error) {
	var model models.DepartmentModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindAll lists departments; Filters supports active
func (r *GormDepartmentRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]identity.Department, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.DepartmentModel{}).Scopes(tenant.Scope(tenantID))
	query = searchColumns(query, filter.Search, "code", "name")
	if active, ok := filter.Filters["active"]; ok {
		query = query.Where("active = ?", active)
	}
	rows, total, err := findPage[models.DepartmentModel](query, filter, departmentSort)
	if err != nil {
		return nil, 0, err
	}
	departments := make([]identity.Department, len(rows))
	for i := range rows {
		departments[i] = *rows[i].ToDomain()
	}
	return departments, total, nil
}

// Save creates or updates a department
func (r *GormDepartmentRepository) Save(ctx context.Context, department *identity.Department) error {
	return r.db.WithContext(ctx).Save(models.DepartmentModelFromDomain(department)).Error
}

// Delete removes a department
func (r *GormDepartmentRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return deleteResult(r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Where("id = ?", id).Delete(&models.DepartmentModel{}))
}

// ExistsByCode checks if a department code is taken
func (r *GormDepartmentRepository) ExistsByCode(ctx context.Context, tenantID uuid.UUID, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.DepartmentModel{}).Scopes(tenant.Scope(tenantID)).
		Where("code = ?", strings.ToUpper(code)).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

var (
	_ identity.TenantRepository     = (*GormTenantRepository)(nil)
	_ identity.UserRepository       = (*GormUserRepository)(nil)
	_ identity.RoleRepository       = (*GormRoleRepository)(nil)
	_ identity.DepartmentRepository = (*GormDepartmentRepository)(nil)
)
