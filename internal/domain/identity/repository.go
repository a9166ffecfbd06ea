package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/shared"
)

// TenantRepository persists tenants
type TenantRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	FindBySlug(ctx context.Context, slug string) (*Tenant, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]Tenant, int64, error)
	// FindActiveIDs lists tenants the background jobs should visit
	FindActiveIDs(ctx context.Context) ([]uuid.UUID, error)
	Save(ctx context.Context, tenant *Tenant) error
	ExistsBySlug(ctx context.Context, slug string) (bool, error)
}

// UserRepository persists staff users
type UserRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*User, error)
	FindByUsername(ctx context.Context, tenantID uuid.UUID, username string) (*User, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]User, int64, error)
	FindByRole(ctx context.Context, tenantID, roleID uuid.UUID) ([]User, error)
	Save(ctx context.Context, user *User) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	ExistsByUsername(ctx context.Context, tenantID uuid.UUID, username string) (bool, error)
}

// RoleRepository persists roles
type RoleRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Role, error)
	FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]Role, error)
	FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*Role, error)
	FindAll(ctx context.Context, tenantID uuid.UUID) ([]Role, error)
	Save(ctx context.Context, role *Role) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// DepartmentRepository persists departments
type DepartmentRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Department, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Department, int64, error)
	Save(ctx context.Context, department *Department) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	ExistsByCode(ctx context.Context, tenantID uuid.UUID, code string) (bool, error)
}
