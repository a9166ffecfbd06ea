// Package tenant provides tenant_id scoping for GORM queries.
//
// Every tenant-owned table carries a tenant_id column. Repositories attach
// the scope to each query so that a missing tenant surfaces as an error
// instead of an unfiltered read:
//
//	r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Find(&contacts)
package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/infrastructure/logger"
	"gorm.io/gorm"
)

// ErrTenantIDRequired is returned when tenant_id is required but not provided
var ErrTenantIDRequired = errors.New("tenant_id is required but not provided")

// ErrInvalidTenantID is returned when tenant_id format is invalid
var ErrInvalidTenantID = errors.New("invalid tenant_id format")

// Column is the tenant discriminator column shared by all tenant-owned tables.
const Column = "tenant_id"

// Scope filters a query to a single tenant. A nil tenant ID poisons the
// statement with ErrTenantIDRequired.
func Scope(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if tenantID == uuid.Nil {
			_ = db.AddError(ErrTenantIDRequired)
			return db
		}
		return db.Where(Column+" = ?", tenantID)
	}
}

// FromContext reads the tenant ID placed on ctx by the auth middleware.
func FromContext(ctx context.Context) (uuid.UUID, error) {
	raw := logger.GetTenantID(ctx)
	if raw == "" {
		return uuid.Nil, ErrTenantIDRequired
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrInvalidTenantID
	}
	return id, nil
}

// ScopeFromContext is Scope with the tenant taken from ctx.
func ScopeFromContext(ctx context.Context) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		id, err := FromContext(ctx)
		if err != nil {
			_ = db.AddError(err)
			return db
		}
		return Scope(id)(db)
	}
}
