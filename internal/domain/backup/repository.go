package backup

import (
	"context"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/shared"
)

// Repository persists backup records. A nil tenant ID addresses global backups.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Backup, error)
	// FindAll lists backups of a tenant, or every backup when tenantID is nil
	FindAll(ctx context.Context, tenantID *uuid.UUID, filter shared.Filter) ([]Backup, int64, error)
	// FindLastCompleted returns the newest completed backup that covers the
	// whole tenant, see Backup.CoversTenant
	FindLastCompleted(ctx context.Context, tenantID uuid.UUID) (*Backup, error)
	HasInFlight(ctx context.Context, tenantID uuid.UUID) (bool, error)
	// FindAutomatic returns completed automatic tenant backups, newest first
	FindAutomatic(ctx context.Context, tenantID uuid.UUID) ([]Backup, error)
	Save(ctx context.Context, b *Backup) error
	Delete(ctx context.Context, id uuid.UUID) error
}
