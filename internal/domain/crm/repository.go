package crm

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/shared"
)

// ContactRepository persists contacts together with their corporation links
type ContactRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Contact, error)
	FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]Contact, error)
	// FindAll supports Filters keys: status, assigned_to, corporation_id
	FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Contact, int64, error)
	FindByCorporation(ctx context.Context, tenantID, corporationID uuid.UUID) ([]Contact, error)
	FindInactiveSince(ctx context.Context, tenantID uuid.UUID, cutoff time.Time, limit int) ([]Contact, error)
	Save(ctx context.Context, contact *Contact) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	ExistsByEmail(ctx context.Context, tenantID uuid.UUID, email string, excludeID *uuid.UUID) (bool, error)
}

// CorporationRepository persists corporations and their related links
type CorporationRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Corporation, error)
	FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]Corporation, error)
	// FindAll supports Filters keys: status, entity_type, parent_id
	FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Corporation, int64, error)
	FindChildren(ctx context.Context, tenantID, parentID uuid.UUID) ([]Corporation, error)
	Save(ctx context.Context, corporation *Corporation) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}
