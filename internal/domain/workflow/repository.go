package workflow

import (
	"context"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/shared"
)

// DefinitionRepository persists approval definitions
type DefinitionRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Definition, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Definition, int64, error)
	// FindActive returns active definitions for module/trigger ordered by created_at
	FindActive(ctx context.Context, tenantID uuid.UUID, module Module, trigger Trigger) ([]*Definition, error)
	Save(ctx context.Context, d *Definition) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// ApprovalRepository persists approval requests
type ApprovalRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Approval, error)
	// FindAll supports filters: status, module, record_id, approver_user_id, approver_role_ids
	FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Approval, int64, error)
	// FindPendingForRecord returns the newest pending approval raised for the record by trigger
	FindPendingForRecord(ctx context.Context, tenantID uuid.UUID, module Module, trigger Trigger, recordID uuid.UUID) (*Approval, error)
	Save(ctx context.Context, a *Approval) error
}
