package aiagent

import (
	"context"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/shared"
)

// ConfigRepository persists agent configurations
type ConfigRepository interface {
	// FindByTenant returns shared.ErrNotFound when the tenant has never saved a config
	FindByTenant(ctx context.Context, tenantID uuid.UUID) (*Config, error)
	FindEnabled(ctx context.Context) ([]*Config, error)
	Save(ctx context.Context, c *Config) error
}

// RunRepository persists cycle records
type RunRepository interface {
	Save(ctx context.Context, r *Run) error
	FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Run, int64, error)
}

// SuggestionRepository persists suggestions
type SuggestionRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Suggestion, error)
	// FindAll supports filters: status, kind, run_id
	FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Suggestion, int64, error)
	Save(ctx context.Context, s *Suggestion) error
	SaveBatch(ctx context.Context, items []*Suggestion) error
}
