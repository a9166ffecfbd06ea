package taxcase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/shared"
)

// Repository persists tax cases
type Repository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*TaxCase, error)
	// FindAll supports Filters keys: status, tax_year, case_type, preparer_id, contact_id, corporation_id
	FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]TaxCase, int64, error)
	// FindDueBetween lists open (not filed, closed or cancelled) cases due in [from, to)
	FindDueBetween(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]TaxCase, error)
	Save(ctx context.Context, tc *TaxCase) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	// NextSequence returns the next case sequence for the tenant and year
	NextSequence(ctx context.Context, tenantID uuid.UUID, year int) (int64, error)
}
