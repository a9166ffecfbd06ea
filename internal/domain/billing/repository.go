package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/shared"
)

// InvoiceRepository persists invoices with their items and payments
type InvoiceRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)
	// FindAll supports Filters keys: status, contact_id, corporation_id, tax_case_id, overdue (bool), issued (bool)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Invoice, int64, error)
	FindOverdue(ctx context.Context, tenantID uuid.UUID, now time.Time, limit int) ([]Invoice, error)
	Save(ctx context.Context, inv *Invoice) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	NextSequence(ctx context.Context, tenantID uuid.UUID, year int) (int64, error)
}
