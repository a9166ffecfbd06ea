package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/shared"
)

// AppointmentRepository persists appointments
type AppointmentRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Appointment, error)
	// FindAll supports Filters keys: staff_id, contact_id, status, from, to (time.Time)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Appointment, int64, error)
	// FindActiveForStaff lists scheduled/confirmed appointments of a staff member intersecting [from, to)
	FindActiveForStaff(ctx context.Context, tenantID, staffID uuid.UUID, from, to time.Time) ([]Appointment, error)
	// FindReminderCandidates lists active appointments starting in [from, to) with no reminder sent
	FindReminderCandidates(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]Appointment, error)
	Save(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// TaskRepository persists tasks
type TaskRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Task, error)
	// FindAll supports Filters keys: assignee_id, contact_id, tax_case_id, status, overdue (bool)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Task, int64, error)
	FindOverdue(ctx context.Context, tenantID uuid.UUID, now time.Time, limit int) ([]Task, error)
	Save(ctx context.Context, t *Task) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}
