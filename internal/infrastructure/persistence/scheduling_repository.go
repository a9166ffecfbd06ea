package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/scheduling"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/infrastructure/persistence/models"
	"github.com/taxcrm/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
)

var (
	activeAppointmentStatuses = []scheduling.AppointmentStatus{scheduling.AppointmentScheduled, scheduling.AppointmentConfirmed}
	finishedTaskStatuses      = []scheduling.TaskStatus{scheduling.TaskDone, scheduling.TaskCancelled}
)

// GormAppointmentRepository implements scheduling.AppointmentRepository using GORM
type GormAppointmentRepository struct {
	db *gorm.DB
}

// NewGormAppointmentRepository creates a new GormAppointmentRepository
func NewGormAppointmentRepository(db *gorm.DB) *GormAppointmentRepository {
	return &GormAppointmentRepository{db: db}
}

// FindByID finds an appointment by ID
func (r *GormAppointmentRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*scheduling.Appointment, error) {
	var model models.AppointmentModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindAll lists appointments matching the filter
func (r *GormAppointmentRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]scheduling.Appointment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.AppointmentModel{}).Scopes(tenant.Scope(tenantID))
	query = searchColumns(query, filter.Search, "title", "location")
	for key, value := range filter.Filters {
		switch key {
		case "staff_id":
			query = query.Where("staff_id = ?", value)
		case "contact_id":
			query = query.Where("contact_id = ?", value)
		case "status":
			query = query.Where("status = ?", value)
		case "from":
			query = query.Where("ends_at > ?", value)
		case "to":
			query = query.Where("starts_at < ?", value)
		}
	}
	if filter.OrderBy == "" {
		filter.OrderBy, filter.OrderDir = "starts_at", "asc"
	}
	rows, total, err := findPage[models.AppointmentModel](query, filter, appointmentSort)
	if err != nil {
		return nil, 0, err
	}
	return appointmentsToDomain(rows), total, nil
}

// FindActiveForStaff lists active appointments of a staff member overlapping [from, to)
func (r *GormAppointmentRepository) FindActiveForStaff(ctx context.Context, tenantID, staffID uuid.UUID, from, to time.Time) ([]scheduling.Appointment, error) {
	var rows []models.AppointmentModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).
		Where("staff_id = ? AND status IN ?", staffID, activeAppointmentStatuses).
		Where("starts_at < ? AND ends_at > ?", to, from).
		Order("starts_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return appointmentsToDomain(rows), nil
}

// FindReminderCandidates lists active appointments starting in [from, to) without a reminder
func (r *GormAppointmentRepository) FindReminderCandidates(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]scheduling.Appointment, error) {
	var rows []models.AppointmentModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).
		Where("status IN ? AND reminder_sent_at IS NULL", activeAppointmentStatuses).
		Where("starts_at >= ? AND starts_at < ?", from, to).
		Order("starts_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return appointmentsToDomain(rows), nil
}

// Save creates or updates an appointment
func (r *GormAppointmentRepository) Save(ctx context.Context, a *scheduling.Appointment) error {
	return r.db.WithContext(ctx).Save(models.AppointmentModelFromDomain(a)).Error
}

// Delete soft-deletes an appointment
func (r *GormAppointmentRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return deleteResult(r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Where("id = ?", id).Delete(&models.AppointmentModel{}))
}

func appointmentsToDomain(rows []models.AppointmentModel) []scheduling.Appointment {
	out := make([]scheduling.Appointment, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// GormTaskRepository implements scheduling.TaskRepository using GORM
type GormTaskRepository struct {
	db *gorm.DB
}

// NewGormTaskRepository creates a new GormTaskRepository
func NewGormTaskRepository(db *gorm.DB) *GormTaskRepository {
	return &GormTaskRepository{db: db}
}

// FindByID finds a task by ID
func (r *GormTaskRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*scheduling.Task, error) {
	var model models.TaskModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindAll lists tasks matching the filter
func (r *GormTaskRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]scheduling.Task, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.TaskModel{}).Scopes(tenant.Scope(tenantID))
	query = searchColumns(query, filter.Search, "title", "description")
	for key, value := range filter.Filters {
		switch key {
		case "assignee_id":
			query = query.Where("assignee_id = ?", value)
		case "contact_id":
			query = query.Where("contact_id = ?", value)
		case "tax_case_id":
			query = query.Where("tax_case_id = ?", value)
		case "status":
			query = query.Where("status = ?", value)
		case "overdue":
			if value == true {
				query = query.Where("due_date < ? AND status NOT IN ?", time.Now(), finishedTaskStatuses)
			}
		}
	}
	rows, total, err := findPage[models.TaskModel](query, filter, taskSort)
	if err != nil {
		return nil, 0, err
	}
	return tasksToDomain(rows), total, nil
}

// FindOverdue lists unfinished tasks whose due date has passed
func (r *GormTaskRepository) FindOverdue(ctx context.Context, tenantID uuid.UUID, now time.Time, limit int) ([]scheduling.Task, error) {
	var rows []models.TaskModel
	query := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).
		Where("due_date < ? AND status NOT IN ?", now, finishedTaskStatuses).
		Order("due_date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return tasksToDomain(rows), nil
}

// Save creates or updates a task
func (r *GormTaskRepository) Save(ctx context.Context, t *scheduling.Task) error {
	return r.db.WithContext(ctx).Save(models.TaskModelFromDomain(t)).Error
}

// Delete soft-deletes a task
func (r *GormTaskRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return deleteResult(r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Where("id = ?", id).Delete(&models.TaskModel{}))
}

func tasksToDomain(rows []models.TaskModel) []scheduling.Task {
	out := make([]scheduling.Task, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

var (
	_ scheduling.AppointmentRepository = (*GormAppointmentRepository)(nil)
	_ scheduling.TaskRepository        = (*GormTaskRepository)(nil)
)
