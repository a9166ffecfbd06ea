package scheduling

import (
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/scheduling"
)

// AppointmentDTO is the API view of an appointment
type AppointmentDTO struct {
	ID             uuid.UUID  `json:"id"`
	ContactID      uuid.UUID  `json:"contact_id"`
	StaffID        uuid.UUID  `json:"staff_id"`
	Title          string     `json:"title"`
	StartsAt       time.Time  `json:"starts_at"`
	EndsAt         time.Time  `json:"ends_at"`
	Location       string     `json:"location"`
	Kind           string     `json:"kind"`
	Status         string     `json:"status"`
	Notes          string     `json:"notes"`
	ReminderSentAt *time.Time `json:"reminder_sent_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ToAppointmentDTO converts an appointment
func ToAppointmentDTO(a *scheduling.Appointment) AppointmentDTO {
	return AppointmentDTO{
		ID:             a.ID,
		ContactID:      a.ContactID,
		StaffID:        a.StaffID,
		Title:          a.Title,
		StartsAt:       a.StartsAt,
		EndsAt:         a.EndsAt,
		Location:       a.Location,
		Kind:           string(a.Kind),
		Status:         string(a.Status),
		Notes:          a.Notes,
		ReminderSentAt: a.ReminderSentAt,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

// TaskDTO is the API view of a task
type TaskDTO struct {
	ID                uuid.UUID  `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	AssigneeID        *uuid.UUID `json:"assignee_id,omitempty"`
	ContactID         *uuid.UUID `json:"contact_id,omitempty"`
	TaxCaseID         *uuid.UUID `json:"tax_case_id,omitempty"`
	DueDate           *time.Time `json:"due_date,omitempty"`
	Priority          string     `json:"priority"`
	Status            string     `json:"status"`
	Overdue           bool       `json:"overdue"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CreatedByAgent    bool       `json:"created_by_agent"`
	PendingApprovalID *uuid.UUID `json:"pending_approval_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// ToTaskDTO converts a task
func ToTaskDTO(t *scheduling.Task, now time.Time) TaskDTO {
	return TaskDTO{
		ID:             t.ID,
		Title:          t.Title,
		Description:    t.Description,
		AssigneeID:     t.AssigneeID,
		ContactID:      t.ContactID,
		TaxCaseID:      t.TaxCaseID,
		DueDate:        t.DueDate,
		Priority:       string(t.Priority),
		Status:         string(t.Status),
		Overdue:        t.IsOverdue(now),
		CompletedAt:    t.CompletedAt,
		CreatedByAgent: t.CreatedByAgent,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}
