package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/scheduling"
	"gorm.io/gorm"
)

// AppointmentModel is the persistence model for the Appointment aggregate.
type AppointmentModel struct {
	TenantAggregateModel
	ContactID      uuid.UUID                    `gorm:"type:uuid;not null;index"`
	StaffID        uuid.UUID                    `gorm:"type:uuid;not null;index"`
	Title          string                       `gorm:"type:varchar(200);not null"`
	StartsAt       time.Time                    `gorm:"not null;index"`
	EndsAt         time.Time                    `gorm:"not null"`
	Location       string                       `gorm:"type:varchar(300)"`
	Kind           scheduling.AppointmentKind   `gorm:"type:varchar(20);not null"`
	Status         scheduling.AppointmentStatus `gorm:"type:varchar(20);not null;default:'scheduled'"`
	Notes          string                       `gorm:"type:text"`
	ReminderSentAt *time.Time
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

// TableName returns the table name for GORM
func (AppointmentModel) TableName() string {
	return "appointments"
}

// ToDomain converts the persistence model to a domain Appointment.
func (m *AppointmentModel) ToDomain() *scheduling.Appointment {
	a := &scheduling.Appointment{
		ContactID:      m.ContactID,
		StaffID:        m.StaffID,
		Title:          m.Title,
		StartsAt:       m.StartsAt,
		EndsAt:         m.EndsAt,
		Location:       m.Location,
		Kind:           m.Kind,
		Status:         m.Status,
		Notes:          m.Notes,
		ReminderSentAt: m.ReminderSentAt,
	}
	a.TenantAggregateRoot = m.tenantRoot()
	return a
}

// FromDomain populates the persistence model from a domain Appointment.
func (m *AppointmentModel) FromDomain(a *scheduling.Appointment) {
	m.setTenantRoot(a.TenantAggregateRoot)
	m.ContactID = a.ContactID
	m.StaffID = a.StaffID
	m.Title = a.Title
	m.StartsAt = a.StartsAt
	m.EndsAt = a.EndsAt
	m.Location = a.Location
	m.Kind = a.Kind
	m.Status = a.Status
	m.Notes = a.Notes
	m.ReminderSentAt = a.ReminderSentAt
}

// AppointmentModelFromDomain creates a new persistence model from a domain Appointment.
func AppointmentModelFromDomain(a *scheduling.Appointment) *AppointmentModel {
	m := &AppointmentModel{}
	m.FromDomain(a)
	return m
}

// TaskModel is the persistence model for the Task aggregate.
type TaskModel struct {
	TenantAggregateModel
	Title          string                  `gorm:"type:varchar(200);not null"`
	Description    string                  `gorm:"type:text"`
	AssigneeID     *uuid.UUID              `gorm:"type:uuid;index"`
	ContactID      *uuid.UUID              `gorm:"type:uuid"`
	TaxCaseID      *uuid.UUID              `gorm:"type:uuid"`
	DueDate        *time.Time              `gorm:"index"`
	Priority       scheduling.TaskPriority `gorm:"type:varchar(20);not null;default:'normal'"`
	Status         scheduling.TaskStatus   `gorm:"type:varchar(20);not null;default:'todo'"`
	CompletedAt    *time.Time
	CreatedByAgent bool           `gorm:"not null;default:false"`
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

// TableName returns the table name for GORM
func (TaskModel) TableName() string {
	return "tasks"
}

// ToDomain converts the persistence model to a domain Task.
func (m *TaskModel) ToDomain() *scheduling.Task {
	t := &scheduling.Task{
		Title:          m.Title,
		Description:    m.Description,
		AssigneeID:     m.AssigneeID,
		ContactID:      m.ContactID,
		TaxCaseID:      m.TaxCaseID,
		DueDate:        m.DueDate,
		Priority:       m.Priority,
		Status:         m.Status,
		CompletedAt:    m.CompletedAt,
		CreatedByAgent: m.CreatedByAgent,
	}
	t.TenantAggregateRoot = m.tenantRoot()
	return t
}

// FromDomain populates the persistence model from a domain Task.
func (m *TaskModel) FromDomain(t *scheduling.Task) {
	m.setTenantRoot(t.TenantAggregateRoot)
	m.Title = t.Title
	m.Description = t.Description
	m.AssigneeID = t.AssigneeID
	m.ContactID = t.ContactID
	m.TaxCaseID = t.TaxCaseID
	m.DueDate = t.DueDate
	m.Priority = t.Priority
	m.Status = t.Status
	m.CompletedAt = t.CompletedAt
	m.CreatedByAgent = t.CreatedByAgent
}

// TaskModelFromDomain creates a new persistence model from a domain Task.
func TaskModelFromDomain(t *scheduling.Task) *TaskModel {
	m := &TaskModel{}
	m.FromDomain(t)
	return m
}
