package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/shared"
)

// AppointmentStatus is the lifecycle of an appointment
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentNoShow    AppointmentStatus = "no_show"
)

var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentScheduled: {AppointmentConfirmed, AppointmentCompleted, AppointmentCancelled, AppointmentNoShow},
	AppointmentConfirmed: {AppointmentCompleted, AppointmentCancelled, AppointmentNoShow},
}

// AppointmentKind is how the meeting happens
type AppointmentKind string

const (
	KindInPerson AppointmentKind = "in_person"
	KindPhone    AppointmentKind = "phone"
	KindVideo    AppointmentKind = "video"
)

const AggregateTypeAppointment = "appointment"

// ErrOverlap is returned when a staff member is double-booked
var ErrOverlap = shared.NewDomainError("APPOINTMENT_OVERLAP", "Staff member already has an appointment in this time slot")

// Appointment is a meeting between a staff member and a contact
type Appointment struct {
	shared.TenantAggregateRoot
	ContactID      uuid.UUID
	StaffID        uuid.UUID
	Title          string
	StartsAt       time.Time
	EndsAt         time.Time
	Location       string
	Kind           AppointmentKind
	Status         AppointmentStatus
	Notes          string
	ReminderSentAt *time.Time
}

// NewAppointment schedules a meeting
func NewAppointment(tenantID, contactID, staffID uuid.UUID, title string, startsAt, endsAt time.Time, kind AppointmentKind) (*Appointment, error) {
	a := &Appointment{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ContactID:           contactID,
		StaffID:             staffID,
		Status:              AppointmentScheduled,
	}
	if err := a.setDetails(title, startsAt, endsAt, kind); err != nil {
		return nil, err
	}
	a.AddDomainEvent(shared.NewRecordEvent(AggregateTypeAppointment, "created", a.ID, tenantID, map[string]any{
		"starts_at": startsAt.Format(time.RFC3339), "staff_id": staffID.String(),
	}))
	return a, nil
}

// Reschedule changes time, title and kind. Completed or cancelled appointments are frozen.
func (a *Appointment) Reschedule(title string, startsAt, endsAt time.Time, kind AppointmentKind, location, notes string) error {
	if !a.IsActive() {
		return shared.NewDomainError("APPOINTMENT_CLOSED", "Appointment can no longer be changed")
	}
	moved := !startsAt.Equal(a.StartsAt)
	if err := a.setDetails(title, startsAt, endsAt, kind); err != nil {
		return err
	}
	a.Location = strings.TrimSpace(location)
	a.Notes = notes
	if moved {
		a.ReminderSentAt = nil
	}
	a.IncrementVersion()
	a.AddDomainEvent(shared.NewRecordEvent(AggregateTypeAppointment, "updated", a.ID, a.TenantID, map[string]any{
		"starts_at": startsAt.Format(time.RFC3339),
	}))
	return nil
}

// ChangeStatus moves the appointment along its lifecycle
func (a *Appointment) ChangeStatus(next AppointmentStatus) error {
	for _, s := range appointmentTransitions[a.Status] {
		if s == next {
			old := a.Status
			a.Status = next
			a.IncrementVersion()
			a.AddDomainEvent(shared.NewRecordEvent(AggregateTypeAppointment, "status_changed", a.ID, a.TenantID, map[string]any{
				"status": []string{string(old), string(next)},
			}))
			return nil
		}
	}
	return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("Cannot move appointment from %s to %s", a.Status, next))
}

// Overlaps reports whether two active appointments of the same staff member intersect
func (a *Appointment) Overlaps(other *Appointment) bool {
	if a.ID == other.ID || a.StaffID != other.StaffID || !a.IsActive() || !other.IsActive() {
		return false
	}
	return a.StartsAt.Before(other.EndsAt) && other.StartsAt.Before(a.EndsAt)
}

// IsActive reports scheduled or confirmed
func (a *Appointment) IsActive() bool {
	return a.Status == AppointmentScheduled || a.Status == AppointmentConfirmed
}

// NeedsReminder reports whether a reminder is due within window of now
func (a *Appointment) NeedsReminder(now time.Time, window time.Duration) bool {
	if !a.IsActive() || a.ReminderSentAt != nil {
		return false
	}
	return a.StartsAt.After(now) && !a.StartsAt.After(now.Add(window))
}

// MarkReminderSent records that the reminder email went out
func (a *Appointment) MarkReminderSent(at time.Time) {
	a.ReminderSentAt = &at
	a.IncrementVersion()
}

func (a *Appointment) setDetails(title string, startsAt, endsAt time.Time, kind AppointmentKind) error {
	title = strings.TrimSpace(title)
	if title == "" || len(title) > 200 {
		return shared.NewDomainError("INVALID_TITLE", "Title must be 1-200 characters")
	}
	if !endsAt.After(startsAt) {
		return shared.NewDomainError("INVALID_TIME_RANGE", "Appointment must end after it starts")
	}
	if endsAt.Sub(startsAt) > 12*time.Hour {
		return shared.NewDomainError("INVALID_TIME_RANGE", "Appointment cannot be longer than 12 hours")
	}
	switch kind {
	case KindInPerson, KindPhone, KindVideo:
	default:
		return shared.NewDomainError("INVALID_KIND", "Unknown appointment kind: "+string(kind))
	}
	a.Title = title
	a.StartsAt = startsAt
	a.EndsAt = endsAt
	a.Kind = kind
	return nil
}
