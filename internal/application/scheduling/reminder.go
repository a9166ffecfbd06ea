package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/crm"
	"github.com/taxcrm/backend/internal/domain/scheduling"
	"github.com/taxcrm/backend/internal/infrastructure/mail"
	"go.uber.org/zap"
)

// DefaultReminderWindow is how far ahead appointment reminders are sent
const DefaultReminderWindow = 24 * time.Hour

// ReminderJob emails contacts about upcoming appointments
type ReminderJob struct {
	appointmentRepo scheduling.AppointmentRepository
	contactRepo     crm.ContactRepository
	mailer          mail.Sender
	window          time.Duration
	logger          *zap.Logger
	now             func() time.Time
}

// NewReminderJob creates the job. A non-positive window falls back to DefaultReminderWindow.
func NewReminderJob(
	appointmentRepo scheduling.AppointmentRepository,
	contactRepo crm.ContactRepository,
	mailer mail.Sender,
	window time.Duration,
	logger *zap.Logger,
) *ReminderJob {
	if window <= 0 {
		window = DefaultReminderWindow
	}
	return &ReminderJob{
		appointmentRepo: appointmentRepo,
		contactRepo:     contactRepo,
		mailer:          mailer,
		window:          window,
		logger:          logger,
		now:             time.Now,
	}
}

// RunTenant sends the due reminders of one tenant. It has the scheduler.TenantTask
// signature. An appointment whose email fails is left unmarked and retried on the next run.
func (j *ReminderJob) RunTenant(ctx context.Context, tenantID uuid.UUID) error {
	now := j.now()
	candidates, err := j.appointmentRepo.FindReminderCandidates(ctx, tenantID, now, now.Add(j.window))
	if err != nil {
		return fmt.Errorf("failed to load reminder candidates: %w", err)
	}
	log := j.logger.With(zap.String("tenant_id", tenantID.String()))

	sent := 0
	var errs []error
	for i := range candidates {
		appt := &candidates[i]
		if !appt.NeedsReminder(now, j.window) {
			continue
		}
		if err := j.remind(ctx, appt); err != nil {
			log.Warn("Appointment reminder failed", zap.String("appointment_id", appt.ID.String()), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		sent++
	}
	if sent > 0 {
		log.Info("Appointment reminders sent", zap.Int("count", sent))
	}
	return errors.Join(errs...)
}

func (j *ReminderJob) remind(ctx context.Context, appt *scheduling.Appointment) error {
	contact, err := j.contactRepo.FindByID(ctx, appt.TenantID, appt.ContactID)
	if err != nil {
		return err
	}
	if contact.Email == "" {
		// nothing to send; mark it so the sweep stops picking it up
		appt.MarkReminderSent(j.now())
		return j.appointmentRepo.Save(ctx, appt)
	}
	if err := j.mailer.Send(ctx, mail.Message{
		To:      []string{contact.Email},
		Subject: "Reminder: " + appt.Title,
		Body:    reminderBody(contact, appt),
	}); err != nil {
		return err
	}
	appt.MarkReminderSent(j.now())
	return j.appointmentRepo.Save(ctx, appt)
}

func reminderBody(contact *crm.Contact, appt *scheduling.Appointment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", contact.DisplayName())
	fmt.Fprintf(&b, "This is a reminder of your appointment \"%s\" on %s.\n",
		appt.Title, appt.StartsAt.Format("Monday, January 2, 2006 at 3:04 PM MST"))
	switch appt.Kind {
	case scheduling.KindPhone:
		b.WriteString("We will call you at the number on file.\n")
	case scheduling.KindVideo:
		b.WriteString("A video link will be shared before the meeting.\n")
	default:
		if appt.Location != "" {
			fmt.Fprintf(&b, "Location: %s\n", appt.Location)
		}
	}
	b.WriteString("\nPlease contact us if you need to reschedule.\n")
	return b.String()
}
