package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/crm"
	"github.com/taxcrm/backend/internal/domain/identity"
	"github.com/taxcrm/backend/internal/domain/scheduling"
	"github.com/taxcrm/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// AppointmentService books and manages appointments
type AppointmentService struct {
	appointmentRepo scheduling.AppointmentRepository
	contactRepo     crm.ContactRepository
	userRepo        identity.UserRepository
	events          shared.EventPublisher
	logger          *zap.Logger
}

// NewAppointmentService creates a new appointment service
func NewAppointmentService(
	appointmentRepo scheduling.AppointmentRepository,
	contactRepo crm.ContactRepository,
	userRepo identity.UserRepository,
	events shared.EventPublisher,
	logger *zap.Logger,
) *AppointmentService {
	return &AppointmentService{
		appointmentRepo: appointmentRepo,
		contactRepo:     contactRepo,
		userRepo:        userRepo,
		events:          events,
		logger:          logger,
	}
}

// AppointmentInput contains the editable appointment fields
type AppointmentInput struct {
	ContactID uuid.UUID
	StaffID   uuid.UUID
	Title     string
	StartsAt  time.Time
	EndsAt    time.Time
	Kind      string
	Location  string
	Notes     string
}

// Create books an appointment after checking the staff member is free
func (s *AppointmentService) Create(ctx context.Context, tenantID, userID uuid.UUID, input AppointmentInput) (*AppointmentDTO, error) {
	if _, err := s.contactRepo.FindByID(ctx, tenantID, input.ContactID); err != nil {
		return nil, err
	}
	if err := s.checkStaff(ctx, tenantID, input.StaffID); err != nil {
		return nil, err
	}
	kind := scheduling.AppointmentKind(input.Kind)
	if kind == "" {
		kind = scheduling.KindInPerson
	}
	appt, err := scheduling.NewAppointment(tenantID, input.ContactID, input.StaffID, input.Title, input.StartsAt, input.EndsAt, kind)
	if err != nil {
		return nil, err
	}
	appt.Location = input.Location
	appt.Notes = input.Notes
	appt.SetCreatedBy(userID)
	if err := s.checkOverlap(ctx, appt); err != nil {
		return nil, err
	}
	return s.save(ctx, appt)
}

// GetByID returns one appointment
func (s *AppointmentService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*AppointmentDTO, error) {
	appt, err := s.appointmentRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	dto := ToAppointmentDTO(appt)
	return &dto, nil
}

// List returns appointments matching the filter (staff_id, contact_id, status, from, to)
func (s *AppointmentService) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]AppointmentDTO, int64, error) {
	appts, total, err := s.appointmentRepo.FindAll(ctx, tenantID, filter.Normalize())
	if err != nil {
		return nil, 0, err
	}
	return toAppointmentDTOs(appts), total, nil
}

// ListForContact returns a contact's appointments for the portal
func (s *AppointmentService) ListForContact(ctx context.Context, tenantID, contactID uuid.UUID, filter shared.Filter) ([]AppointmentDTO, int64, error) {
	filter = filter.Normalize()
	filter.Filters["contact_id"] = contactID.String()
	appts, total, err := s.appointmentRepo.FindAll(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	return toAppointmentDTOs(appts), total, nil
}

// Update reschedules an appointment. The contact stays fixed; the staff member may change.
func (s *AppointmentService) Update(ctx context.Context, tenantID, id uuid.UUID, input AppointmentInput) (*AppointmentDTO, error) {
	appt, err := s.appointmentRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if input.StaffID != uuid.Nil && input.StaffID != appt.StaffID {
		if !appt.IsActive() {
			return nil, shared.NewDomainError("APPOINTMENT_CLOSED", "Appointment can no longer be changed")
		}
		if err := s.checkStaff(ctx, tenantID, input.StaffID); err != nil {
			return nil, err
		}
		appt.StaffID = input.StaffID
	}
	kind := scheduling.AppointmentKind(input.Kind)
	if kind == "" {
		kind = appt.Kind
	}
	if input.Title == "" {
		input.Title = appt.Title
	}
	if err := appt.Reschedule(input.Title, input.StartsAt, input.EndsAt, kind, input.Location, input.Notes); err != nil {
		return nil, err
	}
	if err := s.checkOverlap(ctx, appt); err != nil {
		return nil, err
	}
	return s.save(ctx, appt)
}

// ChangeStatus confirms, completes, cancels or marks a no-show
func (s *AppointmentService) ChangeStatus(ctx context.Context, tenantID, id uuid.UUID, status string) (*AppointmentDTO, error) {
	appt, err := s.appointmentRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := appt.ChangeStatus(scheduling.AppointmentStatus(status)); err != nil {
		return nil, err
	}
	return s.save(ctx, appt)
}

// Delete removes an appointment
func (s *AppointmentService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	appt, err := s.appointmentRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := s.appointmentRepo.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	appt.AddDomainEvent(shared.NewRecordEvent(scheduling.AggregateTypeAppointment, "deleted", appt.ID, tenantID, map[string]any{"title": appt.Title}))
	s.publish(ctx, appt)
	return nil
}

func (s *AppointmentService) checkStaff(ctx context.Context, tenantID, staffID uuid.UUID) error {
	_, err := s.userRepo.FindByID(ctx, tenantID, staffID)
	return err
}

func (s *AppointmentService) checkOverlap(ctx context.Context, appt *scheduling.Appointment) error {
	busy, err := s.appointmentRepo.FindActiveForStaff(ctx, appt.TenantID, appt.StaffID, appt.StartsAt, appt.EndsAt)
	if err != nil {
		return err
	}
	for i := range busy {
		if appt.Overlaps(&busy[i]) {
			return scheduling.ErrOverlap
		}
	}
	return nil
}

func (s *AppointmentService) save(ctx context.Context, appt *scheduling.Appointment) (*AppointmentDTO, error) {
	if err := s.appointmentRepo.Save(ctx, appt); err != nil {
		return nil, err
	}
	s.publish(ctx, appt)
	dto := ToAppointmentDTO(appt)
	return &dto, nil
}

func (s *AppointmentService) publish(ctx context.Context, appt *scheduling.Appointment) {
	if err := shared.PublishAndClear(ctx, s.events, appt); err != nil {
		s.logger.Warn("Failed to publish appointment events", zap.Error(err))
	}
}

func toAppointmentDTOs(appts []scheduling.Appointment) []AppointmentDTO {
	out := make([]AppointmentDTO, len(appts))
	for i := range appts {
		out[i] = ToAppointmentDTO(&appts[i])
	}
	return out
}
