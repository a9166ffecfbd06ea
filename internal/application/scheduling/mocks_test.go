package scheduling

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/taxcrm/backend/internal/domain/crm"
	"github.com/taxcrm/backend/internal/domain/identity"
	"github.com/taxcrm/backend/internal/domain/scheduling"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/infrastructure/mail"
)

// MockAppointmentRepository is a mock implementation of scheduling.AppointmentRepository
type MockAppointmentRepository struct {
	mock.Mock
}

func (m *MockAppointmentRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*scheduling.Appointment, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scheduling.Appointment), args.Error(1)
}

func (m *MockAppointmentRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]scheduling.Appointment, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]scheduling.Appointment), args.Get(1).(int64), args.Error(2)
}

func (m *MockAppointmentRepository) FindActiveForStaff(ctx context.Context, tenantID, staffID uuid.UUID, from, to time.Time) ([]scheduling.Appointment, error) {
	args := m.Called(ctx, tenantID, staffID, from, to)
	return args.Get(0).([]scheduling.Appointment), args.Error(1)
}

func (m *MockAppointmentRepository) FindReminderCandidates(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]scheduling.Appointment, error) {
	args := m.Called(ctx, tenantID, from, to)
	return args.Get(0).([]scheduling.Appointment), args.Error(1)
}

func (m *MockAppointmentRepository) Save(ctx context.Context, a *scheduling.Appointment) error {
	return m.Called(ctx, a).Error(0)
}

func (m *MockAppointmentRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

// MockTaskRepository is a mock implementation of scheduling.TaskRepository
type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*scheduling.Task, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scheduling.Task), args.Error(1)
}

func (m *MockTaskRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]scheduling.Task, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]scheduling.Task), args.Get(1).(int64), args.Error(2)
}

func (m *MockTaskRepository) FindOverdue(ctx context.Context, tenantID uuid.UUID, now time.Time, limit int) ([]scheduling.Task, error) {
	args := m.Called(ctx, tenantID, now, limit)
	return args.Get(0).([]scheduling.Task), args.Error(1)
}

func (m *MockTaskRepository) Save(ctx context.Context, t *scheduling.Task) error {
	return m.Called(ctx, t).Error(0)
}

func (m *MockTaskRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

// stubContacts answers FindByID from a fixed set
type stubContacts struct {
	crm.ContactRepository
	known map[uuid.UUID]*crm.Contact
}

func (s stubContacts) FindByID(_ context.Context, _, id uuid.UUID) (*crm.Contact, error) {
	if c, ok := s.known[id]; ok {
		return c, nil
	}
	return nil, shared.ErrNotFound
}

// anyUser reports every staff id as present
type anyUser struct {
	identity.UserRepository
}

func (anyUser) FindByID(_ context.Context, tenantID, id uuid.UUID) (*identity.User, error) {
	u := &identity.User{}
	u.ID = id
	u.TenantID = tenantID
	return u, nil
}

// recordingMailer collects sent messages
type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (r *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}
