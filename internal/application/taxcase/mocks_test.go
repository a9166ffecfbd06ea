package taxcase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	workflowapp "github.com/taxcrm/backend/internal/application/workflow"
	"github.com/taxcrm/backend/internal/domain/crm"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/domain/taxcase"
	"github.com/taxcrm/backend/internal/domain/workflow"
)

// MockCaseRepository is a mock implementation of taxcase.Repository
type MockCaseRepository struct {
	mock.Mock
}

func (m *MockCaseRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*taxcase.TaxCase, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*taxcase.TaxCase), args.Error(1)
}

func (m *MockCaseRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]taxcase.TaxCase, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]taxcase.TaxCase), args.Get(1).(int64), args.Error(2)
}

func (m *MockCaseRepository) FindDueBetween(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]taxcase.TaxCase, error) {
	args := m.Called(ctx, tenantID, from, to)
	return args.Get(0).([]taxcase.TaxCase), args.Error(1)
}

func (m *MockCaseRepository) Save(ctx context.Context, tc *taxcase.TaxCase) error {
	return m.Called(ctx, tc).Error(0)
}

func (m *MockCaseRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

func (m *MockCaseRepository) NextSequence(ctx context.Context, tenantID uuid.UUID, year int) (int64, error) {
	args := m.Called(ctx, tenantID, year)
	return args.Get(0).(int64), args.Error(1)
}

// stubContacts answers FindByID from a fixed set; other methods are unused here
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

// MockGate is a mock implementation of workflowapp.Gate
type MockGate struct {
	mock.Mock
}

func (m *MockGate) Run(ctx context.Context, sub workflowapp.Submission) (*workflow.Approval, error) {
	args := m.Called(ctx, sub)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.Approval), args.Error(1)
}
