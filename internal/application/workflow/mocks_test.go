package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/taxcrm/backend/internal/domain/scheduling"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/domain/workflow"
)

// MockDefinitionRepository is a mock implementation of workflow.DefinitionRepository
type MockDefinitionRepository struct {
	mock.Mock
}

func (m *MockDefinitionRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*workflow.Definition, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.Definition), args.Error(1)
}

func (m *MockDefinitionRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]workflow.Definition, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]workflow.Definition), args.Get(1).(int64), args.Error(2)
}

func (m *MockDefinitionRepository) FindActive(ctx context.Context, tenantID uuid.UUID, module workflow.Module, trigger workflow.Trigger) ([]*workflow.Definition, error) {
	args := m.Called(ctx, tenantID, module, trigger)
	return args.Get(0).([]*workflow.Definition), args.Error(1)
}

func (m *MockDefinitionRepository) Save(ctx context.Context, d *workflow.Definition) error {
	return m.Called(ctx, d).Error(0)
}

func (m *MockDefinitionRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

// MockApprovalRepository is a mock implementation of workflow.ApprovalRepository
type MockApprovalRepository struct {
	mock.Mock
}

func (m *MockApprovalRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*workflow.Approval, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.Approval), args.Error(1)
}

func (m *MockApprovalRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]workflow.Approval, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]workflow.Approval), args.Get(1).(int64), args.Error(2)
}

func (m *MockApprovalRepository) FindPendingForRecord(ctx context.Context, tenantID uuid.UUID, module workflow.Module, trigger workflow.Trigger, recordID uuid.UUID) (*workflow.Approval, error) {
	args := m.Called(ctx, tenantID, module, trigger, recordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.Approval), args.Error(1)
}

func (m *MockApprovalRepository) Save(ctx context.Context, a *workflow.Approval) error {
	return m.Called(ctx, a).Error(0)
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

// MockRecordUpdater records update_field calls
type MockRecordUpdater struct {
	mock.Mock
}

func (m *MockRecordUpdater) UpdateField(ctx context.Context, tenantID, recordID uuid.UUID, field, value string) error {
	return m.Called(ctx, tenantID, recordID, field, value).Error(0)
}

// MockRecipientResolver resolves placeholders
type MockRecipientResolver struct {
	mock.Mock
}

func (m *MockRecipientResolver) Resolve(ctx context.Context, tenantID uuid.UUID, placeholder string, snapshot map[string]any) ([]string, error) {
	args := m.Called(ctx, tenantID, placeholder, snapshot)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// recordingPublisher captures published events
type recordingPublisher struct {
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}
