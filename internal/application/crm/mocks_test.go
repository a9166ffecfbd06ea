package crm

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	workflowapp "github.com/taxcrm/backend/internal/application/workflow"
	"github.com/taxcrm/backend/internal/domain/crm"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/domain/workflow"
)

// MockContactRepository is a mock implementation of crm.ContactRepository
type MockContactRepository struct {
	mock.Mock
}

func (m *MockContactRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*crm.Contact, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*crm.Contact), args.Error(1)
}

func (m *MockContactRepository) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]crm.Contact, error) {
	args := m.Called(ctx, tenantID, ids)
	return args.Get(0).([]crm.Contact), args.Error(1)
}

func (m *MockContactRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]crm.Contact, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]crm.Contact), args.Get(1).(int64), args.Error(2)
}

func (m *MockContactRepository) FindByCorporation(ctx context.Context, tenantID, corporationID uuid.UUID) ([]crm.Contact, error) {
	args := m.Called(ctx, tenantID, corporationID)
	return args.Get(0).([]crm.Contact), args.Error(1)
}

func (m *MockContactRepository) FindInactiveSince(ctx context.Context, tenantID uuid.UUID, cutoff time.Time, limit int) ([]crm.Contact, error) {
	args := m.Called(ctx, tenantID, cutoff, limit)
	return args.Get(0).([]crm.Contact), args.Error(1)
}

func (m *MockContactRepository) Save(ctx context.Context, contact *crm.Contact) error {
	return m.Called(ctx, contact).Error(0)
}

func (m *MockContactRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

func (m *MockContactRepository) ExistsByEmail(ctx context.Context, tenantID uuid.UUID, email string, excludeID *uuid.UUID) (bool, error) {
	args := m.Called(ctx, tenantID, email, excludeID)
	return args.Bool(0), args.Error(1)
}

// MockCorporationRepository is a mock implementation of crm.CorporationRepository
type MockCorporationRepository struct {
	mock.Mock
}

func (m *MockCorporationRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*crm.Corporation, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*crm.Corporation), args.Error(1)
}

func (m *MockCorporationRepository) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]crm.Corporation, error) {
	args := m.Called(ctx, tenantID, ids)
	return args.Get(0).([]crm.Corporation), args.Error(1)
}

func (m *MockCorporationRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]crm.Corporation, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]crm.Corporation), args.Get(1).(int64), args.Error(2)
}

func (m *MockCorporationRepository) FindChildren(ctx context.Context, tenantID, parentID uuid.UUID) ([]crm.Corporation, error) {
	args := m.Called(ctx, tenantID, parentID)
	return args.Get(0).([]crm.Corporation), args.Error(1)
}

func (m *MockCorporationRepository) Save(ctx context.Context, corporation *crm.Corporation) error {
	return m.Called(ctx, corporation).Error(0)
}

func (m *MockCorporationRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

// MockApprovalGate is a mock implementation of workflowapp.Gate
type MockApprovalGate struct {
	mock.Mock
}

func (m *MockApprovalGate) Run(ctx context.Context, sub workflowapp.Submission) (*workflow.Approval, error) {
	args := m.Called(ctx, sub)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.Approval), args.Error(1)
}

// prefixCipher tags plaintext instead of encrypting it
type prefixCipher struct{}

func (prefixCipher) EncryptString(_ context.Context, plaintext string) (string, error) {
	return "enc:" + plaintext, nil
}

func (prefixCipher) DecryptString(_ context.Context, ciphertext string) (string, error) {
	return strings.TrimPrefix(ciphertext, "enc:"), nil
}
