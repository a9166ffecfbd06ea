package document

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/taxcrm/backend/internal/domain/crm"
	"github.com/taxcrm/backend/internal/domain/document"
	"github.com/taxcrm/backend/internal/domain/identity"
	"github.com/taxcrm/backend/internal/domain/shared"
)

// MockFolderRepository is a mock implementation of document.FolderRepository
type MockFolderRepository struct {
	mock.Mock
}

func (m *MockFolderRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*document.Folder, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Folder), args.Error(1)
}

func (m *MockFolderRepository) FindByOwner(ctx context.Context, tenantID uuid.UUID, owner document.Owner) ([]document.Folder, error) {
	args := m.Called(ctx, tenantID, owner)
	return args.Get(0).([]document.Folder), args.Error(1)
}

func (m *MockFolderRepository) FindDepartmentRoot(ctx context.Context, tenantID, departmentID uuid.UUID, owner document.Owner) (*document.Folder, error) {
	args := m.Called(ctx, tenantID, departmentID, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Folder), args.Error(1)
}

func (m *MockFolderRepository) FindClientRoot(ctx context.Context, tenantID uuid.UUID, owner document.Owner, name string) (*document.Folder, error) {
	args := m.Called(ctx, tenantID, owner, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Folder), args.Error(1)
}

func (m *MockFolderRepository) Save(ctx context.Context, folder *document.Folder) error {
	return m.Called(ctx, folder).Error(0)
}

func (m *MockFolderRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

func (m *MockFolderRepository) IsEmpty(ctx context.Context, tenantID, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, tenantID, id)
	return args.Bool(0), args.Error(1)
}

// MockDocumentRepository is a mock implementation of document.Repository
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*document.Document, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Document), args.Error(1)
}

func (m *MockDocumentRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]document.Document, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]document.Document), args.Get(1).(int64), args.Error(2)
}

func (m *MockDocumentRepository) Save(ctx context.Context, doc *document.Document) error {
	return m.Called(ctx, doc).Error(0)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

// anyContact accepts every contact lookup
type anyContact struct {
	crm.ContactRepository
}

func (anyContact) FindByID(_ context.Context, tenantID, id uuid.UUID) (*crm.Contact, error) {
	c, err := crm.NewContact(tenantID, "Jane", "Doe", "")
	if err != nil {
		return nil, err
	}
	c.ID = id
	return c, nil
}

// stubDepartments serves a single department
type stubDepartments struct {
	identity.DepartmentRepository
	dept *identity.Department
}

func (s stubDepartments) FindByID(_ context.Context, _, id uuid.UUID) (*identity.Department, error) {
	if s.dept != nil && s.dept.ID == id {
		return s.dept, nil
	}
	return nil, shared.ErrNotFound
}
