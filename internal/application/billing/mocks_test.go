package billing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/taxcrm/backend/internal/domain/billing"
	"github.com/taxcrm/backend/internal/domain/crm"
	"github.com/taxcrm/backend/internal/domain/identity"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/infrastructure/mail"
	"github.com/taxcrm/backend/internal/infrastructure/printing"
)

// MockInvoiceRepository is a mock implementation of billing.InvoiceRepository
type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*billing.Invoice, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]billing.Invoice, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]billing.Invoice), args.Get(1).(int64), args.Error(2)
}

func (m *MockInvoiceRepository) FindOverdue(ctx context.Context, tenantID uuid.UUID, now time.Time, limit int) ([]billing.Invoice, error) {
	args := m.Called(ctx, tenantID, now, limit)
	return args.Get(0).([]billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) Save(ctx context.Context, inv *billing.Invoice) error {
	return m.Called(ctx, inv).Error(0)
}

func (m *MockInvoiceRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

func (m *MockInvoiceRepository) NextSequence(ctx context.Context, tenantID uuid.UUID, year int) (int64, error) {
	args := m.Called(ctx, tenantID, year)
	return args.Get(0).(int64), args.Error(1)
}

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

type stubTenants struct {
	identity.TenantRepository
	tenant *identity.Tenant
}

func (s stubTenants) FindByID(_ context.Context, _ uuid.UUID) (*identity.Tenant, error) {
	return s.tenant, nil
}

// fakePrinter returns the rendered HTML as the "PDF" so tests can inspect it
type fakePrinter struct{}

func (fakePrinter) PrintInvoice(_ context.Context, doc printing.InvoiceDocument) ([]byte, error) {
	html, err := printing.RenderInvoiceHTML(doc)
	return []byte(html), err
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (r *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}
