package aiagent

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	schedulingapp "github.com/taxcrm/backend/internal/application/scheduling"
	"github.com/taxcrm/backend/internal/domain/aiagent"
	"github.com/taxcrm/backend/internal/domain/billing"
	"github.com/taxcrm/backend/internal/domain/crm"
	"github.com/taxcrm/backend/internal/domain/scheduling"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/domain/taxcase"
	"github.com/taxcrm/backend/internal/infrastructure/llm"
)

type memStore struct {
	mu          sync.Mutex
	configs     map[uuid.UUID]*aiagent.Config
	runs        []*aiagent.Run
	suggestions map[uuid.UUID]*aiagent.Suggestion
}

func newMemStore() *memStore {
	return &memStore{configs: map[uuid.UUID]*aiagent.Config{}, suggestions: map[uuid.UUID]*aiagent.Suggestion{}}
}

// configs

type memConfigs struct{ *memStore }

func (m memConfigs) FindByTenant(_ context.Context, tenantID uuid.UUID) (*aiagent.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.configs[tenantID]; ok {
		return c, nil
	}
	return nil, shared.ErrNotFound
}

func (m memConfigs) FindEnabled(context.Context) ([]*aiagent.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*aiagent.Config
	for _, c := range m.configs {
		if c.Enabled {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m memConfigs) Save(_ context.Context, c *aiagent.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[c.TenantID] = c
	return nil
}

// runs

type memRuns struct{ *memStore }

func (m memRuns) Save(_ context.Context, r *aiagent.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.runs {
		if existing.ID == r.ID {
			return nil
		}
	}
	m.runs = append(m.runs, r)
	return nil
}

func (m memRuns) FindAll(_ context.Context, tenantID uuid.UUID, _ shared.Filter) ([]aiagent.Run, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []aiagent.Run
	for _, r := range m.runs {
		if r.TenantID == tenantID {
			out = append(out, *r)
		}
	}
	return out, int64(len(out)), nil
}

// suggestions

type memSuggestions struct{ *memStore }

func (m memSuggestions) FindByID(_ context.Context, tenantID, id uuid.UUID) (*aiagent.Suggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.suggestions[id]; ok && s.TenantID == tenantID {
		return s, nil
	}
	return nil, shared.ErrNotFound
}

func (m memSuggestions) FindAll(_ context.Context, tenantID uuid.UUID, filter shared.Filter) ([]aiagent.Suggestion, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, _ := filter.Filters["status"].(string)
	var out []aiagent.Suggestion
	for _, s := range m.suggestions {
		if s.TenantID == tenantID && (status == "" || string(s.Status) == status) {
			out = append(out, *s)
		}
	}
	return out, int64(len(out)), nil
}

func (m memSuggestions) Save(_ context.Context, s *aiagent.Suggestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suggestions[s.ID] = s
	return nil
}

func (m memSuggestions) SaveBatch(_ context.Context, items []*aiagent.Suggestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range items {
		m.suggestions[s.ID] = s
	}
	return nil
}

func (m *memStore) byStatus(status aiagent.SuggestionStatus) []*aiagent.Suggestion {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*aiagent.Suggestion
	for _, s := range m.suggestions {
		if s.Status == status {
			out = append(out, s)
		}
	}
	return out
}

// CRM sources

type stubTasks struct {
	scheduling.TaskRepository
	overdue []scheduling.Task
}

func (s stubTasks) FindOverdue(context.Context, uuid.UUID, time.Time, int) ([]scheduling.Task, error) {
	return s.overdue, nil
}

type stubCases struct {
	taxcase.Repository
	due   []taxcase.TaxCase
	known map[uuid.UUID]*taxcase.TaxCase
}

func (s stubCases) FindDueBetween(context.Context, uuid.UUID, time.Time, time.Time) ([]taxcase.TaxCase, error) {
	return s.due, nil
}

func (s stubCases) FindByID(_ context.Context, _, id uuid.UUID) (*taxcase.TaxCase, error) {
	if tc, ok := s.known[id]; ok {
		return tc, nil
	}
	return nil, shared.ErrNotFound
}

type stubInvoices struct {
	billing.InvoiceRepository
	overdue []billing.Invoice
}

func (s stubInvoices) FindOverdue(context.Context, uuid.UUID, time.Time, int) ([]billing.Invoice, error) {
	return s.overdue, nil
}

type stubContacts struct {
	crm.ContactRepository
	inactive []crm.Contact
	known    map[uuid.UUID]*crm.Contact
}

func (s stubContacts) FindInactiveSince(context.Context, uuid.UUID, time.Time, int) ([]crm.Contact, error) {
	return s.inactive, nil
}

func (s stubContacts) FindByID(_ context.Context, _, id uuid.UUID) (*crm.Contact, error) {
	if c, ok := s.known[id]; ok {
		return c, nil
	}
	return nil, shared.ErrNotFound
}

// fakeCompleter returns a canned reply and remembers the last request
type fakeCompleter struct {
	reply string
	err   error
	last  llm.Request
	calls int
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	f.calls++
	f.last = req
	return f.reply, f.err
}

// recordingTasks captures agent-created tasks
type recordingTasks struct {
	created []schedulingapp.TaskInput
}

func (r *recordingTasks) CreateByAgent(_ context.Context, _ uuid.UUID, input schedulingapp.TaskInput) (*schedulingapp.TaskDTO, error) {
	r.created = append(r.created, input)
	return &schedulingapp.TaskDTO{ID: uuid.New(), Title: input.Title}, nil
}
