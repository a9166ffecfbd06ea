package portal

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/crm"
	"github.com/taxcrm/backend/internal/domain/identity"
	"github.com/taxcrm/backend/internal/domain/portal"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/infrastructure/mail"
)

// memAccessRepo is an in-memory portal.AccessRepository
type memAccessRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*portal.Access
}

func newMemAccessRepo() *memAccessRepo {
	return &memAccessRepo{rows: map[uuid.UUID]*portal.Access{}}
}

func (r *memAccessRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*portal.Access, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.rows[id]; ok && a.TenantID == tenantID {
		return a, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memAccessRepo) FindByEmail(_ context.Context, tenantID uuid.UUID, email string) (*portal.Access, error) {
	return r.find(func(a *portal.Access) bool { return a.TenantID == tenantID && a.Email == email })
}

func (r *memAccessRepo) FindByContact(_ context.Context, tenantID, contactID uuid.UUID) (*portal.Access, error) {
	return r.find(func(a *portal.Access) bool { return a.TenantID == tenantID && a.ContactID == contactID })
}

func (r *memAccessRepo) FindAll(_ context.Context, tenantID uuid.UUID) ([]portal.Access, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []portal.Access
	for _, a := range r.rows {
		if a.TenantID == tenantID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memAccessRepo) Save(_ context.Context, a *portal.Access) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[a.ID] = a
	return nil
}

func (r *memAccessRepo) find(match func(*portal.Access) bool) (*portal.Access, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.rows {
		if match(a) {
			return a, nil
		}
	}
	return nil, shared.ErrNotFound
}

// memMessages is an in-memory portal.MessageRepository with a tenant-wide seq
type memMessages struct {
	mu   sync.Mutex
	seq  int64
	msgs []portal.Message
}

func (r *memMessages) Create(_ context.Context, m *portal.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	m.Seq = r.seq
	r.msgs = append(r.msgs, *m)
	return nil
}

func (r *memMessages) ListAfter(_ context.Context, tenantID, contactID uuid.UUID, after int64, limit int) ([]portal.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []portal.Message
	for _, m := range r.msgs {
		if m.TenantID == tenantID && m.ContactID == contactID && m.Seq > after {
			out = append(out, m)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memMessages) MarkRead(_ context.Context, tenantID, contactID uuid.UUID, reader portal.SenderKind, upto int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var n int64
	for i := range r.msgs {
		m := &r.msgs[i]
		if m.TenantID == tenantID && m.ContactID == contactID && m.SenderKind != reader && m.Seq <= upto && m.ReadAt == nil {
			m.ReadAt = &now
			n++
		}
	}
	return n, nil
}

func (r *memMessages) Conversations(_ context.Context, tenantID uuid.UUID, limit int) ([]portal.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	last := map[uuid.UUID]portal.Conversation{}
	for _, m := range r.msgs {
		if m.TenantID != tenantID {
			continue
		}
		c := last[m.ContactID]
		c.ContactID = m.ContactID
		c.LastMessage = m
		if m.SenderKind == portal.SenderClient && m.ReadAt == nil {
			c.UnreadCount++
		}
		last[m.ContactID] = c
	}
	out := make([]portal.Conversation, 0, len(last))
	for _, c := range last {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessage.Seq > out[j].LastMessage.Seq })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memMessages) UnreadCount(_ context.Context, tenantID, contactID uuid.UUID, reader portal.SenderKind) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.msgs {
		if m.TenantID == tenantID && m.ContactID == contactID && m.SenderKind != reader && m.ReadAt == nil {
			n++
		}
	}
	return n, nil
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

func (s stubTenants) FindByID(_ context.Context, id uuid.UUID) (*identity.Tenant, error) {
	if s.tenant.ID != id {
		return nil, shared.ErrNotFound
	}
	return s.tenant, nil
}

func (s stubTenants) FindBySlug(_ context.Context, slug string) (*identity.Tenant, error) {
	if s.tenant.Slug != slug {
		return nil, shared.ErrNotFound
	}
	return s.tenant, nil
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

func (r *recordingMailer) last() mail.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent[len(r.sent)-1]
}
