package backup

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/backup"
	"github.com/taxcrm/backend/internal/domain/crm"
	"github.com/taxcrm/backend/internal/domain/identity"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/infrastructure/scheduler"
)

type memRepo struct {
	mu      sync.Mutex
	backups map[uuid.UUID]*backup.Backup
}

func newMemRepo() *memRepo {
	return &memRepo{backups: make(map[uuid.UUID]*backup.Backup)}
}

func (r *memRepo) FindByID(_ context.Context, id uuid.UUID) (*backup.Backup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.backups[id]; ok {
		return b, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memRepo) FindAll(_ context.Context, tenantID *uuid.UUID, _ shared.Filter) ([]backup.Backup, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []backup.Backup
	for _, b := range r.backups {
		if tenantID == nil || (b.TenantID != nil && *b.TenantID == *tenantID) {
			out = append(out, *b)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memRepo) FindLastCompleted(_ context.Context, tenantID uuid.UUID) (*backup.Backup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var last *backup.Backup
	for _, b := range r.backups {
		if b.TenantID == nil || *b.TenantID != tenantID || b.Status != backup.StatusCompleted || !b.CoversTenant() {
			continue
		}
		if last == nil || b.CompletedAt.After(*last.CompletedAt) {
			last = b
		}
	}
	if last == nil {
		return nil, shared.ErrNotFound
	}
	return last, nil
}

func (r *memRepo) HasInFlight(_ context.Context, tenantID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.backups {
		if b.TenantID != nil && *b.TenantID == tenantID && b.IsInFlight() {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) FindAutomatic(_ context.Context, tenantID uuid.UUID) ([]backup.Backup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []backup.Backup
	for _, b := range r.backups {
		if b.TenantID != nil && *b.TenantID == tenantID && b.Trigger == backup.TriggerAutomatic && b.Status == backup.StatusCompleted {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memRepo) Save(_ context.Context, b *backup.Backup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backups[b.ID] = b
	return nil
}

func (r *memRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.backups, id)
	return nil
}

// jobQueue collects submitted jobs instead of running them
type jobQueue struct {
	jobs []*scheduler.Job
	err  error
}

func (q *jobQueue) Submit(job *scheduler.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *jobQueue) last() *scheduler.Job {
	if len(q.jobs) == 0 {
		return nil
	}
	return q.jobs[len(q.jobs)-1]
}

// fakeArchives dumps a fixed table set and remembers restored archives
type fakeArchives struct {
	mediaKey string
	restored []*backup.Archive
}

func (f *fakeArchives) Dump(_ context.Context, scope backup.Scope) (*backup.Archive, error) {
	archive := backup.NewArchive(scope)
	archive.Tables["contacts"] = []backup.Row{{"id": uuid.NewString(), "first_name": "Jane"}}
	archive.Tables["documents"] = []backup.Row{{"id": uuid.NewString(), "storage_key": f.mediaKey, "content_type": "application/pdf"}}
	return archive, nil
}

func (f *fakeArchives) Restore(_ context.Context, archive *backup.Archive) error {
	f.restored = append(f.restored, archive)
	return nil
}

type stubCorporations struct {
	crm.CorporationRepository
	known map[uuid.UUID]bool
}

func (s stubCorporations) FindByID(_ context.Context, _, id uuid.UUID) (*crm.Corporation, error) {
	if !s.known[id] {
		return nil, shared.ErrNotFound
	}
	c := &crm.Corporation{}
	c.ID = id
	return c, nil
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

type fixedChanges int64

func (c fixedChanges) CountSince(context.Context, uuid.UUID, time.Time) (int64, error) {
	return int64(c), nil
}
