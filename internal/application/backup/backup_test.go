package backup

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taxcrm/backend/internal/domain/backup"
	"github.com/taxcrm/backend/internal/domain/identity"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/infrastructure/crypto"
	"github.com/taxcrm/backend/internal/infrastructure/lock"
	"github.com/taxcrm/backend/internal/infrastructure/scheduler"
	"github.com/taxcrm/backend/internal/infrastructure/storage"
	"go.uber.org/zap"
)

const mediaKey = "tenants/t/documents/w2.pdf"

type fixture struct {
	repo     *memRepo
	objects  *storage.MemoryObjectStorage
	cipher   *crypto.FernetCipher
	jobs     *jobQueue
	archives *fakeArchives
	locker   *lock.MemoryLocker
	svc      *Service
	exec     *Executor
	corpID   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	cipher, err := crypto.NewFernetCipher(key)
	require.NoError(t, err)

	f := &fixture{
		repo:     newMemRepo(),
		objects:  storage.NewMemoryObjectStorage(),
		cipher:   cipher,
		jobs:     &jobQueue{},
		archives: &fakeArchives{mediaKey: mediaKey},
		locker:   lock.NewMemoryLocker(),
		corpID:   uuid.New(),
	}
	f.svc = NewService(f.repo, stubCorporations{known: map[uuid.UUID]bool{f.corpID: true}}, f.objects, f.cipher, f.jobs, nil, zap.NewNop())
	f.exec = NewExecutor(f.repo, f.archives, f.objects, f.cipher, f.locker, time.Minute, nil, zap.NewNop())
	return f
}

func (f *fixture) runLast(t *testing.T) error {
	t.Helper()
	job := f.jobs.last()
	require.NotNil(t, job)
	return f.exec.Execute(context.Background(), job)
}

func staff(tenantID uuid.UUID) Requester {
	return Requester{TenantID: tenantID, UserID: uuid.New()}
}

func TestService_CreateAndRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tenantID := uuid.New()
	require.NoError(t, f.objects.PutBytes(ctx, mediaKey, []byte("%PDF-1.7"), "application/pdf"))

	dto, err := f.svc.Create(ctx, staff(tenantID), CreateInput{IncludeMedia: true})
	require.NoError(t, err)
	assert.Equal(t, "pending", dto.Status)
	assert.Equal(t, "tenant", dto.Type)
	assert.Equal(t, "manual", dto.Trigger)

	job := f.jobs.last()
	require.NotNil(t, job)
	assert.Equal(t, scheduler.JobKindBackup, job.Kind)
	assert.Equal(t, dto.ID, job.ResourceID)

	require.NoError(t, f.runLast(t))
	got, err := f.svc.GetByID(ctx, staff(tenantID), dto.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Status)
	assert.Equal(t, map[string]int{"contacts": 1, "documents": 1}, got.Manifest)
	assert.Len(t, got.Checksum, 64)

	sealed, err := f.objects.Get(ctx, "backups/tenant-"+tenantID.String()+"/"+dto.ID.String()+".enc")
	require.NoError(t, err)
	assert.Equal(t, int64(len(sealed)), got.SizeBytes)
	plain, err := f.cipher.Open(sealed)
	require.NoError(t, err)
	archive, err := backup.DecodeArchive(plain)
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF-1.7")), archive.Media[mediaKey])

	t.Run("other tenants cannot see it", func(t *testing.T) {
		_, err := f.svc.GetByID(ctx, staff(uuid.New()), dto.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("download link", func(t *testing.T) {
		link, err := f.svc.DownloadURL(ctx, staff(tenantID), dto.ID)
		require.NoError(t, err)
		assert.Contains(t, link.URL, dto.ID.String())
		assert.Equal(t, "backup-tenant-"+tenantID.String()+"-"+dto.ID.String()+".enc", link.Filename)
	})
}

func TestService_CreateScopes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tenantID := uuid.New()

	_, err := f.svc.Create(ctx, staff(tenantID), CreateInput{Type: "global"})
	var derr *shared.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "FORBIDDEN", derr.Code)

	admin := Requester{TenantID: tenantID, UserID: uuid.New(), Global: true}
	dto, err := f.svc.Create(ctx, admin, CreateInput{Type: "global"})
	require.NoError(t, err)
	assert.Nil(t, dto.TenantID)

	missing := uuid.New()
	_, err = f.svc.Create(ctx, staff(tenantID), CreateInput{CorporationID: &missing})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	dto, err = f.svc.Create(ctx, staff(tenantID), CreateInput{CorporationID: &f.corpID})
	require.NoError(t, err)
	assert.Equal(t, f.corpID, *dto.CorporationID)
}

func TestExecutor_LockHeld(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tenantID := uuid.New()

	dto, err := f.svc.Create(ctx, staff(tenantID), CreateInput{})
	require.NoError(t, err)
	lease, err := f.locker.Acquire(ctx, backup.TenantScope(tenantID, nil).LockName(), time.Minute)
	require.NoError(t, err)

	err = f.runLast(t)
	assert.ErrorIs(t, err, ErrBackupRunning)
	b, _ := f.repo.FindByID(ctx, dto.ID)
	assert.Equal(t, backup.StatusPending, b.Status, "retried later, not failed yet")

	f.exec.OnFinalFailure(ctx, f.jobs.last(), err)
	assert.Equal(t, backup.StatusFailed, b.Status)
	assert.Equal(t, "backup already running", b.Error)

	require.NoError(t, lease.Release(ctx))
	require.NoError(t, f.runLast(t), "a failed backup can be retried")
	assert.Equal(t, backup.StatusCompleted, b.Status)
}

func TestService_Restore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tenantID := uuid.New()
	req := staff(tenantID)
	require.NoError(t, f.objects.PutBytes(ctx, mediaKey, []byte("scan"), "application/pdf"))

	dto, err := f.svc.Create(ctx, req, CreateInput{IncludeMedia: true})
	require.NoError(t, err)
	require.NoError(t, f.runLast(t))
	require.NoError(t, f.objects.Delete(ctx, mediaKey))

	_, err = f.svc.Restore(ctx, req, dto.ID, false)
	assert.ErrorIs(t, err, shared.ErrConfirmationNeeded)

	queued, err := f.svc.Restore(ctx, req, dto.ID, true)
	require.NoError(t, err)
	assert.Equal(t, "queued", queued.RestoreStatus)
	assert.Equal(t, scheduler.JobKindRestore, f.jobs.last().Kind)

	require.NoError(t, f.runLast(t))
	require.Len(t, f.archives.restored, 1)
	assert.Equal(t, tenantID, *f.archives.restored[0].TenantID)
	data, err := f.objects.Get(ctx, mediaKey)
	require.NoError(t, err)
	assert.Equal(t, "scan", string(data))

	got, err := f.svc.GetByID(ctx, req, dto.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", got.RestoreStatus)
	assert.NotNil(t, got.RestoredAt)
}

func TestService_Upload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tenantID := uuid.New()
	req := staff(tenantID)

	seal := func(archive *backup.Archive) []byte {
		plain, err := json.Marshal(archive)
		require.NoError(t, err)
		sealed, err := f.cipher.Seal(plain)
		require.NoError(t, err)
		return sealed
	}
	own := backup.NewArchive(backup.TenantScope(tenantID, nil))
	own.Tables["contacts"] = []backup.Row{{"id": uuid.NewString()}}

	t.Run("restore immediately needs confirmation", func(t *testing.T) {
		_, err := f.svc.Upload(ctx, req, UploadInput{Data: seal(own), RestoreImmediately: true})
		assert.ErrorIs(t, err, shared.ErrConfirmationNeeded)
	})

	t.Run("foreign tenant archive is rejected", func(t *testing.T) {
		foreign := backup.NewArchive(backup.TenantScope(uuid.New(), nil))
		_, err := f.svc.Upload(ctx, req, UploadInput{Data: seal(foreign)})
		var derr *shared.DomainError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "ARCHIVE_TENANT_MISMATCH", derr.Code)
	})

	t.Run("undecryptable file is rejected", func(t *testing.T) {
		_, err := f.svc.Upload(ctx, req, UploadInput{Data: []byte("gAAAAAB-not-a-token")})
		var derr *shared.DomainError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "INVALID_ARCHIVE", derr.Code)
	})

	t.Run("stored and restored", func(t *testing.T) {
		dto, err := f.svc.Upload(ctx, req, UploadInput{Data: seal(own), RestoreImmediately: true, Confirm: true})
		require.NoError(t, err)
		assert.Equal(t, "upload", dto.Trigger)
		assert.Equal(t, "completed", dto.Status)
		assert.Equal(t, "queued", dto.RestoreStatus)
		assert.Equal(t, map[string]int{"contacts": 1}, dto.Manifest)

		require.NoError(t, f.runLast(t))
		require.Len(t, f.archives.restored, 1)
	})
}

func TestService_DeleteInFlight(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tenantID := uuid.New()

	dto, err := f.svc.Create(ctx, staff(tenantID), CreateInput{})
	require.NoError(t, err)
	err = f.svc.Delete(ctx, staff(tenantID), dto.ID)
	var derr *shared.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "BACKUP_IN_PROGRESS", derr.Code)

	require.NoError(t, f.runLast(t))
	require.NoError(t, f.svc.Delete(ctx, staff(tenantID), dto.ID))
	assert.Empty(t, f.objects.Keys("backups/"))
}

func TestAutoBackup(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	tenant, err := identity.NewTenant("Smith CPA", "office@smithcpa.test")
	require.NoError(t, err)
	require.NoError(t, tenant.SetBackupChangeThreshold(100))

	completed := func(f *fixture, at time.Time) *backup.Backup {
		b, err := backup.NewBackup(backup.TenantScope(tenant.ID, nil), backup.TriggerAutomatic, false, nil)
		require.NoError(t, err)
		require.NoError(t, b.Start())
		require.NoError(t, b.Complete(10, "x", nil))
		b.CompletedAt = &at
		b.CreatedAt = at
		require.NoError(t, f.repo.Save(ctx, b))
		return b
	}
	newAuto := func(f *fixture, changes int64) *AutoBackup {
		a := NewAutoBackup(f.repo, stubTenants{tenant: tenant}, fixedChanges(changes), f.svc, backup.DefaultPolicy(), zap.NewNop())
		a.now = func() time.Time { return now }
		return a
	}

	t.Run("no backup yet", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, newAuto(f, 0).RunTenant(ctx, tenant.ID))
		require.Len(t, f.jobs.jobs, 1)
	})

	t.Run("in flight backup is left alone", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Create(ctx, staff(tenant.ID), CreateInput{})
		require.NoError(t, err)
		require.NoError(t, newAuto(f, 0).RunTenant(ctx, tenant.ID))
		assert.Len(t, f.jobs.jobs, 1)
	})

	t.Run("recent backup with few changes", func(t *testing.T) {
		f := newFixture(t)
		completed(f, now.Add(-2*time.Hour))
		require.NoError(t, newAuto(f, 99).RunTenant(ctx, tenant.ID))
		assert.Empty(t, f.jobs.jobs)
	})

	t.Run("change threshold reached", func(t *testing.T) {
		f := newFixture(t)
		completed(f, now.Add(-2*time.Hour))
		require.NoError(t, newAuto(f, 100).RunTenant(ctx, tenant.ID))
		assert.Len(t, f.jobs.jobs, 1)
	})

	t.Run("stale backup", func(t *testing.T) {
		f := newFixture(t)
		completed(f, now.Add(-25*time.Hour))
		require.NoError(t, newAuto(f, 0).RunTenant(ctx, tenant.ID))
		assert.Len(t, f.jobs.jobs, 1)
	})

	t.Run("corporation and uploaded backups do not postpone the next one", func(t *testing.T) {
		f := newFixture(t)
		completed(f, now.Add(-72*time.Hour))

		corpID := uuid.New()
		corp, err := backup.NewBackup(backup.TenantScope(tenant.ID, &corpID), backup.TriggerManual, false, nil)
		require.NoError(t, err)
		require.NoError(t, corp.Start())
		require.NoError(t, corp.Complete(10, "c", nil))
		fresh := now.Add(-time.Hour)
		corp.CompletedAt = &fresh
		require.NoError(t, f.repo.Save(ctx, corp))

		uploaded, err := backup.NewUploadedBackup(backup.TenantScope(tenant.ID, nil), uuid.Nil, 10, "u", nil, false, nil)
		require.NoError(t, err)
		uploaded.CompletedAt = &fresh
		require.NoError(t, f.repo.Save(ctx, uploaded))

		require.NoError(t, newAuto(f, 0).RunTenant(ctx, tenant.ID))
		assert.Len(t, f.jobs.jobs, 1)
	})

	t.Run("old automatic backups are pruned", func(t *testing.T) {
		f := newFixture(t)
		var oldest []uuid.UUID
		for i := 0; i < 9; i++ {
			b := completed(f, now.Add(-time.Duration(i+1)*time.Hour))
			if i >= 7 {
				oldest = append(oldest, b.ID)
			}
		}
		require.NoError(t, newAuto(f, 0).RunTenant(ctx, tenant.ID))
		autos, err := f.repo.FindAutomatic(ctx, tenant.ID)
		require.NoError(t, err)
		assert.Len(t, autos, 7)
		for _, id := range oldest {
			_, err := f.repo.FindByID(ctx, id)
			assert.ErrorIs(t, err, shared.ErrNotFound)
		}
	})
}
