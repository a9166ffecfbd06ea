package backup

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScope(t *testing.T) {
	tenantID := uuid.New()
	corpID := uuid.New()

	assert.NoError(t, GlobalScope().Validate())
	assert.Equal(t, "global", GlobalScope().Key())
	assert.Equal(t, "backup:global", GlobalScope().LockName())

	s := TenantScope(tenantID, nil)
	assert.NoError(t, s.Validate())
	assert.Equal(t, "tenant-"+tenantID.String(), s.Key())

	s = TenantScope(tenantID, &corpID)
	assert.Equal(t, "tenant-"+tenantID.String()+"-corp-"+corpID.String(), s.Key())

	assert.Error(t, Scope{Type: TypeTenant}.Validate())
	assert.Error(t, Scope{Type: TypeGlobal, TenantID: &tenantID}.Validate())
	assert.Error(t, Scope{Type: "partial"}.Validate())
}

func TestBackup_Lifecycle(t *testing.T) {
	tenantID := uuid.New()
	b, err := NewBackup(TenantScope(tenantID, nil), TriggerManual, true, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, b.Status)
	assert.True(t, b.IsInFlight())
	assert.Equal(t, "backups/tenant-"+tenantID.String()+"/"+b.ID.String()+".enc", b.StorageKey)

	assert.Error(t, b.Complete(1, "x", nil), "cannot complete before start")
	require.NoError(t, b.Start())
	assert.Equal(t, StatusInProgress, b.Status)
	require.NotNil(t, b.StartedAt)

	require.NoError(t, b.Complete(2048, "abc", map[string]int{"contacts": 3}))
	assert.Equal(t, StatusCompleted, b.Status)
	assert.False(t, b.IsInFlight())
	assert.Equal(t, int64(2048), b.SizeBytes)
	assert.Error(t, b.Start())
	assert.Error(t, b.Fail("late"))
}

func TestBackup_FailAndRetry(t *testing.T) {
	b, err := NewBackup(GlobalScope(), TriggerAutomatic, false, nil)
	require.NoError(t, err)
	require.NoError(t, b.Start())
	require.NoError(t, b.Fail(" s3 unavailable "))
	assert.Equal(t, StatusFailed, b.Status)
	assert.Equal(t, "s3 unavailable", b.Error)

	require.NoError(t, b.Start(), "failed backups can be retried")
	assert.Empty(t, b.Error)
}

func TestBackup_InvalidTrigger(t *testing.T) {
	_, err := NewBackup(GlobalScope(), TriggerUpload, false, nil)
	assert.Error(t, err)
}

func TestBackup_Restore(t *testing.T) {
	b, err := NewBackup(TenantScope(uuid.New(), nil), TriggerManual, false, nil)
	require.NoError(t, err)
	assert.Error(t, b.QueueRestore(nil), "only completed backups restore")

	require.NoError(t, b.Start())
	require.NoError(t, b.Complete(10, "c", nil))
	user := uuid.New()
	require.NoError(t, b.QueueRestore(&user))
	assert.Equal(t, RestoreQueued, b.RestoreStatus)
	assert.Error(t, b.QueueRestore(&user), "restore already queued")
	assert.Error(t, b.CompleteRestore())

	require.NoError(t, b.StartRestore())
	require.NoError(t, b.CompleteRestore())
	assert.Equal(t, RestoreCompleted, b.RestoreStatus)
	require.NotNil(t, b.RestoredAt)

	require.NoError(t, b.QueueRestore(&user))
	require.NoError(t, b.StartRestore())
	b.FailRestore("checksum mismatch")
	assert.Equal(t, RestoreFailed, b.RestoreStatus)
	assert.Equal(t, "checksum mismatch", b.RestoreError)
}

func TestNewUploadedBackup(t *testing.T) {
	tenantID := uuid.New()
	id := uuid.New()
	b, err := NewUploadedBackup(TenantScope(tenantID, nil), id, 99, "sum", map[string]int{"tasks": 1}, false, nil)
	require.NoError(t, err)
	assert.Equal(t, id, b.ID)
	assert.Equal(t, TriggerUpload, b.Trigger)
	assert.Equal(t, StatusCompleted, b.Status)
	assert.Contains(t, b.StorageKey, id.String())
	require.NoError(t, b.QueueRestore(nil))
}

func TestBackup_CoversTenant(t *testing.T) {
	tenantID, corpID := uuid.New(), uuid.New()

	full, err := NewBackup(TenantScope(tenantID, nil), TriggerManual, false, nil)
	require.NoError(t, err)
	assert.True(t, full.CoversTenant())

	corp, err := NewBackup(TenantScope(tenantID, &corpID), TriggerAutomatic, false, nil)
	require.NoError(t, err)
	assert.False(t, corp.CoversTenant())

	uploaded, err := NewUploadedBackup(TenantScope(tenantID, nil), uuid.Nil, 1, "sum", nil, false, nil)
	require.NoError(t, err)
	assert.False(t, uploaded.CoversTenant())

	global, err := NewBackup(GlobalScope(), TriggerManual, false, nil)
	require.NoError(t, err)
	assert.False(t, global.CoversTenant())
}

func TestArchive_ValidateFor(t *testing.T) {
	tenantID := uuid.New()
	a := NewArchive(TenantScope(tenantID, nil))
	a.Tables["contacts"] = []Row{{"id": "1"}, {"id": "2"}}
	a.Tables["tasks"] = nil
	assert.Equal(t, map[string]int{"contacts": 2, "tasks": 0}, a.Manifest())

	assert.NoError(t, a.ValidateFor(TenantScope(tenantID, nil)))
	assert.Error(t, a.ValidateFor(TenantScope(uuid.New(), nil)), "tenant mismatch")
	assert.Error(t, a.ValidateFor(GlobalScope()), "type mismatch")

	a.Version = ArchiveVersion + 1
	assert.Error(t, a.ValidateFor(TenantScope(tenantID, nil)))

	g := NewArchive(GlobalScope())
	assert.NoError(t, g.ValidateFor(GlobalScope()))
}

func TestPolicy_Decide(t *testing.T) {
	p := DefaultPolicy()
	now := time.Now()
	recent := now.Add(-2 * time.Hour)
	old := now.Add(-25 * time.Hour)

	tests := []struct {
		name   string
		state  TenantState
		create bool
		reason Reason
	}{
		{"never backed up", TenantState{Threshold: 500}, true, ReasonNoRecentBackup},
		{"too old", TenantState{LastCompletedAt: &old, Threshold: 500}, true, ReasonNoRecentBackup},
		{"many changes", TenantState{LastCompletedAt: &recent, ChangesSince: 500, Threshold: 500}, true, ReasonChangeThreshold},
		{"few changes", TenantState{LastCompletedAt: &recent, ChangesSince: 499, Threshold: 500}, false, ReasonUpToDate},
		{"in flight wins", TenantState{InFlight: true, ChangesSince: 10000, Threshold: 1}, false, ReasonInFlight},
		{"threshold disabled", TenantState{LastCompletedAt: &recent, ChangesSince: 10000}, false, ReasonUpToDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := p.Decide(now, tt.state)
			assert.Equal(t, tt.create, d.Create)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}
}

func TestPolicy_Expired(t *testing.T) {
	p := Policy{MaxAge: time.Hour, RetentionCount: 2}
	base := time.Now()
	var backups []Backup
	for i := 0; i < 4; i++ {
		b, err := NewBackup(TenantScope(uuid.New(), nil), TriggerAutomatic, false, nil)
		require.NoError(t, err)
		b.Status = StatusCompleted
		b.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		backups = append(backups, *b)
	}
	manual, err := NewBackup(GlobalScope(), TriggerManual, false, nil)
	require.NoError(t, err)
	manual.Status = StatusCompleted
	backups = append(backups, *manual)

	expired := p.Expired(backups)
	require.Len(t, expired, 2)
	assert.Equal(t, backups[1].ID, expired[0].ID)
	assert.Equal(t, backups[0].ID, expired[1].ID)

	assert.Nil(t, Policy{RetentionCount: 10}.Expired(backups))
}

func TestArchive_MediaKeysAndDecode(t *testing.T) {
	archive := NewArchive(GlobalScope())
	archive.Tables["documents"] = []Row{
		{"id": uuid.NewString(), "storage_key": "tenants/a/doc1.pdf"},
		{"id": uuid.NewString(), "storage_key": ""},
		{"id": uuid.NewString()},
	}
	assert.Equal(t, []string{"tenants/a/doc1.pdf"}, archive.MediaKeys())

	decoded, err := DecodeArchive([]byte(`{"version":1,"type":"global","tables":{"invoices":[{"total":"10.50","seq":7}]}}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"invoices": 1}, decoded.Manifest())
	assert.Equal(t, json.Number("7"), decoded.Tables["invoices"][0]["seq"])

	_, err = DecodeArchive([]byte("not json"))
	assert.Error(t, err)
}
