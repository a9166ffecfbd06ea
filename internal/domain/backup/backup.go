package backup

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/shared"
)

// Type is the breadth of a backup
type Type string

const (
	TypeGlobal Type = "global"
	TypeTenant Type = "tenant"
)

// Trigger records how a backup was started
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerAutomatic Trigger = "automatic"
	TriggerUpload    Trigger = "upload"
)

// Status is the state of the backup job
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// RestoreStatus is the state of the latest restore from this backup
type RestoreStatus string

const (
	RestoreNone      RestoreStatus = ""
	RestoreQueued    RestoreStatus = "queued"
	RestoreRunning   RestoreStatus = "running"
	RestoreCompleted RestoreStatus = "completed"
	RestoreFailed    RestoreStatus = "failed"
)

const AggregateType = "backup"

// Scope selects the rows a backup covers
type Scope struct {
	Type          Type
	TenantID      *uuid.UUID
	CorporationID *uuid.UUID
}

// GlobalScope covers every tenant
func GlobalScope() Scope {
	return Scope{Type: TypeGlobal}
}

// TenantScope covers one tenant, optionally narrowed to a corporation
func TenantScope(tenantID uuid.UUID, corporationID *uuid.UUID) Scope {
	return Scope{Type: TypeTenant, TenantID: &tenantID, CorporationID: corporationID}
}

// Validate checks the scope fields agree with the type
func (s Scope) Validate() error {
	switch s.Type {
	case TypeGlobal:
		if s.TenantID != nil || s.CorporationID != nil {
			return shared.NewDomainError("INVALID_BACKUP_SCOPE", "A global backup cannot be limited to a tenant or corporation")
		}
	case TypeTenant:
		if s.TenantID == nil || *s.TenantID == uuid.Nil {
			return shared.NewDomainError("INVALID_BACKUP_SCOPE", "A tenant backup requires a tenant")
		}
	default:
		return shared.NewDomainError("INVALID_BACKUP_SCOPE", "Unknown backup type: "+string(s.Type))
	}
	return nil
}

// Key identifies the scope in lock names and object keys
func (s Scope) Key() string {
	if s.Type == TypeGlobal || s.TenantID == nil {
		return "global"
	}
	key := "tenant-" + s.TenantID.String()
	if s.CorporationID != nil {
		key += "-corp-" + s.CorporationID.String()
	}
	return key
}

// LockName is the distributed lock guarding jobs on this scope
func (s Scope) LockName() string {
	return "backup:" + s.Key()
}

// Backup is one encrypted archive of a scope and its restore history
type Backup struct {
	shared.BaseAggregateRoot
	Type          Type
	TenantID      *uuid.UUID
	CorporationID *uuid.UUID
	IncludeMedia  bool
	Trigger       Trigger
	Status        Status
	StorageKey    string
	SizeBytes     int64
	Checksum      string
	Error         string
	Manifest      map[string]int
	StartedAt     *time.Time
	CompletedAt   *time.Time
	CreatedBy     *uuid.UUID
	RestoreStatus RestoreStatus
	RestoreError  string
	RestoredAt    *time.Time
	RestoredBy    *uuid.UUID
}

// NewBackup creates a pending backup for the scope
func NewBackup(scope Scope, trigger Trigger, includeMedia bool, createdBy *uuid.UUID) (*Backup, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if trigger != TriggerManual && trigger != TriggerAutomatic {
		return nil, shared.NewDomainError("INVALID_BACKUP_TRIGGER", "Unknown backup trigger: "+string(trigger))
	}
	b := &Backup{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Type:              scope.Type,
		TenantID:          scope.TenantID,
		CorporationID:     scope.CorporationID,
		IncludeMedia:      includeMedia,
		Trigger:           trigger,
		Status:            StatusPending,
		CreatedBy:         createdBy,
	}
	b.StorageKey = ObjectKey(scope, b.ID)
	b.record("created", map[string]any{"type": string(scope.Type), "trigger": string(trigger), "include_media": includeMedia})
	return b, nil
}

// NewUploadedBackup records an externally produced archive that has already been validated and stored
func NewUploadedBackup(scope Scope, id uuid.UUID, size int64, checksum string, manifest map[string]int, includeMedia bool, createdBy *uuid.UUID) (*Backup, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	now := time.Now()
	b := &Backup{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Type:              scope.Type,
		TenantID:          scope.TenantID,
		CorporationID:     scope.CorporationID,
		IncludeMedia:      includeMedia,
		Trigger:           TriggerUpload,
		Status:            StatusCompleted,
		SizeBytes:         size,
		Checksum:          checksum,
		Manifest:          manifest,
		StartedAt:         &now,
		CompletedAt:       &now,
		CreatedBy:         createdBy,
	}
	if id != uuid.Nil {
		b.ID = id
	}
	b.StorageKey = ObjectKey(scope, b.ID)
	b.record("uploaded", map[string]any{"size_bytes": size})
	return b, nil
}

// ObjectKey is the storage location of the encrypted archive
func ObjectKey(scope Scope, id uuid.UUID) string {
	return "backups/" + scope.Key() + "/" + id.String() + ".enc"
}

// Scope returns the scope the backup was taken from
func (b *Backup) Scope() Scope {
	return Scope{Type: b.Type, TenantID: b.TenantID, CorporationID: b.CorporationID}
}

// CoversTenant reports whether the backup is a full copy this system took of
// its tenant. Corporation backups and uploads do not reset the automatic cadence.
func (b *Backup) CoversTenant() bool {
	return b.Type == TypeTenant && b.CorporationID == nil && b.Trigger != TriggerUpload
}

// IsInFlight reports pending or in_progress
func (b *Backup) IsInFlight() bool {
	return b.Status == StatusPending || b.Status == StatusInProgress
}

// Start moves a pending (or previously failed, on retry) backup to in_progress
func (b *Backup) Start() error {
	if b.Status != StatusPending && b.Status != StatusFailed {
		return shared.NewDomainError("INVALID_BACKUP_STATE", "Cannot start a backup that is "+string(b.Status))
	}
	now := time.Now()
	b.Status = StatusInProgress
	b.StartedAt = &now
	b.Error = ""
	b.IncrementVersion()
	return nil
}

// Complete records the stored artifact
func (b *Backup) Complete(size int64, checksum string, manifest map[string]int) error {
	if b.Status != StatusInProgress {
		return shared.NewDomainError("INVALID_BACKUP_STATE", "Cannot complete a backup that is "+string(b.Status))
	}
	now := time.Now()
	b.Status = StatusCompleted
	b.SizeBytes = size
	b.Checksum = checksum
	b.Manifest = manifest
	b.CompletedAt = &now
	b.IncrementVersion()
	b.record("completed", map[string]any{"size_bytes": size, "checksum": checksum})
	return nil
}

// Fail records the error of a pending or running backup
func (b *Backup) Fail(reason string) error {
	if !b.IsInFlight() {
		return shared.NewDomainError("INVALID_BACKUP_STATE", "Cannot fail a backup that is "+string(b.Status))
	}
	now := time.Now()
	b.Status = StatusFailed
	b.Error = strings.TrimSpace(reason)
	b.CompletedAt = &now
	b.IncrementVersion()
	b.record("failed", map[string]any{"error": b.Error})
	return nil
}

// QueueRestore marks a restore as requested. Only completed backups can be restored.
func (b *Backup) QueueRestore(by *uuid.UUID) error {
	if b.Status != StatusCompleted {
		return shared.NewDomainError("BACKUP_NOT_COMPLETED", "Only completed backups can be restored")
	}
	if b.RestoreStatus == RestoreQueued || b.RestoreStatus == RestoreRunning {
		return shared.NewDomainError("RESTORE_IN_PROGRESS", "A restore from this backup is already running")
	}
	b.RestoreStatus = RestoreQueued
	b.RestoreError = ""
	b.RestoredBy = by
	b.IncrementVersion()
	return nil
}

// StartRestore moves a queued restore to running
func (b *Backup) StartRestore() error {
	if b.RestoreStatus != RestoreQueued {
		return shared.NewDomainError("INVALID_RESTORE_STATE", "Restore is not queued")
	}
	b.RestoreStatus = RestoreRunning
	b.IncrementVersion()
	return nil
}

// CompleteRestore records a successful restore
func (b *Backup) CompleteRestore() error {
	if b.RestoreStatus != RestoreRunning {
		return shared.NewDomainError("INVALID_RESTORE_STATE", "Restore is not running")
	}
	now := time.Now()
	b.RestoreStatus = RestoreCompleted
	b.RestoredAt = &now
	b.IncrementVersion()
	b.record("restored", map[string]any{"manifest": b.Manifest})
	return nil
}

// FailRestore records a failed restore
func (b *Backup) FailRestore(reason string) {
	b.RestoreStatus = RestoreFailed
	b.RestoreError = strings.TrimSpace(reason)
	b.IncrementVersion()
	b.record("restore_failed", map[string]any{"error": b.RestoreError})
}

func (b *Backup) record(action string, diff map[string]any) {
	tenantID := uuid.Nil
	if b.TenantID != nil {
		tenantID = *b.TenantID
	}
	b.AddDomainEvent(shared.NewRecordEvent(AggregateType, action, b.ID, tenantID, diff))
}
