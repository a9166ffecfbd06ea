package backup

import (
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/backup"
)

// BackupDTO is the API view of a backup
type BackupDTO struct {
	ID            uuid.UUID      `json:"id"`
	Type          string         `json:"type"`
	TenantID      *uuid.UUID     `json:"tenant_id,omitempty"`
	CorporationID *uuid.UUID     `json:"corporation_id,omitempty"`
	IncludeMedia  bool           `json:"include_media"`
	Trigger       string         `json:"trigger"`
	Status        string         `json:"status"`
	SizeBytes     int64          `json:"size_bytes"`
	Checksum      string         `json:"checksum,omitempty"`
	Error         string         `json:"error,omitempty"`
	Manifest      map[string]int `json:"manifest,omitempty"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	CreatedBy     *uuid.UUID     `json:"created_by,omitempty"`
	RestoreStatus string         `json:"restore_status,omitempty"`
	RestoreError  string         `json:"restore_error,omitempty"`
	RestoredAt    *time.Time     `json:"restored_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// ToBackupDTO converts a backup
func ToBackupDTO(b *backup.Backup) BackupDTO {
	return BackupDTO{
		ID:            b.ID,
		Type:          string(b.Type),
		TenantID:      b.TenantID,
		CorporationID: b.CorporationID,
		IncludeMedia:  b.IncludeMedia,
		Trigger:       string(b.Trigger),
		Status:        string(b.Status),
		SizeBytes:     b.SizeBytes,
		Checksum:      b.Checksum,
		Error:         b.Error,
		Manifest:      b.Manifest,
		StartedAt:     b.StartedAt,
		CompletedAt:   b.CompletedAt,
		CreatedBy:     b.CreatedBy,
		RestoreStatus: string(b.RestoreStatus),
		RestoreError:  b.RestoreError,
		RestoredAt:    b.RestoredAt,
		CreatedAt:     b.CreatedAt,
	}
}

// DownloadDTO is a presigned link to an encrypted archive
type DownloadDTO struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
	Filename  string    `json:"filename"`
}

// Requester is the caller of a backup operation
type Requester struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
	// Global is set for platform operators holding backup:global
	Global bool
}

// CreateInput selects what to back up
type CreateInput struct {
	Type          string     `json:"type"`
	CorporationID *uuid.UUID `json:"corporation_id"`
	IncludeMedia  bool       `json:"include_media"`
}

// UploadInput is an externally produced encrypted archive
type UploadInput struct {
	Data               []byte
	RestoreImmediately bool
	Confirm            bool
}
