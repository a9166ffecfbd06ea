package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/backup"
	"github.com/taxcrm/backend/internal/domain/shared"
)

// BackupModel is the persistence model for a Backup. Global backups have no tenant.
type BackupModel struct {
	AggregateModel
	Type          backup.Type          `gorm:"type:varchar(10);not null"`
	TenantID      *uuid.UUID           `gorm:"type:uuid;index"`
	CorporationID *uuid.UUID           `gorm:"type:uuid"`
	IncludeMedia  bool                 `gorm:"not null;default:false"`
	Trigger       backup.Trigger       `gorm:"type:varchar(10);not null"`
	Status        backup.Status        `gorm:"type:varchar(20);not null;default:'pending'"`
	StorageKey    string               `gorm:"type:varchar(500);not null"`
	SizeBytes     int64                `gorm:"not null;default:0"`
	Checksum      string               `gorm:"type:varchar(64)"`
	Error         string               `gorm:"type:text"`
	ManifestJSON  string               `gorm:"column:manifest;type:jsonb;not null;default:'{}'"`
	StartedAt     *time.Time          
	CompletedAt   *time.Time           `gorm:"index"`
	CreatedBy     *uuid.UUID           `gorm:"type:uuid"`
	RestoreStatus backup.RestoreStatus `gorm:"type:varchar(20);not null;default:''"`
	RestoreError  string               `gorm:"type:text"`
	RestoredAt    *time.Time          
	RestoredBy    *uuid.UUID           `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (BackupModel) TableName() string {
	return "backups"
}

// ToDomain converts the persistence model to a domain Backup.
func (m *BackupModel) ToDomain() *backup.Backup {
	b := &backup.Backup{
		Type:          m.Type,
		TenantID:      m.TenantID,
		CorporationID: m.CorporationID,
		IncludeMedia:  m.IncludeMedia,
		Trigger:       m.Trigger,
		Status:        m.Status,
		StorageKey:    m.StorageKey,
		SizeBytes:     m.SizeBytes,
		Checksum:      m.Checksum,
		Error:         m.Error,
		Manifest:      make(map[string]int),
		StartedAt:     m.StartedAt,
		CompletedAt:   m.CompletedAt,
		CreatedBy:     m.CreatedBy,
		RestoreStatus: m.RestoreStatus,
		RestoreError:  m.RestoreError,
		RestoredAt:    m.RestoredAt,
		RestoredBy:    m.RestoredBy,
	}
	b.BaseAggregateRoot = shared.RestoreAggregateRoot(m.entity(), m.Version)
	decodeJSONInto(m.ManifestJSON, &b.Manifest)
	return b
}

// FromDomain populates the persistence model from a domain Backup.
func (m *BackupModel) FromDomain(b *backup.Backup) {
	m.setRoot(b.BaseAggregateRoot)
	m.Type = b.Type
	m.TenantID = b.TenantID
	m.CorporationID = b.CorporationID
	m.IncludeMedia = b.IncludeMedia
	m.Trigger = b.Trigger
	m.Status = b.Status
	m.StorageKey = b.StorageKey
	m.SizeBytes = b.SizeBytes
	m.Checksum = b.Checksum
	m.Error = b.Error
	m.ManifestJSON = encodeJSON(b.Manifest, "{}")
	m.StartedAt = b.StartedAt
	m.CompletedAt = b.CompletedAt
	m.CreatedBy = b.CreatedBy
	m.RestoreStatus = b.RestoreStatus
	m.RestoreError = b.RestoreError
	m.RestoredAt = b.RestoredAt
	m.RestoredBy = b.RestoredBy
}

// BackupModelFromDomain creates a new persistence model from a domain Backup.
func BackupModelFromDomain(b *backup.Backup) *BackupModel {
	m := &BackupModel{}
	m.FromDomain(b)
	return m
}
