package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/audit"
)

// AuditLogModel is the persistence model for an audit entry. Entries are append-only.
type AuditLogModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primary_key"`
	TenantID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	UserID       *uuid.UUID      `gorm:"type:uuid;index"`
	ActorKind    audit.ActorKind `gorm:"type:varchar(10);not null"`
	Action       string          `gorm:"type:varchar(50);not null"`
	ResourceType string          `gorm:"type:varchar(50);not null"`
	ResourceID   uuid.UUID       `gorm:"type:uuid;not null"`
	ChangesJSON  string          `gorm:"column:changes;type:jsonb"`
	IPAddress    string          `gorm:"type:varchar(45)"`
	UserAgent    string          `gorm:"type:varchar(500)"`
	RequestID    string          `gorm:"type:varchar(64)"`
	OccurredAt   time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (AuditLogModel) TableName() string {
	return "audit_logs"
}

// ToDomain converts the persistence model to a domain audit Log.
func (m *AuditLogModel) ToDomain() *audit.Log {
	l := &audit.Log{
		ID:           m.ID,
		TenantID:     m.TenantID,
		UserID:       m.UserID,
		ActorKind:    m.ActorKind,
		Action:       m.Action,
		ResourceType: m.ResourceType,
		ResourceID:   m.ResourceID,
		IPAddress:    m.IPAddress,
		UserAgent:    m.UserAgent,
		RequestID:    m.RequestID,
		OccurredAt:   m.OccurredAt,
	}
	if m.ChangesJSON != "" && m.ChangesJSON != "null" {
		_ = json.Unmarshal([]byte(m.ChangesJSON), &l.Changes)
	}
	return l
}

// AuditLogModelFromDomain creates a new persistence model from a domain audit Log.
func AuditLogModelFromDomain(l *audit.Log) *AuditLogModel {
	m := &AuditLogModel{
		ID:           l.ID,
		TenantID:     l.TenantID,
		UserID:       l.UserID,
		ActorKind:    l.ActorKind,
		Action:       l.Action,
		ResourceType: l.ResourceType,
		ResourceID:   l.ResourceID,
		IPAddress:    l.IPAddress,
		UserAgent:    l.UserAgent,
		RequestID:    l.RequestID,
		OccurredAt:   l.OccurredAt,
	}
	if len(l.Changes) > 0 {
		m.ChangesJSON = encodeJSON(l.Changes, "{}")
	}
	return m
}
