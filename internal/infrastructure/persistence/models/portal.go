package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/portal"
)

// PortalAccessModel is the persistence model for a client's portal login.
type PortalAccessModel struct {
	TenantAggregateModel
	ContactID    uuid.UUID `gorm:"type:uuid;not null"`
	Email        string    `gorm:"type:varchar(200);not null"`
	PasswordHash string    `gorm:"type:varchar(255);not null"`
	Active       bool      `gorm:"not null;default:true"`
	InvitedAt    time.Time `gorm:"not null"`
	LastLoginAt  *time.Time
}

// TableName returns the table name for GORM
func (PortalAccessModel) TableName() string {
	return "portal_access"
}

// ToDomain converts the persistence model to a domain Access.
func (m *PortalAccessModel) ToDomain() *portal.Access {
	a := &portal.Access{
		ContactID:    m.ContactID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Active:       m.Active,
		InvitedAt:    m.InvitedAt,
		LastLoginAt:  m.LastLoginAt,
	}
	a.TenantAggregateRoot = m.tenantRoot()
	return a
}

// FromDomain populates the persistence model from a domain Access.
func (m *PortalAccessModel) FromDomain(a *portal.Access) {
	m.setTenantRoot(a.TenantAggregateRoot)
	m.ContactID = a.ContactID
	m.Email = a.Email
	m.PasswordHash = a.PasswordHash
	m.Active = a.Active
	m.InvitedAt = a.InvitedAt
	m.LastLoginAt = a.LastLoginAt
}

// PortalAccessModelFromDomain creates a new persistence model from a domain Access.
func PortalAccessModelFromDomain(a *portal.Access) *PortalAccessModel {
	m := &PortalAccessModel{}
	m.FromDomain(a)
	return m
}

// PortalMessageModel is one chat message. Seq is the auto-incrementing polling cursor.
type PortalMessageModel struct {
	Seq        int64             `gorm:"primaryKey;autoIncrement"`
	ID         uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex"`
	TenantID   uuid.UUID         `gorm:"type:uuid;not null;index:idx_portal_messages_thread,priority:1"`
	ContactID  uuid.UUID         `gorm:"type:uuid;not null;index:idx_portal_messages_thread,priority:2"`
	SenderKind portal.SenderKind `gorm:"type:varchar(10);not null"`
	SenderID   uuid.UUID         `gorm:"type:uuid;not null"`
	Body       string            `gorm:"type:text;not null"`
	ReadAt     *time.Time
	CreatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PortalMessageModel) TableName() string {
	return "portal_messages"
}

// ToDomain converts the persistence model to a domain Message.
func (m *PortalMessageModel) ToDomain() portal.Message {
	return portal.Message{
		ID:         m.ID,
		TenantID:   m.TenantID,
		Seq:        m.Seq,
		ContactID:  m.ContactID,
		SenderKind: m.SenderKind,
		SenderID:   m.SenderID,
		Body:       m.Body,
		ReadAt:     m.ReadAt,
		CreatedAt:  m.CreatedAt,
	}
}

// PortalMessageModelFromDomain creates a persistence model; Seq is left for the database.
func PortalMessageModelFromDomain(msg *portal.Message) *PortalMessageModel {
	return &PortalMessageModel{
		ID:         msg.ID,
		TenantID:   msg.TenantID,
		ContactID:  msg.ContactID,
		SenderKind: msg.SenderKind,
		SenderID:   msg.SenderID,
		Body:       msg.Body,
		ReadAt:     msg.ReadAt,
		CreatedAt:  msg.CreatedAt,
	}
}
