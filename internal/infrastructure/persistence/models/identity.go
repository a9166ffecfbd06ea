package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/identity"
	"github.com/taxcrm/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// TenantModel is the persistence model for the Tenant aggregate.
type TenantModel struct {
	AggregateModel
	Name                  string                `gorm:"type:varchar(200);not null"`
	Slug                  string                `gorm:"type:varchar(200);not null;uniqueIndex"`
	Status                identity.TenantStatus `gorm:"type:varchar(20);not null;default:'active'"`
	ContactEmail          string                `gorm:"type:varchar(200)"`
	BackupChangeThreshold int                   `gorm:"not null;default:500"`
}

// TableName returns the table name for GORM
func (TenantModel) TableName() string {
	return "tenants"
}

// ToDomain converts the persistence model to a domain Tenant.
func (m *TenantModel) ToDomain() *identity.Tenant {
	t := &identity.Tenant{
		Name:                  m.Name,
		Slug:                  m.Slug,
		Status:                m.Status,
		ContactEmail:          m.ContactEmail,
		BackupChangeThreshold: m.BackupChangeThreshold,
	}
	t.BaseAggregateRoot = shared.RestoreAggregateRoot(m.entity(), m.Version)
	return t
}

// FromDomain populates the persistence model from a domain Tenant.
func (m *TenantModel) FromDomain(t *identity.Tenant) {
	m.setRoot(t.BaseAggregateRoot)
	m.Name = t.Name
	m.Slug = t.Slug
	m.Status = t.Status
	m.ContactEmail = t.ContactEmail
	m.BackupChangeThreshold = t.BackupChangeThreshold
}

// TenantModelFromDomain creates a new persistence model from a domain Tenant.
func TenantModelFromDomain(t *identity.Tenant) *TenantModel {
	m := &TenantModel{}
	m.FromDomain(t)
	return m
}

// DepartmentModel is the persistence model for the Department aggregate.
type DepartmentModel struct {
	TenantAggregateModel
	Code        string `gorm:"type:varchar(50);not null"`
	Name        string `gorm:"type:varchar(100);not null"`
	Description string `gorm:"type:varchar(500)"`
	Active      bool   `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (DepartmentModel) TableName() string {
	return "departments"
}

// ToDomain converts the persistence model to a domain Department.
func (m *DepartmentModel) ToDomain() *identity.Department {
	d := &identity.Department{
		Code:        m.Code,
		Name:        m.Name,
		Description: m.Description,
		Active:      m.Active,
	}
	d.TenantAggregateRoot = m.tenantRoot()
	return d
}

// FromDomain populates the persistence model from a domain Department.
func (m *DepartmentModel) FromDomain(d *identity.Department) {
	m.setTenantRoot(d.TenantAggregateRoot)
	m.Code = d.Code
	m.Name = d.Name
	m.Description = d.Description
	m.Active = d.Active
}

// DepartmentModelFromDomain creates a new persistence model from a domain Department.
func DepartmentModelFromDomain(d *identity.Department) *DepartmentModel {
	m := &DepartmentModel{}
	m.FromDomain(d)
	return m
}

// RoleModel is the persistence model for the Role aggregate.
type RoleModel struct {
	TenantAggregateModel
	Code            string `gorm:"type:varchar(50);not null"`
	Name            string `gorm:"type:varchar(100);not null"`
	Description     string `gorm:"type:text"`
	PermissionsJSON string `gorm:"column:permissions;type:jsonb;not null;default:'[]'"`
	IsSystem        bool   `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (RoleModel) TableName() string {
	return "roles"
}

// ToDomain converts the persistence model to a domain Role.
func (m *RoleModel) ToDomain() *identity.Role {
	r := &identity.Role{
		Code:        m.Code,
		Name:        m.Name,
		Description: m.Description,
		IsSystem:    m.IsSystem,
		Permissions: make([]string, 0),
	}
	r.TenantAggregateRoot = m.tenantRoot()
	if m.PermissionsJSON != "" {
		_ = json.Unmarshal([]byte(m.PermissionsJSON), &r.Permissions)
	}
	return r
}

// FromDomain populates the persistence model from a domain Role.
func (m *RoleModel) FromDomain(r *identity.Role) {
	m.setTenantRoot(r.TenantAggregateRoot)
	m.Code = r.Code
	m.Name = r.Name
	m.Description = r.Description
	m.IsSystem = r.IsSystem
	m.PermissionsJSON = encodeJSON(r.Permissions, "[]")
}

// RoleModelFromDomain creates a new persistence model from a domain Role.
func RoleModelFromDomain(r *identity.Role) *RoleModel {
	m := &RoleModel{}
	m.FromDomain(r)
	return m
}

// UserModel is the persistence model for the User aggregate.
// Role IDs live in user_roles and are loaded by the repository.
type UserModel struct {
	TenantAggregateModel
	Username       string              `gorm:"type:varchar(100);not null"`
	Email          string              `gorm:"type:varchar(200);not null"`
	DisplayName    string              `gorm:"type:varchar(100)"`
	PasswordHash   string              `gorm:"type:varchar(255);not null"`
	Status         identity.UserStatus `gorm:"type:varchar(20);not null;default:'active'"`
	DepartmentID   *uuid.UUID          `gorm:"type:uuid;index"`
	LastLoginAt    *time.Time
	LastLoginIP    string `gorm:"type:varchar(45)"`
	FailedAttempts int    `gorm:"not null;default:0"`
	LockedUntil    *time.Time
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

// TableName returns the table name for GORM
func (UserModel) TableName() string {
	return "users"
}

// ToDomain converts the persistence model to a domain User.
func (m *UserModel) ToDomain() *identity.User {
	u := &identity.User{
		Username:       m.Username,
		Email:          m.Email,
		DisplayName:    m.DisplayName,
		PasswordHash:   m.PasswordHash,
		Status:         m.Status,
		DepartmentID:   m.DepartmentID,
		RoleIDs:        make([]uuid.UUID, 0),
		LastLoginAt:    m.LastLoginAt,
		LastLoginIP:    m.LastLoginIP,
		FailedAttempts: m.FailedAttempts,
		LockedUntil:    m.LockedUntil,
	}
	u.TenantAggregateRoot = m.tenantRoot()
	return u
}

// FromDomain populates the persistence model from a domain User.
func (m *UserModel) FromDomain(u *identity.User) {
	m.setTenantRoot(u.TenantAggregateRoot)
	m.Username = u.Username
	m.Email = u.Email
	m.DisplayName = u.DisplayName
	m.PasswordHash = u.PasswordHash
	m.Status = u.Status
	m.DepartmentID = u.DepartmentID
	m.LastLoginAt = u.LastLoginAt
	m.LastLoginIP = u.LastLoginIP
	m.FailedAttempts = u.FailedAttempts
	m.LockedUntil = u.LockedUntil
}

// UserModelFromDomain creates a new persistence model from a domain User.
func UserModelFromDomain(u *identity.User) *UserModel {
	m := &UserModel{}
	m.FromDomain(u)
	return m
}

// UserRoleModel links users to roles.
type UserRoleModel struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	RoleID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (UserRoleModel) TableName() string {
	return "user_roles"
}

// encodeJSON marshals v, falling back to empty when v cannot be encoded
func encodeJSON(v any, empty string) string {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return empty
	}
	return string(b)
}
