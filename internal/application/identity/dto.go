package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/identity"
)

// LoginInput contains the input for staff login
type LoginInput struct {
	TenantSlug string
	Username   string
	Password   string
	IP         string // Client IP for login tracking
}

// LoginResult contains the result of a successful login
type LoginResult struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	TokenType             string    `json:"token_type"`
	User                  UserInfo  `json:"user"`
}

// UserInfo is the signed-in user returned by login and /auth/me
type UserInfo struct {
	ID           uuid.UUID   `json:"id"`
	TenantID     uuid.UUID   `json:"tenant_id"`
	Username     string      `json:"username"`
	DisplayName  string      `json:"display_name"`
	Email        string      `json:"email"`
	DepartmentID *uuid.UUID  `json:"department_id,omitempty"`
	RoleIDs      []uuid.UUID `json:"role_ids"`
	Permissions  []string    `json:"permissions"`
}

// LogoutInput identifies the token being revoked
type LogoutInput struct {
	UserID       uuid.UUID
	TokenJTI     string
	RemainingTTL time.Duration
	// AllSessions revokes every token issued to the user so far
	AllSessions bool
}

// TenantDTO is the API shape of a tenant
type TenantDTO struct {
	ID                    uuid.UUID `json:"id"`
	Name                  string    `json:"name"`
	Slug                  string    `json:"slug"`
	Status                string    `json:"status"`
	ContactEmail          string    `json:"contact_email,omitempty"`
	BackupChangeThreshold int       `json:"backup_change_threshold"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// ToTenantDTO converts a domain tenant
func ToTenantDTO(t *identity.Tenant) TenantDTO {
	return TenantDTO{
		ID:                    t.ID,
		Name:                  t.Name,
		Slug:                  t.Slug,
		Status:                string(t.Status),
		ContactEmail:          t.ContactEmail,
		BackupChangeThreshold: t.BackupChangeThreshold,
		CreatedAt:             t.CreatedAt,
		UpdatedAt:             t.UpdatedAt,
	}
}

// UserDTO is the API shape of a staff user
type UserDTO struct {
	ID             uuid.UUID   `json:"id"`
	Username       string      `json:"username"`
	Email          string      `json:"email"`
	DisplayName    string      `json:"display_name,omitempty"`
	Status         string      `json:"status"`
	DepartmentID   *uuid.UUID  `json:"department_id,omitempty"`
	RoleIDs        []uuid.UUID `json:"role_ids"`
	LastLoginAt    *time.Time  `json:"last_login_at,omitempty"`
	FailedAttempts int         `json:"failed_attempts"`
	LockedUntil    *time.Time  `json:"locked_until,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// ToUserDTO converts a domain user
func ToUserDTO(u *identity.User) UserDTO {
	roleIDs := u.RoleIDs
	if roleIDs == nil {
		roleIDs = []uuid.UUID{}
	}
	return UserDTO{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		DisplayName:    u.DisplayName,
		Status:         string(u.Status),
		DepartmentID:   u.DepartmentID,
		RoleIDs:        roleIDs,
		LastLoginAt:    u.LastLoginAt,
		FailedAttempts: u.FailedAttempts,
		LockedUntil:    u.LockedUntil,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

// RoleDTO is the API shape of a role
type RoleDTO struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Permissions []string  `json:"permissions"`
	IsSystem    bool      `json:"is_system"`
	CreatedAt   time.Time `json:"created_at"`
}

// ToRoleDTO converts a domain role
func ToRoleDTO(r *identity.Role) RoleDTO {
	return RoleDTO{
		ID:          r.ID,
		Code:        r.Code,
		Name:        r.Name,
		Description: r.Description,
		Permissions: r.Permissions,
		IsSystem:    r.IsSystem,
		CreatedAt:   r.CreatedAt,
	}
}

// DepartmentDTO is the API shape of a department
type DepartmentDTO struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// ToDepartmentDTO converts a domain department
func ToDepartmentDTO(d *identity.Department) DepartmentDTO {
	return DepartmentDTO{
		ID:          d.ID,
		Code:        d.Code,
		Name:        d.Name,
		Description: d.Description,
		Active:      d.Active,
		CreatedAt:   d.CreatedAt,
	}
}
