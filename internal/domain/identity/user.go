package identity

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/shared"
)

// UserStatus represents the status of a staff user
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
	UserStatusLocked   UserStatus = "locked"
)

const AggregateTypeUser = "user"

// Login lockout policy
const (
	MaxFailedLogins = 5
	LockoutDuration = 15 * time.Minute
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-.]+$`)

// User is a staff member of a practice
type User struct {
	shared.TenantAggregateRoot
	Username       string
	Email          string
	DisplayName    string
	PasswordHash   string
	Status         UserStatus
	DepartmentID   *uuid.UUID
	RoleIDs        []uuid.UUID
	LastLoginAt    *time.Time
	LastLoginIP    string
	FailedAttempts int
	LockedUntil    *time.Time
}

// NewUser creates an active staff user
func NewUser(tenantID uuid.UUID, username, email, password string) (*User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &User{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Username:            username,
		Email:               email,
		PasswordHash:        hash,
		Status:              UserStatusActive,
		RoleIDs:             make([]uuid.UUID, 0),
	}
	u.AddDomainEvent(shared.NewRecordEvent(AggregateTypeUser, "created", u.ID, tenantID, map[string]any{"username": username}))
	return u, nil
}

// UpdateProfile changes email and display name
func (u *User) UpdateProfile(email, displayName string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if len(displayName) > 100 {
		return shared.NewDomainError("INVALID_DISPLAY_NAME", "Display name cannot exceed 100 characters")
	}
	u.Email = email
	u.DisplayName = strings.TrimSpace(displayName)
	u.IncrementVersion()
	u.AddDomainEvent(shared.NewRecordEvent(AggregateTypeUser, "updated", u.ID, u.TenantID, map[string]any{"email": email}))
	return nil
}

// SetDepartment assigns the user's department
func (u *User) SetDepartment(departmentID *uuid.UUID) {
	u.DepartmentID = departmentID
	u.IncrementVersion()
}

// SetRoles replaces the user's roles
func (u *User) SetRoles(roleIDs []uuid.UUID) {
	seen := make(map[uuid.UUID]struct{}, len(roleIDs))
	out := make([]uuid.UUID, 0, len(roleIDs))
	for _, id := range roleIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	u.RoleIDs = out
	u.IncrementVersion()
	u.AddDomainEvent(shared.NewRecordEvent(AggregateTypeUser, "roles_changed", u.ID, u.TenantID, map[string]any{"role_count": len(out)}))
}

// HasRole reports whether the user holds roleID
func (u *User) HasRole(roleID uuid.UUID) bool {
	for _, id := range u.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// ChangePassword verifies the old password and sets a new one
func (u *User) ChangePassword(oldPassword, newPassword string) error {
	if !u.VerifyPassword(oldPassword) {
		return shared.NewDomainError("INVALID_PASSWORD", "Current password is incorrect")
	}
	return u.SetPassword(newPassword)
}

// SetPassword sets a new password without checking the old one (admin reset)
func (u *User) SetPassword(newPassword string) error {
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.IncrementVersion()
	u.AddDomainEvent(shared.NewRecordEvent(AggregateTypeUser, "password_changed", u.ID, u.TenantID, nil))
	return nil
}

// VerifyPassword checks a plaintext password
func (u *User) VerifyPassword(password string) bool {
	return CheckPassword(u.PasswordHash, password)
}

// Deactivate disables the account
func (u *User) Deactivate() error {
	if u.Status == UserStatusInactive {
		return shared.NewDomainError("ALREADY_INACTIVE", "User is already inactive")
	}
	u.Status = UserStatusInactive
	u.IncrementVersion()
	u.AddDomainEvent(shared.NewRecordEvent(AggregateTypeUser, "status_changed", u.ID, u.TenantID, map[string]any{"status": string(UserStatusInactive)}))
	return nil
}

// Activate re-enables the account and clears any lock
func (u *User) Activate() {
	u.Status = UserStatusActive
	u.FailedAttempts = 0
	u.LockedUntil = nil
	u.IncrementVersion()
	u.AddDomainEvent(shared.NewRecordEvent(AggregateTypeUser, "status_changed", u.ID, u.TenantID, map[string]any{"status": string(UserStatusActive)}))
}

// RecordLoginSuccess resets the failure counter
func (u *User) RecordLoginSuccess(ip string) {
	now := time.Now()
	u.LastLoginAt = &now
	u.LastLoginIP = ip
	u.FailedAttempts = 0
	if u.Status == UserStatusLocked {
		u.Status = UserStatusActive
		u.LockedUntil = nil
	}
	u.IncrementVersion()
	u.AddDomainEvent(shared.NewRecordEvent(AggregateTypeUser, "login", u.ID, u.TenantID, map[string]any{"ip": ip}))
}

// RecordLoginFailure counts a failed attempt and locks the account at the limit.
// Returns true if the account became locked.
func (u *User) RecordLoginFailure() bool {
	u.FailedAttempts++
	u.IncrementVersion()
	if u.FailedAttempts < MaxFailedLogins {
		return false
	}
	until := time.Now().Add(LockoutDuration)
	u.Status = UserStatusLocked
	u.LockedUntil = &until
	u.AddDomainEvent(shared.NewRecordEvent(AggregateTypeUser, "status_changed", u.ID, u.TenantID, map[string]any{"status": string(UserStatusLocked)}))
	return true
}

// IsLocked reports whether an unexpired lock is in place
func (u *User) IsLocked() bool {
	if u.Status != UserStatusLocked {
		return false
	}
	return u.LockedUntil == nil || time.Now().Before(*u.LockedUntil)
}

// CanLogin returns true if the user may authenticate
func (u *User) CanLogin() bool {
	if u.Status == UserStatusInactive {
		return false
	}
	return !u.IsLocked()
}

// Name returns the display name, falling back to the username
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

func validateUsername(username string) error {
	if len(username) < 3 {
		return shared.NewDomainError("INVALID_USERNAME", "Username must be at least 3 characters")
	}
	if len(username) > 100 {
		return shared.NewDomainError("INVALID_USERNAME", "Username cannot exceed 100 characters")
	}
	if !usernamePattern.MatchString(username) {
		return shared.NewDomainError("INVALID_USERNAME", "Username can only contain letters, numbers, underscores, hyphens, and dots")
	}
	return nil
}
