package portal

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/identity"
	"github.com/taxcrm/backend/internal/domain/shared"
)

const AggregateTypeAccess = "portal_access"

// Access lets a contact sign in to the client portal
type Access struct {
	shared.TenantAggregateRoot
	ContactID    uuid.UUID
	Email        string
	PasswordHash string
	Active       bool
	InvitedAt    time.Time
	LastLoginAt  *time.Time
}

// NewAccess invites a contact with an initial password
func NewAccess(tenantID, contactID uuid.UUID, email, password string) (*Access, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := identity.ValidateEmail(email); err != nil {
		return nil, err
	}
	hash, err := identity.HashPassword(password)
	if err != nil {
		return nil, err
	}
	a := &Access{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ContactID:           contactID,
		Email:               email,
		PasswordHash:        hash,
		Active:              true,
		InvitedAt:           time.Now(),
	}
	a.AddDomainEvent(shared.NewRecordEvent(AggregateTypeAccess, "created", a.ID, tenantID, map[string]any{
		"contact_id": contactID.String(),
	}))
	return a, nil
}

// VerifyPassword checks a login attempt
func (a *Access) VerifyPassword(password string) bool {
	return identity.CheckPassword(a.PasswordHash, password)
}

// ResetPassword sets a new password
func (a *Access) ResetPassword(password string) error {
	hash, err := identity.HashPassword(password)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	a.IncrementVersion()
	a.AddDomainEvent(shared.NewRecordEvent(AggregateTypeAccess, "password_changed", a.ID, a.TenantID, nil))
	return nil
}

// SetActive enables or disables the login
func (a *Access) SetActive(active bool) {
	a.Active = active
	a.IncrementVersion()
	a.AddDomainEvent(shared.NewRecordEvent(AggregateTypeAccess, "status_changed", a.ID, a.TenantID, map[string]any{"active": active}))
}

// RecordLogin stamps the last login time
func (a *Access) RecordLogin(at time.Time) {
	a.LastLoginAt = &at
	a.IncrementVersion()
	a.AddDomainEvent(shared.NewRecordEvent(AggregateTypeAccess, "login", a.ID, a.TenantID, nil))
}
