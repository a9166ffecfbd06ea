package identity

import (
	"strings"

	"github.com/gosimple/slug"
	"github.com/taxcrm/backend/internal/domain/shared"
)

// TenantStatus represents the status of a practice tenant
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
)

// DefaultBackupChangeThreshold is the number of audited changes that triggers an automatic backup
const DefaultBackupChangeThreshold = 500

const AggregateTypeTenant = "tenant"

// Tenant is a tax practice using the CRM. All business data is partitioned by tenant.
type Tenant struct {
	shared.BaseAggregateRoot
	Name                  string
	Slug                  string
	Status                TenantStatus
	ContactEmail          string
	BackupChangeThreshold int
}

// NewTenant creates an active tenant with a slug derived from the name
func NewTenant(name, contactEmail string) (*Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_TENANT_NAME", "Tenant name cannot be empty")
	}
	if len(name) > 200 {
		return nil, shared.NewDomainError("INVALID_TENANT_NAME", "Tenant name cannot exceed 200 characters")
	}
	if contactEmail != "" {
		if err := ValidateEmail(contactEmail); err != nil {
			return nil, err
		}
	}
	s := slug.Make(name)
	if s == "" {
		return nil, shared.NewDomainError("INVALID_TENANT_NAME", "Tenant name must contain letters or digits")
	}

	t := &Tenant{
		BaseAggregateRoot:     shared.NewBaseAggregateRoot(),
		Name:                  name,
		Slug:                  s,
		Status:                TenantStatusActive,
		ContactEmail:          contactEmail,
		BackupChangeThreshold: DefaultBackupChangeThreshold,
	}
	t.AddDomainEvent(shared.NewRecordEvent(AggregateTypeTenant, "created", t.ID, t.ID, map[string]any{"name": name}))
	return t, nil
}

// Rename updates the display name. The slug is stable once assigned.
func (t *Tenant) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError("INVALID_TENANT_NAME", "Tenant name cannot be empty")
	}
	old := t.Name
	t.Name = name
	t.IncrementVersion()
	t.AddDomainEvent(shared.NewRecordEvent(AggregateTypeTenant, "updated", t.ID, t.ID, map[string]any{"name": []string{old, name}}))
	return nil
}

// SetBackupChangeThreshold sets how many audited changes trigger an automatic backup
func (t *Tenant) SetBackupChangeThreshold(n int) error {
	if n < 1 {
		return shared.NewDomainError("INVALID_THRESHOLD", "Backup change threshold must be positive")
	}
	t.BackupChangeThreshold = n
	t.IncrementVersion()
	return nil
}

// Suspend blocks logins for the tenant
func (t *Tenant) Suspend() error {
	if t.Status == TenantStatusSuspended {
		return shared.NewDomainError("ALREADY_SUSPENDED", "Tenant is already suspended")
	}
	t.Status = TenantStatusSuspended
	t.IncrementVersion()
	t.AddDomainEvent(shared.NewRecordEvent(AggregateTypeTenant, "status_changed", t.ID, t.ID, map[string]any{"status": string(TenantStatusSuspended)}))
	return nil
}

// Activate re-enables a suspended tenant
func (t *Tenant) Activate() error {
	if t.Status == TenantStatusActive {
		return shared.NewDomainError("ALREADY_ACTIVE", "Tenant is already active")
	}
	t.Status = TenantStatusActive
	t.IncrementVersion()
	t.AddDomainEvent(shared.NewRecordEvent(AggregateTypeTenant, "status_changed", t.ID, t.ID, map[string]any{"status": string(TenantStatusActive)}))
	return nil
}

// IsActive returns true if the tenant can be used
func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}
