package identity

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/shared"
)

const AggregateTypeRole = "role"

// Well-known role codes seeded for every tenant
const (
	RoleCodeAdmin     = "ADMIN"
	RoleCodePreparer  = "PREPARER"
	RoleCodeReviewer  = "REVIEWER"
	RoleCodeFrontDesk = "FRONT_DESK"
)

// Role is a named set of permissions assignable to staff users
type Role struct {
	shared.TenantAggregateRoot
	Code        string
	Name        string
	Description string
	Permissions []string
	IsSystem    bool
}

// NewRole creates a role with the given permissions
func NewRole(tenantID uuid.UUID, code, name string, permissions []string) (*Role, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || len(code) > 50 {
		return nil, shared.NewDomainError("INVALID_ROLE_CODE", "Role code must be 1-50 characters")
	}
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 100 {
		return nil, shared.NewDomainError("INVALID_ROLE_NAME", "Role name must be 1-100 characters")
	}
	r := &Role{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Code:                code,
		Name:                name,
	}
	if err := r.SetPermissions(permissions); err != nil {
		return nil, err
	}
	r.AddDomainEvent(shared.NewRecordEvent(AggregateTypeRole, "created", r.ID, tenantID, map[string]any{"code": code}))
	return r, nil
}

// NewSystemRole creates a role that cannot be deleted
func NewSystemRole(tenantID uuid.UUID, code, name string, permissions []string) (*Role, error) {
	r, err := NewRole(tenantID, code, name, permissions)
	if err != nil {
		return nil, err
	}
	r.IsSystem = true
	return r, nil
}

// SetPermissions replaces the permission set, de-duplicated and sorted
func (r *Role) SetPermissions(permissions []string) error {
	seen := make(map[string]struct{}, len(permissions))
	out := make([]string, 0, len(permissions))
	for _, p := range permissions {
		p = strings.TrimSpace(strings.ToLower(p))
		if !IsKnownPermission(p) {
			return shared.NewDomainError("INVALID_PERMISSION", "Unknown permission: "+p)
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	r.Permissions = out
	r.IncrementVersion()
	return nil
}

// Update changes name and description
func (r *Role) Update(name, description string) error {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 100 {
		return shared.NewDomainError("INVALID_ROLE_NAME", "Role name must be 1-100 characters")
	}
	r.Name = name
	r.Description = description
	r.IncrementVersion()
	r.AddDomainEvent(shared.NewRecordEvent(AggregateTypeRole, "updated", r.ID, r.TenantID, map[string]any{"name": name}))
	return nil
}

// HasPermission checks if the role grants p
func (r *Role) HasPermission(p string) bool {
	for _, have := range r.Permissions {
		if have == p {
			return true
		}
	}
	return false
}

// DefaultRoles returns the roles seeded when a tenant is created
func DefaultRoles(tenantID uuid.UUID) ([]*Role, error) {
	specs := []struct {
		code, name string
		perms      []string
	}{
		{RoleCodeAdmin, "Administrator", AllPermissions()},
		{RoleCodePreparer, "Tax Preparer", []string{
			PermContactRead, PermContactWrite, PermCorporationRead, PermCorporationWrite,
			PermCaseRead, PermCaseWrite, PermDocumentRead, PermDocumentWrite,
			PermScheduleRead, PermScheduleWrite, PermBillingRead, PermChatUse, PermAgentUse,
		}},
		{RoleCodeReviewer, "Reviewer", []string{
			PermContactRead, PermCorporationRead, PermCaseRead, PermCaseWrite,
			PermDocumentRead, PermScheduleRead, PermBillingRead, PermWorkflowApprove, PermAgentUse,
		}},
		{RoleCodeFrontDesk, "Front Desk", []string{
			PermContactRead, PermContactWrite, PermCorporationRead, PermScheduleRead,
			PermScheduleWrite, PermDocumentRead, PermChatUse, PermPortalManage,
		}},
	}
	roles := make([]*Role, 0, len(specs))
	for _, s := range specs {
		r, err := NewSystemRole(tenantID, s.code, s.name, s.perms)
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, nil
}
