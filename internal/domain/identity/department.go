package identity

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/shared"
)

const AggregateTypeDepartment = "department"

var departmentCodePattern = regexp.MustCompile(`^[A-Z0-9_\-]+$`)

// Department groups staff (e.g. INDIVIDUAL, CORPORATE, PAYROLL). Each department
// may keep its own folder per client.
type Department struct {
	shared.TenantAggregateRoot
	Code        string
	Name        string
	Description string
	Active      bool
}

// NewDepartment creates an active department
func NewDepartment(tenantID uuid.UUID, code, name string) (*Department, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if err := validateDepartmentCode(code); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if err := validateDepartmentName(name); err != nil {
		return nil, err
	}

	d := &Department{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Code:                code,
		Name:                name,
		Active:              true,
	}
	d.AddDomainEvent(shared.NewRecordEvent(AggregateTypeDepartment, "created", d.ID, tenantID, map[string]any{"code": code, "name": name}))
	return d, nil
}

// Update changes name and description
func (d *Department) Update(name, description string) error {
	name = strings.TrimSpace(name)
	if err := validateDepartmentName(name); err != nil {
		return err
	}
	if len(description) > 500 {
		return shared.NewDomainError("INVALID_DEPARTMENT_DESCRIPTION", "Description cannot exceed 500 characters")
	}
	d.Name = name
	d.Description = description
	d.IncrementVersion()
	d.AddDomainEvent(shared.NewRecordEvent(AggregateTypeDepartment, "updated", d.ID, d.TenantID, map[string]any{"name": name}))
	return nil
}

// SetActive toggles the department
func (d *Department) SetActive(active bool) {
	if d.Active == active {
		return
	}
	d.Active = active
	d.IncrementVersion()
	d.AddDomainEvent(shared.NewRecordEvent(AggregateTypeDepartment, "status_changed", d.ID, d.TenantID, map[string]any{"active": active}))
}

func validateDepartmentCode(code string) error {
	if code == "" {
		return shared.NewDomainError("INVALID_DEPARTMENT_CODE", "Department code cannot be empty")
	}
	if len(code) > 50 {
		return shared.NewDomainError("INVALID_DEPARTMENT_CODE", "Department code cannot exceed 50 characters")
	}
	if !departmentCodePattern.MatchString(code) {
		return shared.NewDomainError("INVALID_DEPARTMENT_CODE", "Department code can only contain letters, numbers, underscores, and hyphens")
	}
	return nil
}

func validateDepartmentName(name string) error {
	if name == "" {
		return shared.NewDomainError("INVALID_DEPARTMENT_NAME", "Department name cannot be empty")
	}
	if len(name) > 100 {
		return shared.NewDomainError("INVALID_DEPARTMENT_NAME", "Department name cannot exceed 100 characters")
	}
	return nil
}
