package document

import (
	"strings"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/shared"
)

const AggregateTypeFolder = "folder"

// ErrFolderOwner is returned when a folder is not linked to exactly one client
var ErrFolderOwner = shared.NewDomainError("INVALID_FOLDER_OWNER", "A folder must be linked to either a contact or a corporation")

// Owner identifies the client a folder or document belongs to.
// Exactly one of ContactID or CorporationID is set.
type Owner struct {
	ContactID     *uuid.UUID
	CorporationID *uuid.UUID
}

// ContactOwner returns an owner for a contact
func ContactOwner(id uuid.UUID) Owner {
	return Owner{ContactID: &id}
}

// CorporationOwner returns an owner for a corporation
func CorporationOwner(id uuid.UUID) Owner {
	return Owner{CorporationID: &id}
}

// Validate checks that exactly one side is set
func (o Owner) Validate() error {
	if (o.ContactID == nil) == (o.CorporationID == nil) {
		return ErrFolderOwner
	}
	return nil
}

// Equals compares two owners
func (o Owner) Equals(other Owner) bool {
	return sameID(o.ContactID, other.ContactID) && sameID(o.CorporationID, other.CorporationID)
}

// Folder organises client documents. A folder with DepartmentID set and no
// parent is that department's root folder for the client.
type Folder struct {
	shared.TenantAggregateRoot
	Name         string
	ParentID     *uuid.UUID
	Owner        Owner
	DepartmentID *uuid.UUID
}

// NewFolder creates a folder for a client
func NewFolder(tenantID uuid.UUID, name string, owner Owner, parent *Folder) (*Folder, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if err := validateFolderName(name); err != nil {
		return nil, err
	}
	f := &Folder{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		Owner:               owner,
	}
	if parent != nil {
		if parent.TenantID != tenantID || !parent.Owner.Equals(owner) {
			return nil, shared.NewDomainError("INVALID_PARENT_FOLDER", "Parent folder belongs to a different client")
		}
		pid := parent.ID
		f.ParentID = &pid
		f.DepartmentID = parent.DepartmentID
	}
	f.AddDomainEvent(shared.NewRecordEvent(AggregateTypeFolder, "created", f.ID, tenantID, map[string]any{"name": name}))
	return f, nil
}

// NewDepartmentClientFolder creates the root folder a department keeps for a client
func NewDepartmentClientFolder(tenantID, departmentID uuid.UUID, departmentName string, owner Owner) (*Folder, error) {
	f, err := NewFolder(tenantID, departmentName, owner, nil)
	if err != nil {
		return nil, err
	}
	f.DepartmentID = &departmentID
	return f, nil
}

// Rename changes the folder name
func (f *Folder) Rename(name string) error {
	name = strings.TrimSpace(name)
	if err := validateFolderName(name); err != nil {
		return err
	}
	f.Name = name
	f.IncrementVersion()
	f.AddDomainEvent(shared.NewRecordEvent(AggregateTypeFolder, "updated", f.ID, f.TenantID, map[string]any{"name": name}))
	return nil
}

// IsDepartmentRoot reports whether this is a department client folder
func (f *Folder) IsDepartmentRoot() bool {
	return f.DepartmentID != nil && f.ParentID == nil
}

func validateFolderName(name string) error {
	if name == "" {
		return shared.NewDomainError("INVALID_FOLDER_NAME", "Folder name cannot be empty")
	}
	if len(name) > 200 {
		return shared.NewDomainError("INVALID_FOLDER_NAME", "Folder name cannot exceed 200 characters")
	}
	if strings.ContainsAny(name, `/\`) {
		return shared.NewDomainError("INVALID_FOLDER_NAME", "Folder name cannot contain slashes")
	}
	return nil
}

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
