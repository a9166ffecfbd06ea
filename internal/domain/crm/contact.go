package crm

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/identity"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/domain/shared/valueobject"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ContactStatus is the relationship stage of a contact
type ContactStatus string

const (
	ContactStatusLead     ContactStatus = "lead"
	ContactStatusActive   ContactStatus = "active"
	ContactStatusInactive ContactStatus = "inactive"
)

const AggregateTypeContact = "contact"

// SSNLayout is the masked rendering of a social security number
const SSNLayout = "***-**-0000"

var nameCaser = cases.Title(language.English)

// IsValid reports whether s is a known contact status
func (s ContactStatus) IsValid() bool {
	switch s {
	case ContactStatusLead, ContactStatusActive, ContactStatusInactive:
		return true
	}
	return false
}

// Contact is an individual client (or prospect) of the practice.
// A contact may belong to several corporations; PrimaryCorporationID,
// when set, always refers to one of them.
type Contact struct {
	shared.TenantAggregateRoot
	FirstName            string
	LastName             string
	Email                string
	Phone                string
	DateOfBirth          *time.Time
	SSN                  SensitiveValue
	Address              valueobject.Address
	Status               ContactStatus
	AssignedTo           *uuid.UUID
	CorporationIDs       []uuid.UUID
	PrimaryCorporationID *uuid.UUID
	Notes                string
	LastActivityAt       *time.Time
}

// NewContact creates a contact in lead status
func NewContact(tenantID uuid.UUID, firstName, lastName, email string) (*Contact, error) {
	c := &Contact{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Status:              ContactStatusLead,
		CorporationIDs:      make([]uuid.UUID, 0),
	}
	if err := c.setNames(firstName, lastName); err != nil {
		return nil, err
	}
	if err := c.setEmail(email); err != nil {
		return nil, err
	}
	c.AddDomainEvent(shared.NewRecordEvent(AggregateTypeContact, "created", c.ID, tenantID, map[string]any{
		"name": c.DisplayName(),
	}))
	return c, nil
}

// DisplayName returns "First Last"
func (c *Contact) DisplayName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// UpdateDetails replaces the editable profile fields
func (c *Contact) UpdateDetails(firstName, lastName, email, phone string, dob *time.Time, addr valueobject.Address, notes string) error {
	before := c.DisplayName()
	if err := c.setNames(firstName, lastName); err != nil {
		return err
	}
	if err := c.setEmail(email); err != nil {
		return err
	}
	if len(phone) > 50 {
		return newInvalid("INVALID_PHONE", "Phone cannot exceed 50 characters")
	}
	if dob != nil && dob.After(time.Now()) {
		return newInvalid("INVALID_DATE_OF_BIRTH", "Date of birth cannot be in the future")
	}
	c.Phone = strings.TrimSpace(phone)
	c.DateOfBirth = dob
	c.Address = addr
	c.Notes = notes
	c.IncrementVersion()

	changes := map[string]any{}
	if before != c.DisplayName() {
		changes["name"] = []string{before, c.DisplayName()}
	}
	c.AddDomainEvent(shared.NewRecordEvent(AggregateTypeContact, "updated", c.ID, c.TenantID, changes))
	return nil
}

// SetSSN stores an already-sealed SSN
func (c *Contact) SetSSN(v SensitiveValue) {
	c.SSN = v
	c.IncrementVersion()
	c.AddDomainEvent(shared.NewRecordEvent(AggregateTypeContact, "updated", c.ID, c.TenantID, map[string]any{"ssn": "changed"}))
}

// SetStatus moves the contact to a new status
func (c *Contact) SetStatus(status ContactStatus) error {
	if !status.IsValid() {
		return newInvalid("INVALID_STATUS", "Unknown contact status: "+string(status))
	}
	if c.Status == status {
		return nil
	}
	old := c.Status
	c.Status = status
	c.IncrementVersion()
	c.AddDomainEvent(shared.NewRecordEvent(AggregateTypeContact, "status_changed", c.ID, c.TenantID, map[string]any{
		"status": []string{string(old), string(status)},
	}))
	return nil
}

// AssignTo sets the responsible staff member
func (c *Contact) AssignTo(userID *uuid.UUID) {
	c.AssignedTo = userID
	c.IncrementVersion()
}

// HasCorporation reports whether the contact is linked to corporationID
func (c *Contact) HasCorporation(corporationID uuid.UUID) bool {
	for _, id := range c.CorporationIDs {
		if id == corporationID {
			return true
		}
	}
	return false
}

// LinkCorporation adds a corporation to the contact's set. It is a no-op if already linked.
func (c *Contact) LinkCorporation(corp *Corporation) error {
	if corp.TenantID != c.TenantID {
		return ErrCrossTenantReference
	}
	if c.HasCorporation(corp.ID) {
		return nil
	}
	c.CorporationIDs = append(c.CorporationIDs, corp.ID)
	c.IncrementVersion()
	c.AddDomainEvent(shared.NewRecordEvent(AggregateTypeContact, "corporation_linked", c.ID, c.TenantID, map[string]any{
		"corporation_id": corp.ID.String(),
	}))
	return nil
}

// UnlinkCorporation removes a corporation. The primary pointer is cleared if it referred to it.
func (c *Contact) UnlinkCorporation(corporationID uuid.UUID) {
	out := c.CorporationIDs[:0]
	removed := false
	for _, id := range c.CorporationIDs {
		if id == corporationID {
			removed = true
			continue
		}
		out = append(out, id)
	}
	if !removed {
		return
	}
	c.CorporationIDs = out
	if c.PrimaryCorporationID != nil && *c.PrimaryCorporationID == corporationID {
		c.PrimaryCorporationID = nil
	}
	c.IncrementVersion()
	c.AddDomainEvent(shared.NewRecordEvent(AggregateTypeContact, "corporation_unlinked", c.ID, c.TenantID, map[string]any{
		"corporation_id": corporationID.String(),
	}))
}

// SetPrimaryCorporation marks one linked corporation as primary. Passing nil clears it.
func (c *Contact) SetPrimaryCorporation(corporationID *uuid.UUID) error {
	if corporationID != nil && !c.HasCorporation(*corporationID) {
		return ErrPrimaryNotMember
	}
	c.PrimaryCorporationID = corporationID
	c.IncrementVersion()
	return nil
}

// RecordActivity records client activity (messages, uploads, appointments)
func (c *Contact) RecordActivity(at time.Time) {
	c.LastActivityAt = &at
}

// Delete marks the contact for soft deletion
func (c *Contact) Delete() {
	c.AddDomainEvent(shared.NewRecordEvent(AggregateTypeContact, "deleted", c.ID, c.TenantID, nil))
}

func (c *Contact) setNames(firstName, lastName string) error {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" && lastName == "" {
		return newInvalid("INVALID_NAME", "Contact must have a first or last name")
	}
	if len(firstName) > 100 || len(lastName) > 100 {
		return newInvalid("INVALID_NAME", "Names cannot exceed 100 characters")
	}
	c.FirstName = normalizeName(firstName)
	c.LastName = normalizeName(lastName)
	return nil
}

func (c *Contact) setEmail(email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email != "" {
		if err := identity.ValidateEmail(email); err != nil {
			return err
		}
	}
	c.Email = email
	return nil
}

// normalizeName title-cases names typed in all lower or all upper case and
// leaves mixed-case input ("McDonald", "van Dyke") alone.
func normalizeName(s string) string {
	if s == "" || (s != strings.ToLower(s) && s != strings.ToUpper(s)) {
		return s
	}
	return nameCaser.String(s)
}

// Snapshot flattens the contact for rule evaluation. The SSN is never included.
func (c *Contact) Snapshot() map[string]any {
	snap := map[string]any{
		"id":           c.ID.String(),
		"contact_id":   c.ID.String(),
		"first_name":   c.FirstName,
		"last_name":    c.LastName,
		"name":         c.DisplayName(),
		"email":        c.Email,
		"phone":        c.Phone,
		"status":       string(c.Status),
		"state":        c.Address.State,
		"corporations": len(c.CorporationIDs),
		"has_ssn":      c.SSN.IsSet(),
	}
	if c.AssignedTo != nil {
		snap["assigned_to"] = c.AssignedTo.String()
	}
	if c.PrimaryCorporationID != nil {
		snap["primary_corporation_id"] = c.PrimaryCorporationID.String()
	}
	return snap
}

// ApplyField sets a single field by name. Used by workflow update_field actions.
func (c *Contact) ApplyField(field, value string) error {
	switch field {
	case "status":
		return c.SetStatus(ContactStatus(value))
	case "notes":
		c.Notes = value
	case "assigned_to":
		if value == "" {
			c.AssignedTo = nil
			break
		}
		id, err := uuid.Parse(value)
		if err != nil {
			return newInvalid("INVALID_INPUT", "assigned_to must be a UUID")
		}
		c.AssignedTo = &id
	default:
		return shared.NewDomainError("UNSUPPORTED_FIELD", "Field cannot be updated by workflow: "+field)
	}
	c.IncrementVersion()
	c.AddDomainEvent(shared.NewRecordEvent(AggregateTypeContact, "updated", c.ID, c.TenantID, map[string]any{field: value}))
	return nil
}
