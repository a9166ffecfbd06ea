package crm

import (
	"strings"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/domain/shared/valueobject"
)

// EntityType is the tax classification of a corporation
type EntityType string

const (
	EntityTypeCCorp          EntityType = "c_corp"
	EntityTypeSCorp          EntityType = "s_corp"
	EntityTypeLLC            EntityType = "llc"
	EntityTypePartnership    EntityType = "partnership"
	EntityTypeSoleProprietor EntityType = "sole_proprietorship"
	EntityTypeNonprofit      EntityType = "nonprofit"
	EntityTypeTrust          EntityType = "trust"
)

// IsValid reports whether t is a supported entity type
func (t EntityType) IsValid() bool {
	switch t {
	case EntityTypeCCorp, EntityTypeSCorp, EntityTypeLLC, EntityTypePartnership,
		EntityTypeSoleProprietor, EntityTypeNonprofit, EntityTypeTrust:
		return true
	}
	return false
}

// CorporationStatus tracks whether the business is still a client
type CorporationStatus string

const (
	CorporationStatusActive    CorporationStatus = "active"
	CorporationStatusInactive  CorporationStatus = "inactive"
	CorporationStatusDissolved CorporationStatus = "dissolved"
)

const AggregateTypeCorporation = "corporation"

// EINLayout is the masked rendering of an employer identification number
const EINLayout = "**-***0000"

// Corporation is a business client. Corporations form an ownership tree via
// ParentID and a symmetrical "related" graph via RelatedIDs.
type Corporation struct {
	shared.TenantAggregateRoot
	Name               string
	EIN                SensitiveValue
	EntityType         EntityType
	FiscalYearEndMonth int
	Email              string
	Phone              string
	Address            valueobject.Address
	Status             CorporationStatus
	ParentID           *uuid.UUID
	RelatedIDs         []uuid.UUID
	Notes              string
}

// NewCorporation creates an active corporation with a calendar fiscal year
func NewCorporation(tenantID uuid.UUID, name string, entityType EntityType) (*Corporation, error) {
	c := &Corporation{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Status:              CorporationStatusActive,
		FiscalYearEndMonth:  12,
		RelatedIDs:          make([]uuid.UUID, 0),
	}
	if err := c.setName(name); err != nil {
		return nil, err
	}
	if !entityType.IsValid() {
		return nil, newInvalid("INVALID_ENTITY_TYPE", "Unknown entity type: "+string(entityType))
	}
	c.EntityType = entityType
	c.AddDomainEvent(shared.NewRecordEvent(AggregateTypeCorporation, "created", c.ID, tenantID, map[string]any{"name": c.Name}))
	return c, nil
}

// UpdateDetails replaces the editable fields
func (c *Corporation) UpdateDetails(name string, entityType EntityType, fiscalYearEnd int, email, phone string, addr valueobject.Address, notes string) error {
	if err := c.setName(name); err != nil {
		return err
	}
	if !entityType.IsValid() {
		return newInvalid("INVALID_ENTITY_TYPE", "Unknown entity type: "+string(entityType))
	}
	if fiscalYearEnd < 1 || fiscalYearEnd > 12 {
		return newInvalid("INVALID_FISCAL_YEAR_END", "Fiscal year end month must be between 1 and 12")
	}
	c.EntityType = entityType
	c.FiscalYearEndMonth = fiscalYearEnd
	c.Email = strings.ToLower(strings.TrimSpace(email))
	c.Phone = strings.TrimSpace(phone)
	c.Address = addr
	c.Notes = notes
	c.IncrementVersion()
	c.AddDomainEvent(shared.NewRecordEvent(AggregateTypeCorporation, "updated", c.ID, c.TenantID, map[string]any{"name": c.Name}))
	return nil
}

// SetEIN stores an already-sealed EIN
func (c *Corporation) SetEIN(v SensitiveValue) {
	c.EIN = v
	c.IncrementVersion()
}

// SetStatus changes the client status
func (c *Corporation) SetStatus(status CorporationStatus) error {
	switch status {
	case CorporationStatusActive, CorporationStatusInactive, CorporationStatusDissolved:
	default:
		return newInvalid("INVALID_STATUS", "Unknown corporation status: "+string(status))
	}
	c.Status = status
	c.IncrementVersion()
	c.AddDomainEvent(shared.NewRecordEvent(AggregateTypeCorporation, "status_changed", c.ID, c.TenantID, map[string]any{"status": string(status)}))
	return nil
}

// SetParent attaches the corporation under parent. parentAncestors must list
// every ancestor of parent (nearest first); it is used to reject cycles.
// A nil parent detaches the corporation.
func (c *Corporation) SetParent(parent *Corporation, parentAncestors []uuid.UUID) error {
	if parent == nil {
		c.ParentID = nil
		c.IncrementVersion()
		return nil
	}
	if parent.ID == c.ID {
		return ErrSelfParent
	}
	if parent.TenantID != c.TenantID {
		return ErrCrossTenantReference
	}
	for _, id := range parentAncestors {
		if id == c.ID {
			return ErrParentCycle
		}
	}
	pid := parent.ID
	c.ParentID = &pid
	c.IncrementVersion()
	c.AddDomainEvent(shared.NewRecordEvent(AggregateTypeCorporation, "parent_changed", c.ID, c.TenantID, map[string]any{"parent_id": pid.String()}))
	return nil
}

// IsRelatedTo reports whether other is in the related set
func (c *Corporation) IsRelatedTo(otherID uuid.UUID) bool {
	for _, id := range c.RelatedIDs {
		if id == otherID {
			return true
		}
	}
	return false
}

// LinkRelated records a symmetrical relation on both corporations
func LinkRelated(a, b *Corporation) error {
	if a.ID == b.ID {
		return ErrSelfRelation
	}
	if a.TenantID != b.TenantID {
		return ErrCrossTenantReference
	}
	if !a.IsRelatedTo(b.ID) {
		a.RelatedIDs = append(a.RelatedIDs, b.ID)
		a.IncrementVersion()
	}
	if !b.IsRelatedTo(a.ID) {
		b.RelatedIDs = append(b.RelatedIDs, a.ID)
		b.IncrementVersion()
	}
	a.AddDomainEvent(shared.NewRecordEvent(AggregateTypeCorporation, "related_linked", a.ID, a.TenantID, map[string]any{"related_id": b.ID.String()}))
	return nil
}

// UnlinkRelated removes the relation from both corporations
func UnlinkRelated(a, b *Corporation) {
	a.RelatedIDs = removeID(a.RelatedIDs, b.ID)
	b.RelatedIDs = removeID(b.RelatedIDs, a.ID)
	a.IncrementVersion()
	b.IncrementVersion()
	a.AddDomainEvent(shared.NewRecordEvent(AggregateTypeCorporation, "related_unlinked", a.ID, a.TenantID, map[string]any{"related_id": b.ID.String()}))
}

// Delete marks the corporation for soft deletion
func (c *Corporation) Delete() {
	c.AddDomainEvent(shared.NewRecordEvent(AggregateTypeCorporation, "deleted", c.ID, c.TenantID, nil))
}

func (c *Corporation) setName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return newInvalid("INVALID_NAME", "Corporation name cannot be empty")
	}
	if len(name) > 200 {
		return newInvalid("INVALID_NAME", "Corporation name cannot exceed 200 characters")
	}
	c.Name = name
	return nil
}

func removeID(ids []uuid.UUID, target uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// Snapshot flattens the corporation for rule evaluation. The EIN is never included.
func (c *Corporation) Snapshot() map[string]any {
	snap := map[string]any{
		"id":              c.ID.String(),
		"corporation_id":  c.ID.String(),
		"name":            c.Name,
		"entity_type":     string(c.EntityType),
		"fiscal_year_end": c.FiscalYearEndMonth,
		"email":           c.Email,
		"status":          string(c.Status),
		"state":           c.Address.State,
		"related":         len(c.RelatedIDs),
		"has_ein":         c.EIN.IsSet(),
	}
	if c.ParentID != nil {
		snap["parent_id"] = c.ParentID.String()
	}
	return snap
}

// ApplyField sets a single field by name. Used by workflow update_field actions.
func (c *Corporation) ApplyField(field, value string) error {
	switch field {
	case "status":
		return c.SetStatus(CorporationStatus(value))
	case "notes":
		c.Notes = value
	default:
		return shared.NewDomainError("UNSUPPORTED_FIELD", "Field cannot be updated by workflow: "+field)
	}
	c.IncrementVersion()
	c.AddDomainEvent(shared.NewRecordEvent(AggregateTypeCorporation, "updated", c.ID, c.TenantID, map[string]any{field: value}))
	return nil
}
