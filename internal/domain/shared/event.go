package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is something that happened to an aggregate inside one tenant.
// Events drive the audit trail and cross-module reactions such as approvals.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
	TenantID() uuid.UUID
}

// ChangeSet is implemented by events that carry field-level changes
type ChangeSet interface {
	Changes() map[string]any
}

// BaseDomainEvent implements DomainEvent for embedding
type BaseDomainEvent struct {
	ID          uuid.UUID `json:"id"`
	Type        string    `json:"type"`
	At          time.Time `json:"occurred_at"`
	Aggregate   uuid.UUID `json:"aggregate_id"`
	Kind        string    `json:"aggregate_type"`
	OwnerTenant uuid.UUID `json:"tenant_id"`
}

func NewBaseDomainEvent(eventType, aggType string, aggID, tenantID uuid.UUID) BaseDomainEvent {
	return BaseDomainEvent{
		ID:          uuid.New(),
		Type:        eventType,
		At:          time.Now(),
		Aggregate:   aggID,
		Kind:        aggType,
		OwnerTenant: tenantID,
	}
}

func (e *BaseDomainEvent) EventID() uuid.UUID     { return e.ID }
func (e *BaseDomainEvent) EventType() string      { return e.Type }
func (e *BaseDomainEvent) OccurredAt() time.Time  { return e.At }
func (e *BaseDomainEvent) AggregateID() uuid.UUID { return e.Aggregate }
func (e *BaseDomainEvent) AggregateType() string  { return e.Kind }
func (e *BaseDomainEvent) TenantID() uuid.UUID    { return e.OwnerTenant }

// RecordEvent is the lifecycle event ("contact.created", "tax_case.status_changed")
// raised by aggregates that need no dedicated event type.
type RecordEvent struct {
	BaseDomainEvent
	Action string         `json:"action"`
	Diff   map[string]any `json:"changes,omitempty"`
}

func NewRecordEvent(aggType, action string, aggID, tenantID uuid.UUID, changes map[string]any) *RecordEvent {
	return &RecordEvent{
		BaseDomainEvent: NewBaseDomainEvent(aggType+"."+action, aggType, aggID, tenantID),
		Action:          action,
		Diff:            changes,
	}
}

func (e *RecordEvent) Changes() map[string]any {
	return e.Diff
}
