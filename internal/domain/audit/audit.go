package audit

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/shared"
)

// ActorKind identifies who performed an audited action
type ActorKind string

const (
	ActorStaff  ActorKind = "staff"
	ActorPortal ActorKind = "portal"
	ActorSystem ActorKind = "system"
)

// Log is an immutable audit trail entry
type Log struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	UserID       *uuid.UUID
	ActorKind    ActorKind
	Action       string
	ResourceType string
	ResourceID   uuid.UUID
	Changes      map[string]any
	IPAddress    string
	UserAgent    string
	RequestID    string
	OccurredAt   time.Time
}

// FromEvent builds an entry from a domain event. The action is the part of the
// event type after the last dot ("contact.updated" -> "updated").
func FromEvent(event shared.DomainEvent) *Log {
	action := event.EventType()
	if i := strings.LastIndex(action, "."); i >= 0 {
		action = action[i+1:]
	}
	entry := &Log{
		ID:           uuid.New(),
		TenantID:     event.TenantID(),
		ActorKind:    ActorSystem,
		Action:       action,
		ResourceType: event.AggregateType(),
		ResourceID:   event.AggregateID(),
		OccurredAt:   event.OccurredAt(),
	}
	if cs, ok := event.(shared.ChangeSet); ok {
		entry.Changes = cs.Changes()
	}
	return entry
}

// Query filters the audit trail
type Query struct {
	ResourceType string
	ResourceID   *uuid.UUID
	UserID       *uuid.UUID
	Action       string
	From         *time.Time
	To           *time.Time
	Page         int
	PageSize     int
}

// Repository persists audit entries
type Repository interface {
	Create(ctx context.Context, entry *Log) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Log, error)
	Find(ctx context.Context, tenantID uuid.UUID, q Query) ([]Log, int64, error)
	// CountSince counts entries recorded after since; used to decide on automatic backups
	CountSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (int64, error)
}
