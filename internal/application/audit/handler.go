package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/audit"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Recorder writes an audit entry for every domain event published on the bus.
// The actor comes from the request metadata on ctx; background work is recorded as system.
type Recorder struct {
	repo   audit.Repository
	logger *zap.Logger
}

// NewRecorder creates the audit recorder
func NewRecorder(repo audit.Repository, logger *zap.Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger}
}

// EventTypes subscribes to every event
func (r *Recorder) EventTypes() []string {
	return []string{"*"}
}

// Handle stores the entry. Events without a tenant (platform-level) are skipped.
func (r *Recorder) Handle(ctx context.Context, event shared.DomainEvent) error {
	if event.TenantID() == uuid.Nil {
		return nil
	}
	entry := audit.FromEvent(event)
	meta := logger.Meta(ctx)
	if meta.ActorKind != "" {
		entry.ActorKind = audit.ActorKind(meta.ActorKind)
	}
	if id, err := uuid.Parse(meta.UserID); err == nil {
		entry.UserID = &id
	}
	entry.IPAddress = meta.ClientIP
	entry.UserAgent = meta.UserAgent
	entry.RequestID = meta.RequestID
	if err := r.repo.Create(ctx, entry); err != nil {
		r.logger.Error("Failed to write audit entry",
			zap.String("event_type", event.EventType()),
			zap.String("resource_id", event.AggregateID().String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

var _ shared.EventHandler = (*Recorder)(nil)
