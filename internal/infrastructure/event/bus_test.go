package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

type recordingHandler struct {
	types   []string
	err     error
	mu      sync.Mutex
	handled []string
	tenants []string
}

func (h *recordingHandler) Handle(ctx context.Context, ev shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, ev.EventType())
	h.tenants = append(h.tenants, logger.GetTenantID(ctx))
	return h.err
}

func (h *recordingHandler) EventTypes() []string { return h.types }

func recordEvent(aggType, action string, tenantID uuid.UUID) shared.DomainEvent {
	return shared.NewRecordEvent(aggType, action, uuid.New(), tenantID, nil)
}

func TestInMemoryEventBus_Routing(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	exact := &recordingHandler{types: []string{"contact.created"}}
	prefix := &recordingHandler{}
	all := &recordingHandler{}

	bus.Subscribe(exact)
	bus.Subscribe(prefix, "backup.*")
	bus.Subscribe(all)

	tenantID := uuid.New()
	require.NoError(t, bus.Publish(context.Background(),
		recordEvent("contact", "created", tenantID),
		recordEvent("contact", "deleted", tenantID),
		recordEvent("backup", "completed", tenantID),
	))

	assert.Equal(t, []string{"contact.created"}, exact.handled)
	assert.Equal(t, []string{"backup.completed"}, prefix.handled)
	assert.Len(t, all.handled, 3)
	assert.Equal(t, tenantID.String(), all.tenants[0], "tenant is injected into the handler context")
}

func TestInMemoryEventBus_FailuresAreIsolated(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	failing := &recordingHandler{err: errors.New("boom")}
	panicking := &HandlerFunc{Fn: func(context.Context, shared.DomainEvent) error { panic("bad handler") }}
	after := &recordingHandler{}

	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(after)

	err := bus.Publish(context.Background(), recordEvent("task", "created", uuid.New()))
	require.NoError(t, err)
	assert.Len(t, failing.handled, 1)
	assert.Len(t, after.handled, 1)
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	h := &recordingHandler{}
	bus.Subscribe(h, "invoice.sent", "invoice.*")
	bus.Unsubscribe(h)

	require.NoError(t, bus.Publish(context.Background(), recordEvent("invoice", "sent", uuid.New())))
	assert.Empty(t, h.handled)
	assert.Empty(t, bus.registry.GetHandlers("invoice.sent"))
}

func TestPublishAndClear(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	h := &recordingHandler{}
	bus.Subscribe(h)

	agg := shared.NewTenantAggregateRoot(uuid.New())
	agg.AddDomainEvent(recordEvent("contact", "updated", agg.TenantID))
	require.NoError(t, shared.PublishAndClear(context.Background(), bus, &agg))
	assert.Len(t, h.handled, 1)
	assert.Empty(t, agg.GetDomainEvents())
}
