package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taxcrm/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

type staticTenants struct {
	ids []uuid.UUID
	err error
}

func (s staticTenants) GetAllActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	return s.ids, s.err
}

func TestNewTenantTrigger_Validation(t *testing.T) {
	_, err := NewTenantTrigger(TriggerConfig{Name: "x"}, staticTenants{}, func(context.Context, uuid.UUID) error { return nil }, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestTenantTrigger_TickRunsEveryTenant(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	var mu sync.Mutex
	seen := map[uuid.UUID]string{}
	task := func(ctx context.Context, tenantID uuid.UUID) error {
		mu.Lock()
		seen[tenantID] = logger.GetTenantID(ctx)
		mu.Unlock()
		if tenantID == b {
			return errors.New("failed")
		}
		if tenantID == c {
			panic("boom")
		}
		return nil
	}
	trig, err := NewTenantTrigger(TriggerConfig{Name: "backup-check", Interval: time.Hour}, staticTenants{ids: []uuid.UUID{a, b, c}}, task, zap.NewNop())
	require.NoError(t, err)

	trig.Tick(context.Background())

	assert.Len(t, seen, 3)
	assert.Equal(t, a.String(), seen[a])
	assert.False(t, trig.LastTick().IsZero())
}

func TestTenantTrigger_ProviderError(t *testing.T) {
	called := false
	trig, err := NewTenantTrigger(TriggerConfig{Name: "x", Interval: time.Hour}, staticTenants{err: errors.New("db down")},
		func(context.Context, uuid.UUID) error { called = true; return nil }, zap.NewNop())
	require.NoError(t, err)
	trig.Tick(context.Background())
	assert.False(t, called)
}

func TestTenantTrigger_StartRunsOnStartAndStops(t *testing.T) {
	ran := make(chan struct{}, 1)
	trig, err := NewTenantTrigger(TriggerConfig{Name: "reminders", Interval: time.Hour, RunOnStart: true},
		staticTenants{ids: []uuid.UUID{uuid.New()}},
		func(context.Context, uuid.UUID) error {
			select {
			case ran <- struct{}{}:
			default:
			}
			return nil
		}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, trig.Start(context.Background()))
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("trigger did not run on start")
	}
	trig.Stop()
	trig.Stop()
}
