package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// TenantProvider lists tenants that periodic work should cover
type TenantProvider interface {
	GetAllActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// TenantTask is the per-tenant body of a periodic trigger
type TenantTask func(ctx context.Context, tenantID uuid.UUID) error

// TriggerConfig configures a periodic trigger
type TriggerConfig struct {
	Name       string
	Interval   time.Duration
	RunOnStart bool
}

// TenantTrigger runs a task for every active tenant on a fixed interval
type TenantTrigger struct {
	config   TriggerConfig
	tenants  TenantProvider
	task     TenantTask
	logger   *zap.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
	lastTick time.Time
}

// NewTenantTrigger creates a trigger; interval must be positive
func NewTenantTrigger(cfg TriggerConfig, tenants TenantProvider, task TenantTask, l *zap.Logger) (*TenantTrigger, error) {
	if cfg.Interval <= 0 || tenants == nil || task == nil {
		return nil, ErrInvalidConfig
	}
	return &TenantTrigger{
		config:  cfg,
		tenants: tenants,
		task:    task,
		logger:  l.Named("trigger").With(zap.String("trigger", cfg.Name)),
	}, nil
}

// Start begins the ticker loop
func (t *TenantTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return nil
	}
	t.running = true
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(runCtx)
	t.logger.Info("Trigger started", zap.Duration("interval", t.config.Interval))
	return nil
}

// Stop ends the ticker loop and waits for an in-progress tick
func (t *TenantTrigger) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	t.cancel()
	t.mu.Unlock()
	t.wg.Wait()
	t.logger.Info("Trigger stopped")
}

// LastTick returns when the trigger last ran
func (t *TenantTrigger) LastTick() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastTick
}

func (t *TenantTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()
	if t.config.RunOnStart {
		t.Tick(ctx)
	}
	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Tick(ctx)
		}
	}
}

// Tick runs the task once for every active tenant. Failures are logged per tenant.
func (t *TenantTrigger) Tick(ctx context.Context) {
	t.mu.Lock()
	t.lastTick = time.Now()
	t.mu.Unlock()

	tenantIDs, err := t.tenants.GetAllActiveTenantIDs(ctx)
	if err != nil {
		t.logger.Error("Failed to list active tenants", zap.Error(err))
		return
	}
	failed := 0
	for _, tenantID := range tenantIDs {
		if ctx.Err() != nil {
			return
		}
		if err := t.runTenant(ctx, tenantID); err != nil {
			failed++
			t.logger.Warn("Trigger task failed", zap.String("tenant_id", tenantID.String()), zap.Error(err))
		}
	}
	t.logger.Debug("Trigger tick finished", zap.Int("tenants", len(tenantIDs)), zap.Int("failed", failed))
}

func (t *TenantTrigger) runTenant(ctx context.Context, tenantID uuid.UUID) (err error) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Trigger task panicked", zap.String("tenant_id", tenantID.String()), zap.Any("panic", r))
		}
	}()
	tctx := logger.WithTenantID(ctx, tenantID.String())
	tctx = logger.WithContext(tctx, t.logger.With(zap.String("tenant_id", tenantID.String())))
	return t.task(tctx, tenantID)
}
