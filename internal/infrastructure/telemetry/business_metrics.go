package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when BusinessMetrics is built without a meter
var ErrMeterNil = errors.New("business metrics: meter cannot be nil")

// Outcome labels how a backup, restore or job ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// BusinessMetrics holds the practice-level instruments: backup jobs, the
// background scheduler and approval decisions.
type BusinessMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	backupDuration    *Histogram
	backupSize        *Histogram
	jobsFinished      *Counter
	jobRetries        *Counter
	approvalDecisions *Counter
	actionFailures    *Counter

	queueDepth   metric.Int64ObservableGauge
	registration metric.Registration
}

// BusinessMetricsConfig holds configuration for business metrics.
type BusinessMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewBusinessMetrics creates every instrument up front
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	bm := &BusinessMetrics{meter: cfg.Meter, logger: logger}

	var err error
	if bm.backupDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "taxcrm_backup_duration_seconds",
		Description: "Duration of backup and restore jobs",
		Unit:        "s",
		Boundaries:  JobDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if bm.backupSize, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "taxcrm_backup_size_bytes",
		Description: "Size of sealed backup archives",
		Unit:        "By",
		Boundaries:  ArchiveSizeBuckets,
	}); err != nil {
		return nil, err
	}
	if bm.jobsFinished, err = NewCounter(cfg.Meter, "taxcrm_scheduler_jobs_total", "Background jobs that finished an attempt", "{job}"); err != nil {
		return nil, err
	}
	if bm.jobRetries, err = NewCounter(cfg.Meter, "taxcrm_scheduler_job_retries_total", "Background job attempts scheduled for retry", "{retry}"); err != nil {
		return nil, err
	}
	if bm.approvalDecisions, err = NewCounter(cfg.Meter, "taxcrm_approval_decisions_total", "Approval requests decided", "{decision}"); err != nil {
		return nil, err
	}
	if bm.actionFailures, err = NewCounter(cfg.Meter, "taxcrm_approval_action_failures_total", "Approval actions that failed after a decision", "{action}"); err != nil {
		return nil, err
	}
	if bm.queueDepth, err = cfg.Meter.Int64ObservableGauge("taxcrm_scheduler_queue_depth",
		metric.WithDescription("Jobs waiting for a scheduler worker"),
		metric.WithUnit("{job}"),
	); err != nil {
		return nil, fmt.Errorf("create gauge taxcrm_scheduler_queue_depth: %w", err)
	}
	return bm, nil
}

// RecordBackupRun records one finished backup or restore. sizeBytes is
// ignored when zero.
func (bm *BusinessMetrics) RecordBackupRun(ctx context.Context, operation, scope string, outcome Outcome, d time.Duration, sizeBytes int64) {
	attrs := []attribute.KeyValue{
		AttrOperation.String(operation),
		AttrScope.String(scope),
		AttrOutcome.String(string(outcome)),
	}
	bm.backupDuration.RecordDuration(ctx, d, attrs...)
	if sizeBytes > 0 {
		bm.backupSize.Record(ctx, float64(sizeBytes), AttrOperation.String(operation), AttrScope.String(scope))
	}
}

func (bm *BusinessMetrics) RecordJobFinished(ctx context.Context, kind string, outcome Outcome) {
	bm.jobsFinished.Inc(ctx, AttrJobKind.String(kind), AttrOutcome.String(string(outcome)))
}

func (bm *BusinessMetrics) RecordJobRetry(ctx context.Context, kind string) {
	bm.jobRetries.Inc(ctx, AttrJobKind.String(kind))
}

// ObserveQueueDepth reports depth() on every collection. A later call
// replaces the earlier callback.
func (bm *BusinessMetrics) ObserveQueueDepth(depth func() int) error {
	if bm.registration != nil {
		if err := bm.registration.Unregister(); err != nil {
			return err
		}
	}
	reg, err := bm.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(bm.queueDepth, int64(depth()))
		return nil
	}, bm.queueDepth)
	if err != nil {
		return fmt.Errorf("observe queue depth: %w", err)
	}
	bm.registration = reg
	return nil
}

func (bm *BusinessMetrics) RecordApprovalDecision(ctx context.Context, tenantID uuid.UUID, module, decision string) {
	bm.approvalDecisions.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrModule.String(module),
		AttrDecision.String(decision),
	)
}

func (bm *BusinessMetrics) RecordActionFailures(ctx context.Context, tenantID uuid.UUID, module string, failed int) {
	if failed <= 0 {
		return
	}
	bm.actionFailures.Add(ctx, int64(failed), AttrTenantID.String(tenantID.String()), AttrModule.String(module))
}

// Stop drops the queue depth callback.
func (bm *BusinessMetrics) Stop() {
	if bm.registration == nil {
		return
	}
	if err := bm.registration.Unregister(); err != nil {
		bm.logger.Warn("Failed to unregister metrics callback", zap.Error(err))
	}
	bm.registration = nil
}
