package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/infrastructure/logger"
	"github.com/taxcrm/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// JobStatus represents the status of a job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// JobKind selects the executor that runs a job
type JobKind string

const (
	JobKindBackup     JobKind = "backup"
	JobKindRestore    JobKind = "restore"
	JobKindAgentCycle JobKind = "agent_cycle"
)

// Job is one unit of background work
type Job struct {
	ID          uuid.UUID
	Kind        JobKind
	TenantID    *uuid.UUID
	ResourceID  uuid.UUID
	Args        map[string]string
	Status      JobStatus
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
}

// NewJob creates a pending job
func NewJob(kind JobKind, tenantID *uuid.UUID, resourceID uuid.UUID, args map[string]string) *Job {
	if args == nil {
		args = map[string]string{}
	}
	return &Job{
		ID:         uuid.New(),
		Kind:       kind,
		TenantID:   tenantID,
		ResourceID: resourceID,
		Args:       args,
		Status:     JobStatusPending,
	}
}

// Start marks the job as running
func (j *Job) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete marks the job as successful
func (j *Job) Complete() {
	now := time.Now()
	j.Status = JobStatusSuccess
	j.CompletedAt = &now
}

// Fail marks the job as failed
func (j *Job) Fail(err string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// ShouldRetry reports whether a failed job has retries left
func (j *Job) ShouldRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// JobExecutor runs jobs of one kind
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) error
}

// ExecutorFunc adapts a function to JobExecutor
type ExecutorFunc func(ctx context.Context, job *Job) error

// Execute calls f
func (f ExecutorFunc) Execute(ctx context.Context, job *Job) error {
	return f(ctx, job)
}

// FailureHandler is implemented by executors that must record a job's final failure
type FailureHandler interface {
	OnFinalFailure(ctx context.Context, job *Job, err error)
}

// Config holds scheduler configuration
type Config struct {
	MaxConcurrentJobs int
	QueueSize         int
	JobTimeout        time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrentJobs: 3,
		QueueSize:         100,
		JobTimeout:        30 * time.Minute,
		RetryAttempts:     3,
		RetryDelay:        time.Minute,
	}
}

// Scheduler runs submitted jobs on a bounded worker pool with retry
type Scheduler struct {
	config    Config
	logger    *zap.Logger
	executors map[JobKind]JobExecutor
	metrics   *telemetry.BusinessMetrics

	jobs      chan *Job
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	isRunning bool
}

// NewScheduler creates a scheduler; executors are added with Register
func NewScheduler(cfg Config, l *zap.Logger) (*Scheduler, error) {
	if cfg.MaxConcurrentJobs <= 0 || cfg.JobTimeout <= 0 || cfg.RetryAttempts < 0 {
		return nil, ErrInvalidConfig
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	return &Scheduler{
		config:    cfg,
		logger:    l.Named("scheduler"),
		executors: make(map[JobKind]JobExecutor),
		jobs:      make(chan *Job, cfg.QueueSize),
	}, nil
}

// Register binds an executor to a job kind
func (s *Scheduler) Register(kind JobKind, executor JobExecutor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executors[kind] = executor
}

// SetBusinessMetrics reports queue depth, retries and finished attempts to bm
func (s *Scheduler) SetBusinessMetrics(bm *telemetry.BusinessMetrics) error {
	s.mu.Lock()
	s.metrics = bm
	s.mu.Unlock()
	if bm == nil {
		return nil
	}
	return bm.ObserveQueueDepth(s.QueueDepth)
}

// QueueDepth is the number of jobs waiting for a worker
func (s *Scheduler) QueueDepth() int {
	return len(s.jobs)
}

// Start launches the worker pool
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(runCtx, i)
	}
	s.logger.Info("Scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels running jobs and waits for workers until ctx expires
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("Scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether workers are accepting jobs
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Submit queues a job. Jobs get the configured retry budget.
func (s *Scheduler) Submit(job *Job) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}
	if _, ok := s.executors[job.Kind]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJobKind, job.Kind)
	}
	job.MaxRetries = s.config.RetryAttempts
	select {
	case s.jobs <- job:
		s.logger.Debug("Job submitted", zap.String("job_id", job.ID.String()), zap.String("kind", string(job.Kind)))
		return nil
	default:
		return ErrJobQueueFull
	}
}

func (s *Scheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.jobs:
			s.process(ctx, job, workerID)
		}
	}
}

func (s *Scheduler) process(ctx context.Context, job *Job, workerID int) {
	s.mu.RLock()
	executor := s.executors[job.Kind]
	metrics := s.metrics
	s.mu.RUnlock()

	fields := []zap.Field{
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("kind", string(job.Kind)),
		zap.String("resource_id", job.ResourceID.String()),
	}
	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()
	if job.TenantID != nil {
		jobCtx = logger.WithTenantID(jobCtx, job.TenantID.String())
	}
	jobCtx = logger.WithContext(jobCtx, s.logger.With(fields...))

	job.Start()
	s.logger.Info("Processing job", fields...)

	err := s.execute(jobCtx, executor, job)
	if err == nil {
		job.Complete()
		s.logger.Info("Job completed", fields...)
		if metrics != nil {
			metrics.RecordJobFinished(ctx, string(job.Kind), telemetry.OutcomeSuccess)
		}
		return
	}

	job.Fail(err.Error())
	s.logger.Error("Job failed", append(fields, zap.Int("retry_count", job.RetryCount), zap.Error(err))...)
	if metrics != nil {
		metrics.RecordJobFinished(ctx, string(job.Kind), telemetry.OutcomeFailed)
	}

	if job.ShouldRetry() {
		if metrics != nil {
			metrics.RecordJobRetry(ctx, string(job.Kind))
		}
		job.RetryCount++
		job.Status = JobStatusPending
		time.AfterFunc(s.config.RetryDelay, func() {
			if submitErr := s.resubmit(job); submitErr != nil {
				s.logger.Warn("Failed to re-queue job for retry", append(fields, zap.Error(submitErr))...)
				s.finalFailure(job, executor, err)
			}
		})
		return
	}
	s.finalFailure(job, executor, err)
}

func (s *Scheduler) execute(ctx context.Context, executor JobExecutor, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return executor.Execute(ctx, job)
}

func (s *Scheduler) resubmit(job *Job) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}
	select {
	case s.jobs <- job:
		return nil
	default:
		return ErrJobQueueFull
	}
}

func (s *Scheduler) finalFailure(job *Job, executor JobExecutor, err error) {
	fh, ok := executor.(FailureHandler)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if job.TenantID != nil {
		ctx = logger.WithTenantID(ctx, job.TenantID.String())
	}
	fh.OnFinalFailure(ctx, job, err)
}
