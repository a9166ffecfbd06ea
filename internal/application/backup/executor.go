package backup

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/backup"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/infrastructure/lock"
	"github.com/taxcrm/backend/internal/infrastructure/scheduler"
	"github.com/taxcrm/backend/internal/infrastructure/storage"
	"github.com/taxcrm/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ErrBackupRunning is returned while another job holds the scope lock; the scheduler retries it
var ErrBackupRunning = errors.New("backup already running")

// DefaultLockTTL bounds how long a crashed worker can keep a scope locked
const DefaultLockTTL = time.Hour

// ArchiveStore reads and replaces the rows of a backup scope
type ArchiveStore interface {
	Dump(ctx context.Context, scope backup.Scope) (*backup.Archive, error)
	Restore(ctx context.Context, archive *backup.Archive) error
}

// Executor runs backup and restore jobs for the scheduler
type Executor struct {
	repo     backup.Repository
	archives ArchiveStore
	objects  ObjectStorage
	cipher   Cipher
	locker   lock.Locker
	lockTTL  time.Duration
	events   shared.EventPublisher
	logger   *zap.Logger
	metrics  *telemetry.BusinessMetrics
}

// NewExecutor creates the job executor. lockTTL <= 0 uses DefaultLockTTL.
func NewExecutor(
	repo backup.Repository,
	archives ArchiveStore,
	objects ObjectStorage,
	cipher Cipher,
	locker lock.Locker,
	lockTTL time.Duration,
	events shared.EventPublisher,
	logger *zap.Logger,
) *Executor {
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	return &Executor{
		repo:     repo,
		archives: archives,
		objects:  objects,
		cipher:   cipher,
		locker:   locker,
		lockTTL:  lockTTL,
		events:   events,
		logger:   logger,
	}
}

// SetBusinessMetrics records the duration and archive size of every run
func (e *Executor) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	e.metrics = bm
}

func (e *Executor) observe(ctx context.Context, operation string, b *backup.Backup, started time.Time, err error) {
	if e.metrics == nil {
		return
	}
	outcome, size := telemetry.OutcomeSuccess, b.SizeBytes
	if err != nil {
		outcome, size = telemetry.OutcomeFailed, 0
	}
	e.metrics.RecordBackupRun(ctx, operation, string(b.Type), outcome, time.Since(started), size)
}

// Execute implements scheduler.JobExecutor
func (e *Executor) Execute(ctx context.Context, job *scheduler.Job) error {
	switch job.Kind {
	case scheduler.JobKindBackup:
		return e.runBackup(ctx, job.ResourceID)
	case scheduler.JobKindRestore:
		return e.runRestore(ctx, job.ResourceID)
	default:
		return fmt.Errorf("unsupported job kind %s", job.Kind)
	}
}

// OnFinalFailure marks the backup or restore failed once retries are exhausted
func (e *Executor) OnFinalFailure(ctx context.Context, job *scheduler.Job, err error) {
	b, findErr := e.repo.FindByID(ctx, job.ResourceID)
	if findErr != nil {
		e.logger.Warn("Backup vanished before its failure was recorded", zap.String("backup_id", job.ResourceID.String()), zap.Error(findErr))
		return
	}
	switch job.Kind {
	case scheduler.JobKindBackup:
		if !b.IsInFlight() {
			return
		}
		_ = b.Fail(err.Error())
	case scheduler.JobKindRestore:
		if b.RestoreStatus != backup.RestoreQueued && b.RestoreStatus != backup.RestoreRunning {
			return
		}
		b.FailRestore(err.Error())
	default:
		return
	}
	e.save(ctx, b)
}

func (e *Executor) runBackup(ctx context.Context, id uuid.UUID) error {
	b, err := e.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			e.logger.Info("Backup deleted before it ran", zap.String("backup_id", id.String()))
			return nil
		}
		return err
	}
	if b.Status == backup.StatusCompleted {
		return nil
	}
	lease, err := e.acquire(ctx, b.Scope())
	if err != nil {
		return err
	}
	defer e.release(ctx, lease)

	if err := b.Start(); err != nil {
		return err
	}
	if err := e.save(ctx, b); err != nil {
		return err
	}

	started := time.Now()
	size, checksum, manifest, err := e.produce(ctx, b)
	if err != nil {
		_ = b.Fail(err.Error())
		e.save(ctx, b)
		e.observe(ctx, "backup", b, started, err)
		return err
	}
	if err := b.Complete(size, checksum, manifest); err != nil {
		return err
	}
	if err := e.save(ctx, b); err != nil {
		return err
	}
	e.observe(ctx, "backup", b, started, nil)
	e.logger.Info("Backup completed",
		zap.String("backup_id", b.ID.String()),
		zap.String("scope", b.Scope().Key()),
		zap.Int64("size_bytes", size),
	)
	return nil
}

// produce dumps, seals and uploads the archive
func (e *Executor) produce(ctx context.Context, b *backup.Backup) (int64, string, map[string]int, error) {
	archive, err := e.archives.Dump(ctx, b.Scope())
	if err != nil {
		return 0, "", nil, err
	}
	if b.IncludeMedia {
		if err := e.embedMedia(ctx, archive); err != nil {
			return 0, "", nil, err
		}
	}
	plain, err := json.Marshal(archive)
	if err != nil {
		return 0, "", nil, fmt.Errorf("encode archive: %w", err)
	}
	sealed, err := e.cipher.Seal(plain)
	if err != nil {
		return 0, "", nil, err
	}
	if err := e.objects.PutBytes(ctx, b.StorageKey, sealed, archiveContentType); err != nil {
		return 0, "", nil, fmt.Errorf("upload archive: %w", err)
	}
	sum := sha256.Sum256(sealed)
	return int64(len(sealed)), hex.EncodeToString(sum[:]), archive.Manifest(), nil
}

func (e *Executor) embedMedia(ctx context.Context, archive *backup.Archive) error {
	archive.Media = make(map[string]string)
	for _, key := range archive.MediaKeys() {
		data, err := e.objects.Get(ctx, key)
		if err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				e.logger.Warn("Document object missing, skipped in backup", zap.String("key", key))
				continue
			}
			return fmt.Errorf("read media %s: %w", key, err)
		}
		archive.Media[key] = base64.StdEncoding.EncodeToString(data)
	}
	return nil
}

func (e *Executor) runRestore(ctx context.Context, id uuid.UUID) error {
	b, err := e.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			e.logger.Info("Backup deleted before restore ran", zap.String("backup_id", id.String()))
			return nil
		}
		return err
	}
	switch b.RestoreStatus {
	case backup.RestoreQueued, backup.RestoreRunning:
	default:
		return nil
	}
	lease, err := e.acquire(ctx, b.Scope())
	if err != nil {
		return err
	}
	defer e.release(ctx, lease)

	if b.RestoreStatus == backup.RestoreQueued {
		if err := b.StartRestore(); err != nil {
			return err
		}
		if err := e.save(ctx, b); err != nil {
			return err
		}
	}

	started := time.Now()
	if err := e.restore(ctx, b); err != nil {
		e.observe(ctx, "restore", b, started, err)
		var derr *shared.DomainError
		if errors.As(err, &derr) {
			// the archive itself is unusable; retrying cannot help
			b.FailRestore(err.Error())
			e.save(ctx, b)
		}
		return err
	}
	if err := b.CompleteRestore(); err != nil {
		return err
	}
	if err := e.save(ctx, b); err != nil {
		return err
	}
	e.observe(ctx, "restore", b, started, nil)
	e.logger.Info("Restore completed", zap.String("backup_id", b.ID.String()), zap.String("scope", b.Scope().Key()))
	return nil
}

func (e *Executor) restore(ctx context.Context, b *backup.Backup) error {
	sealed, err := e.objects.Get(ctx, b.StorageKey)
	if err != nil {
		return fmt.Errorf("download archive: %w", err)
	}
	plain, err := e.cipher.Open(sealed)
	if err != nil {
		return shared.NewDomainError("INVALID_ARCHIVE", "Backup archive could not be decrypted")
	}
	archive, err := backup.DecodeArchive(plain)
	if err != nil {
		return err
	}
	if err := archive.ValidateFor(b.Scope()); err != nil {
		return err
	}
	if err := e.archives.Restore(ctx, archive); err != nil {
		return err
	}
	return e.restoreMedia(ctx, archive)
}

func (e *Executor) restoreMedia(ctx context.Context, archive *backup.Archive) error {
	if len(archive.Media) == 0 {
		return nil
	}
	contentTypes := make(map[string]string)
	for _, row := range archive.Tables["documents"] {
		key, _ := row["storage_key"].(string)
		ct, _ := row["content_type"].(string)
		contentTypes[key] = ct
	}
	for key, encoded := range archive.Media {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return shared.NewDomainError("INVALID_ARCHIVE", "Archived media is corrupt: "+key)
		}
		ct := contentTypes[key]
		if ct == "" {
			ct = archiveContentType
		}
		if err := e.objects.PutBytes(ctx, key, data, ct); err != nil {
			return fmt.Errorf("restore media %s: %w", key, err)
		}
	}
	return nil
}

func (e *Executor) acquire(ctx context.Context, scope backup.Scope) (lock.Lease, error) {
	lease, err := e.locker.Acquire(ctx, scope.LockName(), e.lockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrLockHeld) {
			return nil, ErrBackupRunning
		}
		return nil, err
	}
	return lease, nil
}

func (e *Executor) release(ctx context.Context, lease lock.Lease) {
	if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
		e.logger.Warn("Failed to release backup lock", zap.Error(err))
	}
}

func (e *Executor) save(ctx context.Context, b *backup.Backup) error {
	if err := e.repo.Save(ctx, b); err != nil {
		e.logger.Error("Failed to save backup", zap.String("backup_id", b.ID.String()), zap.Error(err))
		return err
	}
	if err := shared.PublishAndClear(ctx, e.events, b); err != nil {
		e.logger.Warn("Failed to publish backup events", zap.Error(err))
	}
	return nil
}

var (
	_ scheduler.JobExecutor    = (*Executor)(nil)
	_ scheduler.FailureHandler = (*Executor)(nil)
)
