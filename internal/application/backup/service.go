package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/backup"
	"github.com/taxcrm/backend/internal/domain/crm"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/infrastructure/crypto"
	"github.com/taxcrm/backend/internal/infrastructure/scheduler"
	"go.uber.org/zap"
)

// DefaultDownloadExpiry is the lifetime of presigned archive links
const DefaultDownloadExpiry = 15 * time.Minute

const archiveContentType = "application/octet-stream"

// ObjectStorage holds the encrypted archives and the document media they embed
type ObjectStorage interface {
	PutBytes(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	PresignGet(ctx context.Context, key string, expiresIn time.Duration) (string, time.Time, error)
	Delete(ctx context.Context, key string) error
}

// Cipher seals archives at rest
type Cipher interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(token []byte) ([]byte, error)
}

// JobSubmitter queues background work
type JobSubmitter interface {
	Submit(job *scheduler.Job) error
}

// Service manages backup records and queues backup and restore jobs
type Service struct {
	repo            backup.Repository
	corporationRepo crm.CorporationRepository
	objects         ObjectStorage
	cipher          Cipher
	jobs            JobSubmitter
	events          shared.EventPublisher
	logger          *zap.Logger
	downloadExpiry  time.Duration
}

// NewService creates a new backup service
func NewService(
	repo backup.Repository,
	corporationRepo crm.CorporationRepository,
	objects ObjectStorage,
	cipher Cipher,
	jobs JobSubmitter,
	events shared.EventPublisher,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:            repo,
		corporationRepo: corporationRepo,
		objects:         objects,
		cipher:          cipher,
		jobs:            jobs,
		events:          events,
		logger:          logger,
		downloadExpiry:  DefaultDownloadExpiry,
	}
}

// Create records a pending manual backup and queues it
func (s *Service) Create(ctx context.Context, req Requester, input CreateInput) (*BackupDTO, error) {
	scope, err := s.scopeFor(ctx, req, backup.Type(input.Type), input.CorporationID)
	if err != nil {
		return nil, err
	}
	b, err := backup.NewBackup(scope, backup.TriggerManual, input.IncludeMedia, &req.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.enqueue(ctx, b); err != nil {
		return nil, err
	}
	dto := ToBackupDTO(b)
	return &dto, nil
}

// createAutomatic queues a tenant-wide backup on behalf of the scheduler
func (s *Service) createAutomatic(ctx context.Context, tenantID uuid.UUID) (*backup.Backup, error) {
	b, err := backup.NewBackup(backup.TenantScope(tenantID, nil), backup.TriggerAutomatic, false, nil)
	if err != nil {
		return nil, err
	}
	return b, s.enqueue(ctx, b)
}

func (s *Service) scopeFor(ctx context.Context, req Requester, typ backup.Type, corporationID *uuid.UUID) (backup.Scope, error) {
	switch typ {
	case backup.TypeGlobal:
		if !req.Global {
			return backup.Scope{}, shared.NewDomainError("FORBIDDEN", "Global backups require platform access")
		}
		return backup.GlobalScope(), nil
	case "", backup.TypeTenant:
		if corporationID != nil {
			if _, err := s.corporationRepo.FindByID(ctx, req.TenantID, *corporationID); err != nil {
				return backup.Scope{}, err
			}
		}
		return backup.TenantScope(req.TenantID, corporationID), nil
	default:
		return backup.Scope{}, shared.NewDomainError("INVALID_BACKUP_SCOPE", "Unknown backup type: "+string(typ))
	}
}

func (s *Service) enqueue(ctx context.Context, b *backup.Backup) error {
	if err := s.repo.Save(ctx, b); err != nil {
		return err
	}
	s.publish(ctx, b)
	job := scheduler.NewJob(scheduler.JobKindBackup, b.TenantID, b.ID, map[string]string{"scope": b.Scope().Key()})
	if err := s.jobs.Submit(job); err != nil {
		_ = b.Fail("could not queue backup: " + err.Error())
		if saveErr := s.repo.Save(ctx, b); saveErr != nil {
			s.logger.Error("Failed to record unqueued backup", zap.String("backup_id", b.ID.String()), zap.Error(saveErr))
		}
		s.publish(ctx, b)
		return fmt.Errorf("queue backup: %w", err)
	}
	s.logger.Info("Backup queued",
		zap.String("backup_id", b.ID.String()),
		zap.String("scope", b.Scope().Key()),
		zap.String("trigger", string(b.Trigger)),
	)
	return nil
}

// GetByID returns one backup visible to the requester
func (s *Service) GetByID(ctx context.Context, req Requester, id uuid.UUID) (*BackupDTO, error) {
	b, err := s.load(ctx, req, id)
	if err != nil {
		return nil, err
	}
	dto := ToBackupDTO(b)
	return &dto, nil
}

// List returns the tenant's backups, or every backup for platform operators
func (s *Service) List(ctx context.Context, req Requester, filter shared.Filter) ([]BackupDTO, int64, error) {
	var tenantID *uuid.UUID
	if !req.Global {
		tenantID = &req.TenantID
	}
	backups, total, err := s.repo.FindAll(ctx, tenantID, filter.Normalize())
	if err != nil {
		return nil, 0, err
	}
	out := make([]BackupDTO, len(backups))
	for i := range backups {
		out[i] = ToBackupDTO(&backups[i])
	}
	return out, total, nil
}

// Restore queues a restore of a completed backup. confirm must be set.
func (s *Service) Restore(ctx context.Context, req Requester, id uuid.UUID, confirm bool) (*BackupDTO, error) {
	if !confirm {
		return nil, shared.ErrConfirmationNeeded
	}
	b, err := s.load(ctx, req, id)
	if err != nil {
		return nil, err
	}
	if err := s.queueRestore(ctx, b, req.UserID); err != nil {
		return nil, err
	}
	dto := ToBackupDTO(b)
	return &dto, nil
}

func (s *Service) queueRestore(ctx context.Context, b *backup.Backup, by uuid.UUID) error {
	if err := b.QueueRestore(&by); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, b); err != nil {
		return err
	}
	job := scheduler.NewJob(scheduler.JobKindRestore, b.TenantID, b.ID, map[string]string{"scope": b.Scope().Key()})
	if err := s.jobs.Submit(job); err != nil {
		b.FailRestore("could not queue restore: " + err.Error())
		if saveErr := s.repo.Save(ctx, b); saveErr != nil {
			s.logger.Error("Failed to record unqueued restore", zap.String("backup_id", b.ID.String()), zap.Error(saveErr))
		}
		s.publish(ctx, b)
		return fmt.Errorf("queue restore: %w", err)
	}
	s.logger.Info("Restore queued", zap.String("backup_id", b.ID.String()), zap.String("requested_by", by.String()))
	return nil
}

// Upload validates an encrypted archive produced elsewhere, stores it as a completed
// backup and optionally queues a restore from it
func (s *Service) Upload(ctx context.Context, req Requester, input UploadInput) (*BackupDTO, error) {
	if input.RestoreImmediately && !input.Confirm {
		return nil, shared.ErrConfirmationNeeded
	}
	if len(input.Data) == 0 {
		return nil, shared.NewDomainError("INVALID_ARCHIVE", "Backup file is empty")
	}
	plain, err := s.cipher.Open(input.Data)
	if err != nil {
		if errors.Is(err, crypto.ErrDecrypt) {
			return nil, shared.NewDomainError("INVALID_ARCHIVE", "Backup file could not be decrypted with the configured key")
		}
		return nil, err
	}
	archive, err := backup.DecodeArchive(plain)
	if err != nil {
		return nil, err
	}
	target := backup.TenantScope(req.TenantID, archive.CorporationID)
	if archive.Type == backup.TypeGlobal {
		if !req.Global {
			return nil, shared.NewDomainError("FORBIDDEN", "Global archives require platform access")
		}
		target = backup.GlobalScope()
	}
	if err := archive.ValidateFor(target); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(input.Data)
	b, err := backup.NewUploadedBackup(target, uuid.Nil, int64(len(input.Data)), hex.EncodeToString(sum[:]),
		archive.Manifest(), len(archive.Media) > 0, &req.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.objects.PutBytes(ctx, b.StorageKey, input.Data, archiveContentType); err != nil {
		return nil, fmt.Errorf("store uploaded archive: %w", err)
	}
	if err := s.repo.Save(ctx, b); err != nil {
		s.removeObject(ctx, b.StorageKey)
		return nil, err
	}
	s.publish(ctx, b)
	if input.RestoreImmediately {
		if err := s.queueRestore(ctx, b, req.UserID); err != nil {
			return nil, err
		}
	}
	dto := ToBackupDTO(b)
	return &dto, nil
}

// DownloadURL returns a presigned link to the encrypted archive
func (s *Service) DownloadURL(ctx context.Context, req Requester, id uuid.UUID) (*DownloadDTO, error) {
	b, err := s.load(ctx, req, id)
	if err != nil {
		return nil, err
	}
	if b.Status != backup.StatusCompleted {
		return nil, shared.NewDomainError("BACKUP_NOT_COMPLETED", "Only completed backups can be downloaded")
	}
	url, expiresAt, err := s.objects.PresignGet(ctx, b.StorageKey, s.downloadExpiry)
	if err != nil {
		return nil, fmt.Errorf("presign archive: %w", err)
	}
	return &DownloadDTO{
		URL:       url,
		ExpiresAt: expiresAt,
		Filename:  "backup-" + b.Scope().Key() + "-" + b.ID.String() + ".enc",
	}, nil
}

// Delete removes the archive and the record
func (s *Service) Delete(ctx context.Context, req Requester, id uuid.UUID) error {
	b, err := s.load(ctx, req, id)
	if err != nil {
		return err
	}
	return s.remove(ctx, b)
}

func (s *Service) remove(ctx context.Context, b *backup.Backup) error {
	if b.IsInFlight() || b.RestoreStatus == backup.RestoreQueued || b.RestoreStatus == backup.RestoreRunning {
		return shared.NewDomainError("BACKUP_IN_PROGRESS", "A backup or restore is still running")
	}
	if err := s.repo.Delete(ctx, b.ID); err != nil {
		return err
	}
	s.removeObject(ctx, b.StorageKey)
	tenantID := uuid.Nil
	if b.TenantID != nil {
		tenantID = *b.TenantID
	}
	b.AddDomainEvent(shared.NewRecordEvent(backup.AggregateType, "deleted", b.ID, tenantID, map[string]any{"trigger": string(b.Trigger)}))
	s.publish(ctx, b)
	return nil
}

// load fetches a backup the requester may see. Other tenants' backups look missing.
func (s *Service) load(ctx context.Context, req Requester, id uuid.UUID) (*backup.Backup, error) {
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Global {
		return b, nil
	}
	if b.Type == backup.TypeGlobal || b.TenantID == nil || *b.TenantID != req.TenantID {
		return nil, shared.ErrNotFound
	}
	return b, nil
}

func (s *Service) removeObject(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.objects.Delete(ctx, key); err != nil {
		s.logger.Warn("Failed to delete backup archive", zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, b *backup.Backup) {
	if err := shared.PublishAndClear(ctx, s.events, b); err != nil {
		s.logger.Warn("Failed to publish backup events", zap.Error(err))
	}
}
