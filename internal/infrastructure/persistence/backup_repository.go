package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/backup"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormBackupRepository implements backup.Repository using GORM.
// Global backups have a NULL tenant_id, so queries here are scoped by hand.
type GormBackupRepository struct {
	db *gorm.DB
}

// NewGormBackupRepository creates a new GormBackupRepository
func NewGormBackupRepository(db *gorm.DB) *GormBackupRepository {
	return &GormBackupRepository{db: db}
}

// FindByID finds a backup by ID
func (r *GormBackupRepository) FindByID(ctx context.Context, id uuid.UUID) (*backup.Backup, error) {
	var model models.BackupModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindAll lists backups of one tenant, or all backups when tenantID is nil.
// Filters supports type, status and trigger.
func (r *GormBackupRepository) FindAll(ctx context.Context, tenantID *uuid.UUID, filter shared.Filter) ([]backup.Backup, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.BackupModel{})
	if tenantID != nil {
		query = query.Where("tenant_id = ?", *tenantID)
	}
	for key, value := range filter.Filters {
		switch key {
		case "type":
			query = query.Where("type = ?", value)
		case "status":
			query = query.Where("status = ?", value)
		case "trigger":
			query = query.Where(`"trigger" = ?`, value)
		}
	}
	rows, total, err := findPage[models.BackupModel](query, filter, backupSort)
	if err != nil {
		return nil, 0, err
	}
	return backupsToDomain(rows), total, nil
}

// FindLastCompleted returns the newest completed full backup the tenant took itself
func (r *GormBackupRepository) FindLastCompleted(ctx context.Context, tenantID uuid.UUID) (*backup.Backup, error) {
	var model models.BackupModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, backup.StatusCompleted).
		Where(`corporation_id IS NULL AND "trigger" <> ?`, backup.TriggerUpload).
		Order("completed_at DESC").
		First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// HasInFlight reports whether a backup or restore of the tenant is queued or running
func (r *GormBackupRepository) HasInFlight(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.BackupModel{}).
		Where("tenant_id = ?", tenantID).
		Where("(status IN ? OR restore_status IN ?)",
			[]backup.Status{backup.StatusPending, backup.StatusInProgress},
			[]backup.RestoreStatus{backup.RestoreQueued, backup.RestoreRunning}).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindAutomatic returns the completed automatic backups of a tenant, newest first
func (r *GormBackupRepository) FindAutomatic(ctx context.Context, tenantID uuid.UUID) ([]backup.Backup, error) {
	var rows []models.BackupModel
	if err := r.db.WithContext(ctx).
		Where(`tenant_id = ? AND "trigger" = ? AND status = ?`, tenantID, backup.TriggerAutomatic, backup.StatusCompleted).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return backupsToDomain(rows), nil
}

// Save creates or updates a backup record
func (r *GormBackupRepository) Save(ctx context.Context, b *backup.Backup) error {
	return r.db.WithContext(ctx).Save(models.BackupModelFromDomain(b)).Error
}

// Delete removes a backup record
func (r *GormBackupRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return deleteResult(r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.BackupModel{}))
}

func backupsToDomain(rows []models.BackupModel) []backup.Backup {
	out := make([]backup.Backup, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

var _ backup.Repository = (*GormBackupRepository)(nil)
