package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/audit"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/infrastructure/persistence/models"
	"github.com/taxcrm/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
)

// GormAuditLogRepository implements audit.Repository using GORM. Entries are insert-only.
type GormAuditLogRepository struct {
	db *gorm.DB
}

// NewGormAuditLogRepository creates a new GormAuditLogRepository
func NewGormAuditLogRepository(db *gorm.DB) *GormAuditLogRepository {
	return &GormAuditLogRepository{db: db}
}

// Create appends an entry
func (r *GormAuditLogRepository) Create(ctx context.Context, entry *audit.Log) error {
	return r.db.WithContext(ctx).Create(models.AuditLogModelFromDomain(entry)).Error
}

// FindByID finds an entry by ID
func (r *GormAuditLogRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*audit.Log, error) {
	var model models.AuditLogModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// Find lists entries newest first
func (r *GormAuditLogRepository) Find(ctx context.Context, tenantID uuid.UUID, q audit.Query) ([]audit.Log, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.AuditLogModel{}).Scopes(tenant.Scope(tenantID))
	if q.ResourceType != "" {
		query = query.Where("resource_type = ?", q.ResourceType)
	}
	if q.ResourceID != nil {
		query = query.Where("resource_id = ?", *q.ResourceID)
	}
	if q.UserID != nil {
		query = query.Where("user_id = ?", *q.UserID)
	}
	if q.Action != "" {
		query = query.Where("action = ?", q.Action)
	}
	if q.From != nil {
		query = query.Where("occurred_at >= ?", *q.From)
	}
	if q.To != nil {
		query = query.Where("occurred_at < ?", *q.To)
	}
	filter := shared.Filter{Page: q.Page, PageSize: q.PageSize, OrderBy: "occurred_at", OrderDir: "desc"}.Normalize()
	rows, total, err := findPage[models.AuditLogModel](query, filter, auditLogSort)
	if err != nil {
		return nil, 0, err
	}
	out := make([]audit.Log, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// CountSince counts entries recorded after since
func (r *GormAuditLogRepository) CountSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.AuditLogModel{}).Scopes(tenant.Scope(tenantID)).
		Where("occurred_at > ?", since).
		Count(&count).Error
	return count, err
}

var _ audit.Repository = (*GormAuditLogRepository)(nil)
