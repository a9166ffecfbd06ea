package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/portal"
	"github.com/taxcrm/backend/internal/infrastructure/persistence/models"
	"github.com/taxcrm/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
)

// GormPortalAccessRepository implements portal.AccessRepository using GORM
type GormPortalAccessRepository struct {
	db *gorm.DB
}

// NewGormPortalAccessRepository creates a new GormPortalAccessRepository
func NewGormPortalAccessRepository(db *gorm.DB) *GormPortalAccessRepository {
	return &GormPortalAccessRepository{db: db}
}

// FindByID finds a portal login by ID
func (r *GormPortalAccessRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*portal.Access, error) {
	return r.first(ctx, tenantID, "id = ?", id)
}

// FindByEmail finds a portal login by email, case-insensitively
func (r *GormPortalAccessRepository) FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*portal.Access, error) {
	return r.first(ctx, tenantID, "LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email)))
}

// FindByContact finds the portal login of a contact
func (r *GormPortalAccessRepository) FindByContact(ctx context.Context, tenantID, contactID uuid.UUID) (*portal.Access, error) {
	return r.first(ctx, tenantID, "contact_id = ?", contactID)
}

func (r *GormPortalAccessRepository) first(ctx context.Context, tenantID uuid.UUID, cond string, arg any) (*portal.Access, error) {
	var model models.PortalAccessModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Where(cond, arg).First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindAll lists every portal login of the tenant
func (r *GormPortalAccessRepository) FindAll(ctx context.Context, tenantID uuid.UUID) ([]portal.Access, error) {
	var rows []models.PortalAccessModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Order("email ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]portal.Access, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Save creates or updates a portal login
func (r *GormPortalAccessRepository) Save(ctx context.Context, a *portal.Access) error {
	return r.db.WithContext(ctx).Save(models.PortalAccessModelFromDomain(a)).Error
}

// GormPortalMessageRepository implements portal.MessageRepository using GORM.
// Messages are append-only; the auto-increment seq doubles as the polling cursor.
type GormPortalMessageRepository struct {
	db *gorm.DB
}

// NewGormPortalMessageRepository creates a new GormPortalMessageRepository
func NewGormPortalMessageRepository(db *gorm.DB) *GormPortalMessageRepository {
	return &GormPortalMessageRepository{db: db}
}

// Create stores the message and copies the assigned seq back
func (r *GormPortalMessageRepository) Create(ctx context.Context, m *portal.Message) error {
	model := models.PortalMessageModelFromDomain(m)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	m.Seq = model.Seq
	return nil
}

// ListAfter returns up to limit messages of a thread with seq > after, oldest first
func (r *GormPortalMessageRepository) ListAfter(ctx context.Context, tenantID, contactID uuid.UUID, after int64, limit int) ([]portal.Message, error) {
	var rows []models.PortalMessageModel
	query := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).
		Where("contact_id = ? AND seq > ?", contactID, after).
		Order("seq ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]portal.Message, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// MarkRead stamps read_at on unread messages written by the other side up to uptoSeq
func (r *GormPortalMessageRepository) MarkRead(ctx context.Context, tenantID, contactID uuid.UUID, readerKind portal.SenderKind, uptoSeq int64) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.PortalMessageModel{}).Scopes(tenant.Scope(tenantID)).
		Where("contact_id = ? AND sender_kind <> ? AND read_at IS NULL AND seq <= ?", contactID, readerKind, uptoSeq).
		UpdateColumn("read_at", time.Now())
	return result.RowsAffected, result.Error
}

// UnreadCount counts messages in a thread the reader has not seen
func (r *GormPortalMessageRepository) UnreadCount(ctx context.Context, tenantID, contactID uuid.UUID, readerKind portal.SenderKind) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PortalMessageModel{}).Scopes(tenant.Scope(tenantID)).
		Where("contact_id = ? AND sender_kind <> ? AND read_at IS NULL", contactID, readerKind).
		Count(&count).Error
	return count, err
}

// Conversations lists threads by most recent activity with the staff-side unread count
func (r *GormPortalMessageRepository) Conversations(ctx context.Context, tenantID uuid.UUID, limit int) ([]portal.Conversation, error) {
	var heads []struct {
		ContactID uuid.UUID
		LastSeq   int64
	}
	query := r.db.WithContext(ctx).Model(&models.PortalMessageModel{}).Scopes(tenant.Scope(tenantID)).
		Select("contact_id, MAX(seq) AS last_seq").
		Group("contact_id").
		Order("last_seq DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(&heads).Error; err != nil {
		return nil, err
	}
	if len(heads) == 0 {
		return []portal.Conversation{}, nil
	}

	seqs := make([]int64, len(heads))
	contactIDs := make([]uuid.UUID, len(heads))
	for i, h := range heads {
		seqs[i] = h.LastSeq
		contactIDs[i] = h.ContactID
	}
	var last []models.PortalMessageModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Where("seq IN ?", seqs).Find(&last).Error; err != nil {
		return nil, err
	}
	bySeq := make(map[int64]portal.Message, len(last))
	for i := range last {
		bySeq[last[i].Seq] = last[i].ToDomain()
	}

	var unread []struct {
		ContactID uuid.UUID
		Unread    int64
	}
	if err := r.db.WithContext(ctx).Model(&models.PortalMessageModel{}).Scopes(tenant.Scope(tenantID)).
		Select("contact_id, COUNT(*) AS unread").
		Where("contact_id IN ? AND sender_kind = ? AND read_at IS NULL", contactIDs, portal.SenderClient).
		Group("contact_id").
		Scan(&unread).Error; err != nil {
		return nil, err
	}
	unreadBy := make(map[uuid.UUID]int64, len(unread))
	for _, u := range unread {
		unreadBy[u.ContactID] = u.Unread
	}

	out := make([]portal.Conversation, len(heads))
	for i, h := range heads {
		out[i] = portal.Conversation{
			ContactID:   h.ContactID,
			LastMessage: bySeq[h.LastSeq],
			UnreadCount: unreadBy[h.ContactID],
		}
	}
	return out, nil
}

var (
	_ portal.AccessRepository  = (*GormPortalAccessRepository)(nil)
	_ portal.MessageRepository = (*GormPortalMessageRepository)(nil)
)
