package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/crm"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/infrastructure/persistence/models"
	"github.com/taxcrm/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
)

// GormContactRepository implements crm.ContactRepository using GORM.
// Corporation membership is stored in contact_corporations.
type GormContactRepository struct {
	db *gorm.DB
}

// NewGormContactRepository creates a new GormContactRepository
func NewGormContactRepository(db *gorm.DB) *GormContactRepository {
	return &GormContactRepository{db: db}
}

// FindByID finds a contact by ID
func (r *GormContactRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*crm.Contact, error) {
	var model models.ContactModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	contacts, err := r.withCorporations(ctx, tenantID, []models.ContactModel{model})
	if err != nil {
		return nil, err
	}
	return &contacts[0], nil
}

// FindByIDs loads contacts by ID; unknown IDs are skipped
func (r *GormContactRepository) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]crm.Contact, error) {
	if len(ids) == 0 {
		return []crm.Contact{}, nil
	}
	var rows []models.ContactModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.withCorporations(ctx, tenantID, rows)
}

// FindAll lists contacts matching the filter
func (r *GormContactRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]crm.Contact, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ContactModel{}).Scopes(tenant.Scope(tenantID))
	query = searchColumns(query, filter.Search, "first_name", "last_name", "email", "phone")
	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "assigned_to":
			query = query.Where("assigned_to = ?", value)
		case "corporation_id":
			query = query.Where("id IN (?)", r.db.Model(&models.ContactCorporationModel{}).
				Select("contact_id").Where("corporation_id = ?", value))
		}
	}
	rows, total, err := findPage[models.ContactModel](query, filter, contactSort)
	if err != nil {
		return nil, 0, err
	}
	contacts, err := r.withCorporations(ctx, tenantID, rows)
	if err != nil {
		return nil, 0, err
	}
	return contacts, total, nil
}

// FindByCorporation lists the contacts linked to a corporation
func (r *GormContactRepository) FindByCorporation(ctx context.Context, tenantID, corporationID uuid.UUID) ([]crm.Contact, error) {
	var rows []models.ContactModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).
		Where("id IN (?)", r.db.Model(&models.ContactCorporationModel{}).
			Select("contact_id").Where("corporation_id = ?", corporationID)).
		Order("last_name ASC, first_name ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.withCorporations(ctx, tenantID, rows)
}

// FindInactiveSince lists active contacts with no recorded activity after cutoff
func (r *GormContactRepository) FindInactiveSince(ctx context.Context, tenantID uuid.UUID, cutoff time.Time, limit int) ([]crm.Contact, error) {
	var rows []models.ContactModel
	query := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).
		Where("status = ?", crm.ContactStatusActive).
		Where("((last_activity_at IS NULL AND created_at < ?) OR last_activity_at < ?)", cutoff, cutoff).
		Order("last_activity_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.withCorporations(ctx, tenantID, rows)
}

// Save creates or updates a contact and replaces its corporation links
func (r *GormContactRepository) Save(ctx context.Context, contact *crm.Contact) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(models.ContactModelFromDomain(contact)).Error; err != nil {
			return err
		}
		if err := tx.Where("contact_id = ?", contact.ID).Delete(&models.ContactCorporationModel{}).Error; err != nil {
			return err
		}
		if len(contact.CorporationIDs) == 0 {
			return nil
		}
		now := time.Now()
		links := make([]models.ContactCorporationModel, len(contact.CorporationIDs))
		for i, corpID := range contact.CorporationIDs {
			links[i] = models.ContactCorporationModel{ContactID: contact.ID, CorporationID: corpID, TenantID: contact.TenantID, CreatedAt: now}
		}
		return tx.Create(&links).Error
	})
}

// Delete soft-deletes a contact
func (r *GormContactRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return deleteResult(r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Where("id = ?", id).Delete(&models.ContactModel{}))
}

// ExistsByEmail checks if another live contact uses the email
func (r *GormContactRepository) ExistsByEmail(ctx context.Context, tenantID uuid.UUID, email string, excludeID *uuid.UUID) (bool, error) {
	if strings.TrimSpace(email) == "" {
		return false, nil
	}
	query := r.db.WithContext(ctx).Model(&models.ContactModel{}).Scopes(tenant.Scope(tenantID)).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email)))
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormContactRepository) withCorporations(ctx context.Context, tenantID uuid.UUID, rows []models.ContactModel) ([]crm.Contact, error) {
	contacts := make([]crm.Contact, len(rows))
	if len(rows) == 0 {
		return contacts, nil
	}
	ids := make([]uuid.UUID, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	var links []models.ContactCorporationModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).
		Where("contact_id IN ?", ids).
		Order("created_at ASC").
		Find(&links).Error; err != nil {
		return nil, err
	}
	byContact := make(map[uuid.UUID][]uuid.UUID, len(rows))
	for _, l := range links {
		byContact[l.ContactID] = append(byContact[l.ContactID], l.CorporationID)
	}
	for i := range rows {
		c := rows[i].ToDomain()
		if corps, ok := byContact[c.ID]; ok {
			c.CorporationIDs = corps
		}
		contacts[i] = *c
	}
	return contacts, nil
}

// GormCorporationRepository implements crm.CorporationRepository using GORM.
// Each corporation owns the outgoing rows of corporation_relations.
type GormCorporationRepository struct {
	db *gorm.DB
}

// NewGormCorporationRepository creates a new GormCorporationRepository
func NewGormCorporationRepository(db *gorm.DB) *GormCorporationRepository {
	return &GormCorporationRepository{db: db}
}

// FindByID finds a corporation by ID
func (r *GormCorporationRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*crm.Corporation, error) {
	var model models.CorporationModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	corps, err := r.withRelations(ctx, tenantID, []models.CorporationModel{model})
	if err != nil {
		return nil, err
	}
	return &corps[0], nil
}

// FindByIDs loads corporations by ID; unknown IDs are skipped
func (r *GormCorporationRepository) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]crm.Corporation, error) {
	if len(ids) == 0 {
		return []crm.Corporation{}, nil
	}
	var rows []models.CorporationModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.withRelations(ctx, tenantID, rows)
}

// FindAll lists corporations matching the filter
func (r *GormCorporationRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]crm.Corporation, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.CorporationModel{}).Scopes(tenant.Scope(tenantID))
	query = searchColumns(query, filter.Search, "name", "email", "ein_last4")
	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "entity_type":
			query = query.Where("entity_type = ?", value)
		case "parent_id":
			query = query.Where("parent_id = ?", value)
		}
	}
	rows, total, err := findPage[models.CorporationModel](query, filter, corporationSort)
	if err != nil {
		return nil, 0, err
	}
	corps, err := r.withRelations(ctx, tenantID, rows)
	if err != nil {
		return nil, 0, err
	}
	return corps, total, nil
}

// FindChildren lists the direct subsidiaries of a corporation
func (r *GormCorporationRepository) FindChildren(ctx context.Context, tenantID, parentID uuid.UUID) ([]crm.Corporation, error) {
	var rows []models.CorporationModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).
		Where("parent_id = ?", parentID).
		Order("name ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.withRelations(ctx, tenantID, rows)
}

// Save creates or updates a corporation and replaces its outgoing relations
func (r *GormCorporationRepository) Save(ctx context.Context, corporation *crm.Corporation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(models.CorporationModelFromDomain(corporation)).Error; err != nil {
			return err
		}
		if err := tx.Where("corporation_id = ?", corporation.ID).Delete(&models.CorporationRelationModel{}).Error; err != nil {
			return err
		}
		if len(corporation.RelatedIDs) == 0 {
			return nil
		}
		now := time.Now()
		links := make([]models.CorporationRelationModel, len(corporation.RelatedIDs))
		for i, relID := range corporation.RelatedIDs {
			links[i] = models.CorporationRelationModel{CorporationID: corporation.ID, RelatedID: relID, TenantID: corporation.TenantID, CreatedAt: now}
		}
		return tx.Create(&links).Error
	})
}

// Delete soft-deletes a corporation and detaches it from contacts, relations and subsidiaries
func (r *GormCorporationRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteResult(tx.Scopes(tenant.Scope(tenantID)).Where("id = ?", id).Delete(&models.CorporationModel{})); err != nil {
			return err
		}
		if err := tx.Where("(corporation_id = ? OR related_id = ?)", id, id).Delete(&models.CorporationRelationModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("corporation_id = ?", id).Delete(&models.ContactCorporationModel{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ContactModel{}).Scopes(tenant.Scope(tenantID)).
			Where("primary_corporation_id = ?", id).
			Update("primary_corporation_id", nil).Error; err != nil {
			return err
		}
		return tx.Model(&models.CorporationModel{}).Scopes(tenant.Scope(tenantID)).
			Where("parent_id = ?", id).
			Update("parent_id", nil).Error
	})
}

func (r *GormCorporationRepository) withRelations(ctx context.Context, tenantID uuid.UUID, rows []models.CorporationModel) ([]crm.Corporation, error) {
	corps := make([]crm.Corporation, len(rows))
	if len(rows) == 0 {
		return corps, nil
	}
	ids := make([]uuid.UUID, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	var links []models.CorporationRelationModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).
		Where("corporation_id IN ?", ids).
		Order("created_at ASC").
		Find(&links).Error; err != nil {
		return nil, err
	}
	byCorp := make(map[uuid.UUID][]uuid.UUID, len(rows))
	for _, l := range links {
		byCorp[l.CorporationID] = append(byCorp[l.CorporationID], l.RelatedID)
	}
	for i := range rows {
		c := rows[i].ToDomain()
		if rel, ok := byCorp[c.ID]; ok {
			c.RelatedIDs = rel
		}
		corps[i] = *c
	}
	return corps, nil
}

var (
	_ crm.ContactRepository     = (*GormContactRepository)(nil)
	_ crm.CorporationRepository = (*GormCorporationRepository)(nil)
)
