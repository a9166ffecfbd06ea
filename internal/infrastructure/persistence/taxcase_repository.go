package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/domain/taxcase"
	"github.com/taxcrm/backend/internal/infrastructure/persistence/models"
	"github.com/taxcrm/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
)

// closedCaseStatuses are excluded from due-date reminders
var closedCaseStatuses = []taxcase.Status{taxcase.StatusFiled, taxcase.StatusClosed, taxcase.StatusCancelled}

// GormTaxCaseRepository implements taxcase.Repository using GORM
type GormTaxCaseRepository struct {
	db *gorm.DB
}

// NewGormTaxCaseRepository creates a new GormTaxCaseRepository
func NewGormTaxCaseRepository(db *gorm.DB) *GormTaxCaseRepository {
	return &GormTaxCaseRepository{db: db}
}

// FindByID finds a tax case by ID
func (r *GormTaxCaseRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*taxcase.TaxCase, error) {
	var model models.TaxCaseModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindAll lists tax cases matching the filter
func (r *GormTaxCaseRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]taxcase.TaxCase, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.TaxCaseModel{}).Scopes(tenant.Scope(tenantID))
	query = searchColumns(query, filter.Search, "case_number", "notes")
	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "tax_year":
			query = query.Where("tax_year = ?", value)
		case "case_type":
			query = query.Where("case_type = ?", value)
		case "preparer_id":
			query = query.Where("preparer_id = ?", value)
		case "contact_id":
			query = query.Where("contact_id = ?", value)
		case "corporation_id":
			query = query.Where("corporation_id = ?", value)
		}
	}
	rows, total, err := findPage[models.TaxCaseModel](query, filter, taxCaseSort)
	if err != nil {
		return nil, 0, err
	}
	cases := make([]taxcase.TaxCase, len(rows))
	for i := range rows {
		cases[i] = *rows[i].ToDomain()
	}
	return cases, total, nil
}

// FindDueBetween lists open cases with a due date in [from, to)
func (r *GormTaxCaseRepository) FindDueBetween(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]taxcase.TaxCase, error) {
	var rows []models.TaxCaseModel
	if err := r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).
		Where("due_date >= ? AND due_date < ?", from, to).
		Where("status NOT IN ?", closedCaseStatuses).
		Order("due_date ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	cases := make([]taxcase.TaxCase, len(rows))
	for i := range rows {
		cases[i] = *rows[i].ToDomain()
	}
	return cases, nil
}

// Save creates or updates a tax case
func (r *GormTaxCaseRepository) Save(ctx context.Context, tc *taxcase.TaxCase) error {
	return r.db.WithContext(ctx).Save(models.TaxCaseModelFromDomain(tc)).Error
}

// Delete soft-deletes a tax case
func (r *GormTaxCaseRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return deleteResult(r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID)).Where("id = ?", id).Delete(&models.TaxCaseModel{}))
}

// NextSequence returns the next case number sequence for the year
func (r *GormTaxCaseRepository) NextSequence(ctx context.Context, tenantID uuid.UUID, year int) (int64, error) {
	return nextSequence(ctx, r.db, tenantID, SequenceTaxCase, year)
}

var _ taxcase.Repository = (*GormTaxCaseRepository)(nil)
