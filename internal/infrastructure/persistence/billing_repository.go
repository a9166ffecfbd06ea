package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/billing"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/infrastructure/persistence/models"
	"github.com/taxcrm/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
)

var openInvoiceStatuses = []billing.InvoiceStatus{billing.InvoiceSent, billing.InvoicePartiallyPaid}

// GormInvoiceRepository implements billing.InvoiceRepository using GORM.
// Line items and payments are replaced wholesale on each save.
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

func withChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("paid_at ASC") })
}

func (r *GormInvoiceRepository) preloaded(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Scopes(tenant.Scope(tenantID), withChildren)
}

// FindByID finds an invoice with its items and payments
func (r *GormInvoiceRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.preloaded(ctx, tenantID).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindAll lists invoices matching the filter
func (r *GormInvoiceRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]billing.Invoice, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).Scopes(tenant.Scope(tenantID))
	query = searchColumns(query, filter.Search, "number", "notes")
	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "contact_id":
			query = query.Where("contact_id = ?", value)
		case "corporation_id":
			query = query.Where("corporation_id = ?", value)
		case "tax_case_id":
			query = query.Where("tax_case_id = ?", value)
		case "overdue":
			if value == true {
				query = query.Where("due_date < ? AND status IN ?", time.Now(), openInvoiceStatuses)
			}
		case "issued":
			if value == true {
				query = query.Where("status <> ?", billing.InvoiceDraft)
			}
		}
	}
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.InvoiceModel
	if err := applyPaging(query.Scopes(withChildren), filter, invoiceSort).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return invoicesToDomain(rows), total, nil
}

// FindOverdue lists sent or partially paid invoices past their due date
func (r *GormInvoiceRepository) FindOverdue(ctx context.Context, tenantID uuid.UUID, now time.Time, limit int) ([]billing.Invoice, error) {
	var rows []models.InvoiceModel
	query := r.preloaded(ctx, tenantID).
		Where("due_date < ? AND status IN ?", now, openInvoiceStatuses).
		Order("due_date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return invoicesToDomain(rows), nil
}

// Save creates or updates an invoice and replaces its items and payments.
// An invoice changed by someone else since it was loaded is rejected with
// ErrConcurrencyConflict and nothing is written.
func (r *GormInvoiceRepository) Save(ctx context.Context, inv *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(inv)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveVersioned(tx, model, inv.ID, inv); err != nil {
			return err
		}
		if err := tx.Where("invoice_id = ?", inv.ID).Delete(&models.InvoiceItemModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("invoice_id = ?", inv.ID).Delete(&models.InvoicePaymentModel{}).Error; err != nil {
			return err
		}
		if len(model.Items) > 0 {
			if err := tx.Create(&model.Items).Error; err != nil {
				return err
			}
		}
		if len(model.Payments) > 0 {
			if err := tx.Create(&model.Payments).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	inv.MarkPersisted()
	return nil
}

// Delete removes an invoice together with its items and payments
func (r *GormInvoiceRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", id).Delete(&models.InvoiceItemModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("invoice_id = ?", id).Delete(&models.InvoicePaymentModel{}).Error; err != nil {
			return err
		}
		return deleteResult(tx.Scopes(tenant.Scope(tenantID)).Where("id = ?", id).Delete(&models.InvoiceModel{}))
	})
}

// NextSequence returns the next invoice number sequence for the year
func (r *GormInvoiceRepository) NextSequence(ctx context.Context, tenantID uuid.UUID, year int) (int64, error) {
	return nextSequence(ctx, r.db, tenantID, SequenceInvoice, year)
}

func invoicesToDomain(rows []models.InvoiceModel) []billing.Invoice {
	out := make([]billing.Invoice, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

var _ billing.InvoiceRepository = (*GormInvoiceRepository)(nil)
