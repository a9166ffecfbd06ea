package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Sequence names stored in number_sequences.
const (
	SequenceTaxCase = "tax_case"
	SequenceInvoice = "invoice"
)

// nextSequence increments and returns the named per-tenant, per-year counter.
// The UPDATE holds the row lock until commit, so concurrent callers serialize.
func nextSequence(ctx context.Context, db *gorm.DB, tenantID uuid.UUID, name string, year int) (int64, error) {
	var value int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := models.NumberSequenceModel{TenantID: tenantID, Name: name, Year: year}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}
		where := tx.Model(&models.NumberSequenceModel{}).
			Where("tenant_id = ? AND name = ? AND year = ?", tenantID, name, year)
		if err := where.UpdateColumn("value", gorm.Expr("value + 1")).Error; err != nil {
			return err
		}
		var row models.NumberSequenceModel
		if err := tx.Where("tenant_id = ? AND name = ? AND year = ?", tenantID, name, year).
			First(&row).Error; err != nil {
			return err
		}
		value = row.Value
		return nil
	})
	return value, err
}
