package models

import "github.com/google/uuid"

// NumberSequenceModel is a per tenant/year counter behind case and invoice numbers.
type NumberSequenceModel struct {
	TenantID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name     string    `gorm:"type:varchar(30);primaryKey"`
	Year     int       `gorm:"primaryKey"`
	Value    int64     `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (NumberSequenceModel) TableName() string {
	return "number_sequences"
}
