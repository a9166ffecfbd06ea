package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/shared"
)

// BaseModel holds the columns of shared.BaseEntity
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (m *BaseModel) entity() shared.BaseEntity {
	return shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

// AggregateModel adds the mutation counter of an aggregate root
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

func (m *AggregateModel) setRoot(a shared.BaseAggregateRoot) {
	m.ID, m.CreatedAt, m.UpdatedAt = a.ID, a.CreatedAt, a.UpdatedAt
	m.Version = a.Version
}

// TenantAggregateModel is embedded by every tenant-owned table
type TenantAggregateModel struct {
	AggregateModel
	TenantID  uuid.UUID  `gorm:"type:uuid;not null;index"`
	CreatedBy *uuid.UUID `gorm:"type:uuid;index"`
}

func (m *TenantAggregateModel) setTenantRoot(t shared.TenantAggregateRoot) {
	m.setRoot(t.BaseAggregateRoot)
	m.TenantID = t.TenantID
	m.CreatedBy = t.CreatedBy
}

// tenantRoot rebuilds the root of a loaded aggregate; it has no pending events
func (m *TenantAggregateModel) tenantRoot() shared.TenantAggregateRoot {
	return shared.TenantAggregateRoot{
		BaseAggregateRoot: shared.RestoreAggregateRoot(m.entity(), m.Version),
		TenantID:          m.TenantID,
		CreatedBy:         m.CreatedBy,
	}
}

// All returns every model, parents before children, for AutoMigrate in tests
func All() []any {
	return []any{
		&TenantModel{}, &DepartmentModel{}, &RoleModel{}, &UserModel{}, &UserRoleModel{},
		&CorporationModel{}, &CorporationRelationModel{}, &ContactModel{}, &ContactCorporationModel{},
		&TaxCaseModel{}, &FolderModel{}, &DocumentModel{},
		&AppointmentModel{}, &TaskModel{},
		&InvoiceModel{}, &InvoiceItemModel{}, &InvoicePaymentModel{}, &NumberSequenceModel{},
		&PortalAccessModel{}, &PortalMessageModel{}, &AuditLogModel{},
		&ApprovalDefinitionModel{}, &ApprovalModel{}, &BackupModel{},
		&AgentConfigModel{}, &AgentRunModel{}, &AgentSuggestionModel{},
	}
}
