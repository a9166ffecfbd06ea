package models

import (
	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/document"
	"gorm.io/gorm"
)

// FolderModel is the persistence model for the Folder aggregate.
type FolderModel struct {
	TenantAggregateModel
	Name          string     `gorm:"type:varchar(200);not null"`
	ParentID      *uuid.UUID `gorm:"type:uuid;index"`
	ContactID     *uuid.UUID `gorm:"type:uuid;index"`
	CorporationID *uuid.UUID `gorm:"type:uuid;index"`
	DepartmentID  *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (FolderModel) TableName() string {
	return "folders"
}

// ToDomain converts the persistence model to a domain Folder.
func (m *FolderModel) ToDomain() *document.Folder {
	f := &document.Folder{
		Name:         m.Name,
		ParentID:     m.ParentID,
		Owner:        document.Owner{ContactID: m.ContactID, CorporationID: m.CorporationID},
		DepartmentID: m.DepartmentID,
	}
	f.TenantAggregateRoot = m.tenantRoot()
	return f
}

// FromDomain populates the persistence model from a domain Folder.
func (m *FolderModel) FromDomain(f *document.Folder) {
	m.setTenantRoot(f.TenantAggregateRoot)
	m.Name = f.Name
	m.ParentID = f.ParentID
	m.ContactID = f.Owner.ContactID
	m.CorporationID = f.Owner.CorporationID
	m.DepartmentID = f.DepartmentID
}

// FolderModelFromDomain creates a new persistence model from a domain Folder.
func FolderModelFromDomain(f *document.Folder) *FolderModel {
	m := &FolderModel{}
	m.FromDomain(f)
	return m
}

// DocumentModel is the persistence model for the Document aggregate.
type DocumentModel struct {
	TenantAggregateModel
	Name            string                `gorm:"type:varchar(255);not null"`
	FolderID        *uuid.UUID            `gorm:"type:uuid;index"`
	ContactID       *uuid.UUID            `gorm:"type:uuid;index"`
	CorporationID   *uuid.UUID            `gorm:"type:uuid;index"`
	TaxCaseID       *uuid.UUID            `gorm:"type:uuid;index"`
	Category        document.Category     `gorm:"type:varchar(30);not null;default:'other'"`
	StorageKey      string                `gorm:"type:varchar(500);not null"`
	ContentType     string                `gorm:"type:varchar(200)"`
	SizeBytes       int64                 `gorm:"not null;default:0"`
	Checksum        string                `gorm:"type:varchar(64)"`
	UploaderKind    document.UploaderKind `gorm:"type:varchar(10);not null"`
	UploaderID      uuid.UUID             `gorm:"type:uuid;not null"`
	VisibleToClient bool                  `gorm:"not null;default:false"`
	Description     string                `gorm:"type:text"`
	DeletedAt       gorm.DeletedAt        `gorm:"index"`
}

// TableName returns the table name for GORM
func (DocumentModel) TableName() string {
	return "documents"
}

// ToDomain converts the persistence model to a domain Document.
func (m *DocumentModel) ToDomain() *document.Document {
	d := &document.Document{
		Name:            m.Name,
		FolderID:        m.FolderID,
		Owner:           document.Owner{ContactID: m.ContactID, CorporationID: m.CorporationID},
		TaxCaseID:       m.TaxCaseID,
		Category:        m.Category,
		StorageKey:      m.StorageKey,
		ContentType:     m.ContentType,
		SizeBytes:       m.SizeBytes,
		Checksum:        m.Checksum,
		UploaderKind:    m.UploaderKind,
		UploaderID:      m.UploaderID,
		VisibleToClient: m.VisibleToClient,
		Description:     m.Description,
	}
	d.TenantAggregateRoot = m.tenantRoot()
	return d
}

// FromDomain populates the persistence model from a domain Document.
func (m *DocumentModel) FromDomain(d *document.Document) {
	m.setTenantRoot(d.TenantAggregateRoot)
	m.Name = d.Name
	m.FolderID = d.FolderID
	m.ContactID = d.Owner.ContactID
	m.CorporationID = d.Owner.CorporationID
	m.TaxCaseID = d.TaxCaseID
	m.Category = d.Category
	m.StorageKey = d.StorageKey
	m.ContentType = d.ContentType
	m.SizeBytes = d.SizeBytes
	m.Checksum = d.Checksum
	m.UploaderKind = d.UploaderKind
	m.UploaderID = d.UploaderID
	m.VisibleToClient = d.VisibleToClient
	m.Description = d.Description
}

// DocumentModelFromDomain creates a new persistence model from a domain Document.
func DocumentModelFromDomain(d *document.Document) *DocumentModel {
	m := &DocumentModel{}
	m.FromDomain(d)
	return m
}
