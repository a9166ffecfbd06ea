package document

import (
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/shared"
)

const AggregateTypeDocument = "document"

// MaxDocumentSize bounds a single upload
const MaxDocumentSize int64 = 50 << 20

// Category classifies a document
type Category string

const (
	CategoryTaxReturn  Category = "tax_return"
	CategoryW2         Category = "w2"
	Category1099       Category = "1099"
	CategoryK1         Category = "k1"
	CategoryReceipt    Category = "receipt"
	CategoryStatement  Category = "statement"
	CategoryCorrespond Category = "correspondence"
	CategoryEngagement Category = "engagement_letter"
	CategoryOther      Category = "other"
)

// IsValid reports whether c is a known category
func (c Category) IsValid() bool {
	switch c {
	case CategoryTaxReturn, CategoryW2, Category1099, CategoryK1, CategoryReceipt,
		CategoryStatement, CategoryCorrespond, CategoryEngagement, CategoryOther:
		return true
	}
	return false
}

// UploaderKind distinguishes staff uploads from portal uploads
type UploaderKind string

const (
	UploadedByStaff  UploaderKind = "staff"
	UploadedByClient UploaderKind = "client"
)

// Document is a file stored in object storage with its metadata
type Document struct {
	shared.TenantAggregateRoot
	Name            string
	FolderID        *uuid.UUID
	Owner           Owner
	TaxCaseID       *uuid.UUID
	Category        Category
	StorageKey      string
	ContentType     string
	SizeBytes       int64
	Checksum        string
	UploaderKind    UploaderKind
	UploaderID      uuid.UUID
	VisibleToClient bool
	Description     string
}

// NewDocument records an uploaded file. The storage key is assigned by the caller.
func NewDocument(tenantID uuid.UUID, name string, owner Owner, folder *Folder, uploaderKind UploaderKind, uploaderID uuid.UUID) (*Document, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(path.Base(strings.ReplaceAll(name, `\`, "/")))
	if name == "" || name == "." || name == "/" {
		return nil, shared.NewDomainError("INVALID_DOCUMENT_NAME", "Document name cannot be empty")
	}
	if len(name) > 255 {
		return nil, shared.NewDomainError("INVALID_DOCUMENT_NAME", "Document name cannot exceed 255 characters")
	}
	d := &Document{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		Owner:               owner,
		Category:            CategoryOther,
		UploaderKind:        uploaderKind,
		UploaderID:          uploaderID,
	}
	// client uploads are always visible to the client who sent them
	d.VisibleToClient = uploaderKind == UploadedByClient
	if folder != nil {
		if folder.TenantID != tenantID || !folder.Owner.Equals(owner) {
			return nil, shared.NewDomainError("INVALID_FOLDER", "Folder belongs to a different client")
		}
		fid := folder.ID
		d.FolderID = &fid
	}
	return d, nil
}

// AttachContent sets the stored object details once the upload finished
func (d *Document) AttachContent(storageKey, contentType string, size int64, checksum string) error {
	if size <= 0 {
		return shared.NewDomainError("EMPTY_DOCUMENT", "Document is empty")
	}
	if size > MaxDocumentSize {
		return shared.NewDomainError("DOCUMENT_TOO_LARGE", "Document exceeds the maximum upload size")
	}
	d.StorageKey = storageKey
	d.ContentType = contentType
	d.SizeBytes = size
	d.Checksum = checksum
	d.AddDomainEvent(shared.NewRecordEvent(AggregateTypeDocument, "created", d.ID, d.TenantID, map[string]any{
		"name": d.Name, "size": size, "uploader": string(d.UploaderKind),
	}))
	return nil
}

// UpdateMetadata changes descriptive fields
func (d *Document) UpdateMetadata(name string, category Category, description string, taxCaseID *uuid.UUID) error {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 255 {
		return shared.NewDomainError("INVALID_DOCUMENT_NAME", "Document name must be 1-255 characters")
	}
	if !category.IsValid() {
		return shared.NewDomainError("INVALID_CATEGORY", "Unknown document category: "+string(category))
	}
	d.Name = name
	d.Category = category
	d.Description = description
	d.TaxCaseID = taxCaseID
	d.IncrementVersion()
	d.AddDomainEvent(shared.NewRecordEvent(AggregateTypeDocument, "updated", d.ID, d.TenantID, map[string]any{"name": name}))
	return nil
}

// MoveTo places the document in another folder of the same client
func (d *Document) MoveTo(folder *Folder) error {
	if folder == nil {
		d.FolderID = nil
		d.IncrementVersion()
		return nil
	}
	if !folder.Owner.Equals(d.Owner) {
		return shared.NewDomainError("INVALID_FOLDER", "Folder belongs to a different client")
	}
	fid := folder.ID
	d.FolderID = &fid
	d.IncrementVersion()
	return nil
}

// SetVisibleToClient toggles portal visibility
func (d *Document) SetVisibleToClient(visible bool) {
	d.VisibleToClient = visible
	d.IncrementVersion()
	d.AddDomainEvent(shared.NewRecordEvent(AggregateTypeDocument, "updated", d.ID, d.TenantID, map[string]any{"visible_to_client": visible}))
}

// IsVisibleTo reports whether a portal contact may see the document
func (d *Document) IsVisibleTo(contactID uuid.UUID) bool {
	return d.VisibleToClient && d.Owner.ContactID != nil && *d.Owner.ContactID == contactID
}

// Snapshot flattens the document for rule evaluation
func (d *Document) Snapshot() map[string]any {
	snap := map[string]any{
		"id":                d.ID.String(),
		"name":              d.Name,
		"category":          string(d.Category),
		"content_type":      d.ContentType,
		"size_bytes":        d.SizeBytes,
		"uploader_kind":     string(d.UploaderKind),
		"visible_to_client": d.VisibleToClient,
	}
	if d.Owner.ContactID != nil {
		snap["contact_id"] = d.Owner.ContactID.String()
	}
	if d.Owner.CorporationID != nil {
		snap["corporation_id"] = d.Owner.CorporationID.String()
	}
	return snap
}

// ApplyField sets a single field by name. Used by workflow update_field actions.
func (d *Document) ApplyField(field, value string) error {
	switch field {
	case "visible_to_client":
		d.SetVisibleToClient(value == "true" || value == "1" || value == "yes")
		return nil
	case "category":
		c := Category(value)
		if !c.IsValid() {
			return shared.NewDomainError("INVALID_CATEGORY", "Unknown document category: "+value)
		}
		d.Category = c
	case "description":
		d.Description = value
	default:
		return shared.NewDomainError("UNSUPPORTED_FIELD", "Field cannot be updated by workflow: "+field)
	}
	d.IncrementVersion()
	d.AddDomainEvent(shared.NewRecordEvent(AggregateTypeDocument, "updated", d.ID, d.TenantID, map[string]any{field: value}))
	return nil
}
