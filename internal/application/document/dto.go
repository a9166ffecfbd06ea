package document

import (
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/document"
)

// FolderDTO is the API view of a folder
type FolderDTO struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	ParentID      *uuid.UUID `json:"parent_id,omitempty"`
	ContactID     *uuid.UUID `json:"contact_id,omitempty"`
	CorporationID *uuid.UUID `json:"corporation_id,omitempty"`
	DepartmentID  *uuid.UUID `json:"department_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ToFolderDTO converts a folder
func ToFolderDTO(f *document.Folder) FolderDTO {
	return FolderDTO{
		ID:            f.ID,
		Name:          f.Name,
		ParentID:      f.ParentID,
		ContactID:     f.Owner.ContactID,
		CorporationID: f.Owner.CorporationID,
		DepartmentID:  f.DepartmentID,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
}

// DocumentDTO is the API view of a document. The storage key is never exposed.
type DocumentDTO struct {
	ID                uuid.UUID  `json:"id"`
	Name              string     `json:"name"`
	FolderID          *uuid.UUID `json:"folder_id,omitempty"`
	ContactID         *uuid.UUID `json:"contact_id,omitempty"`
	CorporationID     *uuid.UUID `json:"corporation_id,omitempty"`
	TaxCaseID         *uuid.UUID `json:"tax_case_id,omitempty"`
	Category          string     `json:"category"`
	Description       string     `json:"description"`
	ContentType       string     `json:"content_type"`
	SizeBytes         int64      `json:"size_bytes"`
	Checksum          string     `json:"checksum"`
	UploaderKind      string     `json:"uploader_kind"`
	UploaderID        uuid.UUID  `json:"uploader_id"`
	VisibleToClient   bool       `json:"visible_to_client"`
	PendingApprovalID *uuid.UUID `json:"pending_approval_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// ToDocumentDTO converts a document
func ToDocumentDTO(d *document.Document) DocumentDTO {
	return DocumentDTO{
		ID:              d.ID,
		Name:            d.Name,
		FolderID:        d.FolderID,
		ContactID:       d.Owner.ContactID,
		CorporationID:   d.Owner.CorporationID,
		TaxCaseID:       d.TaxCaseID,
		Category:        string(d.Category),
		Description:     d.Description,
		ContentType:     d.ContentType,
		SizeBytes:       d.SizeBytes,
		Checksum:        d.Checksum,
		UploaderKind:    string(d.UploaderKind),
		UploaderID:      d.UploaderID,
		VisibleToClient: d.VisibleToClient,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

// DownloadDTO is a time-limited link to a document's content
type DownloadDTO struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
	Filename  string    `json:"filename"`
}

func toFolderDTOs(folders []document.Folder) []FolderDTO {
	out := make([]FolderDTO, len(folders))
	for i := range folders {
		out[i] = ToFolderDTO(&folders[i])
	}
	return out
}
