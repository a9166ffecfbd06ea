package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	workflowapp "github.com/taxcrm/backend/internal/application/workflow"
	"github.com/taxcrm/backend/internal/domain/crm"
	"github.com/taxcrm/backend/internal/domain/document"
	"github.com/taxcrm/backend/internal/domain/shared"
	"github.com/taxcrm/backend/internal/domain/workflow"
	"github.com/taxcrm/backend/internal/infrastructure/storage"
	"go.uber.org/zap"
)

// ObjectStorage is the subset of object storage the document service uses
type ObjectStorage interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	PresignGet(ctx context.Context, key string, expiresIn time.Duration) (string, time.Time, error)
	Delete(ctx context.Context, key string) error
}

// DefaultDownloadExpiry is the lifetime of presigned download links
const DefaultDownloadExpiry = 15 * time.Minute

// Service manages document metadata and content
type Service struct {
	docRepo         document.Repository
	folders         *FolderService
	contactRepo     crm.ContactRepository
	corporationRepo crm.CorporationRepository
	objects         ObjectStorage
	gate            workflowapp.Gate
	events          shared.EventPublisher
	logger          *zap.Logger
	downloadExpiry  time.Duration
}

// NewService creates a new document service. gate may be nil.
func NewService(
	docRepo document.Repository,
	folders *FolderService,
	contactRepo crm.ContactRepository,
	corporationRepo crm.CorporationRepository,
	objects ObjectStorage,
	gate workflowapp.Gate,
	events shared.EventPublisher,
	logger *zap.Logger,
) *Service {
	return &Service{
		docRepo:         docRepo,
		folders:         folders,
		contactRepo:     contactRepo,
		corporationRepo: corporationRepo,
		objects:         objects,
		gate:            gate,
		events:          events,
		logger:          logger,
		downloadExpiry:  DefaultDownloadExpiry,
	}
}

// Uploader identifies who sent a file
type Uploader struct {
	Kind document.UploaderKind
	ID   uuid.UUID
}

// UploadInput describes one file to store
type UploadInput struct {
	Name            string
	ContentType     string
	Size            int64
	Body            io.Reader
	Owner           OwnerInput
	FolderID        *uuid.UUID
	TaxCaseID       *uuid.UUID
	Category        string
	Description     string
	VisibleToClient *bool
}

// Upload streams the file to object storage and records its metadata
func (s *Service) Upload(ctx context.Context, tenantID uuid.UUID, by Uploader, input UploadInput) (*DocumentDTO, error) {
	owner, err := input.Owner.Owner()
	if err != nil {
		return nil, err
	}
	if input.Size > document.MaxDocumentSize {
		return nil, shared.NewDomainError("DOCUMENT_TOO_LARGE", "Document exceeds the maximum upload size")
	}
	if err := checkOwner(ctx, s.contactRepo, s.corporationRepo, tenantID, owner); err != nil {
		return nil, err
	}
	var folder *document.Folder
	if input.FolderID != nil {
		if folder, err = s.folders.folderRepo.FindByID(ctx, tenantID, *input.FolderID); err != nil {
			return nil, err
		}
	}
	return s.store(ctx, tenantID, by, owner, folder, input)
}

func (s *Service) store(ctx context.Context, tenantID uuid.UUID, by Uploader, owner document.Owner, folder *document.Folder, input UploadInput) (*DocumentDTO, error) {
	doc, err := document.NewDocument(tenantID, input.Name, owner, folder, by.Kind, by.ID)
	if err != nil {
		return nil, err
	}
	if by.Kind == document.UploadedByStaff {
		doc.SetCreatedBy(by.ID)
	}
	category := document.Category(input.Category)
	if category == "" {
		category = document.CategoryOther
	}
	if err := doc.UpdateMetadata(doc.Name, category, input.Description, input.TaxCaseID); err != nil {
		return nil, err
	}
	if input.VisibleToClient != nil {
		doc.VisibleToClient = *input.VisibleToClient
	}
	doc.ClearDomainEvents()

	contentType := input.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := storage.DocumentKey(tenantID, doc.ID, doc.Name)
	hasher := sha256.New()
	counter := &countingReader{r: io.TeeReader(input.Body, hasher)}
	if err := s.objects.Put(ctx, key, counter, input.Size, contentType); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}
	if err := doc.AttachContent(key, contentType, counter.n, hex.EncodeToString(hasher.Sum(nil))); err != nil {
		s.removeObject(ctx, key)
		return nil, err
	}
	if err := s.docRepo.Save(ctx, doc); err != nil {
		s.removeObject(ctx, key)
		return nil, err
	}
	s.logger.Info("Document uploaded",
		zap.String("document_id", doc.ID.String()),
		zap.String("uploader_kind", string(by.Kind)),
		zap.Int64("size", counter.n),
	)
	return s.afterSave(ctx, doc, by.ID), nil
}

// UploadForContact stores a portal upload in the contact's client uploads folder
func (s *Service) UploadForContact(ctx context.Context, tenantID, contactID uuid.UUID, input UploadInput) (*DocumentDTO, error) {
	owner := document.ContactOwner(contactID)
	folder, err := s.folders.ensureClientRoot(ctx, tenantID, owner, ClientUploadsFolder)
	if err != nil {
		return nil, err
	}
	if input.Size > document.MaxDocumentSize {
		return nil, shared.NewDomainError("DOCUMENT_TOO_LARGE", "Document exceeds the maximum upload size")
	}
	input.TaxCaseID = nil
	input.VisibleToClient = nil
	return s.store(ctx, tenantID, Uploader{Kind: document.UploadedByClient, ID: contactID}, owner, folder, input)
}

// GetByID returns one document
func (s *Service) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*DocumentDTO, error) {
	doc, err := s.docRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	dto := ToDocumentDTO(doc)
	return &dto, nil
}

// List returns documents matching the filter
// (folder_id, contact_id, corporation_id, tax_case_id, category, visible_to_client)
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]DocumentDTO, int64, error) {
	docs, total, err := s.docRepo.FindAll(ctx, tenantID, filter.Normalize())
	if err != nil {
		return nil, 0, err
	}
	return toDocumentDTOs(docs), total, nil
}

// ListForContact returns the documents a portal contact may see
func (s *Service) ListForContact(ctx context.Context, tenantID, contactID uuid.UUID, filter shared.Filter) ([]DocumentDTO, int64, error) {
	filter = filter.Normalize()
	filter.Filters["contact_id"] = contactID.String()
	filter.Filters["visible_to_client"] = true
	docs, total, err := s.docRepo.FindAll(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	return toDocumentDTOs(docs), total, nil
}

// UpdateInput changes document metadata
type UpdateInput struct {
	Name            string
	Category        string
	Description     string
	TaxCaseID       *uuid.UUID
	FolderID        *uuid.UUID
	VisibleToClient *bool
}

// Update changes metadata, folder and portal visibility
func (s *Service) Update(ctx context.Context, tenantID, userID, id uuid.UUID, input UpdateInput) (*DocumentDTO, error) {
	doc, err := s.docRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if input.Name == "" {
		input.Name = doc.Name
	}
	if input.Category == "" {
		input.Category = string(doc.Category)
	}
	if err := doc.UpdateMetadata(input.Name, document.Category(input.Category), input.Description, input.TaxCaseID); err != nil {
		return nil, err
	}
	if input.FolderID != nil && (doc.FolderID == nil || *doc.FolderID != *input.FolderID) {
		folder, err := s.folders.folderRepo.FindByID(ctx, tenantID, *input.FolderID)
		if err != nil {
			return nil, err
		}
		if err := doc.MoveTo(folder); err != nil {
			return nil, err
		}
	}
	if input.VisibleToClient != nil && *input.VisibleToClient != doc.VisibleToClient {
		doc.SetVisibleToClient(*input.VisibleToClient)
	}
	if err := s.docRepo.Save(ctx, doc); err != nil {
		return nil, err
	}
	return s.afterSave(ctx, doc, userID), nil
}

// Delete removes the stored object and the document row
func (s *Service) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	doc, err := s.docRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := s.docRepo.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	s.removeObject(ctx, doc.StorageKey)
	doc.AddDomainEvent(shared.NewRecordEvent(document.AggregateTypeDocument, "deleted", doc.ID, tenantID, map[string]any{"name": doc.Name}))
	s.publish(ctx, doc)
	return nil
}

// DownloadURL returns a presigned link to the content
func (s *Service) DownloadURL(ctx context.Context, tenantID, id uuid.UUID) (*DownloadDTO, error) {
	doc, err := s.docRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return s.presign(ctx, doc)
}

// DownloadURLForContact returns a presigned link when the document is shared with the contact
func (s *Service) DownloadURLForContact(ctx context.Context, tenantID, contactID, id uuid.UUID) (*DownloadDTO, error) {
	doc, err := s.docRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !doc.IsVisibleTo(contactID) {
		// hidden documents look missing to the portal
		return nil, shared.ErrNotFound
	}
	return s.presign(ctx, doc)
}

func (s *Service) presign(ctx context.Context, doc *document.Document) (*DownloadDTO, error) {
	url, expiresAt, err := s.objects.PresignGet(ctx, doc.StorageKey, s.downloadExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to presign document: %w", err)
	}
	return &DownloadDTO{URL: url, ExpiresAt: expiresAt, Filename: doc.Name}, nil
}

func (s *Service) afterSave(ctx context.Context, doc *document.Document, userID uuid.UUID) *DocumentDTO {
	s.publish(ctx, doc)
	dto := ToDocumentDTO(doc)
	dto.PendingApprovalID = workflowapp.RunOnSave(ctx, s.gate, s.logger, workflowapp.Submission{
		TenantID:    doc.TenantID,
		Module:      workflow.ModuleDocument,
		RecordID:    doc.ID,
		Snapshot:    doc.Snapshot(),
		RequestedBy: userID,
	})
	return &dto
}

func (s *Service) removeObject(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.objects.Delete(ctx, key); err != nil {
		s.logger.Warn("Failed to delete document object", zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, doc *document.Document) {
	if err := shared.PublishAndClear(ctx, s.events, doc); err != nil {
		s.logger.Warn("Failed to publish document events", zap.Error(err))
	}
}

func toDocumentDTOs(docs []document.Document) []DocumentDTO {
	out := make([]DocumentDTO, len(docs))
	for i := range docs {
		out[i] = ToDocumentDTO(&docs[i])
	}
	return out
}

// countingReader tracks how many bytes were streamed
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
