package handler

import (
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	documentapp "github.com/taxcrm/backend/internal/application/document"
	"github.com/taxcrm/backend/internal/domain/document"
	"github.com/taxcrm/backend/internal/interfaces/http/dto"
)

// DocumentHandler handles documents and client folders
type DocumentHandler struct {
	BaseHandler
	documents *documentapp.Service
	folders   *documentapp.FolderService
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(documents *documentapp.Service, folders *documentapp.FolderService) *DocumentHandler {
	return &DocumentHandler{documents: documents, folders: folders}
}

// UpdateDocumentRequest changes document metadata
type UpdateDocumentRequest struct {
	Name            string     `json:"name" binding:"required,max=255"`
	Category        string     `json:"category" binding:"omitempty,max=50"`
	Description     string     `json:"description" binding:"max=2000"`
	TaxCaseID       *uuid.UUID `json:"tax_case_id"`
	FolderID        *uuid.UUID `json:"folder_id"`
	VisibleToClient *bool      `json:"visible_to_client"`
}

// CreateFolderRequest adds a folder under a client
type CreateFolderRequest struct {
	Name          string     `json:"name" binding:"required,max=255"`
	ContactID     *uuid.UUID `json:"contact_id" binding:"required_without=CorporationID,excluded_with=CorporationID"`
	CorporationID *uuid.UUID `json:"corporation_id"`
	ParentID      *uuid.UUID `json:"parent_id"`
}

// DepartmentFolderRequest asks for a department's root folder of a client
type DepartmentFolderRequest struct {
	DepartmentID  uuid.UUID  `json:"department_id" binding:"required"`
	ContactID     *uuid.UUID `json:"contact_id" binding:"required_without=CorporationID,excluded_with=CorporationID"`
	CorporationID *uuid.UUID `json:"corporation_id"`
}

// RenameFolderRequest renames a folder
type RenameFolderRequest struct {
	Name string `json:"name" binding:"required,max=255"`
}

// uploadedFile reads the "file" part of a multipart form
func (h *BaseHandler) uploadedFile(c *gin.Context) (*multipart.FileHeader, multipart.File, bool) {
	header, err := c.FormFile("file")
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidationRequired, "A file part named \"file\" is required")
		return nil, nil, false
	}
	f, err := header.Open()
	if err != nil {
		h.BadRequest(c, "Unreadable upload")
		return nil, nil, false
	}
	return header, f, true
}

func formUUID(c *gin.Context, key string) (*uuid.UUID, error) {
	return optionalUUID(c.PostForm(key))
}

// Upload godoc
// @Summary      Upload a document
// @Description  Multipart upload stored in object storage. Exactly one of contact_id and corporation_id is required.
// @Tags         documents
// @Accept       multipart/form-data
// @Produce      json
// @Param        file formData file true "Document content"
// @Param        contact_id formData string false "Owning contact"
// @Param        corporation_id formData string false "Owning corporation"
// @Param        folder_id formData string false "Target folder"
// @Param        tax_case_id formData string false "Related tax case"
// @Param        category formData string false "Category"
// @Param        description formData string false "Description"
// @Param        visible_to_client formData bool false "Show in the client portal"
// @Success      201 {object} APIResponse[documentapp.DocumentDTO]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      413 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	header, f, ok := h.uploadedFile(c)
	if !ok {
		return
	}
	defer f.Close()

	input := documentapp.UploadInput{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        f,
		Category:    c.PostForm("category"),
		Description: c.PostForm("description"),
	}
	var err error
	if input.Owner.ContactID, err = formUUID(c, "contact_id"); err != nil {
		h.BadRequest(c, "Invalid contact_id format")
		return
	}
	if input.Owner.CorporationID, err = formUUID(c, "corporation_id"); err != nil {
		h.BadRequest(c, "Invalid corporation_id format")
		return
	}
	if input.FolderID, err = formUUID(c, "folder_id"); err != nil {
		h.BadRequest(c, "Invalid folder_id format")
		return
	}
	if input.TaxCaseID, err = formUUID(c, "tax_case_id"); err != nil {
		h.BadRequest(c, "Invalid tax_case_id format")
		return
	}
	if raw := c.PostForm("visible_to_client"); raw != "" {
		visible, err := strconv.ParseBool(raw)
		if err != nil {
			h.BadRequest(c, "Invalid visible_to_client value")
			return
		}
		input.VisibleToClient = &visible
	}

	doc, err := h.documents.Upload(c.Request.Context(), p.TenantID,
		documentapp.Uploader{Kind: document.UploadedByStaff, ID: p.UserID}, input)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, doc)
}

// List godoc
// @Summary      List documents
// @Tags         documents
// @Produce      json
// @Param        page query int false "Page number"
// @Param        page_size query int false "Page size"
// @Param        search query string false "Name search"
// @Param        folder_id query string false "Folder"
// @Param        contact_id query string false "Contact"
// @Param        corporation_id query string false "Corporation"
// @Param        tax_case_id query string false "Tax case"
// @Param        category query string false "Category"
// @Param        visible_to_client query bool false "Portal visibility"
// @Success      200 {object} APIResponse[[]documentapp.DocumentDTO]
// @Security     BearerAuth
// @Router       /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	filter, ok := h.listFilter(c, "folder_id", "contact_id", "corporation_id", "tax_case_id", "category", "visible_to_client")
	if !ok {
		return
	}
	docs, total, err := h.documents.List(c.Request.Context(), p.TenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, docs, total, filter)
}

// GetByID godoc
// @Summary      Get a document
// @Tags         documents
// @Produce      json
// @Param        id path string true "Document ID"
// @Success      200 {object} APIResponse[documentapp.DocumentDTO]
// @Failure      404 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /documents/{id} [get]
func (h *DocumentHandler) GetByID(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	doc, err := h.documents.GetByID(c.Request.Context(), p.TenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// Update godoc
// @Summary      Update document metadata
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        id path string true "Document ID"
// @Param        request body UpdateDocumentRequest true "Metadata"
// @Success      200 {object} APIResponse[documentapp.DocumentDTO]
// @Security     BearerAuth
// @Router       /documents/{id} [put]
func (h *DocumentHandler) Update(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req UpdateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	doc, err := h.documents.Update(c.Request.Context(), p.TenantID, p.UserID, id, documentapp.UpdateInput{
		Name:            req.Name,
		Category:        req.Category,
		Description:     req.Description,
		TaxCaseID:       req.TaxCaseID,
		FolderID:        req.FolderID,
		VisibleToClient: req.VisibleToClient,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// Delete godoc
// @Summary      Delete a document
// @Tags         documents
// @Param        id path string true "Document ID"
// @Success      204
// @Security     BearerAuth
// @Router       /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.documents.Delete(c.Request.Context(), p.TenantID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Download godoc
// @Summary      Presigned download link
// @Tags         documents
// @Produce      json
// @Param        id path string true "Document ID"
// @Success      200 {object} APIResponse[documentapp.DownloadDTO]
// @Security     BearerAuth
// @Router       /documents/{id}/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	link, err := h.documents.DownloadURL(c.Request.Context(), p.TenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, link)
}

// CreateFolder godoc
// @Summary      Create a folder
// @Tags         folders
// @Accept       json
// @Produce      json
// @Param        request body CreateFolderRequest true "Folder"
// @Success      201 {object} APIResponse[documentapp.FolderDTO]
// @Security     BearerAuth
// @Router       /folders [post]
func (h *DocumentHandler) CreateFolder(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req CreateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	folder, err := h.folders.Create(c.Request.Context(), p.TenantID, p.UserID, documentapp.CreateFolderInput{
		Name:     req.Name,
		Owner:    documentapp.OwnerInput{ContactID: req.ContactID, CorporationID: req.CorporationID},
		ParentID: req.ParentID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, folder)
}

// EnsureDepartmentFolder godoc
// @Summary      Department root folder of a client
// @Description  Returns the department's root folder for the client, creating it on first use
// @Tags         folders
// @Accept       json
// @Produce      json
// @Param        request body DepartmentFolderRequest true "Department and client"
// @Success      200 {object} APIResponse[documentapp.FolderDTO]
// @Security     BearerAuth
// @Router       /folders/department [post]
func (h *DocumentHandler) EnsureDepartmentFolder(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req DepartmentFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	folder, err := h.folders.EnsureDepartmentFolder(c.Request.Context(), p.TenantID, p.UserID, req.DepartmentID,
		documentapp.OwnerInput{ContactID: req.ContactID, CorporationID: req.CorporationID})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, folder)
}

// ListFolders godoc
// @Summary      List a client's folders
// @Tags         folders
// @Produce      json
// @Param        contact_id query string false "Contact"
// @Param        corporation_id query string false "Corporation"
// @Success      200 {object} APIResponse[[]documentapp.FolderDTO]
// @Security     BearerAuth
// @Router       /folders [get]
func (h *DocumentHandler) ListFolders(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	contactID, err := optionalUUID(c.Query("contact_id"))
	if err != nil {
		h.BadRequest(c, "Invalid contact_id format")
		return
	}
	corporationID, err := optionalUUID(c.Query("corporation_id"))
	if err != nil {
		h.BadRequest(c, "Invalid corporation_id format")
		return
	}
	folders, err := h.folders.ListByOwner(c.Request.Context(), p.TenantID,
		documentapp.OwnerInput{ContactID: contactID, CorporationID: corporationID})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, folders)
}

// GetFolder godoc
// @Summary      Get a folder
// @Tags         folders
// @Produce      json
// @Param        id path string true "Folder ID"
// @Success      200 {object} APIResponse[documentapp.FolderDTO]
// @Security     BearerAuth
// @Router       /folders/{id} [get]
func (h *DocumentHandler) GetFolder(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	folder, err := h.folders.GetByID(c.Request.Context(), p.TenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, folder)
}

// RenameFolder godoc
// @Summary      Rename a folder
// @Tags         folders
// @Accept       json
// @Produce      json
// @Param        id path string true "Folder ID"
// @Param        request body RenameFolderRequest true "New name"
// @Success      200 {object} APIResponse[documentapp.FolderDTO]
// @Security     BearerAuth
// @Router       /folders/{id} [put]
func (h *DocumentHandler) RenameFolder(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req RenameFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	folder, err := h.folders.Rename(c.Request.Context(), p.TenantID, id, req.Name)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, folder)
}

// DeleteFolder godoc
// @Summary      Delete an empty folder
// @Tags         folders
// @Param        id path string true "Folder ID"
// @Success      204
// @Failure      409 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /folders/{id} [delete]
func (h *DocumentHandler) DeleteFolder(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.folders.Delete(c.Request.Context(), p.TenantID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
