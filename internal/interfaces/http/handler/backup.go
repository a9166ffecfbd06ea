package handler

import (
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	backupapp "github.com/taxcrm/backend/internal/application/backup"
	"github.com/taxcrm/backend/internal/domain/identity"
	"github.com/taxcrm/backend/internal/interfaces/http/middleware"
)

// BackupHandler manages encrypted backups and restores
type BackupHandler struct {
	BaseHandler
	backups *backupapp.Service
}

// NewBackupHandler creates a new backup handler
func NewBackupHandler(backups *backupapp.Service) *BackupHandler {
	return &BackupHandler{backups: backups}
}

// CreateBackupRequest starts a manual backup
// @Description corporation_id narrows a tenant backup to one corporation and its related records
type CreateBackupRequest struct {
	Type          string     `json:"type" binding:"required,oneof=global tenant" example:"tenant"`
	CorporationID *uuid.UUID `json:"corporation_id"`
	IncludeMedia  bool       `json:"include_media"`
}

// RestoreRequest must carry an explicit confirmation
type RestoreRequest struct {
	Confirm bool `json:"confirm" example:"true"`
}

func requester(p *middleware.Principal) backupapp.Requester {
	return backupapp.Requester{
		TenantID: p.TenantID,
		UserID:   p.UserID,
		Global:   p.HasPermission(identity.PermBackupGlobal),
	}
}

// Create godoc
// @Summary      Start a backup
// @Description  The archive is produced in the background; poll the backup for its status
// @Tags         backups
// @Accept       json
// @Produce      json
// @Param        request body CreateBackupRequest true "Backup"
// @Success      202 {object} APIResponse[backupapp.BackupDTO]
// @Failure      403 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /backups [post]
func (h *BackupHandler) Create(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req CreateBackupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	b, err := h.backups.Create(c.Request.Context(), requester(p), backupapp.CreateInput{
		Type:          req.Type,
		CorporationID: req.CorporationID,
		IncludeMedia:  req.IncludeMedia,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, b)
}

// List godoc
// @Summary      List backups
// @Tags         backups
// @Produce      json
// @Param        page query int false "Page number"
// @Param        page_size query int false "Page size"
// @Param        type query string false "global or tenant"
// @Param        status query string false "Status"
// @Param        trigger query string false "manual, automatic or upload"
// @Success      200 {object} APIResponse[[]backupapp.BackupDTO]
// @Security     BearerAuth
// @Router       /backups [get]
func (h *BackupHandler) List(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	filter, ok := h.listFilter(c, "type", "status", "trigger")
	if !ok {
		return
	}
	backups, total, err := h.backups.List(c.Request.Context(), requester(p), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, backups, total, filter)
}

// GetByID godoc
// @Summary      Get a backup
// @Tags         backups
// @Produce      json
// @Param        id path string true "Backup ID"
// @Success      200 {object} APIResponse[backupapp.BackupDTO]
// @Failure      404 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /backups/{id} [get]
func (h *BackupHandler) GetByID(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	b, err := h.backups.GetByID(c.Request.Context(), requester(p), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, b)
}

// Restore godoc
// @Summary      Restore a backup
// @Description  Replaces the data in the backup's scope. Requires {"confirm": true}.
// @Tags         backups
// @Accept       json
// @Produce      json
// @Param        id path string true "Backup ID"
// @Param        request body RestoreRequest true "Confirmation"
// @Success      202 {object} APIResponse[backupapp.BackupDTO]
// @Failure      409 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /backups/{id}/restore [post]
func (h *BackupHandler) Restore(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req RestoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	b, err := h.backups.Restore(c.Request.Context(), requester(p), id, req.Confirm)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, b)
}

// Upload godoc
// @Summary      Upload an encrypted archive
// @Description  The archive must have been produced by this installation. It can be restored straight away.
// @Tags         backups
// @Accept       multipart/form-data
// @Produce      json
// @Param        file formData file true "Encrypted archive"
// @Param        restore_immediately formData bool false "Queue a restore after upload"
// @Param        confirm formData bool false "Required with restore_immediately"
// @Success      201 {object} APIResponse[backupapp.BackupDTO]
// @Failure      400 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /backups/upload [post]
func (h *BackupHandler) Upload(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	_, f, ok := h.uploadedFile(c)
	if !ok {
		return
	}
	defer f.Close()

	restore, _ := strconv.ParseBool(c.PostForm("restore_immediately"))
	confirm, _ := strconv.ParseBool(c.PostForm("confirm"))
	data, err := io.ReadAll(f)
	if err != nil {
		h.BadRequest(c, "Unreadable upload")
		return
	}
	b, err := h.backups.Upload(c.Request.Context(), requester(p), backupapp.UploadInput{
		Data:               data,
		RestoreImmediately: restore,
		Confirm:            confirm,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, b)
}

// Download godoc
// @Summary      Presigned download link for an archive
// @Tags         backups
// @Produce      json
// @Param        id path string true "Backup ID"
// @Success      200 {object} APIResponse[backupapp.DownloadDTO]
// @Failure      409 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /backups/{id}/download [get]
func (h *BackupHandler) Download(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	link, err := h.backups.DownloadURL(c.Request.Context(), requester(p), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, link)
}

// Delete godoc
// @Summary      Delete a backup and its archive
// @Tags         backups
// @Param        id path string true "Backup ID"
// @Success      204
// @Failure      409 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /backups/{id} [delete]
func (h *BackupHandler) Delete(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.backups.Delete(c.Request.Context(), requester(p), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
