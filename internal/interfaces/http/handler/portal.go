package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	billingapp "github.com/taxcrm/backend/internal/application/billing"
	documentapp "github.com/taxcrm/backend/internal/application/document"
	portalapp "github.com/taxcrm/backend/internal/application/portal"
	schedulingapp "github.com/taxcrm/backend/internal/application/scheduling"
	"github.com/taxcrm/backend/internal/domain/portal"
	"github.com/taxcrm/backend/internal/interfaces/http/middleware"
)

const (
	defaultPollLimit = 50
	maxPollLimit     = 200
)

// PortalLoginRequest is the client login body
type PortalLoginRequest struct {
	TenantSlug string `json:"tenant" binding:"required,max=100" example:"smith-tax"`
	Email      string `json:"email" binding:"required,email" example:"client@example.com"`
	Password   string `json:"password" binding:"required,max=128"`
}

// SendMessageRequest posts a chat message
type SendMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

// MarkReadRequest acknowledges messages up to a sequence number
type MarkReadRequest struct {
	UptoSeq int64 `json:"upto_seq" binding:"required,gt=0"`
}

// PortalAuthHandler handles client portal authentication
type PortalAuthHandler struct {
	BaseHandler
	authService *portalapp.AuthService
}

// NewPortalAuthHandler creates a new portal auth handler
func NewPortalAuthHandler(authService *portalapp.AuthService) *PortalAuthHandler {
	return &PortalAuthHandler{authService: authService}
}

// Login godoc
// @Summary      Client portal login
// @Tags         portal
// @Accept       json
// @Produce      json
// @Param        request body PortalLoginRequest true "Client credentials"
// @Success      200 {object} APIResponse[portalapp.LoginResult]
// @Failure      401 {object} dto.ErrorResponse
// @Failure      429 {object} dto.ErrorResponse
// @Router       /portal/auth/login [post]
func (h *PortalAuthHandler) Login(c *gin.Context) {
	var req PortalLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	result, err := h.authService.Login(c.Request.Context(), portalapp.LoginInput{
		TenantSlug: req.TenantSlug,
		Email:      req.Email,
		Password:   req.Password,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// RefreshToken godoc
// @Summary      Refresh client tokens
// @Tags         portal
// @Accept       json
// @Produce      json
// @Param        request body RefreshTokenRequest true "Refresh token"
// @Success      200 {object} APIResponse[auth.TokenPair]
// @Failure      401 {object} dto.ErrorResponse
// @Router       /portal/auth/refresh [post]
func (h *PortalAuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	pair, err := h.authService.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, pair)
}

// Logout godoc
// @Summary      Client logout
// @Tags         portal
// @Success      204
// @Security     BearerAuth
// @Router       /portal/auth/logout [post]
func (h *PortalAuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	if err := h.authService.Logout(c.Request.Context(), claims.ID, claims.RemainingTTL()); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Me godoc
// @Summary      Signed-in client profile
// @Tags         portal
// @Produce      json
// @Success      200 {object} APIResponse[portalapp.ProfileDTO]
// @Security     BearerAuth
// @Router       /portal/me [get]
func (h *PortalAuthHandler) Me(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	profile, err := h.authService.Me(c.Request.Context(), p.TenantID, p.ContactID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, profile)
}

// PortalAccessHandler lets staff manage client portal logins
type PortalAccessHandler struct {
	BaseHandler
	accessService *portalapp.AccessService
}

// NewPortalAccessHandler creates a new portal access handler
func NewPortalAccessHandler(accessService *portalapp.AccessService) *PortalAccessHandler {
	return &PortalAccessHandler{accessService: accessService}
}

// Invite godoc
// @Summary      Invite a contact to the portal
// @Description  Creates or reactivates the contact's portal login and emails a generated password
// @Tags         portal-access
// @Produce      json
// @Param        id path string true "Contact ID"
// @Success      201 {object} APIResponse[portalapp.AccessDTO]
// @Failure      400 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /contacts/{id}/portal-access [post]
func (h *PortalAccessHandler) Invite(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	contactID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	access, err := h.accessService.Invite(c.Request.Context(), p.TenantID, contactID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, access)
}

// Get godoc
// @Summary      Portal login of a contact
// @Tags         portal-access
// @Produce      json
// @Param        id path string true "Contact ID"
// @Success      200 {object} APIResponse[portalapp.AccessDTO]
// @Failure      404 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /contacts/{id}/portal-access [get]
func (h *PortalAccessHandler) Get(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	contactID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	access, err := h.accessService.GetForContact(c.Request.Context(), p.TenantID, contactID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, access)
}

// Deactivate godoc
// @Summary      Disable a contact's portal login
// @Tags         portal-access
// @Produce      json
// @Param        id path string true "Contact ID"
// @Success      200 {object} APIResponse[portalapp.AccessDTO]
// @Security     BearerAuth
// @Router       /contacts/{id}/portal-access [delete]
func (h *PortalAccessHandler) Deactivate(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	contactID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	access, err := h.accessService.Deactivate(c.Request.Context(), p.TenantID, contactID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, access)
}

// ResetPassword godoc
// @Summary      Email a new portal password
// @Tags         portal-access
// @Param        id path string true "Contact ID"
// @Success      204
// @Security     BearerAuth
// @Router       /contacts/{id}/portal-access/reset-password [post]
func (h *PortalAccessHandler) ResetPassword(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	contactID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.accessService.ResetPassword(c.Request.Context(), p.TenantID, contactID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// List godoc
// @Summary      List portal logins
// @Tags         portal-access
// @Produce      json
// @Success      200 {object} APIResponse[[]portalapp.AccessDTO]
// @Security     BearerAuth
// @Router       /portal-access [get]
func (h *PortalAccessHandler) List(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	accesses, err := h.accessService.List(c.Request.Context(), p.TenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, accesses)
}

// ChatHandler serves both sides of the client chat
type ChatHandler struct {
	BaseHandler
	chat *portalapp.ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chat *portalapp.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// pollParams reads the after cursor and page limit
func (h *ChatHandler) pollParams(c *gin.Context) (int64, int, bool) {
	var after int64
	if raw := c.Query("after"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			h.BadRequest(c, "Invalid after cursor")
			return 0, 0, false
		}
		after = v
	}
	limit := defaultPollLimit
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			h.BadRequest(c, "Invalid limit")
			return 0, 0, false
		}
		limit = min(v, maxPollLimit)
	}
	return after, limit, true
}

// Conversations godoc
// @Summary      Staff chat inbox
// @Description  One entry per contact, latest message first, with the staff-side unread count
// @Tags         chat
// @Produce      json
// @Param        limit query int false "Maximum conversations"
// @Success      200 {object} APIResponse[[]portalapp.ConversationDTO]
// @Security     BearerAuth
// @Router       /chat/conversations [get]
func (h *ChatHandler) Conversations(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	_, limit, ok := h.pollParams(c)
	if !ok {
		return
	}
	convs, err := h.chat.Conversations(c.Request.Context(), p.TenantID, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, convs)
}

// StaffPoll godoc
// @Summary      Messages with a contact
// @Description  Returns messages with seq greater than after. Pass the returned cursor on the next poll.
// @Tags         chat
// @Produce      json
// @Param        id path string true "Contact ID"
// @Param        after query int false "Cursor"
// @Param        limit query int false "Page size"
// @Success      200 {object} APIResponse[portalapp.MessagePage]
// @Security     BearerAuth
// @Router       /chat/conversations/{id}/messages [get]
func (h *ChatHandler) StaffPoll(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	contactID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	after, limit, ok := h.pollParams(c)
	if !ok {
		return
	}
	page, err := h.chat.Poll(c.Request.Context(), p.TenantID, contactID, after, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, page)
}

// StaffSend godoc
// @Summary      Message a contact
// @Tags         chat
// @Accept       json
// @Produce      json
// @Param        id path string true "Contact ID"
// @Param        request body SendMessageRequest true "Message"
// @Success      201 {object} APIResponse[portalapp.MessageDTO]
// @Security     BearerAuth
// @Router       /chat/conversations/{id}/messages [post]
func (h *ChatHandler) StaffSend(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	contactID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	msg, err := h.chat.SendAsStaff(c.Request.Context(), p.TenantID, p.UserID, contactID, req.Body)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, msg)
}

// StaffMarkRead godoc
// @Summary      Mark client messages read
// @Tags         chat
// @Accept       json
// @Produce      json
// @Param        id path string true "Contact ID"
// @Param        request body MarkReadRequest true "Upper bound"
// @Success      200 {object} APIResponse[CountData]
// @Security     BearerAuth
// @Router       /chat/conversations/{id}/read [post]
func (h *ChatHandler) StaffMarkRead(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	contactID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	h.markRead(c, p.TenantID, contactID, portal.SenderStaff)
}

// ClientPoll godoc
// @Summary      Client chat messages
// @Tags         portal
// @Produce      json
// @Param        after query int false "Cursor"
// @Param        limit query int false "Page size"
// @Success      200 {object} APIResponse[portalapp.MessagePage]
// @Security     BearerAuth
// @Router       /portal/chat/messages [get]
func (h *ChatHandler) ClientPoll(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	after, limit, ok := h.pollParams(c)
	if !ok {
		return
	}
	page, err := h.chat.Poll(c.Request.Context(), p.TenantID, p.ContactID, after, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, page)
}

// ClientSend godoc
// @Summary      Message the practice
// @Tags         portal
// @Accept       json
// @Produce      json
// @Param        request body SendMessageRequest true "Message"
// @Success      201 {object} APIResponse[portalapp.MessageDTO]
// @Security     BearerAuth
// @Router       /portal/chat/messages [post]
func (h *ChatHandler) ClientSend(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	msg, err := h.chat.SendAsClient(c.Request.Context(), p.TenantID, p.ContactID, req.Body)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, msg)
}

// ClientMarkRead godoc
// @Summary      Mark staff messages read
// @Tags         portal
// @Accept       json
// @Produce      json
// @Param        request body MarkReadRequest true "Upper bound"
// @Success      200 {object} APIResponse[CountData]
// @Security     BearerAuth
// @Router       /portal/chat/read [post]
func (h *ChatHandler) ClientMarkRead(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	h.markRead(c, p.TenantID, p.ContactID, portal.SenderClient)
}

// ClientUnread godoc
// @Summary      Unread staff messages
// @Tags         portal
// @Produce      json
// @Success      200 {object} APIResponse[CountData]
// @Security     BearerAuth
// @Router       /portal/chat/unread [get]
func (h *ChatHandler) ClientUnread(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	n, err := h.chat.UnreadCount(c.Request.Context(), p.TenantID, p.ContactID, portal.SenderClient)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, CountData{Count: n})
}

func (h *ChatHandler) markRead(c *gin.Context, tenantID, contactID uuid.UUID, reader portal.SenderKind) {
	var req MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	n, err := h.chat.MarkRead(c.Request.Context(), tenantID, contactID, reader, req.UptoSeq)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, CountData{Count: n})
}

// ClientHandler serves a signed-in client's own records
type ClientHandler struct {
	BaseHandler
	documents    *documentapp.Service
	invoices     *billingapp.InvoiceService
	appointments *schedulingapp.AppointmentService
}

// NewClientHandler creates a new portal client handler
func NewClientHandler(
	documents *documentapp.Service,
	invoices *billingapp.InvoiceService,
	appointments *schedulingapp.AppointmentService,
) *ClientHandler {
	return &ClientHandler{documents: documents, invoices: invoices, appointments: appointments}
}

// ListDocuments godoc
// @Summary      Documents shared with the client
// @Tags         portal
// @Produce      json
// @Param        page query int false "Page number"
// @Param        page_size query int false "Page size"
// @Success      200 {object} APIResponse[[]documentapp.DocumentDTO]
// @Security     BearerAuth
// @Router       /portal/documents [get]
func (h *ClientHandler) ListDocuments(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	filter, ok := h.listFilter(c, "category")
	if !ok {
		return
	}
	docs, total, err := h.documents.ListForContact(c.Request.Context(), p.TenantID, p.ContactID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, docs, total, filter)
}

// UploadDocument godoc
// @Summary      Upload a document to the practice
// @Description  Stored in the client's uploads folder
// @Tags         portal
// @Accept       multipart/form-data
// @Produce      json
// @Param        file formData file true "Document content"
// @Param        category formData string false "Category"
// @Param        description formData string false "Description"
// @Success      201 {object} APIResponse[documentapp.DocumentDTO]
// @Failure      413 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /portal/documents [post]
func (h *ClientHandler) UploadDocument(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	header, f, ok := h.uploadedFile(c)
	if !ok {
		return
	}
	defer f.Close()

	doc, err := h.documents.UploadForContact(c.Request.Context(), p.TenantID, p.ContactID, documentapp.UploadInput{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        f,
		Category:    c.PostForm("category"),
		Description: c.PostForm("description"),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, doc)
}

// DownloadDocument godoc
// @Summary      Download link for a shared document
// @Tags         portal
// @Produce      json
// @Param        id path string true "Document ID"
// @Success      200 {object} APIResponse[documentapp.DownloadDTO]
// @Failure      404 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /portal/documents/{id}/download [get]
func (h *ClientHandler) DownloadDocument(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	link, err := h.documents.DownloadURLForContact(c.Request.Context(), p.TenantID, p.ContactID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, link)
}

// ListInvoices godoc
// @Summary      The client's issued invoices
// @Tags         portal
// @Produce      json
// @Param        page query int false "Page number"
// @Param        page_size query int false "Page size"
// @Param        status query string false "Invoice status"
// @Success      200 {object} APIResponse[[]billingapp.InvoiceDTO]
// @Security     BearerAuth
// @Router       /portal/invoices [get]
func (h *ClientHandler) ListInvoices(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	filter, ok := h.listFilter(c, "status")
	if !ok {
		return
	}
	invoices, total, err := h.invoices.ListForContact(c.Request.Context(), p.TenantID, p.ContactID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, invoices, total, filter)
}

// GetInvoice godoc
// @Summary      One of the client's invoices
// @Tags         portal
// @Produce      json
// @Param        id path string true "Invoice ID"
// @Success      200 {object} APIResponse[billingapp.InvoiceDTO]
// @Failure      404 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /portal/invoices/{id} [get]
func (h *ClientHandler) GetInvoice(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	inv, err := h.invoices.GetForContact(c.Request.Context(), p.TenantID, p.ContactID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// InvoicePDF godoc
// @Summary      Invoice as PDF
// @Tags         portal
// @Produce      application/pdf
// @Param        id path string true "Invoice ID"
// @Success      200 {file} binary
// @Security     BearerAuth
// @Router       /portal/invoices/{id}/pdf [get]
func (h *ClientHandler) InvoicePDF(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	name, body, err := h.invoices.PDFForContact(c.Request.Context(), p.TenantID, p.ContactID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	attachment(c, name, "application/pdf", body)
}

// ListAppointments godoc
// @Summary      The client's appointments
// @Tags         portal
// @Produce      json
// @Param        from query string false "Start bound (RFC3339)"
// @Param        to query string false "End bound (RFC3339)"
// @Success      200 {object} APIResponse[[]schedulingapp.AppointmentDTO]
// @Security     BearerAuth
// @Router       /portal/appointments [get]
func (h *ClientHandler) ListAppointments(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	filter, ok := h.listFilter(c, "status", "from", "to")
	if !ok {
		return
	}
	appts, total, err := h.appointments.ListForContact(c.Request.Context(), p.TenantID, p.ContactID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, appts, total, filter)
}
