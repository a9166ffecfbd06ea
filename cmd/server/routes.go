package main

import (
	"github.com/gin-gonic/gin"
	"github.com/taxcrm/backend/internal/domain/identity"
	"github.com/taxcrm/backend/internal/interfaces/http/handler"
	"github.com/taxcrm/backend/internal/interfaces/http/middleware"
	"github.com/taxcrm/backend/internal/interfaces/http/router"
)

// handlers bundles every HTTP handler mounted by the server
type handlers struct {
	auth         *handler.AuthHandler
	tenants      *handler.TenantHandler
	users        *handler.UserHandler
	roles        *handler.RoleHandler
	departments  *handler.DepartmentHandler
	contacts     *handler.ContactHandler
	corporations *handler.CorporationHandler
	cases        *handler.CaseHandler
	documents    *handler.DocumentHandler
	appointments *handler.AppointmentHandler
	tasks        *handler.TaskHandler
	invoices     *handler.InvoiceHandler
	portalAuth   *handler.PortalAuthHandler
	portalAccess *handler.PortalAccessHandler
	chat         *handler.ChatHandler
	client       *handler.ClientHandler
	audit        *handler.AuditHandler
	workflow     *handler.WorkflowHandler
	backups      *handler.BackupHandler
	agent        *handler.AgentHandler
	system       *handler.SystemHandler
}

// guards holds the middleware chains that protect each realm
type guards struct {
	// staff authenticates back-office users and checks their tenant is active
	staff []gin.HandlerFunc
	// portal authenticates client contacts
	portal []gin.HandlerFunc
	// login throttles credential endpoints
	login gin.HandlerFunc
}

func perm(p string) gin.HandlerFunc {
	return middleware.RequirePermission(p)
}

// registerRoutes mounts every domain group on r
func registerRoutes(r *router.Router, h *handlers, g guards) {
	// Staff authentication
	authRoutes := router.NewDomainGroup("auth", "/auth")
	authRoutes.POST("/login", g.login, h.auth.Login)
	authRoutes.POST("/refresh", g.login, h.auth.RefreshToken)
	authRoutes.Group("session", "").Use(g.staff...).
		POST("/logout", h.auth.Logout).
		GET("/me", h.auth.GetCurrentUser).
		PUT("/password", h.auth.ChangePassword)

	// Identity: tenants, users, roles, departments
	identityRoutes := router.NewDomainGroup("identity", "").Use(g.staff...)
	identityRoutes.GET("/tenant", h.tenants.Current)
	identityRoutes.PUT("/tenant", perm(identity.PermUserManage), h.tenants.UpdateCurrent)
	identityRoutes.Group("tenants", "/tenants").Use(perm(identity.PermTenantManage)).
		POST("", h.tenants.Create).
		GET("", h.tenants.List).
		GET("/:id", h.tenants.GetByID).
		PUT("/:id", h.tenants.Update).
		POST("/:id/suspend", h.tenants.Suspend).
		POST("/:id/activate", h.tenants.Activate)
	identityRoutes.Group("users", "/users").
		POST("", perm(identity.PermUserManage), h.users.Create).
		GET("", perm(identity.PermUserRead), h.users.List).
		GET("/:id", perm(identity.PermUserRead), h.users.GetByID).
		PUT("/:id", perm(identity.PermUserManage), h.users.Update).
		PUT("/:id/roles", perm(identity.PermUserManage), h.users.AssignRoles).
		POST("/:id/reset-password", perm(identity.PermUserManage), h.users.ResetPassword).
		POST("/:id/activate", perm(identity.PermUserManage), h.users.Activate).
		POST("/:id/deactivate", perm(identity.PermUserManage), h.users.Deactivate).
		DELETE("/:id", perm(identity.PermUserManage), h.users.Delete)
	identityRoutes.Group("roles", "/roles").
		POST("", perm(identity.PermUserManage), h.roles.Create).
		GET("", perm(identity.PermUserRead), h.roles.List).
		GET("/permissions", perm(identity.PermUserRead), h.roles.Permissions).
		GET("/:id", perm(identity.PermUserRead), h.roles.GetByID).
		PUT("/:id", perm(identity.PermUserManage), h.roles.Update).
		DELETE("/:id", perm(identity.PermUserManage), h.roles.Delete)
	identityRoutes.Group("departments", "/departments").
		POST("", perm(identity.PermUserManage), h.departments.Create).
		GET("", perm(identity.PermUserRead), h.departments.List).
		GET("/:id", perm(identity.PermUserRead), h.departments.GetByID).
		PUT("/:id", perm(identity.PermUserManage), h.departments.Update).
		DELETE("/:id", perm(identity.PermUserManage), h.departments.Delete)

	// CRM
	contactRoutes := router.NewDomainGroup("contacts", "/contacts").Use(g.staff...)
	contactRoutes.POST("", perm(identity.PermContactWrite), h.contacts.Create)
	contactRoutes.GET("", perm(identity.PermContactRead), h.contacts.List)
	contactRoutes.GET("/export", perm(identity.PermContactRead), h.contacts.Export)
	contactRoutes.GET("/:id", perm(identity.PermContactRead), h.contacts.GetByID)
	contactRoutes.PUT("/:id", perm(identity.PermContactWrite), h.contacts.Update)
	contactRoutes.DELETE("/:id", perm(identity.PermContactWrite), h.contacts.Delete)
	contactRoutes.GET("/:id/corporations", perm(identity.PermContactRead), h.contacts.Corporations)
	contactRoutes.PUT("/:id/corporations/:corporationId", perm(identity.PermContactWrite), h.contacts.LinkCorporation)
	contactRoutes.DELETE("/:id/corporations/:corporationId", perm(identity.PermContactWrite), h.contacts.UnlinkCorporation)
	contactRoutes.PUT("/:id/primary-corporation", perm(identity.PermContactWrite), h.contacts.SetPrimaryCorporation)
	contactRoutes.POST("/:id/activity", perm(identity.PermContactWrite), h.contacts.RecordActivity)
	contactRoutes.Group("portal-access", "/:id/portal-access").Use(perm(identity.PermPortalManage)).
		POST("", h.portalAccess.Invite).
		GET("", h.portalAccess.Get).
		DELETE("", h.portalAccess.Deactivate).
		POST("/reset-password", h.portalAccess.ResetPassword)

	corporationRoutes := router.NewDomainGroup("corporations", "/corporations").Use(g.staff...)
	corporationRoutes.POST("", perm(identity.PermCorporationWrite), h.corporations.Create)
	corporationRoutes.GET("", perm(identity.PermCorporationRead), h.corporations.List)
	corporationRoutes.GET("/export", perm(identity.PermCorporationRead), h.corporations.Export)
	corporationRoutes.GET("/:id", perm(identity.PermCorporationRead), h.corporations.GetByID)
	corporationRoutes.PUT("/:id", perm(identity.PermCorporationWrite), h.corporations.Update)
	corporationRoutes.DELETE("/:id", perm(identity.PermCorporationWrite), h.corporations.Delete)
	corporationRoutes.PUT("/:id/parent", perm(identity.PermCorporationWrite), h.corporations.SetParent)
	corporationRoutes.GET("/:id/subsidiaries", perm(identity.PermCorporationRead), h.corporations.Subsidiaries)
	corporationRoutes.GET("/:id/related", perm(identity.PermCorporationRead), h.corporations.Related)
	corporationRoutes.PUT("/:id/related/:relatedId", perm(identity.PermCorporationWrite), h.corporations.LinkRelated)
	corporationRoutes.DELETE("/:id/related/:relatedId", perm(identity.PermCorporationWrite), h.corporations.UnlinkRelated)
	corporationRoutes.GET("/:id/contacts", perm(identity.PermCorporationRead), h.corporations.Contacts)

	// Tax cases
	caseRoutes := router.NewDomainGroup("cases", "/cases").Use(g.staff...)
	caseRoutes.POST("", perm(identity.PermCaseWrite), h.cases.Create)
	caseRoutes.GET("", perm(identity.PermCaseRead), h.cases.List)
	caseRoutes.GET("/export", perm(identity.PermCaseRead), h.cases.Export)
	caseRoutes.GET("/:id", perm(identity.PermCaseRead), h.cases.GetByID)
	caseRoutes.PUT("/:id", perm(identity.PermCaseWrite), h.cases.Update)
	caseRoutes.PUT("/:id/status", perm(identity.PermCaseWrite), h.cases.ChangeStatus)
	caseRoutes.POST("/:id/submit", perm(identity.PermCaseWrite), h.cases.Submit)
	caseRoutes.DELETE("/:id", perm(identity.PermCaseWrite), h.cases.Delete)

	// Documents and folders
	documentRoutes := router.NewDomainGroup("documents", "").Use(g.staff...)
	documentRoutes.Group("files", "/documents").
		POST("", perm(identity.PermDocumentWrite), h.documents.Upload).
		GET("", perm(identity.PermDocumentRead), h.documents.List).
		GET("/:id", perm(identity.PermDocumentRead), h.documents.GetByID).
		PUT("/:id", perm(identity.PermDocumentWrite), h.documents.Update).
		DELETE("/:id", perm(identity.PermDocumentWrite), h.documents.Delete).
		GET("/:id/download", perm(identity.PermDocumentRead), h.documents.Download)
	documentRoutes.Group("folders", "/folders").
		POST("", perm(identity.PermDocumentWrite), h.documents.CreateFolder).
		POST("/department", perm(identity.PermDocumentWrite), h.documents.EnsureDepartmentFolder).
		GET("", perm(identity.PermDocumentRead), h.documents.ListFolders).
		GET("/:id", perm(identity.PermDocumentRead), h.documents.GetFolder).
		PUT("/:id", perm(identity.PermDocumentWrite), h.documents.RenameFolder).
		DELETE("/:id", perm(identity.PermDocumentWrite), h.documents.DeleteFolder)

	// Scheduling
	schedulingRoutes := router.NewDomainGroup("scheduling", "").Use(g.staff...)
	schedulingRoutes.Group("appointments", "/appointments").
		POST("", perm(identity.PermScheduleWrite), h.appointments.Create).
		GET("", perm(identity.PermScheduleRead), h.appointments.List).
		GET("/:id", perm(identity.PermScheduleRead), h.appointments.GetByID).
		PUT("/:id", perm(identity.PermScheduleWrite), h.appointments.Update).
		PUT("/:id/status", perm(identity.PermScheduleWrite), h.appointments.ChangeStatus).
		DELETE("/:id", perm(identity.PermScheduleWrite), h.appointments.Delete)
	schedulingRoutes.Group("tasks", "/tasks").
		POST("", perm(identity.PermScheduleWrite), h.tasks.Create).
		GET("", perm(identity.PermScheduleRead), h.tasks.List).
		GET("/:id", perm(identity.PermScheduleRead), h.tasks.GetByID).
		PUT("/:id", perm(identity.PermScheduleWrite), h.tasks.Update).
		PUT("/:id/status", perm(identity.PermScheduleWrite), h.tasks.ChangeStatus).
		POST("/:id/complete", perm(identity.PermScheduleWrite), h.tasks.Complete).
		DELETE("/:id", perm(identity.PermScheduleWrite), h.tasks.Delete)

	// Billing
	invoiceRoutes := router.NewDomainGroup("invoices", "/invoices").Use(g.staff...)
	invoiceRoutes.POST("", perm(identity.PermBillingWrite), h.invoices.Create)
	invoiceRoutes.GET("", perm(identity.PermBillingRead), h.invoices.List)
	invoiceRoutes.GET("/export", perm(identity.PermBillingRead), h.invoices.Export)
	invoiceRoutes.GET("/:id", perm(identity.PermBillingRead), h.invoices.GetByID)
	invoiceRoutes.PUT("/:id", perm(identity.PermBillingWrite), h.invoices.Update)
	invoiceRoutes.POST("/:id/send", perm(identity.PermBillingWrite), h.invoices.Send)
	invoiceRoutes.POST("/:id/payments", perm(identity.PermBillingWrite), h.invoices.RecordPayment)
	invoiceRoutes.POST("/:id/void", perm(identity.PermBillingWrite), h.invoices.Void)
	invoiceRoutes.DELETE("/:id", perm(identity.PermBillingWrite), h.invoices.Delete)
	invoiceRoutes.GET("/:id/pdf", perm(identity.PermBillingRead), h.invoices.PDF)

	// Staff side of portal management and chat
	portalAdminRoutes := router.NewDomainGroup("portal-admin", "").Use(g.staff...)
	portalAdminRoutes.GET("/portal-access", perm(identity.PermPortalManage), h.portalAccess.List)
	portalAdminRoutes.Group("chat", "/chat/conversations").Use(perm(identity.PermChatUse)).
		GET("", h.chat.Conversations).
		GET("/:id/messages", h.chat.StaffPoll).
		POST("/:id/messages", h.chat.StaffSend).
		POST("/:id/read", h.chat.StaffMarkRead)

	// Client portal
	portalRoutes := router.NewDomainGroup("portal", "/portal")
	portalRoutes.POST("/auth/login", g.login, h.portalAuth.Login)
	portalRoutes.POST("/auth/refresh", g.login, h.portalAuth.RefreshToken)
	portalRoutes.Group("client", "").Use(g.portal...).
		POST("/auth/logout", h.portalAuth.Logout).
		GET("/me", h.portalAuth.Me).
		GET("/chat/messages", h.chat.ClientPoll).
		POST("/chat/messages", h.chat.ClientSend).
		POST("/chat/read", h.chat.ClientMarkRead).
		GET("/chat/unread", h.chat.ClientUnread).
		GET("/documents", h.client.ListDocuments).
		POST("/documents", h.client.UploadDocument).
		GET("/documents/:id/download", h.client.DownloadDocument).
		GET("/invoices", h.client.ListInvoices).
		GET("/invoices/:id", h.client.GetInvoice).
		GET("/invoices/:id/pdf", h.client.InvoicePDF).
		GET("/appointments", h.client.ListAppointments)

	// Audit trail
	auditRoutes := router.NewDomainGroup("audit", "/audit-logs").Use(g.staff...).Use(perm(identity.PermAuditRead))
	auditRoutes.GET("", h.audit.List)
	auditRoutes.GET("/export", h.audit.Export)
	auditRoutes.GET("/resources/:type/:id", h.audit.History)
	auditRoutes.GET("/:id", h.audit.GetByID)

	// Approval workflows; deciders are checked by the engine against each rule
	workflowRoutes := router.NewDomainGroup("workflow", "").Use(g.staff...)
	workflowRoutes.Group("definitions", "/workflow/definitions").Use(perm(identity.PermWorkflowManage)).
		POST("", h.workflow.CreateDefinition).
		GET("", h.workflow.ListDefinitions).
		GET("/:id", h.workflow.GetDefinition).
		PUT("/:id", h.workflow.UpdateDefinition).
		POST("/:id/activate", h.workflow.ActivateDefinition).
		POST("/:id/deactivate", h.workflow.DeactivateDefinition).
		DELETE("/:id", h.workflow.DeleteDefinition).
		POST("/:id/test", h.workflow.TestDefinition)
	workflowRoutes.Group("approvals", "/approvals").
		GET("", h.workflow.ListApprovals).
		GET("/pending", h.workflow.ListPending).
		GET("/:id", h.workflow.GetApproval).
		POST("/:id/approve", h.workflow.Approve).
		POST("/:id/reject", h.workflow.Reject).
		POST("/:id/cancel", h.workflow.Cancel)

	// Backups
	backupRoutes := router.NewDomainGroup("backups", "/backups").Use(g.staff...).Use(perm(identity.PermBackupManage))
	backupRoutes.POST("", h.backups.Create)
	backupRoutes.GET("", h.backups.List)
	backupRoutes.POST("/upload", h.backups.Upload)
	backupRoutes.GET("/:id", h.backups.GetByID)
	backupRoutes.POST("/:id/restore", h.backups.Restore)
	backupRoutes.GET("/:id/download", h.backups.Download)
	backupRoutes.DELETE("/:id", h.backups.Delete)

	// AI agent
	agentRoutes := router.NewDomainGroup("agent", "/agent").Use(g.staff...)
	agentRoutes.GET("/config", perm(identity.PermAgentManage), h.agent.GetConfig)
	agentRoutes.PUT("/config", perm(identity.PermAgentManage), h.agent.UpdateConfig)
	agentRoutes.POST("/runs", perm(identity.PermAgentManage), h.agent.TriggerRun)
	agentRoutes.GET("/runs", perm(identity.PermAgentManage), h.agent.ListRuns)
	agentRoutes.GET("/suggestions", perm(identity.PermAgentUse), h.agent.ListSuggestions)
	agentRoutes.POST("/suggestions/:id/accept", perm(identity.PermAgentUse), h.agent.Accept)
	agentRoutes.POST("/suggestions/:id/dismiss", perm(identity.PermAgentUse), h.agent.Dismiss)
	agentRoutes.POST("/ask", perm(identity.PermAgentUse), h.agent.Ask)

	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", h.system.GetSystemInfo)

	r.Register(authRoutes).
		Register(identityRoutes).
		Register(contactRoutes).
		Register(corporationRoutes).
		Register(caseRoutes).
		Register(documentRoutes).
		Register(schedulingRoutes).
		Register(invoiceRoutes).
		Register(portalAdminRoutes).
		Register(portalRoutes).
		Register(auditRoutes).
		Register(workflowRoutes).
		Register(backupRoutes).
		Register(agentRoutes).
		Register(systemRoutes)
}
