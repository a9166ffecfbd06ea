package identity

// Permission strings carried in staff access tokens, formatted "resource:action"
const (
	PermTenantManage     = "tenant:manage"
	PermUserRead         = "user:read"
	PermUserManage       = "user:manage"
	PermContactRead      = "contact:read"
	PermContactWrite     = "contact:write"
	PermCorporationRead  = "corporation:read"
	PermCorporationWrite = "corporation:write"
	PermCaseRead         = "case:read"
	PermCaseWrite        = "case:write"
	PermDocumentRead     = "document:read"
	PermDocumentWrite    = "document:write"
	PermScheduleRead     = "schedule:read"
	PermScheduleWrite    = "schedule:write"
	PermBillingRead      = "billing:read"
	PermBillingWrite     = "billing:write"
	PermPortalManage     = "portal:manage"
	PermChatUse          = "chat:use"
	PermAuditRead        = "audit:read"
	PermWorkflowManage   = "workflow:manage"
	PermWorkflowApprove  = "workflow:approve"
	PermBackupManage     = "backup:manage"
	PermBackupGlobal     = "backup:global"
	PermAgentManage      = "agent:manage"
	PermAgentUse         = "agent:use"
)

// AllPermissions lists every permission a tenant administrator receives.
// backup:global is granted only to platform operators and is not included.
func AllPermissions() []string {
	return []string{
		PermTenantManage, PermUserRead, PermUserManage,
		PermContactRead, PermContactWrite, PermCorporationRead, PermCorporationWrite,
		PermCaseRead, PermCaseWrite, PermDocumentRead, PermDocumentWrite,
		PermScheduleRead, PermScheduleWrite, PermBillingRead, PermBillingWrite,
		PermPortalManage, PermChatUse, PermAuditRead,
		PermWorkflowManage, PermWorkflowApprove, PermBackupManage,
		PermAgentManage, PermAgentUse,
	}
}

// IsKnownPermission reports whether p is a permission the system understands
func IsKnownPermission(p string) bool {
	if p == PermBackupGlobal {
		return true
	}
	for _, known := range AllPermissions() {
		if known == p {
			return true
		}
	}
	return false
}
