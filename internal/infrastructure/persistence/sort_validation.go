package persistence

import "strings"

// sortColumns whitelists the columns a list endpoint may order by.
// Client input never reaches ORDER BY unless it names one of them exactly.
type sortColumns struct {
	fallback string
	allowed  map[string]struct{}
}

// sortable builds a whitelist of id, created_at, updated_at plus cols.
// fallback is used when the requested column is missing or unknown.
func sortable(fallback string, cols ...string) sortColumns {
	s := sortColumns{fallback: fallback, allowed: map[string]struct{}{
		"id": {}, "created_at": {}, "updated_at": {},
	}}
	for _, c := range cols {
		s.allowed[c] = struct{}{}
	}
	s.allowed[fallback] = struct{}{}
	return s
}

// column returns requested when whitelisted, otherwise the fallback
func (s sortColumns) column(requested string) string {
	if _, ok := s.allowed[strings.TrimSpace(requested)]; ok {
		return strings.TrimSpace(requested)
	}
	return s.fallback
}

// clause renders a safe "column DIR" ordering; anything but asc sorts DESC
func (s sortColumns) clause(field, dir string) string {
	if strings.EqualFold(strings.TrimSpace(dir), "asc") {
		return s.column(field) + " ASC"
	}
	return s.column(field) + " DESC"
}

var (
	tenantSort      = sortable("created_at", "name", "slug", "status")
	userSort        = sortable("created_at", "username", "email", "display_name", "status", "last_login_at")
	departmentSort  = sortable("name", "code")
	contactSort     = sortable("created_at", "first_name", "last_name", "email", "status", "last_activity_at")
	corporationSort = sortable("name", "entity_type", "status", "fiscal_year_end_month")
	taxCaseSort     = sortable("created_at", "case_number", "tax_year", "case_type", "status", "priority", "due_date", "fee")
	documentSort    = sortable("created_at", "name", "category", "size_bytes")
	appointmentSort = sortable("starts_at", "ends_at", "status", "kind")
	taskSort        = sortable("created_at", "title", "due_date", "priority", "status")
	invoiceSort     = sortable("issue_date", "number", "due_date", "status")
	auditLogSort    = sortable("occurred_at", "action", "resource_type")
	definitionSort  = sortable("created_at", "name", "module", "active")
	approvalSort    = sortable("created_at", "module", "status", "decided_at")
	backupSort      = sortable("created_at", "status", "completed_at", "size_bytes")
	agentRunSort    = sortable("started_at", "finished_at", "status")
	suggestionSort  = sortable("created_at", "kind", "status")
)
