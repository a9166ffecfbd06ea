package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortColumns_Clause(t *testing.T) {
	s := sortable("last_name", "first_name", "email")

	tests := []struct {
		field, dir string
		want       string
	}{
		{"", "", "last_name DESC"},
		{"email", "asc", "email ASC"},
		{"  email  ", " ASC ", "email ASC"},
		{"created_at", "desc", "created_at DESC"},
		{"id", "sideways", "id DESC"},
		{"EMAIL", "asc", "last_name ASC"},
		{"ssn_encrypted", "asc", "last_name ASC"},
	}
	for _, tt := range tests {
		t.Run(tt.field+"/"+tt.dir, func(t *testing.T) {
			assert.Equal(t, tt.want, s.clause(tt.field, tt.dir))
		})
	}
}

func TestSortColumns_RejectsInjection(t *testing.T) {
	payloads := []string{
		"id; DROP TABLE contacts;--",
		"id' OR '1'='1",
		"first_name, (SELECT password_hash FROM users)",
		"CASE WHEN 1=1 THEN id ELSE email END",
		"id/**/;DROP TABLE invoices",
		"id\n; DELETE FROM backups",
	}
	for _, p := range payloads {
		assert.Equal(t, "created_at DESC", contactSort.clause(p, "asc; --"), p)
		assert.Equal(t, "created_at ASC", contactSort.clause(p, "asc"), p)
	}
}

func TestSortColumns_FallbackAlwaysAllowed(t *testing.T) {
	for name, s := range map[string]sortColumns{
		"departments":  departmentSort,
		"corporations": corporationSort,
		"appointments": appointmentSort,
		"invoices":     invoiceSort,
		"audit":        auditLogSort,
		"agent runs":   agentRunSort,
	} {
		assert.Equal(t, s.fallback, s.column(s.fallback), name)
		assert.Equal(t, "id", s.column("id"), name)
	}
}
