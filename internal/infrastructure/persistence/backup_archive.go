package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/backup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// archiveTable describes how one table takes part in backups.
type archiveTable struct {
	name string
	// key is the unique column archived rows are upserted on, so restores
	// overwrite rows in place and rows that have since left the scope
	key string
	// owner is set on link tables; rows of an archived owner are replaced
	// wholesale even when they have left the scope
	owner string
	// tenantColumn is empty for tables that only exist in global archives
	tenantColumn string
	// corporation narrows a tenant query to a corporation scope; nil excludes the table
	corporation func(s corporationScope) (string, []any)
	// refs are checked only on corporation restores, where the referenced
	// row lies outside the scope and may be gone
	refs []archiveRef
}

// archiveRef points a column at the id of another table. Rows whose target
// is missing are dropped, or have the column cleared when nullable.
type archiveRef struct {
	column   string
	table    string
	nullable bool
}

type corporationScope struct {
	corporationID uuid.UUID
	contactIDs    []uuid.UUID
}

func (s corporationScope) ownedBy() (string, []any) {
	if len(s.contactIDs) == 0 {
		return "corporation_id = ?", []any{s.corporationID}
	}
	return "(corporation_id = ? OR contact_id IN ?)", []any{s.corporationID, s.contactIDs}
}

// archiveTables lists every table in insert order; parents precede children.
var archiveTables = []archiveTable{
	{name: "tenants", key: "id"},
	{name: "departments", key: "id", tenantColumn: "tenant_id"},
	{name: "roles", key: "id", tenantColumn: "tenant_id"},
	{name: "users", key: "id", tenantColumn: "tenant_id"},
	{name: "user_roles", owner: "user_id", tenantColumn: "tenant_id"},
	{name: "corporations", key: "id", tenantColumn: "tenant_id", corporation: func(s corporationScope) (string, []any) {
		return "id = ?", []any{s.corporationID}
	}, refs: []archiveRef{{column: "parent_id", table: "corporations", nullable: true}}},
	// both directions, so links other corporations hold to this one survive a restore
	{name: "corporation_relations", tenantColumn: "tenant_id", corporation: func(s corporationScope) (string, []any) {
		return "(corporation_id = ? OR related_id = ?)", []any{s.corporationID, s.corporationID}
	}, refs: []archiveRef{{column: "corporation_id", table: "corporations"}, {column: "related_id", table: "corporations"}}},
	{name: "contacts", key: "id", tenantColumn: "tenant_id", corporation: func(s corporationScope) (string, []any) {
		return "id IN ?", []any{nonEmpty(s.contactIDs)}
	}, refs: []archiveRef{{column: "primary_corporation_id", table: "corporations", nullable: true}}},
	{name: "contact_corporations", owner: "contact_id", tenantColumn: "tenant_id", corporation: func(s corporationScope) (string, []any) {
		return "contact_id IN ?", []any{nonEmpty(s.contactIDs)}
	}, refs: []archiveRef{{column: "corporation_id", table: "corporations"}}},
	{name: "tax_cases", key: "id", tenantColumn: "tenant_id", corporation: corporationScope.ownedBy},
	{name: "folders", key: "id", tenantColumn: "tenant_id", corporation: corporationScope.ownedBy},
	{name: "documents", key: "id", tenantColumn: "tenant_id", corporation: corporationScope.ownedBy},
	{name: "appointments", key: "id", tenantColumn: "tenant_id"},
	{name: "tasks", key: "id", tenantColumn: "tenant_id"},
	{name: "invoices", key: "id", tenantColumn: "tenant_id", corporation: corporationScope.ownedBy},
	{name: "invoice_items", key: "id", tenantColumn: "tenant_id", corporation: invoiceChildren},
	{name: "invoice_payments", key: "id", tenantColumn: "tenant_id", corporation: invoiceChildren},
	{name: "portal_access", key: "id", tenantColumn: "tenant_id"},
	{name: "portal_messages", key: "seq", tenantColumn: "tenant_id"},
	{name: "approval_definitions", key: "id", tenantColumn: "tenant_id"},
	{name: "approvals", key: "id", tenantColumn: "tenant_id"},
	{name: "agent_configs", key: "id", tenantColumn: "tenant_id"},
	{name: "agent_runs", key: "id", tenantColumn: "tenant_id"},
	{name: "agent_suggestions", key: "id", tenantColumn: "tenant_id"},
	{name: "number_sequences", tenantColumn: "tenant_id"},
	{name: "audit_logs", key: "id", tenantColumn: "tenant_id"},
}

func invoiceChildren(s corporationScope) (string, []any) {
	cond, args := s.ownedBy()
	return "invoice_id IN (SELECT id FROM invoices WHERE " + cond + ")", args
}

// nonEmpty keeps IN clauses valid when the corporation has no contacts
func nonEmpty(ids []uuid.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return []uuid.UUID{uuid.Nil}
	}
	return ids
}

// ArchiveStore dumps and restores backup scopes as generic row maps.
type ArchiveStore struct {
	db        *gorm.DB
	batchSize int
}

// NewArchiveStore creates a new ArchiveStore
func NewArchiveStore(db *gorm.DB) *ArchiveStore {
	return &ArchiveStore{db: db, batchSize: 200}
}

// scopedQuery returns the WHERE clause selecting the scope's rows of t.
// ok is false when the table does not belong to the scope.
func (s *ArchiveStore) scopedQuery(ctx context.Context, db *gorm.DB, t archiveTable, scope backup.Scope) (cond string, args []any, ok bool, err error) {
	if scope.Type == backup.TypeGlobal {
		return "1 = 1", nil, true, nil
	}
	if t.tenantColumn == "" {
		return "", nil, false, nil
	}
	cond, args = t.tenantColumn+" = ?", []any{*scope.TenantID}
	if scope.CorporationID == nil {
		return cond, args, true, nil
	}
	if t.corporation == nil {
		return "", nil, false, nil
	}
	cs, err := s.corporationScope(ctx, db, *scope.TenantID, *scope.CorporationID)
	if err != nil {
		return "", nil, false, err
	}
	extra, extraArgs := t.corporation(cs)
	return cond + " AND " + extra, append(args, extraArgs...), true, nil
}

// corporationScope resolves the contacts belonging to a corporation
func (s *ArchiveStore) corporationScope(ctx context.Context, db *gorm.DB, tenantID, corporationID uuid.UUID) (corporationScope, error) {
	var linked []uuid.UUID
	if err := db.WithContext(ctx).Table("contact_corporations").
		Where("tenant_id = ? AND corporation_id = ?", tenantID, corporationID).
		Pluck("contact_id", &linked).Error; err != nil {
		return corporationScope{}, err
	}
	var primary []uuid.UUID
	if err := db.WithContext(ctx).Table("contacts").
		Where("tenant_id = ? AND primary_corporation_id = ?", tenantID, corporationID).
		Pluck("id", &primary).Error; err != nil {
		return corporationScope{}, err
	}
	seen := make(map[uuid.UUID]bool, len(linked)+len(primary))
	ids := make([]uuid.UUID, 0, len(linked)+len(primary))
	for _, id := range append(linked, primary...) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return corporationScope{corporationID: corporationID, contactIDs: ids}, nil
}

// Dump reads every table of the scope into a new archive
func (s *ArchiveStore) Dump(ctx context.Context, scope backup.Scope) (*backup.Archive, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	archive := backup.NewArchive(scope)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range archiveTables {
			cond, args, ok, err := s.scopedQuery(ctx, tx, t, scope)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			var rows []map[string]any
			if err := tx.Table(t.name).Where(cond, args...).Find(&rows).Error; err != nil {
				return fmt.Errorf("dump %s: %w", t.name, err)
			}
			for _, row := range rows {
				normalizeDumpedRow(row)
			}
			if rows == nil {
				rows = []map[string]any{}
			}
			archive.Tables[t.name] = rows
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return archive, nil
}

// Restore replaces the scope's rows with the archived ones in a single
// transaction. Archived rows are upserted rather than deleted and re-inserted,
// so rows outside the scope that reference them are never cascaded away.
func (s *ArchiveStore) Restore(ctx context.Context, archive *backup.Archive) error {
	scope := archive.Scope()
	if err := archive.ValidateFor(scope); err != nil {
		return err
	}
	partial := scope.CorporationID != nil
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := len(archiveTables) - 1; i >= 0; i-- {
			t := archiveTables[i]
			cond, args, ok, err := s.scopedQuery(ctx, tx, t, scope)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if err := clearScope(tx, t, cond, args, archive.Tables[t.name]); err != nil {
				return err
			}
		}
		for _, t := range archiveTables {
			rows, ok := archive.Tables[t.name]
			if !ok || len(rows) == 0 {
				continue
			}
			prepared := make([]map[string]any, len(rows))
			for i, row := range rows {
				prepared[i] = prepareRestoredRow(row)
			}
			if partial {
				var err error
				if prepared, err = dropDangling(tx, t, prepared); err != nil {
					return err
				}
			}
			if err := s.upsert(tx, t, prepared); err != nil {
				return err
			}
		}
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec(`SELECT setval(pg_get_serial_sequence('portal_messages', 'seq'), COALESCE((SELECT MAX(seq) FROM portal_messages), 0) + 1, false)`).Error; err != nil {
				return fmt.Errorf("reset portal_messages sequence: %w", err)
			}
		}
		return nil
	})
}

// clearScope deletes the rows of t that the restore will not bring back.
// Keyed rows held by the archive stay in place for upsert; link tables are
// emptied for the scope and for every archived owner.
func clearScope(tx *gorm.DB, t archiveTable, cond string, args []any, rows []backup.Row) error {
	switch {
	case t.key != "":
		if keys := archivedKeys(rows, t.key); len(keys) > 0 {
			cond += " AND " + t.key + " NOT IN ?"
			args = append(append([]any{}, args...), keys)
		}
	case t.owner != "":
		if owners := archivedKeys(rows, t.owner); len(owners) > 0 {
			if err := tx.Exec("DELETE FROM "+t.name+" WHERE "+t.owner+" IN ?", owners).Error; err != nil {
				return fmt.Errorf("clear %s by owner: %w", t.name, err)
			}
		}
	}
	if err := tx.Exec("DELETE FROM "+t.name+" WHERE "+cond, args...).Error; err != nil {
		return fmt.Errorf("clear %s: %w", t.name, err)
	}
	return nil
}

func (s *ArchiveStore) upsert(tx *gorm.DB, t archiveTable, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}
	q := tx.Table(t.name)
	if t.key != "" {
		conflict := clause.OnConflict{Columns: []clause.Column{{Name: t.key}}}
		if cols := updatableColumns(rows[0], t.key); len(cols) > 0 {
			conflict.DoUpdates = clause.AssignmentColumns(cols)
		} else {
			conflict.DoNothing = true
		}
		q = q.Clauses(conflict)
	}
	if err := q.CreateInBatches(rows, s.batchSize).Error; err != nil {
		return fmt.Errorf("restore %s: %w", t.name, err)
	}
	return nil
}

func updatableColumns(row map[string]any, key string) []string {
	cols := make([]string, 0, len(row))
	for _, col := range slices.Sorted(maps.Keys(row)) {
		if col != key {
			cols = append(cols, col)
		}
	}
	return cols
}

// dropDangling applies t.refs against the current database state
func dropDangling(tx *gorm.DB, t archiveTable, rows []map[string]any) ([]map[string]any, error) {
	for _, ref := range t.refs {
		wanted := make([]any, 0, len(rows))
		for _, row := range rows {
			if v := row[ref.column]; v != nil {
				wanted = append(wanted, v)
			}
		}
		if len(wanted) == 0 {
			continue
		}
		var found []string
		if err := tx.Table(ref.table).Where("id IN ?", wanted).Pluck("id", &found).Error; err != nil {
			return nil, fmt.Errorf("check %s.%s: %w", t.name, ref.column, err)
		}
		present := make(map[string]bool, len(found))
		for _, id := range found {
			present[strings.ToLower(id)] = true
		}
		kept := rows[:0]
		for _, row := range rows {
			v := row[ref.column]
			switch {
			case v == nil || present[strings.ToLower(fmt.Sprint(v))]:
				kept = append(kept, row)
			case ref.nullable:
				row[ref.column] = nil
				kept = append(kept, row)
			}
		}
		rows = kept
	}
	return rows, nil
}

func archivedKeys(rows []backup.Row, key string) []any {
	if key == "" {
		return nil
	}
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		if v, ok := row[key]; ok && v != nil {
			out = append(out, normalizeValue(key, v))
		}
	}
	return out
}

// normalizeDumpedRow turns driver byte slices into strings so JSON keeps them readable
func normalizeDumpedRow(row map[string]any) {
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}
}

func prepareRestoredRow(row backup.Row) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = normalizeValue(k, v)
	}
	return out
}

// normalizeValue converts JSON-decoded values back into driver-friendly types
func normalizeValue(column string, v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		return val.String()
	case string:
		if isTimeColumn(column) {
			if t, err := time.Parse(time.RFC3339Nano, val); err == nil {
				return t
			}
		}
		return val
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return nil
		}
		return string(b)
	default:
		return v
	}
}

func isTimeColumn(column string) bool {
	return strings.HasSuffix(column, "_at") || strings.HasSuffix(column, "_date") ||
		strings.HasSuffix(column, "_until") || column == "date_of_birth"
}
