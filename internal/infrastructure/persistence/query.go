package persistence

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/taxcrm/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// translateNotFound maps gorm's missing-row error to the domain error.
func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	return err
}

// likePattern builds a case-insensitive contains pattern for LOWER(col) LIKE ?.
func likePattern(search string) string {
	return "%" + strings.ToLower(strings.TrimSpace(search)) + "%"
}

// searchColumns ORs a LOWER(col) LIKE ? condition across the given columns.
func searchColumns(query *gorm.DB, search string, columns ...string) *gorm.DB {
	if strings.TrimSpace(search) == "" || len(columns) == 0 {
		return query
	}
	pattern := likePattern(search)
	conds := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, col := range columns {
		conds[i] = "LOWER(" + col + ") LIKE ?"
		args[i] = pattern
	}
	return query.Where("("+strings.Join(conds, " OR ")+")", args...)
}

// applyPaging applies validated ordering and offset pagination.
func applyPaging(query *gorm.DB, filter shared.Filter, sort sortColumns) *gorm.DB {
	query = query.Order(sort.clause(filter.OrderBy, filter.OrderDir))

	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}
	return query
}

// findPage counts the filtered rows then loads one page of them.
func findPage[M any](query *gorm.DB, filter shared.Filter, sort sortColumns) ([]M, int64, error) {
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []M
	if err := applyPaging(query, filter, sort).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// deleteResult turns a zero-row delete into ErrNotFound.
func deleteResult(result *gorm.DB) error {
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// versioned is an aggregate that remembers the version it was read at
type versioned interface {
	LoadedVersion() int
}

// saveVersioned inserts an aggregate that was never stored. Otherwise it
// updates the row only while the row still holds the version the aggregate
// was read at, and reports ErrConcurrencyConflict when another writer got
// there first.
func saveVersioned(tx *gorm.DB, model any, id uuid.UUID, agg versioned) error {
	loaded := agg.LoadedVersion()
	if loaded == 0 {
		return tx.Omit(clause.Associations).Create(model).Error
	}
	result := tx.Model(model).
		Select("*").
		Omit(clause.Associations).
		Where("id = ? AND version = ?", id, loaded).
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}
