package tenant

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taxcrm/backend/internal/infrastructure/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type scopedModel struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name     string    `gorm:"size:100"`
}

func (scopedModel) TableName() string {
	return "scoped_models"
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func TestScope(t *testing.T) {
	t.Run("applies tenant filter to query", func(t *testing.T) {
		db, mock, mockDB := setupMockDB(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		mock.ExpectQuery(`SELECT \* FROM "scoped_models" WHERE tenant_id = \$1`).
			WithArgs(tenantID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name"}).
				AddRow(uuid.New(), tenantID, "a"))

		var rows []scopedModel
		err := db.Scopes(Scope(tenantID)).Find(&rows).Error
		require.NoError(t, err)
		assert.Len(t, rows, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("chains with other conditions", func(t *testing.T) {
		db, mock, mockDB := setupMockDB(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		mock.ExpectQuery(`SELECT \* FROM "scoped_models" WHERE name = \$1 AND tenant_id = \$2`).
			WithArgs("x", tenantID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name"}))

		var rows []scopedModel
		err := db.Where("name = ?", "x").Scopes(Scope(tenantID)).Find(&rows).Error
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil tenant fails without touching the database", func(t *testing.T) {
		db, mock, mockDB := setupMockDB(t)
		defer mockDB.Close()

		var rows []scopedModel
		err := db.Scopes(Scope(uuid.Nil)).Find(&rows).Error
		assert.ErrorIs(t, err, ErrTenantIDRequired)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFromContext(t *testing.T) {
	t.Run("missing tenant", func(t *testing.T) {
		_, err := FromContext(context.Background())
		assert.ErrorIs(t, err, ErrTenantIDRequired)
	})

	t.Run("malformed tenant", func(t *testing.T) {
		ctx := logger.WithTenantID(context.Background(), "not-a-uuid")
		_, err := FromContext(ctx)
		assert.ErrorIs(t, err, ErrInvalidTenantID)
	})

	t.Run("valid tenant", func(t *testing.T) {
		id := uuid.New()
		ctx := logger.WithTenantID(context.Background(), id.String())
		got, err := FromContext(ctx)
		require.NoError(t, err)
		assert.Equal(t, id, got)
	})
}

func TestScopeFromContext(t *testing.T) {
	db, mock, mockDB := setupMockDB(t)
	defer mockDB.Close()

	id := uuid.New()
	ctx := logger.WithTenantID(context.Background(), id.String())
	mock.ExpectQuery(`SELECT \* FROM "scoped_models" WHERE tenant_id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name"}))

	var rows []scopedModel
	require.NoError(t, db.WithContext(ctx).Scopes(ScopeFromContext(ctx)).Find(&rows).Error)
	assert.NoError(t, mock.ExpectationsWereMet())

	err := db.Scopes(ScopeFromContext(context.Background())).Find(&rows).Error
	assert.ErrorIs(t, err, ErrTenantIDRequired)
}
