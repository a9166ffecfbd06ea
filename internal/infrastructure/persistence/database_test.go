package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taxcrm/backend/internal/infrastructure/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/postgres"
	gormlogger "gorm.io/gorm/logger"
)

func poolConfig() *config.DatabaseConfig {
	return &config.DatabaseConfig{MaxOpenConns: 7, MaxIdleConns: 3, ConnMaxLifetime: 60, ConnMaxIdleTime: 30}
}

func TestOpen_AppliesPoolAndPings(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing()
	mock.ExpectClose()

	db, err := openWith(context.Background(), postgres.New(postgres.Config{Conn: mockDB}), poolConfig())
	require.NoError(t, err)

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	assert.Equal(t, 7, sqlDB.Stats().MaxOpenConnections)

	require.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_FailedPingClosesPool(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectClose()

	_, err = openWith(context.Background(), postgres.New(postgres.Config{Conn: mockDB}), poolConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ping database")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_WithQueryLog(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockDB.Close()
	mock.ExpectPing()

	core, logs := observer.New(zap.DebugLevel)
	db, err := openWith(context.Background(), postgres.New(postgres.Config{Conn: mockDB}), poolConfig(),
		WithQueryLog(zap.New(core), gormlogger.Info, 0))
	require.NoError(t, err)

	mock.ExpectPrepare(`SELECT 1`).ExpectQuery().WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	var one int
	require.NoError(t, db.DB.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
	assert.NotZero(t, logs.FilterMessage("SQL").Len())
}

func TestDatabase_PoolFields(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockDB.Close()
	mock.ExpectPing()

	db, err := openWith(context.Background(), postgres.New(postgres.Config{Conn: mockDB}), poolConfig())
	require.NoError(t, err)

	keys := map[string]bool{}
	for _, f := range db.PoolFields() {
		keys[f.Key] = true
	}
	assert.True(t, keys["max_open"])
	assert.True(t, keys["in_use"])
}

func TestDatabase_PingHonoursContext(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockDB.Close()
	mock.ExpectPing()

	db, err := openWith(context.Background(), postgres.New(postgres.Config{Conn: mockDB}), poolConfig())
	require.NoError(t, err)

	mock.ExpectPing()
	require.NoError(t, db.Ping(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, db.Ping(ctx))
}
