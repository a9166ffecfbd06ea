//go:build integration

// Package integration runs the repositories and services against a real
// PostgreSQL started with testcontainers. Run with -tags integration.
//
// One container serves the whole package; every test gets its own freshly
// migrated database, dropped on cleanup.
package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	mpg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	pgUser     = "taxcrm"
	pgPassword = "taxcrm-test"
)

var cluster struct {
	once      sync.Once
	container *tcpostgres.PostgresContainer
	host      string
	port      string
	err       error
}

// TestMain terminates the shared container after the package's tests.
func TestMain(m *testing.M) {
	code := m.Run()
	if cluster.container != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		_ = cluster.container.Terminate(ctx)
		cancel()
	}
	os.Exit(code)
}

// TestDB is one migrated database inside the shared container.
type TestDB struct {
	DB    *gorm.DB
	SqlDB *sql.DB
	Name  string
	t     *testing.T
}

// NewTestDB creates and migrates a database private to t.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	startCluster(t)

	name := "t_" + strings.ReplaceAll(uuid.NewString()[:13], "-", "")
	admin := openDB(t, "postgres")
	require.NoError(t, admin.Exec("CREATE DATABASE "+name).Error, "Failed to create test database")

	db := openDB(t, name)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	migrateUp(t, sqlDB)

	tdb := &TestDB{DB: db, SqlDB: sqlDB, Name: name, t: t}
	t.Cleanup(func() {
		_ = sqlDB.Close()
		if err := admin.Exec("DROP DATABASE IF EXISTS " + name + " WITH (FORCE)").Error; err != nil {
			t.Logf("Warning: failed to drop %s: %v", name, err)
		}
		if adminSQL, err := admin.DB(); err == nil {
			_ = adminSQL.Close()
		}
	})
	return tdb
}

func startCluster(t *testing.T) {
	t.Helper()
	cluster.once.Do(func() {
		ctx := context.Background()
		c, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("postgres"),
			tcpostgres.WithUsername(pgUser),
			tcpostgres.WithPassword(pgPassword),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		if err != nil {
			cluster.err = fmt.Errorf("start postgres: %w", err)
			return
		}
		cluster.container = c
		host, err := c.Host(ctx)
		if err != nil {
			cluster.err = err
			return
		}
		port, err := c.MappedPort(ctx, "5432/tcp")
		if err != nil {
			cluster.err = err
			return
		}
		cluster.host, cluster.port = host, port.Port()
	})
	require.NoError(t, cluster.err, "PostgreSQL container unavailable")
}

func openDB(t *testing.T, name string) *gorm.DB {
	t.Helper()

	level := logger.Silent
	if os.Getenv("TEST_DB_DEBUG") != "" {
		level = logger.Info
	}
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cluster.host, cluster.port, pgUser, pgPassword, name)
	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(level)})
	require.NoError(t, err, "Failed to connect to %s", name)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	return db
}

func migrateUp(t *testing.T, sqlDB *sql.DB) {
	t.Helper()

	dir := migrationsDir()
	require.NotEmpty(t, dir, "Could not find migrations directory")

	driver, err := mpg.WithInstance(sqlDB, &mpg.Config{})
	require.NoError(t, err, "Failed to create migration driver")
	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	require.NoError(t, err, "Failed to create migrate instance")
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		require.NoError(t, err, "Failed to run migrations")
	}
}

// migrationsDir walks up from this file to the module root's migrations/.
func migrationsDir() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}
	for dir := filepath.Dir(file); dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, "migrations")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
	}
	return ""
}

// CreateTestTenant inserts an active tenant; most tables reference tenants.
func (tdb *TestDB) CreateTestTenant(tenantID uuid.UUID, name string) {
	tdb.t.Helper()

	slug := "test-" + tenantID.String()[:8]
	err := tdb.DB.Exec(`INSERT INTO tenants (id, name, slug, status) VALUES (?, ?, ?, 'active')`,
		tenantID, name, slug).Error
	require.NoError(tdb.t, err, "Failed to create test tenant")
}

// skipShort skips container-backed tests in -short runs.
func skipShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}
