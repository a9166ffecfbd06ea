package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/taxcrm/backend/internal/infrastructure/config"
	"github.com/taxcrm/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database wraps the shared gorm handle used by every repository
type Database struct {
	DB *gorm.DB
}

// Option adjusts how the connection is opened
type Option func(*gorm.Config)

// WithQueryLog routes SQL logging through zap at the given level.
// Queries slower than slow are logged as warnings.
func WithQueryLog(log *zap.Logger, level gormlogger.LogLevel, slow time.Duration) Option {
	return func(gc *gorm.Config) {
		gc.Logger = logger.NewGormLogger(log, level,
			logger.WithSlowThreshold(slow),
			logger.WithIgnoreRecordNotFoundError(true),
		)
	}
}

// Open connects to PostgreSQL, applies the pool limits and verifies the
// connection before returning.
func Open(ctx context.Context, cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	return openWith(ctx, postgres.Open(cfg.DSN()), cfg, opts...)
}

func openWith(ctx context.Context, dialector gorm.Dialector, cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	gc := &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		DisableAutomaticPing:   true,
	}
	for _, opt := range opts {
		opt(gc)
	}

	db, err := gorm.Open(dialector, gc)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	d := &Database{DB: db}
	if err := d.Ping(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return d, nil
}

// Ping reports whether the database answers within ctx
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// PoolFields describes the connection pool for logging
func (d *Database) PoolFields() []zap.Field {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return []zap.Field{zap.Error(err)}
	}
	s := sqlDB.Stats()
	return []zap.Field{
		zap.Int("max_open", s.MaxOpenConnections),
		zap.Int("open", s.OpenConnections),
		zap.Int("in_use", s.InUse),
		zap.Int("idle", s.Idle),
		zap.Int64("wait_count", s.WaitCount),
		zap.Duration("wait_duration", s.WaitDuration),
	}
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}
