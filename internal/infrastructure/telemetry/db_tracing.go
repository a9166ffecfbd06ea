package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool // include query variables; never enable in production
	SlowQueryThresh time.Duration
	DBSystem        string
}

// DefaultDBTracingConfig returns default configuration for database tracing.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "postgresql",
	}
}

type contextKey string

const queryStartTimeKey contextKey = "otel_query_start_time"

// DBTracingPlugin registers otelgorm plus slow-query span annotations.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates a new database tracing plugin.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.DBSystem == "" {
		cfg.DBSystem = "postgresql"
	}
	return &DBTracingPlugin{config: cfg, logger: logger}
}

// Register installs the plugin on db. It is a no-op when disabled.
func (p *DBTracingPlugin) Register(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBSystem)}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	// each processor gets a start marker before and an annotator after the gorm step
	cb := db.Callback()
	for _, r := range []struct {
		before func(string) error
		after  func(string) error
	}{
		{
			before: func(n string) error { return cb.Create().Before("gorm:create").Register(n, markStart) },
			after:  func(n string) error { return cb.Create().After("gorm:create").Register(n, p.annotate) },
		},
		{
			before: func(n string) error { return cb.Query().Before("gorm:query").Register(n, markStart) },
			after:  func(n string) error { return cb.Query().After("gorm:query").Register(n, p.annotate) },
		},
		{
			before: func(n string) error { return cb.Update().Before("gorm:update").Register(n, markStart) },
			after:  func(n string) error { return cb.Update().After("gorm:update").Register(n, p.annotate) },
		},
		{
			before: func(n string) error { return cb.Delete().Before("gorm:delete").Register(n, markStart) },
			after:  func(n string) error { return cb.Delete().After("gorm:delete").Register(n, p.annotate) },
		},
		{
			before: func(n string) error { return cb.Row().Before("gorm:row").Register(n, markStart) },
			after:  func(n string) error { return cb.Row().After("gorm:row").Register(n, p.annotate) },
		},
		{
			before: func(n string) error { return cb.Raw().Before("gorm:raw").Register(n, markStart) },
			after:  func(n string) error { return cb.Raw().After("gorm:raw").Register(n, p.annotate) },
		},
	} {
		if err := r.before("otel_timing:before"); err != nil {
			return err
		}
		if err := r.after("otel_slow_query:after"); err != nil {
			return err
		}
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
	)
	return nil
}

func markStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartTimeKey, time.Now())
	}
}

// annotate adds row counts, table names, errors and slow-query markers to the current span
func (p *DBTracingPlugin) annotate(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		RecordError(span, db.Error)
	}
	if start, ok := ctx.Value(queryStartTimeKey).(time.Time); ok {
		if elapsed := time.Since(start); elapsed > p.config.SlowQueryThresh {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
		}
	}
}
