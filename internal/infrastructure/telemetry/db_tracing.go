package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds database tracing configuration
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool // include query variables in spans
	SlowQueryThresh time.Duration
	DBName          string
	TracerProvider  trace.TracerProvider // nil uses the global provider
}

type queryStartKey struct{}

// RegisterDBTracing installs otelgorm on db and marks slow and failed statements on their spans
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(cfg.TracerProvider))
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	// otelgorm ends its span in "otel:after:<op>"; the marker has to run first.
	marker := slowQueryMarker{threshold: cfg.SlowQueryThresh}
	cb := db.Callback()
	for _, reg := range []func() error{
		func() error { return cb.Create().Before("gorm:create").Register("rental:before:create", marker.before) },
		func() error { return cb.Query().Before("gorm:query").Register("rental:before:query", marker.before) },
		func() error { return cb.Update().Before("gorm:update").Register("rental:before:update", marker.before) },
		func() error { return cb.Delete().Before("gorm:delete").Register("rental:before:delete", marker.before) },
		func() error { return cb.Raw().Before("gorm:raw").Register("rental:before:raw", marker.before) },
		func() error {
			return cb.Create().After("gorm:create").Before("otel:after:create").Register("rental:after:create", marker.after)
		},
		func() error {
			return cb.Query().After("gorm:query").Before("otel:after:query").Register("rental:after:query", marker.after)
		},
		func() error {
			return cb.Update().After("gorm:update").Before("otel:after:update").Register("rental:after:update", marker.after)
		},
		func() error {
			return cb.Delete().After("gorm:delete").Before("otel:after:delete").Register("rental:after:delete", marker.after)
		},
		func() error {
			return cb.Raw().After("gorm:raw").Before("otel:after:raw").Register("rental:after:raw", marker.after)
		},
	} {
		if err := reg(); err != nil {
			return err
		}
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
	)
	return nil
}

type slowQueryMarker struct {
	threshold time.Duration
}

func (m slowQueryMarker) before(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
	}
}

func (m slowQueryMarker) after(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
	}
	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok || m.threshold <= 0 {
		return
	}
	if elapsed := time.Since(start); elapsed > m.threshold {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
	}
}
