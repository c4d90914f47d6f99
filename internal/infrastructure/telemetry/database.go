package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBInstrumentation selects the database signals to register
type DBInstrumentation struct {
	Tracing       bool
	LogFullSQL    bool
	SlowThreshold time.Duration
	DBSystem      string
	Meter         metric.Meter // nil disables query and pool metrics
	Logger        *zap.Logger
}

type startKey struct{}

// InstrumentDatabase registers otelgorm tracing, slow-query marking and
// query/pool metrics on db.
func InstrumentDatabase(db *gorm.DB, opts DBInstrumentation) error {
	if opts.SlowThreshold <= 0 {
		opts.SlowThreshold = 200 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	if opts.Tracing {
		otelOpts := []otelgorm.Option{otelgorm.WithDBName(opts.DBSystem)}
		if !opts.LogFullSQL {
			otelOpts = append(otelOpts, otelgorm.WithoutQueryVariables())
		}
		if err := db.Use(otelgorm.NewPlugin(otelOpts...)); err != nil {
			return err
		}
	}

	obs := &queryObserver{threshold: opts.SlowThreshold, logger: opts.Logger}
	if opts.Meter != nil {
		if err := obs.initMetrics(db, opts.Meter); err != nil {
			return err
		}
	}
	return obs.register(db)
}

type queryObserver struct {
	threshold time.Duration
	logger    *zap.Logger

	queries  *Counter
	slow     *Counter
	duration *Histogram
}

func (o *queryObserver) initMetrics(db *gorm.DB, meter metric.Meter) error {
	var err error
	if o.queries, err = NewCounter(meter, "db_query_total", "Database queries by operation", "{query}"); err != nil {
		return err
	}
	if o.slow, err = NewCounter(meter, "db_slow_query_total", "Database queries slower than the threshold", "{query}"); err != nil {
		return err
	}
	if o.duration, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database query latency",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	pool, err := meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Connections in the pool by state"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return err
	}
	_, err = meter.RegisterCallback(func(_ context.Context, ob metric.Observer) error {
		s := sqlDB.Stats()
		ob.ObserveInt64(pool, int64(s.InUse), metric.WithAttributes(AttrDBState.String("in_use")))
		ob.ObserveInt64(pool, int64(s.Idle), metric.WithAttributes(AttrDBState.String("idle")))
		ob.ObserveInt64(pool, int64(s.MaxOpenConnections), metric.WithAttributes(AttrDBState.String("max")))
		return nil
	}, pool)
	return err
}

func (o *queryObserver) register(db *gorm.DB) error {
	cb := db.Callback()
	steps := []struct {
		op     string
		before func(string, func(*gorm.DB)) error
		after  func(string, func(*gorm.DB)) error
	}{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
	for _, s := range steps {
		op := s.op
		if err := s.before("ledger_db:before_"+op, o.before); err != nil {
			return err
		}
		if err := s.after("ledger_db:after_"+op, func(db *gorm.DB) { o.after(db, op) }); err != nil {
			return err
		}
	}
	return nil
}

func (o *queryObserver) before(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, startKey{}, time.Now())
	}
}

func (o *queryObserver) after(db *gorm.DB, op string) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	start, ok := ctx.Value(startKey{}).(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(start)
	attrs := []attribute.KeyValue{AttrDBOperation.String(op), AttrDBTable.String(db.Statement.Table)}

	if o.queries != nil {
		o.queries.Inc(ctx, attrs...)
		o.duration.RecordDuration(ctx, elapsed, attrs...)
	}

	span := trace.SpanFromContext(ctx)
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) && span.IsRecording() {
		span.RecordError(db.Error)
	}
	if elapsed < o.threshold {
		return
	}
	if o.slow != nil {
		o.slow.Inc(ctx, attrs...)
	}
	if span.IsRecording() {
		span.SetAttributes(attribute.Bool("db.slow_query", true))
	}
	o.logger.Warn("Slow query",
		zap.String("operation", op),
		zap.String("table", db.Statement.Table),
		zap.Duration("elapsed", elapsed),
	)
}
