package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	requestIDKey
	userIDKey
	ledgerIDKey
)

// WithContext attaches log to ctx
func WithContext(ctx context.Context, log *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, log)
}

// FromContext returns the request logger, or a no-op logger outside a request
func FromContext(ctx context.Context) *zap.Logger {
	if log, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return log
	}
	return zap.NewNop()
}

// ForContext returns the request logger when one is attached and fallback
// otherwise, with the active trace and span ids added.
func ForContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	log, ok := ctx.Value(loggerKey).(*zap.Logger)
	if !ok {
		log = fallback
	}
	if log == nil {
		return zap.NewNop()
	}
	if fields := TraceFields(ctx); len(fields) > 0 {
		return log.With(fields...)
	}
	return log
}

// TraceFields returns trace_id and span_id of the active span, if any
func TraceFields(ctx context.Context) []zap.Field {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}

func enrich(ctx context.Context, log *zap.Logger, key ctxKey, field, value string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, key, value)
	log = log.With(zap.String(field, value))
	return WithContext(ctx, log), log
}

// WithRequestID stores the request id and returns the enriched logger
func WithRequestID(ctx context.Context, log *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	return enrich(ctx, log, requestIDKey, "request_id", requestID)
}

// WithUserID stores the acting staff member and returns the enriched logger
func WithUserID(ctx context.Context, log *zap.Logger, userID string) (context.Context, *zap.Logger) {
	return enrich(ctx, log, userIDKey, "user_id", userID)
}

// WithLedgerID stores the ledger being worked on and returns the enriched logger
func WithLedgerID(ctx context.Context, log *zap.Logger, ledgerID string) (context.Context, *zap.Logger) {
	return enrich(ctx, log, ledgerIDKey, "ledger_id", ledgerID)
}

func value(ctx context.Context, key ctxKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// GetRequestID returns the request id stored by WithRequestID
func GetRequestID(ctx context.Context) string { return value(ctx, requestIDKey) }

// GetUserID returns the user id stored by WithUserID
func GetUserID(ctx context.Context) string { return value(ctx, userIDKey) }

// GetLedgerID returns the ledger id stored by WithLedgerID
func GetLedgerID(ctx context.Context) string { return value(ctx, ledgerIDKey) }
