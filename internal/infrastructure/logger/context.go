package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey contextKey = "logger"
	metaKey   contextKey = "request_meta"
)

// Actor kinds recorded with each request
const (
	ActorStaff  = "staff"
	ActorPortal = "portal"
	ActorSystem = "system"
)

// RequestMeta identifies who issued a request and from where
type RequestMeta struct {
	RequestID string
	TenantID  string
	UserID    string
	ActorKind string
	ClientIP  string
	UserAgent string
}

// WithContext attaches a logger to ctx
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger attached to ctx, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// WithMeta stores request metadata in ctx
func WithMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, metaKey, meta)
}

// Meta returns the request metadata stored in ctx
func Meta(ctx context.Context) RequestMeta {
	if m, ok := ctx.Value(metaKey).(RequestMeta); ok {
		return m
	}
	return RequestMeta{}
}

// WithActor records the authenticated principal and enriches the context logger
func WithActor(ctx context.Context, tenantID, userID, kind string) context.Context {
	m := Meta(ctx)
	m.TenantID = tenantID
	m.UserID = userID
	m.ActorKind = kind
	ctx = WithMeta(ctx, m)
	return WithContext(ctx, FromContext(ctx).With(
		zap.String("tenant_id", tenantID),
		zap.String("user_id", userID),
		zap.String("actor", kind),
	))
}

// WithTenantID scopes a background context to a tenant
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	m := Meta(ctx)
	m.TenantID = tenantID
	if m.ActorKind == "" {
		m.ActorKind = ActorSystem
	}
	return WithContext(WithMeta(ctx, m), FromContext(ctx).With(zap.String("tenant_id", tenantID)))
}

// GetRequestID returns the request ID stored in ctx
func GetRequestID(ctx context.Context) string {
	return Meta(ctx).RequestID
}

// GetTenantID returns the tenant ID stored in ctx
func GetTenantID(ctx context.Context) string {
	return Meta(ctx).TenantID
}

// GetUserID returns the user ID stored in ctx
func GetUserID(ctx context.Context) string {
	return Meta(ctx).UserID
}

// L returns the context logger with trace correlation fields
func L(ctx context.Context) *zap.Logger {
	l := FromContext(ctx)
	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		l = l.With(zap.String("trace_id", sc.TraceID().String()), zap.String("span_id", sc.SpanID().String()))
	}
	return l
}
