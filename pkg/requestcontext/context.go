// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware sets them; services and the engine read
// them without importing net/http.
package requestcontext

import (
	"context"
	"time"

	id "disha/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	actorRoleKey   struct{}
	actorIDKey     struct{}
	deviceKey      struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyActorRole   = actorRoleKey{}
	ContextKeyActorID     = actorIDKey{}
	ContextKeyDevice      = deviceKey{}
	ContextKeyClientIP    = clientIPKey{}
	ContextKeyUserAgent   = userAgentKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// ActorRole retrieves the authenticated actor's role from the context.
// Returns the empty role if not set.
func ActorRole(ctx context.Context) id.Role {
	if role, ok := ctx.Value(ContextKeyActorRole).(id.Role); ok {
		return role
	}
	return ""
}

// ActorID retrieves the authenticated actor's identifier from the context.
func ActorID(ctx context.Context) string {
	if actorID, ok := ctx.Value(ContextKeyActorID).(string); ok {
		return actorID
	}
	return ""
}

// WithActor injects the authenticated actor into the context.
func WithActor(ctx context.Context, role id.Role, actorID string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyActorRole, role)
	return context.WithValue(ctx, ContextKeyActorID, actorID)
}

// Device retrieves the classified device description ("android phone",
// "desktop browser") set by the device middleware. Field transitions mostly
// arrive from low-end phones; the audit trail records which.
func Device(ctx context.Context) string {
	if device, ok := ctx.Value(ContextKeyDevice).(string); ok {
		return device
	}
	return ""
}

// WithDevice injects a device classification into a context.
func WithDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, ContextKeyDevice, device)
}

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
// Useful for service unit tests that don't run the full middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	return context.WithValue(ctx, ContextKeyUserAgent, userAgent)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context, falling back to
// time.Now for non-HTTP contexts like workers and tests.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
