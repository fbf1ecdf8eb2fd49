package tenancy

import (
	"context"

	"github.com/google/uuid"
)

// Tenant is the identity attached to a request once its host has been
// mapped to an active project.
type Tenant struct {
	ID        uuid.UUID
	Subdomain string
}

type tenantKey struct{}

// WithTenant returns a copy of ctx carrying t. The tenant travels with the
// request context only; nothing is stored process-wide.
func WithTenant(ctx context.Context, t Tenant) context.Context {
	return context.WithValue(ctx, tenantKey{}, t)
}

func FromContext(ctx context.Context) (Tenant, bool) {
	t, ok := ctx.Value(tenantKey{}).(Tenant)
	return t, ok
}

// TenantID returns uuid.Nil when no tenant was resolved.
func TenantID(ctx context.Context) uuid.UUID {
	t, _ := FromContext(ctx)
	return t.ID
}

func Subdomain(ctx context.Context) string {
	t, _ := FromContext(ctx)
	return t.Subdomain
}
