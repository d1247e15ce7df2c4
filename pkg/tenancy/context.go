package tenancy

import "context"

// ctxKey is an unexported type used as the context key for TenantContext.
type ctxKey struct{}

// TenantContext carries the resolved company through request context.
type TenantContext struct {
	Company string
}

// WithTenant returns a new context with the given TenantContext attached.
func WithTenant(ctx context.Context, tc TenantContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// TenantFromContext retrieves the TenantContext from the context.
// Returns the zero value and false if no tenant is set.
func TenantFromContext(ctx context.Context) (TenantContext, bool) {
	tc, ok := ctx.Value(ctxKey{}).(TenantContext)
	return tc, ok
}

// CompanyFromContext returns the company from the context, or "" if no
// tenant context is set.
func CompanyFromContext(ctx context.Context) string {
	tc, ok := TenantFromContext(ctx)
	if !ok {
		return ""
	}
	return tc.Company
}
