package security

import "context"

type contextKey string

const (
	PrincipalKey contextKey = "principal"
	RoleKey      contextKey = "role"
)

// ContextWithPrincipal adds the authenticated caller name to the context
func ContextWithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}

// ContextWithRole adds the caller role to the context
func ContextWithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, RoleKey, role)
}

func PrincipalFromContext(ctx context.Context) (string, bool) {
	p, ok := ctx.Value(PrincipalKey).(string)
	return p, ok
}

func RoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(RoleKey).(string)
	return role, ok
}
