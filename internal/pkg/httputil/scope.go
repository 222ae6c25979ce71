package httputil

import (
	"context"

	"github.com/bissquit/incident-portal/internal/domain"
)

type contextKey string

// Context keys for the authenticated stakeholder.
const (
	ScopeKey contextKey = "scope"
	EmailKey contextKey = "email"
)

// WithScope stores the caller's access scope and e-mail in ctx.
// email is empty for anonymous callers.
func WithScope(ctx context.Context, scope domain.AccessScope, email string) context.Context {
	ctx = context.WithValue(ctx, ScopeKey, scope)
	return context.WithValue(ctx, EmailKey, email)
}

// GetScope extracts the access scope from context.
func GetScope(ctx context.Context) (domain.AccessScope, bool) {
	scope, ok := ctx.Value(ScopeKey).(domain.AccessScope)
	return scope, ok
}

// GetEmail extracts the caller's e-mail from context.
func GetEmail(ctx context.Context) string {
	if email, ok := ctx.Value(EmailKey).(string); ok {
		return email
	}
	return ""
}
