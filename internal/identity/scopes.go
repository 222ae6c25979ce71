package identity

import (
	"slices"
	"strings"

	"github.com/bissquit/incident-portal/internal/domain"
)

// Grant assigns a scope to one e-mail address.
type Grant struct {
	Email string
	Scope domain.AccessScope
}

// ScopeResolver maps stakeholder e-mails to access scopes.
type ScopeResolver struct {
	grants       map[string]domain.AccessScope
	defaultScope domain.AccessScope
}

// NewScopeResolver creates a resolver. E-mails match case-insensitively.
func NewScopeResolver(defaultScope domain.AccessScope, grants []Grant) *ScopeResolver {
	m := make(map[string]domain.AccessScope, len(grants))
	for _, g := range grants {
		m[normalizeEmail(g.Email)] = cloneScope(g.Scope)
	}
	return &ScopeResolver{grants: m, defaultScope: cloneScope(defaultScope)}
}

// Resolve returns the scope granted to email, or the default scope.
func (r *ScopeResolver) Resolve(email string) domain.AccessScope {
	if s, ok := r.grants[normalizeEmail(email)]; ok {
		return cloneScope(s)
	}
	return cloneScope(r.defaultScope)
}

// Default returns the scope used for anonymous visitors.
func (r *ScopeResolver) Default() domain.AccessScope {
	return cloneScope(r.defaultScope)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneScope(s domain.AccessScope) domain.AccessScope {
	markets := slices.Clone(s.Markets)
	if markets == nil {
		markets = []string{}
	}
	return domain.AccessScope{Brands: slices.Clone(s.Brands), Markets: markets}
}
