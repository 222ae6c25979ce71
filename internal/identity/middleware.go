package identity

import (
	"net/http"

	"github.com/bissquit/incident-portal/internal/pkg/ctxlog"
	"github.com/bissquit/incident-portal/internal/pkg/httputil"
)

// ScopeMiddleware puts the caller's access scope into the request context.
// A bearer portal token wins; without one the default scope applies when
// anonymous access is allowed.
func ScopeMiddleware(service *Service, allowAnonymous bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := httputil.BearerToken(r)
			if !ok {
				if !allowAnonymous {
					httputil.Error(w, http.StatusUnauthorized, "unauthorized")
					return
				}
				ctx := httputil.WithScope(r.Context(), service.DefaultScope(), "")
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			claims, err := service.Authenticate(token)
			if err != nil {
				ctxlog.FromContext(r.Context()).Debug("bearer token rejected", "error", err)
				httputil.Error(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := httputil.WithScope(r.Context(), claims.Scope(), claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
