package catalog

import (
	"net/http"

	"github.com/bissquit/incident-portal/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
)

// Handler handles HTTP requests for the catalog module.
type Handler struct {
	catalog *Catalog
}

// NewHandler creates a new catalog handler.
func NewHandler(catalog *Catalog) *Handler {
	return &Handler{catalog: catalog}
}

// RegisterRoutes registers catalog routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/catalog", h.GetCatalog)
}

// GetCatalog handles GET /catalog. When a scope is present, status pages are
// limited to the caller's brands.
func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	resp := *h.catalog
	if scope, ok := httputil.GetScope(r.Context()); ok {
		resp.StatusPages = h.catalog.StatusPagesFor(scope.Brands)
	}
	httputil.JSON(w, http.StatusOK, resp)
}
