package digest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/bissquit/incident-portal/internal/domain"
	"github.com/bissquit/incident-portal/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// previewWindow is the period covered by a digest.
const previewWindow = 7 * 24 * time.Hour

// ErrUnknownBrand is returned when preferences name a brand outside the catalog.
var ErrUnknownBrand = errors.New("unknown brand")

// IncidentSnapshotter supplies the incidents a digest preview is computed from.
type IncidentSnapshotter interface {
	Snapshot(ctx context.Context) ([]domain.Incident, bool)
}

// BrandCatalog validates brand names.
type BrandCatalog interface {
	HasBrand(name string) bool
}

// Config configures digest previews.
type Config struct {
	ReportedUptime float64
	Location       *time.Location
}

// Handler handles HTTP requests for digest preferences.
type Handler struct {
	store     *Store
	incidents IncidentSnapshotter
	catalog   BrandCatalog
	cfg       Config
	validator *validator.Validate
	now       func() time.Time
}

// NewHandler creates a new digest handler.
func NewHandler(store *Store, incidents IncidentSnapshotter, catalog BrandCatalog, cfg Config) *Handler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Handler{
		store:     store,
		incidents: incidents,
		catalog:   catalog,
		cfg:       cfg,
		validator: validator.New(),
		now:       time.Now,
	}
}

// RegisterRoutes registers digest routes. Callers must install scope middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/digest", func(r chi.Router) {
		r.Get("/preferences", h.GetPreferences)
		r.Put("/preferences", h.PutPreferences)
		r.Post("/preferences/actions", h.ApplyAction)
		r.Get("/preview", h.GetPreview)
	})
}

// PreferencesResponse is returned by every preferences endpoint.
type PreferencesResponse struct {
	Preferences  Preferences `json:"preferences"`
	NextDelivery *time.Time  `json:"nextDelivery,omitempty"`
}

// GetPreferences handles GET /digest/preferences.
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	email := httputil.GetEmail(r.Context())
	httputil.JSON(w, http.StatusOK, h.response(h.store.Get(email)))
}

// PutPreferences handles PUT /digest/preferences.
func (h *Handler) PutPreferences(w http.ResponseWriter, r *http.Request) {
	var req Preferences
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}
	if req.Brands == nil {
		req.Brands = []string{}
	}
	for _, b := range req.Brands {
		if !h.catalog.HasBrand(b) {
			h.handleError(w, r, fmt.Errorf("%w: %q", ErrUnknownBrand, b))
			return
		}
	}

	email := httputil.GetEmail(r.Context())
	h.store.Save(email, req)
	httputil.JSON(w, http.StatusOK, h.response(req))
}

// ApplyAction handles POST /digest/preferences/actions.
func (h *Handler) ApplyAction(w http.ResponseWriter, r *http.Request) {
	var req Action
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}
	if req.Type == ActionToggleBrand && req.Value != "" && !h.catalog.HasBrand(req.Value) {
		h.handleError(w, r, fmt.Errorf("%w: %q", ErrUnknownBrand, req.Value))
		return
	}

	prefs, err := h.store.Update(httputil.GetEmail(r.Context()), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, h.response(prefs))
}

// PreviewResponse is the upcoming digest as it would be sent now.
type PreviewResponse struct {
	Preferences  Preferences              `json:"preferences"`
	NextDelivery *time.Time               `json:"nextDelivery,omitempty"`
	Incidents    []domain.IncidentSummary `json:"incidents"`
	Summary      *Summary                 `json:"summary,omitempty"`
	Fallback     bool                     `json:"fallback"`
}

// GetPreview handles GET /digest/preview.
func (h *Handler) GetPreview(w http.ResponseWriter, r *http.Request) {
	scope, ok := httputil.GetScope(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	prefs := h.store.Get(httputil.GetEmail(r.Context()))
	all, fallback := h.incidents.Snapshot(r.Context())

	now := h.now().UTC()
	included := Include(all, prefs, scope)
	from := now.Add(-previewWindow)

	resp := PreviewResponse{
		Preferences: prefs,
		Incidents:   make([]domain.IncidentSummary, 0, len(included)),
		Fallback:    fallback,
	}
	for i := range included {
		if included[i].StartTime.Before(from) || included[i].StartTime.After(now) {
			continue
		}
		resp.Incidents = append(resp.Incidents, included[i].Summary())
	}
	if prefs.IncludeMetrics {
		s := Summarize(included, from, now, h.cfg.ReportedUptime)
		resp.Summary = &s
	}
	if next, err := prefs.NextDelivery(now, h.cfg.Location); err == nil && prefs.Enabled {
		resp.NextDelivery = &next
	}

	httputil.JSON(w, http.StatusOK, resp)
}

// Include returns the incidents a digest with prefs would cover for scope:
// brands chosen in prefs and visible in scope, optionally without resolved ones.
func Include(all []domain.Incident, prefs Preferences, scope domain.AccessScope) []domain.Incident {
	out := make([]domain.Incident, 0, len(all))
	for _, inc := range all {
		if !scope.AllowsBrand(inc.Brand) || !slices.Contains(prefs.Brands, inc.Brand) {
			continue
		}
		if !prefs.IncludeResolved && inc.Status == domain.StatusResolved {
			continue
		}
		out = append(out, inc)
	}
	return out
}

func (h *Handler) response(p Preferences) PreferencesResponse {
	resp := PreferencesResponse{Preferences: p}
	if !p.Enabled {
		return resp
	}
	if next, err := p.NextDelivery(h.now(), h.cfg.Location); err == nil {
		resp.NextDelivery = &next
	}
	return resp
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
		{Error: ErrUnknownAction, Status: http.StatusBadRequest},
		{Error: ErrInvalidDay, Status: http.StatusBadRequest},
		{Error: ErrInvalidTime, Status: http.StatusBadRequest},
		{Error: ErrEmptyBrand, Status: http.StatusBadRequest},
		{Error: ErrUnknownBrand, Status: http.StatusBadRequest},
	})
}
