package incidents

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/bissquit/incident-portal/internal/domain"
	"github.com/bissquit/incident-portal/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for incidents and the dashboard.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new incidents handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers incident routes. Callers must install scope middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/incidents", h.ListIncidents)
	r.Get("/dashboard", h.GetDashboard)
}

// ListIncidentsRequest holds the parsed query of GET /incidents.
type ListIncidentsRequest struct {
	Page     int    `validate:"gte=1"`
	PerPage  int    `validate:"gte=1,lte=100"`
	Status   string `validate:"omitempty,oneof=Active Investigating Monitoring Resolved"`
	Severity string `validate:"omitempty,oneof=P1 P2 P3"`
	Brand    string
	Market   string
	Since    time.Time
	Until    time.Time
}

var errInvalidQuery = errors.New("invalid query parameter")

// ListIncidents handles GET /incidents.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	scope, ok := httputil.GetScope(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	req, err := parseListRequest(r)
	if err != nil {
		httputil.ValidationError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	result, err := h.service.List(r.Context(), scope, ListQuery{
		Params: ListParams{
			Status:   domain.Status(req.Status),
			Severity: domain.Severity(req.Severity),
			Brand:    req.Brand,
			Market:   req.Market,
			Since:    req.Since,
			Until:    req.Until,
		},
		Page:    req.Page,
		PerPage: req.PerPage,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
			{Error: ErrSourceUnavailable, Status: http.StatusBadGateway, Message: "upstream unavailable"},
		})
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// GetDashboard handles GET /dashboard?severity=&brand=&status=.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	scope, ok := httputil.GetScope(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	q := r.URL.Query()
	criteria, err := domain.ParseFilterCriteria(q.Get("severity"), q.Get("brand"), q.Get("status"))
	if err != nil {
		httputil.ValidationError(w, err)
		return
	}

	dashboard, err := h.service.Dashboard(r.Context(), scope, criteria)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}

	httputil.JSON(w, http.StatusOK, dashboard)
}

func parseListRequest(r *http.Request) (ListIncidentsRequest, error) {
	q := r.URL.Query()
	req := ListIncidentsRequest{
		Page:     DefaultPage,
		PerPage:  DefaultPerPage,
		Status:   q.Get("status"),
		Severity: q.Get("severity"),
		Brand:    q.Get("brand"),
		Market:   q.Get("market"),
	}

	var err error
	if v := q.Get("page"); v != "" {
		if req.Page, err = strconv.Atoi(v); err != nil {
			return req, fmt.Errorf("%w: page must be an integer", errInvalidQuery)
		}
	}
	if v := q.Get("per_page"); v != "" {
		if req.PerPage, err = strconv.Atoi(v); err != nil {
			return req, fmt.Errorf("%w: per_page must be an integer", errInvalidQuery)
		}
	}
	if v := q.Get("since"); v != "" {
		if req.Since, err = time.Parse(time.RFC3339, v); err != nil {
			return req, fmt.Errorf("%w: since must be an RFC 3339 timestamp", errInvalidQuery)
		}
	}
	if v := q.Get("until"); v != "" {
		if req.Until, err = time.Parse(time.RFC3339, v); err != nil {
			return req, fmt.Errorf("%w: until must be an RFC 3339 timestamp", errInvalidQuery)
		}
	}
	if !req.Since.IsZero() && !req.Until.IsZero() && req.Until.Before(req.Since) {
		return req, fmt.Errorf("%w: until must not be before since", errInvalidQuery)
	}

	return req, nil
}
