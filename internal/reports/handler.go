package reports

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bissquit/incident-portal/internal/domain"
	"github.com/bissquit/incident-portal/internal/pkg/ctxlog"
	"github.com/bissquit/incident-portal/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for incident reports.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new reports handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers report routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/reports", h.SubmitReport)
}

// SubmitResponse is the body of a successful POST /reports.
type SubmitResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

// SubmitReport handles POST /reports.
func (h *Handler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	var report domain.IncidentReport
	if err := httputil.DecodeJSON(r, &report); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	report = Normalize(report)
	if err := h.validator.Struct(report); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	receipt, err := h.service.Submit(r.Context(), report)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	msg := receipt.Message
	if msg == "" {
		msg = "Incident report submitted"
	}
	if report.NeedsOnCall() && h.service.Alerting() {
		msg = strings.TrimSuffix(msg, ".") + ". On-call team will be notified."
	}

	httputil.JSON(w, http.StatusCreated, SubmitResponse{
		Success: true,
		ID:      receipt.ID,
		Message: msg,
	})
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrSinkFailed) {
		ctxlog.FromContext(r.Context()).Error("report sink failed", "error", err)
	}

	httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
		{Error: ErrSinkFailed, Status: http.StatusBadGateway, Message: ErrSinkFailed.Error()},
		{Error: ErrUnknownBrand, Status: http.StatusBadRequest, Message: "validation error", Detail: true},
		{Error: ErrUnknownMarket, Status: http.StatusBadRequest, Message: "validation error", Detail: true},
		{Error: ErrUnknownSystem, Status: http.StatusBadRequest, Message: "validation error", Detail: true},
	})
}
