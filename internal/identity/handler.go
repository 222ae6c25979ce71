package identity

import (
	"net/http"

	"github.com/bissquit/incident-portal/internal/domain"
	"github.com/bissquit/incident-portal/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for the identity module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new identity handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers identity routes. They are public.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth", h.RequestLink)
	r.Post("/auth/verify", h.Verify)
}

// RegisterProtectedRoutes registers routes that need a scope in context.
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/me", h.Me)
}

// LinkRequest represents POST /auth request body.
type LinkRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// LinkResponse represents POST /auth response body.
type LinkResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Link    string `json:"link,omitempty"`
}

// RequestLink handles POST /auth.
func (h *Handler) RequestLink(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	result, err := h.service.RequestLink(r.Context(), req.Email)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
			{Error: ErrLinkDelivery, Status: http.StatusBadGateway, Message: "login link delivery failed"},
		})
		return
	}

	httputil.JSON(w, http.StatusOK, LinkResponse{
		Success: true,
		Message: result.Message,
		Link:    result.Link,
	})
}

// VerifyRequest represents POST /auth/verify request body.
type VerifyRequest struct {
	Token string `json:"token" validate:"required"`
}

// VerifyResponse represents POST /auth/verify response body.
type VerifyResponse struct {
	Success bool `json:"success"`
	*Session
}

// Verify handles POST /auth/verify.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	session, err := h.service.Verify(r.Context(), req.Token)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
			{Error: ErrExpiredToken, Status: http.StatusUnauthorized, Message: "login link expired"},
			{Error: ErrInvalidToken, Status: http.StatusUnauthorized, Message: "invalid login link"},
			{Error: ErrWrongPurpose, Status: http.StatusUnauthorized, Message: "invalid login link"},
		})
		return
	}

	httputil.JSON(w, http.StatusOK, VerifyResponse{Success: true, Session: session})
}

// MeResponse represents GET /me response body.
type MeResponse struct {
	Email     string             `json:"email,omitempty"`
	Anonymous bool               `json:"anonymous"`
	Scope     domain.AccessScope `json:"scope"`
}

// Me handles GET /me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	scope, ok := httputil.GetScope(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	email := httputil.GetEmail(r.Context())
	httputil.JSON(w, http.StatusOK, MeResponse{
		Email:     email,
		Anonymous: email == "",
		Scope:     scope,
	})
}
