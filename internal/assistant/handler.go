package assistant

import (
	"errors"
	"net/http"
	"time"

	"github.com/bissquit/incident-portal/internal/domain"
	"github.com/bissquit/incident-portal/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// ConversationKeyHeader carries the conversation key of anonymous visitors.
const ConversationKeyHeader = "X-Conversation-Key"

// errScopeOutside is returned when a requested chat scope has no brand in common with the caller's.
var errScopeOutside = errors.New("requested scope is outside your access scope")

// Handler handles HTTP requests for the chat assistant.
type Handler struct {
	assistant *Assistant
	store     *Store
	validator *validator.Validate
	now       func() time.Time
}

// NewHandler creates a new assistant handler.
func NewHandler(assistant *Assistant, store *Store) *Handler {
	return &Handler{
		assistant: assistant,
		store:     store,
		validator: validator.New(),
		now:       time.Now,
	}
}

// RegisterRoutes registers chat routes. Callers must install scope middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.Chat)
	r.Route("/conversations", func(r chi.Router) {
		r.Post("/", h.CreateConversation)
		r.Get("/{id}", h.GetConversation)
		r.Post("/{id}/messages", h.SendMessage)
		r.Delete("/{id}/pending", h.CancelPending)
	})
}

// ChatRequest represents POST /chat request body.
type ChatRequest struct {
	Message   string              `json:"message" validate:"required,max=2000"`
	UserScope *domain.AccessScope `json:"user_scope,omitempty"`
}

// MessageResponse carries one assistant turn.
type MessageResponse struct {
	Success bool        `json:"success"`
	Message domain.Turn `json:"message"`
}

// Chat handles POST /chat: a stateless single answer without typing delay.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	scope, ok := httputil.GetScope(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ChatRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	if req.UserScope != nil && len(req.UserScope.Brands) > 0 {
		narrowed := scope.Intersect(*req.UserScope)
		if len(narrowed.Brands) == 0 {
			httputil.Error(w, http.StatusForbidden, errScopeOutside.Error())
			return
		}
		scope = narrowed
	}

	resp, err := h.assistant.Reply(r.Context(), req.Message, scope)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}

	httputil.JSON(w, http.StatusOK, MessageResponse{
		Success: true,
		Message: domain.Turn{
			ID:         newTurnID(),
			Speaker:    domain.SpeakerAssistant,
			Content:    resp.Content,
			Timestamp:  h.now(),
			Attachment: resp.Attachment,
		},
	})
}

// ConversationView is the JSON form of a conversation.
type ConversationView struct {
	ID          string        `json:"id"`
	Turns       []domain.Turn `json:"turns"`
	Typing      bool          `json:"typing"`
	Suggestions []string      `json:"suggestions,omitempty"`
	// Key is returned once, when an anonymous visitor creates the conversation.
	Key string `json:"key,omitempty"`
}

func viewOf(c *Conversation) ConversationView {
	return ConversationView{
		ID:          c.ID(),
		Turns:       c.Turns(),
		Typing:      c.Typing(),
		Suggestions: c.Suggestions(),
	}
}

// CreateConversation handles POST /conversations.
func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	scope, ok := httputil.GetScope(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	email := httputil.GetEmail(r.Context())
	c, err := h.store.Create(email, scope)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	view := viewOf(c)
	if email == "" {
		view.Key = c.Key()
	}
	httputil.JSON(w, http.StatusCreated, view)
}

// GetConversation handles GET /conversations/{id}.
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	c, ok := h.conversation(w, r)
	if !ok {
		return
	}
	httputil.JSON(w, http.StatusOK, viewOf(c))
}

// SendMessageRequest represents POST /conversations/{id}/messages request body.
type SendMessageRequest struct {
	Message string `json:"message" validate:"required,max=2000"`
}

// SendMessage handles POST /conversations/{id}/messages. It responds once the
// assistant turn is appended.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	c, ok := h.conversation(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	pending, err := c.Submit(r.Context(), req.Message)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	turn, err := pending.Wait(r.Context())
	if err != nil {
		if r.Context().Err() != nil {
			// client gone; the answer is still appended
			return
		}
		h.handleError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, MessageResponse{Success: true, Message: turn})
}

// CancelPending handles DELETE /conversations/{id}/pending.
func (h *Handler) CancelPending(w http.ResponseWriter, r *http.Request) {
	c, ok := h.conversation(w, r)
	if !ok {
		return
	}

	p := c.Pending()
	if p == nil {
		httputil.Error(w, http.StatusConflict, "no pending response")
		return
	}
	if err := p.CancelAndWait(r.Context()); err != nil {
		if r.Context().Err() != nil {
			return
		}
		h.handleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// conversation loads the conversation named in the URL. Conversations of
// other stakeholders, and anonymous ones requested without their key, are
// reported as missing.
func (h *Handler) conversation(w http.ResponseWriter, r *http.Request) (*Conversation, bool) {
	if _, ok := httputil.GetScope(r.Context()); !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}

	c, err := h.store.Get(chi.URLParam(r, "id"))
	if err == nil && !c.Authorize(httputil.GetEmail(r.Context()), r.Header.Get(ConversationKeyHeader)) {
		err = ErrNotFound
	}
	if err != nil {
		h.handleError(w, r, err)
		return nil, false
	}
	return c, true
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
		{Error: ErrNotFound, Status: http.StatusNotFound},
		{Error: ErrBusy, Status: http.StatusConflict},
		{Error: ErrEmptyMessage, Status: http.StatusBadRequest},
		{Error: ErrCancelled, Status: http.StatusConflict},
		{Error: ErrAnswered, Status: http.StatusConflict},
		{Error: ErrClosed, Status: http.StatusGone},
		{Error: ErrStoreFull, Status: http.StatusServiceUnavailable},
	})
}
