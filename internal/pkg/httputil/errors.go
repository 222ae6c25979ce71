package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/bissquit/incident-portal/internal/pkg/ctxlog"
)

// PublicError is implemented by errors that carry text safe to show to stakeholders.
type PublicError interface {
	PublicMessage() string
}

// ErrorMapping defines how a domain error maps to an HTTP response.
type ErrorMapping struct {
	Error   error
	Status  int
	Message string // if empty, uses err.Error()
	Detail  bool   // include err.Error() as "message"
}

// HandleError maps a domain error to an HTTP response using provided mappings.
// A PublicError in the chain of a matched error supplies the "message" field.
// If no mapping matches, logs the error and returns 500 Internal Server Error.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	for _, m := range mappings {
		if !errors.Is(err, m.Error) {
			continue
		}

		msg := m.Message
		if msg == "" {
			msg = err.Error()
		}

		var pe PublicError
		switch {
		case errors.As(err, &pe) && pe.PublicMessage() != "":
			ErrorWithMessage(w, m.Status, msg, pe.PublicMessage())
		case m.Detail:
			ErrorWithMessage(w, m.Status, msg, err.Error())
		default:
			Error(w, m.Status, msg)
		}
		return
	}

	ctxlog.FromContext(ctx).Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal error")
}
