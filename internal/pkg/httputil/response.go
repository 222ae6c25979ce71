// Package httputil provides HTTP response helper functions.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// ErrorBody is the error object returned by every non-2xx response.
type ErrorBody struct {
	Error   string        `json:"error"`
	Message string        `json:"message,omitempty"`
	Details []FieldDetail `json:"details,omitempty"`
}

// FieldDetail describes one failed validation rule.
type FieldDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// JSON writes a raw JSON response without envelope.
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// Text writes a plain text response.
func Text(w http.ResponseWriter, statusCode int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)
	if _, err := w.Write([]byte(text)); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// Error writes a JSON response of the form {"error": ...}.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorBody{Error: message})
}

// ErrorWithMessage writes {"error": ..., "message": ...}.
func ErrorWithMessage(w http.ResponseWriter, status int, short, message string) {
	JSON(w, status, ErrorBody{Error: short, Message: message})
}

// ValidationError writes a validation error response.
// If err is validator.ValidationErrors, returns structured field details.
// Otherwise, err.Error() becomes the message.
func ValidationError(w http.ResponseWriter, err error) {
	body := ErrorBody{Error: "validation error"}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		body.Details = make([]FieldDetail, 0, len(validationErrors))
		for _, e := range validationErrors {
			body.Details = append(body.Details, FieldDetail{
				Field:   e.Field(),
				Message: e.Tag(),
			})
		}
	} else {
		body.Message = err.Error()
	}

	JSON(w, http.StatusBadRequest, body)
}

// DecodeJSON decodes the request body into dst, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
