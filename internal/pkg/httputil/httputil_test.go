package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNotFound = errors.New("thing not found")

type publicErr struct{ msg string }

func (e publicErr) Error() string         { return "backend said: " + e.msg }
func (e publicErr) PublicMessage() string { return e.msg }

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandleError(t *testing.T) {
	mappings := []ErrorMapping{
		{Error: errNotFound, Status: http.StatusNotFound},
	}

	t.Run("mapped", func(t *testing.T) {
		rec := httptest.NewRecorder()
		HandleError(t.Context(), rec, fmt.Errorf("get: %w", errNotFound), mappings)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "get: thing not found", decodeError(t, rec).Error)
	})

	t.Run("mapped with detail", func(t *testing.T) {
		rec := httptest.NewRecorder()
		HandleError(t.Context(), rec, fmt.Errorf("backend: %w", errNotFound), []ErrorMapping{
			{Error: errNotFound, Status: http.StatusBadGateway, Message: "upstream unavailable", Detail: true},
		})

		body := decodeError(t, rec)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "upstream unavailable", body.Error)
		assert.Equal(t, "backend: thing not found", body.Message)
	})

	t.Run("public message", func(t *testing.T) {
		rec := httptest.NewRecorder()
		err := fmt.Errorf("%w: %w", errNotFound, publicErr{msg: "database unavailable"})
		HandleError(t.Context(), rec, err, []ErrorMapping{
			{Error: errNotFound, Status: http.StatusBadGateway, Message: "upstream unavailable"},
		})

		body := decodeError(t, rec)
		assert.Equal(t, "upstream unavailable", body.Error)
		assert.Equal(t, "database unavailable", body.Message)
	})

	t.Run("unmapped", func(t *testing.T) {
		rec := httptest.NewRecorder()
		HandleError(t.Context(), rec, errors.New("boom"), mappings)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "internal error", decodeError(t, rec).Error)
	})
}

func TestValidationError(t *testing.T) {
	type req struct {
		Email string `validate:"required,email"`
	}

	t.Run("field details", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ValidationError(rec, validator.New().Struct(req{Email: "nope"}))

		body := decodeError(t, rec)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation error", body.Error)
		require.Len(t, body.Details, 1)
		assert.Equal(t, FieldDetail{Field: "Email", Message: "email"}, body.Details[0])
	})

	t.Run("plain error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ValidationError(rec, errors.New("invalid request body"))

		body := decodeError(t, rec)
		assert.Equal(t, "invalid request body", body.Message)
		assert.Empty(t, body.Details)
	})
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := CORSMiddleware([]string{"http://localhost:3000"})(next)

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusTeapot, rec.Code)
		assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("foreign origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "http://evil.test")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		wantToken string
		wantOK    bool
	}{
		{name: "absent"},
		{name: "bearer", header: "Bearer abc", wantToken: "abc", wantOK: true},
		{name: "lowercase", header: "bearer abc", wantToken: "abc", wantOK: true},
		{name: "basic", header: "Basic Zm9v", wantOK: true},
		{name: "no token", header: "Bearer", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			token, ok := BearerToken(req)
			assert.Equal(t, tt.wantToken, token)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestDecodeJSON_RejectsUnknownFields(t *testing.T) {
	var dst struct {
		Email string `json:"email"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.c","extra":1}`))
	assert.Error(t, DecodeJSON(req, &dst))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.c"}`))
	require.NoError(t, DecodeJSON(req, &dst))
	assert.Equal(t, "a@b.c", dst.Email)
}
