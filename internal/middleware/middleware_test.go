package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBodyLimitMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("rejects oversized bodies", func(t *testing.T) {
		handler := NewBodyLimitMiddleware(8).Handler(next)

		req := httptest.NewRequest(http.MethodPost, "/generate-code", strings.NewReader(`{"phoneNumber":"254723278526"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Contains(t, rec.Body.String(), "Request body too large")
		assert.Contains(t, rec.Body.String(), `"code":"PAYLOAD_TOO_LARGE"`)
	})

	t.Run("passes small bodies", func(t *testing.T) {
		handler := NewBodyLimitMiddleware(0).Handler(next)

		req := httptest.NewRequest(http.MethodPost, "/generate-code", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	t.Run("sets headers and allows data images", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewSecurityHeadersMiddleware(false).Handler(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
		assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "img-src 'self' data:;")
		assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
	})

	t.Run("policy only opens what the pairing page uses", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewSecurityHeadersMiddleware(false).Handler(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		csp := rec.Header().Get("Content-Security-Policy")
		assert.Contains(t, csp, "connect-src 'self'")
		assert.NotContains(t, csp, "https:")
		assert.NotContains(t, csp, "form-action")
		assert.NotContains(t, csp, "font-src")
	})

	t.Run("adds hsts in production", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewSecurityHeadersMiddleware(true).Handler(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
	})
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	previous := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = previous })

	handler := chimiddleware.RequestID(RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/generate-code", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "POST", line["method"])
	assert.Equal(t, "/generate-code", line["path"])
	assert.Equal(t, float64(http.StatusTeapot), line["status"])
	assert.Equal(t, float64(len("short and stout")), line["bytes"])
	assert.NotEmpty(t, line["requestId"])
}
