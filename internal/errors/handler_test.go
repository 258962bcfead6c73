package errors

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/keyseek/internal/keyframe"
	"github.com/zsiec/keyseek/internal/logger"
)

func newTestHandler() (*ErrorHandler, *bytes.Buffer) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})
	return NewErrorHandler(l), &buf
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var response ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	return response
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedType   ErrorType
		expectedLevel  string
		retryAfter     string
	}{
		{"validation", NewValidationError("invalid input"), http.StatusBadRequest, ErrorTypeValidation, "warning", ""},
		{"plain error", errors.New("something went wrong"), http.StatusInternalServerError, ErrorTypeInternal, "error", ""},
		{"not found", NewNotFoundError("session"), http.StatusNotFound, ErrorTypeNotFound, "warning", ""},
		{"wrapped seek error", fmt.Errorf("session abc: %w", keyframe.ErrSeekBeyondEnd), http.StatusRequestedRangeNotSatisfiable, ErrorTypeOutOfRange, "warning", ""},
		{"rate limited", NewRateLimitError("slow down"), http.StatusTooManyRequests, ErrorTypeRateLimit, "info", "1"},
		{"store down", NewServiceDownError("index store"), http.StatusServiceUnavailable, ErrorTypeServiceDown, "error", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, logs := newTestHandler()
			req := httptest.NewRequest("GET", "/api/v1/sessions/abc/seek", nil)
			req.Header.Set("X-Request-ID", "test-123")
			rr := httptest.NewRecorder()

			handler.HandleError(rr, req, tt.err)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Equal(t, tt.retryAfter, rr.Header().Get("Retry-After"))

			response := decodeError(t, rr)
			assert.Equal(t, tt.expectedType, response.Error.Type)
			assert.NotEmpty(t, response.Error.Message)
			assert.Equal(t, "test-123", response.TraceID)

			var entry map[string]interface{}
			require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
			assert.Equal(t, tt.expectedLevel, entry["level"])
			assert.Equal(t, "test-123", entry["request_id"])
			assert.Equal(t, string(tt.expectedType), entry["error_type"])
		})
	}
}

func TestHandleError_KeepsRetryAfter(t *testing.T) {
	handler, _ := newTestHandler()
	rr := httptest.NewRecorder()
	rr.Header().Set("Retry-After", "30")

	handler.HandleError(rr, httptest.NewRequest("POST", "/api/v1/sessions", nil), NewRateLimitError("busy"))
	assert.Equal(t, "30", rr.Header().Get("Retry-After"))
}

func TestHandleError_RequestContext(t *testing.T) {
	handler, _ := newTestHandler()

	var scoped bytes.Buffer
	l := logrus.New()
	l.SetOutput(&scoped)
	l.SetFormatter(&logrus.JSONFormatter{})

	var rr *httptest.ResponseRecorder
	mw := logger.RequestLoggerMiddleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rr = httptest.NewRecorder()
		handler.HandleError(rr, r, NewNotFoundError("session"))
	}))
	mw.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/sessions/x", nil))

	response := decodeError(t, rr)
	assert.NotEmpty(t, response.TraceID)
	assert.Contains(t, scoped.String(), response.TraceID)
}

func TestHandleNotFound(t *testing.T) {
	handler, _ := newTestHandler()
	rr := httptest.NewRecorder()

	handler.HandleNotFound(rr, httptest.NewRequest("GET", "/nonexistent", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	response := decodeError(t, rr)
	assert.Equal(t, ErrorTypeNotFound, response.Error.Type)
	assert.Contains(t, response.Error.Message, "endpoint")
}

func TestHandleMethodNotAllowed(t *testing.T) {
	handler, _ := newTestHandler()
	rr := httptest.NewRecorder()

	handler.HandleMethodNotAllowed(rr, httptest.NewRequest("PUT", "/api/v1/sessions", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	response := decodeError(t, rr)
	assert.Equal(t, ErrorTypeValidation, response.Error.Type)
	assert.Contains(t, response.Error.Message, "Method not allowed")
}

func TestMiddleware_RecoversPanic(t *testing.T) {
	handler, logs := newTestHandler()
	protected := handler.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("index corrupted")
	}))

	rr := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		protected.ServeHTTP(rr, httptest.NewRequest("GET", "/panic", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	response := decodeError(t, rr)
	assert.Equal(t, ErrorTypeInternal, response.Error.Type)
	assert.Contains(t, response.Error.Message, "unexpected error")
	assert.Contains(t, logs.String(), "index corrupted")
	assert.Contains(t, logs.String(), "stack")
}

func TestDetails(t *testing.T) {
	details, status := Details(fmt.Errorf("seek: %w", keyframe.ErrInvalidSeekPosition))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, ErrorTypeValidation, details.Type)
}
