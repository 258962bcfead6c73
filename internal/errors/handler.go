package errors

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/zsiec/keyseek/internal/logger"
)

// ErrorResponse represents the error response structure.
type ErrorResponse struct {
	Error    ErrorDetails `json:"error"`
	TraceID  string       `json:"trace_id,omitempty"`
	Metadata interface{}  `json:"metadata,omitempty"`
}

// ErrorDetails contains the error details.
type ErrorDetails struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// retryAfterSeconds is advertised on 429 and 503 responses that don't set one.
const retryAfterSeconds = "1"

// ErrorHandler turns errors into JSON responses.
type ErrorHandler struct {
	logger *logrus.Logger
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// Details converts err into the body carried by error responses and
// websocket frames.
func Details(err error) (ErrorDetails, int) {
	appErr := FromDomain(err)
	return ErrorDetails{
		Type:    appErr.Type,
		Message: appErr.Message,
		Code:    appErr.Code,
		Details: appErr.Details,
	}, appErr.HTTPStatus
}

// HandleError maps err to its HTTP status and writes the error body.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	details, status := Details(err)
	entry := h.entry(r)
	trace := traceID(r)

	entry = entry.WithFields(logrus.Fields{
		"error_type": details.Type,
		"status":     status,
	})
	if details.Code != "" {
		entry = entry.WithField("error_code", details.Code)
	}
	entry.Log(levelFor(status), err.Error())

	if status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable {
		if w.Header().Get("Retry-After") == "" {
			w.Header().Set("Retry-After", retryAfterSeconds)
		}
	}

	h.writeJSON(w, status, ErrorResponse{Error: details, TraceID: trace})
}

// HandleNotFound handles 404 errors.
func (h *ErrorHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.HandleError(w, r, NewNotFoundError("endpoint"))
}

// HandleMethodNotAllowed handles 405 errors.
func (h *ErrorHandler) HandleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.HandleError(w, r, New(ErrorTypeValidation, "Method not allowed", http.StatusMethodNotAllowed))
}

// HandlePanic logs the recovered value with its stack and answers 500.
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	h.entry(r).WithFields(logrus.Fields{
		"panic": recovered,
		"stack": string(debug.Stack()),
	}).Error("Panic recovered in HTTP handler")

	h.HandleError(w, r, New(ErrorTypeInternal, "An unexpected error occurred", http.StatusInternalServerError))
}

// Middleware recovers panics from next.
func (h *ErrorHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				h.HandlePanic(w, r, recovered)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// entry prefers the request-scoped logger installed by the request logging
// middleware.
func (h *ErrorHandler) entry(r *http.Request) *logrus.Entry {
	if entry, ok := r.Context().Value(logger.LoggerKey).(*logrus.Entry); ok {
		return entry
	}
	return logger.WithRequest(h.logger, r)
}

func traceID(r *http.Request) string {
	if id := logger.GetRequestID(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}

func levelFor(status int) logrus.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return logrus.ErrorLevel
	case status == http.StatusTooManyRequests:
		return logrus.InfoLevel
	case status >= http.StatusBadRequest:
		return logrus.WarnLevel
	default:
		return logrus.InfoLevel
	}
}

func (h *ErrorHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.WithError(err).Error("Failed to encode error response")
	}
}
