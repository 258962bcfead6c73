package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/zsiec/keyseek/internal/keyframe"
	"github.com/zsiec/keyseek/internal/session"
	"github.com/zsiec/keyseek/internal/source"
)

// ErrorType represents the type of error.
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeRateLimit    ErrorType = "RATE_LIMIT"
	ErrorTypeServiceDown  ErrorType = "SERVICE_DOWN"
	ErrorTypeUnsupported  ErrorType = "UNSUPPORTED_MEDIA"
	ErrorTypeCorrupted    ErrorType = "CORRUPTED_MEDIA"
	ErrorTypeOutOfRange   ErrorType = "OUT_OF_RANGE"
	ErrorTypeInvalidIndex ErrorType = "INVALID_INDEX"
	ErrorTypeSeekFailed   ErrorType = "SEEK_FAILED"
)

// AppError represents an application error with additional context.
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Err        error                  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithCode adds an error code.
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// New creates a new AppError.
func New(errType ErrorType, message string, httpStatus int) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an existing error.
func Wrap(err error, errType ErrorType, message string, httpStatus int) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, message, http.StatusBadRequest)
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(resource string) *AppError {
	return New(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// WrapInternalError wraps an error as internal server error.
func WrapInternalError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeInternal, message, http.StatusInternalServerError)
}

// NewConflictError creates a conflict error.
func NewConflictError(message string) *AppError {
	return New(ErrorTypeConflict, message, http.StatusConflict)
}

// NewRateLimitError creates a rate limit error.
func NewRateLimitError(message string) *AppError {
	return New(ErrorTypeRateLimit, message, http.StatusTooManyRequests)
}

// NewServiceDownError creates a service down error.
func NewServiceDownError(service string) *AppError {
	return New(ErrorTypeServiceDown, fmt.Sprintf("%s service is currently unavailable", service), http.StatusServiceUnavailable)
}

// GetAppError extracts an AppError from an error chain.
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	ok := stderrors.As(err, &appErr)
	return appErr, ok
}

// FromDomain maps session, source and keyframe failures onto HTTP-facing errors.
// Errors that are already AppErrors pass through; anything unrecognised
// becomes an internal error.
func FromDomain(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := GetAppError(err); ok {
		return appErr
	}

	switch {
	case stderrors.Is(err, session.ErrSessionNotFound):
		return Wrap(err, ErrorTypeNotFound, "session not found", http.StatusNotFound)
	case stderrors.Is(err, session.ErrSessionLimit):
		return Wrap(err, ErrorTypeRateLimit, "too many open sessions", http.StatusTooManyRequests)
	case stderrors.Is(err, source.ErrFileNotFound):
		return Wrap(err, ErrorTypeNotFound, "media file not found", http.StatusNotFound)
	case stderrors.Is(err, source.ErrPermissionDenied):
		return Wrap(err, ErrorTypeForbidden, "media file is not readable", http.StatusForbidden)
	case stderrors.Is(err, source.ErrCorruptedFile):
		return Wrap(err, ErrorTypeCorrupted, "media file is corrupted", http.StatusUnprocessableEntity)
	case stderrors.Is(err, source.ErrUnsupportedFormat):
		return Wrap(err, ErrorTypeUnsupported, "media format is not supported", http.StatusUnsupportedMediaType)
	case stderrors.Is(err, keyframe.ErrInvalidSeekPosition):
		return Wrap(err, ErrorTypeValidation, "seek position must be a non-negative number", http.StatusBadRequest)
	case stderrors.Is(err, keyframe.ErrSeekBeyondEnd):
		return Wrap(err, ErrorTypeOutOfRange, "seek position is beyond the end of the media", http.StatusRequestedRangeNotSatisfiable)
	case stderrors.Is(err, keyframe.ErrSeekFailed):
		return Wrap(err, ErrorTypeSeekFailed, "media cursor did not land on the keyframe", http.StatusConflict)
	case stderrors.Is(err, keyframe.ErrInvalidKeyframeIndex):
		return Wrap(err, ErrorTypeInvalidIndex, err.Error(), http.StatusUnprocessableEntity)
	}
	return WrapInternalError(err, "An unexpected error occurred")
}
