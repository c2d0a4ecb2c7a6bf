package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes used across the tracking and dispatch services.
const (
	ErrCodePermissionDenied    = "PERMISSION_DENIED"
	ErrCodePositionUnavailable = "POSITION_UNAVAILABLE"
	ErrCodePositionTimeout     = "POSITION_TIMEOUT"
	ErrCodeInvalidLocation     = "INVALID_LOCATION"
	ErrCodeInvalidTransition   = "INVALID_TRANSITION"
	ErrCodeStoreWriteFailed    = "STORE_WRITE_FAILED"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeValidation          = "VALIDATION_FAILED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// ServiceError represents a service-level error with context
type ServiceError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode,omitempty"`
	Details    string `json:"details,omitempty"`
	Cause      error  `json:"-"` // Original error, not exposed in JSON
}

func (e ServiceError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e ServiceError) Unwrap() error {
	return e.Cause
}

// NewServiceError creates a new service error
func NewServiceError(code, message string) error {
	return ServiceError{
		Code:       code,
		Message:    message,
		StatusCode: statusForCode(code),
	}
}

// NewServiceErrorWithCause creates a service error that wraps another error
func NewServiceErrorWithCause(code, message string, cause error) error {
	return ServiceError{
		Code:       code,
		Message:    message,
		Cause:      cause,
		StatusCode: statusForCode(code),
	}
}

// GetServiceError extracts a ServiceError from an error
func GetServiceError(err error) (ServiceError, bool) {
	var serviceErr ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr, true
	}
	return ServiceError{}, false
}

// IsCode reports whether err carries the given service error code.
func IsCode(err error, code string) bool {
	serviceErr, ok := GetServiceError(err)
	return ok && serviceErr.Code == code
}

func statusForCode(code string) int {
	switch code {
	case ErrCodePermissionDenied, ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidLocation, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeInvalidTransition:
		return http.StatusConflict
	case ErrCodePositionTimeout:
		return http.StatusGatewayTimeout
	case ErrCodePositionUnavailable, ErrCodeStoreWriteFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Common service error constructors

func NewNotFoundError(resource string) error {
	return ServiceError{
		Code:       ErrCodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string) error {
	return ServiceError{
		Code:       ErrCodeUnauthorized,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string) error {
	return ServiceError{
		Code:       ErrCodeForbidden,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewInvalidTransitionError(from, to string) error {
	return ServiceError{
		Code:       ErrCodeInvalidTransition,
		Message:    fmt.Sprintf("cannot move incident from %s to %s", from, to),
		StatusCode: http.StatusConflict,
	}
}

func NewInvalidLocationError(details string) error {
	return ServiceError{
		Code:       ErrCodeInvalidLocation,
		Message:    "invalid coordinates",
		Details:    details,
		StatusCode: http.StatusBadRequest,
	}
}
