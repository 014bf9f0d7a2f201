package catalog

import (
	"fmt"
	"net/http"

	"marketplace/internal/models"
)

// ServiceError represents errors from the catalog service with HTTP context
type ServiceError struct {
	Code       string
	Message    string
	StatusCode int
	Details    map[string]string
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Error constructors for common service errors

func NewListingNotFoundError(id string, err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeListingNotFound,
		Message:    fmt.Sprintf("listing '%s' not found", id),
		StatusCode: http.StatusNotFound,
		Err:        err,
	}
}

func NewInvalidRequestError(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeInvalidRequest,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

// NewValidationError carries per-field messages keyed by JSON name.
func NewValidationError(details map[string]string) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeValidation,
		Message:    "request validation failed",
		StatusCode: http.StatusUnprocessableEntity,
		Details:    details,
	}
}

func NewUnauthorizedError(message string) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeUnauthorized,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeForbidden,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewInternalError(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeInternalError,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}
