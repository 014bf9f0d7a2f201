// Package models - API response types and error handling.
// This file defines the outgoing API response structures shared by the
// handlers and the rate limiting middleware.
//
// Response Design Principles:
// - Consistent JSON structure across all endpoints
// - Optional fields use omitempty to reduce response size
// - Machine-readable codes next to human-readable messages
// - RFC3339 timestamps for international compatibility
package models

import (
	"time"
)

// ErrorResponse is the body of every non-2xx JSON response.
//
// Error carries the error type. It is "error" for ordinary failures and the
// dedicated ErrorTypeRateLimitExceeded value for throttled requests, so that
// clients can branch on it without parsing Code.
type ErrorResponse struct {
	Error     string            `json:"error"`                // Error type
	Message   string            `json:"message"`              // Human-readable error description
	Code      string            `json:"code,omitempty"`       // Machine-readable error code
	Details   map[string]string `json:"details,omitempty"`    // Field-specific error details
	Timestamp time.Time         `json:"timestamp"`            // Error occurrence time
	RequestID string            `json:"request_id,omitempty"` // Unique request identifier
}

type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Uptime     string                     `json:"uptime,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
	Metrics    map[string]interface{}     `json:"metrics,omitempty"`
}

type ComponentHealth struct {
	Status    string                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// ListListingsResponse is returned by the listing index and search endpoints.
type ListListingsResponse struct {
	Listings   []*Listing `json:"listings"`
	TotalCount int        `json:"total_count"`
	Limit      int        `json:"limit"`
	Offset     int        `json:"offset"`
	HasMore    bool       `json:"has_more"`
}

type ValidationErrorResponse struct {
	Error  string            `json:"error"`
	Errors map[string]string `json:"errors"`
}

// Health Status Constants
const (
	StatusHealthy   = "healthy"   // All systems operational
	StatusUnhealthy = "unhealthy" // Major system issues
	StatusDegraded  = "degraded"  // Partial functionality
	StatusUnknown   = "unknown"   // Status indeterminate
)

// ErrorTypeRateLimitExceeded is the ErrorResponse.Error value of a 429 response.
const ErrorTypeRateLimitExceeded = "RateLimitExceeded"

// Standard HTTP Error Codes
//
// Error Code Strategy:
// - Upper-case with underscores for consistency
// - Maps to standard HTTP status codes
// - Machine-readable for client error handling
const (
	ErrorCodeNotFound           = "NOT_FOUND"           // 404: Resource doesn't exist
	ErrorCodeListingNotFound    = "LISTING_NOT_FOUND"   // 404: Listing doesn't exist
	ErrorCodeBadRequest         = "BAD_REQUEST"         // 400: Invalid request format
	ErrorCodeInvalidRequest     = "INVALID_REQUEST"     // 400: Invalid request data
	ErrorCodeValidation         = "VALIDATION_ERROR"    // 422: Input validation failed
	ErrorCodeInternalError      = "INTERNAL_ERROR"      // 500: Server-side error
	ErrorCodeUnauthorized       = "UNAUTHORIZED"        // 401: Authentication required
	ErrorCodeForbidden          = "FORBIDDEN"           // 403: Permission denied
	ErrorCodeConflict           = "CONFLICT"            // 409: Resource conflict
	ErrorCodeRateLimited        = "RATE_LIMIT_EXCEEDED" // 429: Quota exhausted
	ErrorCodeServiceUnavailable = "SERVICE_UNAVAILABLE" // 503: Service temporarily down
)

func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

// NewRateLimitErrorResponse builds the body written with a 429 status.
func NewRateLimitErrorResponse(message string) *ErrorResponse {
	return &ErrorResponse{
		Error:     ErrorTypeRateLimitExceeded,
		Message:   message,
		Code:      ErrorCodeRateLimited,
		Timestamp: time.Now(),
	}
}

func NewValidationErrorResponse(errors map[string]string) *ValidationErrorResponse {
	return &ValidationErrorResponse{
		Error:  "validation_error",
		Errors: errors,
	}
}

func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
		Metrics:    make(map[string]interface{}),
	}
}

func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
		Details:   make(map[string]interface{}),
	}
}

func (h *HealthCheckResponse) AddMetric(name string, value interface{}) {
	h.Metrics[name] = value
}
