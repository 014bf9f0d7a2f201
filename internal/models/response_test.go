package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewErrorResponse(t *testing.T) {
	message := "Test error message"
	code := "TEST_ERROR"

	response := NewErrorResponse(message, code)

	assert.Equal(t, "error", response.Error)
	assert.Equal(t, message, response.Message)
	assert.Equal(t, code, response.Code)
	assert.WithinDuration(t, time.Now(), response.Timestamp, time.Second)
	assert.Empty(t, response.Details)
	assert.Empty(t, response.RequestID)
}

func TestNewRateLimitErrorResponse(t *testing.T) {
	response := NewRateLimitErrorResponse("slow down")

	data, err := json.Marshal(response)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "RateLimitExceeded", decoded["error"])
	assert.Equal(t, "slow down", decoded["message"])
	assert.Equal(t, ErrorCodeRateLimited, decoded["code"])
}

func TestNewValidationErrorResponse(t *testing.T) {
	errors := map[string]string{
		"title":    "title is required",
		"currency": "currency must be a 3-letter ISO 4217 code",
	}

	response := NewValidationErrorResponse(errors)

	assert.Equal(t, "validation_error", response.Error)
	assert.Equal(t, errors, response.Errors)
}

func TestNewHealthCheckResponse(t *testing.T) {
	response := NewHealthCheckResponse(StatusHealthy)

	assert.Equal(t, StatusHealthy, response.Status)
	assert.WithinDuration(t, time.Now(), response.Timestamp, time.Second)
	assert.NotNil(t, response.Components)
	assert.NotNil(t, response.Metrics)
	assert.Empty(t, response.Components)
	assert.Empty(t, response.Metrics)
}

func TestHealthCheckResponse_AddComponent(t *testing.T) {
	response := NewHealthCheckResponse(StatusHealthy)

	response.AddComponent("storage", StatusDegraded, "slow queries")

	require.Contains(t, response.Components, "storage")
	component := response.Components["storage"]
	assert.Equal(t, StatusDegraded, component.Status)
	assert.Equal(t, "slow queries", component.Message)
	assert.WithinDuration(t, time.Now(), component.Timestamp, time.Second)
	assert.NotNil(t, component.Details)
}

func TestHealthCheckResponse_AddMetric(t *testing.T) {
	response := NewHealthCheckResponse(StatusHealthy)

	response.AddMetric("active_counters", 42)

	assert.Equal(t, 42, response.Metrics["active_counters"])
}

func TestErrorCodeConstants(t *testing.T) {
	errorCodes := []string{
		ErrorCodeNotFound,
		ErrorCodeListingNotFound,
		ErrorCodeBadRequest,
		ErrorCodeInvalidRequest,
		ErrorCodeValidation,
		ErrorCodeInternalError,
		ErrorCodeUnauthorized,
		ErrorCodeForbidden,
		ErrorCodeConflict,
		ErrorCodeRateLimited,
		ErrorCodeServiceUnavailable,
	}

	for _, code := range errorCodes {
		assert.Equal(t, code, strings.ToUpper(code))
	}
}
