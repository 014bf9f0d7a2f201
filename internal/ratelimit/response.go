package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"marketplace/internal/models"
)

// writeTooManyRequests emits the 429 response for a denied decision.
func writeTooManyRequests(w http.ResponseWriter, d Decision, message string) {
	if message == "" {
		message = models.DefaultRateLimitMessage
	}

	h := w.Header()
	h.Set("Retry-After", strconv.Itoa(d.RetryAfter))
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", "0")
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	h.Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	if err := json.NewEncoder(w).Encode(models.NewRateLimitErrorResponse(message)); err != nil {
		slog.Error("Failed to encode rate limit response", "error", err)
	}
}
