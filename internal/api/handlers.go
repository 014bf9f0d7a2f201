package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"marketplace/internal/catalog"
	"marketplace/internal/models"
	"marketplace/internal/storage"
	"marketplace/internal/version"
)

// maxBodyBytes caps request bodies accepted by write handlers.
const maxBodyBytes = 1 << 20

// Handlers contains HTTP handlers for the marketplace API
type Handlers struct {
	catalog catalog.ServiceInterface
	storage storage.Storage
	version version.Info
	started time.Time
}

// HandlerOption configures optional Handlers dependencies.
type HandlerOption func(*Handlers)

// WithStorage lets the health check ping the storage backend.
func WithStorage(s storage.Storage) HandlerOption {
	return func(h *Handlers) { h.storage = s }
}

// WithVersion sets the build info reported by the health check.
func WithVersion(v version.Info) HandlerOption {
	return func(h *Handlers) { h.version = v }
}

// NewHandlers creates a new handlers instance
func NewHandlers(svc catalog.ServiceInterface, opts ...HandlerOption) *Handlers {
	h := &Handlers{
		catalog: svc,
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ListListings handles listing index requests
// GET /api/v1/listings?seller_id=&category=&status=&limit=&offset=
func (h *Handlers) ListListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := intParam(q.Get("limit"))
	if err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, models.ErrorCodeBadRequest, "limit must be an integer")
		return
	}
	offset, err := intParam(q.Get("offset"))
	if err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, models.ErrorCodeBadRequest, "offset must be an integer")
		return
	}

	response, err := h.catalog.ListListings(r.Context(), models.ListingFilter{
		SellerID: q.Get("seller_id"),
		Category: q.Get("category"),
		Status:   q.Get("status"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// CreateListing handles listing creation
// POST /api/v1/listings
// Requires the seller or admin role
func (h *Handlers) CreateListing(w http.ResponseWriter, r *http.Request) {
	var req models.CreateListingRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return
	}

	listing, err := h.catalog.CreateListing(r.Context(), &req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Listing created",
		"listing_id", listing.ID,
		"seller_id", listing.SellerID)

	w.Header().Set("Location", "/api/v1/listings/"+listing.ID)
	h.writeJSONResponse(w, http.StatusCreated, listing)
}

// GetListing handles single listing requests
// GET /api/v1/listings/{id}
func (h *Handlers) GetListing(w http.ResponseWriter, r *http.Request) {
	listing, err := h.catalog.GetListing(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, listing)
}

// DeleteListing handles listing removal
// DELETE /api/v1/listings/{id}
// Requires the seller or admin role; sellers may only delete their own listings
func (h *Handlers) DeleteListing(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.catalog.DeleteListing(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Listing deleted", "listing_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// SearchListings handles free-text search
// GET /api/v1/search?q=&limit=
func (h *Handlers) SearchListings(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"))
	if err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, models.ErrorCodeBadRequest, "limit must be an integer")
		return
	}

	response, err := h.catalog.SearchListings(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// HealthCheck handles health check requests
// GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthCheckResponse(models.StatusHealthy)
	response.Version = h.version.Release()
	response.Uptime = time.Since(h.started).Round(time.Second).String()

	response.AddComponent("api", models.StatusHealthy, "API is operational")

	status := http.StatusOK
	if h.storage != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := h.storage.Ping(ctx); err != nil {
			slog.WarnContext(r.Context(), "Storage health check failed", "error", err)
			response.Status = models.StatusUnhealthy
			response.AddComponent("storage", models.StatusUnhealthy, "Storage is unreachable")
			status = http.StatusServiceUnavailable
		} else {
			response.AddComponent("storage", models.StatusHealthy, "Storage is operational")
		}
	}

	if p, ok := models.PrincipalFromContext(r.Context()); ok && p.HasRole(catalog.RoleAdmin) {
		response.AddMetric("instance_id", h.version.InstanceID)
		response.AddMetric("git_commit", h.version.GitCommit)
	}

	h.writeJSONResponse(w, status, response)
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	writeJSON(w, statusCode, data)
}

// writeErrorResponse writes an error response
func (h *Handlers) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, errorCode, message string) {
	errorResp := models.NewErrorResponse(message, errorCode)
	errorResp.RequestID = RequestIDFromContext(r.Context())
	h.writeJSONResponse(w, statusCode, errorResp)
}

// writeServiceError maps catalog errors to HTTP responses. Anything that is
// not a ServiceError is reported as an opaque 500.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var se *catalog.ServiceError
	if !errors.As(err, &se) {
		se = catalog.NewInternalError("internal error", err)
	}

	if se.StatusCode >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed",
			"path", r.URL.Path,
			"error", err)
	}

	errorResp := models.NewErrorResponse(se.Message, se.Code)
	if se.StatusCode >= http.StatusInternalServerError {
		errorResp.Message = "Internal server error"
	}
	errorResp.Details = se.Details
	errorResp.RequestID = RequestIDFromContext(r.Context())
	h.writeJSONResponse(w, se.StatusCode, errorResp)
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written; all that is left is to log.
		slog.Error("Error encoding JSON response", "error", err)
	}
}

// intParam parses an optional integer query parameter; empty means zero.
func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q: %w", s, err)
	}
	return n, nil
}
