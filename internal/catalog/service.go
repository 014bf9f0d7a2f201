// Package catalog implements the marketplace listing use cases on top of a
// storage backend.
package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"marketplace/internal/models"
	"marketplace/internal/storage"
)

// Page size bounds for list and search.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// RoleAdmin may delete any listing.
const RoleAdmin = "admin"

// Service handles listing business logic.
type Service struct {
	storage storage.Storage
	now     func() time.Time
	newID   func() string
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for listing timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides listing ID generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService creates a new catalog service with the given storage backend
func NewService(storage storage.Storage, opts ...Option) *Service {
	s := &Service{
		storage: storage,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateListing validates req and stores a new active listing whose seller is
// the authenticated principal.
func (s *Service) CreateListing(ctx context.Context, req *models.CreateListingRequest) (*models.Listing, error) {
	principal, ok := models.PrincipalFromContext(ctx)
	if !ok {
		return nil, NewUnauthorizedError("authentication required to create listings")
	}

	req.Normalize()
	if errs := req.Validate(); len(errs) > 0 {
		return nil, NewValidationError(errs)
	}

	now := s.now().UTC()
	listing := &models.Listing{
		ID:          s.newID(),
		SellerID:    principal.Subject,
		Title:       req.Title,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Currency:    req.Currency,
		Category:    req.Category,
		Status:      models.ListingStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.storage.SaveListing(ctx, listing); err != nil {
		return nil, NewInternalError("failed to save listing", err)
	}
	return listing, nil
}

// GetListing returns the listing with the given ID.
func (s *Service) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	if strings.TrimSpace(id) == "" {
		return nil, NewInvalidRequestError("listing id is required", nil)
	}

	listing, err := s.storage.GetListing(ctx, id)
	if err != nil {
		return nil, mapStorageError(id, err)
	}
	return listing, nil
}

// ListListings returns a page of listings. The page size defaults to
// DefaultPageSize and is capped at MaxPageSize.
func (s *Service) ListListings(ctx context.Context, filter models.ListingFilter) (*models.ListListingsResponse, error) {
	if filter.Offset < 0 {
		return nil, NewInvalidRequestError("offset cannot be negative", nil)
	}
	if filter.Status != "" && !validStatus(filter.Status) {
		return nil, NewInvalidRequestError("unknown listing status: "+filter.Status, nil)
	}
	filter.Limit = pageSize(filter.Limit)
	filter.Category = strings.ToLower(strings.TrimSpace(filter.Category))

	listings, total, err := s.storage.Listings(ctx, filter)
	if err != nil {
		return nil, NewInternalError("failed to list listings", err)
	}

	return &models.ListListingsResponse{
		Listings:   listings,
		TotalCount: total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
		HasMore:    filter.Offset+len(listings) < total,
	}, nil
}

// SearchListings returns active listings whose title or description contains query.
func (s *Service) SearchListings(ctx context.Context, query string, limit int) (*models.ListListingsResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, NewInvalidRequestError("search query is required", nil)
	}
	limit = pageSize(limit)

	listings, err := s.storage.SearchListings(ctx, query, limit)
	if err != nil {
		return nil, NewInternalError("failed to search listings", err)
	}

	return &models.ListListingsResponse{
		Listings:   listings,
		TotalCount: len(listings),
		Limit:      limit,
	}, nil
}

// DeleteListing removes a listing. Only its seller or an admin may delete it.
func (s *Service) DeleteListing(ctx context.Context, id string) error {
	principal, ok := models.PrincipalFromContext(ctx)
	if !ok {
		return NewUnauthorizedError("authentication required to delete listings")
	}

	listing, err := s.GetListing(ctx, id)
	if err != nil {
		return err
	}
	if listing.SellerID != principal.Subject && !principal.HasRole(RoleAdmin) {
		return NewForbiddenError("only the seller or an admin may delete this listing")
	}

	if err := s.storage.DeleteListing(ctx, id); err != nil {
		return mapStorageError(id, err)
	}
	return nil
}

func mapStorageError(id string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return NewListingNotFoundError(id, err)
	}
	return NewInternalError("storage failure", err)
}

func pageSize(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	return min(limit, MaxPageSize)
}

func validStatus(status string) bool {
	switch status {
	case models.ListingStatusActive, models.ListingStatusSold, models.ListingStatusArchived:
		return true
	}
	return false
}
