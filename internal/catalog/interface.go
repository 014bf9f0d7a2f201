package catalog

import (
	"context"

	"marketplace/internal/models"
)

// ServiceInterface defines the listing operations exposed over HTTP.
type ServiceInterface interface {
	// CreateListing publishes a new listing owned by the caller.
	CreateListing(ctx context.Context, req *models.CreateListingRequest) (*models.Listing, error)

	// GetListing returns a single listing.
	GetListing(ctx context.Context, id string) (*models.Listing, error)

	// ListListings returns a page of listings matching filter.
	ListListings(ctx context.Context, filter models.ListingFilter) (*models.ListListingsResponse, error)

	// SearchListings returns active listings matching a free-text query.
	SearchListings(ctx context.Context, query string, limit int) (*models.ListListingsResponse, error)

	// DeleteListing removes a listing owned by the caller, or any listing for admins.
	DeleteListing(ctx context.Context, id string) error
}

// Ensure Service implements ServiceInterface
var _ ServiceInterface = (*Service)(nil)
