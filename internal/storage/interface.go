package storage

import (
	"context"
	"time"

	"marketplace/internal/models"
)

// Storage persists marketplace listings. Implementations must be safe for
// concurrent use and return ErrNotFound for unknown listing IDs.
type Storage interface {
	// Listings returns one page of listings matching filter, newest first,
	// along with the total number of matches. A non-positive Limit returns
	// every match from Offset on.
	Listings(ctx context.Context, filter models.ListingFilter) ([]*models.Listing, int, error)

	// GetListing retrieves a listing by its ID.
	GetListing(ctx context.Context, id string) (*models.Listing, error)

	// SaveListing creates or replaces a listing.
	SaveListing(ctx context.Context, listing *models.Listing) error

	// DeleteListing removes a listing.
	DeleteListing(ctx context.Context, id string) error

	// SearchListings returns up to limit active listings whose title or
	// description contains query, ignoring case, newest first.
	SearchListings(ctx context.Context, query string, limit int) ([]*models.Listing, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases connections and other resources.
	Close() error
}

// Config holds connection settings for the storage backends.
type Config struct {
	Type             string
	ConnectionString string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	ConnMaxIdleTime  time.Duration
}

// ConfigFromModel converts the service configuration section.
func ConfigFromModel(cfg models.StorageConfig) Config {
	return Config{
		Type:             cfg.Type,
		ConnectionString: cfg.Database.DSN,
		MaxOpenConns:     cfg.Database.MaxOpenConns,
		MaxIdleConns:     cfg.Database.MaxIdleConns,
		ConnMaxLifetime:  cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime:  cfg.Database.ConnMaxIdleTime,
	}
}
