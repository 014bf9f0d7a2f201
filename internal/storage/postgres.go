package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"marketplace/internal/models"
)

// PostgresStorage implements the Storage interface on a pgx connection pool.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage connects to PostgreSQL and applies pending migrations.
func NewPostgresStorage(ctx context.Context, config Config) (*PostgresStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for PostgreSQL storage")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if config.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(min(config.MaxIdleConns, int(poolConfig.MaxConns)))
	}
	if config.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = config.ConnMaxLifetime
	}
	if config.ConnMaxIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.ConnMaxIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	err = migrate(ctx, db, goose.DialectPostgres, "migrations/postgres")
	db.Close()
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStorage{pool: pool}, nil
}

// Listings returns a page of listings matching filter.
func (ps *PostgresStorage) Listings(ctx context.Context, filter models.ListingFilter) ([]*models.Listing, int, error) {
	where, args := filterClause(filter, dollarPlaceholder)

	var total int
	if err := ps.pool.QueryRow(ctx, "SELECT COUNT(*) FROM listings"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count listings: %w", err)
	}

	page, args := pageClause(filter.Limit, filter.Offset, args, dollarPlaceholder, "ALL")
	query := "SELECT " + listingColumns + " FROM listings" + where + " ORDER BY created_at DESC, id" + page

	listings, err := ps.queryListings(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return listings, total, nil
}

// GetListing retrieves a listing by its ID.
func (ps *PostgresStorage) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	rows, err := ps.pool.Query(ctx, "SELECT "+listingColumns+" FROM listings WHERE id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}

	l, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByPos[models.Listing])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("listing %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return l, nil
}

// SaveListing creates or replaces a listing.
func (ps *PostgresStorage) SaveListing(ctx context.Context, listing *models.Listing) error {
	if err := listing.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(upsertListingSQL, placeholders(10, dollarPlaceholder))
	_, err := ps.pool.Exec(ctx, query,
		listing.ID,
		listing.SellerID,
		listing.Title,
		listing.Description,
		listing.PriceCents,
		listing.Currency,
		listing.Category,
		listing.Status,
		listing.CreatedAt.UTC(),
		listing.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save listing %s: %w", listing.ID, err)
	}
	return nil
}

// DeleteListing removes a listing by its ID.
func (ps *PostgresStorage) DeleteListing(ctx context.Context, id string) error {
	tag, err := ps.pool.Exec(ctx, "DELETE FROM listings WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete listing %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("listing %s: %w", id, ErrNotFound)
	}
	return nil
}

// SearchListings matches query against title and description with ILIKE.
func (ps *PostgresStorage) SearchListings(ctx context.Context, query string, limit int) ([]*models.Listing, error) {
	args := []any{models.ListingStatusActive, likePattern(query)}
	page, args := pageClause(limit, 0, args, dollarPlaceholder, "ALL")

	q := "SELECT " + listingColumns + ` FROM listings
WHERE status = $1 AND (title ILIKE $2 ESCAPE '\' OR description ILIKE $2 ESCAPE '\')
ORDER BY created_at DESC, id` + page

	return ps.queryListings(ctx, q, args...)
}

// Ping checks the database connection.
func (ps *PostgresStorage) Ping(ctx context.Context) error {
	return ps.pool.Ping(ctx)
}

// Close closes the connection pool.
func (ps *PostgresStorage) Close() error {
	ps.pool.Close()
	return nil
}

func (ps *PostgresStorage) queryListings(ctx context.Context, query string, args ...any) ([]*models.Listing, error) {
	rows, err := ps.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}

	listings, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByPos[models.Listing])
	if err != nil {
		return nil, fmt.Errorf("failed to scan listings: %w", err)
	}
	if listings == nil {
		listings = []*models.Listing{}
	}
	return listings, nil
}
