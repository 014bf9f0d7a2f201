package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"

	"marketplace/internal/models"

	_ "modernc.org/sqlite"
)

// sqliteTimeLayout is fixed-width so that text ordering matches time ordering.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStorage stores listings in a SQLite database through the pure-Go
// modernc.org/sqlite driver.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens the database at config.ConnectionString and applies
// pending migrations.
func NewSQLiteStorage(config Config) (*SQLiteStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for SQLite storage")
	}

	db, err := sql.Open("sqlite", config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers; one connection avoids SQLITE_BUSY under load
	// and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	if config.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrate(ctx, db, goose.DialectSQLite3, "migrations/sqlite"); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStorage{db: db}, nil
}

// Listings returns a page of listings matching filter.
func (ss *SQLiteStorage) Listings(ctx context.Context, filter models.ListingFilter) ([]*models.Listing, int, error) {
	where, args := filterClause(filter, questionPlaceholder)

	var total int
	if err := ss.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM listings"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count listings: %w", err)
	}

	page, args := pageClause(filter.Limit, filter.Offset, args, questionPlaceholder, "-1")
	query := "SELECT " + listingColumns + " FROM listings" + where + " ORDER BY created_at DESC, id" + page

	listings, err := ss.queryListings(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return listings, total, nil
}

// GetListing retrieves a listing by its ID.
func (ss *SQLiteStorage) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	row := ss.db.QueryRowContext(ctx, "SELECT "+listingColumns+" FROM listings WHERE id = ?", id)
	l, err := scanSQLiteListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("listing %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return l, nil
}

// SaveListing creates or replaces a listing.
func (ss *SQLiteStorage) SaveListing(ctx context.Context, listing *models.Listing) error {
	if err := listing.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(upsertListingSQL, placeholders(10, questionPlaceholder))
	_, err := ss.db.ExecContext(ctx, query,
		listing.ID,
		listing.SellerID,
		listing.Title,
		listing.Description,
		listing.PriceCents,
		listing.Currency,
		listing.Category,
		listing.Status,
		listing.CreatedAt.UTC().Format(sqliteTimeLayout),
		listing.UpdatedAt.UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save listing %s: %w", listing.ID, err)
	}
	return nil
}

// DeleteListing removes a listing by its ID.
func (ss *SQLiteStorage) DeleteListing(ctx context.Context, id string) error {
	res, err := ss.db.ExecContext(ctx, "DELETE FROM listings WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete listing %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete listing %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("listing %s: %w", id, ErrNotFound)
	}
	return nil
}

// SearchListings matches query against title and description. SQLite's LIKE
// is case-insensitive for ASCII only.
func (ss *SQLiteStorage) SearchListings(ctx context.Context, query string, limit int) ([]*models.Listing, error) {
	pattern := likePattern(query)
	args := []any{models.ListingStatusActive, pattern, pattern}
	page, args := pageClause(limit, 0, args, questionPlaceholder, "-1")

	q := "SELECT " + listingColumns + ` FROM listings
WHERE status = ? AND (title LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\')
ORDER BY created_at DESC, id` + page

	return ss.queryListings(ctx, q, args...)
}

// Ping checks the database connection.
func (ss *SQLiteStorage) Ping(ctx context.Context) error {
	return ss.db.PingContext(ctx)
}

// Close closes the database.
func (ss *SQLiteStorage) Close() error {
	return ss.db.Close()
}

func (ss *SQLiteStorage) queryListings(ctx context.Context, query string, args ...any) ([]*models.Listing, error) {
	rows, err := ss.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()

	listings := []*models.Listing{}
	for rows.Next() {
		l, err := scanSQLiteListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate listings: %w", err)
	}
	return listings, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteListing(row rowScanner) (*models.Listing, error) {
	var l models.Listing
	var createdAt, updatedAt string
	if err := row.Scan(
		&l.ID,
		&l.SellerID,
		&l.Title,
		&l.Description,
		&l.PriceCents,
		&l.Currency,
		&l.Category,
		&l.Status,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if l.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	if l.UpdatedAt, err = time.Parse(sqliteTimeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("invalid updated_at %q: %w", updatedAt, err)
	}
	return &l, nil
}
