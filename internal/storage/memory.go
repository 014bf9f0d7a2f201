package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"marketplace/internal/models"
)

// MemoryStorage keeps listings in a map. Data is lost on restart; use it for
// development and tests.
type MemoryStorage struct {
	mu       sync.RWMutex
	listings map[string]*models.Listing
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage(config Config) (*MemoryStorage, error) {
	return &MemoryStorage{
		listings: make(map[string]*models.Listing),
	}, nil
}

// Listings returns a page of listings matching filter.
func (m *MemoryStorage) Listings(ctx context.Context, filter models.ListingFilter) ([]*models.Listing, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*models.Listing, 0, len(m.listings))
	for _, l := range m.listings {
		if l.Matches(filter) {
			// Return a copy to prevent external modification
			listingCopy := *l
			matched = append(matched, &listingCopy)
		}
	}
	sortNewestFirst(matched)

	return paginate(matched, filter.Offset, filter.Limit), len(matched), nil
}

// GetListing retrieves a listing by its ID.
func (m *MemoryStorage) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, exists := m.listings[id]
	if !exists {
		return nil, fmt.Errorf("listing %s: %w", id, ErrNotFound)
	}

	listingCopy := *l
	return &listingCopy, nil
}

// SaveListing stores a copy of listing, replacing any listing with the same ID.
func (m *MemoryStorage) SaveListing(ctx context.Context, listing *models.Listing) error {
	if err := listing.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	listingCopy := *listing
	m.listings[listing.ID] = &listingCopy
	return nil
}

// DeleteListing removes a listing by its ID.
func (m *MemoryStorage) DeleteListing(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.listings[id]; !exists {
		return fmt.Errorf("listing %s: %w", id, ErrNotFound)
	}
	delete(m.listings, id)
	return nil
}

// SearchListings does a case-insensitive substring match on title and description.
func (m *MemoryStorage) SearchListings(ctx context.Context, query string, limit int) ([]*models.Listing, error) {
	needle := strings.ToLower(strings.TrimSpace(query))

	m.mu.RLock()
	defer m.mu.RUnlock()

	var found []*models.Listing
	for _, l := range m.listings {
		if l.Status != models.ListingStatusActive {
			continue
		}
		if strings.Contains(strings.ToLower(l.Title), needle) || strings.Contains(strings.ToLower(l.Description), needle) {
			listingCopy := *l
			found = append(found, &listingCopy)
		}
	}
	sortNewestFirst(found)

	if found == nil {
		found = []*models.Listing{}
	}
	return paginate(found, 0, limit), nil
}

// Ping always succeeds.
func (m *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for memory storage.
func (m *MemoryStorage) Close() error {
	return nil
}

// sortNewestFirst orders by creation time descending, then ID for stability.
func sortNewestFirst(listings []*models.Listing) {
	sort.Slice(listings, func(i, j int) bool {
		if !listings[i].CreatedAt.Equal(listings[j].CreatedAt) {
			return listings[i].CreatedAt.After(listings[j].CreatedAt)
		}
		return listings[i].ID < listings[j].ID
	})
}

func paginate(listings []*models.Listing, offset, limit int) []*models.Listing {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(listings) {
		return []*models.Listing{}
	}
	listings = listings[offset:]
	if limit > 0 && limit < len(listings) {
		listings = listings[:limit]
	}
	return listings
}
