// Package models - Marketplace listings.
package models

import (
	"errors"
	"strings"
	"time"
)

// Listing status values
const (
	ListingStatusActive   = "active"
	ListingStatusSold     = "sold"
	ListingStatusArchived = "archived"
)

// Listing is an item offered for sale by a seller.
type Listing struct {
	ID          string    `json:"id"`
	SellerID    string    `json:"seller_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	PriceCents  int64     `json:"price_cents"`
	Currency    string    `json:"currency"`
	Category    string    `json:"category,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListingFilter narrows listing queries. Zero values mean "any".
type ListingFilter struct {
	SellerID string
	Category string
	Status   string
	Limit    int
	Offset   int
}

// CreateListingRequest is the body of POST /api/v1/listings.
type CreateListingRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Currency    string `json:"currency"`
	Category    string `json:"category"`
}

// Validate checks the request and returns field errors keyed by JSON name.
func (r *CreateListingRequest) Validate() map[string]string {
	errs := make(map[string]string)
	if strings.TrimSpace(r.Title) == "" {
		errs["title"] = "title is required"
	} else if len(r.Title) > 200 {
		errs["title"] = "title must be at most 200 characters"
	}
	if r.PriceCents < 0 {
		errs["price_cents"] = "price cannot be negative"
	}
	if len(r.Currency) != 3 {
		errs["currency"] = "currency must be a 3-letter ISO 4217 code"
	}
	return errs
}

// Normalize trims whitespace and upper-cases the currency code.
func (r *CreateListingRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	r.Category = strings.ToLower(strings.TrimSpace(r.Category))
}

// Matches reports whether the listing satisfies the filter's equality criteria.
func (l *Listing) Matches(f ListingFilter) bool {
	if f.SellerID != "" && l.SellerID != f.SellerID {
		return false
	}
	if f.Category != "" && l.Category != f.Category {
		return false
	}
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	return true
}

// ErrInvalidListing is returned when a listing fails structural checks before persistence.
var ErrInvalidListing = errors.New("invalid listing")

// Validate performs the checks storage backends rely on.
func (l *Listing) Validate() error {
	if l.ID == "" || l.SellerID == "" || l.Title == "" {
		return ErrInvalidListing
	}
	return nil
}
