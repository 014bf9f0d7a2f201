package storage

import (
	"fmt"
	"strings"

	"marketplace/internal/models"
)

const listingColumns = "id, seller_id, title, description, price_cents, currency, category, status, created_at, updated_at"

const upsertListingSQL = `INSERT INTO listings (` + listingColumns + `)
VALUES (%s)
ON CONFLICT (id) DO UPDATE SET
    seller_id = excluded.seller_id,
    title = excluded.title,
    description = excluded.description,
    price_cents = excluded.price_cents,
    currency = excluded.currency,
    category = excluded.category,
    status = excluded.status,
    updated_at = excluded.updated_at`

// placeholderFunc renders the n-th (1-based) bind parameter for a dialect.
type placeholderFunc func(n int) string

func dollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

func questionPlaceholder(int) string { return "?" }

// filterClause builds the WHERE clause and arguments for filter.
func filterClause(filter models.ListingFilter, ph placeholderFunc) (string, []any) {
	var conds []string
	var args []any

	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conds = append(conds, column+" = "+ph(len(args)))
	}
	add("seller_id", filter.SellerID)
	add("category", filter.Category)
	add("status", filter.Status)

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// pageClause renders LIMIT/OFFSET, appending the values to args. A
// non-positive limit renders the dialect's unbounded form, since SQLite
// requires a LIMIT before OFFSET.
func pageClause(limit, offset int, args []any, ph placeholderFunc, unbounded string) (string, []any) {
	if offset < 0 {
		offset = 0
	}

	clause := " LIMIT " + unbounded
	if limit > 0 {
		args = append(args, limit)
		clause = " LIMIT " + ph(len(args))
	}
	args = append(args, offset)
	clause += " OFFSET " + ph(len(args))
	return clause, args
}

func placeholders(n int, ph placeholderFunc) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = ph(i + 1)
	}
	return strings.Join(parts, ", ")
}
