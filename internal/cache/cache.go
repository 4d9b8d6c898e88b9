// Package cache holds the read-through response cache used by the catalog
// read paths, and the key layout shared by readers and invalidation.
package cache

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/utafrali/catalog/internal/domain"
)

// Key prefixes. Every catalog write drops both.
const (
	SearchPrefix  = "search:"
	ProductPrefix = "product:"

	CategoriesKey     = ProductPrefix + "categories"
	suggestionsPrefix = ProductPrefix + "suggestions:"
	itemPrefix        = ProductPrefix + "item:"
)

// Cache stores opaque payloads under string keys with a TTL.
type Cache interface {
	// Get returns the payload and true on a hit. A miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeleteByPrefix removes every key starting with any of the prefixes and
	// returns how many were removed.
	DeleteByPrefix(ctx context.Context, prefixes ...string) (int, error)
	Ping(ctx context.Context) error
}

// TTLs groups the expiry of each cached family.
type TTLs struct {
	Search      time.Duration
	Categories  time.Duration
	Suggestions time.Duration
	Product     time.Duration
}

// DefaultTTLs returns the production expiries.
func DefaultTTLs() TTLs {
	return TTLs{
		Search:      300 * time.Second,
		Categories:  3600 * time.Second,
		Suggestions: 600 * time.Second,
		Product:     300 * time.Second,
	}
}

// searchKeyFields fixes the field order of the search key.
type searchKeyFields struct {
	Page     int      `json:"page"`
	Limit    int      `json:"limit"`
	Query    string   `json:"query"`
	Category string   `json:"category"`
	MinPrice *int64   `json:"minPrice"`
	MaxPrice *int64   `json:"maxPrice"`
	Colors   []string `json:"colors"`
	Sort     string   `json:"sort"`
}

// SearchKey derives the cache key of a normalized search request. Requests
// that differ in any effective parameter get distinct keys; the query is
// trimmed and the colors are compared as a set.
func SearchKey(p *domain.SearchParams) string {
	colors := p.ColorList()
	slices.Sort(colors)
	colors = slices.Compact(colors)

	data, _ := json.Marshal(searchKeyFields{
		Page:     p.Page,
		Limit:    p.Limit,
		Query:    strings.TrimSpace(p.Query),
		Category: p.Category,
		MinPrice: p.MinPrice,
		MaxPrice: p.MaxPrice,
		Colors:   colors,
		Sort:     string(p.Sort),
	})
	return SearchPrefix + string(data)
}

// SuggestionsKey is the key of the autocomplete list for q.
func SuggestionsKey(q string) string {
	return suggestionsPrefix + strings.ToLower(q)
}

// ProductKey is the key of a single product read.
func ProductKey(id string) string {
	return itemPrefix + id
}
