package domain

import (
	"errors"
	"math"
)

// Search limits.
const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
	MaxResultWindow    = 10000
	MaxSearchPages     = 500
)

// ErrPaginationLimit is returned when a search asks for a page that ends
// beyond the index result window.
var ErrPaginationLimit = errors.New("pagination limit exceeded: page * limit must not exceed 10000")

// SortKey selects the ordering of search results.
type SortKey string

// Sort options for search results.
const (
	SortNewest    SortKey = "newest"
	SortPriceAsc  SortKey = "price_asc"
	SortPriceDesc SortKey = "price_desc"
	SortNameAsc   SortKey = "name_asc"
	SortNameDesc  SortKey = "name_desc"
)

// ParseSortKey maps a raw sort parameter to a SortKey. Unknown values fall
// back to SortNewest.
func ParseSortKey(raw string) SortKey {
	switch k := SortKey(raw); k {
	case SortPriceAsc, SortPriceDesc, SortNameAsc, SortNameDesc:
		return k
	default:
		return SortNewest
	}
}

// SearchParams holds all parameters for a search request. Colors keeps the
// raw comma-joined form it arrived in; ColorList splits it.
type SearchParams struct {
	Page     int
	Limit    int
	Query    string
	Category string
	MinPrice *int64
	MaxPrice *int64
	Colors   string
	Sort     SortKey
}

// Normalize applies defaults to page, limit and sort.
func (p *SearchParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultSearchLimit
	}
	if p.Limit > MaxSearchLimit {
		p.Limit = MaxSearchLimit
	}
	p.Sort = ParseSortKey(string(p.Sort))
}

// Offset is the number of hits skipped before the current page.
func (p *SearchParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Validate rejects pages whose last hit falls beyond the result window. The
// index bounds from+size, not just from.
func (p *SearchParams) Validate() error {
	if p.Offset()+p.Limit > MaxResultWindow {
		return ErrPaginationLimit
	}
	return nil
}

// ColorList returns the requested colors, trimmed, without empties.
func (p *SearchParams) ColorList() []string {
	return ParseColors(p.Colors)
}

// HasCategory reports whether the category filter applies. "all" means no filter.
func (p *SearchParams) HasCategory() bool {
	return p.Category != "" && p.Category != "all"
}

// Bucket is a single terms aggregation bucket.
type Bucket struct {
	Key      string `json:"key"`
	DocCount int64  `json:"doc_count"`
}

// BucketList wraps buckets the way the index returns them.
type BucketList struct {
	Buckets []Bucket `json:"buckets"`
}

// PriceStats summarizes the price field over the matched products.
type PriceStats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// Aggregations are the facet counts returned with every search.
type Aggregations struct {
	Categories BucketList `json:"categories"`
	Colors     BucketList `json:"colors"`
	PriceStats PriceStats `json:"price_stats"`
}

// EmptyAggregations returns aggregations with empty, non-nil bucket lists.
func EmptyAggregations() Aggregations {
	return Aggregations{
		Categories: BucketList{Buckets: []Bucket{}},
		Colors:     BucketList{Buckets: []Bucket{}},
	}
}

// SearchResult is the paginated search response.
type SearchResult struct {
	Products     []Product    `json:"products"`
	Total        int64        `json:"total"`
	Page         int          `json:"page"`
	Pages        int          `json:"pages"`
	Aggregations Aggregations `json:"aggregations"`
	Suggestions  []string     `json:"suggestions,omitempty"`
}

// EmptySearchResult is the degraded response used when the index is unreachable.
func EmptySearchResult(page int) *SearchResult {
	return &SearchResult{
		Products:     []Product{},
		Page:         page,
		Aggregations: EmptyAggregations(),
	}
}

// Pages returns the number of result pages, capped at MaxSearchPages.
func Pages(total int64, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	pages := int(math.Ceil(float64(total) / float64(limit)))
	return min(pages, MaxSearchPages)
}
