package engine

import (
	"context"
	"fmt"

	"github.com/utafrali/catalog/internal/domain"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

// ErrUnavailable is returned when the search index cannot be reached or its
// circuit breaker is open. It matches apperrors.ErrServiceUnavail.
var ErrUnavailable = fmt.Errorf("search engine: %w", apperrors.ErrServiceUnavail)

// SearchEngine defines the operations the catalog needs from its search index.
// Implementations normalize backend responses into domain types.
type SearchEngine interface {
	// Index adds or replaces a single document.
	Index(ctx context.Context, doc *domain.SearchDocument) error

	// Get fetches a document by id. Absent documents yield a not-found error.
	Get(ctx context.Context, id string) (*domain.SearchDocument, error)

	// Exists reports whether a document with the id is indexed.
	Exists(ctx context.Context, id string) (bool, error)

	// Delete removes a document. A missing document is not an error.
	Delete(ctx context.Context, id string) error

	// Search runs a paged full-text search with filters and aggregations.
	Search(ctx context.Context, params *domain.SearchParams) (*domain.SearchResult, error)

	// TermSuggestions returns spelling alternatives for text.
	TermSuggestions(ctx context.Context, text string, size int) ([]string, error)

	// Suggest returns autocomplete candidates for a partial query.
	Suggest(ctx context.Context, prefix string, limit int) ([]string, error)

	// Categories returns per-category counts of live products.
	Categories(ctx context.Context, size int) ([]domain.CategoryCount, error)

	// PriceRanges returns price statistics and fixed bucket counts.
	PriceRanges(ctx context.Context) (*domain.PriceRanges, error)

	// Trending returns products ranked by views and sales.
	Trending(ctx context.Context, limit int) ([]domain.Product, error)

	// Related returns products sharing a category or color with id.
	Related(ctx context.Context, id string, limit int) ([]domain.Product, error)

	// BulkIndex indexes many documents without refreshing. Per-document
	// failures are reported in the result rather than as an error.
	BulkIndex(ctx context.Context, docs []*domain.SearchDocument) (*BulkResult, error)

	// RecreateIndex drops the index if present and creates it with mappings.
	RecreateIndex(ctx context.Context) error

	// Refresh makes recent writes visible to search.
	Refresh(ctx context.Context) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error
}

// BulkFailure describes one document the index rejected.
type BulkFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// BulkResult summarizes a bulk index call.
type BulkResult struct {
	Indexed  int           `json:"indexed"`
	Failed   int           `json:"failed"`
	Failures []BulkFailure `json:"failures,omitempty"`
}
