package repository

import (
	"context"
	"time"

	"github.com/utafrali/catalog/internal/domain"
)

// ProductRepository defines product persistence operations. The catalog store
// is the source of truth; the search index is rebuilt from it.
type ProductRepository interface {
	// Create inserts a new product.
	Create(ctx context.Context, product *domain.Product) error

	// GetByID retrieves a product by id, including soft-deleted ones.
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// List returns live products matching the filter, newest first, along
	// with the total count.
	List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, int, error)

	// Update modifies an existing, live product.
	Update(ctx context.Context, product *domain.Product) error

	// SoftDelete stamps deleted_at. Missing or already deleted products
	// yield a not-found error.
	SoftDelete(ctx context.Context, id string, at time.Time) error

	// IncrementViews bumps the view counter by one.
	IncrementViews(ctx context.Context, id string) error

	// ListAfter returns up to limit products with id greater than afterID,
	// ordered by id. Soft-deleted products are included.
	ListAfter(ctx context.Context, afterID string, limit int) ([]domain.Product, error)

	// ListDeletedSince returns ids of products soft deleted at or after since.
	ListDeletedSince(ctx context.Context, since time.Time) ([]string, error)

	// Ping checks store connectivity.
	Ping(ctx context.Context) error
}

// BulkWriter is implemented by stores that support fast batch inserts. Only
// the seeding tool uses it.
type BulkWriter interface {
	BulkCreate(ctx context.Context, products []domain.Product) (int64, error)
}
