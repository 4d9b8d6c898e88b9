package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/pkg/database"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

const productColumns = `id, name, slug, price, description, category, colors, stock, images,
	views, sold, type, status, deleted_at, created_at, updated_at`

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	db     database.DBTX
	tracer *database.QueryTracer
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
// tracer may be nil.
func NewProductRepository(db database.DBTX, tracer *database.QueryTracer) *ProductRepository {
	return &ProductRepository{db: db, tracer: tracer}
}

// Create inserts a new product into the database.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (err error) {
	ctx, done := r.tracer.Start(ctx, "products.create", "INSERT INTO products")
	defer func() { done(err) }()

	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err = r.db.Exec(ctx, query,
		p.ID,
		p.Name,
		p.Slug,
		p.Price,
		p.Description,
		p.Category,
		p.Colors,
		p.Stock,
		p.Images,
		p.Views,
		p.Sold,
		p.Type,
		p.Status,
		p.DeletedAt,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("product", "id", p.ID)
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// GetByID retrieves a product by its ID. Soft-deleted rows are returned too.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (_ *domain.Product, err error) {
	ctx, done := r.tracer.Start(ctx, "products.get", "SELECT FROM products WHERE id")
	defer func() { done(err) }()

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// List returns live products, newest first, with the total count.
func (r *ProductRepository) List(ctx context.Context, filter domain.ProductFilter) (_ []domain.Product, _ int, err error) {
	ctx, done := r.tracer.Start(ctx, "products.list", "SELECT FROM products ORDER BY created_at")
	defer func() { done(err) }()

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	filter.PerPage = limit

	args := []any{}
	where := "WHERE deleted_at IS NULL"
	if filter.Category != "" {
		args = append(args, filter.Category)
		where += fmt.Sprintf(" AND category = $%d", len(args))
	}
	args = append(args, limit, filter.Offset())

	// count(*) OVER() returns the total alongside the page in one round trip.
	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM products
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`,
		productColumns, where, len(args)-1, len(args),
	)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	total := 0
	for rows.Next() {
		p, err := scanProduct(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, total, nil
}

// Update modifies an existing live product.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) (err error) {
	ctx, done := r.tracer.Start(ctx, "products.update", "UPDATE products")
	defer func() { done(err) }()

	query := `
		UPDATE products
		SET name = $1, slug = $2, price = $3, description = $4, category = $5,
		    colors = $6, stock = $7, images = $8, type = $9, status = $10, updated_at = $11
		WHERE id = $12 AND deleted_at IS NULL`

	ct, err := r.db.Exec(ctx, query,
		p.Name,
		p.Slug,
		p.Price,
		p.Description,
		p.Category,
		p.Colors,
		p.Stock,
		p.Images,
		p.Type,
		p.Status,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", p.ID)
	}
	return nil
}

// SoftDelete stamps deleted_at on a live product.
func (r *ProductRepository) SoftDelete(ctx context.Context, id string, at time.Time) (err error) {
	ctx, done := r.tracer.Start(ctx, "products.soft_delete", "UPDATE products SET deleted_at")
	defer func() { done(err) }()

	ct, err := r.db.Exec(ctx,
		`UPDATE products SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL`,
		at, id,
	)
	if err != nil {
		return fmt.Errorf("soft delete product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}
	return nil
}

// IncrementViews bumps the view counter of a live product.
func (r *ProductRepository) IncrementViews(ctx context.Context, id string) (err error) {
	ctx, done := r.tracer.Start(ctx, "products.increment_views", "UPDATE products SET views")
	defer func() { done(err) }()

	ct, err := r.db.Exec(ctx, `UPDATE products SET views = views + 1 WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}
	return nil
}

// ListAfter returns the next keyset page ordered by id.
func (r *ProductRepository) ListAfter(ctx context.Context, afterID string, limit int) (_ []domain.Product, err error) {
	ctx, done := r.tracer.Start(ctx, "products.list_after", "SELECT FROM products WHERE id > ORDER BY id")
	defer func() { done(err) }()

	query := `SELECT ` + productColumns + ` FROM products WHERE id > $1 ORDER BY id ASC LIMIT $2`

	rows, err := r.db.Query(ctx, query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list products after %q: %w", afterID, err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return products, nil
}

// ListDeletedSince returns ids soft deleted at or after since.
func (r *ProductRepository) ListDeletedSince(ctx context.Context, since time.Time) (_ []string, err error) {
	ctx, done := r.tracer.Start(ctx, "products.list_deleted_since", "SELECT id FROM products WHERE deleted_at >=")
	defer func() { done(err) }()

	rows, err := r.db.Query(ctx, `SELECT id FROM products WHERE deleted_at >= $1 ORDER BY id`, since)
	if err != nil {
		return nil, fmt.Errorf("list deleted products: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect deleted ids: %w", err)
	}
	return ids, nil
}

// BulkCreate inserts products with COPY. Used by the seeding tool.
func (r *ProductRepository) BulkCreate(ctx context.Context, products []domain.Product) (_ int64, err error) {
	ctx, done := r.tracer.Start(ctx, "products.bulk_create", "COPY products")
	defer func() { done(err) }()

	columns := []string{
		"id", "name", "slug", "price", "description", "category", "colors", "stock", "images",
		"views", "sold", "type", "status", "deleted_at", "created_at", "updated_at",
	}
	n, err := r.db.CopyFrom(ctx, pgx.Identifier{"products"}, columns,
		pgx.CopyFromSlice(len(products), func(i int) ([]any, error) {
			p := products[i]
			return []any{
				p.ID, p.Name, p.Slug, p.Price, p.Description, p.Category, p.Colors, p.Stock, p.Images,
				p.Views, p.Sold, p.Type, p.Status, p.DeletedAt, p.CreatedAt, p.UpdatedAt,
			}, nil
		}),
	)
	if err != nil {
		return n, fmt.Errorf("copy products: %w", err)
	}
	return n, nil
}

// Ping checks database connectivity.
func (r *ProductRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// scanProduct scans one products row. extra receives trailing columns such
// as a window count.
func scanProduct(row pgx.Row, extra ...any) (*domain.Product, error) {
	var p domain.Product
	dest := []any{
		&p.ID,
		&p.Name,
		&p.Slug,
		&p.Price,
		&p.Description,
		&p.Category,
		&p.Colors,
		&p.Stock,
		&p.Images,
		&p.Views,
		&p.Sold,
		&p.Type,
		&p.Status,
		&p.DeletedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if p.Colors == nil {
		p.Colors = []string{}
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	return &p, nil
}

// isUniqueViolation checks for PostgreSQL SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	return errors.As(err, &pgErr) && pgErr.SQLState() == "23505"
}
