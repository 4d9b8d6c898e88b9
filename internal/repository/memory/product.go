// Package memory is a map-backed product store for local development and
// tests. It honours the same contract as the database repositories: soft
// deletes, live-only listings and id-ordered keyset pages.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/internal/repository"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

// ProductRepository implements repository.ProductRepository in memory.
type ProductRepository struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

var (
	_ repository.ProductRepository = (*ProductRepository)(nil)
	_ repository.BulkWriter        = (*ProductRepository)(nil)
)

// NewProductRepository returns an empty repository.
func NewProductRepository() *ProductRepository {
	return &ProductRepository{products: make(map[string]domain.Product)}
}

func (r *ProductRepository) Create(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[p.ID]; ok {
		return apperrors.AlreadyExists("product", "id", p.ID)
	}
	r.products[p.ID] = clone(*p)
	return nil
}

func (r *ProductRepository) BulkCreate(_ context.Context, products []domain.Product) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range products {
		if _, ok := r.products[p.ID]; ok {
			return 0, apperrors.AlreadyExists("product", "id", p.ID)
		}
	}
	for _, p := range products {
		r.products[p.ID] = clone(p)
	}
	return int64(len(products)), nil
}

func (r *ProductRepository) GetByID(_ context.Context, id string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	if !ok {
		return nil, apperrors.NotFound("product", id)
	}
	out := clone(p)
	return &out, nil
}

func (r *ProductRepository) List(_ context.Context, filter domain.ProductFilter) ([]domain.Product, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var live []domain.Product
	for _, p := range r.products {
		if p.IsDeleted() {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		live = append(live, p)
	}
	slices.SortFunc(live, func(a, b domain.Product) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	total := len(live)
	start := min(filter.Offset(), total)
	end := total
	if filter.PerPage > 0 {
		end = min(start+filter.PerPage, total)
	}
	out := make([]domain.Product, 0, end-start)
	for _, p := range live[start:end] {
		out = append(out, clone(p))
	}
	return out, total, nil
}

func (r *ProductRepository) Update(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.products[p.ID]
	if !ok || cur.IsDeleted() {
		return apperrors.NotFound("product", p.ID)
	}
	next := clone(*p)
	next.Views, next.Sold = cur.Views, cur.Sold
	next.CreatedAt, next.DeletedAt = cur.CreatedAt, nil
	r.products[p.ID] = next
	return nil
}

func (r *ProductRepository) SoftDelete(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok || p.IsDeleted() {
		return apperrors.NotFound("product", id)
	}
	p.DeletedAt = &at
	p.UpdatedAt = at
	r.products[id] = p
	return nil
}

func (r *ProductRepository) IncrementViews(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok || p.IsDeleted() {
		return apperrors.NotFound("product", id)
	}
	p.Views++
	r.products[id] = p
	return nil
}

func (r *ProductRepository) ListAfter(_ context.Context, afterID string, limit int) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.products))
	for id := range r.products {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]domain.Product, len(ids))
	for i, id := range ids {
		out[i] = clone(r.products[id])
	}
	return out, nil
}

func (r *ProductRepository) ListDeletedSince(_ context.Context, since time.Time) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, p := range r.products {
		if p.DeletedAt != nil && !p.DeletedAt.Before(since) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (r *ProductRepository) Ping(context.Context) error { return nil }

func clone(p domain.Product) domain.Product {
	p.Colors = slices.Clone(p.Colors)
	p.Images = slices.Clone(p.Images)
	if p.DeletedAt != nil {
		at := *p.DeletedAt
		p.DeletedAt = &at
	}
	return p
}
