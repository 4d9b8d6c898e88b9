package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/utafrali/catalog/internal/cache"
	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/internal/engine"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

// Facet limits.
const (
	CategoryFacetSize   = 50
	DefaultFacetLimit   = 10
	MaxFacetLimit       = 100
	MaxSuggestions      = 5
	MinSuggestQueryRune = 2
)

// FacetService serves the browse widgets: categories, colors, price ranges,
// trending and related products, and autocomplete. All of them degrade to
// empty results when the engine is unavailable.
type FacetService struct {
	engine engine.SearchEngine
	cache  cacheAside
	ttls   cache.TTLs
	logger *slog.Logger
}

// NewFacetService creates a new facet service.
func NewFacetService(d Deps) *FacetService {
	return &FacetService{
		engine: d.Engine,
		cache:  cacheAside{cache: d.Cache, logger: d.Logger},
		ttls:   d.TTLs,
		logger: d.Logger,
	}
}

// Categories returns live product counts per category.
func (s *FacetService) Categories(ctx context.Context) ([]domain.CategoryCount, error) {
	var out []domain.CategoryCount
	if s.cache.getJSON(ctx, cache.CategoriesKey, &out) {
		return out, nil
	}

	out, err := s.engine.Categories(ctx, CategoryFacetSize)
	if err != nil {
		if s.fallback(ctx, "categories", err) {
			return []domain.CategoryCount{}, nil
		}
		return nil, fmt.Errorf("category facet: %w", err)
	}

	s.cache.setJSON(ctx, cache.CategoriesKey, out, s.ttls.Categories)
	return out, nil
}

// Colors returns the static color facet.
func (s *FacetService) Colors() []domain.ColorCount {
	return domain.DefaultColors()
}

// PriceRanges returns price statistics and the fixed bucket counts.
func (s *FacetService) PriceRanges(ctx context.Context) (*domain.PriceRanges, error) {
	out, err := s.engine.PriceRanges(ctx)
	if err != nil {
		if s.fallback(ctx, "price_ranges", err) {
			return domain.EmptyPriceRanges(), nil
		}
		return nil, fmt.Errorf("price range facet: %w", err)
	}
	return out, nil
}

// Trending returns the most viewed and sold live products.
func (s *FacetService) Trending(ctx context.Context, limit int) ([]domain.Product, error) {
	out, err := s.engine.Trending(ctx, clampLimit(limit))
	if err != nil {
		if s.fallback(ctx, "trending", err) {
			return []domain.Product{}, nil
		}
		return nil, fmt.Errorf("trending products: %w", err)
	}
	return out, nil
}

// Related returns live products sharing a category or color with id. A
// product absent from the index is a not-found error.
func (s *FacetService) Related(ctx context.Context, id string, limit int) ([]domain.Product, error) {
	out, err := s.engine.Related(ctx, id, clampLimit(limit))
	if err != nil {
		if s.fallback(ctx, "related", err) {
			return []domain.Product{}, nil
		}
		return nil, fmt.Errorf("related products: %w", err)
	}
	return out, nil
}

// Suggest returns up to five autocomplete candidates for q. Queries shorter
// than two characters get no suggestions.
func (s *FacetService) Suggest(ctx context.Context, q string) ([]string, error) {
	q = strings.TrimSpace(q)
	if utf8.RuneCountInString(q) < MinSuggestQueryRune {
		return []string{}, nil
	}

	key := cache.SuggestionsKey(q)
	var out []string
	if s.cache.getJSON(ctx, key, &out) {
		return out, nil
	}

	out, err := s.engine.Suggest(ctx, q, MaxSuggestions)
	if err != nil {
		if s.fallback(ctx, "suggest", err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("suggest: %w", err)
	}

	s.cache.setJSON(ctx, key, out, s.ttls.Suggestions)
	return out, nil
}

// fallback reports whether err should be answered with an empty facet.
func (s *FacetService) fallback(ctx context.Context, endpoint string, err error) bool {
	if !degraded(err) {
		return false
	}
	degradedResponses.WithLabelValues(endpoint).Inc()
	s.logger.WarnContext(ctx, "search engine unavailable, returning empty facet",
		slog.String("facet", endpoint),
		slog.String("error", err.Error()),
	)
	return true
}

func clampLimit(limit int) int {
	if limit < 1 {
		return DefaultFacetLimit
	}
	return min(limit, MaxFacetLimit)
}

// IndexedProduct reads a product straight from the index. Soft-deleted
// documents, which a reindex carries over, read as absent. There is no empty
// form of a by-id read, so an unavailable engine is a 503.
func (s *FacetService) IndexedProduct(ctx context.Context, id string) (*domain.Product, error) {
	doc, err := s.engine.Get(ctx, id)
	if err != nil {
		if degraded(err) {
			return nil, apperrors.ServiceUnavailable("search engine", err)
		}
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("indexed product", id)
		}
		return nil, fmt.Errorf("get indexed product: %w", err)
	}
	if doc.DeletedAt != nil {
		return nil, apperrors.NotFound("indexed product", id)
	}
	p := doc.Product()
	return &p, nil
}
