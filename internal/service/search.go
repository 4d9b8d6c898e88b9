package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/utafrali/catalog/internal/cache"
	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/internal/engine"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

// suggestThreshold is the result count below which a text search also asks
// the engine for spelling alternatives.
const suggestThreshold = 5

// SearchService answers product searches through the response cache.
type SearchService struct {
	engine engine.SearchEngine
	cache  cacheAside
	ttl    time.Duration
	logger *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(d Deps) *SearchService {
	return &SearchService{
		engine: d.Engine,
		cache:  cacheAside{cache: d.Cache, logger: d.Logger},
		ttl:    d.TTLs.Search,
		logger: d.Logger,
	}
}

// SearchOutcome is an encoded search result. Payload is what was stored in
// the cache, so a hit replays the exact bytes of the original miss.
type SearchOutcome struct {
	Payload  []byte
	CacheHit bool
	Degraded bool
}

// Search runs params against the index, serving repeated requests from the
// cache. Pages beyond the result window are rejected before any lookup. When
// the engine is unavailable the empty result shape is returned and not cached.
func (s *SearchService) Search(ctx context.Context, params domain.SearchParams) (*SearchOutcome, error) {
	params.Normalize()
	if err := params.Validate(); err != nil {
		return nil, apperrors.BadRequest("PAGINATION_LIMIT", err.Error())
	}

	key := cache.SearchKey(&params)
	if data, ok := s.cache.get(ctx, key); ok {
		searchCacheRequests.WithLabelValues("hit").Inc()
		return &SearchOutcome{Payload: data, CacheHit: true}, nil
	}
	searchCacheRequests.WithLabelValues("miss").Inc()

	result, err := s.engine.Search(ctx, &params)
	if err != nil {
		if !degraded(err) {
			return nil, fmt.Errorf("search products: %w", err)
		}
		degradedResponses.WithLabelValues("search").Inc()
		s.logger.WarnContext(ctx, "search engine unavailable, returning empty result",
			slog.String("error", err.Error()),
		)
		payload, err := json.Marshal(domain.EmptySearchResult(params.Page))
		if err != nil {
			return nil, fmt.Errorf("encode search result: %w", err)
		}
		return &SearchOutcome{Payload: payload, Degraded: true}, nil
	}

	if q := strings.TrimSpace(params.Query); q != "" && len(result.Products) < suggestThreshold {
		suggestions, err := s.engine.TermSuggestions(ctx, q, suggestThreshold)
		if err != nil {
			s.logger.WarnContext(ctx, "term suggestions failed",
				slog.String("query", q),
				slog.String("error", err.Error()),
			)
		} else if len(suggestions) > 0 {
			result.Suggestions = suggestions
		}
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode search result: %w", err)
	}
	s.cache.set(ctx, key, payload, s.ttl)

	return &SearchOutcome{Payload: payload}, nil
}
