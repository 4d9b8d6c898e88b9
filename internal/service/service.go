// Package service holds the catalog use cases: product writes kept in
// lockstep with the search index and cache, cached search and facet reads,
// and the index rebuild.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/utafrali/catalog/internal/cache"
	"github.com/utafrali/catalog/internal/domain"
	"github.com/utafrali/catalog/internal/engine"
	"github.com/utafrali/catalog/internal/repository"
	"github.com/utafrali/catalog/internal/storage"
)

// EventPublisher announces catalog changes. Publishing is best effort.
type EventPublisher interface {
	PublishProductCreated(ctx context.Context, product *domain.Product) error
	PublishProductUpdated(ctx context.Context, product *domain.Product) error
	PublishProductDeleted(ctx context.Context, id string, at time.Time) error
}

// Deps are the collaborators shared by the catalog services.
type Deps struct {
	Repo    repository.ProductRepository
	Engine  engine.SearchEngine
	Storage storage.Storage
	Cache   cache.Cache
	Events  EventPublisher
	TTLs    cache.TTLs
	Logger  *slog.Logger
}

// cacheAside wraps a cache so that failures degrade to misses.
type cacheAside struct {
	cache  cache.Cache
	logger *slog.Logger
}

func (c cacheAside) get(ctx context.Context, key string) ([]byte, bool) {
	data, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		cacheErrors.WithLabelValues("get").Inc()
		c.logger.WarnContext(ctx, "cache get failed, treating as miss",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	return data, ok
}

func (c cacheAside) set(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if err := c.cache.Set(ctx, key, data, ttl); err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		c.logger.WarnContext(ctx, "cache set failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

// getJSON decodes a cached value into out. A corrupt entry is a miss.
func (c cacheAside) getJSON(ctx context.Context, key string, out any) bool {
	data, ok := c.get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.WarnContext(ctx, "cached value is not valid json, ignoring",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

func (c cacheAside) setJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.WarnContext(ctx, "encode cache value failed", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	c.set(ctx, key, data, ttl)
}

// invalidate drops every cached search response and product read.
func (c cacheAside) invalidate(ctx context.Context) {
	n, err := c.cache.DeleteByPrefix(ctx, cache.SearchPrefix, cache.ProductPrefix)
	if err != nil {
		cacheErrors.WithLabelValues("invalidate").Inc()
		c.logger.WarnContext(ctx, "cache invalidation failed", slog.String("error", err.Error()))
		return
	}
	c.logger.DebugContext(ctx, "cache invalidated", slog.Int("keys", n))
}

// degraded reports whether err means the search engine cannot serve and the
// caller should fall back to an empty response.
func degraded(err error) bool {
	return errors.Is(err, engine.ErrUnavailable)
}
