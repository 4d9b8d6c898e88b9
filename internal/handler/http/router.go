package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/catalog/internal/service"
	"github.com/utafrali/catalog/pkg/health"
	"github.com/utafrali/catalog/pkg/middleware"
)

// AdminRole is the token role allowed on /api/v1/admin.
const AdminRole = "admin"

// RouterConfig carries everything NewRouter mounts.
type RouterConfig struct {
	ServiceName string

	Products *service.ProductService
	Search   *service.SearchService
	Facets   *service.FacetService
	Index    *service.IndexService
	Health   *health.Handler

	// Auth validates admin bearer tokens.
	Auth middleware.TokenValidator
	// RateLimiter guards the public API. Nil disables rate limiting.
	RateLimiter *middleware.RateLimiter
	CORS        middleware.CORSConfig
	PprofCIDRs  []string

	MaxFileSize      int64
	ReindexBatchSize int
	// RequestTimeout bounds public requests. Admin routes are not bounded so
	// a reindex can run to completion.
	RequestTimeout time.Duration
	// PublicCacheMaxAge is the Cache-Control max-age, in seconds, sent on
	// public reads. Zero omits the header.
	PublicCacheMaxAge int

	Logger *slog.Logger
}

// NewRouter creates a chi router with all catalog routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	productHandler := NewProductHandler(cfg.Products, cfg.MaxFileSize, logger)
	searchHandler := NewSearchHandler(cfg.Search, logger)
	facetHandler := NewFacetHandler(cfg.Facets, logger)
	adminHandler := NewAdminHandler(cfg.Index, cfg.ReindexBatchSize, logger)

	r.Route("/api/v1", func(r chi.Router) {
		// Public reads
		r.Group(func(r chi.Router) {
			if cfg.RateLimiter != nil {
				r.Use(cfg.RateLimiter.Handler)
			}
			if cfg.RequestTimeout > 0 {
				r.Use(chimw.Timeout(cfg.RequestTimeout))
			}
			if cfg.PublicCacheMaxAge > 0 {
				r.Use(middleware.CacheControl(cfg.PublicCacheMaxAge))
			}

			r.Get("/products", productHandler.ListProducts)
			r.Get("/products/trending", facetHandler.Trending)
			r.Get("/products/{id}", productHandler.GetProduct)
			r.Get("/products/{id}/related", facetHandler.Related)

			r.Get("/search", searchHandler.Search)
			r.Get("/search/suggest", facetHandler.Suggest)

			r.Get("/facets/categories", facetHandler.Categories)
			r.Get("/facets/colors", facetHandler.Colors)
			r.Get("/facets/price-ranges", facetHandler.PriceRanges)

			r.Get("/index/products/{id}", facetHandler.IndexedProduct)
		})

		// Admin
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.NoStore)
			r.Use(middleware.Auth(cfg.Auth))
			r.Use(middleware.RequireRole(AdminRole))

			r.Group(func(r chi.Router) {
				r.Use(RequireContentType("multipart/form-data"))
				r.Post("/products", productHandler.CreateProduct)
				r.Put("/products/{id}", productHandler.UpdateProduct)
			})
			r.Delete("/products/{id}", productHandler.DeleteProduct)

			r.Post("/reindex", adminHandler.Reindex)
			r.Delete("/index/products/{id}", adminHandler.DeleteIndexedProduct)
		})
	})

	return r
}
