package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/utafrali/catalog/internal/config"
	handler "github.com/utafrali/catalog/internal/handler/http"
	"github.com/utafrali/catalog/internal/service"
	"github.com/utafrali/catalog/pkg/health"
	"github.com/utafrali/catalog/pkg/httputil"
	"github.com/utafrali/catalog/pkg/middleware"
	"github.com/utafrali/catalog/pkg/tracing"
)

// App wires together all dependencies and runs the catalog service.
type App struct {
	cfg           *config.Config
	logger        *slog.Logger
	components    *Components
	rateLimiter   *middleware.RateLimiter
	httpServer    *http.Server
	traceShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	httputil.ExposeErrorDetails(cfg.IsDevelopment())

	traceShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:  ServiceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTELEndpoint,
		SampleRate:   cfg.OTELSampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	components, err := Build(ctx, cfg, logger)
	if err != nil {
		_ = traceShutdown(context.Background())
		return nil, err
	}

	// Build the service layer.
	deps := components.Deps(cfg.CacheTTLs())

	healthHandler := health.NewHandler()
	components.RegisterHealth(healthHandler)

	var limiter *middleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)
	}

	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET is empty, admin endpoints reject every token")
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	cors.Environment = cfg.Environment

	router := handler.NewRouter(handler.RouterConfig{
		ServiceName:       ServiceName,
		Products:          service.NewProductService(deps, cfg.MaxUploadBytes),
		Search:            service.NewSearchService(deps),
		Facets:            service.NewFacetService(deps),
		Index:             service.NewIndexService(deps),
		Health:            healthHandler,
		Auth:              adminValidator(cfg.AdminJWTSecret),
		RateLimiter:       limiter,
		CORS:              cors,
		PprofCIDRs:        cfg.PprofAllowedCIDRs,
		MaxFileSize:       cfg.MaxUploadBytes,
		ReindexBatchSize:  cfg.ReindexBatchSize,
		RequestTimeout:    cfg.RequestTimeout,
		PublicCacheMaxAge: cfg.PublicCacheMaxAge,
		Logger:            logger,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &App{
		cfg:           cfg,
		logger:        logger,
		components:    components,
		rateLimiter:   limiter,
		httpServer:    httpServer,
		traceShutdown: traceShutdown,
	}, nil
}

// adminValidator rejects every token when no secret is configured.
func adminValidator(secret string) middleware.TokenValidator {
	if secret == "" {
		return func(string) (*middleware.Claims, error) {
			return nil, errors.New("admin authentication is not configured")
		}
	}
	return middleware.HMACValidator([]byte(secret))
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server, blocking until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.rateLimiter != nil {
		a.rateLimiter.Stop()
	}

	if err := a.components.Close(); err != nil {
		a.logger.Error("backend close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.traceShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
