package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/utafrali/catalog/internal/cache"
	"github.com/utafrali/catalog/internal/config"
	"github.com/utafrali/catalog/internal/engine"
	esengine "github.com/utafrali/catalog/internal/engine/elasticsearch"
	enginemem "github.com/utafrali/catalog/internal/engine/memory"
	"github.com/utafrali/catalog/internal/event"
	"github.com/utafrali/catalog/internal/repository"
	repomem "github.com/utafrali/catalog/internal/repository/memory"
	"github.com/utafrali/catalog/internal/repository/mongodb"
	"github.com/utafrali/catalog/internal/repository/postgres"
	"github.com/utafrali/catalog/internal/service"
	"github.com/utafrali/catalog/internal/storage"
	storagemem "github.com/utafrali/catalog/internal/storage/memory"
	"github.com/utafrali/catalog/internal/storage/s3"
	"github.com/utafrali/catalog/migrations"
	"github.com/utafrali/catalog/pkg/database"
	"github.com/utafrali/catalog/pkg/health"
	pkgkafka "github.com/utafrali/catalog/pkg/kafka"
)

// ServiceName labels logs, metrics and traces.
const ServiceName = "catalog-service"

// Components are the backends selected by configuration. The server and the
// command line tools share them.
type Components struct {
	Repo    repository.ProductRepository
	Engine  *engine.Guard
	Cache   cache.Cache
	Storage storage.Storage
	Events  service.EventPublisher

	checks  []healthCheck
	closers []func() error
	logger  *slog.Logger
}

type healthCheck struct {
	name     string
	check    health.Checker
	critical bool
}

// Build connects every backend named in cfg. A failing search engine leaves
// the catalog degraded unless SEARCH_REQUIRED is set; every other backend is
// required.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *Components, err error) {
	c := &Components{logger: logger}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	if err := c.openStore(ctx, cfg); err != nil {
		return nil, err
	}
	if err := c.openEngine(ctx, cfg); err != nil {
		return nil, err
	}
	if err := c.openCache(ctx, cfg); err != nil {
		return nil, err
	}
	if err := c.openStorage(ctx, cfg); err != nil {
		return nil, err
	}
	c.openEvents(cfg)
	return c, nil
}

func (c *Components) onClose(fn func() error) {
	c.closers = append(c.closers, fn)
}

func (c *Components) register(name string, check health.Checker, critical bool) {
	c.checks = append(c.checks, healthCheck{name: name, check: check, critical: critical})
}

func (c *Components) openStore(ctx context.Context, cfg *config.Config) error {
	switch cfg.CatalogStore {
	case config.StorePostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), c.logger)
		if err != nil {
			return fmt.Errorf("init postgres: %w", err)
		}
		c.onClose(func() error { pool.Close(); return nil })

		if err := database.RunMigrations(ctx, pool, migrations.FS, c.logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		if err := prometheus.Register(database.NewPoolStatsCollector(pool, ServiceName)); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return fmt.Errorf("register pool metrics: %w", err)
			}
		}

		tracer := database.NewQueryTracer("postgresql", cfg.SlowQueryThreshold(), c.logger)
		c.Repo = postgres.NewProductRepository(pool, tracer)
		c.logger.Info("postgres product store initialized",
			slog.String("host", cfg.PostgresHost),
			slog.String("database", cfg.PostgresDB),
		)

	case config.StoreMongo:
		client, err := database.NewMongoClient(ctx, database.MongoConfig{URI: cfg.MongoURI, Database: cfg.MongoDatabase}, c.logger)
		if err != nil {
			return fmt.Errorf("init mongo: %w", err)
		}
		c.onClose(func() error { return client.Disconnect(context.Background()) })

		tracer := database.NewQueryTracer("mongodb", cfg.SlowQueryThreshold(), c.logger)
		repo := mongodb.NewProductRepository(client.Database(cfg.MongoDatabase), tracer)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("ensure mongo indexes: %w", err)
		}
		c.Repo = repo
		c.logger.Info("mongo product store initialized", slog.String("database", cfg.MongoDatabase))

	default:
		c.Repo = repomem.NewProductRepository()
		c.logger.Warn("in-memory product store initialized; data is lost on restart")
	}

	c.register("catalog_store", c.Repo.Ping, true)
	return nil
}

func (c *Components) openEngine(ctx context.Context, cfg *config.Config) error {
	var (
		inner  engine.SearchEngine
		ensure func(context.Context) error
	)
	switch cfg.SearchEngine {
	case config.EngineElasticsearch:
		es, err := esengine.New(esengine.Config{
			Addresses: cfg.ElasticsearchURLs,
			Username:  cfg.ElasticsearchUsername,
			Password:  cfg.ElasticsearchPassword,
			Index:     cfg.ElasticsearchIndex,
		}, c.logger)
		if err != nil {
			return fmt.Errorf("init elasticsearch engine: %w", err)
		}
		inner, ensure = es, es.EnsureIndex
	default:
		inner = enginemem.New()
		c.logger.Info("in-memory search engine initialized")
	}

	available := true
	err := engine.ConnectWithRetry(ctx, inner.Ping, cfg.SearchConnectAttempts, cfg.SearchConnectBaseDelay, c.logger)
	if err == nil && ensure != nil {
		err = ensure(ctx)
	}
	if err != nil {
		if cfg.SearchRequired {
			return fmt.Errorf("connect search engine: %w", err)
		}
		available = false
		c.logger.Error("search engine unavailable, starting in degraded mode",
			slog.String("error", err.Error()),
		)
	} else {
		c.logger.Info("search engine connected",
			slog.String("engine", cfg.SearchEngine),
			slog.String("index", cfg.ElasticsearchIndex),
		)
	}

	guardCfg := engine.DefaultGuardConfig()
	guardCfg.HeartbeatInterval = cfg.SearchHeartbeatInterval
	guardCfg.OnRecover = ensure
	c.Engine = engine.NewGuard(inner, guardCfg, available, c.logger)
	c.Engine.Start()
	c.onClose(func() error { c.Engine.Close(); return nil })

	c.register("search_engine", inner.Ping, cfg.SearchRequired)
	return nil
}

func (c *Components) openCache(ctx context.Context, cfg *config.Config) error {
	if cfg.CacheBackend != config.CacheRedis {
		mc := cache.NewMemoryCache(time.Minute)
		c.Cache = mc
		c.register("cache", mc.Ping, false)
		return nil
	}

	client, err := database.NewRedisClient(ctx, cfg.Redis(), c.logger)
	if err != nil {
		return fmt.Errorf("init redis: %w", err)
	}
	c.onClose(client.Close)

	rc := cache.NewRedisCache(client)
	c.Cache = rc
	// The catalog answers from the store and index when the cache is down.
	c.register("redis", rc.Ping, false)
	return nil
}

func (c *Components) openStorage(ctx context.Context, cfg *config.Config) error {
	if cfg.StorageBackend != config.StorageS3 {
		c.Storage = storagemem.New(cfg.MinioPublicURL, cfg.MinioBucket)
		return nil
	}

	st, err := s3.New(ctx, s3.Config{
		Endpoint:  cfg.MinioEndpoint,
		PublicURL: cfg.MinioPublicURL,
		Region:    cfg.MinioRegion,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
	}, c.logger)
	if err != nil {
		return fmt.Errorf("init object storage: %w", err)
	}
	if cfg.MinioEnsureBucket {
		if err := st.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("ensure bucket: %w", err)
		}
	}
	c.Storage = st
	return nil
}

func (c *Components) openEvents(cfg *config.Config) {
	if len(cfg.KafkaBrokers) == 0 {
		c.Events = event.Noop{}
		c.logger.Info("no kafka brokers configured, catalog events disabled")
		return
	}

	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), c.logger)
	c.onClose(producer.Close)
	c.Events = event.NewProducer(producer, c.logger)
	c.register("kafka", producer.Ping, false)
	c.logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
}

// Deps returns the service dependencies backed by these components.
func (c *Components) Deps(ttls cache.TTLs) service.Deps {
	return service.Deps{
		Repo:    c.Repo,
		Engine:  c.Engine,
		Storage: c.Storage,
		Cache:   c.Cache,
		Events:  c.Events,
		TTLs:    ttls,
		Logger:  c.logger,
	}
}

// RegisterHealth adds a readiness check per backend.
func (c *Components) RegisterHealth(h *health.Handler) {
	for _, hc := range c.checks {
		if hc.critical {
			h.Register(hc.name, hc.check)
		} else {
			h.RegisterOptional(hc.name, hc.check)
		}
	}
}

// Close releases backends in reverse order of opening.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
