package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/utafrali/catalog/internal/cache"
	pkgconfig "github.com/utafrali/catalog/pkg/config"
	"github.com/utafrali/catalog/pkg/database"
)

// Backend names accepted by the selector variables.
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"

	EngineElasticsearch = "elasticsearch"
	EngineMemory        = "memory"

	CacheRedis  = "redis"
	CacheMemory = "memory"

	StorageS3     = "s3"
	StorageMemory = "memory"
)

// Config holds all configuration for the catalog service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort          int           `env:"HTTP_PORT" envDefault:"8080"`
	RequestTimeout    time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	PublicCacheMaxAge int           `env:"HTTP_PUBLIC_CACHE_MAX_AGE" envDefault:"0"`

	// Product store selection (postgres, mongo or memory)
	CatalogStore string `env:"CATALOG_STORE" envDefault:"postgres"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"catalog"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"catalog_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"catalog"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// MongoDB
	MongoURI      string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"catalog"`

	// Search engine selection (elasticsearch or memory)
	SearchEngine            string        `env:"SEARCH_ENGINE" envDefault:"elasticsearch"`
	ElasticsearchURLs       []string      `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200" envSeparator:","`
	ElasticsearchUsername   string        `env:"ELASTICSEARCH_USERNAME"`
	ElasticsearchPassword   string        `env:"ELASTICSEARCH_PASSWORD"`
	ElasticsearchIndex      string        `env:"ELASTICSEARCH_INDEX" envDefault:"products"`
	SearchRequired          bool          `env:"SEARCH_REQUIRED" envDefault:"false"`
	SearchConnectAttempts   int           `env:"SEARCH_CONNECT_ATTEMPTS" envDefault:"5"`
	SearchConnectBaseDelay  time.Duration `env:"SEARCH_CONNECT_BASE_DELAY" envDefault:"5s"`
	SearchHeartbeatInterval time.Duration `env:"SEARCH_HEARTBEAT_INTERVAL" envDefault:"15s"`

	// Cache selection (redis or memory)
	CacheBackend        string        `env:"CACHE_BACKEND" envDefault:"redis"`
	RedisHost           string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort           int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword       string        `env:"REDIS_PASSWORD"`
	RedisDB             int           `env:"REDIS_DB" envDefault:"0"`
	CacheSearchTTL      time.Duration `env:"CACHE_SEARCH_TTL" envDefault:"300s"`
	CacheCategoriesTTL  time.Duration `env:"CACHE_CATEGORIES_TTL" envDefault:"3600s"`
	CacheSuggestionsTTL time.Duration `env:"CACHE_SUGGESTIONS_TTL" envDefault:"600s"`
	CacheProductTTL     time.Duration `env:"CACHE_PRODUCT_TTL" envDefault:"300s"`

	// Image storage selection (s3 or memory)
	StorageBackend    string `env:"STORAGE_BACKEND" envDefault:"s3"`
	MinioEndpoint     string `env:"MINIO_ENDPOINT" envDefault:"http://localhost:9000"`
	MinioPublicURL    string `env:"MINIO_PUBLIC_URL"`
	MinioRegion       string `env:"MINIO_REGION" envDefault:"us-east-1"`
	MinioAccessKey    string `env:"MINIO_ACCESS_KEY" envDefault:"minioadmin"`
	MinioSecretKey    string `env:"MINIO_SECRET_KEY" envDefault:"minioadmin"`
	MinioBucket       string `env:"MINIO_BUCKET" envDefault:"products"`
	MaxUploadBytes    int64  `env:"UPLOAD_MAX_FILE_SIZE" envDefault:"5242880"`
	MinioEnsureBucket bool   `env:"MINIO_ENSURE_BUCKET" envDefault:"true"`

	// Kafka. Empty disables event publishing.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// Admin API
	AdminJWTSecret string `env:"ADMIN_JWT_SECRET"`

	// Rate limiting on the public API. Zero RPS disables it.
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"50"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"100"`

	ReindexBatchSize int `env:"REINDEX_BATCH_SIZE" envDefault:"5000"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// OpenTelemetry. Empty endpoint disables tracing.
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from the environment, after any dotenv files.
func Load(dotenvFiles ...string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg, dotenvFiles...); err != nil {
		return nil, fmt.Errorf("load catalog config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if err := oneOf("CATALOG_STORE", c.CatalogStore, StorePostgres, StoreMongo, StoreMemory); err != nil {
		return err
	}
	if err := oneOf("SEARCH_ENGINE", c.SearchEngine, EngineElasticsearch, EngineMemory); err != nil {
		return err
	}
	if err := oneOf("CACHE_BACKEND", c.CacheBackend, CacheRedis, CacheMemory); err != nil {
		return err
	}
	if err := oneOf("STORAGE_BACKEND", c.StorageBackend, StorageS3, StorageMemory); err != nil {
		return err
	}
	if c.CatalogStore == StorePostgres && (c.PostgresHost == "" || c.PostgresUser == "") {
		return errors.New("POSTGRES_HOST and POSTGRES_USER are required")
	}
	if c.CatalogStore == StoreMongo && c.MongoURI == "" {
		return errors.New("MONGO_URI is required")
	}
	if c.SearchEngine == EngineElasticsearch && len(c.ElasticsearchURLs) == 0 {
		return errors.New("ELASTICSEARCH_URL is required")
	}
	if c.SearchConnectAttempts < 1 {
		return fmt.Errorf("SEARCH_CONNECT_ATTEMPTS must be at least 1, got %d", c.SearchConnectAttempts)
	}
	if c.AdminJWTSecret == "" && c.Environment == "production" {
		return errors.New("ADMIN_JWT_SECRET is required in production")
	}
	if c.ReindexBatchSize < 1 || c.ReindexBatchSize > 10000 {
		return fmt.Errorf("REINDEX_BATCH_SIZE must be between 1 and 10000, got %d", c.ReindexBatchSize)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_FILE_SIZE must be positive, got %d", c.MaxUploadBytes)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative, got %f", c.RateLimitRPS)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

func oneOf(key, value string, allowed ...string) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	return fmt.Errorf("%s must be one of %v, got %q", key, allowed, value)
}

// Postgres returns the pool settings for the configured database.
func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Redis returns the redis connection settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// CacheTTLs returns the expiry of each cached family.
func (c *Config) CacheTTLs() cache.TTLs {
	return cache.TTLs{
		Search:      c.CacheSearchTTL,
		Categories:  c.CacheCategoriesTTL,
		Suggestions: c.CacheSuggestionsTTL,
		Product:     c.CacheProductTTL,
	}
}

// SlowQueryThreshold is the duration above which store queries are logged.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryThresholdMs) * time.Millisecond
}

// IsDevelopment reports whether error details may be exposed to clients.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
