package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setEnvs is a helper that sets multiple env vars for the test.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, StorePostgres, cfg.CatalogStore)
	assert.Equal(t, EngineElasticsearch, cfg.SearchEngine)
	assert.Equal(t, []string{"http://localhost:9200"}, cfg.ElasticsearchURLs)
	assert.Equal(t, "products", cfg.ElasticsearchIndex)
	assert.Equal(t, 5, cfg.SearchConnectAttempts)
	assert.Equal(t, 5*time.Second, cfg.SearchConnectBaseDelay)
	assert.False(t, cfg.SearchRequired)
	assert.Equal(t, CacheRedis, cfg.CacheBackend)
	assert.Equal(t, StorageS3, cfg.StorageBackend)
	assert.Equal(t, 5000, cfg.ReindexBatchSize)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_CacheTTLs(t *testing.T) {
	t.Setenv("CACHE_SEARCH_TTL", "1m")

	cfg, err := Load()

	require.NoError(t, err)
	ttls := cfg.CacheTTLs()
	assert.Equal(t, time.Minute, ttls.Search)
	assert.Equal(t, time.Hour, ttls.Categories)
	assert.Equal(t, 10*time.Minute, ttls.Suggestions)
	assert.Equal(t, 5*time.Minute, ttls.Product)
}

func TestLoad_Backends(t *testing.T) {
	setEnvs(t, map[string]string{
		"CATALOG_STORE":   "memory",
		"SEARCH_ENGINE":   "memory",
		"CACHE_BACKEND":   "memory",
		"STORAGE_BACKEND": "memory",
		"KAFKA_BROKERS":   "k1:9092,k2:9092",
	})

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.CatalogStore)
	assert.Equal(t, EngineMemory, cfg.SearchEngine)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		envs map[string]string
		want string
	}{
		{"port", map[string]string{"HTTP_PORT": "0"}, "invalid HTTP port"},
		{"store", map[string]string{"CATALOG_STORE": "mysql"}, "CATALOG_STORE must be one of"},
		{"engine", map[string]string{"SEARCH_ENGINE": "solr"}, "SEARCH_ENGINE must be one of"},
		{"cache", map[string]string{"CACHE_BACKEND": "memcached"}, "CACHE_BACKEND must be one of"},
		{"storage", map[string]string{"STORAGE_BACKEND": "gcs"}, "STORAGE_BACKEND must be one of"},
		{"attempts", map[string]string{"SEARCH_CONNECT_ATTEMPTS": "0"}, "SEARCH_CONNECT_ATTEMPTS"},
		{"batch", map[string]string{"REINDEX_BATCH_SIZE": "20000"}, "REINDEX_BATCH_SIZE"},
		{"sample rate", map[string]string{"OTEL_SAMPLE_RATE": "2.0"}, "OTEL_SAMPLE_RATE must be between 0.0 and 1.0"},
		{"secret", map[string]string{"ENVIRONMENT": "production"}, "ADMIN_JWT_SECRET is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnvs(t, tt.envs)

			cfg, err := Load()

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_DotenvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ELASTICSEARCH_INDEX=catalog_test\nHTTP_PORT=9090\n"), 0o600))
	// Process environment wins over the file.
	t.Setenv("HTTP_PORT", "8181")
	// godotenv sets variables without t.Setenv; restore them afterwards.
	t.Cleanup(func() { os.Unsetenv("ELASTICSEARCH_INDEX") })

	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))

	require.NoError(t, err)
	assert.Equal(t, "catalog_test", cfg.ElasticsearchIndex)
	assert.Equal(t, 8181, cfg.HTTPPort)
}

func TestConfig_Postgres(t *testing.T) {
	setEnvs(t, map[string]string{
		"POSTGRES_HOST":                "db",
		"DB_MAX_CONN_LIFETIME_MINUTES": "5",
	})

	cfg, err := Load()
	require.NoError(t, err)

	pg := cfg.Postgres()
	assert.Equal(t, "db", pg.Host)
	assert.Equal(t, 5*time.Minute, pg.MaxConnLifetime)
	assert.Equal(t, "localhost:6379", cfg.Redis().Addr())
	assert.Equal(t, 500*time.Millisecond, cfg.SlowQueryThreshold())
}
