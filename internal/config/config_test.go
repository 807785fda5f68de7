package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every LEADENRICH_ env var that Load() reads.
var allConfigKeys = []string{
	"LEADENRICH_LISTEN_ADDR",
	"LEADENRICH_ENV",
	"LEADENRICH_DB_DRIVER",
	"LEADENRICH_DB_PATH",
	"LEADENRICH_DATABASE_URL",
	"LEADENRICH_HUNTER_API_KEY",
	"LEADENRICH_CLEARBIT_API_KEY",
	"LEADENRICH_GITHUB_TOKEN",
	"LEADENRICH_PROVIDER_ORDER",
	"LEADENRICH_PROVIDER_TIMEOUT",
	"LEADENRICH_CACHE_TTL",
	"LEADENRICH_RATE_LIMIT_WINDOW",
	"LEADENRICH_RATE_LIMIT_MAX",
	"LEADENRICH_REDIS_ADDR",
	"LEADENRICH_REDIS_PASSWORD",
	"LEADENRICH_REDIS_DB",
	"LEADENRICH_ADMIN_TOKEN",
	"LEADENRICH_METRICS_EXPORTER",
	"LEADENRICH_LOG_LEVEL",
	"LEADENRICH_LOG_FORMAT",
}

// isolateConfigEnv saves and unsets all LEADENRICH_ env vars so tests don't
// inherit values from the host environment (e.g. a running dev server).
// t.Cleanup restores original values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "production", cfg.Env)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "leadenrich.db", cfg.DBPath)
	assert.Equal(t, []string{"hunter", "clearbit", "github"}, cfg.ProviderOrder)
	assert.Equal(t, 10*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 15*time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 100, cfg.RateLimitMax)
	assert.False(t, cfg.UseRedis())
	assert.Equal(t, ExporterNone, cfg.MetricsExporter)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("LEADENRICH_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("LEADENRICH_ENV", "development")
	t.Setenv("LEADENRICH_DB_DRIVER", "Postgres")
	t.Setenv("LEADENRICH_DATABASE_URL", "postgres://localhost/leadenrich")
	t.Setenv("LEADENRICH_HUNTER_API_KEY", "hk")
	t.Setenv("LEADENRICH_PROVIDER_ORDER", " clearbit , hunter,clearbit")
	t.Setenv("LEADENRICH_PROVIDER_TIMEOUT", "3s")
	t.Setenv("LEADENRICH_CACHE_TTL", "1h")
	t.Setenv("LEADENRICH_RATE_LIMIT_WINDOW", "1m")
	t.Setenv("LEADENRICH_RATE_LIMIT_MAX", "2")
	t.Setenv("LEADENRICH_REDIS_ADDR", "localhost:6379")
	t.Setenv("LEADENRICH_REDIS_DB", "3")
	t.Setenv("LEADENRICH_METRICS_EXPORTER", "prometheus")
	t.Setenv("LEADENRICH_LOG_LEVEL", "debug")
	t.Setenv("LEADENRICH_LOG_FORMAT", "json")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, "hk", cfg.HunterAPIKey)
	assert.Equal(t, []string{"clearbit", "hunter"}, cfg.ProviderOrder)
	assert.Equal(t, 3*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 2, cfg.RateLimitMax)
	assert.True(t, cfg.UseRedis())
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, ExporterPrometheus, cfg.MetricsExporter)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad duration", "LEADENRICH_PROVIDER_TIMEOUT", "soon"},
		{"zero timeout", "LEADENRICH_PROVIDER_TIMEOUT", "0s"},
		{"negative ttl", "LEADENRICH_CACHE_TTL", "-1h"},
		{"bad window", "LEADENRICH_RATE_LIMIT_WINDOW", "forever"},
		{"bad max", "LEADENRICH_RATE_LIMIT_MAX", "lots"},
		{"zero max", "LEADENRICH_RATE_LIMIT_MAX", "0"},
		{"bad redis db", "LEADENRICH_REDIS_DB", "x"},
		{"unknown driver", "LEADENRICH_DB_DRIVER", "mysql"},
		{"unknown provider", "LEADENRICH_PROVIDER_ORDER", "hunter,zoominfo"},
		{"unknown exporter", "LEADENRICH_METRICS_EXPORTER", "jaeger"},
		{"unknown level", "LEADENRICH_LOG_LEVEL", "loud"},
		{"unknown format", "LEADENRICH_LOG_FORMAT", "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateConfigEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_PostgresRequiresURL(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("LEADENRICH_DB_DRIVER", "postgres")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "LEADENRICH_DATABASE_URL")
}

func TestLoadDotEnv(t *testing.T) {
	isolateConfigEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LEADENRICH_RATE_LIMIT_MAX=7\nLEADENRICH_ADMIN_TOKEN=from-file\n"), 0o600))
	t.Setenv("LEADENRICH_ADMIN_TOKEN", "from-env")

	require.NoError(t, LoadDotEnv(path))
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 7, cfg.RateLimitMax)
	assert.Equal(t, "from-env", cfg.AdminToken)
}

func TestLoadDotEnv_MissingFileIgnored(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}
