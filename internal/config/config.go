// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Metrics exporters.
const (
	ExporterNone       = "none"
	ExporterPrometheus = "prometheus"
	ExporterStdout     = "stdout"
)

// KnownProviders lists the provider names accepted in LEADENRICH_PROVIDER_ORDER.
var KnownProviders = []string{"hunter", "clearbit", "github"}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	Env        string

	DBDriver    string
	DBPath      string
	DatabaseURL string

	HunterAPIKey   string
	ClearbitAPIKey string
	GitHubToken    string

	ProviderOrder   []string
	ProviderTimeout time.Duration
	CacheTTL        time.Duration

	RateLimitWindow time.Duration
	RateLimitMax    int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AdminToken      string
	MetricsExporter string

	LogLevel  slog.Level
	LogFormat string
}

// IsDevelopment reports whether internal error detail may be exposed.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// UseRedis reports whether rate-limit counters are shared through Redis.
func (c *Config) UseRedis() bool {
	return c.RedisAddr != ""
}

// LoadDotEnv loads variables from the given files, or .env when none are
// named. Missing files are ignored; variables already set are kept.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from LEADENRICH_ environment variables and returns
// a validated Config. Provider credentials are optional; a provider without
// one is skipped unless a request names it.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:      stringVar("LEADENRICH_LISTEN_ADDR", "127.0.0.1:8080"),
		Env:             stringVar("LEADENRICH_ENV", "production"),
		DBDriver:        strings.ToLower(stringVar("LEADENRICH_DB_DRIVER", DriverSQLite)),
		DBPath:          stringVar("LEADENRICH_DB_PATH", "leadenrich.db"),
		DatabaseURL:     os.Getenv("LEADENRICH_DATABASE_URL"),
		HunterAPIKey:    os.Getenv("LEADENRICH_HUNTER_API_KEY"),
		ClearbitAPIKey:  os.Getenv("LEADENRICH_CLEARBIT_API_KEY"),
		GitHubToken:     os.Getenv("LEADENRICH_GITHUB_TOKEN"),
		RedisAddr:       os.Getenv("LEADENRICH_REDIS_ADDR"),
		RedisPassword:   os.Getenv("LEADENRICH_REDIS_PASSWORD"),
		AdminToken:      os.Getenv("LEADENRICH_ADMIN_TOKEN"),
		MetricsExporter: strings.ToLower(stringVar("LEADENRICH_METRICS_EXPORTER", ExporterNone)),
		LogFormat:       strings.ToLower(stringVar("LEADENRICH_LOG_FORMAT", "text")),
	}

	var err error
	if cfg.ProviderTimeout, err = durationVar("LEADENRICH_PROVIDER_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = durationVar("LEADENRICH_CACHE_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = durationVar("LEADENRICH_RATE_LIMIT_WINDOW", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RateLimitMax, err = intVar("LEADENRICH_RATE_LIMIT_MAX", 100); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = intVar("LEADENRICH_REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.ProviderOrder, err = providerOrder(); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = logLevel(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case DriverSQLite:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("LEADENRICH_DATABASE_URL is required when LEADENRICH_DB_DRIVER is postgres")
		}
	default:
		return fmt.Errorf("LEADENRICH_DB_DRIVER has unknown driver %q", c.DBDriver)
	}

	switch c.MetricsExporter {
	case ExporterNone, ExporterPrometheus, ExporterStdout:
	default:
		return fmt.Errorf("LEADENRICH_METRICS_EXPORTER has unknown exporter %q", c.MetricsExporter)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LEADENRICH_LOG_FORMAT has unknown format %q", c.LogFormat)
	}

	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("LEADENRICH_PROVIDER_TIMEOUT must be positive, got %s", c.ProviderTimeout)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("LEADENRICH_CACHE_TTL must not be negative, got %s", c.CacheTTL)
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("LEADENRICH_RATE_LIMIT_WINDOW must be positive, got %s", c.RateLimitWindow)
	}
	if c.RateLimitMax <= 0 {
		return fmt.Errorf("LEADENRICH_RATE_LIMIT_MAX must be positive, got %d", c.RateLimitMax)
	}
	return nil
}

func stringVar(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func durationVar(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	return parsed, nil
}

func intVar(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid integer %q: %w", key, v, err)
	}
	return parsed, nil
}

func providerOrder() ([]string, error) {
	v, ok := os.LookupEnv("LEADENRICH_PROVIDER_ORDER")
	if !ok || strings.TrimSpace(v) == "" {
		return append([]string(nil), KnownProviders...), nil
	}

	var order []string
	seen := make(map[string]bool)
	for _, name := range strings.Split(v, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		if !isKnownProvider(name) {
			return nil, fmt.Errorf("LEADENRICH_PROVIDER_ORDER has unknown provider %q", name)
		}
		seen[name] = true
		order = append(order, name)
	}
	return order, nil
}

func isKnownProvider(name string) bool {
	for _, known := range KnownProviders {
		if name == known {
			return true
		}
	}
	return false
}

func logLevel() (slog.Level, error) {
	v := stringVar("LEADENRICH_LOG_LEVEL", "info")

	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return 0, fmt.Errorf("LEADENRICH_LOG_LEVEL has invalid level %q: %w", v, err)
	}
	return level, nil
}
