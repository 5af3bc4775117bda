package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	DefaultListenAddr      = "0.0.0.0:8080"
	DefaultAllowedOrigin   = "http://localhost:5173"
	DefaultCleanupInterval = 10 * time.Minute
	DefaultShutdownTimeout = 30 * time.Second
)

// DefaultLiveCatalogs are the catalogs offered when databases and tables are listed from the engine.
var DefaultLiveCatalogs = []string{"test_catalog", "prod_catalog", "legacy_catalog"}

// Config is the chat UI server configuration, read from the environment.
type Config struct {
	ListenAddr     string
	MetricsAddr    string
	AllowedOrigins []string

	OpenAIAPIKey  string
	OpenAIBaseURL string

	// CatalogFile replaces the embedded catalog listing. Ignored when EngineDriver is set.
	CatalogFile string

	// EngineDriver and EngineDSN, when set, list databases and tables live from the engine.
	EngineDriver string
	EngineDSN    string
	Dialect      string
	LiveCatalogs []string

	SessionIdleTTL  time.Duration
	CleanupInterval time.Duration
	CatalogCacheTTL time.Duration
	ModelsCacheTTL  time.Duration
	ShutdownTimeout time.Duration
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:    getenv("API_LISTEN_ADDR", DefaultListenAddr),
		MetricsAddr:   os.Getenv("API_METRICS_ADDR"),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		CatalogFile:   os.Getenv("CHAT_CATALOG_FILE"),
		EngineDriver:  os.Getenv("LAKE_ENGINE"),
		EngineDSN:     os.Getenv("LAKE_DSN"),
		Dialect:       os.Getenv("LAKE_DIALECT"),
	}
	if v := os.Getenv("API_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("CHAT_LIVE_CATALOGS"); v != "" {
		cfg.LiveCatalogs = splitList(v)
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"CHAT_SESSION_IDLE_TTL", &cfg.SessionIdleTTL},
		{"CHAT_CLEANUP_INTERVAL", &cfg.CleanupInterval},
		{"CHAT_CATALOG_CACHE_TTL", &cfg.CatalogCacheTTL},
		{"CHAT_MODELS_CACHE_TTL", &cfg.ModelsCacheTTL},
		{"API_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) Validate() error {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{DefaultAllowedOrigin}
	}
	if len(cfg.LiveCatalogs) == 0 {
		cfg.LiveCatalogs = DefaultLiveCatalogs
	}
	if cfg.EngineDriver != "" && cfg.EngineDriver != "duckdb" && cfg.EngineDSN == "" {
		return errors.New("LAKE_DSN is required when LAKE_ENGINE is set")
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"session idle ttl", cfg.SessionIdleTTL},
		{"cleanup interval", cfg.CleanupInterval},
		{"catalog cache ttl", cfg.CatalogCacheTTL},
		{"models cache ttl", cfg.ModelsCacheTTL},
		{"shutdown timeout", cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.d < 0 {
			return fmt.Errorf("%s must not be negative", d.name)
		}
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
