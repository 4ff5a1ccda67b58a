// Package config loads agentweb's runtime configuration from
// environment variables, optionally layered over an AGENTWEB_CONFIG_FILE
// YAML file.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Browser   BrowserConfig   `yaml:"browser"`
	Scraper   ScraperConfig   `yaml:"scraper"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Cache     CacheConfig     `yaml:"cache"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// CacheConfig controls the persistent result cache (spec §4.F).
type CacheConfig struct {
	TTLMs      int64  `yaml:"ttlMs"`      // default: 600000
	MaxEntries int    `yaml:"maxEntries"` // default: 500
	DBPath     string `yaml:"dbPath"`     // default: "$HOME/.agentweb/cache.db"
	Verbose    bool   `yaml:"verbose"`
}

// ServerConfig controls the HTTP host process.
type ServerConfig struct {
	Host string `yaml:"host"` // default: "0.0.0.0"
	Port int    `yaml:"port"` // default: 8080
	Mode string `yaml:"mode"` // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the headless browser renderer.
type BrowserConfig struct {
	Headless     bool   `yaml:"headless"` // default: true
	MinPages     int    `yaml:"minPages"` // default: 1
	MaxPages     int    `yaml:"maxPages"` // default: 5
	NoSandbox    bool   `yaml:"noSandbox"`
	BrowserBin   string `yaml:"browserBin"`
	DefaultProxy string `yaml:"defaultProxy"`
}

// ScraperConfig holds fetch timeout and resource-blocking settings.
// Load fills them in, but the server does not pass them on: the lite
// and browser renderers use their own built-in timeouts and blocked
// resource types.
type ScraperConfig struct {
	DefaultTimeout       time.Duration `yaml:"defaultTimeout"`       // default: 15s
	MaxTimeout           time.Duration `yaml:"maxTimeout"`           // default: 120s
	NavigationTimeout    time.Duration `yaml:"navigationTimeout"`    // default: 30s
	BlockedResourceTypes []string      `yaml:"blockedResourceTypes"` // default: ["Image", "Media", "Font"]
}

// AuthConfig controls API key authentication on the HTTP host process.
type AuthConfig struct {
	Enabled bool     `yaml:"enabled"` // default: false
	APIKeys []string `yaml:"apiKeys"`
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requestsPerSecond"` // default: 5
	Burst             int     `yaml:"burst"`             // default: 10
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // default: "info"
	Format string `yaml:"format"` // "json" or "text"; default: "json"
}

// MetricsConfig controls the Prometheus /metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Load builds a Config from defaults, then a YAML file at
// AGENTWEB_CONFIG_FILE if set, then environment variables, each layer
// overriding the one before it.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("AGENTWEB_CONFIG_FILE"); path != "" {
		if err := loadYAMLFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func defaults() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080, Mode: "release"},
		Browser: BrowserConfig{
			Headless: true,
			MinPages: 1,
			MaxPages: 5,
		},
		Scraper: ScraperConfig{
			DefaultTimeout:       15 * time.Second,
			MaxTimeout:           120 * time.Second,
			NavigationTimeout:    30 * time.Second,
			BlockedResourceTypes: []string{"Image", "Media", "Font"},
		},
		Auth: AuthConfig{Enabled: false},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 5,
			Burst:             10,
		},
		Cache: CacheConfig{
			TTLMs:      600000,
			MaxEntries: 500,
			DBPath:     filepath.Join(home, ".agentweb", "cache.db"),
		},
		Log:     LogConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnv(cfg *Config) {
	cfg.Server.Host = envOr("AGENTWEB_HOST", cfg.Server.Host)
	cfg.Server.Port = envIntOr("AGENTWEB_PORT", cfg.Server.Port)
	cfg.Server.Mode = envOr("AGENTWEB_MODE", cfg.Server.Mode)

	cfg.Browser.Headless = envBoolOr("AGENTWEB_HEADLESS", cfg.Browser.Headless)
	cfg.Browser.MinPages = envIntOr("AGENTWEB_MIN_PAGES", cfg.Browser.MinPages)
	cfg.Browser.MaxPages = envIntOr("AGENTWEB_MAX_PAGES", cfg.Browser.MaxPages)
	cfg.Browser.NoSandbox = envBoolOr("AGENTWEB_NO_SANDBOX", cfg.Browser.NoSandbox)
	cfg.Browser.BrowserBin = envOr("AGENTWEB_BROWSER_BIN", cfg.Browser.BrowserBin)
	cfg.Browser.DefaultProxy = envOr("AGENTWEB_PROXY", cfg.Browser.DefaultProxy)

	cfg.Scraper.DefaultTimeout = envDurationOr("AGENTWEB_DEFAULT_TIMEOUT", cfg.Scraper.DefaultTimeout)
	cfg.Scraper.MaxTimeout = envDurationOr("AGENTWEB_MAX_TIMEOUT", cfg.Scraper.MaxTimeout)
	cfg.Scraper.NavigationTimeout = envDurationOr("AGENTWEB_NAV_TIMEOUT", cfg.Scraper.NavigationTimeout)
	cfg.Scraper.BlockedResourceTypes = envSliceOr("AGENTWEB_BLOCKED_RESOURCES", cfg.Scraper.BlockedResourceTypes)

	cfg.Auth.Enabled = envBoolOr("AGENTWEB_AUTH_ENABLED", cfg.Auth.Enabled)
	cfg.Auth.APIKeys = envSliceOr("AGENTWEB_API_KEYS", cfg.Auth.APIKeys)

	cfg.RateLimit.RequestsPerSecond = envFloatOr("AGENTWEB_RATE_RPS", cfg.RateLimit.RequestsPerSecond)
	cfg.RateLimit.Burst = envIntOr("AGENTWEB_RATE_BURST", cfg.RateLimit.Burst)

	cfg.Cache.TTLMs = envInt64Or("AGENTWEB_CACHE_TTL_MS", cfg.Cache.TTLMs)
	cfg.Cache.MaxEntries = envIntOr("AGENTWEB_CACHE_MAX_ENTRIES", cfg.Cache.MaxEntries)
	cfg.Cache.DBPath = envOr("AGENTWEB_CACHE_DB_PATH", cfg.Cache.DBPath)
	cfg.Cache.Verbose = envBoolOr("AGENTWEB_CACHE_VERBOSE", cfg.Cache.Verbose)

	cfg.Log.Level = envOr("AGENTWEB_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envOr("AGENTWEB_LOG_FORMAT", cfg.Log.Format)

	cfg.Metrics.Enabled = envBoolOr("AGENTWEB_METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Path = envOr("AGENTWEB_METRICS_PATH", cfg.Metrics.Path)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envInt64Or(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
