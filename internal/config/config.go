// Package config loads and validates console configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. SEARCHCONSOLE_GATEWAY_BASE_URL.
const EnvPrefix = "SEARCHCONSOLE"

// Session store kinds.
const (
	SessionStoreMemory   = "memory"
	SessionStoreFile     = "file"
	SessionStorePostgres = "postgres"
)

// Query-log providers.
const (
	QueryLogNoop   = "noop"
	QueryLogLog    = "log"
	QueryLogMemory = "memory"
	QueryLogPubSub = "pubsub"
)

// Config captures all console configuration knobs loaded via Viper.
type Config struct {
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Search    SearchConfig    `mapstructure:"search"`
	Session   SessionConfig   `mapstructure:"session"`
	Health    HealthConfig    `mapstructure:"health"`
	QueryLog  QueryLogConfig  `mapstructure:"querylog"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// GatewayConfig points at the API gateway every backend call goes through.
type GatewayConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// DiscoveryConfig points at the service registry.
type DiscoveryConfig struct {
	RegistryURL string `mapstructure:"registry_url"`
}

// HTTPConfig configures outbound timeouts, retries and rate limits.
type HTTPConfig struct {
	TimeoutSeconds   int     `mapstructure:"timeout_seconds"`
	MaxRetries       int     `mapstructure:"max_retries"`
	BackoffInitialMs int     `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int     `mapstructure:"backoff_max_ms"`
	RateLimitRPS     float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst   int     `mapstructure:"rate_limit_burst"`
}

// CacheConfig sets cache lifetimes.
type CacheConfig struct {
	TTLSeconds             int `mapstructure:"ttl_seconds"`
	SuggestionTTLSeconds   int `mapstructure:"suggestion_ttl_seconds"`
	CleanupIntervalSeconds int `mapstructure:"cleanup_interval_seconds"`
}

// SearchConfig tunes search defaults and suggestion debouncing.
type SearchConfig struct {
	DebounceMs      int `mapstructure:"debounce_ms"`
	DefaultTopK     int `mapstructure:"default_top_k"`
	DefaultPageSize int `mapstructure:"default_page_size"`
}

// SessionConfig selects where the session record lives.
type SessionConfig struct {
	Store              string `mapstructure:"store"`
	Path               string `mapstructure:"path"`
	DSN                string `mapstructure:"dsn"`
	Table              string `mapstructure:"table"`
	Key                string `mapstructure:"key"`
	RefreshSkewSeconds int    `mapstructure:"refresh_skew_seconds"`
}

// HealthConfig bounds health probes.
type HealthConfig struct {
	ProbeTimeoutSeconds int `mapstructure:"probe_timeout_seconds"`
}

// QueryLogConfig selects the search query log sink.
type QueryLogConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// ServerConfig controls the console HTTP server.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// LoadDotEnv loads a .env file into the process environment. A missing file is
// not an error; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("gateway.base_url", "http://localhost:8080")
	v.SetDefault("discovery.registry_url", "http://localhost:8761")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 1000)
	v.SetDefault("http.backoff_max_ms", 10000)
	v.SetDefault("http.rate_limit_rps", 0)
	v.SetDefault("http.rate_limit_burst", 10)
	v.SetDefault("cache.ttl_seconds", 300)
	v.SetDefault("cache.suggestion_ttl_seconds", 60)
	v.SetDefault("cache.cleanup_interval_seconds", 60)
	v.SetDefault("search.debounce_ms", 300)
	v.SetDefault("search.default_top_k", 50)
	v.SetDefault("search.default_page_size", 10)
	v.SetDefault("session.store", SessionStoreFile)
	v.SetDefault("session.path", ".searchconsole/session.json")
	v.SetDefault("session.table", "console_sessions")
	v.SetDefault("session.key", "default")
	v.SetDefault("session.refresh_skew_seconds", 30)
	v.SetDefault("health.probe_timeout_seconds", 5)
	v.SetDefault("querylog.provider", QueryLogLog)
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("gateway.base_url must be set")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.HTTP.BackoffInitialMs <= 0 || c.HTTP.BackoffMaxMs < c.HTTP.BackoffInitialMs {
		return fmt.Errorf("http.backoff_initial_ms must be > 0 and <= http.backoff_max_ms")
	}
	if c.HTTP.RateLimitRPS < 0 {
		return fmt.Errorf("http.rate_limit_rps must be >= 0")
	}
	if c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache.ttl_seconds must be > 0")
	}
	if c.Search.DebounceMs < 0 {
		return fmt.Errorf("search.debounce_ms must be >= 0")
	}
	if c.Search.DefaultPageSize < 1 || c.Search.DefaultPageSize > 100 {
		return fmt.Errorf("search.default_page_size must be between 1 and 100")
	}
	switch c.Session.Store {
	case SessionStoreMemory:
	case SessionStoreFile:
		if c.Session.Path == "" {
			return fmt.Errorf("session.path must be set when session.store is file")
		}
	case SessionStorePostgres:
		if c.Session.DSN == "" {
			return fmt.Errorf("session.dsn must be set when session.store is postgres")
		}
	default:
		return fmt.Errorf("session.store %q is not one of memory, file, postgres", c.Session.Store)
	}
	switch c.QueryLog.Provider {
	case QueryLogNoop, QueryLogLog, QueryLogMemory:
	case QueryLogPubSub:
		if c.QueryLog.ProjectID == "" || c.QueryLog.TopicID == "" {
			return fmt.Errorf("querylog.project_id and querylog.topic_id must be set for pubsub")
		}
	default:
		return fmt.Errorf("querylog.provider %q is not one of noop, log, memory, pubsub", c.QueryLog.Provider)
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	return nil
}

// Timeout is the per-attempt HTTP timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// BackoffInitial is the first retry delay.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond
}

// BackoffMax caps the retry delay.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond
}

// CacheTTL is the default cache entry lifetime.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// SuggestionTTL is the lifetime of cached suggestions.
func (c Config) SuggestionTTL() time.Duration {
	return time.Duration(c.Cache.SuggestionTTLSeconds) * time.Second
}

// CleanupInterval is the period of the eager cache sweep. Zero disables it.
func (c Config) CleanupInterval() time.Duration {
	return time.Duration(c.Cache.CleanupIntervalSeconds) * time.Second
}

// Debounce is the suggestion debounce interval.
func (c Config) Debounce() time.Duration {
	return time.Duration(c.Search.DebounceMs) * time.Millisecond
}

// RefreshSkew is how early a token is refreshed before it expires.
func (c Config) RefreshSkew() time.Duration {
	return time.Duration(c.Session.RefreshSkewSeconds) * time.Second
}

// ProbeTimeout bounds a single health probe.
func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Health.ProbeTimeoutSeconds) * time.Second
}

// RequestTimeout bounds a console server request.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}
