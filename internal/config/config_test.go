package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Gateway.BaseURL != "http://localhost:8080" {
		t.Fatalf("unexpected gateway base url %q", cfg.Gateway.BaseURL)
	}
	if cfg.HTTP.MaxRetries != 3 || cfg.BackoffInitial() != time.Second {
		t.Fatalf("unexpected retry defaults: %+v", cfg.HTTP)
	}
	if cfg.CacheTTL() != 5*time.Minute || cfg.Debounce() != 300*time.Millisecond {
		t.Fatalf("unexpected cache/search defaults: %+v %+v", cfg.Cache, cfg.Search)
	}
	if cfg.Session.Store != SessionStoreFile || cfg.QueryLog.Provider != QueryLogLog {
		t.Fatalf("unexpected provider defaults: %+v %+v", cfg.Session, cfg.QueryLog)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
gateway:
  base_url: https://gateway.internal
discovery:
  registry_url: https://eureka.internal
http:
  timeout_seconds: 45
  max_retries: 0
  backoff_initial_ms: 100
  backoff_max_ms: 500
  rate_limit_rps: 20
cache:
  ttl_seconds: 120
search:
  debounce_ms: 150
  default_page_size: 25
session:
  store: postgres
  dsn: postgres://console@localhost/console
querylog:
  provider: pubsub
  project_id: proj
  topic_id: queries
server:
  port: 9090
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Gateway.BaseURL != "https://gateway.internal" || cfg.Discovery.RegistryURL != "https://eureka.internal" {
		t.Fatalf("expected endpoint overrides to apply: %+v %+v", cfg.Gateway, cfg.Discovery)
	}
	if cfg.HTTP.MaxRetries != 0 || cfg.Timeout() != 45*time.Second || cfg.BackoffMax() != 500*time.Millisecond {
		t.Fatalf("expected http overrides to apply: %+v", cfg.HTTP)
	}
	if cfg.CacheTTL() != 2*time.Minute || cfg.Debounce() != 150*time.Millisecond || cfg.Search.DefaultPageSize != 25 {
		t.Fatalf("expected cache/search overrides to apply")
	}
	if cfg.Session.Store != SessionStorePostgres || cfg.Session.Table != "console_sessions" {
		t.Fatalf("expected session overrides with default table: %+v", cfg.Session)
	}
	if cfg.Server.Port != 9090 || cfg.Logging.Development {
		t.Fatalf("expected server/logging overrides to apply")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SEARCHCONSOLE_GATEWAY_BASE_URL", "http://env-gateway:8080")
	t.Setenv("SEARCHCONSOLE_SEARCH_DEBOUNCE_MS", "500")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Gateway.BaseURL != "http://env-gateway:8080" {
		t.Fatalf("expected env base url, got %q", cfg.Gateway.BaseURL)
	}
	if cfg.Debounce() != 500*time.Millisecond {
		t.Fatalf("expected env debounce, got %v", cfg.Debounce())
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("SEARCHCONSOLE_SERVER_PORT=7070\n"), 0o600); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	t.Setenv("SEARCHCONSOLE_SERVER_PORT", "")
	os.Unsetenv("SEARCHCONSOLE_SERVER_PORT") //nolint:errcheck // restored by t.Setenv

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("expected port from .env, got %d", cfg.Server.Port)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing base url", func(c *Config) { c.Gateway.BaseURL = "" }, "gateway.base_url"},
		{"invalid timeout", func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, "http.timeout_seconds"},
		{"negative retries", func(c *Config) { c.HTTP.MaxRetries = -1 }, "http.max_retries"},
		{"backoff inverted", func(c *Config) { c.HTTP.BackoffMaxMs = 10 }, "http.backoff_initial_ms"},
		{"invalid ttl", func(c *Config) { c.Cache.TTLSeconds = 0 }, "cache.ttl_seconds"},
		{"page size too large", func(c *Config) { c.Search.DefaultPageSize = 101 }, "search.default_page_size"},
		{"unknown store", func(c *Config) { c.Session.Store = "redis" }, "session.store"},
		{"postgres without dsn", func(c *Config) { c.Session.Store = SessionStorePostgres }, "session.dsn"},
		{"pubsub without topic", func(c *Config) { c.QueryLog.Provider = QueryLogPubSub }, "querylog.project_id"},
		{"unknown querylog", func(c *Config) { c.QueryLog.Provider = "kafka" }, "querylog.provider"},
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
