// internal/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix    = "GATEWAY_"
	configEnvVar = "CONFIG_PATH"
)

// Loader загружает конфигурацию из разных источников
type Loader struct {
	k           *koanf.Koanf
	configPaths []string
	envPrefix   string
}

// NewLoader создаёт новый загрузчик конфигурации
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		k: koanf.New("."),
		configPaths: []string{
			"config.yaml",
			"config/config.yaml",
			"/etc/tabular-gateway/config.yaml",
		},
		envPrefix: envPrefix,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// LoaderOption - опция для конфигурации загрузчика
type LoaderOption func(*Loader)

// WithConfigPaths устанавливает пути поиска конфигурации
func WithConfigPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.configPaths = paths
	}
}

// WithEnvPrefix устанавливает префикс переменных окружения
func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// Load загружает конфигурацию с приоритетом:
// 1. Defaults (самый низкий)
// 2. Config file (yaml)
// 3. Environment variables (самый высокий)
func (l *Loader) Load() (*Config, error) {
	if err := l.loadDefaults(); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := l.loadConfigFile(); err != nil {
		// Файл не обязателен, логируем warning
		fmt.Printf("Warning: %v\n", err)
	}

	if err := l.loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}

	// DB_ENDPOINT / PGREST_ENDPOINT are accepted bare (not under the
	// GATEWAY_ prefix, matching deployments that set them directly)
	// and DB_ENDPOINT loads first so PGREST_ENDPOINT, read second,
	// wins when both are present.
	if v := os.Getenv("DB_ENDPOINT"); v != "" {
		_ = l.k.Set("downstream.endpoint", v)
	}
	if v := os.Getenv("PGREST_ENDPOINT"); v != "" {
		_ = l.k.Set("downstream.endpoint", v)
	}
	// The other external-interface keys are read bare the same way.
	for name, key := range map[string]string{
		"SERVER_NAME":       "http.server_name",
		"SCHEME":            "http.scheme",
		"PAGE_SIZE_DEFAULT": "query.page_size_default",
		"PAGE_SIZE_MAX":     "query.page_size_max",
		"SENTRY_DSN":        "sentry.dsn",
		"SENTRY_ENV":        "sentry.environment",
	} {
		if v := os.Getenv(name); v != "" {
			_ = l.k.Set(key, v)
		}
	}
	if v := os.Getenv("ALLOW_AGGREGATION"); v != "" {
		_ = l.k.Set("query.allow_aggregation", strings.Split(v, ","))
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadDefaults загружает значения по умолчанию
func (l *Loader) loadDefaults() error {
	defaults := map[string]any{
		// App
		"app.name":        "tabular-gateway",
		"app.version":     "1.0.0",
		"app.environment": "development",
		"app.debug":       false,

		// HTTP
		"http.port":                   8080,
		"http.read_timeout":           30 * time.Second,
		"http.write_timeout":          30 * time.Second,
		"http.shutdown_timeout":       10 * time.Second,
		"http.server_name":            "localhost:8080",
		"http.scheme":                 "http",
		"http.cors.enabled":           true,
		"http.cors.allowed_origins":   []string{"*"},
		"http.cors.allowed_methods":   []string{"GET", "OPTIONS"},
		"http.cors.allowed_headers":   []string{"*"},
		"http.cors.max_age":           86400,

		// Log
		"log.level":       "info",
		"log.format":      "json",
		"log.output":      "stdout",
		"log.max_size":    100,
		"log.max_backups": 3,
		"log.max_age":     7,
		"log.compress":    true,

		// Metrics
		"metrics.enabled":   true,
		"metrics.port":      9090,
		"metrics.path":      "/metrics",
		"metrics.namespace": "tabular_gateway",
		"metrics.subsystem": "",

		// Tracing
		"tracing.enabled":      false,
		"tracing.endpoint":     "localhost:4317",
		"tracing.service_name": "tabular-gateway",
		"tracing.sample_rate":  0.1,

		// Downstream
		"downstream.kind":              "http",
		"downstream.endpoint":          "http://localhost:3000",
		"downstream.timeout":           10 * time.Second,
		"downstream.host":              "localhost",
		"downstream.port":              5432,
		"downstream.database":          "tabular",
		"downstream.username":          "postgres",
		"downstream.password":          "",
		"downstream.ssl_mode":          "disable",
		"downstream.max_open_conns":    25,
		"downstream.max_idle_conns":    5,
		"downstream.conn_max_lifetime": 5 * time.Minute,
		"downstream.conn_max_idle_time": 5 * time.Minute,
		"downstream.migrations_path":   "migrations",
		"downstream.auto_migrate":      false,

		// Cache
		"cache.enabled":     false,
		"cache.driver":      "memory",
		"cache.host":        "localhost",
		"cache.port":        6379,
		"cache.db":          0,
		"cache.default_ttl": 1 * time.Minute,
		"cache.max_entries": 10000,

		// Swagger
		"swagger.enabled": true,
		"swagger.title":   "Tabular Gateway API",

		// Sentry
		"sentry.dsn":         "",
		"sentry.environment": "development",
		"sentry.sample_rate": 0.2,

		// Query
		"query.page_size_default":  20,
		"query.page_size_max":      50,
		"query.allow_aggregation":  []string{},
	}

	return l.k.Load(confmap.Provider(defaults, "."), nil)
}

// loadConfigFile загружает конфигурацию из файла
func (l *Loader) loadConfigFile() error {
	if configPath := os.Getenv(configEnvVar); configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return l.k.Load(file.Provider(configPath), yaml.Parser())
		}
	}

	for _, path := range l.configPaths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			continue
		}

		if _, err := os.Stat(absPath); err == nil {
			return l.k.Load(file.Provider(absPath), yaml.Parser())
		}
	}

	return fmt.Errorf("config file not found in paths: %v", l.configPaths)
}

// loadEnv загружает конфигурацию из переменных окружения
func (l *Loader) loadEnv() error {
	return l.k.Load(env.Provider(l.envPrefix, ".", func(s string) string {
		// GATEWAY_HTTP_PORT -> http.port
		return strings.ReplaceAll(
			strings.ToLower(
				strings.TrimPrefix(s, l.envPrefix),
			),
			"_", ".",
		)
	}), nil)
}

// MustLoad загружает конфигурацию или паникует
func MustLoad(opts ...LoaderOption) *Config {
	cfg, err := NewLoader(opts...).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Load - удобная функция для загрузки с дефолтными настройками
func Load() (*Config, error) {
	return NewLoader().Load()
}
