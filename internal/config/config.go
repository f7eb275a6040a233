// Package config loads and validates the gateway's configuration.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure.
type Config struct {
	App        AppConfig        `koanf:"app"`
	HTTP       HTTPConfig       `koanf:"http"`
	Log        LogConfig        `koanf:"log"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Tracing    TracingConfig    `koanf:"tracing"`
	Downstream DownstreamConfig `koanf:"downstream"`
	Cache      CacheConfig      `koanf:"cache"`
	Swagger    SwaggerConfig    `koanf:"swagger"`
	Sentry     SentryConfig     `koanf:"sentry"`
	Query      QueryConfig      `koanf:"query"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"` // development, staging, production
	Debug       bool   `koanf:"debug"`
}

// HTTPConfig configures the gateway's HTTP listener.
type HTTPConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	ServerName      string        `koanf:"server_name"` // SERVER_NAME: host used to build absolute links
	Scheme          string        `koanf:"scheme"`       // SCHEME: http|https for absolute links
	CORS            CORSConfig    `koanf:"cors"`
}

// CORSConfig configures cross-origin access.
type CORSConfig struct {
	Enabled        bool     `koanf:"enabled"`
	AllowedOrigins []string `koanf:"allowed_origins"`
	AllowedMethods []string `koanf:"allowed_methods"`
	AllowedHeaders []string `koanf:"allowed_headers"`
	MaxAge         int      `koanf:"max_age"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level      string `koanf:"level"`  // debug, info, warn, error
	Format     string `koanf:"format"` // json, text
	Output     string `koanf:"output"` // stdout, stderr, file
	FilePath   string `koanf:"file_path"`
	MaxSize    int  `koanf:"max_size"` // MB
	MaxBackups int  `koanf:"max_backups"`
	MaxAge     int  `koanf:"max_age"` // days
	Compress   bool `koanf:"compress"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Port      int    `koanf:"port"`
	Path      string `koanf:"path"`
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// DownstreamConfig describes how to reach the table service that
// actually stores and executes queries against resource data.
type DownstreamConfig struct {
	// Kind selects the adapter: "http" (PostgREST-shaped REST service,
	// the default and primary contract) or "postgres" (direct SQL,
	// an alternate implementation of the same observable contract).
	Kind string `koanf:"kind"`

	// Endpoint is DB_ENDPOINT / PGREST_ENDPOINT; when both env vars are
	// set, PGREST_ENDPOINT wins (see loader.go).
	Endpoint string        `koanf:"endpoint"`
	Timeout  time.Duration `koanf:"timeout"`

	// Postgres-only fields, used when Kind == "postgres".
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Database        string        `koanf:"database"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
	SSLMode         string        `koanf:"ssl_mode"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	MigrationsPath  string        `koanf:"migrations_path"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// DSN returns the Postgres connection string for the pgtable adapter.
func (d DownstreamConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// CacheConfig configures the optional directory/profile cache.
type CacheConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Driver     string        `koanf:"driver"` // redis, memory
	Host       string        `koanf:"host"`
	Port       int           `koanf:"port"`
	Password   string        `koanf:"password"`
	DB         int           `koanf:"db"`
	DefaultTTL time.Duration `koanf:"default_ttl"`
	MaxEntries int           `koanf:"max_entries"`
}

// Address returns the cache backend's network address.
func (c CacheConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SwaggerConfig configures the per-resource OpenAPI/Swagger UI surface.
type SwaggerConfig struct {
	Enabled bool   `koanf:"enabled"`
	Title   string `koanf:"title"`
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	DSN         string  `koanf:"dsn"`
	Environment string  `koanf:"environment"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// QueryConfig carries the parser/executor tunables named in the
// gateway's external interface.
type QueryConfig struct {
	PageSizeDefault  int      `koanf:"page_size_default"`
	PageSizeMax      int      `koanf:"page_size_max"`
	AllowAggregation []string `koanf:"allow_aggregation"` // resource UUIDs, overlays the directory flag
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	var errs []string

	if c.App.Name == "" {
		errs = append(errs, "app.name is required")
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Sprintf("http.port must be between 1 and 65535, got %d", c.HTTP.Port))
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level must be one of: debug, info, warn, error, got %s", c.Log.Level))
	}

	if c.Downstream.Endpoint == "" && c.Downstream.Kind == "http" {
		errs = append(errs, "downstream.endpoint (DB_ENDPOINT/PGREST_ENDPOINT) is required for the http downstream")
	}

	validKinds := map[string]bool{"http": true, "postgres": true}
	if !validKinds[c.Downstream.Kind] {
		errs = append(errs, fmt.Sprintf("downstream.kind must be one of: http, postgres, got %s", c.Downstream.Kind))
	}

	validSchemes := map[string]bool{"http": true, "https": true}
	if !validSchemes[c.HTTP.Scheme] {
		errs = append(errs, fmt.Sprintf("http.scheme must be one of: http, https, got %s", c.HTTP.Scheme))
	}

	if c.Query.PageSizeDefault <= 0 {
		errs = append(errs, "query.page_size_default must be positive")
	}
	if c.Query.PageSizeMax < c.Query.PageSizeDefault {
		errs = append(errs, "query.page_size_max must be >= query.page_size_default")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IsDevelopment reports whether the app is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "dev"
}

// IsProduction reports whether the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production" || c.App.Environment == "prod"
}
