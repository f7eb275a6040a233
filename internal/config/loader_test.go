package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "tabular-gateway" {
		t.Errorf("expected app name 'tabular-gateway', got %s", cfg.App.Name)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected http port 8080, got %d", cfg.HTTP.Port)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Log.Level)
	}
	if cfg.Metrics.Port != 9090 {
		t.Errorf("expected metrics port 9090, got %d", cfg.Metrics.Port)
	}
	if cfg.Query.PageSizeDefault != 20 || cfg.Query.PageSizeMax != 50 {
		t.Errorf("unexpected query defaults: %+v", cfg.Query)
	}
}

func TestLoader_LoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
app:
  name: custom-gateway
  version: 2.0.0
  environment: staging
http:
  port: 9000
log:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	loader := NewLoader(WithConfigPaths(configPath))
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "custom-gateway" {
		t.Errorf("expected app name 'custom-gateway', got %s", cfg.App.Name)
	}
	if cfg.App.Version != "2.0.0" {
		t.Errorf("expected version '2.0.0', got %s", cfg.App.Version)
	}
	if cfg.HTTP.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.HTTP.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Log.Level)
	}
}

func TestLoader_LoadFromEnv(t *testing.T) {
	os.Setenv("GATEWAY_APP_NAME", "env-gateway")
	os.Setenv("GATEWAY_HTTP_PORT", "9001")
	defer func() {
		os.Unsetenv("GATEWAY_APP_NAME")
		os.Unsetenv("GATEWAY_HTTP_PORT")
	}()

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "env-gateway" {
		t.Errorf("expected app name 'env-gateway', got %s", cfg.App.Name)
	}
	if cfg.HTTP.Port != 9001 {
		t.Errorf("expected port 9001, got %d", cfg.HTTP.Port)
	}
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
app:
  name: file-gateway
http:
  port: 9002
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	os.Setenv("GATEWAY_APP_NAME", "env-override")
	defer os.Unsetenv("GATEWAY_APP_NAME")

	cfg, err := NewLoader(WithConfigPaths(configPath)).Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "env-override" {
		t.Errorf("expected env override, got %s", cfg.App.Name)
	}
	if cfg.HTTP.Port != 9002 {
		t.Errorf("expected port from file 9002, got %d", cfg.HTTP.Port)
	}
}

func TestLoader_WithEnvPrefix(t *testing.T) {
	os.Setenv("CUSTOM_APP_NAME", "custom-prefix-gateway")
	defer os.Unsetenv("CUSTOM_APP_NAME")

	cfg, err := NewLoader(WithEnvPrefix("CUSTOM_")).Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "custom-prefix-gateway" {
		t.Errorf("expected 'custom-prefix-gateway', got %s", cfg.App.Name)
	}
}

func TestLoader_DBEndpointAliases(t *testing.T) {
	os.Setenv("DB_ENDPOINT", "http://db-endpoint:3000")
	defer os.Unsetenv("DB_ENDPOINT")

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Downstream.Endpoint != "http://db-endpoint:3000" {
		t.Errorf("expected DB_ENDPOINT to populate downstream.endpoint, got %s", cfg.Downstream.Endpoint)
	}

	os.Setenv("PGREST_ENDPOINT", "http://pgrest-endpoint:3000")
	defer os.Unsetenv("PGREST_ENDPOINT")

	cfg, err = NewLoader().Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Downstream.Endpoint != "http://pgrest-endpoint:3000" {
		t.Errorf("expected PGREST_ENDPOINT to win over DB_ENDPOINT, got %s", cfg.Downstream.Endpoint)
	}
}

func TestMustLoad_Success(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("MustLoad should not panic with valid config")
		}
	}()

	cfg := MustLoad()
	if cfg == nil {
		t.Error("expected non-nil config")
	}
}

func TestLoad_Simple(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg == nil {
		t.Error("expected non-nil config")
	}
}

func TestLoader_ConfigEnvVar(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "custom-config.yaml")

	configContent := `
app:
  name: config-env-var-gateway
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	os.Setenv("CONFIG_PATH", configPath)
	defer os.Unsetenv("CONFIG_PATH")

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "config-env-var-gateway" {
		t.Errorf("expected 'config-env-var-gateway', got %s", cfg.App.Name)
	}
}
