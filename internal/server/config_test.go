package server

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("listen = %q", cfg.ListenAddr)
	}
	if cfg.Model.Provider != "gemini" || cfg.Model.Model == "" {
		t.Fatalf("model defaults = %+v", cfg.Model)
	}
	if cfg.Safety.Level != "standard" {
		t.Fatalf("safety level = %q", cfg.Safety.Level)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.BaseDelayMS != 500 {
		t.Fatalf("retry defaults = %+v", cfg.Retry)
	}
	if cfg.Limits.MaxConcurrentCalls != 8 {
		t.Fatalf("limits defaults = %+v", cfg.Limits)
	}
}

func TestLoadServerConfigEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadServerConfig("")
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("listen = %q", cfg.ListenAddr)
	}
}

func TestLoadServerConfigYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
listen_addr: ":9090"
model:
  api_key: secret
  temperature: 0.4
safety:
  level: strict
retry:
  max_attempts: 5
limits:
  max_concurrent_calls: 2
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Fatalf("listen = %q", cfg.ListenAddr)
	}
	if cfg.Model.APIKey != "secret" || cfg.Model.Temperature != 0.4 {
		t.Fatalf("model = %+v", cfg.Model)
	}
	if cfg.Safety.Level != "strict" {
		t.Fatalf("safety level = %q", cfg.Safety.Level)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Fatalf("retry = %+v", cfg.Retry)
	}
	if cfg.Limits.MaxConcurrentCalls != 2 {
		t.Fatalf("limits = %+v", cfg.Limits)
	}
	// unset fields fall back to defaults through normalization
	if cfg.Model.Model == "" || cfg.Retry.BaseDelayMS != 500 {
		t.Fatalf("normalization gap: model=%q retry=%+v", cfg.Model.Model, cfg.Retry)
	}
}

func TestLoadServerConfigJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := []byte(`{"listen_addr": ":7070", "safety": {"level": "permissive"}}`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.ListenAddr != ":7070" || cfg.Safety.Level != "permissive" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestNormalizeConfigClampsSampleRatio(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Observer.SampleRatio = 3
	normalizeConfig(&cfg)
	if cfg.Observer.SampleRatio != 1 {
		t.Fatalf("sample ratio = %f", cfg.Observer.SampleRatio)
	}
}
