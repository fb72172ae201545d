package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	ListenAddr string              `json:"listen_addr" yaml:"listen_addr"`
	Database   DatabaseConfig      `json:"database" yaml:"database"`
	Security   SecurityConfig      `json:"security" yaml:"security"`
	Model      ModelConfig         `json:"model" yaml:"model"`
	Safety     SafetyConfig        `json:"safety" yaml:"safety"`
	Retry      RetryConfig         `json:"retry" yaml:"retry"`
	Limits     LimitsConfig        `json:"limits" yaml:"limits"`
	Observer   ObservabilityConfig `json:"observability" yaml:"observability"`
}

type DatabaseConfig struct {
	DSN            string `json:"dsn" yaml:"dsn"`
	MaxConns       int32  `json:"max_conns" yaml:"max_conns"`
	MigrationsPath string `json:"migrations_path" yaml:"migrations_path"`
}

type SecurityConfig struct {
	// bcrypt hash of the admin token; generate with seal-api -hash-token
	AdminTokenHash string `json:"admin_token_hash" yaml:"admin_token_hash"`
}

type ModelConfig struct {
	Provider        string  `json:"provider" yaml:"provider"`
	BaseURL         string  `json:"base_url" yaml:"base_url"`
	APIKey          string  `json:"api_key" yaml:"api_key"`
	Model           string  `json:"model" yaml:"model"`
	Temperature     float64 `json:"temperature" yaml:"temperature"`
	MaxOutputTokens int     `json:"max_output_tokens" yaml:"max_output_tokens"`
	TimeoutSec      int     `json:"timeout_sec" yaml:"timeout_sec"`
}

type SafetyConfig struct {
	Level string `json:"level" yaml:"level"`
}

type RetryConfig struct {
	MaxAttempts       int `json:"max_attempts" yaml:"max_attempts"`
	BaseDelayMS       int `json:"base_delay_ms" yaml:"base_delay_ms"`
	MaxDelayMS        int `json:"max_delay_ms" yaml:"max_delay_ms"`
	AttemptTimeoutSec int `json:"attempt_timeout_sec" yaml:"attempt_timeout_sec"`
}

type LimitsConfig struct {
	MaxConcurrentCalls int `json:"max_concurrent_calls" yaml:"max_concurrent_calls"`
}

type ObservabilityConfig struct {
	OTLPEndpoint string  `json:"otlp_endpoint" yaml:"otlp_endpoint"`
	ServiceName  string  `json:"service_name" yaml:"service_name"`
	SampleRatio  float64 `json:"sample_ratio" yaml:"sample_ratio"`
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr: ":8080",
		Database: DatabaseConfig{
			MaxConns:       10,
			MigrationsPath: "./migrations",
		},
		Model: ModelConfig{
			Provider:        "gemini",
			Model:           "gemini-1.5-flash-002",
			Temperature:     0.7,
			MaxOutputTokens: 2048,
			TimeoutSec:      60,
		},
		Safety: SafetyConfig{
			Level: "standard",
		},
		Retry: RetryConfig{
			MaxAttempts:       3,
			BaseDelayMS:       500,
			MaxDelayMS:        10000,
			AttemptTimeoutSec: 30,
		},
		Limits: LimitsConfig{
			MaxConcurrentCalls: 8,
		},
		Observer: ObservabilityConfig{
			ServiceName: "seal-api",
			SampleRatio: 1,
		},
	}
}

func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse json config: %w", err)
		}
	default:
		var yamlErr error
		if yamlErr = yaml.Unmarshal(data, &cfg); yamlErr == nil {
			break
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.New("config format not recognized (expected yaml/json)")
		}
	}
	normalizeConfig(&cfg)
	return cfg, nil
}

func normalizeConfig(cfg *ServerConfig) {
	if cfg == nil {
		return
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if strings.TrimSpace(cfg.Database.MigrationsPath) == "" {
		cfg.Database.MigrationsPath = "./migrations"
	}
	if strings.TrimSpace(cfg.Model.Provider) == "" {
		cfg.Model.Provider = "gemini"
	}
	if strings.TrimSpace(cfg.Model.Model) == "" {
		cfg.Model.Model = "gemini-1.5-flash-002"
	}
	if cfg.Model.MaxOutputTokens <= 0 {
		cfg.Model.MaxOutputTokens = 2048
	}
	if cfg.Model.TimeoutSec <= 0 {
		cfg.Model.TimeoutSec = 60
	}
	if strings.TrimSpace(cfg.Safety.Level) == "" {
		cfg.Safety.Level = "standard"
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BaseDelayMS <= 0 {
		cfg.Retry.BaseDelayMS = 500
	}
	if cfg.Retry.MaxDelayMS <= 0 {
		cfg.Retry.MaxDelayMS = 10000
	}
	if cfg.Retry.AttemptTimeoutSec <= 0 {
		cfg.Retry.AttemptTimeoutSec = 30
	}
	if cfg.Limits.MaxConcurrentCalls <= 0 {
		cfg.Limits.MaxConcurrentCalls = 8
	}
	if cfg.Observer.SampleRatio <= 0 || cfg.Observer.SampleRatio > 1 {
		cfg.Observer.SampleRatio = 1
	}
	if strings.TrimSpace(cfg.Observer.ServiceName) == "" {
		cfg.Observer.ServiceName = "seal-api"
	}
}
