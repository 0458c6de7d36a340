// Package config provides configuration loading for the OCR service.
// Supports YAML files, .env files and environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/spherical/pdf-ocr/internal/domain"
)

// Config holds all configuration for the service and CLI.
type Config struct {
	Server        ServerConfig            `yaml:"server"`
	Stream        StreamConfig            `yaml:"stream"`
	Render        RenderConfig            `yaml:"render"`
	Providers     []domain.ProviderConfig `yaml:"providers"`
	Observability ObservabilityConfig     `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
}

// StreamConfig holds multiplexer and producer settings.
type StreamConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	FanInCapacity     int           `yaml:"fanin_capacity"`
	EventBuffer       int           `yaml:"event_buffer"`
	PageTimeout       time.Duration `yaml:"page_timeout"`
	StreamResponses   bool          `yaml:"stream_responses"`
	RateLimitRetries  int           `yaml:"rate_limit_retries"`
}

// RenderConfig holds PDF rasterization settings.
type RenderConfig struct {
	DPI      float64 `yaml:"dpi"`
	Quality  int     `yaml:"quality"`
	MaxPages int     `yaml:"max_pages"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies environment overrides.
// An empty path uses defaults plus environment.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // .env is optional

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	for i := range cfg.Providers {
		cfg.Providers[i].APIKey = os.ExpandEnv(cfg.Providers[i].APIKey)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8000,
			ReadTimeout:      60 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
			AllowedOrigins:   []string{"*"},
			MaxUploadBytes:   100 * 1024 * 1024,
		},
		Stream: StreamConfig{
			HeartbeatInterval: time.Second,
			FanInCapacity:     32,
			EventBuffer:       16,
			PageTimeout:       2 * time.Minute,
			RateLimitRetries:  2,
		},
		Render: RenderConfig{
			DPI:      144,
			Quality:  85,
			MaxPages: 200,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "console",
			ServiceName: "pdf-ocr",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Stream.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive")
	}

	if c.Stream.FanInCapacity < 1 {
		return fmt.Errorf("fanin_capacity must be at least 1")
	}

	if c.Stream.EventBuffer < 0 {
		return fmt.Errorf("event_buffer must not be negative")
	}

	if c.Stream.RateLimitRetries < 0 {
		return fmt.Errorf("rate_limit_retries must not be negative")
	}

	if c.Stream.PageTimeout <= 0 {
		return fmt.Errorf("page_timeout must be positive")
	}

	if c.Render.Quality < 1 || c.Render.Quality > 100 {
		return fmt.Errorf("render quality must be between 1 and 100, got %d", c.Render.Quality)
	}

	if c.Render.DPI <= 0 {
		return fmt.Errorf("render dpi must be positive")
	}

	for i, p := range c.Providers {
		if _, err := domain.ParseProviderKind(string(p.Kind)); err != nil {
			return fmt.Errorf("provider %d (%s): %w", i, p.DisplayName(), err)
		}
	}

	return nil
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}

	if v := os.Getenv("HEARTBEAT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Stream.HeartbeatInterval = d
		}
	}

	if v := os.Getenv("PAGE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Stream.PageTimeout = d
		}
	}

	if v := os.Getenv("RENDER_DPI"); v != "" {
		if dpi, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Render.DPI = dpi
		}
	}

	if v := os.Getenv("RENDER_QUALITY"); v != "" {
		if q, err := strconv.Atoi(v); err == nil {
			cfg.Render.Quality = q
		}
	}
}
