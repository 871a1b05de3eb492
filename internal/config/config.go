package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/lehigh-university-libraries/comicgen/internal/storage"
)

// Config holds the environment driven configuration for comicgen
type Config struct {
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8888"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
	StaticDir       string        `env:"STATIC_DIR" envDefault:"static"`

	DatabaseDriver string        `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabaseDSN    string        `env:"DATABASE_DSN" envDefault:"comicgen.db"`
	DBMaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`

	StoryProvider     string        `env:"STORY_PROVIDER" envDefault:"gemini"`
	ImageProvider     string        `env:"IMAGE_PROVIDER" envDefault:"gemini"`
	StoryModel        string        `env:"STORY_MODEL"`
	ImageModel        string        `env:"IMAGE_MODEL"`
	Temperature       float64       `env:"TEMPERATURE" envDefault:"0"`
	GeminiAPIKey      string        `env:"GEMINI_API_KEY"`
	OpenAIAPIKey      string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL     string        `env:"OPENAI_BASE_URL"`
	OllamaURL         string        `env:"OLLAMA_URL"`
	DefaultLanguage   string        `env:"DEFAULT_LANGUAGE" envDefault:"en"`
	PanelCount        int           `env:"PANEL_COUNT" envDefault:"4"`
	ImageRateInterval time.Duration `env:"IMAGE_RATE_INTERVAL" envDefault:"0s"`
}

// Load parses environment variables into Config. A .env file, when present,
// is loaded by the root command before this runs.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	cfg.StoryProvider = strings.ToLower(strings.TrimSpace(cfg.StoryProvider))
	cfg.ImageProvider = strings.ToLower(strings.TrimSpace(cfg.ImageProvider))

	switch cfg.StoryProvider {
	case "gemini", "openai", "ollama":
	default:
		return nil, fmt.Errorf("unsupported STORY_PROVIDER %q (gemini, openai or ollama)", cfg.StoryProvider)
	}
	switch cfg.ImageProvider {
	case "gemini", "openai":
	default:
		return nil, fmt.Errorf("unsupported IMAGE_PROVIDER %q (gemini or openai)", cfg.ImageProvider)
	}
	if cfg.PanelCount < 1 {
		return nil, fmt.Errorf("PANEL_COUNT must be at least 1, got %d", cfg.PanelCount)
	}

	return cfg, nil
}

// Addr returns the HTTP listen address
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// Database returns the storage connection settings
func (c *Config) Database() storage.Config {
	return storage.Config{
		Driver:          c.DatabaseDriver,
		DSN:             c.DatabaseDSN,
		MaxOpenConns:    c.DBMaxOpenConns,
		MaxIdleConns:    c.DBMaxIdleConns,
		ConnMaxLifetime: c.DBConnLifetime,
	}
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
