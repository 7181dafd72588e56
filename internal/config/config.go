// Package config loads the server configuration.
//
// Values are resolved in this order, each step overriding the previous one:
//  1. Default()
//  2. an optional YAML file (--config)
//  3. environment variables (PORT, DB_PATH, JWT_SECRET, ...)
//  4. command line flags, applied by cmd/server
//
// Validate is called last; a config that fails it never reaches the server.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for the server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	GenAI    GenAIConfig    `yaml:"genai"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Port to listen on. Default: 8080
	Port int `yaml:"port"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	// Path of the database file, or ":memory:". Default: data/promptcraft.db
	Path string `yaml:"path"`
}

// AuthConfig configures session tokens and password hashing.
type AuthConfig struct {
	// JWTSecret signs session tokens. Required, at least 16 characters.
	JWTSecret string `yaml:"jwt_secret"`

	// TokenTTL is the session token lifetime. Default: 24h
	TokenTTL time.Duration `yaml:"token_ttl"`

	// BcryptCost is the password hashing work factor. Default: 12
	BcryptCost int `yaml:"bcrypt_cost"`
}

// GenAIConfig configures the generative-AI collaborator.
type GenAIConfig struct {
	// Provider is "gemini" or "openai" (any OpenAI-compatible endpoint).
	// Default: gemini
	Provider string `yaml:"provider"`

	// APIKey authenticates against the provider. Empty disables generation:
	// the generate endpoint then answers 503.
	APIKey string `yaml:"api_key"`

	// Model name. Default: DefaultModel(Provider)
	Model string `yaml:"model"`

	// BaseURL overrides the provider endpoint. Empty means the provider default.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds a single generation call. Default: 60s
	Timeout time.Duration `yaml:"timeout"`
}

// LogConfig configures the slog logger.
type LogConfig struct {
	// Level is debug, info, warn or error. Default: info
	Level string `yaml:"level"`

	// Format is text or json. Default: text
	Format string `yaml:"format"`
}

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Default returns the configuration used before any file or environment
// variable is applied.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Path: "data/promptcraft.db"},
		Auth: AuthConfig{
			TokenTTL:   24 * time.Hour,
			BcryptCost: 12,
		},
		GenAI: GenAIConfig{
			Provider: ProviderGemini,
			Timeout:  60 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds a Config from defaults, the optional YAML file at path and the
// environment. It does not validate; call Validate after applying flags.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.GenAI.applyModelDefault()

	return cfg, nil
}

// loadFile merges a YAML file into the current config.
// Keys missing from the file keep their current values.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// DefaultModel returns the model used when none is configured for provider,
// or "" for an unknown provider.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderGemini, "":
		return "gemini-2.5-pro"
	case ProviderOpenAI:
		return "gpt-4o-mini"
	}
	return ""
}

// The model default depends on the provider, which may come from the file
// or the environment, so it is filled in last.
func (g *GenAIConfig) applyModelDefault() {
	if g.Model == "" {
		g.Model = DefaultModel(g.Provider)
	}
}

// applyEnv overrides fields from environment variables that are set and non-empty.
func (c *Config) applyEnv() error {
	var errs []error

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid PORT %q", v))
		}
		c.Server.Port = port
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid TOKEN_TTL %q: %w", v, err))
		}
		c.Auth.TokenTTL = d
	}
	if v := os.Getenv("GENAI_PROVIDER"); v != "" {
		c.GenAI.Provider = strings.ToLower(v)
	}
	// GOOGLE_API_KEY is honoured for existing Gemini setups; GENAI_API_KEY wins.
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		c.GenAI.APIKey = v
	}
	if v := os.Getenv("GENAI_API_KEY"); v != "" {
		c.GenAI.APIKey = v
	}
	if v := os.Getenv("GENAI_MODEL"); v != "" {
		c.GenAI.Model = v
	}
	if v := os.Getenv("GENAI_BASE_URL"); v != "" {
		c.GenAI.BaseURL = v
	}
	if v := os.Getenv("GENAI_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid GENAI_TIMEOUT %q: %w", v, err))
		}
		c.GenAI.Timeout = d
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = strings.ToLower(v)
	}

	return errors.Join(errs...)
}

// Validate checks the configuration for errors. All problems are reported
// together.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 16 characters (set JWT_SECRET)"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("auth.token_ttl must be positive, got %s", c.Auth.TokenTTL))
	}
	switch c.GenAI.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("genai.provider must be %q or %q, got %q", ProviderGemini, ProviderOpenAI, c.GenAI.Provider))
	}
	if c.GenAI.Model == "" {
		errs = append(errs, errors.New("genai.model is required"))
	}
	if c.GenAI.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("genai.timeout must be positive, got %s", c.GenAI.Timeout))
	}
	if _, err := c.Log.level(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

func (l LogConfig) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level must be debug, info, warn or error, got %q", l.Level)
	}
	return level, nil
}

// NewLogger builds the application logger writing to w.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := l.level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
