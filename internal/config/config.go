// Package config loads toolforge settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Tools     ToolsConfig
	Store     StoreConfig
	Harness   HarnessConfig
	Server    ServerConfig
	Knowledge KnowledgeConfig
	Log       LogConfig
	Tracing   TracingConfig
}

type ToolsConfig struct {
	Dir string `envconfig:"TOOLFORGE_TOOLS_DIR" default:"tools"`
}

type StoreConfig struct {
	Driver string `envconfig:"TOOLFORGE_STORE_DRIVER" default:"json"` // json|sqlite
	// Path defaults to <tools dir>/tools.json or <tools dir>/tools.db.
	Path string `envconfig:"TOOLFORGE_STORE_PATH"`
}

type HarnessConfig struct {
	CaseTimeout time.Duration `envconfig:"TOOLFORGE_CASE_TIMEOUT" default:"0"`
	LoadTimeout time.Duration `envconfig:"TOOLFORGE_LOAD_TIMEOUT" default:"0"`
	MaxSteps    uint64        `envconfig:"TOOLFORGE_MAX_STEPS" default:"0"` // 0 = unbounded
}

type ServerConfig struct {
	ListenAddr string `envconfig:"TOOLFORGE_LISTEN_ADDR" default:":8080"`
}

type KnowledgeConfig struct {
	APIKey  string        `envconfig:"PERPLEXITY_API_KEY"`
	BaseURL string        `envconfig:"PERPLEXITY_BASE_URL" default:"https://api.perplexity.ai"`
	Model   string        `envconfig:"PERPLEXITY_MODEL" default:"sonar"`
	Timeout time.Duration `envconfig:"PERPLEXITY_TIMEOUT" default:"60s"`
	// RatePerSecond caps outgoing requests; 0 disables the limiter.
	RatePerSecond float64 `envconfig:"PERPLEXITY_RATE_LIMIT" default:"0"`
}

// TracingConfig enables tool call spans. Spans are written to the log.
type TracingConfig struct {
	Enabled    bool    `envconfig:"TOOLFORGE_TRACING" default:"false"`
	SampleRate float64 `envconfig:"TOOLFORGE_TRACE_SAMPLE_RATE" default:"1"`
}

type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"text"` // text|json
}

// StorePath returns the configured store path or the driver's default
// location inside the tools directory.
func (c Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	if c.Store.Driver == "sqlite" {
		return filepath.Join(c.Tools.Dir, "tools.db")
	}
	return filepath.Join(c.Tools.Dir, "tools.json")
}

// SlogLevel maps Log.Level to a slog.Level.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
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

// Validate rejects settings the rest of the program cannot honour.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case "json", "sqlite":
	default:
		return fmt.Errorf("TOOLFORGE_STORE_DRIVER: unknown driver %q (want json or sqlite)", c.Store.Driver)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT: unknown format %q (want text or json)", c.Log.Format)
	}
	if c.Tools.Dir == "" {
		return fmt.Errorf("TOOLFORGE_TOOLS_DIR must not be empty")
	}
	if c.Harness.CaseTimeout < 0 || c.Harness.LoadTimeout < 0 {
		return fmt.Errorf("harness timeouts must not be negative")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("TOOLFORGE_TRACE_SAMPLE_RATE must be between 0 and 1")
	}
	if c.Knowledge.RatePerSecond < 0 {
		return fmt.Errorf("PERPLEXITY_RATE_LIMIT must not be negative")
	}
	return nil
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
