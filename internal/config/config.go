// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (SABIA_ prefix, runtime override)
//  2. Config file (./sabia.yaml or ~/.sabia/config.yaml)
//  3. Default values
//
// Sensitive values (API keys, database password) are never logged.
// Validation uses sentinel errors so callers can check with errors.Is().
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates the reasoning API key is not set.
	ErrMissingAPIKey = errors.New("missing reasoning API key")

	// ErrInvalidModelName indicates the model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidMaxIterations indicates the agent iteration bound is out of range.
	ErrInvalidMaxIterations = errors.New("invalid agent max iterations")

	// ErrInvalidTimeout indicates the agent time budget is out of range.
	ErrInvalidTimeout = errors.New("invalid agent timeout")

	// ErrInvalidHistoryWindow indicates the history window is out of range.
	ErrInvalidHistoryWindow = errors.New("invalid history window")

	// ErrInvalidPostgresDSN indicates the PostgreSQL connection string is empty.
	ErrInvalidPostgresDSN = errors.New("invalid PostgreSQL DSN")

	// ErrInvalidBadgerDir indicates the session store directory is empty.
	ErrInvalidBadgerDir = errors.New("invalid badger directory")

	// ErrInvalidMinAnswerLen indicates the validation threshold is negative.
	ErrInvalidMinAnswerLen = errors.New("invalid minimum answer length")
)

// Bounds for validated settings.
const (
	MinAgentIterations = 1
	MaxAgentIterations = 10

	MinAgentTimeout = 5 * time.Second
	MaxAgentTimeout = 5 * time.Minute

	MinHistoryWindow = 1
	MaxHistoryWindow = 200
)

// Agent holds the orchestrator bounds and reasoning endpoint settings.
type Agent struct {
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"` // OpenAI-compatible endpoint (Groq)
	Model         string        `mapstructure:"model"`
	Temperature   float32       `mapstructure:"temperature"`
	MaxIterations int           `mapstructure:"max_iterations"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// Retrieval holds the vector index and embedder settings.
type Retrieval struct {
	PostgresDSN    string `mapstructure:"postgres_dsn"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	EmbeddingKey   string `mapstructure:"embedding_key"`
	EmbeddingURL   string `mapstructure:"embedding_url"`
}

// Memory holds the session store settings.
type Memory struct {
	BadgerDir     string        `mapstructure:"badger_dir"`
	HistoryWindow int           `mapstructure:"history_window"` // turns, not messages
	HistoryTTL    time.Duration `mapstructure:"history_ttl"`
	ContextTTL    time.Duration `mapstructure:"context_ttl"`
}

// WAHA holds the outbound WhatsApp gateway settings.
type WAHA struct {
	BaseURL string `mapstructure:"base_url"`
	Session string `mapstructure:"session"`
	APIKey  string `mapstructure:"api_key"`
}

// Config stores the full application configuration.
type Config struct {
	Agent     Agent     `mapstructure:"agent"`
	Retrieval Retrieval `mapstructure:"retrieval"`
	Memory    Memory    `mapstructure:"memory"`
	WAHA      WAHA      `mapstructure:"waha"`

	ListenAddr   string `mapstructure:"listen_addr"`
	MinAnswerLen int    `mapstructure:"min_answer_len"`
	LogLevel     string `mapstructure:"log_level"`
	LogJSON      bool   `mapstructure:"log_json"`
}

// setDefaults registers default values on v.
func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("min_answer_len", 10)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)

	// Secrets default to empty so viper's AutomaticEnv can see them during
	// Unmarshal (env vars only bind to keys viper already knows about).
	v.SetDefault("agent.api_key", "")
	v.SetDefault("retrieval.postgres_dsn", "")
	v.SetDefault("retrieval.embedding_key", "")
	v.SetDefault("waha.base_url", "")
	v.SetDefault("waha.api_key", "")

	v.SetDefault("agent.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("agent.model", "llama-3.3-70b-versatile")
	v.SetDefault("agent.temperature", 0.2)
	v.SetDefault("agent.max_iterations", 3)
	v.SetDefault("agent.timeout", 45*time.Second)

	v.SetDefault("retrieval.embedding_model", "text-embedding-3-small")
	v.SetDefault("retrieval.embedding_url", "https://api.openai.com/v1")

	v.SetDefault("memory.badger_dir", "./data/sessions")
	v.SetDefault("memory.history_window", 20)
	v.SetDefault("memory.history_ttl", 30*time.Minute)
	v.SetDefault("memory.context_ttl", 60*time.Minute)

	v.SetDefault("waha.session", "default")
}

// Load reads configuration from file and environment.
//
// The config file is optional; environment variables alone are enough for
// a container deployment (SABIA_AGENT_API_KEY, SABIA_RETRIEVAL_POSTGRES_DSN, ...).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("sabia")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.sabia")

	v.SetEnvPrefix("SABIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No file is fine; env + defaults carry the day.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and required settings.
func (c *Config) Validate() error {
	if c.Agent.APIKey == "" {
		return fmt.Errorf("%w: set SABIA_AGENT_API_KEY", ErrMissingAPIKey)
	}
	if strings.TrimSpace(c.Agent.Model) == "" {
		return ErrInvalidModelName
	}
	if c.Agent.MaxIterations < MinAgentIterations || c.Agent.MaxIterations > MaxAgentIterations {
		return fmt.Errorf("%w: %d not in [%d, %d]",
			ErrInvalidMaxIterations, c.Agent.MaxIterations, MinAgentIterations, MaxAgentIterations)
	}
	if c.Agent.Timeout < MinAgentTimeout || c.Agent.Timeout > MaxAgentTimeout {
		return fmt.Errorf("%w: %s not in [%s, %s]",
			ErrInvalidTimeout, c.Agent.Timeout, MinAgentTimeout, MaxAgentTimeout)
	}
	if c.Retrieval.PostgresDSN == "" {
		return fmt.Errorf("%w: set SABIA_RETRIEVAL_POSTGRES_DSN", ErrInvalidPostgresDSN)
	}
	if c.Memory.BadgerDir == "" {
		return ErrInvalidBadgerDir
	}
	if c.Memory.HistoryWindow < MinHistoryWindow || c.Memory.HistoryWindow > MaxHistoryWindow {
		return fmt.Errorf("%w: %d not in [%d, %d]",
			ErrInvalidHistoryWindow, c.Memory.HistoryWindow, MinHistoryWindow, MaxHistoryWindow)
	}
	if c.MinAnswerLen < 0 {
		return ErrInvalidMinAnswerLen
	}
	return nil
}
