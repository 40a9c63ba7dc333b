// Package config provides configuration loading for taskflowd.
package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Secret wraps sensitive string values (API keys, signing secrets) so they
// never leak through logging or serialization.
type Secret string

// String implements fmt.Stringer. Always returns a redacted value.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer for %#v formatting.
func (s Secret) GoString() string {
	return "Secret([REDACTED])"
}

// Value returns the actual secret value. Use sparingly.
func (s Secret) Value() string {
	return string(s)
}

// IsSet returns true if the secret has a non-empty value.
func (s Secret) IsSet() bool {
	return s != ""
}

// MarshalJSON implements json.Marshaler. Always returns a redacted value.
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("[REDACTED]")
}

// MarshalText implements encoding.TextMarshaler. Always returns a redacted value.
func (s Secret) MarshalText() ([]byte, error) {
	if s == "" {
		return []byte(""), nil
	}
	return []byte("[REDACTED]"), nil
}

// Config is the root configuration for taskflowd.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
	LLM     LLMConfig     `koanf:"llm"`
	Records RecordsConfig `koanf:"records"`
	Slack   SlackConfig   `koanf:"slack"`
	Ingest  IngestConfig  `koanf:"ingest"`
	Review  ReviewConfig  `koanf:"review"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json or console
}

// LLMConfig configures the extraction and comparator collaborator. One
// endpoint serves both calls.
type LLMConfig struct {
	BaseURL   string `koanf:"base_url"`
	APIKey    Secret `koanf:"api_key"`
	Model     string `koanf:"model"`
	MaxTokens int    `koanf:"max_tokens"`
	Timeout   int    `koanf:"timeout"` // seconds
}

// RecordsConfig configures the record-keeping service client.
type RecordsConfig struct {
	BaseURL string `koanf:"base_url"`
	APIKey  Secret `koanf:"api_key"`
	Timeout int    `koanf:"timeout"` // seconds
}

// SlackConfig configures the interactive-card messenger.
type SlackConfig struct {
	BaseURL  string `koanf:"base_url"`
	BotToken Secret `koanf:"bot_token"`
	// SigningSecret authenticates interaction callbacks. When unset the
	// signature check is skipped, which is only acceptable in local dev.
	SigningSecret Secret `koanf:"signing_secret"`
	Channel       string `koanf:"channel"`
	Timeout       int    `koanf:"timeout"` // seconds
}

// IngestConfig configures transcript ingestion.
type IngestConfig struct {
	WebhookSecret Secret `koanf:"webhook_secret"`
	// WatchDir, when set, is watched for transcript files dropped locally
	// (dev-mode ingestion alongside the webhook).
	WatchDir string `koanf:"watch_dir"`
}

// ReviewConfig configures the proposal review engine.
type ReviewConfig struct {
	// Workers bounds the pool running commit-and-advance work after the
	// synchronous acknowledgment.
	Workers int `koanf:"workers"`
	// SessionTTL evicts abandoned sessions; zero keeps them forever,
	// matching the observed product behavior.
	SessionTTL time.Duration `koanf:"session_ttl"`
	// FeedbackTTL evicts abandoned feedback forms; zero disables.
	FeedbackTTL time.Duration `koanf:"feedback_ttl"`
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	if !c.LLM.APIKey.IsSet() {
		return fmt.Errorf("llm.api_key is required")
	}
	if !c.Records.APIKey.IsSet() {
		return fmt.Errorf("records.api_key is required")
	}
	if !c.Slack.BotToken.IsSet() {
		return fmt.Errorf("slack.bot_token is required")
	}
	if c.Review.Workers < 1 {
		return fmt.Errorf("review.workers must be >= 1, got %d", c.Review.Workers)
	}
	return nil
}
