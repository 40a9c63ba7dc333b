package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// Load reads configuration from an optional YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (SERVER_PORT, SLACK_BOT_TOKEN, ...)
//  2. YAML config file
//  3. Hardcoded defaults
//
// Environment variables map to config keys by lowercasing and splitting on
// the first underscore:
//
//	SERVER_PORT        -> server.port
//	LLM_API_KEY        -> llm.api_key
//	INGEST_WATCH_DIR   -> ingest.watch_dir
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if err := loadFile(k, configPath); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		lower := strings.ToLower(s)
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// loadFile reads a YAML config file through an already-open descriptor so
// the stat and the read cannot race.
func loadFile(k *koanf.Koanf, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.anthropic.com"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "claude-3-5-sonnet-20241022"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 4096
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60
	}

	if cfg.Records.BaseURL == "" {
		cfg.Records.BaseURL = "https://api.notion.com"
	}
	if cfg.Records.Timeout == 0 {
		cfg.Records.Timeout = 30
	}

	if cfg.Slack.BaseURL == "" {
		cfg.Slack.BaseURL = "https://slack.com/api"
	}
	if cfg.Slack.Timeout == 0 {
		cfg.Slack.Timeout = 10
	}

	if cfg.Review.Workers == 0 {
		cfg.Review.Workers = 4
	}
}
