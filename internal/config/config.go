package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultMaxRetries is the number of write retries before a memory is
	// queued to the pending-write log.
	DefaultMaxRetries = 3

	// DefaultBackoff is the initial write retry backoff; it doubles per
	// attempt.
	DefaultBackoff = 200 * time.Millisecond

	// DefaultIndexPartitions bounds how many (contact, category) partitions
	// the recent-memory index holds.
	DefaultIndexPartitions = 256

	// DefaultIndexDepth is how many recent memories each partition keeps for
	// dedupe and link candidate lookup.
	DefaultIndexDepth = 20
)

// Config holds all configuration for memopipe.
type Config struct {
	Claude   ClaudeConfig   `mapstructure:"claude"`
	Store    StoreConfig    `mapstructure:"store"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ClaudeConfig holds Anthropic Claude API settings for the classifier.
type ClaudeConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	Model             string  `mapstructure:"model"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// String returns a safe representation of ClaudeConfig with the API key masked.
func (c ClaudeConfig) String() string {
	return fmt.Sprintf("ClaudeConfig{APIKey:%s, Model:%s}", maskAPIKey(c.APIKey), c.Model)
}

// maskAPIKey shows first 4 + last 4 chars, replacing the middle with asterisks.
func maskAPIKey(key string) string {
	const visible = 4
	if len(key) <= visible*2 {
		return "***"
	}
	return key[:visible] + "****" + key[len(key)-visible:]
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	Path             string        `mapstructure:"path"`
	PendingQueuePath string        `mapstructure:"pending_queue_path"`
	EncryptedCapable bool          `mapstructure:"encrypted_capable"`
	MaxRetries       int           `mapstructure:"max_retries"`
	Backoff          time.Duration `mapstructure:"backoff"`
}

// PipelineConfig holds orchestration settings.
type PipelineConfig struct {
	ContactID       string `mapstructure:"contact_id"`
	Source          string `mapstructure:"source"`
	IndexPartitions int    `mapstructure:"index_partitions"`
	IndexDepth      int    `mapstructure:"index_depth"`
	AuditBuffer     int    `mapstructure:"audit_buffer"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	dataDir := filepath.Join(homeDir(), ".memopipe")

	v.SetDefault("claude.model", "claude-haiku-4-5-20251001")
	v.SetDefault("claude.requests_per_second", 2.0)

	v.SetDefault("store.path", filepath.Join(dataDir, "memories.db"))
	v.SetDefault("store.pending_queue_path", filepath.Join(dataDir, "pending.jsonl"))
	v.SetDefault("store.encrypted_capable", false)
	v.SetDefault("store.max_retries", DefaultMaxRetries)
	v.SetDefault("store.backoff", DefaultBackoff)

	v.SetDefault("pipeline.contact_id", "default")
	v.SetDefault("pipeline.source", "cli")
	v.SetDefault("pipeline.index_partitions", DefaultIndexPartitions)
	v.SetDefault("pipeline.index_depth", DefaultIndexDepth)
	v.SetDefault("pipeline.audit_buffer", 64)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dataDir)
	v.AddConfigPath(".")

	// Environment variables
	v.SetEnvPrefix("MEMOPIPE")
	v.AutomaticEnv()

	// Map specific env vars
	_ = v.BindEnv("claude.api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("store.path", "MEMOPIPE_STORE_PATH")
	_ = v.BindEnv("store.encrypted_capable", "MEMOPIPE_STORE_ENCRYPTED_CAPABLE")
	_ = v.BindEnv("pipeline.contact_id", "MEMOPIPE_CONTACT_ID")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK — use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are set and consistent.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	if c.Store.PendingQueuePath == "" {
		return fmt.Errorf("store.pending_queue_path must not be empty")
	}
	if c.Store.MaxRetries < 0 {
		return fmt.Errorf("store.max_retries must be >= 0")
	}
	if c.Store.Backoff < 0 {
		return fmt.Errorf("store.backoff must be >= 0")
	}
	if c.Pipeline.IndexPartitions <= 0 {
		return fmt.Errorf("pipeline.index_partitions must be greater than 0")
	}
	if c.Pipeline.IndexDepth <= 0 {
		return fmt.Errorf("pipeline.index_depth must be greater than 0")
	}
	if c.Claude.RequestsPerSecond < 0 {
		return fmt.Errorf("claude.requests_per_second must be >= 0")
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
