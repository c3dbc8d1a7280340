package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessaro/memopipe/internal/config"
)

func validConfig() config.Config {
	return config.Config{
		Claude: config.ClaudeConfig{Model: "claude-haiku-4-5-20251001", RequestsPerSecond: 2},
		Store: config.StoreConfig{
			Path:             "/tmp/memories.db",
			PendingQueuePath: "/tmp/pending.jsonl",
			MaxRetries:       3,
			Backoff:          200 * time.Millisecond,
		},
		Pipeline: config.PipelineConfig{
			ContactID:       "default",
			IndexPartitions: 256,
			IndexDepth:      20,
		},
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"empty store path", func(c *config.Config) { c.Store.Path = "" }},
		{"empty queue path", func(c *config.Config) { c.Store.PendingQueuePath = "" }},
		{"negative retries", func(c *config.Config) { c.Store.MaxRetries = -1 }},
		{"negative backoff", func(c *config.Config) { c.Store.Backoff = -time.Second }},
		{"zero index partitions", func(c *config.Config) { c.Pipeline.IndexPartitions = 0 }},
		{"zero index depth", func(c *config.Config) { c.Pipeline.IndexDepth = 0 }},
		{"negative rate limit", func(c *config.Config) { c.Claude.RequestsPerSecond = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadUsesEnvironment(t *testing.T) {
	t.Setenv("MEMOPIPE_STORE_PATH", "/custom/memories.db")
	t.Setenv("MEMOPIPE_CONTACT_ID", "carol")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test-1234567890")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "/custom/memories.db", cfg.Store.Path)
	assert.Equal(t, "carol", cfg.Pipeline.ContactID)
	assert.Equal(t, "sk-test-1234567890", cfg.Claude.APIKey)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Claude.Model)
}

func TestClaudeConfigMasksAPIKey(t *testing.T) {
	c := config.ClaudeConfig{APIKey: "sk-ant-secret-key-abcd", Model: "m"}
	s := c.String()
	assert.NotContains(t, s, "secret-key")
	assert.Contains(t, s, "sk-a")
	assert.Contains(t, s, "abcd")

	short := config.ClaudeConfig{APIKey: "short"}
	assert.Contains(t, short.String(), "***")
}
