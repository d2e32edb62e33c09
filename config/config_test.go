package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg := DefaultConfig()
	assert.Equal(t, ProviderDeepSeek, cfg.LLMProvider)
	assert.Equal(t, SourceYahoo, cfg.DataSource)
	assert.Equal(t, 5, cfg.MaxIterations)
	assert.Equal(t, 1024, cfg.LLMMaxTokens)
	assert.InDelta(t, 0.1, cfg.LLMTemperature, 1e-6)
	assert.Zero(t, cfg.QueryDelay)
	assert.True(t, cfg.HistoryEnabled)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("LLM_MODEL", "gpt-4o")
	t.Setenv("MAX_ITERATIONS", "7")
	t.Setenv("DATA_SOURCE", "finnhub")
	t.Setenv("STOCKQA_FINNHUB_API_KEY", "fh-key")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("QUERY_DELAY", "1s")
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("HISTORY_ENABLED", "0")
	t.Setenv("LLM_TEMPERATURE", "0.5")
	t.Setenv("LLM_MAX_TOKENS", "not-a-number")

	cfg := DefaultConfig()
	assert.Equal(t, ProviderOpenAI, cfg.LLMProvider)
	assert.Equal(t, "gpt-4o", cfg.ModelName())
	assert.Equal(t, "sk-test", cfg.APIKey())
	assert.Equal(t, 7, cfg.MaxIterations)
	assert.Equal(t, SourceFinnhub, cfg.DataSource)
	assert.Equal(t, "fh-key", cfg.FinnhubAPIKey)
	assert.Equal(t, time.Second, cfg.QueryDelay)
	assert.False(t, cfg.CacheEnabled)
	assert.False(t, cfg.HistoryEnabled)
	assert.InDelta(t, 0.5, cfg.LLMTemperature, 1e-6)
	assert.Equal(t, 1024, cfg.LLMMaxTokens, "unparsable values keep the default")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"provider", func(c *Config) { c.LLMProvider = "llama" }},
		{"source", func(c *Config) { c.DataSource = "bloomberg" }},
		{"iterations", func(c *Config) { c.MaxIterations = 0 }},
		{"max tokens", func(c *Config) { c.LLMMaxTokens = -1 }},
		{"delay", func(c *Config) { c.QueryDelay = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				LLMProvider:   ProviderAnthropic,
				DataSource:    SourceLongport,
				MaxIterations: 5,
				LLMMaxTokens:  1024,
			}
			require.NoError(t, cfg.Validate())
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestModelNameDefaults(t *testing.T) {
	assert.Equal(t, "deepseek-chat", (&Config{LLMProvider: ProviderDeepSeek}).ModelName())
	assert.Equal(t, "gpt-4o-mini", (&Config{LLMProvider: ProviderOpenAI}).ModelName())
	assert.Equal(t, "claude-3-5-haiku-latest", (&Config{LLMProvider: ProviderAnthropic}).ModelName())
}

func TestEnsureDirectories(t *testing.T) {
	root := t.TempDir()
	cfg := &Config{
		ProjectDir:   root,
		DataDir:      filepath.Join(root, "data"),
		DataCacheDir: filepath.Join(root, "data", "cache"),
		CacheEnabled: true,
	}
	require.NoError(t, cfg.EnsureDirectories())
	assert.DirExists(t, cfg.DataCacheDir)
}
