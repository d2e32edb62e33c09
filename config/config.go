package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported LLM providers
const (
	ProviderDeepSeek  = "deepseek"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Supported market data sources
const (
	SourceYahoo    = "yahoo"
	SourceFinnhub  = "finnhub"
	SourceLongport = "longport"
)

type Config struct {
	ProjectDir   string `json:"project_dir"`
	DataDir      string `json:"data_dir"`
	DataCacheDir string `json:"data_cache_dir"`

	LLMProvider    string  `json:"llm_provider"`
	LLMModel       string  `json:"llm_model"`
	BackendURL     string  `json:"backend_url"`
	LLMTemperature float32 `json:"llm_temperature"`
	LLMMaxTokens   int     `json:"llm_max_tokens"`
	MaxIterations  int     `json:"max_iterations"`
	Debug          bool    `json:"debug"`

	// Eino Debug configuration
	EinoDebugEnabled bool `json:"eino_debug_enabled"`
	EinoDebugPort    int  `json:"eino_debug_port"`

	DataSource   string `json:"data_source"`
	CacheEnabled bool   `json:"cache_enabled"`

	// Query journal stored at DataDir/stockqa.db
	HistoryEnabled bool `json:"history_enabled"`

	// Service configuration
	ServerAddr string        `json:"server_addr"`
	QueryDelay time.Duration `json:"query_delay"`
	LogLevel   string        `json:"log_level"`
	AppEnv     string        `json:"app_env"`

	// Longport API Configuration
	LongportAppKey      string `json:"-"`
	LongportAppSecret   string `json:"-"`
	LongportAccessToken string `json:"-"`

	// AI Model API Keys
	DeepSeekAPIKey  string `json:"-"`
	OpenAIAPIKey    string `json:"-"`
	AnthropicAPIKey string `json:"-"`

	// Market data API keys
	FinnhubAPIKey string `json:"-"`
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()

	cfg := &Config{
		ProjectDir:   currentDir,
		DataDir:      filepath.Join(currentDir, "data"),
		DataCacheDir: filepath.Join(currentDir, "data", "cache"),

		LLMProvider:    ProviderDeepSeek,
		LLMModel:       "",
		BackendURL:     "",
		LLMTemperature: 0.1,
		LLMMaxTokens:   1024,
		MaxIterations:  5,
		Debug:          false,

		// Eino Debug defaults
		EinoDebugEnabled: false,
		EinoDebugPort:    52538,

		DataSource:   SourceYahoo,
		CacheEnabled: true,

		HistoryEnabled: true,

		ServerAddr: ":8000",
		QueryDelay: 0,
		LogLevel:   "info",
		AppEnv:     "development",
	}

	// Load environment variables from .env file
	_ = godotenv.Load()

	// Override with environment variables if they exist
	cfg.loadFromEnv()

	return cfg
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("PROJECT_DIR"); val != "" {
		c.ProjectDir = val
	}
	if val := os.Getenv("DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("DATA_CACHE_DIR"); val != "" {
		c.DataCacheDir = val
	}

	if val := os.Getenv("LLM_PROVIDER"); val != "" {
		c.LLMProvider = strings.ToLower(val)
	}
	if val := os.Getenv("LLM_MODEL"); val != "" {
		c.LLMModel = val
	}
	if val := os.Getenv("BACKEND_URL"); val != "" {
		c.BackendURL = val
	}
	if val := os.Getenv("LLM_TEMPERATURE"); val != "" {
		if v, err := strconv.ParseFloat(val, 32); err == nil {
			c.LLMTemperature = float32(v)
		}
	}
	if val := os.Getenv("LLM_MAX_TOKENS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.LLMMaxTokens = v
		}
	}
	if val := os.Getenv("MAX_ITERATIONS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxIterations = v
		}
	}

	if val := os.Getenv("DATA_SOURCE"); val != "" {
		c.DataSource = strings.ToLower(val)
	}
	if val := os.Getenv("CACHE_ENABLED"); val != "" {
		if cache, err := strconv.ParseBool(val); err == nil {
			c.CacheEnabled = cache
		}
	}
	if val := os.Getenv("HISTORY_ENABLED"); val != "" {
		if history, err := strconv.ParseBool(val); err == nil {
			c.HistoryEnabled = history
		}
	}

	if val := os.Getenv("SERVER_ADDR"); val != "" {
		c.ServerAddr = val
	}
	if val := os.Getenv("QUERY_DELAY"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.QueryDelay = d
		}
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := os.Getenv("APP_ENV"); val != "" {
		c.AppEnv = val
	}

	if val := os.Getenv("STOCKQA_DEBUG"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Debug = enabled
		}
	}

	if val := os.Getenv("EINO_DEBUG_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.EinoDebugEnabled = enabled
		}
	}
	if val := os.Getenv("EINO_DEBUG_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.EinoDebugPort = port
		}
	}

	if val := os.Getenv("LONGPORT_APP_KEY"); val != "" {
		c.LongportAppKey = val
	}
	if val := os.Getenv("LONGPORT_APP_SECRET"); val != "" {
		c.LongportAppSecret = val
	}
	if val := os.Getenv("LONGPORT_ACCESS_TOKEN"); val != "" {
		c.LongportAccessToken = val
	}

	if val := os.Getenv("DEEPSEEK_API_KEY"); val != "" {
		c.DeepSeekAPIKey = val
	}
	if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		c.OpenAIAPIKey = val
	}
	if val := os.Getenv("ANTHROPIC_API_KEY"); val != "" {
		c.AnthropicAPIKey = val
	}
	if val := os.Getenv("STOCKQA_FINNHUB_API_KEY"); val != "" {
		c.FinnhubAPIKey = val
	}
}

// Validate reports the first setting that cannot be used to build the engine.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderDeepSeek, ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unsupported llm provider %q", c.LLMProvider)
	}

	switch c.DataSource {
	case SourceYahoo, SourceFinnhub, SourceLongport:
	default:
		return fmt.Errorf("unsupported data source %q", c.DataSource)
	}

	if c.MaxIterations <= 0 {
		return fmt.Errorf("max iterations must be positive, got %d", c.MaxIterations)
	}
	if c.LLMMaxTokens <= 0 {
		return fmt.Errorf("llm max tokens must be positive, got %d", c.LLMMaxTokens)
	}
	if c.QueryDelay < 0 {
		return fmt.Errorf("query delay must not be negative, got %s", c.QueryDelay)
	}
	return nil
}

// ModelName returns the configured model, or the provider default when none is set.
func (c *Config) ModelName() string {
	if c.LLMModel != "" {
		return c.LLMModel
	}
	switch c.LLMProvider {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderAnthropic:
		return "claude-3-5-haiku-latest"
	default:
		return "deepseek-chat"
	}
}

// APIKey returns the key of the configured provider.
func (c *Config) APIKey() string {
	switch c.LLMProvider {
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	case ProviderAnthropic:
		return c.AnthropicAPIKey
	default:
		return c.DeepSeekAPIKey
	}
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ProjectDir, c.DataDir}
	if c.CacheEnabled {
		dirs = append(dirs, c.DataCacheDir)
	}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}
