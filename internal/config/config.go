package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Agent      AgentConfig      `yaml:"agent" mapstructure:"agent"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AgentConfig configures the cleaning agent.
type AgentConfig struct {
	MaxRetries    int `yaml:"max_retries" mapstructure:"max_retries"`
	RetryWaitSecs int `yaml:"retry_wait_secs" mapstructure:"retry_wait_secs"`
}

// SearchConfig configures enrichment searches.
type SearchConfig struct {
	Enabled          bool `yaml:"enabled" mapstructure:"enabled"`
	MaxQueries       int  `yaml:"max_queries" mapstructure:"max_queries"`
	PaceMillis       int  `yaml:"pace_millis" mapstructure:"pace_millis"`
	BreakerThreshold int  `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int  `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// CacheConfig sizes the in-memory memo caches.
type CacheConfig struct {
	ResultEntries int `yaml:"result_entries" mapstructure:"result_entries"`
	SearchEntries int `yaml:"search_entries" mapstructure:"search_entries"`
}

// BatchConfig configures CSV batch runs.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// StoreConfig configures run-history persistence.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROVIDERCLEAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar")
	v.SetDefault("agent.max_retries", 3)
	v.SetDefault("agent.retry_wait_secs", 5)
	v.SetDefault("search.enabled", true)
	v.SetDefault("search.max_queries", 3)
	v.SetDefault("search.pace_millis", 1000)
	v.SetDefault("search.breaker_threshold", 5)
	v.SetDefault("search.breaker_reset_secs", 30)
	v.SetDefault("cache.result_entries", 1000)
	v.SetDefault("cache.search_entries", 500)
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "providerclean.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// RequireAnthropic fails fast when the cleaning model key is absent.
// Commands that call the model check this before doing any work.
func (c *Config) RequireAnthropic() error {
	if c.Anthropic.Key == "" {
		return eris.New("config: anthropic.key is required (set PROVIDERCLEAN_ANTHROPIC_KEY)")
	}
	return nil
}

// RequirePerplexity fails fast when enrichment is enabled without a
// search key.
func (c *Config) RequirePerplexity() error {
	if c.Search.Enabled && c.Perplexity.Key == "" {
		return eris.New("config: perplexity.key is required when search is enabled (set PROVIDERCLEAN_PERPLEXITY_KEY or disable search)")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
