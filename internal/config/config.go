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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Analysis  AnalysisConfig  `yaml:"analysis" mapstructure:"analysis"`
	Blob      BlobConfig      `yaml:"blob" mapstructure:"blob"`
	Health    HealthConfig    `yaml:"health" mapstructure:"health"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key                string `yaml:"key" mapstructure:"key"`
	EssentialModel     string `yaml:"essential_model" mapstructure:"essential_model"`
	ComprehensiveModel string `yaml:"comprehensive_model" mapstructure:"comprehensive_model"`
	LookupModel        string `yaml:"lookup_model" mapstructure:"lookup_model"`
	RequestsPerMinute  int    `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	MaxTokens          int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	WebSearchUses      int64  `yaml:"web_search_uses" mapstructure:"web_search_uses"`
}

// AnalysisConfig configures meal analysis behavior.
type AnalysisConfig struct {
	Tier        string `yaml:"tier" mapstructure:"tier"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	MaxImageDim int    `yaml:"max_image_dim" mapstructure:"max_image_dim"`
	JPEGQuality int    `yaml:"jpeg_quality" mapstructure:"jpeg_quality"`
}

// BlobConfig configures meal image storage.
type BlobConfig struct {
	Dir     string `yaml:"dir" mapstructure:"dir"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// HealthConfig configures downstream health data sinks.
type HealthConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// ServerConfig configures the HTTP API server.
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
	v.SetEnvPrefix("MEALSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "mealscan.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.essential_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.comprehensive_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.lookup_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.requests_per_minute", 30)
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.web_search_uses", 3)
	v.SetDefault("analysis.tier", "essential")
	v.SetDefault("analysis.max_retries", 2)
	v.SetDefault("analysis.max_image_dim", 1568)
	v.SetDefault("analysis.jpeg_quality", 85)
	v.SetDefault("blob.dir", "meal-images")
	v.SetDefault("blob.base_url", "")
	v.SetDefault("health.enabled", false)

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
