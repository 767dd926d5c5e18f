// Package config loads the oneapi CLI configuration from file and environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sternrassler/oneapi-client/pkg/client"
	"github.com/Sternrassler/oneapi-client/pkg/transport"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ONEAPI_API_KEY or ONEAPI_REDIS_ADDR.
const EnvPrefix = "ONEAPI"

// Config represents the complete configuration structure
type Config struct {
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	PageSize int           `mapstructure:"page_size"`
	Redis    RedisConfig   `mapstructure:"redis"`
	Logging  LoggingConfig `mapstructure:"logging"`
	Serve    ServeConfig   `mapstructure:"serve"`
}

// RedisConfig enables the shared response cache when Addr is set
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServeConfig configures the HTTP facade
type ServeConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load loads the configuration. An explicit configPath must exist; without one the
// standard locations are searched and a missing file is fine, since everything can
// come from the environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("oneapi")
		v.SetConfigType("yaml")

		v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".oneapi"))
		}

		v.AddConfigPath("/etc/oneapi/")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// ClientConfig maps the configuration onto a client configuration. Redis and the
// logger are left for the caller to wire.
func (c *Config) ClientConfig() client.Config {
	cfg := client.DefaultConfig(c.APIKey)
	cfg.BaseURL = c.BaseURL
	cfg.PageSize = c.PageSize
	cfg.SharedCacheTTL = c.Redis.TTL
	return cfg
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Bound so that ONEAPI_API_KEY is picked up without a file
	v.SetDefault("api_key", "")
	v.SetDefault("base_url", transport.DefaultBaseURL)
	v.SetDefault("page_size", client.DefaultPageSize)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "5m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "auto")

	v.SetDefault("serve.addr", ":8080")
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("api_key is required (set it in the config file or %s_API_KEY)", EnvPrefix)
	}

	if cfg.PageSize <= 0 {
		return fmt.Errorf("page_size must be > 0 (got %d)", cfg.PageSize)
	}

	if cfg.Redis.Addr != "" && cfg.Redis.TTL <= 0 {
		return fmt.Errorf("redis.ttl must be > 0 when redis.addr is set")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	validFormats := map[string]bool{
		"auto":    true,
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	return nil
}
