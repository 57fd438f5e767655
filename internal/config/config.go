package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Lottery   LotteryConfig   `mapstructure:"lottery"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Updater   UpdaterConfig   `mapstructure:"updater"`
	Server    ServerConfig    `mapstructure:"server"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// LotteryConfig holds the results site configuration
type LotteryConfig struct {
	URL            string        `mapstructure:"url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// GeneratorConfig holds suggestion sampling configuration
type GeneratorConfig struct {
	ShortPolicy string        `mapstructure:"short_policy"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
	Seed        uint64        `mapstructure:"seed"` // 0 uses the global source
}

// UpdaterConfig holds the scheduled update configuration
type UpdaterConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Schedule   string `mapstructure:"schedule"`
	RunOnStart bool   `mapstructure:"run_on_start"`
}

// ServerConfig holds HTTP API configuration
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	Commands       bool          `mapstructure:"commands"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds draw store configuration
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	setDefaults(v)

	// LOTTORACLE_STORAGE_DRIVER overrides storage.driver
	v.SetEnvPrefix("LOTTORACLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Lottery defaults
	v.SetDefault("lottery.url", "https://dhlottery.co.kr/common.do?method=main")
	v.SetDefault("lottery.timeout", "30s")
	v.SetDefault("lottery.max_retries", 3)
	v.SetDefault("lottery.retry_delay_base", "1s")

	// Generator defaults
	v.SetDefault("generator.short_policy", "truncate")
	v.SetDefault("generator.max_attempts", 1)
	v.SetDefault("generator.backoff", "0s")
	v.SetDefault("generator.seed", 0)

	// Updater defaults: the weekly draw is announced Saturday evening KST
	v.SetDefault("updater.enabled", true)
	v.SetDefault("updater.schedule", "0 0 21 * * SAT")
	v.SetDefault("updater.run_on_start", false)

	// Server defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.addr", ":8080")

	// Telegram defaults
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.commands", true)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Storage defaults
	v.SetDefault("storage.driver", "csv")
	v.SetDefault("storage.path", "./data/lotto_result.csv")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Lottery config
	if c.Lottery.URL == "" {
		return fmt.Errorf("lottery.url is required")
	}
	if c.Lottery.Timeout < time.Second {
		return fmt.Errorf("lottery.timeout must be at least 1 second")
	}
	if c.Lottery.MaxRetries < 1 {
		return fmt.Errorf("lottery.max_retries must be at least 1")
	}

	// Validate Generator config
	switch c.Generator.ShortPolicy {
	case "truncate":
	case "resample":
		if c.Generator.MaxAttempts < 1 {
			return fmt.Errorf("generator.max_attempts must be at least 1 when short_policy is resample")
		}
	default:
		return fmt.Errorf("generator.short_policy must be one of: truncate, resample")
	}
	if c.Generator.Backoff < 0 {
		return fmt.Errorf("generator.backoff must not be negative")
	}

	// Validate Updater config
	if c.Updater.Enabled {
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(c.Updater.Schedule); err != nil {
			return fmt.Errorf("updater.schedule is invalid: %w", err)
		}
	}

	// Validate Server config
	if c.Server.Enabled && c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required when server is enabled")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
		if c.Telegram.MaxRetries < 1 {
			return fmt.Errorf("telegram.max_retries must be at least 1")
		}
	}

	// Validate Storage config
	validDrivers := map[string]bool{"csv": true, "sqlite": true}
	if !validDrivers[c.Storage.Driver] {
		return fmt.Errorf("storage.driver must be one of: csv, sqlite")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
