package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	NBA      NBAConfig      `mapstructure:"nba"`
	Tracker  TrackerConfig  `mapstructure:"tracker"`
	Server   ServerConfig   `mapstructure:"server"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// NBAConfig holds stats API configuration
type NBAConfig struct {
	APIBaseURL     string        `mapstructure:"api_base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// TrackerConfig holds polling behavior configuration
type TrackerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Lookahead    int           `mapstructure:"lookahead"`
}

// ServerConfig holds read API configuration
type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
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

	v.SetEnvPrefix("REBOUND_TRACKER")
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
	// NBA stats API defaults
	v.SetDefault("nba.api_base_url", "https://stats.nba.com/stats")
	v.SetDefault("nba.timeout", "30s")
	v.SetDefault("nba.max_retries", 3)
	v.SetDefault("nba.retry_delay_base", "2s")

	// Tracker defaults
	v.SetDefault("tracker.poll_interval", "30s")
	v.SetDefault("tracker.lookahead", 3)

	// Server defaults
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", "10s")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate NBA config
	if c.NBA.APIBaseURL == "" {
		return fmt.Errorf("nba.api_base_url is required")
	}
	if c.NBA.Timeout < 1*time.Second {
		return fmt.Errorf("nba.timeout must be at least 1 second")
	}
	if c.NBA.MaxRetries < 1 {
		return fmt.Errorf("nba.max_retries must be at least 1")
	}
	if c.NBA.RetryDelayBase <= 0 {
		return fmt.Errorf("nba.retry_delay_base must be positive")
	}

	// Validate Tracker config
	if c.Tracker.PollInterval < 1*time.Second {
		return fmt.Errorf("tracker.poll_interval must be at least 1 second")
	}
	if c.Tracker.Lookahead < 1 {
		return fmt.Errorf("tracker.lookahead must be at least 1")
	}

	// Validate Server config
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
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
