package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Provider ProviderConfig `mapstructure:"provider"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ProviderConfig holds price feed configuration
type ProviderConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Symbol         string        `mapstructure:"symbol"`
	Timeout        time.Duration `mapstructure:"timeout"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	MinHistoryDays int           `mapstructure:"min_history_days"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

// MonitorConfig holds monitoring behavior configuration
type MonitorConfig struct {
	CheckInterval  time.Duration `mapstructure:"check_interval"`
	SMAPeriods     []int         `mapstructure:"sma_periods"`
	BackoffInitial time.Duration `mapstructure:"backoff_initial"`
	BackoffMax     time.Duration `mapstructure:"backoff_max"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RestoreState   bool          `mapstructure:"restore_state"`
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	Enabled  bool   `mapstructure:"enabled"`
}

// StorageConfig holds persistence configuration
type StorageConfig struct {
	DBPath    string `mapstructure:"db_path"`
	MaxAlerts int    `mapstructure:"max_alerts"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	minCheckInterval = 1 * time.Minute
	maxCheckInterval = 15 * time.Minute
)

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("SMA_SENTINEL")
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
	v.SetDefault("provider.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("provider.symbol", "SPY")
	v.SetDefault("provider.timeout", "30s")
	v.SetDefault("provider.cache_ttl", "5m")
	v.SetDefault("provider.min_history_days", 100)
	v.SetDefault("provider.max_retries", 3)

	v.SetDefault("monitor.check_interval", "5m")
	v.SetDefault("monitor.sma_periods", []int{25, 50, 75, 100})
	v.SetDefault("monitor.backoff_initial", "30s")
	v.SetDefault("monitor.backoff_max", "5m")
	v.SetDefault("monitor.max_retries", 5)
	v.SetDefault("monitor.restore_state", false)

	v.SetDefault("storage.db_path", "./data/smasentinel.db")
	v.SetDefault("storage.max_alerts", 1000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// CheckInterval returns the monitoring cadence clamped to [1m, 15m].
func (c *Config) CheckInterval() time.Duration {
	interval := c.Monitor.CheckInterval
	if interval < minCheckInterval {
		return minCheckInterval
	}
	if interval > maxCheckInterval {
		return maxCheckInterval
	}
	return interval
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider.base_url is required")
	}
	if c.Provider.Symbol == "" {
		return fmt.Errorf("provider.symbol is required")
	}
	if c.Provider.Timeout <= 0 {
		return fmt.Errorf("provider.timeout must be positive")
	}
	if c.Provider.CacheTTL < 0 {
		return fmt.Errorf("provider.cache_ttl must not be negative")
	}
	if c.Provider.MinHistoryDays < 100 {
		return fmt.Errorf("provider.min_history_days must be at least 100")
	}
	if c.Provider.MaxRetries < 1 {
		return fmt.Errorf("provider.max_retries must be at least 1")
	}

	if c.Monitor.CheckInterval <= 0 {
		return fmt.Errorf("monitor.check_interval must be positive")
	}
	if len(c.Monitor.SMAPeriods) == 0 {
		return fmt.Errorf("monitor.sma_periods must contain at least one period")
	}
	seen := make(map[int]bool, len(c.Monitor.SMAPeriods))
	for _, p := range c.Monitor.SMAPeriods {
		if p < 1 {
			return fmt.Errorf("monitor.sma_periods entries must be at least 1, got %d", p)
		}
		if seen[p] {
			return fmt.Errorf("monitor.sma_periods contains duplicate period %d", p)
		}
		seen[p] = true
	}
	if c.Monitor.BackoffInitial < 1*time.Second {
		return fmt.Errorf("monitor.backoff_initial must be at least 1 second")
	}
	if c.Monitor.BackoffMax < c.Monitor.BackoffInitial {
		return fmt.Errorf("monitor.backoff_max must not be less than monitor.backoff_initial")
	}
	if c.Monitor.MaxRetries < 1 {
		return fmt.Errorf("monitor.max_retries must be at least 1")
	}

	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
	}

	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.MaxAlerts < 1 {
		return fmt.Errorf("storage.max_alerts must be at least 1")
	}

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
