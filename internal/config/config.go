// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Scan     ScanConfig     `mapstructure:"scan"`
	Ebay     EbayConfig     `mapstructure:"ebay"`
	Email    EmailConfig    `mapstructure:"email"`
	Headless HeadlessConfig `mapstructure:"headless"`
	DB       DBConfig       `mapstructure:"db"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// ScanConfig governs cycle scheduling and execution.
type ScanConfig struct {
	// CronSpec is the periodic trigger schedule.
	CronSpec string `mapstructure:"cron_spec"`
	Workers  int    `mapstructure:"workers"`
	// Sequential runs monitors one at a time with a shared browser session.
	Sequential bool `mapstructure:"sequential"`
}

// EbayConfig holds Browse API credentials.
type EbayConfig struct {
	AppID         string `mapstructure:"app_id"`
	CertID        string `mapstructure:"cert_id"`
	MarketplaceID string `mapstructure:"marketplace_id"`
}

// EmailConfig holds the transactional email API settings.
type EmailConfig struct {
	APIKey string `mapstructure:"api_key"`
	From   string `mapstructure:"from"`
}

// HeadlessConfig configures the browser-automation extractor. When RemoteURL
// is set the service attaches to that CDP endpoint instead of launching a
// local browser.
type HeadlessConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	RemoteURL     string `mapstructure:"remote_url"`
	MaxPages      int    `mapstructure:"max_pages"`
	PageRetries   int    `mapstructure:"page_retries"`
	NavTimeoutSec int    `mapstructure:"nav_timeout_seconds"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PARTHAWK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("scan.cron_spec", "@every 15m")
	v.SetDefault("scan.workers", 4)
	v.SetDefault("scan.sequential", false)
	v.SetDefault("ebay.marketplace_id", "EBAY_US")
	v.SetDefault("email.from", "alerts@parthawk.dev")
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.remote_url", "")
	v.SetDefault("headless.max_pages", 3)
	v.SetDefault("headless.page_retries", 2)
	v.SetDefault("headless.nav_timeout_seconds", 30)
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scan.Workers <= 0 {
		return fmt.Errorf("scan.workers must be > 0")
	}
	if c.Scan.CronSpec == "" {
		return fmt.Errorf("scan.cron_spec is required")
	}
	if c.Headless.Enabled && c.Headless.MaxPages <= 0 {
		return fmt.Errorf("headless.max_pages must be > 0 when headless is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required when auth is enabled")
	}
	return nil
}
