// Package config handles configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/spetr/tobedo/pkg/provider"
	"github.com/spetr/tobedo/pkg/types"
)

// TokenEnv is the environment variable holding the bot credential.
const TokenEnv = "TG_TOKEN"

// Config represents the complete configuration.
type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// TelegramConfig contains bot API configuration.
type TelegramConfig struct {
	Token       string        `mapstructure:"token" yaml:"token"`               // bot access credential
	Debug       bool          `mapstructure:"debug" yaml:"debug"`               // log raw API traffic
	PollTimeout time.Duration `mapstructure:"poll_timeout" yaml:"poll_timeout"` // long-poll timeout
}

// StoreConfig contains reply store configuration.
type StoreConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider"` // sqlite
	Path     string `mapstructure:"path" yaml:"path"`         // database file
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // text, json
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			PollTimeout: 60 * time.Second,
		},
		Store: StoreConfig{
			Provider: "sqlite",
			Path:     filepath.Join("db", "tobedo.sqlite3"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// newViper returns a viper instance seeded with defaults and environment bindings.
// TOBEDO_STORE_PATH style variables override any key; TG_TOKEN sets the token.
func newViper() *viper.Viper {
	def := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("telegram.token", def.Telegram.Token)
	v.SetDefault("telegram.debug", def.Telegram.Debug)
	v.SetDefault("telegram.poll_timeout", def.Telegram.PollTimeout)
	v.SetDefault("store.provider", def.Store.Provider)
	v.SetDefault("store.path", def.Store.Path)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)

	v.SetEnvPrefix("tobedo")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("telegram.token", "TOBEDO_TELEGRAM_TOKEN", TokenEnv)

	return v
}

// Load loads configuration from path (optional), the environment and defaults.
// It returns the viper instance so callers can watch the file for changes.
func Load(path string) (*Config, *viper.Viper, []string, error) {
	v := newViper()
	warnings := []string{}

	if path == "" {
		warnings = append(warnings, "No config file given, using defaults and environment")
	} else if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		warnings = append(warnings, fmt.Sprintf("Config file %s not found, using defaults and environment", path))
	} else {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, v, warnings, nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Save saves configuration to file. The token is never written.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("telegram.debug", cfg.Telegram.Debug)
	v.Set("telegram.poll_timeout", cfg.Telegram.PollTimeout.String())
	v.Set("store", cfg.Store)
	v.Set("logging", cfg.Logging)

	return v.WriteConfig()
}

// Validate validates the configuration.
func Validate(cfg *Config) []error {
	var errs []error

	if cfg.Telegram.Token == "" {
		errs = append(errs, fmt.Errorf("%w: telegram token is empty (set %s)", types.ErrInvalidConfig, TokenEnv))
	}
	if cfg.Telegram.PollTimeout < 0 {
		errs = append(errs, fmt.Errorf("%w: negative poll timeout %s", types.ErrInvalidConfig, cfg.Telegram.PollTimeout))
	}

	if !provider.DefaultRegistry.HasReplyStore(cfg.Store.Provider) {
		errs = append(errs, fmt.Errorf("%w: invalid store provider: %s (registered: %s)",
			types.ErrInvalidConfig, cfg.Store.Provider, strings.Join(provider.DefaultRegistry.ListReplyStores(), ", ")))
	}
	if cfg.Store.Path == "" {
		errs = append(errs, fmt.Errorf("%w: store path is empty", types.ErrInvalidConfig))
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, fmt.Errorf("%w: invalid log level: %s", types.ErrInvalidConfig, cfg.Logging.Level))
	}

	validFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, fmt.Errorf("%w: invalid log format: %s", types.ErrInvalidConfig, cfg.Logging.Format))
	}

	return errs
}

// Watch reloads the configuration whenever the file behind v changes and
// passes the new value to fn. Invalid files are reported through onError.
func Watch(v *viper.Viper, fn func(*Config), onError func(error)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			onError(fmt.Errorf("reload %s: %w", e.Name, err))
			return
		}
		fn(cfg)
	})
	v.WatchConfig()
}

// Redacted returns a copy safe for printing.
func (c *Config) Redacted() *Config {
	copy := *c
	if copy.Telegram.Token != "" {
		copy.Telegram.Token = "***"
	}
	return &copy
}
