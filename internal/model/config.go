package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// AccountConfig holds the settings for one mail account.
type AccountConfig struct {
	// ID is the unique identifier for this account instance.
	ID string `mapstructure:"id" yaml:"id"`

	// Label is the user-facing name shown in the sidebar.
	Label string `mapstructure:"label" yaml:"label"`

	// Server and Port locate the IMAP endpoint.
	Server string `mapstructure:"server" yaml:"server"`
	Port   int    `mapstructure:"port" yaml:"port"`

	// Username is the login name; the password lives in the keyring.
	Username string `mapstructure:"username" yaml:"username"`

	// StartTLS selects STARTTLS on a plaintext port instead of
	// implicit TLS.
	StartTLS bool `mapstructure:"starttls" yaml:"starttls"`

	// EmailAddresses are the sender addresses owned by this account.
	EmailAddresses []string `mapstructure:"email_addresses" yaml:"email_addresses"`
}

// DisplayConfig holds UI/refresh preferences.
type DisplayConfig struct {
	RefreshIntervalSec int `mapstructure:"refresh_interval_sec" yaml:"refresh_interval_sec"`
	PageSize           int `mapstructure:"page_size" yaml:"page_size"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Accounts []AccountConfig `mapstructure:"accounts" yaml:"accounts"`
	Display  DisplayConfig   `mapstructure:"display" yaml:"display"`
}

// DefaultConfigPath returns the configuration file location,
// ~/.config/neverlight/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "neverlight", "config.yaml")
}

// DefaultCachePath returns the cache database location,
// ~/.config/neverlight/cache.db.
func DefaultCachePath() string {
	return filepath.Join(filepath.Dir(DefaultConfigPath()), "cache.db")
}

func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Accounts: []AccountConfig{},
		Display: DisplayConfig{
			RefreshIntervalSec: 300,
			PageSize:           50,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using
// Viper. A missing file yields the default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("display.refresh_interval_sec", 300)
	v.SetDefault("display.page_size", 50)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	for i := range cfg.Accounts {
		if cfg.Accounts[i].Port == 0 {
			cfg.Accounts[i].Port = 993
		}
	}

	return cfg, nil
}

// SaveConfig writes the configuration to a YAML file at path, creating
// parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("accounts", cfg.Accounts)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
