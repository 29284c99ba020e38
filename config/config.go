package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// envBindings maps config keys to the environment variables that override them
var envBindings = map[string]string{
	"qbittorrent.url":      "QBIT_URL",
	"qbittorrent.username": "QBIT_USERNAME",
	"qbittorrent.password": "QBIT_PASSWORD",
}

// Load loads the configuration. The config file is optional; defaults and
// environment variables are enough to run.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	v.SetEnvPrefix("QBITCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env, "QBITCTL_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_"))); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", env, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in standard locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// Check current directory first
		v.AddConfigPath(".")

		// Check home directory
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".qbitctl"))
		}

		// Check /etc
		v.AddConfigPath("/etc/qbitctl/")
	}

	// Read config file
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

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// qBittorrent defaults
	v.SetDefault("qbittorrent.url", "http://localhost:8080")
	v.SetDefault("qbittorrent.username", "admin")
	v.SetDefault("qbittorrent.password", "adminPassword")
	v.SetDefault("qbittorrent.backend", BackendWebAPI)
	v.SetDefault("qbittorrent.timeout", "30s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.color", true)
}

// Validate checks the configuration, for use after overriding loaded values
func (c *Config) Validate() error {
	return validate(c)
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	if cfg.QBittorrent.URL == "" {
		return fmt.Errorf("qbittorrent.url is required")
	}
	u, err := url.Parse(cfg.QBittorrent.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("qbittorrent.url must be an absolute URL: %s", cfg.QBittorrent.URL)
	}

	switch cfg.QBittorrent.Backend {
	case BackendWebAPI, BackendLibrary:
	default:
		return fmt.Errorf("invalid qbittorrent.backend: %s (must be '%s' or '%s')",
			cfg.QBittorrent.Backend, BackendWebAPI, BackendLibrary)
	}

	if cfg.QBittorrent.Timeout < 0 {
		return fmt.Errorf("qbittorrent.timeout must not be negative")
	}

	// Validate logging level
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	return nil
}
