package config

import "time"

// Config represents the complete configuration structure
type Config struct {
	QBittorrent QBittorrentConfig `mapstructure:"qbittorrent"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// QBittorrentConfig holds the daemon connection details
type QBittorrentConfig struct {
	URL      string        `mapstructure:"url"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Backend  string        `mapstructure:"backend"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}

// Backend names
const (
	BackendWebAPI  = "webapi"
	BackendLibrary = "library"
)
