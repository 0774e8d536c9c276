package config

import "time"

// Config is the root configuration for Switchboard.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Database      DatabaseConfig      `yaml:"database"`
	Calls         CallsConfig         `yaml:"calls"`
	Notifications NotificationsConfig `yaml:"notifications"`
}

type ServerConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	PublicURL string `yaml:"public_url"`
	LogLevel  string `yaml:"log_level"`
	LogFile   string `yaml:"log_file"`
}

// AuthConfig controls the bearer token guarding /api and /mcp.
// When APIToken is empty the token is read from (or generated into) TokenDir.
type AuthConfig struct {
	APIToken string `yaml:"api_token"`
	TokenDir string `yaml:"token_dir"`
}

type DatabaseConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

type CallsConfig struct {
	MaxActive             int           `yaml:"max_active"`
	EndedRetention        time.Duration `yaml:"ended_retention"`
	RecoverObserverPanics bool          `yaml:"recover_observer_panics"`
}

type NotificationsConfig struct {
	MCP MCPNotificationsConfig `yaml:"mcp"`
}

type MCPNotificationsConfig struct {
	Enabled          bool          `yaml:"enabled"`
	ViewSizeDebounce time.Duration `yaml:"view_size_debounce"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "127.0.0.1",
			Port:     8420,
			LogLevel: "info",
		},
		Auth: AuthConfig{
			TokenDir: "~/.config/switchboard",
		},
		Database: DatabaseConfig{
			Path:          "~/.config/switchboard/switchboard.db",
			RetentionDays: 90,
		},
		Calls: CallsConfig{
			MaxActive:      4,
			EndedRetention: 15 * time.Minute,
		},
		Notifications: NotificationsConfig{
			MCP: MCPNotificationsConfig{
				Enabled:          true,
				ViewSizeDebounce: time.Second,
			},
		},
	}
}
