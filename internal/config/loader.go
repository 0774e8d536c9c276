package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// logLevels maps the accepted server.log_level values to slog levels.
var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// ParseLogLevel resolves a configured log level, ignoring case.
func ParseLogLevel(s string) (slog.Level, error) {
	if lvl, ok := logLevels[strings.ToLower(s)]; ok {
		return lvl, nil
	}
	return slog.LevelInfo, fmt.Errorf("server.log_level must be one of debug, info, warn, error, got %q", s)
}

// envOverrides binds environment variables to config fields. They win over
// every file.
var envOverrides = []struct {
	name  string
	field func(*Config) *string
}{
	{"SWITCHBOARD_API_TOKEN", func(c *Config) *string { return &c.Auth.APIToken }},
	{"SWITCHBOARD_LOG_LEVEL", func(c *Config) *string { return &c.Server.LogLevel }},
}

// searchPaths lists config locations from lowest to highest precedence:
// /etc/switchboard, the user config dir, the working dir, then $SWITCHBOARD_CONFIG.
func searchPaths() []string {
	paths := []string{"/etc/switchboard/switchboard.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "switchboard", "switchboard.yaml"))
	}
	paths = append(paths, "switchboard.yaml")
	if p := os.Getenv("SWITCHBOARD_CONFIG"); p != "" {
		paths = append(paths, p)
	}
	return paths
}

// Load builds the configuration from the default search paths. Each file found
// overrides the ones before it; missing files are skipped.
func Load() (*Config, error) {
	return load(searchPaths()...)
}

// LoadFromFile builds the configuration from a single file on top of the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	return load(path)
}

func load(paths ...string) (*Config, error) {
	cfg := Defaults()
	for _, p := range paths {
		if err := mergeFile(cfg, p); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", p, err)
		}
	}
	for _, o := range envOverrides {
		if v := os.Getenv(o.name); v != "" {
			*o.field(cfg) = v
		}
	}
	if err := cfg.check(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.expandPaths()
	return cfg, nil
}

// mergeFile decodes path over cfg after expanding ${VAR} references. A missing
// file leaves cfg untouched.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted config search paths
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("reading file: %w", err)
	}

	slog.Debug("loading config file", "path", path)
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}
	return nil
}

// check reports every invalid setting at once.
func (c *Config) check() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.Host == "0.0.0.0" {
		errs = append(errs, errors.New("server.host must not be 0.0.0.0; Switchboard listens on localhost only (put a reverse proxy in front for external access)"))
	}
	if _, err := ParseLogLevel(c.Server.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Calls.MaxActive < 1 {
		errs = append(errs, errors.New("calls.max_active must be at least 1"))
	}
	if c.Calls.EndedRetention < 0 {
		errs = append(errs, errors.New("calls.ended_retention must not be negative"))
	}
	if c.Database.RetentionDays < 0 {
		errs = append(errs, errors.New("database.retention_days must not be negative"))
	}
	return errors.Join(errs...)
}

func (c *Config) expandPaths() {
	for _, p := range []*string{&c.Database.Path, &c.Auth.TokenDir, &c.Server.LogFile} {
		*p = ExpandHome(*p)
	}
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
