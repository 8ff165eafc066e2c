// Package config loads appframe configuration from a YAML file with
// APPFRAME_* environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "appframe.yaml"

// Config holds all appframe configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Types    TypesConfig    `yaml:"types"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// TypesConfig points at the CUE record type definitions.
type TypesConfig struct {
	Dir string `yaml:"dir"`
}

// ServerConfig configures the API server.
type ServerConfig struct {
	Addr              string `yaml:"addr"`
	ReadHeaderTimeout string `yaml:"read_header_timeout"`
	ShutdownTimeout   string `yaml:"shutdown_timeout"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "appframe.db",
		},
		Types: TypesConfig{
			Dir: "types",
		},
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: "5s",
			ShutdownTimeout:   "10s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("APPFRAME_DB"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("APPFRAME_TYPES_DIR"); v != "" {
		c.Types.Dir = v
	}
	if v := os.Getenv("APPFRAME_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("APPFRAME_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("APPFRAME_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

// ValidLogLevels lists the accepted logging levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// ValidLogFormats lists the accepted logging formats.
var ValidLogFormats = []string{"json", "console"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server address is required")
	}
	if !contains(ValidLogLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
	}
	if !contains(ValidLogFormats, c.Logging.Format) {
		return fmt.Errorf("invalid log format: %s (valid: %v)", c.Logging.Format, ValidLogFormats)
	}
	if _, err := time.ParseDuration(c.Server.ReadHeaderTimeout); err != nil {
		return fmt.Errorf("invalid read_header_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

// GetReadHeaderTimeout returns the parsed read header timeout.
func (c *Config) GetReadHeaderTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ReadHeaderTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetShutdownTimeout returns the parsed shutdown timeout.
func (c *Config) GetShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
