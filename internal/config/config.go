// Package config resolves bridge settings from built-in defaults, an
// optional YAML config file, and command-line flags, in that order of
// precedence (flags win).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up in the user's home directory when no --config
// flag is given.
const DefaultFileName = ".mcpd-bridge.yaml"

// Config holds everything the bridge needs to run.
type Config struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Path           string `yaml:"path"`
	AuthToken      string `yaml:"auth_token"`
	LogLevel       string `yaml:"log_level"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Default returns the built-in settings: plain HTTP on port 80 at /mcp with
// a 30 second request timeout.
func Default() Config {
	return Config{
		Port:           80,
		Path:           "/mcp",
		TimeoutSeconds: 30,
	}
}

// Load reads a YAML config file. A missing file is only an error when the
// path was given explicitly; otherwise the zero Config is returned.
func Load(path string, explicit bool) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// DefaultPath returns the per-user config file location, or "" when the home
// directory cannot be determined.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, DefaultFileName)
}

// Merge overlays the non-zero fields of over onto c and returns the result.
func (c Config) Merge(over Config) Config {
	if over.Host != "" {
		c.Host = over.Host
	}
	if over.Port != 0 {
		c.Port = over.Port
	}
	if over.Path != "" {
		c.Path = over.Path
	}
	if over.AuthToken != "" {
		c.AuthToken = over.AuthToken
	}
	if over.LogLevel != "" {
		c.LogLevel = over.LogLevel
	}
	if over.TimeoutSeconds != 0 {
		c.TimeoutSeconds = over.TimeoutSeconds
	}
	return c
}
