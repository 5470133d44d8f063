// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable [Load] reads the config path
// from.
const EnvironmentVariable = "SCMTUNNEL_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Production is for shared or unattended deployments.
	Production Environment = "production"
)

// Config is the configuration for both tunnel binaries.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging"`

	// Host configures scmtunnel-host.
	Host HostConfig `yaml:"host"`

	// Guest configures scmtunnel-guest.
	Guest GuestConfig `yaml:"guest"`

	Development *ConfigOverrides `yaml:"development,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per
// environment.
type ConfigOverrides struct {
	Logging *LoggingConfig `yaml:"logging,omitempty"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`

	// Format is one of auto, text, json. Auto picks text when stderr
	// is a terminal and JSON otherwise.
	// Default: auto
	Format string `yaml:"format"`
}

// HostConfig configures the host service.
type HostConfig struct {
	// Socket is the Unix socket the host listens on. Ignored when
	// Listen is set.
	// Default: ${XDG_RUNTIME_DIR:-/tmp}/scmtunnel.sock
	Socket string `yaml:"socket"`

	// Listen is a TCP address to listen on instead of Socket.
	Listen string `yaml:"listen"`

	// AllowedUIDs restricts Unix socket peers to these user IDs.
	// Empty allows any peer that can open the socket.
	AllowedUIDs []uint32 `yaml:"allowed_uids"`

	// Folders are the shared workspace folders, in index order.
	Folders []string `yaml:"folders"`

	// WorkspaceFile is a .code-workspace file to read folders from.
	// Used when Folders is empty.
	WorkspaceFile string `yaml:"workspace_file"`

	// Git configures command execution.
	Git GitConfig `yaml:"git"`

	// Discovery configures repository discovery.
	Discovery DiscoveryConfig `yaml:"discovery"`

	// Compression configures command output compression.
	Compression CompressionConfig `yaml:"compression"`
}

// GitConfig configures the git runner.
type GitConfig struct {
	// Binary is the git executable.
	// Default: git (found in PATH)
	Binary string `yaml:"binary"`

	// Env is added to every command's environment.
	Env map[string]string `yaml:"env"`
}

// DiscoveryConfig configures repository discovery below each folder.
type DiscoveryConfig struct {
	// MaxDepth is the deepest directory level searched.
	// Default: 3
	MaxDepth int `yaml:"max_depth"`

	// Closed lists repository roots reported as closed.
	Closed []string `yaml:"closed"`
}

// CompressionConfig configures payload compression for command output.
type CompressionConfig struct {
	// Threshold is the output size in bytes at or above which output
	// is compressed. Zero disables compression.
	// Default: 16384
	Threshold int `yaml:"threshold"`

	// Text is the algorithm for text output: none, lz4, zstd.
	// Default: zstd
	Text string `yaml:"text"`

	// Binary is the algorithm for binary output: none, lz4, zstd.
	// Default: lz4
	Binary string `yaml:"binary"`
}

// GuestConfig configures the guest client.
type GuestConfig struct {
	// Socket is the host's Unix socket. Ignored when Connect is set.
	// Default: ${XDG_RUNTIME_DIR:-/tmp}/scmtunnel.sock
	Socket string `yaml:"socket"`

	// Connect is the host's TCP address.
	Connect string `yaml:"connect"`

	// Timeout bounds each command, as a Go duration string. Empty
	// means no bound beyond the transport's own.
	Timeout string `yaml:"timeout"`
}

const defaultSocket = "${XDG_RUNTIME_DIR:-/tmp}/scmtunnel.sock"

// Default returns the default configuration. These defaults are the
// base the config file is loaded over.
func Default() *Config {
	return &Config{
		Environment: Development,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
		Host: HostConfig{
			Socket: defaultSocket,
			Git: GitConfig{
				Binary: "git",
			},
			Discovery: DiscoveryConfig{
				MaxDepth: 3,
			},
			Compression: CompressionConfig{
				Threshold: 16 * 1024,
				Text:      "zstd",
				Binary:    "lz4",
			},
		},
		Guest: GuestConfig{
			Socket: defaultSocket,
		},
	}
}

// Load loads configuration from the SCMTUNNEL_CONFIG environment
// variable. If it is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your scmtunnel.yaml config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.ExpandVariables()
	return cfg, nil
}

// applyEnvironmentOverrides applies the section matching Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
		// Production defaults: machine-readable logs.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Logging: &LoggingConfig{Format: "json"},
			}
		}
	}
	if overrides == nil || overrides.Logging == nil {
		return
	}
	if overrides.Logging.Level != "" {
		c.Logging.Level = overrides.Logging.Level
	}
	if overrides.Logging.Format != "" {
		c.Logging.Format = overrides.Logging.Format
	}
}

// ExpandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields. The binaries call it again after applying flag overrides.
func (c *Config) ExpandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Host.Socket = expandVars(c.Host.Socket, vars)
	c.Host.WorkspaceFile = expandVars(c.Host.WorkspaceFile, vars)
	c.Host.Git.Binary = expandVars(c.Host.Git.Binary, vars)
	for i, folder := range c.Host.Folders {
		c.Host.Folders[i] = expandVars(folder, vars)
	}
	for i, closed := range c.Host.Discovery.Closed {
		c.Host.Discovery.Closed[i] = expandVars(closed, vars)
	}
	c.Guest.Socket = expandVars(c.Guest.Socket, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]

		// Provided vars first, then the environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

var (
	logLevels   = []string{"debug", "info", "warn", "error"}
	logFormats  = []string{"auto", "text", "json"}
	compressors = []string{"none", "lz4", "zstd"}
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if !contains(logLevels, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level must be one of: %v", logLevels))
	}
	if !contains(logFormats, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of: %v", logFormats))
	}
	if c.Host.Socket == "" && c.Host.Listen == "" {
		errs = append(errs, fmt.Errorf("host.socket or host.listen is required"))
	}
	if c.Host.Git.Binary == "" {
		errs = append(errs, fmt.Errorf("host.git.binary is required"))
	}
	if c.Host.Discovery.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("host.discovery.max_depth must not be negative"))
	}
	if c.Host.Compression.Threshold < 0 {
		errs = append(errs, fmt.Errorf("host.compression.threshold must not be negative"))
	}
	if !contains(compressors, c.Host.Compression.Text) {
		errs = append(errs, fmt.Errorf("host.compression.text must be one of: %v", compressors))
	}
	if !contains(compressors, c.Host.Compression.Binary) {
		errs = append(errs, fmt.Errorf("host.compression.binary must be one of: %v", compressors))
	}
	if c.Guest.Socket == "" && c.Guest.Connect == "" {
		errs = append(errs, fmt.Errorf("guest.socket or guest.connect is required"))
	}
	if c.Guest.Timeout != "" {
		if _, err := time.ParseDuration(c.Guest.Timeout); err != nil {
			errs = append(errs, fmt.Errorf("guest.timeout: %w", err))
		}
	}

	return errors.Join(errs...)
}

// GuestTimeout returns the parsed guest timeout, or zero when unset.
// Call Validate first.
func (c *Config) GuestTimeout() time.Duration {
	timeout, _ := time.ParseDuration(c.Guest.Timeout)
	return timeout
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
