// Package config provides configuration for the ollamactl client and
// supervisor. It handles loading and parsing YAML configuration files and
// applies defaults for anything unset, so an empty or absent file yields a
// fully usable configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for the supervised server and its readiness/restart behavior.
const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 11434

	DefaultIdleRestartSeconds = 90
	DefaultReadyTimeoutSecs   = 5
	DefaultReadyPollMillis    = 500
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Host is the loopback host the supervised server binds to.
	Host string `yaml:"host" json:"host"`

	// Port is the fixed, well-known TCP port of the supervised server.
	Port int `yaml:"port" json:"port"`

	// ServerBin optionally pins the path of the server executable. When
	// empty the binary is discovered (env override, bundled bin/, $PATH).
	ServerBin string `yaml:"server-bin,omitempty" json:"server-bin,omitempty"`

	// LogDir is where captured engine stdout/stderr logs are written.
	// Empty selects a per-user cache directory.
	LogDir string `yaml:"log-dir,omitempty" json:"log-dir,omitempty"`

	// IdleRestartSeconds is how long the server may sit idle (no inference
	// call) before the next call proactively recycles it. <= 0 selects the
	// default of 90 seconds.
	IdleRestartSeconds int `yaml:"idle-restart-seconds,omitempty" json:"idle-restart-seconds,omitempty"`

	// ReadyTimeoutSeconds bounds the wait for the server to answer probes
	// after a launch. <= 0 selects the default of 5 seconds.
	ReadyTimeoutSeconds int `yaml:"ready-timeout-seconds,omitempty" json:"ready-timeout-seconds,omitempty"`

	// ReadyPollMillis is the pause between readiness probes. <= 0 selects
	// the default of 500 milliseconds.
	ReadyPollMillis int `yaml:"ready-poll-millis,omitempty" json:"ready-poll-millis,omitempty"`
}

// Default returns a configuration with every field at its default.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the YAML configuration at path. A missing file is not an
// error; it yields the defaults, matching the zero-setup case.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port <= 0 {
		c.Port = DefaultPort
	}
	if c.IdleRestartSeconds <= 0 {
		c.IdleRestartSeconds = DefaultIdleRestartSeconds
	}
	if c.ReadyTimeoutSeconds <= 0 {
		c.ReadyTimeoutSeconds = DefaultReadyTimeoutSecs
	}
	if c.ReadyPollMillis <= 0 {
		c.ReadyPollMillis = DefaultReadyPollMillis
	}
}

// BaseURL returns the HTTP base endpoint of the supervised server.
func (c *Config) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

// IdleThreshold returns the idle-restart threshold as a duration.
func (c *Config) IdleThreshold() time.Duration {
	return time.Duration(c.IdleRestartSeconds) * time.Second
}

// ReadyTimeout returns the readiness wait bound as a duration.
func (c *Config) ReadyTimeout() time.Duration {
	return time.Duration(c.ReadyTimeoutSeconds) * time.Second
}

// ReadyPollInterval returns the pause between readiness probes.
func (c *Config) ReadyPollInterval() time.Duration {
	return time.Duration(c.ReadyPollMillis) * time.Millisecond
}
