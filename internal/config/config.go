// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads daemon connection configuration from environment
// variables and an optional stored settings file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"

	"github.com/luxfi/rtrpc"
)

const logPrefix = "config:LoadConfig"

// Config holds rtrpc client configuration.
type Config struct {
	// Connection; ignored when SettingsFile is set.
	ConnectionType string `envconfig:"RTORRENT_CONNECTION_TYPE" default:"tcp"`
	Host           string `envconfig:"RTORRENT_HOST" default:"127.0.0.1"`
	Port           int    `envconfig:"RTORRENT_PORT" default:"5000"`
	Socket         string `envconfig:"RTORRENT_SOCKET"`
	URL            string `envconfig:"RTORRENT_URL"`
	Username       string `envconfig:"RTORRENT_USERNAME"`
	Password       string `envconfig:"RTORRENT_PASSWORD"`

	// SettingsFile is a stored client settings document. Files ending in
	// .toml are read as TOML, anything else as YAML or JSON.
	SettingsFile string `envconfig:"RTORRENT_SETTINGS_FILE"`

	// Timeouts
	RequestTimeout time.Duration `envconfig:"RTORRENT_REQUEST_TIMEOUT" default:"30s"`
	DialTimeout    time.Duration `envconfig:"RTORRENT_DIAL_TIMEOUT" default:"10s"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the timeouts and that a connection can be described.
func (c *Config) Validate() error {
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s - RTORRENT_REQUEST_TIMEOUT must be positive", logPrefix)
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("%s - RTORRENT_DIAL_TIMEOUT must be positive", logPrefix)
	}
	if _, err := c.Descriptor(); err != nil {
		return fmt.Errorf("%s - %w", logPrefix, err)
	}
	return nil
}

// Descriptor returns the connection described by the settings file when
// one is configured, and by the RTORRENT_* fields otherwise.
func (c *Config) Descriptor() (rtrpc.ConnectionDescriptor, error) {
	if c.SettingsFile != "" {
		data, err := os.ReadFile(c.SettingsFile)
		if err != nil {
			return nil, fmt.Errorf("read settings file: %w", err)
		}
		if strings.EqualFold(filepath.Ext(c.SettingsFile), ".toml") {
			return parseTOMLSettings(data)
		}
		return rtrpc.ParseSettings(data)
	}
	return rtrpc.NewDescriptor(
		rtrpc.ConnectionKind(c.ConnectionType),
		c.Host, c.Port, c.Socket,
		c.URL, c.Username, c.Password,
	)
}

// Options returns the dispatcher options implied by the configuration.
func (c *Config) Options() []rtrpc.Option {
	return []rtrpc.Option{
		rtrpc.WithRequestTimeout(c.RequestTimeout),
		rtrpc.WithDialTimeout(c.DialTimeout),
	}
}

// tomlSettings is the TOML form of a stored settings document.
type tomlSettings struct {
	Client   string `toml:"client"`
	Type     string `toml:"type"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Socket   string `toml:"socket"`
	URL      string `toml:"url"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

func parseTOMLSettings(data []byte) (rtrpc.ConnectionDescriptor, error) {
	var s tomlSettings
	if err := toml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", rtrpc.ErrInvalidSettings, err)
	}
	if s.Client != "" && !strings.EqualFold(s.Client, "rtorrent") {
		return nil, fmt.Errorf("%w: unsupported client %q", rtrpc.ErrInvalidSettings, s.Client)
	}
	return rtrpc.NewDescriptor(rtrpc.ConnectionKind(s.Type), s.Host, s.Port, s.Socket, s.URL, s.Username, s.Password)
}
