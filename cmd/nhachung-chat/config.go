// Copyright 2026 The NhaChung Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// config is the client configuration. One explicit file, no discovery
// or hidden overrides.
type config struct {
	// ServerURL is the REST API root.
	ServerURL string `yaml:"server_url"`
	// SocketURL is the WebSocket endpoint for push events.
	SocketURL string `yaml:"socket_url"`
	// UserID is the authenticated viewer.
	UserID int64 `yaml:"user_id"`
	// Token is the session's bearer token.
	Token string `yaml:"token"`
	// LogFile receives slog output. Empty disables logging.
	LogFile string `yaml:"log_file"`
}

// loadConfig reads the YAML config file at path. A missing path is not
// an error — flags alone can carry a full configuration.
func loadConfig(path string) (config, error) {
	var cfg config
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// validate checks that the merged configuration is complete.
func (c config) validate() error {
	var problems []error
	if c.ServerURL == "" {
		problems = append(problems, errors.New("server URL is required (--server or server_url)"))
	}
	if c.SocketURL == "" {
		problems = append(problems, errors.New("socket URL is required (--socket or socket_url)"))
	}
	if c.UserID == 0 {
		problems = append(problems, errors.New("user ID is required (--user or user_id)"))
	}
	return errors.Join(problems...)
}
