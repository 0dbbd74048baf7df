// Copyright (C) 2025 Halcyon AI (oss@halcyonai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Configuration
// =============================================================================

// configValidate is the shared validator instance for CLI configuration.
var configValidate = validator.New()

// Config is the root of config.yaml.
type Config struct {
	// Server holds connection settings for the search orchestrator.
	Server ServerConfig `yaml:"server"`

	// Stream tunes the streaming turn lifecycle.
	Stream StreamConfig `yaml:"stream"`

	// Logging controls structured log output.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics optionally exposes Prometheus metrics while a command runs.
	Metrics MetricsConfig `yaml:"metrics"`

	// Personality is the default UX level (full/standard/minimal/machine).
	Personality string `yaml:"personality" validate:"omitempty,oneof=full standard minimal machine"`
}

type ServerConfig struct {
	// BaseURL is the orchestrator endpoint, e.g. "http://localhost:8089".
	BaseURL string `yaml:"base_url" validate:"required,url"`

	// Namespaces restricts retrieval to the named document namespaces.
	Namespaces []string `yaml:"namespaces"`
}

type StreamConfig struct {
	// WarnAfter is how long a turn may run before the CLI shows a
	// still-working notice. Zero means the built-in default.
	WarnAfter time.Duration `yaml:"warn_after"`

	// TimeoutAfter is how long a turn may run before it is abandoned as
	// failed. Zero means the built-in default.
	TimeoutAfter time.Duration `yaml:"timeout_after"`

	// ResearchMode asks the backend for deeper multi-pass retrieval.
	ResearchMode bool `yaml:"research_mode"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

type MetricsConfig struct {
	// Addr is a listen address like "127.0.0.1:9187". Empty disables the
	// metrics endpoint.
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// DefaultConfig returns the configuration used when no config.yaml exists.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			BaseURL: "http://localhost:8089",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Personality: "",
	}
}

// LoadConfig reads and validates a YAML config file. A missing file is
// not an error; the defaults are returned instead so the CLI works out
// of the box.
//
// # Inputs
//
//   - path: Path to the YAML file, usually "config.yaml"
//
// # Outputs
//
//   - Config: The parsed configuration, or defaults if path is absent
//   - error: Parse or validation failure
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := configValidate.Struct(&cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}
