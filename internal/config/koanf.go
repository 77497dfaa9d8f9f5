// Shelfwise - Retail RFM Segmentation and Recommendation Engine
// Copyright 2026 Shelfwise Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is not set.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/shelfwise/config.yaml",
}

// Load builds the configuration from layered sources.
//
// Layer order (later layers override earlier ones):
//  1. Built-in defaults
//  2. YAML config file (CONFIG_PATH env var, then DefaultConfigPaths)
//  3. Environment variables (SERVER_PORT, DATA_WORKBOOK_PATH, ...)
//
// The returned config is validated; an invalid configuration is an error,
// not a warning.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults.
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	// Layer 2: optional YAML file.
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables.
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the path of the first config file found,
// or "" if none exists. CONFIG_PATH takes precedence.
func findConfigFile() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envPrefixes maps environment variable prefixes to config sections.
// SERVER_PORT becomes server.port, TRAINING_N_CLUSTERS becomes
// training.n_clusters, and so on. Unprefixed variables are ignored so
// unrelated environment noise cannot leak into the config.
var envPrefixes = map[string]string{
	"SERVER_":    "server.",
	"LOGGING_":   "logging.",
	"DATA_":      "data.",
	"TRAINING_":  "training.",
	"RECOMMEND_": "recommend.",
}

// envTransformFunc maps environment variable names to koanf config keys.
func envTransformFunc(s string) string {
	for prefix, section := range envPrefixes {
		if strings.HasPrefix(s, prefix) {
			key := strings.ToLower(strings.TrimPrefix(s, prefix))
			return section + key
		}
	}

	return ""
}
