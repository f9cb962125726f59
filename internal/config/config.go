// Resona - Hybrid Music Recommendation Engine
// Copyright 2026 Resona contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resona-fm/resona

// Package config loads application configuration with clear precedence:
// environment variables override the optional YAML config file, which
// overrides built-in defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/resona-fm/resona/internal/logging"
	"github.com/resona-fm/resona/internal/recommend"
)

// envPrefix namespaces our environment variables.
const envPrefix = "RESONA_"

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `json:"host" koanf:"host"`
	Port            int           `json:"port" koanf:"port"`
	ReadTimeout     time.Duration `json:"read_timeout" koanf:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" koanf:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" koanf:"shutdown_timeout"`

	// RateLimit is requests per minute per client IP. 0 disables limiting.
	RateLimit int `json:"rate_limit" koanf:"rate_limit"`

	// CORSOrigins lists allowed cross-origin request origins.
	CORSOrigins []string `json:"cors_origins" koanf:"cors_origins"`
}

// StorageConfig controls durable preference storage.
type StorageConfig struct {
	// Enabled toggles durable storage; disabled runs fully in memory.
	Enabled bool `json:"enabled" koanf:"enabled"`

	// Path is the BadgerDB data directory.
	Path string `json:"path" koanf:"path"`
}

// CacheConfig controls the memoization cache.
type CacheConfig struct {
	Size int `json:"size" koanf:"size"`
}

// MaintenanceConfig controls background preference maintenance.
type MaintenanceConfig struct {
	FlushInterval time.Duration `json:"flush_interval" koanf:"flush_interval"`
	DecayInterval time.Duration `json:"decay_interval" koanf:"decay_interval"`
}

// Config is the full application configuration.
type Config struct {
	Server      ServerConfig      `json:"server" koanf:"server"`
	Logging     logging.Config    `json:"logging" koanf:"logging"`
	Storage     StorageConfig     `json:"storage" koanf:"storage"`
	Cache       CacheConfig       `json:"cache" koanf:"cache"`
	Maintenance MaintenanceConfig `json:"maintenance" koanf:"maintenance"`
	Engine      recommend.Config  `json:"engine" koanf:"engine"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       120,
			CORSOrigins:     []string{"*"},
		},
		Logging: logging.DefaultConfig(),
		Storage: StorageConfig{
			Enabled: true,
			Path:    "data/preferences",
		},
		Cache: CacheConfig{
			Size: 1024,
		},
		Maintenance: MaintenanceConfig{
			FlushInterval: 30 * time.Second,
			DecayInterval: time.Hour,
		},
		Engine: recommend.DefaultConfig(),
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1-65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive, got %s", c.Server.ShutdownTimeout)
	}
	if c.Storage.Enabled && c.Storage.Path == "" {
		return fmt.Errorf("storage.path required when storage is enabled")
	}
	if c.Cache.Size < 1 {
		return fmt.Errorf("cache.size must be at least 1, got %d", c.Cache.Size)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}

// Load builds the configuration from defaults, the optional config file
// and RESONA_-prefixed environment variables, in rising precedence.
// configPath may be empty, in which case well-known locations are tried.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if configPath == "" {
		configPath = findConfigFile()
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return cfg, nil
}

// envTransform maps environment variable names to config paths.
// A double underscore separates nesting levels so key names may keep
// single underscores: RESONA_SERVER__PORT -> server.port,
// RESONA_ENGINE__WEIGHTS__CONTENT_BASED -> engine.weights.content_based.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// findConfigFile probes the conventional config file locations.
func findConfigFile() string {
	candidates := []string{
		"resona.yaml",
		"resona.yml",
		"config/resona.yaml",
		"/etc/resona/resona.yaml",
	}
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}
