// Package config handles agent configuration from environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all floor-agent configuration.
type Config struct {
	// BackendURL is the MES backend base URL.
	BackendURL string `env:"MES_BACKEND_URL" envDefault:"http://localhost:8080"`

	// ListenAddr is the local address the agent serves on.
	ListenAddr string `env:"MES_LISTEN_ADDR" envDefault:":7070"`

	// RedisAddr selects the Redis-backed edge cache store when set.
	// Empty means the file-backed store is used.
	RedisAddr string `env:"MES_REDIS_ADDR"`

	// CacheDir is the file store directory. Empty uses the default
	// under the home directory.
	CacheDir string `env:"MES_CACHE_DIR"`

	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `env:"MES_LOG_LEVEL" envDefault:"info"`

	// LogPretty enables human-readable console logs.
	LogPretty bool `env:"MES_LOG_PRETTY" envDefault:"false"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.BackendURL == "" {
		return nil, fmt.Errorf("MES_BACKEND_URL must not be empty")
	}
	return cfg, nil
}
