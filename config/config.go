// Package config loads server configuration from defaults layered with
// SITELENS_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces the server's environment variables, e.g.
// SITELENS_LISTEN_ADDR, SITELENS_JWT_SECRET.
const EnvPrefix = "SITELENS_"

type Config struct {
	ListenAddr   string `koanf:"listen_addr"`
	DataDir      string `koanf:"data_dir"`
	RegistryPath string `koanf:"registry_path"`
	JWTSecret    string `koanf:"jwt_secret"`
	LogLevel     string `koanf:"log_level"`
	LogFormat    string `koanf:"log_format"` // json or console
}

func defaultConfig() *Config {
	return &Config{
		ListenAddr:   "127.0.0.1:8115",
		DataDir:      "./data",
		RegistryPath: "./websites.json",
		JWTSecret:    "",
		LogLevel:     "info",
		LogFormat:    "json",
	}
}

// Load builds the configuration: struct defaults first, environment
// variables on top.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("SITELENS_JWT_SECRET is required")
	}

	return cfg, nil
}
