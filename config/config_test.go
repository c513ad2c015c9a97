package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SITELENS_JWT_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.ListenAddr != "127.0.0.1:8115" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.DataDir != "./data" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.RegistryPath != "./websites.json" {
		t.Errorf("RegistryPath = %q", cfg.RegistryPath)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q", cfg.LogFormat)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("SITELENS_JWT_SECRET", "test-secret")
	t.Setenv("SITELENS_LISTEN_ADDR", "0.0.0.0:9000")
	t.Setenv("SITELENS_DATA_DIR", "/var/lib/sitelens")
	t.Setenv("SITELENS_LOG_LEVEL", "debug")
	t.Setenv("SITELENS_LOG_FORMAT", "console")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.ListenAddr != "0.0.0.0:9000" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.DataDir != "/var/lib/sitelens" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.JWTSecret != "test-secret" {
		t.Errorf("JWTSecret = %q", cfg.JWTSecret)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.LogFormat != "console" {
		t.Errorf("LogFormat = %q", cfg.LogFormat)
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("SITELENS_JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error when the JWT secret is unset")
	}
}
