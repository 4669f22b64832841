package config

import (
	"strings"
	"testing"
)

func TestValidate_PostgresRequiresDatabaseURL(t *testing.T) {
	cfg := &Config{Env: "development", Store: "postgres"}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected DATABASE_URL error, got %v", err)
	}

	cfg.DatabaseURL = "postgres://localhost:5432/labpool"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidate_MemoryStoreNeedsNoDatabase(t *testing.T) {
	cfg := &Config{Env: "development", Store: "memory"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidate_UnknownStore(t *testing.T) {
	cfg := &Config{Env: "development", Store: "redis"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown store")
	}
}

func TestValidate_ProductionRequiresSigningKey(t *testing.T) {
	cfg := &Config{
		Env:         "production",
		Store:       "postgres",
		DatabaseURL: "postgres://localhost:5432/labpool",
	}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "AUTH_SIGNING_KEY") {
		t.Fatalf("expected AUTH_SIGNING_KEY error, got %v", err)
	}

	cfg.AuthSigningKey = "super-secret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE", "memory")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %q", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Errorf("expected default env development, got %q", cfg.Env)
	}
	if cfg.DBMaxConns != 20 || cfg.DBMinConns != 5 {
		t.Errorf("unexpected pool defaults: max %d min %d", cfg.DBMaxConns, cfg.DBMinConns)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:3000" {
		t.Errorf("unexpected CORS default: %v", cfg.CORSOrigins)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STORE", "memory")
	t.Setenv("PORT", "9100")
	t.Setenv("CORS_ORIGINS", "https://lims.example.org,https://portal.example.org")
	t.Setenv("NOTIFY_EMAIL", "lab-alerts@example.org")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9100" {
		t.Errorf("expected port 9100, got %q", cfg.Port)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("expected 2 CORS origins, got %v", cfg.CORSOrigins)
	}
	if cfg.NotifyEmail != "lab-alerts@example.org" {
		t.Errorf("unexpected notify email %q", cfg.NotifyEmail)
	}
}
