package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/clinicops")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.Env != "development" || !cfg.IsDev() {
		t.Errorf("expected development default, got %s", cfg.Env)
	}
	if cfg.KPICacheTTL != 5*time.Minute {
		t.Errorf("expected 5m cache TTL default, got %s", cfg.KPICacheTTL)
	}
	if cfg.ScoreBatchConcurrency != 10 {
		t.Errorf("expected default batch concurrency 10, got %d", cfg.ScoreBatchConcurrency)
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is unset")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/clinicops")
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("KPI_CACHE_TTL", "30s")
	t.Setenv("SCORE_BATCH_CONCURRENCY", "4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("expected port override, got %s", cfg.Port)
	}
	if cfg.IsDev() {
		t.Error("production env should not report as dev")
	}
	if cfg.KPICacheTTL != 30*time.Second {
		t.Errorf("expected 30s TTL, got %s", cfg.KPICacheTTL)
	}
	if cfg.ScoreBatchConcurrency != 4 {
		t.Errorf("expected concurrency 4, got %d", cfg.ScoreBatchConcurrency)
	}
}

func TestValidateProductionAuth(t *testing.T) {
	cfg := &Config{Env: "production", ScoreBatchConcurrency: 10}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation failure without a signing key outside dev")
	}
	if !strings.Contains(err.Error(), "AUTH_SIGNING_KEY") {
		t.Errorf("unexpected validation message: %v", err)
	}

	// An issuer alone is not enough: signature verification needs the key.
	cfg.AuthIssuer = "https://issuer.example.com"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation failure with issuer but no signing key")
	}

	cfg.AuthSigningKey = "secret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config with signing key, got %v", err)
	}
}

func TestValidateBounds(t *testing.T) {
	cfg := &Config{Env: "development", ScoreBatchConcurrency: 0}
	if err := cfg.Validate(); err == nil {
		t.Error("expected rejection of zero batch concurrency")
	}

	cfg = &Config{Env: "development", ScoreBatchConcurrency: 10, KPICacheTTL: -time.Second}
	if err := cfg.Validate(); err == nil {
		t.Error("expected rejection of negative cache TTL")
	}
}
