package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const (
	testSecretA = "0123456789abcdef0123456789abcdef:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w"
	testSecretB = "fedcba9876543210fedcba9876543210:YW5vdGhlcnNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w"
	testSecretC = "0123456789abcdef0123456789abcdef:YW5vdGhlcnNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w"
)

func TestHMACSecrets(t *testing.T) {
	t.Run("single secret", func(t *testing.T) {
		t.Setenv("CT_HMAC_SECRET", testSecretA)

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets failed: %v", err)
		}
		if len(secrets) != 1 {
			t.Errorf("expected 1 secret, got %d", len(secrets))
		}
		if _, ok := secrets["0123456789abcdef0123456789abcdef"]; !ok {
			t.Errorf("secret_id not found in map")
		}
	})

	t.Run("multiple numbered secrets", func(t *testing.T) {
		t.Setenv("CT_HMAC_SECRET_1", testSecretA)
		t.Setenv("CT_HMAC_SECRET_2", testSecretB)

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets failed: %v", err)
		}
		if len(secrets) != 2 {
			t.Errorf("expected 2 secrets, got %d", len(secrets))
		}
	})

	t.Run("numbering stops at first gap", func(t *testing.T) {
		t.Setenv("CT_HMAC_SECRET_1", testSecretA)
		t.Setenv("CT_HMAC_SECRET_3", testSecretB)

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets failed: %v", err)
		}
		if len(secrets) != 1 {
			t.Errorf("expected 1 secret, got %d", len(secrets))
		}
	})

	t.Run("invalid format", func(t *testing.T) {
		t.Setenv("CT_HMAC_SECRET", "invalid_format")

		if _, err := HMACSecrets(); err == nil {
			t.Error("expected error for invalid format")
		}
	})

	t.Run("invalid secret_id length", func(t *testing.T) {
		t.Setenv("CT_HMAC_SECRET", "short:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")

		if _, err := HMACSecrets(); err == nil {
			t.Error("expected error for short secret_id")
		}
	})

	t.Run("non-hex secret_id", func(t *testing.T) {
		t.Setenv("CT_HMAC_SECRET", "0123456789abcdefGHIJKLMNOPQRSTUV:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")

		if _, err := HMACSecrets(); err == nil {
			t.Error("expected error for non-hex secret_id")
		}
	})

	t.Run("short secret", func(t *testing.T) {
		t.Setenv("CT_HMAC_SECRET", "0123456789abcdef0123456789abcdef:c2hvcnQ=")

		if _, err := HMACSecrets(); err == nil {
			t.Error("expected error for secret under 32 bytes")
		}
	})

	t.Run("duplicate secret_id between single and numbered", func(t *testing.T) {
		t.Setenv("CT_HMAC_SECRET", testSecretA)
		t.Setenv("CT_HMAC_SECRET_1", testSecretC)

		if _, err := HMACSecrets(); err == nil {
			t.Error("expected error for duplicate secret_id between CT_HMAC_SECRET and CT_HMAC_SECRET_1")
		}
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadConfig("")
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Host != "0.0.0.0" {
			t.Errorf("expected host 0.0.0.0, got %s", cfg.Host)
		}
		if cfg.Port != 50061 {
			t.Errorf("expected port 50061, got %d", cfg.Port)
		}
		if cfg.RequestTimeout != 10*time.Second {
			t.Errorf("expected timeout 10s, got %v", cfg.RequestTimeout)
		}
		if cfg.MaxRuleItems != 64 {
			t.Errorf("expected max_rule_items 64, got %d", cfg.MaxRuleItems)
		}
		if cfg.MetricsAddr != ":9464" {
			t.Errorf("expected metrics addr :9464, got %s", cfg.MetricsAddr)
		}
		if !cfg.WatchTreeFile {
			t.Error("expected tree watching enabled by default")
		}
	})

	t.Run("environment override", func(t *testing.T) {
		t.Setenv("CT_SERVER_PORT", "9999")
		t.Setenv("CT_SERVER_HOST", "127.0.0.1")
		t.Setenv("CT_TREE_FILE", "/srv/catalog.yaml")

		cfg, err := LoadConfig("")
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Port != 9999 {
			t.Errorf("expected port 9999, got %d", cfg.Port)
		}
		if cfg.Host != "127.0.0.1" {
			t.Errorf("expected host 127.0.0.1, got %s", cfg.Host)
		}
		if cfg.TreeFile != "/srv/catalog.yaml" {
			t.Errorf("expected tree file from env, got %q", cfg.TreeFile)
		}
	})

	t.Run("invalid port range", func(t *testing.T) {
		t.Setenv("CT_SERVER_PORT", "70000")

		if _, err := LoadConfig(""); err == nil {
			t.Error("expected error for port out of range")
		}
	})

	t.Run("config file", func(t *testing.T) {
		path := writeConfig(t, `
server:
  port: 6000
  request_timeout: 2s
  max_rule_items: 12
database:
  url: sqlite://choicetree.db
`)
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Port != 6000 {
			t.Errorf("expected port 6000, got %d", cfg.Port)
		}
		if cfg.RequestTimeout != 2*time.Second {
			t.Errorf("expected timeout 2s, got %v", cfg.RequestTimeout)
		}
		if cfg.MaxRuleItems != 12 {
			t.Errorf("expected max_rule_items 12, got %d", cfg.MaxRuleItems)
		}
		if cfg.DatabaseURL != "sqlite://choicetree.db" {
			t.Errorf("expected database url from file, got %q", cfg.DatabaseURL)
		}
	})

	t.Run("env beats file", func(t *testing.T) {
		path := writeConfig(t, "server:\n  port: 6000\n")
		t.Setenv("CT_SERVER_PORT", "7000")

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Port != 7000 {
			t.Errorf("expected port 7000, got %d", cfg.Port)
		}
	})

	t.Run("secret in config file rejected", func(t *testing.T) {
		path := writeConfig(t, "hmac_secret: abc\n")

		if _, err := LoadConfig(path); err == nil {
			t.Error("expected error for secret in config file")
		}
	})

	t.Run("missing config file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Error("expected error for missing config file")
		}
	})
}

func TestValidate(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.MaxRuleItems = 0
	if err := Validate(cfg); err == nil {
		t.Error("expected error for zero max_rule_items")
	}

	cfg = DefaultServiceConfig()
	cfg.RequestTimeout = 0
	if err := Validate(cfg); err == nil {
		t.Error("expected error for zero request_timeout")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "choicetree.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
