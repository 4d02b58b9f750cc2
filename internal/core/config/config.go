// Package config provides configuration management for choicetree services.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"
)

// ServiceConfig holds configuration for the rule validation service.
type ServiceConfig struct {
	Host           string
	Port           int
	RequestTimeout time.Duration
	MaxRuleItems   int
	MetricsAddr    string // empty disables the metrics listener
	DatabaseURL    string
	TreeFile       string // serve from a YAML snapshot instead of the database
	WatchTreeFile  bool
}

// DefaultServiceConfig returns configuration with default values.
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		Host:           "0.0.0.0",
		Port:           50061,
		RequestTimeout: 10 * time.Second,
		MaxRuleItems:   64,
		MetricsAddr:    ":9464",
		WatchTreeFile:  true,
	}
}

// secretEnvPrefix names the environment variables holding HMAC secrets.
const secretEnvPrefix = "CT_HMAC_SECRET"

// HMACSecrets extracts HMAC secrets from environment variables.
// Supports CT_HMAC_SECRET (single) and CT_HMAC_SECRET_N (rotation).
// Returns map of secret_id -> decoded secret bytes.
func HMACSecrets() (map[string][]byte, error) {
	secrets := make(map[string][]byte)

	add := func(key, val string) error {
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if _, exists := secrets[secretID]; exists {
			return fmt.Errorf("duplicate secret_id '%s' in %s and %s_* variables", secretID, secretEnvPrefix, secretEnvPrefix)
		}
		secrets[secretID] = decoded
		return nil
	}

	if val := os.Getenv(secretEnvPrefix); val != "" {
		if err := add(secretEnvPrefix, val); err != nil {
			return nil, err
		}
	}

	// Numbered secrets stop at the first gap; old and new keys stay valid during rotation
	for i := 1; ; i++ {
		key := fmt.Sprintf("%s_%d", secretEnvPrefix, i)
		val := os.Getenv(key)
		if val == "" {
			break
		}
		if err := add(key, val); err != nil {
			return nil, err
		}
	}

	return secrets, nil
}

// ParseHMACSecretWithID parses secret_id:base64_secret format.
// Secret ID must be 32 lowercase hex chars (UUIDv7 without hyphens).
func ParseHMACSecretWithID(envValue string) (secretID string, secret []byte, err error) {
	id, encoded, ok := strings.Cut(strings.TrimSpace(envValue), ":")
	if !ok {
		return "", nil, fmt.Errorf("format must be <secret_id>:<base64_secret>")
	}
	if !isHexID(id) {
		return "", nil, fmt.Errorf("secret_id must be 32 lowercase hex chars (UUIDv7 without hyphens)")
	}

	secret, err = decodeSecret(encoded)
	if err != nil {
		return "", nil, err
	}
	return id, secret, nil
}

// decodeSecret base64-decodes a secret and enforces the 32 byte minimum.
func decodeSecret(encoded string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	if len(decoded) < 32 {
		return nil, fmt.Errorf("secret must be at least 32 bytes, got %d", len(decoded))
	}
	return decoded, nil
}

func isHexID(s string) bool {
	if len(s) != 32 {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}
