package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence; flags are
// applied by the caller after loading.
func LoadConfig(configPath string) (*ServiceConfig, error) {
	v := viper.New()

	defaults := DefaultServiceConfig()
	v.SetDefault("server.host", defaults.Host)
	v.SetDefault("server.port", defaults.Port)
	v.SetDefault("server.request_timeout", defaults.RequestTimeout.String())
	v.SetDefault("server.max_rule_items", defaults.MaxRuleItems)
	v.SetDefault("metrics.addr", defaults.MetricsAddr)
	v.SetDefault("database.url", "")
	v.SetDefault("tree.file", "")
	v.SetDefault("tree.watch", defaults.WatchTreeFile)

	// CT_SERVER_PORT, CT_DATABASE_URL, ...
	v.SetEnvPrefix("CT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &ServiceConfig{
		Host:           v.GetString("server.host"),
		Port:           v.GetInt("server.port"),
		RequestTimeout: v.GetDuration("server.request_timeout"),
		MaxRuleItems:   v.GetInt("server.max_rule_items"),
		MetricsAddr:    v.GetString("metrics.addr"),
		DatabaseURL:    v.GetString("database.url"),
		TreeFile:       v.GetString("tree.file"),
		WatchTreeFile:  v.GetBool("tree.watch"),
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks port range, positive timeout and rule size limit.
func Validate(cfg *ServiceConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	if cfg.MaxRuleItems <= 0 {
		return fmt.Errorf("max_rule_items must be positive, got %d", cfg.MaxRuleItems)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets (12-factor principle).
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("hmac_secret") || v.InConfig("server.hmac_secret") {
		return fmt.Errorf("HMAC secrets not allowed in config files (use CT_HMAC_SECRET environment variable)")
	}
	return nil
}
