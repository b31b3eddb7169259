// Package config loads the settings both ledgers and the sync engine need
// from the environment. A missing required setting is a fatal startup
// condition, reported as a ConfigError before any sync work starts.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DefaultStartDate is the watermark used for accounts that have never been
// synced: transactions before it are never fetched.
const DefaultStartDate = "2024-01-01T00:00:00Z"

// Config holds every setting the binaries read from the environment.
type Config struct {
	// Destination ledger (Actual Budget)
	ActualServerURL     string
	ActualPassword      string
	ActualEncryptionKey string
	ActualSyncID        string

	// Source ledger (Akahu)
	AkahuEndpoint  string
	AkahuUserToken string
	AkahuAppToken  string
	AkahuPublicKey string // PEM, required only by the webhook server

	// Mapping assistant
	GeminiAPIKey string

	// Engine
	MappingFile   string
	WatermarkFile string
	StartDate     time.Time
	LookbackDays  int

	// Webhook server
	Port string
}

// ConfigError reports a missing or invalid required setting.
type ConfigError struct {
	Setting string
	Reason  string
}

func (e *ConfigError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("config: setting %s: %s", e.Setting, e.Reason)
	}
	return fmt.Sprintf("config: missing required setting %s", e.Setting)
}

// Load reads the configuration from the environment. The settings required
// by every binary must be present; webhook-only settings are validated
// separately by RequireWebhook.
func Load() (*Config, error) {
	cfg := &Config{
		AkahuEndpoint:  getEnv("AKAHU_ENDPOINT", "https://api.akahu.io/v1"),
		AkahuPublicKey: os.Getenv("AKAHU_PUBLIC_KEY"),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		MappingFile:    getEnv("MAPPING_FILE", "akahu_to_budget_mapping.json"),
		WatermarkFile:  getEnv("WATERMARK_FILE", "sync_watermarks.json"),
		Port:           getEnv("PORT", "5000"),
	}

	required := []struct {
		key    string
		target *string
	}{
		{"ACTUAL_SERVER_URL", &cfg.ActualServerURL},
		{"ACTUAL_PASSWORD", &cfg.ActualPassword},
		{"ACTUAL_ENCRYPTION_KEY", &cfg.ActualEncryptionKey},
		{"ACTUAL_SYNC_ID", &cfg.ActualSyncID},
		{"AKAHU_USER_TOKEN", &cfg.AkahuUserToken},
		{"AKAHU_APP_TOKEN", &cfg.AkahuAppToken},
	}
	for _, r := range required {
		v := os.Getenv(r.key)
		if v == "" {
			return nil, &ConfigError{Setting: r.key}
		}
		*r.target = v
	}

	startDate := getEnv("SYNC_START_DATE", DefaultStartDate)
	start, err := time.Parse(time.RFC3339, startDate)
	if err != nil {
		return nil, &ConfigError{Setting: "SYNC_START_DATE", Reason: fmt.Sprintf("invalid timestamp %q", startDate)}
	}
	cfg.StartDate = start

	cfg.LookbackDays = getEnvInt("LOOKBACK_DAYS", 7)
	if cfg.LookbackDays < 0 {
		return nil, &ConfigError{Setting: "LOOKBACK_DAYS", Reason: "must not be negative"}
	}

	return cfg, nil
}

// RequireWebhook validates the settings only the webhook server needs.
func (c *Config) RequireWebhook() error {
	if c.AkahuPublicKey == "" {
		return &ConfigError{Setting: "AKAHU_PUBLIC_KEY"}
	}
	return nil
}

// getEnv returns environment variable or default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns int from env or default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
