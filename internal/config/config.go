// Package config loads server configuration from flags and environment.
package config

import (
	"os"
	"strings"
)

type Config struct {
	Addr        string
	BaseURL     string
	DBPath      string
	AdminEmails []string
	AI          AIConfig
}

type AIConfig struct {
	APIKey string
	Model  string
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Load merges flag values with environment overrides. Admin emails come from
// ISSUEDECK_ADMIN_EMAILS (comma separated) and are seeded at boot.
func Load(flagAddr, flagDBPath string) Config {
	cfg := Config{
		Addr:    flagAddr,
		BaseURL: getEnv("ISSUEDECK_BASE_URL", "http://localhost"+flagAddr),
		DBPath:  getEnv("ISSUEDECK_DB_PATH", flagDBPath),
		AI: AIConfig{
			APIKey: getEnv("ANTHROPIC_API_KEY", ""),
			Model:  getEnv("ISSUEDECK_AI_MODEL", ""),
		},
	}
	for _, email := range strings.Split(getEnv("ISSUEDECK_ADMIN_EMAILS", ""), ",") {
		email = strings.TrimSpace(strings.ToLower(email))
		if email != "" {
			cfg.AdminEmails = append(cfg.AdminEmails, email)
		}
	}
	return cfg
}
