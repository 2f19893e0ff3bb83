/*
Package config loads the server configuration from environment variables.

PURPOSE:
  One struct, one Load(). Every value has a development default so the
  server starts with no environment at all; production overrides what it
  needs. Command-line flags in cmd/server may override port and db path
  on top of this.

VARIABLES:
  APP_PORT             HTTP port                       (default 8080)
  DB_PATH              SQLite database path            (default billing.db)
  JWT_SECRET           HMAC signing secret             (default dev secret)
  MISSING_RATE_POLICY  "zero_fill" or "fail"           (default zero_fill)
  ADMIN_USER           Admin login username            (default empty = disabled)
  ADMIN_PASSWORD       Admin login password
*/
package config

import (
	"os"
	"strconv"

	"github.com/fieldserve/billing-engine/billing"
)

// Config holds all server settings.
type Config struct {
	Port              int
	DBPath            string
	JWTSecret         string
	MissingRatePolicy billing.MissingRatePolicy
	AdminUser         string
	AdminPassword     string
}

// Load reads the configuration from the environment.
func Load() Config {
	return Config{
		Port:              getEnvInt("APP_PORT", 8080),
		DBPath:            getEnv("DB_PATH", "billing.db"),
		JWTSecret:         getEnv("JWT_SECRET", "dev-secret-change-me"),
		MissingRatePolicy: billing.ParseMissingRatePolicy(getEnv("MISSING_RATE_POLICY", "zero_fill")),
		AdminUser:         getEnv("ADMIN_USER", ""),
		AdminPassword:     getEnv("ADMIN_PASSWORD", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
