// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	AllowedOrigins []string
	DBPath         string
	Driver         DriverConfig
}

// DriverConfig controls the activity driver's pacing and ceiling.
type DriverConfig struct {
	MaxActions int
	TickMin    time.Duration
	TickMax    time.Duration
}

// defaultOrigins is the local development allowlist used when
// ALLOWED_ORIGINS is not set.
var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://127.0.0.1:3000",
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "3001"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", defaultOrigins),
		DBPath:         getEnv("DB_PATH", "./data/relay.db"),
		Driver: DriverConfig{
			MaxActions: getEnvInt("MAX_ACTIONS", 25),
			TickMin:    time.Duration(getEnvInt("TICK_MIN_MS", 500)) * time.Millisecond,
			TickMax:    time.Duration(getEnvInt("TICK_MAX_MS", 2500)) * time.Millisecond,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("ALLOWED_ORIGINS cannot be empty")
	}
	if c.Driver.MaxActions <= 0 {
		return fmt.Errorf("MAX_ACTIONS must be > 0")
	}
	if c.Driver.TickMin <= 0 || c.Driver.TickMax < c.Driver.TickMin {
		return fmt.Errorf("TICK_MIN_MS/TICK_MAX_MS must satisfy 0 < min <= max")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
