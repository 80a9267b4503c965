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
	Port          string
	FrontendURL   string
	DBPath        string
	HomeCountry   string // ISO 3166-1 alpha-2 code of the domestic branch
	HistoryLimit  int    // max messages replayed on room join, 0 = all
	ToastDuration time.Duration
	Agent         AgentConfig
}

// AgentConfig controls reply streaming pace.
type AgentConfig struct {
	TypingSpeed time.Duration
	ThinkPause  time.Duration
	ChunkSize   int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		FrontendURL:   getEnv("FRONTEND_URL", ""),
		DBPath:        getEnv("DB_PATH", "./data/companion.db"),
		HomeCountry:   strings.ToUpper(getEnv("HOME_COUNTRY", "US")),
		HistoryLimit:  getEnvInt("CHAT_HISTORY_LIMIT", 200),
		ToastDuration: getEnvDuration("TOAST_DURATION", 4*time.Second),
		Agent: AgentConfig{
			TypingSpeed: getEnvDuration("AGENT_TYPING_SPEED", 75*time.Millisecond),
			ThinkPause:  getEnvDuration("AGENT_THINK_PAUSE", 500*time.Millisecond),
			ChunkSize:   getEnvInt("AGENT_CHUNK_SIZE", 12),
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
	if len(c.HomeCountry) != 2 {
		return fmt.Errorf("HOME_COUNTRY must be a two-letter country code")
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("CHAT_HISTORY_LIMIT must be >= 0")
	}
	if c.Agent.ChunkSize <= 0 {
		return fmt.Errorf("AGENT_CHUNK_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
