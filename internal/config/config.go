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
	Port         string
	FrontendURL  string
	DBPath       string
	AssistantURL string
	SlotTTL      time.Duration
	SSE          SSEConfig
	RateLimit    RateLimitConfig
}

// SSEConfig controls server-sent-event delivery to browser clients.
type SSEConfig struct {
	KeepaliveInterval  time.Duration
	RetryDelay         time.Duration
	MaxRequestBodySize int64
}

// RateLimitConfig controls per-profile assistant query throttling.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		FrontendURL:  getEnv("FRONTEND_URL", ""),
		DBPath:       getEnv("DB_PATH", "./data/wayfarer.db"),
		AssistantURL: getEnv("ASSISTANT_URL", ""),
		SlotTTL:      getEnvDuration("SESSION_SLOT_TTL", 24*time.Hour),
		SSE: SSEConfig{
			KeepaliveInterval:  getEnvDuration("SSE_KEEPALIVE_INTERVAL", 10*time.Second),
			RetryDelay:         getEnvDuration("SSE_RETRY_DELAY", 5*time.Second),
			MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 10),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
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
	if c.SlotTTL <= 0 {
		return fmt.Errorf("SESSION_SLOT_TTL must be > 0")
	}
	if c.SSE.KeepaliveInterval <= 0 {
		return fmt.Errorf("SSE_KEEPALIVE_INTERVAL must be > 0")
	}
	if c.SSE.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
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
