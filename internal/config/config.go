// Package config loads runtime settings from the environment.
//
// SOURCES, LOWEST PRIORITY FIRST:
//  1. Defaults in this file
//  2. A .env file in the working directory, if present
//  3. Real environment variables
//
// godotenv.Load never overwrites a variable that is already set, which is
// what gives the real environment priority over .env.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything cmd/server needs to start.
type Config struct {
	Port       int
	DBPath     string
	JWTSecret  string
	LogLevel   slog.Level
	CORSOrigin string // empty disables CORS headers

	// RateLimit is the sustained requests per second allowed per client IP;
	// 0 disables limiting.
	RateLimit float64
	RateBurst int

	ShutdownTimeout time.Duration
}

const (
	defaultPort     = 8080
	defaultDBPath   = "data/poit.db"
	defaultLogLevel = "info"
)

// Load reads the optional files in envFiles (default ".env") and then the
// environment. A missing env file is fine; a malformed one is an error.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: loading %s: %w", f, err)
		}
	}

	cfg := &Config{
		DBPath:     getEnvAsString("DB_PATH", defaultDBPath),
		JWTSecret:  os.Getenv("JWT_SECRET"),
		CORSOrigin: os.Getenv("CORS_ORIGIN"),
	}

	var err error
	if cfg.Port, err = getEnvAsInt("PORT", defaultPort); err != nil {
		return nil, err
	}
	if cfg.RateBurst, err = getEnvAsInt("RATE_LIMIT_BURST", 40); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = getEnvAsFloat("RATE_LIMIT_RPS", 20); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = ParseLevel(getEnvAsString("LOG_LEVEL", defaultLogLevel)); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings the server cannot run with.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: PORT %d out of range", c.Port)
	}
	if len(c.JWTSecret) < 16 {
		return errors.New("config: JWT_SECRET must be set to at least 16 characters")
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		return errors.New("config: rate limits must not be negative")
	}
	return nil
}

// ParseLevel maps debug|info|warn|error (any case) to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("config: LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}

func getEnvAsString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt returns defaultValue when key is unset, and an error when it
// is set to something that is not an integer.
func getEnvAsInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not an integer", key, value)
	}
	return n, nil
}

func getEnvAsFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not a number", key, value)
	}
	return f, nil
}

// getEnvAsDuration accepts Go duration syntax ("5s", "1m30s") and rejects
// anything that does not parse to a positive duration.
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config: %s=%q is not a positive duration", key, value)
	}
	return d, nil
}
