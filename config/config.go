package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration shared by the API server and the CLI.
type Config struct {
	RedisAddr       string
	ListenAddr      string
	APIKey          string
	RateLimit       int64
	RateWindow      time.Duration
	Workers         int
	LogLevel        string
	ProbesFile      string
	ScanConcurrency int
	ScanTimeout     time.Duration
}

// Load reads the optional .env files and then the environment. Variables
// already present in the environment take precedence over .env values.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}

	cfg := &Config{
		RedisAddr:  getenv("REDIS_ADDR", "localhost:6379"),
		ListenAddr: getenv("LISTEN_ADDR", ":8080"),
		APIKey:     os.Getenv("API_KEY"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		ProbesFile: os.Getenv("PROBES_FILE"),
	}

	var err error
	if cfg.RateLimit, err = getInt64("RATE_LIMIT", 60); err != nil {
		return nil, err
	}
	if cfg.RateWindow, err = getDuration("RATE_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	workers, err := getInt64("WORKERS", 5)
	if err != nil {
		return nil, err
	}
	cfg.Workers = int(workers)
	concurrency, err := getInt64("SCAN_CONCURRENCY", 200)
	if err != nil {
		return nil, err
	}
	cfg.ScanConcurrency = int(concurrency)
	if cfg.ScanTimeout, err = getDuration("SCAN_TIMEOUT", 300*time.Millisecond); err != nil {
		return nil, err
	}

	if cfg.Workers < 1 {
		return nil, fmt.Errorf("WORKERS must be at least 1, got %d", cfg.Workers)
	}
	if cfg.RateLimit < 1 {
		return nil, fmt.Errorf("RATE_LIMIT must be at least 1, got %d", cfg.RateLimit)
	}
	return cfg, nil
}

// ValidateServe checks the settings the API server cannot run without.
func (c *Config) ValidateServe() error {
	if c.APIKey == "" {
		return errors.New("API_KEY must be set to run the API server")
	}
	return nil
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt64(key string, fallback int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, raw)
	}
	return d, nil
}
