// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends recognized by STORE_BACKEND.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	LabsDir  string
	StateDir string
	LogsDir  string

	OllamaURL   string
	RedModel    string
	BlueModel   string
	ChatTimeout time.Duration

	PassScore     int
	VerifyTimeout time.Duration

	StoreBackend string
	DBPath       string

	DashboardAddr string

	Range RangeConfig
}

// RangeConfig controls the optional Docker-backed lab network.
type RangeConfig struct {
	Enabled bool
	Network string
	Subnet  string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		LabsDir:       getEnv("LAB_LABS_DIR", "./labs"),
		StateDir:      getEnv("LAB_STATE_DIR", "./data/state"),
		LogsDir:       getEnv("LAB_LOGS_DIR", "./data/logs"),
		OllamaURL:     getEnv("OLLAMA_URL", "http://localhost:11434"),
		RedModel:      getEnv("RED_MODEL", "red-qwen-agent"),
		BlueModel:     getEnv("BLUE_MODEL", "blue-llama-agent"),
		ChatTimeout:   getEnvDuration("CHAT_TIMEOUT", 60*time.Second),
		PassScore:     getEnvInt("PASS_SCORE", 70),
		VerifyTimeout: getEnvDuration("VERIFY_TIMEOUT", 30*time.Second),
		StoreBackend:  getEnv("STORE_BACKEND", BackendFile),
		DBPath:        getEnv("DB_PATH", "./data/labctl.db"),
		DashboardAddr: getEnv("DASHBOARD_ADDR", ":8080"),
		Range: RangeConfig{
			Enabled: getEnvBool("RANGE_ENABLED", false),
			Network: getEnv("RANGE_NETWORK", "cyberlab-range"),
			Subnet:  getEnv("RANGE_SUBNET", "10.0.0.0/24"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.LabsDir == "" {
		return fmt.Errorf("LAB_LABS_DIR cannot be empty")
	}
	if c.StateDir == "" {
		return fmt.Errorf("LAB_STATE_DIR cannot be empty")
	}
	if c.LogsDir == "" {
		return fmt.Errorf("LAB_LOGS_DIR cannot be empty")
	}
	if c.OllamaURL == "" {
		return fmt.Errorf("OLLAMA_URL cannot be empty")
	}
	if c.PassScore < 0 || c.PassScore > 100 {
		return fmt.Errorf("PASS_SCORE must be in [0,100], got %d", c.PassScore)
	}
	if c.VerifyTimeout <= 0 {
		return fmt.Errorf("VERIFY_TIMEOUT must be > 0")
	}
	if c.ChatTimeout <= 0 {
		return fmt.Errorf("CHAT_TIMEOUT must be > 0")
	}
	switch c.StoreBackend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendFile, BackendSQLite, c.StoreBackend)
	}
	if c.StoreBackend == BackendSQLite && c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty with the sqlite backend")
	}
	if c.Range.Enabled && c.Range.Network == "" {
		return fmt.Errorf("RANGE_NETWORK cannot be empty when RANGE_ENABLED is set")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
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
