package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Host            string
	Port            int
	DataDir         string
	DatabasePath    string
	LogLevel        string
	LogPretty       bool
	RefreshSchedule string
	RiskFreeRate    float64
	RiskAversion    float64
	CORSOrigins     []string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FRONTIER_DATA_DIR", "./data")

	cfg := &Config{
		Host:            getEnv("FRONTIER_HOST", ""),
		Port:            getEnvAsInt("FRONTIER_PORT", 8090),
		DataDir:         dataDir,
		DatabasePath:    getEnv("FRONTIER_DB_PATH", filepath.Join(dataDir, "frontier.db")),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogPretty:       getEnvAsBool("LOG_PRETTY", true),
		RefreshSchedule: getEnv("FRONTIER_REFRESH_SCHEDULE", "0 0 22 * * MON-FRI"),
		RiskFreeRate:    getEnvAsFloat("FRONTIER_RISK_FREE_RATE", 0.03),
		RiskAversion:    getEnvAsFloat("FRONTIER_RISK_AVERSION", 1.0),
		CORSOrigins:     splitList(getEnv("FRONTIER_CORS_ORIGINS", "*")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("FRONTIER_DB_PATH is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("FRONTIER_PORT %d is out of range", c.Port)
	}
	if c.RiskFreeRate < 0 || c.RiskFreeRate >= 1 {
		return fmt.Errorf("FRONTIER_RISK_FREE_RATE %g must be in [0, 1)", c.RiskFreeRate)
	}
	if c.RiskAversion <= 0 {
		return fmt.Errorf("FRONTIER_RISK_AVERSION %g must be greater than zero", c.RiskAversion)
	}
	return nil
}

// Addr returns the host:port the server binds to
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
