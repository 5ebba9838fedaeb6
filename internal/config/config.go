// Package config loads process configuration from the environment.
package config

import (
	"os"
	"strconv"

	"invoicer/internal/logger"
)

type Config struct {
	// HTTP API
	APIKey     string // X-API-Key secret; empty string means insecure dev mode
	ListenAddr string

	// Data-driven extraction configuration
	SuppliersConfig string // path to suppliers.json (templates + own companies)
	CompaniesConfig string // path to companies.json (VAT calendars)
	DefaultCompany  string // company ID used when a request names none

	// Google Cloud (Vision OCR + Drive)
	GoogleCredentialsFile string
	GoogleCredentialsJSON string

	// Batch processing
	BatchLimit int // max documents per batch request

	// Logging
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		APIKey:                getEnv("INVOICE_API_KEY", ""),
		ListenAddr:            getEnv("LISTEN_ADDR", ":8080"),
		SuppliersConfig:       getEnv("SUPPLIERS_CONFIG", "config/suppliers.json"),
		CompaniesConfig:       getEnv("COMPANIES_CONFIG", "config/companies.json"),
		DefaultCompany:        getEnv("DEFAULT_COMPANY", ""),
		GoogleCredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		GoogleCredentialsJSON: getEnv("GOOGLE_CREDENTIALS", ""),
		BatchLimit:            getEnvInt("BATCH_LIMIT", 50),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:         getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:             getEnv("LOG_OUTPUT", "stderr"),
	}

	return config, nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
