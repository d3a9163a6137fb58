package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Env       string
	Port      string
	JWTSecret string
	BackupDir string
	Database  DatabaseConfig
	Primary   DeviceConfig
	Secondary *DeviceConfig // nil when no second reader is configured
	LogExport LogExportConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// DeviceConfig holds connection settings for one iDFace reader
type DeviceConfig struct {
	Host       string
	Login      string
	Password   string
	SessionTTL time.Duration
	Timeout    time.Duration
}

// LogExportConfig bounds access-log exports in snapshots
type LogExportConfig struct {
	MaxRows int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	primaryHost := os.Getenv("IDFACE_HOST")
	if primaryHost == "" {
		return nil, fmt.Errorf("IDFACE_HOST is required")
	}

	cfg := &Config{
		Env:       getEnv("APP_ENV", "development"),
		Port:      getEnv("PORT", "3001"),
		JWTSecret: jwtSecret,
		BackupDir: getEnv("BACKUP_DIR", "./backups"),
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "facegate"),
		},
		Primary: DeviceConfig{
			Host:       primaryHost,
			Login:      getEnv("IDFACE_LOGIN", "admin"),
			Password:   os.Getenv("IDFACE_PASSWORD"),
			SessionTTL: time.Duration(getEnvInt("IDFACE_SESSION_TTL", 3600)) * time.Second,
			Timeout:    time.Duration(getEnvInt("IDFACE_TIMEOUT", 30)) * time.Second,
		},
		LogExport: LogExportConfig{
			MaxRows: getEnvInt("BACKUP_LOG_LIMIT", 10000),
		},
	}

	// Second reader is optional
	if host2 := os.Getenv("IDFACE2_HOST"); host2 != "" {
		cfg.Secondary = &DeviceConfig{
			Host:       host2,
			Login:      getEnv("IDFACE2_LOGIN", cfg.Primary.Login),
			Password:   getEnv("IDFACE2_PASSWORD", cfg.Primary.Password),
			SessionTTL: cfg.Primary.SessionTTL,
			Timeout:    cfg.Primary.Timeout,
		}
	}

	return cfg, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
