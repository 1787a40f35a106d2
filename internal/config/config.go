package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings, read from the environment.
type Config struct {
	AppPort int

	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string

	RedisHost     string
	RedisPort     int
	RedisPassword string

	UserCacheTTL      time.Duration
	HierarchyCacheTTL time.Duration
	SweepInterval     time.Duration

	AutoMigrate        bool
	EnableAuditLogging bool
}

// LoadConfig reads .env when present, then the process environment, applying
// defaults for everything but credentials.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppPort:            envInt("APP_PORT", 8080),
		PostgresHost:       envStr("POSTGRES_HOST", "localhost"),
		PostgresPort:       envInt("POSTGRES_PORT", 5432),
		PostgresUser:       envStr("POSTGRES_USER", "postgres"),
		PostgresPassword:   os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:         envStr("POSTGRES_DB", "permcore"),
		RedisHost:          envStr("REDIS_HOST", "localhost"),
		RedisPort:          envInt("REDIS_PORT", 6379),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		UserCacheTTL:       envDuration("USER_CACHE_TTL", 5*time.Minute),
		HierarchyCacheTTL:  envDuration("HIERARCHY_CACHE_TTL", 10*time.Minute),
		SweepInterval:      envDuration("CACHE_SWEEP_INTERVAL", time.Minute),
		AutoMigrate:        envBool("AUTO_MIGRATE", true),
		EnableAuditLogging: envBool("ENABLE_AUDIT_LOGGING", true),
	}

	if cfg.AppPort <= 0 || cfg.AppPort > 65535 {
		return nil, fmt.Errorf("invalid APP_PORT %d", cfg.AppPort)
	}
	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
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

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
