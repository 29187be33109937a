package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/critiqdev/critiq/pkg/observability"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Mail          MailConfig
	Redis         RedisConfig
	Cache         CacheConfig
	Observability ObservabilityConfig

	// SeedFile optionally points to a YAML catalog fixture applied on
	// startup.
	SeedFile string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// AuthConfig holds token and confirmation code settings.
type AuthConfig struct {
	// TokenSecret signs access tokens. Required.
	TokenSecret string
	// CodeSecret keys confirmation code MACs. Required, and must differ
	// from TokenSecret so one leaked key does not compromise both.
	CodeSecret string
	TokenTTL   time.Duration
	CodeTTL    time.Duration
}

// MailConfig holds confirmation mail delivery settings.
type MailConfig struct {
	// Mode is "smtp" or "log".
	Mode         string
	Host         string
	Port         int
	From         string
	Username     string
	Password     string
	TemplatePath string
	MaxRetries   int
}

// RedisConfig holds settings for the rate limiter backend. Empty Addr
// disables rate limiting.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	SignupRequestsPerMinute int
}

// CacheConfig holds catalog cache settings.
type CacheConfig struct {
	Enabled bool
	Size    int
	TTL     time.Duration
}

// ObservabilityConfig holds logging, metrics and tracing settings.
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool

	// SaltPurgeSchedule is a cron expression for the stale confirmation
	// salt sweep.
	SaltPurgeSchedule string
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("CRITIQ_HOST", "0.0.0.0"),
			Port:            getEnv("CRITIQ_PORT", "8080"),
			ReadTimeout:     getEnvDuration("CRITIQ_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("CRITIQ_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("CRITIQ_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("CRITIQ_SHUTDOWN_TIMEOUT", 30*time.Second),
			MaxBodyBytes:    getEnvInt64("CRITIQ_MAX_BODY_BYTES", 1<<20),
			HealthPort:      getEnv("CRITIQ_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:          getEnv("CRITIQ_POSTGRES_URL", ""),
			MaxOpenConns: getEnvInt("CRITIQ_POSTGRES_MAX_CONNS", 25),
			MaxIdleConns: getEnvInt("CRITIQ_POSTGRES_IDLE_CONNS", 5),
			ConnLifetime: getEnvDuration("CRITIQ_POSTGRES_CONN_LIFETIME", 30*time.Minute),
		},
		Auth: AuthConfig{
			TokenSecret: getEnv("CRITIQ_TOKEN_SECRET", ""),
			CodeSecret:  getEnv("CRITIQ_CODE_SECRET", ""),
			TokenTTL:    getEnvDuration("CRITIQ_TOKEN_TTL", 24*time.Hour),
			CodeTTL:     getEnvDuration("CRITIQ_CODE_TTL", 24*time.Hour),
		},
		Mail: MailConfig{
			Mode:         getEnv("CRITIQ_MAIL_MODE", "log"),
			Host:         getEnv("CRITIQ_SMTP_HOST", ""),
			Port:         getEnvInt("CRITIQ_SMTP_PORT", 587),
			From:         getEnv("CRITIQ_MAIL_FROM", "noreply@critiq.dev"),
			Username:     getEnv("CRITIQ_SMTP_USERNAME", ""),
			Password:     getEnv("CRITIQ_SMTP_PASSWORD", ""),
			TemplatePath: getEnv("CRITIQ_MAIL_TEMPLATE", ""),
			MaxRetries:   getEnvInt("CRITIQ_MAIL_MAX_RETRIES", 3),
		},
		Redis: RedisConfig{
			Addr:                    getEnv("CRITIQ_REDIS_ADDR", ""),
			Password:                getEnv("CRITIQ_REDIS_PASSWORD", ""),
			DB:                      getEnvInt("CRITIQ_REDIS_DB", 0),
			SignupRequestsPerMinute: getEnvInt("CRITIQ_SIGNUP_RATE_LIMIT", 10),
		},
		Cache: CacheConfig{
			Enabled: getEnvBool("CRITIQ_CACHE_ENABLED", true),
			Size:    getEnvInt("CRITIQ_CACHE_SIZE", 1024),
			TTL:     getEnvDuration("CRITIQ_CACHE_TTL", 5*time.Minute),
		},
		Observability: ObservabilityConfig{
			LogLevel:           observability.ParseLogLevel(getEnv("CRITIQ_LOG_LEVEL", "info")),
			MetricsEnabled:     getEnvBool("CRITIQ_METRICS_ENABLED", true),
			OTelEnabled:        getEnvBool("CRITIQ_OTEL_ENABLED", false),
			OTelEndpoint:       getEnv("CRITIQ_OTEL_ENDPOINT", "localhost:4317"),
			OTelServiceName:    getEnv("CRITIQ_OTEL_SERVICE_NAME", "critiq"),
			OTelServiceVersion: getEnv("CRITIQ_OTEL_SERVICE_VERSION", "dev"),
			OTelInsecure:       getEnvBool("CRITIQ_OTEL_INSECURE", true),
			SaltPurgeSchedule:  getEnv("CRITIQ_SALT_PURGE_SCHEDULE", "@hourly"),
		},
		SeedFile: getEnv("CRITIQ_SEED_FILE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks settings that cannot work together.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("CRITIQ_POSTGRES_URL is required")
	}

	if c.Auth.TokenSecret == "" {
		return fmt.Errorf("CRITIQ_TOKEN_SECRET is required")
	}
	if c.Auth.CodeSecret == "" {
		return fmt.Errorf("CRITIQ_CODE_SECRET is required")
	}
	if c.Auth.TokenSecret == c.Auth.CodeSecret {
		return fmt.Errorf("token secret and code secret must differ")
	}
	if c.Auth.TokenTTL <= 0 || c.Auth.CodeTTL <= 0 {
		return fmt.Errorf("token and code TTLs must be positive")
	}

	switch c.Mail.Mode {
	case "log":
	case "smtp":
		if c.Mail.Host == "" {
			return fmt.Errorf("CRITIQ_SMTP_HOST is required for smtp mail mode")
		}
		if c.Mail.From == "" {
			return fmt.Errorf("CRITIQ_MAIL_FROM is required for smtp mail mode")
		}
	default:
		return fmt.Errorf("unknown mail mode %q (expected smtp or log)", c.Mail.Mode)
	}

	if c.Cache.Enabled && c.Cache.Size <= 0 {
		return fmt.Errorf("cache size must be positive")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
