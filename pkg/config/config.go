package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/samlfed/pkg/observability"
)

// Store backend selectors.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config holds all daemon configuration.
type Config struct {
	Server        ServerConfig
	Engine        EngineConfig
	Stores        StoresConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// EngineConfig holds the protocol engine settings.
type EngineConfig struct {
	// IssuerEntityID is this identity provider's entity ID.
	IssuerEntityID string
	// BaseURL is the externally visible base URL, used in metadata.
	BaseURL string

	// Signing key material.
	CertificatePath string
	PrivateKeyPath  string

	ClockSkew        time.Duration
	MessageLifetime  time.Duration
	ArtifactLifetime time.Duration
	MaxIssuerLength  int
}

// StoresConfig selects and configures the backing stores.
type StoresConfig struct {
	// RelyingPartyStore is memory, file, or postgres.
	RelyingPartyStore    string
	RelyingPartyFilePath string
	PostgresURL          string

	// ArtifactStore and MessageStore are memory or redis.
	ArtifactStore string
	MessageStore  string
	MessageTTL    time.Duration

	RedisURL      string
	RedisPassword string
	RedisDB       int
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Engine:        loadEngineConfig(),
		Stores:        loadStoresConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("SAMLFED_HOST", "0.0.0.0"),
		Port:            getEnv("SAMLFED_PORT", "8080"),
		ReadTimeout:     getEnvDuration("SAMLFED_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("SAMLFED_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("SAMLFED_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("SAMLFED_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("SAMLFED_HEALTH_PORT", "9090"),
	}
}

// loadEngineConfig loads protocol engine configuration from environment
func loadEngineConfig() EngineConfig {
	return EngineConfig{
		IssuerEntityID:   getEnv("SAMLFED_ISSUER_ENTITY_ID", ""),
		BaseURL:          getEnv("SAMLFED_BASE_URL", ""),
		CertificatePath:  getEnv("SAMLFED_CERTIFICATE_PATH", ""),
		PrivateKeyPath:   getEnv("SAMLFED_PRIVATE_KEY_PATH", ""),
		ClockSkew:        getEnvDuration("SAMLFED_CLOCK_SKEW", 5*time.Minute),
		MessageLifetime:  getEnvDuration("SAMLFED_MESSAGE_LIFETIME", 5*time.Minute),
		ArtifactLifetime: getEnvDuration("SAMLFED_ARTIFACT_LIFETIME", time.Minute),
		MaxIssuerLength:  getEnvInt("SAMLFED_MAX_ISSUER_LENGTH", 512),
	}
}

// loadStoresConfig loads store configuration from environment
func loadStoresConfig() StoresConfig {
	return StoresConfig{
		RelyingPartyStore:    getEnv("SAMLFED_RELYING_PARTY_STORE", StoreMemory),
		RelyingPartyFilePath: getEnv("SAMLFED_RELYING_PARTY_FILE", ""),
		PostgresURL:          getEnv("SAMLFED_POSTGRES_URL", ""),
		ArtifactStore:        getEnv("SAMLFED_ARTIFACT_STORE", StoreMemory),
		MessageStore:         getEnv("SAMLFED_MESSAGE_STORE", StoreMemory),
		MessageTTL:           getEnvDuration("SAMLFED_MESSAGE_TTL", time.Hour),
		RedisURL:             getEnv("SAMLFED_REDIS_URL", ""),
		RedisPassword:        getEnv("SAMLFED_REDIS_PASSWORD", ""),
		RedisDB:              getEnvInt("SAMLFED_REDIS_DB", 0),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("SAMLFED_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("SAMLFED_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
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

	if c.Engine.IssuerEntityID == "" {
		return fmt.Errorf("issuer entity ID is required")
	}
	if c.Engine.CertificatePath == "" || c.Engine.PrivateKeyPath == "" {
		return fmt.Errorf("signing certificate and private key paths are required")
	}

	switch c.Stores.RelyingPartyStore {
	case StoreMemory:
	case StoreFile:
		if c.Stores.RelyingPartyFilePath == "" {
			return fmt.Errorf("relying party file path is required for file store")
		}
	case StorePostgres:
		if c.Stores.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres store")
		}
	default:
		return fmt.Errorf("invalid relying party store: %s (must be memory, file, or postgres)", c.Stores.RelyingPartyStore)
	}

	for _, store := range []string{c.Stores.ArtifactStore, c.Stores.MessageStore} {
		switch store {
		case StoreMemory:
		case StoreRedis:
			if c.Stores.RedisURL == "" {
				return fmt.Errorf("redis URL is required for redis store")
			}
		default:
			return fmt.Errorf("invalid store type: %s (must be memory or redis)", store)
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
