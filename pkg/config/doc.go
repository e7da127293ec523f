// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	SAMLFED_HOST="0.0.0.0"
//	SAMLFED_PORT="8080"
//	SAMLFED_HEALTH_PORT="9090"
//	SAMLFED_READ_TIMEOUT="15s"
//	SAMLFED_WRITE_TIMEOUT="15s"
//
// Engine settings:
//
//	SAMLFED_ISSUER_ENTITY_ID="https://idp.example.com"
//	SAMLFED_BASE_URL="https://idp.example.com"
//	SAMLFED_CERTIFICATE_PATH="/etc/samlfed/signing.crt"
//	SAMLFED_PRIVATE_KEY_PATH="/etc/samlfed/signing.key"
//	SAMLFED_CLOCK_SKEW="5m"
//	SAMLFED_MESSAGE_LIFETIME="5m"
//	SAMLFED_ARTIFACT_LIFETIME="1m"
//
// Store settings:
//
//	SAMLFED_RELYING_PARTY_STORE="file"  # memory, file, postgres
//	SAMLFED_RELYING_PARTY_FILE="/etc/samlfed/relying_parties.yaml"
//	SAMLFED_POSTGRES_URL="postgres://localhost/samlfed"
//	SAMLFED_ARTIFACT_STORE="redis"  # memory, redis
//	SAMLFED_MESSAGE_STORE="redis"   # memory, redis
//	SAMLFED_REDIS_URL="redis://localhost:6379"
//
// Observability settings:
//
//	SAMLFED_LOG_LEVEL="info"  # debug, info, warn, error
//	SAMLFED_METRICS_ENABLED="true"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Issuer: %s\n", cfg.Engine.IssuerEntityID)
//
// # Related Packages
//
//   - pkg/keys: Loads signing material from the configured paths
//   - pkg/observability: Uses observability configuration
package config
