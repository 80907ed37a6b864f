// Package config builds runtime configuration from the environment so main
// stays lean. Every knob has a development default; production overrides all
// of them.
package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	AdminToken    string
	JWTSigningKey string

	// AdminParticipant is the UUID of the registry admin identity.
	AdminParticipant string

	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
}

// PostgresConfig holds the shipment and participant store connection.
// An empty DSN selects the in-memory stores.
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig holds the tracker index connection. An empty URL selects the
// in-memory tracker store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds the domain event broker. Empty brokers select the no-op
// publisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("CUSTODIA_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("CUSTODIA_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default; must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	adminToken := os.Getenv("CUSTODIA_ADMIN_TOKEN")
	if adminToken == "" {
		adminToken = "dev-admin-token"
	}

	topic := os.Getenv("CUSTODIA_KAFKA_TOPIC")
	if topic == "" {
		topic = "custodia.shipment.events"
	}

	var brokers []string
	if raw := os.Getenv("CUSTODIA_KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	return Server{
		Addr:             addr,
		AdminToken:       adminToken,
		JWTSigningKey:    jwtSigningKey,
		AdminParticipant: os.Getenv("CUSTODIA_ADMIN_PARTICIPANT"),
		Postgres: PostgresConfig{
			DSN:          os.Getenv("CUSTODIA_POSTGRES_DSN"),
			MaxOpenConns: 20,
			MaxIdleConns: 5,
		},
		Redis: RedisConfig{
			URL:          os.Getenv("CUSTODIA_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: brokers,
			Topic:   topic,
		},
	}
}
