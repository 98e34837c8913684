package config

import (
	"os"
	"strings"
	"time"
)

// CapsuleCacheTTL bounds how stale a cached capsule read may be.
var CapsuleCacheTTL = 5 * time.Minute

// Server captures process-level configuration.
type Server struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	KafkaBrokers  []string
	KafkaTopic    string
	JWTSigningKey string
	TokenTTL      time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("TIMEVAULT_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	topic := os.Getenv("TIMEVAULT_KAFKA_TOPIC")
	if topic == "" {
		topic = "timevault.capsule.lifecycle"
	}

	var brokers []string
	if raw := os.Getenv("TIMEVAULT_KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	jwtSigningKey := os.Getenv("TIMEVAULT_JWT_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:          addr,
		DatabaseURL:   os.Getenv("TIMEVAULT_DATABASE_URL"),
		RedisURL:      os.Getenv("TIMEVAULT_REDIS_URL"),
		KafkaBrokers:  brokers,
		KafkaTopic:    topic,
		JWTSigningKey: jwtSigningKey,
		TokenTTL:      time.Hour,
	}
}
